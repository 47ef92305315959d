// Package compare implements the three compare surfaces built on the
// manifest tree-diff primitive (spec §4.9): changes (manifest vs.
// manifest), integrity (manifest vs. the files that back it), and verify
// (manifest vs. a freshly scanned live source).
package compare

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ltp-backup/ltp/internal/hashprovider"
	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/manifest"
)

// hashBlockSize matches the engine's streaming copy block size so
// integrity/verify re-hash content the same way it was originally hashed.
const hashBlockSize = 256 * 1024

// Status is one entry's classification in a Changes/Verify result.
type Status int

const (
	StatusSame Status = iota
	StatusChanged
	StatusAdded
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusSame:
		return "same"
	case StatusChanged:
		return "changed"
	case StatusAdded:
		return "added"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Line is one path's classification, in the order callers should print it.
type Line struct {
	Path   string
	Status Status
}

// Changes compares first's manifest against second's and returns one Line
// per entry that differs, sorted by path; includeSame also reports
// unchanged entries (spec §4.9's `--all`).
func Changes(first, second *manifest.Manifest, includeSame bool) ([]Line, error) {
	sameAlgorithm := first.HashAlgorithm == second.HashAlgorithm
	diffs := manifest.Diff(first.Root, second.Root, sameAlgorithm)

	var lines []Line
	for _, d := range diffs {
		for _, p := range d.FilesAdded {
			lines = append(lines, Line{Path: p, Status: StatusAdded})
		}
		for _, p := range d.DirsAdded {
			lines = append(lines, Line{Path: p, Status: StatusAdded})
		}
		for _, p := range d.FilesChanged {
			lines = append(lines, Line{Path: p, Status: StatusChanged})
		}
		for _, p := range d.FilesRemoved {
			lines = append(lines, Line{Path: p, Status: StatusRemoved})
		}
		for _, p := range d.DirsRemoved {
			lines = append(lines, Line{Path: p, Status: StatusRemoved})
		}
		if includeSame {
			for _, p := range d.FilesSame {
				lines = append(lines, Line{Path: p, Status: StatusSame})
			}
			for _, p := range d.DirsSame {
				lines = append(lines, Line{Path: p, Status: StatusSame})
			}
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Path < lines[j].Path })
	return lines, nil
}

// IntegrityStatus classifies one entry's on-disk state relative to its
// manifest record.
type IntegrityStatus int

const (
	IntegrityOK IntegrityStatus = iota
	IntegrityCorrupted
	IntegrityMissing
)

func (s IntegrityStatus) String() string {
	switch s {
	case IntegrityOK:
		return "OK"
	case IntegrityCorrupted:
		return "CORRUPTED"
	case IntegrityMissing:
		return "MISSING"
	default:
		return "UNKNOWN"
	}
}

// IntegrityLine is one entry's integrity verdict.
type IntegrityLine struct {
	Path   string
	Status IntegrityStatus
}

// Integrity checks, for every entry in m, that the on-disk snapshot file
// exists and — for files, including symlinks (whose target string is
// hashed) — that its re-hashed content matches the stored digest, unless
// that digest is "-" (spec §4.9). It never aborts on a mismatch; every entry
// beneath m.Root produces exactly one line.
func Integrity(m *manifest.Manifest) ([]IntegrityLine, error) {
	var lines []IntegrityLine
	err := manifest.Walk(m.Root, func(e *manifest.Entry) error {
		path := destPath(m.CurrentRoot, e)
		info, statErr := os.Lstat(path)
		if statErr != nil {
			lines = append(lines, IntegrityLine{Path: e.Path, Status: IntegrityMissing})
			return nil
		}
		if e.IsDir() {
			lines = append(lines, IntegrityLine{Path: e.Path, Status: IntegrityOK})
			return nil
		}
		if e.DataHash == "-" {
			lines = append(lines, IntegrityLine{Path: e.Path, Status: IntegrityOK})
			return nil
		}

		var digest string
		var hashErr error
		if info.Mode()&os.ModeSymlink != 0 {
			digest, hashErr = hashSymlink(path, m.HashAlgorithm)
		} else {
			digest, hashErr = hashFile(path, m.HashAlgorithm)
		}
		if hashErr != nil {
			lines = append(lines, IntegrityLine{Path: e.Path, Status: IntegrityMissing})
			return nil
		}
		if digest != e.DataHash {
			lines = append(lines, IntegrityLine{Path: e.Path, Status: IntegrityCorrupted})
			return nil
		}
		lines = append(lines, IntegrityLine{Path: e.Path, Status: IntegrityOK})
		return nil
	})
	return lines, err
}

// Verify scans m's live source tree with m's hash algorithm, then diffs the
// freshly computed tree against m itself, revealing source-side
// modifications relative to the snapshot (spec §4.9). liveRoot is the
// indexer-built tree (metadata already populated, hashes not yet
// computed); Verify hashes it in place before diffing.
func Verify(m *manifest.Manifest, liveRoot *manifest.Entry) ([]Line, error) {
	if err := HashLiveTree(liveRoot, m.HashAlgorithm); err != nil {
		return nil, err
	}
	diffs := manifest.Diff(liveRoot, m.Root, true)

	var lines []Line
	for _, d := range diffs {
		for _, p := range d.FilesAdded {
			lines = append(lines, Line{Path: p, Status: StatusAdded})
		}
		for _, p := range d.DirsAdded {
			lines = append(lines, Line{Path: p, Status: StatusAdded})
		}
		for _, p := range d.FilesChanged {
			lines = append(lines, Line{Path: p, Status: StatusChanged})
		}
		for _, p := range d.FilesRemoved {
			lines = append(lines, Line{Path: p, Status: StatusRemoved})
		}
		for _, p := range d.DirsRemoved {
			lines = append(lines, Line{Path: p, Status: StatusRemoved})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Path < lines[j].Path })
	return lines, nil
}

// HashLiveTree computes and fills in DataHash for every file entry beneath
// root by reading its bytes from the live filesystem (entry.Path), using
// the named hash algorithm. Directories are left untouched.
func HashLiveTree(root *manifest.Entry, algorithm string) error {
	return manifest.Walk(root, func(e *manifest.Entry) error {
		if e.IsDir() {
			return nil
		}
		var digest string
		var err error
		if e.IsSymlink() {
			digest, err = hashSymlink(e.Path, algorithm)
		} else {
			digest, err = hashFile(e.Path, algorithm)
		}
		if err != nil {
			return err
		}
		e.DataHash = digest
		return nil
	})
}

func destPath(snapshotRoot string, e *manifest.Entry) string {
	return filepath.Join(snapshotRoot, e.Path)
}

func hashFile(path, algorithm string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ltperrors.IOFailure{Path: path, Err: err}
	}
	defer f.Close()

	hasher, err := hashprovider.New(algorithm)
	if err != nil {
		return "", err
	}
	buf := make([]byte, hashBlockSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			hasher.Update(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", &ltperrors.IOFailure{Path: path, Err: readErr}
		}
	}
	return hasher.HexDigest(), nil
}

// hashSymlink hashes the UTF-8 bytes of a symlink's target string, per
// spec §4.5/§9.
func hashSymlink(path, algorithm string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", &ltperrors.IOFailure{Path: path, Err: err}
	}
	hasher, err := hashprovider.New(algorithm)
	if err != nil {
		return "", err
	}
	hasher.Update([]byte(target))
	return hasher.HexDigest(), nil
}
