// Package engine implements the snapshot Create operation (spec §4.5):
// change detection against the prior snapshot, per-entry copy-or-link,
// metadata application, read-only sealing, and atomic commit.
package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/ltp-backup/ltp/internal/catalog"
	"github.com/ltp-backup/ltp/internal/hashprovider"
	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/manifest"
)

// copyBlockSize is the streaming copy-with-hash block size (spec §4.5).
const copyBlockSize = 256 * 1024

// confirmThreshold is the fraction of free space above which --confirm
// prompts before proceeding, mirroring the original tool's interactive
// confirmation before a large backup.
const confirmThreshold = 0.9

// Logger receives one-line progress and warning messages.
type Logger func(format string, args ...any)

// Options configures a Create run.
type Options struct {
	TargetDir     string
	Source        *manifest.Manifest // freshly indexed source tree (see internal/indexer)
	HashAlgorithm string

	Force   bool // proceed even when no files changed
	Full    bool // skip change detection; copy every file
	DryRun  bool // print the plan, touch nothing
	Confirm bool // prompt before large backups

	// IsTerminal reports whether confirmation prompts can be shown;
	// --confirm is a no-op when it returns false (the CLI passes a check of
	// whether stdout is a terminal).
	IsTerminal func() bool
	// Prompt asks the user to proceed and returns their answer. Only
	// called when Confirm is set and IsTerminal reports true.
	Prompt func(message string) bool

	Log Logger
	Now func() time.Time
}

// PlannedAction is one entry's resolved copy/link/mkdir action, reported in
// dry-run mode and used internally to drive materialization.
type PlannedAction struct {
	Path   string
	Action string // "MKDIR", "LINK", "COPY", "SYMLINK"
}

// Result summarizes a completed (or planned, if DryRun) Create run.
type Result struct {
	SnapshotName string
	SnapshotDir  string
	FilesChanged int
	FilesLinked  int
	BytesCopied  int64
	DryRun       bool
	Plan         []PlannedAction
}

// Create runs the full snapshot construction pipeline described by spec §4.5.
func Create(opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = func(string, ...any) {}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(opts.TargetDir, 0o755); err != nil {
		return nil, &ltperrors.IOFailure{Path: opts.TargetDir, Err: err}
	}

	lock, err := AcquireLock(opts.TargetDir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	cat, err := catalog.List(opts.TargetDir)
	if err != nil {
		return nil, err
	}
	for _, name := range cat.Incomplete {
		log("warning: orphaned incomplete snapshot %s found; a previous create was interrupted", name)
	}

	m := opts.Source
	canon, err := hashprovider.CanonicalName(opts.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	m.HashAlgorithm = canon

	var reference *manifest.Manifest
	if len(cat.Complete) > 0 && !opts.Full {
		priorName := cat.Complete[len(cat.Complete)-1]
		priorDir := catalog.Path(opts.TargetDir, priorName)
		reference, err = loadManifest(priorDir)
		if err != nil {
			return nil, err
		}
		m.ReferenceRoot = priorDir
	}

	if err := detectChanges(m, reference); err != nil {
		return nil, err
	}

	changedFiles, bytesRequired := changedSummary(m.Root)
	if changedFiles == 0 && reference != nil && !opts.Force {
		return nil, &ltperrors.UserAbort{Msg: "no changes detected (use --force to snapshot anyway)"}
	}

	if err := checkCapacity(opts.TargetDir, bytesRequired, manifest.Count(m.Root)); err != nil {
		return nil, err
	}

	if opts.Confirm && opts.IsTerminal != nil && opts.IsTerminal() {
		free, _, err := statfs(opts.TargetDir)
		if err == nil && free > 0 && float64(bytesRequired) > confirmThreshold*float64(free) {
			msg := fmt.Sprintf("this backup needs %d bytes, close to the %d bytes free; continue?", bytesRequired, free)
			if opts.Prompt == nil || !opts.Prompt(msg) {
				return nil, &ltperrors.UserAbort{Msg: "backup declined at confirmation prompt"}
			}
		}
	}

	name := catalog.NewName(now())

	if opts.DryRun {
		return &Result{
			SnapshotName: name,
			FilesChanged: changedFiles,
			DryRun:       true,
			Plan:         plan(m.Root),
		}, nil
	}

	incompleteDir := catalog.IncompletePath(opts.TargetDir, name)
	m.CurrentRoot = incompleteDir

	if err := os.MkdirAll(incompleteDir, 0o755); err != nil {
		return nil, &ltperrors.IOFailure{Path: incompleteDir, Err: err}
	}

	result := &Result{SnapshotName: name, SnapshotDir: catalog.Path(opts.TargetDir, name)}
	var materializeErr error

	err = manifest.Walk(m.Root, func(e *manifest.Entry) error {
		if e.IsDir() {
			if err := materializeDir(incompleteDir, e); err != nil {
				log("warning: %v", err)
				materializeErr = err
			}
			return nil
		}
		if e.IsSymlink() {
			if err := materializeSymlink(incompleteDir, m.ReferenceRoot, e, m); err != nil {
				log("warning: %v", err)
				materializeErr = err
			}
			return nil
		}
		if e.Changed {
			n, err := materializeCopy(incompleteDir, e, m)
			if err != nil {
				log("warning: %v", err)
				materializeErr = err
				return nil
			}
			result.BytesCopied += n
			result.FilesChanged++
			return nil
		}
		if err := materializeLink(incompleteDir, m.ReferenceRoot, e); err != nil {
			log("warning: %v", err)
			materializeErr = err
			return nil
		}
		result.FilesLinked++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := sealDirectories(incompleteDir, m.Root); err != nil {
		materializeErr = err
	}

	manifestPath := filepath.Join(incompleteDir, "file_list")
	if err := writeManifestFile(manifestPath, m); err != nil {
		return nil, err
	}

	if materializeErr != nil {
		return nil, fmt.Errorf("snapshot left incomplete: %w", materializeErr)
	}

	if err := os.Chmod(incompleteDir, 0o555); err != nil {
		return nil, &ltperrors.IOFailure{Path: incompleteDir, Err: err}
	}

	finalDir := catalog.Path(opts.TargetDir, name)
	if err := os.Rename(incompleteDir, finalDir); err != nil {
		return nil, &ltperrors.IOFailure{Path: finalDir, Err: err}
	}

	return result, nil
}

func loadManifest(snapshotDir string) (*manifest.Manifest, error) {
	path := filepath.Join(snapshotDir, "file_list")
	f, err := os.Open(path)
	if err != nil {
		return nil, &ltperrors.IOFailure{Path: path, Err: err}
	}
	defer f.Close()

	m, err := manifest.Parse(f, path, nil)
	if err != nil {
		return nil, err
	}
	m.CurrentRoot = snapshotDir
	return m, nil
}

// detectChanges sets Changed on the file entries in m's tree: false for
// files judged unchanged (which inherit the reference manifest's digest),
// true for changed and added files. A nil reference
// means there is no prior snapshot: every file is changed (first backup).
func detectChanges(m *manifest.Manifest, reference *manifest.Manifest) error {
	if reference == nil {
		return manifest.Walk(m.Root, func(e *manifest.Entry) error {
			if !e.IsDir() {
				e.Changed = true
			}
			return nil
		})
	}

	sameAlgorithm := m.HashAlgorithm == reference.HashAlgorithm
	diffs := manifest.Diff(m.Root, reference.Root, sameAlgorithm)
	for _, d := range diffs {
		for _, p := range d.FilesSame {
			entry := m.Lookup(p)
			prior := reference.Lookup(p)
			if entry == nil || prior == nil {
				continue
			}
			entry.Changed = false
			entry.DataHash = prior.DataHash
		}
		for _, p := range d.FilesChanged {
			if entry := m.Lookup(p); entry != nil {
				entry.Changed = true
			}
		}
		for _, p := range d.FilesAdded {
			if entry := m.Lookup(p); entry != nil {
				entry.Changed = true
			}
		}
	}
	return nil
}

func changedSummary(root *manifest.Entry) (files int, bytesRequired uint64) {
	_ = manifest.Walk(root, func(e *manifest.Entry) error {
		if !e.IsDir() && e.Changed {
			files++
			if e.Metadata.Size > 0 {
				bytesRequired += uint64(e.Metadata.Size)
			}
		}
		return nil
	})
	return files, bytesRequired
}

func plan(root *manifest.Entry) []PlannedAction {
	var out []PlannedAction
	_ = manifest.Walk(root, func(e *manifest.Entry) error {
		switch {
		case e.IsDir():
			out = append(out, PlannedAction{Path: e.Path, Action: "MKDIR"})
		case e.IsSymlink():
			out = append(out, PlannedAction{Path: e.Path, Action: "SYMLINK"})
		case e.Changed:
			out = append(out, PlannedAction{Path: e.Path, Action: "COPY"})
		default:
			out = append(out, PlannedAction{Path: e.Path, Action: "LINK"})
		}
		return nil
	})
	return out
}

func checkCapacity(targetDir string, bytesRequired uint64, totalEntries int) error {
	free, inodesFree, err := statfs(targetDir)
	if err != nil {
		return &ltperrors.IOFailure{Path: targetDir, Err: err}
	}
	if free < bytesRequired || (inodesFree > 0 && inodesFree < uint64(totalEntries)) {
		return &ltperrors.CapacityError{
			BytesRequired: bytesRequired, BytesFree: free,
			InodesRequired: uint64(totalEntries), InodesFree: inodesFree,
			Msg: "target has insufficient space",
		}
	}
	return nil
}

func statfs(dir string) (bytesFree, inodesFree uint64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, 0, err
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), uint64(stat.Ffree), nil
}

func destPath(snapshotRoot string, e *manifest.Entry) string {
	return filepath.Join(snapshotRoot, e.Path)
}

func materializeDir(snapshotRoot string, e *manifest.Entry) error {
	path := destPath(snapshotRoot, e)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &ltperrors.IOFailure{Path: path, Err: err}
	}
	return nil
}

// materializeCopy streams e's source bytes through the manifest's hash
// provider in fixed-size blocks, writing the same blocks to the snapshot
// destination, per spec §4.5/§9 ("streaming copy + hash").
func materializeCopy(snapshotRoot string, e *manifest.Entry, m *manifest.Manifest) (int64, error) {
	path := destPath(snapshotRoot, e)

	src, err := os.Open(e.Path)
	if err != nil {
		return 0, &ltperrors.IOFailure{Path: e.Path, Err: err}
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &ltperrors.IOFailure{Path: path, Err: err}
	}
	defer dst.Close()

	hasher, err := m.NewHasher()
	if err != nil {
		return 0, err
	}

	buf := make([]byte, copyBlockSize)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			hasher.Update(buf[:n])
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, &ltperrors.IOFailure{Path: path, Err: err}
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return total, &ltperrors.IOFailure{Path: e.Path, Err: readErr}
		}
	}

	e.DataHash = hasher.HexDigest()
	applyFileTimes(path, e.Metadata)
	if err := os.Chmod(path, os.FileMode(e.Metadata.Mode&0o777)&^0o222); err != nil {
		return total, &ltperrors.IOFailure{Path: path, Err: err}
	}
	return total, nil
}

// materializeLink hard-links an unchanged file from the reference snapshot
// into the new one, then clears its write bits.
func materializeLink(snapshotRoot, referenceRoot string, e *manifest.Entry) error {
	if referenceRoot == "" {
		return fmt.Errorf("cannot link %s: no reference snapshot", e.Path)
	}
	src := filepath.Join(referenceRoot, e.Path)
	dst := destPath(snapshotRoot, e)
	if err := os.Link(src, dst); err != nil {
		return &ltperrors.IOFailure{Path: dst, Err: err}
	}
	if err := os.Chmod(dst, os.FileMode(e.Metadata.Mode&0o777)&^0o222); err != nil {
		return &ltperrors.IOFailure{Path: dst, Err: err}
	}
	return nil
}

// materializeSymlink recreates (changed) or hard-links (unchanged) a
// symlink entry. Atime/mtime and mode on the link itself are not set
// (spec §9 tolerates a no-op on symlinks). For a changed symlink,
// the hash is updated with the UTF-8 bytes of the link target, mirroring
// compare.hashSymlink's read-side computation.
func materializeSymlink(snapshotRoot, referenceRoot string, e *manifest.Entry, m *manifest.Manifest) error {
	dst := destPath(snapshotRoot, e)
	if !e.Changed && referenceRoot != "" {
		src := filepath.Join(referenceRoot, e.Path)
		if err := os.Link(src, dst); err != nil {
			return &ltperrors.IOFailure{Path: dst, Err: err}
		}
		return nil
	}

	target, err := os.Readlink(e.Path)
	if err != nil {
		return &ltperrors.IOFailure{Path: e.Path, Err: err}
	}
	if err := os.Symlink(target, dst); err != nil {
		return &ltperrors.IOFailure{Path: dst, Err: err}
	}

	hasher, err := hashprovider.New(m.HashAlgorithm)
	if err != nil {
		return err
	}
	hasher.Update([]byte(target))
	e.DataHash = hasher.HexDigest()
	return nil
}

// sealDirectories clears write bits on every directory beneath
// snapshotRoot, run strictly after all file materialization (spec §5).
func sealDirectories(snapshotRoot string, root *manifest.Entry) error {
	var dirs []*manifest.Entry
	_ = manifest.Walk(root, func(e *manifest.Entry) error {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
		return nil
	})
	// Deepest first, so a parent's read-only bit doesn't block writes
	// still pending inside a not-yet-sealed child.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i].Path) > len(dirs[j].Path) })

	var firstErr error
	for _, d := range dirs {
		path := destPath(snapshotRoot, d)
		applyFileTimes(path, d.Metadata)
		perm := os.FileMode(d.Metadata.Mode&0o777) &^ 0o222
		if perm == 0 {
			perm = 0o555
		}
		if err := os.Chmod(path, perm); err != nil && firstErr == nil {
			firstErr = &ltperrors.IOFailure{Path: path, Err: err}
		}
	}
	return firstErr
}

func applyFileTimes(path string, md manifest.Metadata) {
	atime := time.Unix(0, int64(md.Atime*1e9))
	mtime := time.Unix(0, int64(md.Mtime*1e9))
	_ = os.Chtimes(path, atime, mtime)
}

func writeManifestFile(path string, m *manifest.Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return &ltperrors.IOFailure{Path: path, Err: err}
	}
	if err := manifest.Emit(f, m); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &ltperrors.IOFailure{Path: path, Err: err}
	}
	return os.Chmod(path, 0o444)
}
