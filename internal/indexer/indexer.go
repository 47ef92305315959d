// Package indexer walks source trees under include/exclude rules to build
// a manifest tree, honoring a single-filesystem constraint per include
// location and shell-glob exclude patterns matched against the full path.
package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/gobwas/glob"

	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/manifest"
)

// Logger receives one-line diagnostics for entries the scan skips (denied
// permission, cross-device, unsupported file type). A nil Logger discards
// them.
type Logger func(format string, args ...any)

// Options configures a scan.
type Options struct {
	Includes []string // absolute, normalized include locations
	Excludes []string // shell-glob exclude patterns, matched against full path
	Log      Logger
}

// Index scans every include location and returns a populated manifest tree
// rooted at "/". Each include location's ancestry (every path component
// from the root down) is materialized as directory entries with real
// metadata; contents beneath each include are filtered by Excludes and the
// single-device constraint described in spec §4.4.
func Index(opts Options) (*manifest.Manifest, error) {
	m, err := manifest.New("NONE")
	if err != nil {
		return nil, err
	}

	compiled := make([]glob.Glob, 0, len(opts.Excludes))
	for _, pattern := range opts.Excludes {
		// No separators: '*' and '?' also match '/', so a pattern applies to
		// the whole path string the way a shell fnmatch does.
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, &ltperrors.ConfigError{Msg: fmt.Sprintf("invalid exclude pattern %q", pattern), Err: err}
		}
		compiled = append(compiled, g)
	}

	log := opts.Log
	if log == nil {
		log = func(string, ...any) {}
	}

	s := &scanner{excludes: compiled, log: log}

	for _, include := range opts.Includes {
		if err := s.scanInclude(m, include); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type scanner struct {
	excludes []glob.Glob
	log      Logger
}

func (s *scanner) excluded(path string) bool {
	for _, g := range s.excludes {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// scanInclude materializes an include location's ancestry, then recursively
// scans its contents subject to the single-device constraint rooted at the
// include location itself.
func (s *scanner) scanInclude(m *manifest.Manifest, include string) error {
	include = filepath.Clean(include)

	info, err := os.Lstat(include)
	if err != nil {
		return &ltperrors.ConfigError{Msg: fmt.Sprintf("include location %q", include), Err: err}
	}
	if !info.IsDir() {
		return &ltperrors.ConfigError{Msg: fmt.Sprintf("include location %q is not a directory", include)}
	}

	device, ok := deviceOf(info)
	if !ok {
		return &ltperrors.ConfigError{Msg: fmt.Sprintf("include location %q: cannot determine device", include)}
	}

	// Materialize ancestry, stat-ing each component that exists.
	components := splitComponents(include)
	built := ""
	root := m.Root
	for _, c := range components {
		built += "/" + c
		entry := manifest.Lookup(root, built)
		if entry == nil {
			entry = manifest.EnsureDir(root, built)
			if info, err := os.Lstat(built); err == nil {
				entry.Metadata = metadataFrom(info)
			}
		}
	}

	dir := manifest.Lookup(root, include)
	dir.Metadata = metadataFrom(info)

	return s.scanDir(root, include, device)
}

// scanDir recursively populates root's tree beneath dirPath, which must
// already exist as a directory entry.
func (s *scanner) scanDir(root *manifest.Entry, dirPath string, device uint64) error {
	names, err := readDirNames(dirPath)
	if err != nil {
		s.log("cannot read directory %s: %v", dirPath, err)
		return nil
	}

	for _, name := range names {
		childPath := filepath.Join(dirPath, name)
		if s.excluded(childPath) {
			continue
		}

		info, err := os.Lstat(childPath)
		if err != nil {
			s.log("cannot stat %s: %v", childPath, err)
			continue
		}

		childDevice, ok := deviceOf(info)
		if ok && childDevice != device {
			s.log("skipping %s: different filesystem", childPath)
			continue
		}

		switch {
		case info.IsDir():
			entry := &manifest.Entry{
				Name:     name,
				Kind:     manifest.KindDir,
				Path:     childPath,
				Metadata: metadataFrom(info),
				Children: make(map[string]*manifest.Entry),
			}
			if !manifest.Attach(root, dirPath, entry) {
				s.log("cannot attach %s: parent missing", childPath)
				continue
			}
			if err := s.scanDir(root, childPath, device); err != nil {
				return err
			}

		case info.Mode().IsRegular(), info.Mode()&os.ModeSymlink != 0:
			entry := &manifest.Entry{
				Name:     name,
				Kind:     manifest.KindFile,
				Path:     childPath,
				Metadata: metadataFrom(info),
				DataHash: "-",
			}
			if !manifest.Attach(root, dirPath, entry) {
				s.log("cannot attach %s: parent missing", childPath)
			}

		default:
			// Character/block devices, FIFOs, sockets: ignored per spec §4.4.
			s.log("ignoring special file %s", childPath)
		}
	}
	return nil
}

func readDirNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// splitComponents splits an absolute path into its non-empty components,
// e.g. "/a/b/c" -> ["a", "b", "c"].
func splitComponents(path string) []string {
	var out []string
	cur := ""
	for _, r := range path {
		if r == '/' {
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func metadataFrom(info os.FileInfo) manifest.Metadata {
	md := manifest.Metadata{
		Mode:  uint32(modeToPosix(info)),
		Mtime: floatTime(info.ModTime()),
		Atime: floatTime(info.ModTime()),
	}
	if !info.IsDir() {
		md.Size = info.Size()
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		md.UID = sys.Uid
		md.GID = sys.Gid
		md.Atime = float64(sys.Atim.Sec) + float64(sys.Atim.Nsec)/1e9
		md.Mtime = float64(sys.Mtim.Sec) + float64(sys.Mtim.Nsec)/1e9
	}
	return md
}

func floatTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func deviceOf(info os.FileInfo) (uint64, bool) {
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(sys.Dev), true
}

// modeToPosix reconstructs the raw POSIX mode_t bits (file type + perms +
// setuid/setgid/sticky) from os.FileInfo, since os.FileMode's own bit
// layout differs from mode_t and the manifest format stores raw mode_t.
func modeToPosix(info os.FileInfo) uint32 {
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint32(sys.Mode)
	}
	// Fallback without syscall stat: approximate type bits plus permissions.
	const sIFDIR, sIFLNK, sIFREG = 0o040000, 0o120000, 0o100000
	perm := uint32(info.Mode().Perm())
	switch {
	case info.IsDir():
		return sIFDIR | perm
	case info.Mode()&os.ModeSymlink != 0:
		return sIFLNK | perm
	default:
		return sIFREG | perm
	}
}
