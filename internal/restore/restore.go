// Package restore implements the read-only snapshot inspection and
// extraction operations ls, cp and cat (spec §4.7); list and path are
// served by internal/catalog.
package restore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/manifest"
)

const copyBlockSize = 256 * 1024

// maxSuggestions caps how many fuzzy-matched candidates a NotFoundError
// lists, so the message stays readable on a manifest with many entries.
const maxSuggestions = 5

// LsLine is one line of `ls` output: a looked-up path and, for a
// directory, its children (nil for a file).
type LsLine struct {
	Path     string
	IsDir    bool
	Children []string // immediate (or, if recursive, fully flattened) children paths
}

// Ls looks up each of paths in m and reports its listing. Unknown paths are
// collected into the returned error slice rather than aborting the whole call, per
// spec §4.7 ("unknown paths produce an error log, not abort").
func Ls(m *manifest.Manifest, paths []string, recursive bool) ([]LsLine, []error) {
	var lines []LsLine
	var errs []error

	for _, p := range paths {
		entry := m.Lookup(p)
		if entry == nil {
			errs = append(errs, notFound(m, p))
			continue
		}
		if !entry.IsDir() {
			lines = append(lines, LsLine{Path: entry.Path})
			continue
		}

		line := LsLine{Path: entry.Path, IsDir: true}
		if recursive {
			_ = manifest.Walk(entry, func(e *manifest.Entry) error {
				line.Children = append(line.Children, e.Path)
				return nil
			})
		} else {
			for _, c := range manifest.SortedChildren(entry) {
				line.Children = append(line.Children, c.Path)
			}
		}
		lines = append(lines, line)
	}
	return lines, errs
}

// Cp stream-copies src (a file, or a directory tree with recursive=true)
// from the snapshot rooted at m.CurrentRoot to dst on the live filesystem,
// applying metadata (spec §4.7). If dst exists and is a directory, src's
// basename is appended, matching common cp semantics.
func Cp(m *manifest.Manifest, src, dst string, recursive bool) error {
	entry := m.Lookup(src)
	if entry == nil {
		return notFound(m, src)
	}

	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, entry.Name)
	}

	if entry.IsDir() {
		if !recursive {
			return &ltperrors.ConfigError{Msg: fmt.Sprintf("%s is a directory; use --recursive", src)}
		}
		return cpDir(m, entry, dst)
	}
	return cpFile(m, entry, dst)
}

// cpDir creates dst and its children first, then applies dst's own
// directory metadata last, so a read-only destination directory can still
// be populated (spec §4.7).
func cpDir(m *manifest.Manifest, entry *manifest.Entry, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return &ltperrors.IOFailure{Path: dst, Err: err}
	}
	for _, c := range manifest.SortedChildren(entry) {
		childDst := filepath.Join(dst, c.Name)
		if c.IsDir() {
			if err := cpDir(m, c, childDst); err != nil {
				return err
			}
			continue
		}
		if err := cpFile(m, c, childDst); err != nil {
			return err
		}
	}
	return applyMetadata(dst, entry.Metadata)
}

func cpFile(m *manifest.Manifest, entry *manifest.Entry, dst string) error {
	srcPath := filepath.Join(m.CurrentRoot, entry.Path)

	if entry.IsSymlink() {
		target, err := os.Readlink(srcPath)
		if err != nil {
			return &ltperrors.IOFailure{Path: srcPath, Err: err}
		}
		if err := os.Symlink(target, dst); err != nil {
			return &ltperrors.IOFailure{Path: dst, Err: err}
		}
		return nil
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return &ltperrors.IOFailure{Path: srcPath, Err: err}
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &ltperrors.IOFailure{Path: dst, Err: err}
	}
	defer out.Close()

	buf := make([]byte, copyBlockSize)
	if _, err := io.CopyBuffer(out, src, buf); err != nil {
		return &ltperrors.IOFailure{Path: dst, Err: err}
	}

	return applyMetadata(dst, entry.Metadata)
}

func applyMetadata(path string, md manifest.Metadata) error {
	if err := os.Chmod(path, os.FileMode(md.Mode&0o777)); err != nil {
		return &ltperrors.IOFailure{Path: path, Err: err}
	}
	atime := time.Unix(0, int64(md.Atime*1e9))
	mtime := time.Unix(0, int64(md.Mtime*1e9))
	_ = os.Chtimes(path, atime, mtime)
	return nil
}

// Cat streams src's stored bytes (binary) to w.
func Cat(m *manifest.Manifest, src string, w io.Writer) error {
	entry := m.Lookup(src)
	if entry == nil {
		return notFound(m, src)
	}
	if entry.IsDir() {
		return &ltperrors.ConfigError{Msg: fmt.Sprintf("%s is a directory", src)}
	}

	srcPath := filepath.Join(m.CurrentRoot, entry.Path)
	f, err := os.Open(srcPath)
	if err != nil {
		return &ltperrors.IOFailure{Path: srcPath, Err: err}
	}
	defer f.Close()

	buf := make([]byte, copyBlockSize)
	_, err = io.CopyBuffer(w, f, buf)
	return err
}

// notFound builds a *ltperrors.NotFoundError for a missing lookup,
// suggesting the closest manifest paths by fuzzy match (grounded on the
// teacher's `fst search` use of sahilm/fuzzy against a flat string list).
func notFound(m *manifest.Manifest, path string) error {
	var all []string
	_ = manifest.Walk(m.Root, func(e *manifest.Entry) error {
		all = append(all, e.Path)
		return nil
	})

	matches := fuzzy.Find(path, all)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	msg := "no such entry in snapshot"
	if len(matches) > 0 {
		n := len(matches)
		if n > maxSuggestions {
			n = maxSuggestions
		}
		suggestions := make([]string, n)
		for i := 0; i < n; i++ {
			suggestions[i] = all[matches[i].Index]
		}
		msg = fmt.Sprintf("no such entry; did you mean: %s", strings.Join(suggestions, ", "))
	}
	return &ltperrors.NotFoundError{Subject: path, Msg: msg}
}

