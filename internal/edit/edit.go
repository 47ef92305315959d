// Package edit implements the two operations that controllably break a
// snapshot's read-only seal: rm (remove an entry, rewriting the
// manifest) and purge (remove an entire snapshot), spec §4.8.
package edit

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/manifest"
)

// Result summarizes an Rm call: how many entries were removed and,
// when force continued past failures, which ones.
type Result struct {
	Removed int
	Failed  int
	Errors  []error
}

// Rm removes src from the snapshot rooted at m.CurrentRoot: the parent
// directory is made writable for the duration of the removal, the target
// is removed (a non-empty directory only with recursive, together with
// its whole subtree; force continues past per-entry failures), the
// parent's write bit is restored, and the manifest is rewritten
// atomically. Without force, any removal failure aborts without touching
// the manifest.
func Rm(m *manifest.Manifest, src string, recursive, force bool) (Result, error) {
	entry := manifest.Lookup(m.Root, src)
	if entry == nil {
		return Result{}, &ltperrors.NotFoundError{Subject: src, Msg: "no such entry in snapshot"}
	}
	if entry == m.Root {
		return Result{}, &ltperrors.ConfigError{Msg: "cannot remove the snapshot root; use purge"}
	}
	if entry.IsDir() && len(entry.Children) > 0 && !recursive {
		return Result{}, &ltperrors.ConfigError{Msg: src + " is a non-empty directory; use --recursive"}
	}

	parent := entry.Parent
	parentPath := destPath(m.CurrentRoot, parent)
	parentMode, err := writableDir(parentPath)
	if err != nil {
		return Result{}, &ltperrors.IOFailure{Path: parentPath, Err: err}
	}
	defer restoreMode(parentPath, parentMode)

	result, err := removeTree(m.CurrentRoot, entry, force)
	if err != nil {
		return result, err
	}

	delete(parent.Children, entry.Name)

	if err := rewriteManifest(m); err != nil {
		return result, err
	}
	return result, nil
}

// removeTree removes entry and, for a directory, every descendant,
// making each descendant directory writable just before descending into
// it. Without force, the first failure aborts. With force, failures are
// collected and removal continues.
func removeTree(snapshotRoot string, entry *manifest.Entry, force bool) (Result, error) {
	var result Result

	if entry.IsDir() {
		path := destPath(snapshotRoot, entry)
		mode, err := writableDir(path)
		if err != nil {
			if !force {
				return result, &ltperrors.IOFailure{Path: path, Err: err}
			}
			result.Failed++
			result.Errors = append(result.Errors, &ltperrors.IOFailure{Path: path, Err: err})
			return result, nil
		}

		for _, child := range manifest.SortedChildren(entry) {
			sub, err := removeTree(snapshotRoot, child, force)
			result.Removed += sub.Removed
			result.Failed += sub.Failed
			result.Errors = append(result.Errors, sub.Errors...)
			if err != nil {
				restoreMode(path, mode)
				return result, err
			}
		}
		restoreMode(path, mode)

		if err := os.Remove(path); err != nil {
			if !force {
				return result, &ltperrors.IOFailure{Path: path, Err: err}
			}
			result.Failed++
			result.Errors = append(result.Errors, &ltperrors.IOFailure{Path: path, Err: err})
			return result, nil
		}
		result.Removed++
		return result, nil
	}

	path := destPath(snapshotRoot, entry)
	if err := os.Remove(path); err != nil {
		if !force {
			return result, &ltperrors.IOFailure{Path: path, Err: err}
		}
		result.Failed++
		result.Errors = append(result.Errors, &ltperrors.IOFailure{Path: path, Err: err})
		return result, nil
	}
	result.Removed++
	return result, nil
}

// writableDir ORs the write bit onto a directory's current mode and
// returns the mode it had before, so the caller can restore it.
func writableDir(path string) (os.FileMode, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	mode := info.Mode()
	if err := os.Chmod(path, mode|0o200); err != nil {
		return 0, err
	}
	return mode, nil
}

func restoreMode(path string, mode os.FileMode) {
	_ = os.Chmod(path, mode)
}

// rewriteManifest emits m to file_list.new, chmods it read-only, then
// atomically replaces the snapshot's file_list (spec §4.8: "crash-safe").
func rewriteManifest(m *manifest.Manifest) error {
	finalPath := filepath.Join(m.CurrentRoot, "file_list")
	tmpPath := finalPath + ".new"

	parentMode, err := writableDir(m.CurrentRoot)
	if err != nil {
		return &ltperrors.IOFailure{Path: m.CurrentRoot, Err: err}
	}
	defer restoreMode(m.CurrentRoot, parentMode)

	f, err := os.Create(tmpPath)
	if err != nil {
		return &ltperrors.IOFailure{Path: tmpPath, Err: err}
	}
	if err := manifest.Emit(f, m); err != nil {
		f.Close()
		return &ltperrors.IOFailure{Path: tmpPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ltperrors.IOFailure{Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o444); err != nil {
		return &ltperrors.IOFailure{Path: tmpPath, Err: err}
	}
	if err := os.Remove(finalPath); err != nil && !os.IsNotExist(err) {
		return &ltperrors.IOFailure{Path: finalPath, Err: err}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return &ltperrors.IOFailure{Path: finalPath, Err: err}
	}
	return nil
}

// Purge removes an entire snapshot directory: the snapshot root and every
// contained directory are made writable before the whole tree is removed
// (spec §4.8).
func Purge(snapshotDir string) error {
	if err := makeTreeWritable(snapshotDir); err != nil {
		return err
	}
	if err := os.RemoveAll(snapshotDir); err != nil {
		return &ltperrors.IOFailure{Path: snapshotDir, Err: err}
	}
	return nil
}

// makeTreeWritable walks snapshotDir depth-first and ORs the write bit
// onto every directory's mode, deepest first, so RemoveAll can unlink
// every entry regardless of the read-only seal applied during Create.
func makeTreeWritable(dir string) error {
	var dirs []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return &ltperrors.IOFailure{Path: dir, Err: err}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		info, err := os.Lstat(d)
		if err != nil {
			return &ltperrors.IOFailure{Path: d, Err: err}
		}
		if err := os.Chmod(d, info.Mode()|0o200); err != nil {
			return &ltperrors.IOFailure{Path: d, Err: err}
		}
	}
	return nil
}

func destPath(snapshotRoot string, e *manifest.Entry) string {
	return filepath.Join(snapshotRoot, e.Path)
}
