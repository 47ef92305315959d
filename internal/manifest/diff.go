package manifest

// DirDiff is one directory's worth of per-entry comparison results: each of
// Dirs/Files is split into same/changed/added/removed relative to a "first"
// and "second" tree. Directories are never "changed" (compared by presence
// only); only Files ever populates Changed.
type DirDiff struct {
	Path string

	DirsSame    []string
	DirsAdded   []string
	DirsRemoved []string

	FilesSame    []string
	FilesChanged []string
	FilesAdded   []string
	FilesRemoved []string
}

// Diff compares two directory trees rooted at first and second (which must
// have equal Path, i.e. be the same logical directory in two manifests) and
// returns one DirDiff per directory visited, recursing into directories
// present on both sides. Added/removed directories are recorded as such in
// their parent's DirDiff and then emit one further DirDiff enumerating their
// entire contents (so nothing beneath an added/removed subtree is silently
// skipped).
//
// Two file entries are "same" iff their metadata matches (UID, GID, mode,
// size, mtime within tolerance, flags) and, only when both sides carry a
// digest under the same algorithm, their digests also match; otherwise they
// are "changed". sameAlgorithm should be true when first and second come
// from manifests with equal HashAlgorithm — hashes are never compared when
// false, since they aren't comparable.
func Diff(first, second *Entry, sameAlgorithm bool) []DirDiff {
	var out []DirDiff
	diffInto(first, second, sameAlgorithm, &out)
	return out
}

func diffInto(first, second *Entry, sameAlgorithm bool, out *[]DirDiff) {
	d := DirDiff{Path: first.Path}

	firstChildren := SortedChildren(first)
	secondByName := make(map[string]*Entry, len(second.Children))
	for _, c := range SortedChildren(second) {
		secondByName[c.Name] = c
	}

	var recurseDirs []*Entry
	seen := make(map[string]bool, len(firstChildren))

	for _, a := range firstChildren {
		seen[a.Name] = true
		b, ok := secondByName[a.Name]
		if !ok {
			if a.IsDir() {
				d.DirsAdded = append(d.DirsAdded, a.Path)
				emitWholeSubtree(a, true, out)
			} else {
				d.FilesAdded = append(d.FilesAdded, a.Path)
			}
			continue
		}
		if a.IsDir() != b.IsDir() {
			// Kind mismatch: treat as added (first) + removed (second).
			if a.IsDir() {
				d.DirsAdded = append(d.DirsAdded, a.Path)
				emitWholeSubtree(a, true, out)
			} else {
				d.FilesAdded = append(d.FilesAdded, a.Path)
			}
			if b.IsDir() {
				d.DirsRemoved = append(d.DirsRemoved, b.Path)
				emitWholeSubtree(b, false, out)
			} else {
				d.FilesRemoved = append(d.FilesRemoved, b.Path)
			}
			continue
		}
		if a.IsDir() {
			d.DirsSame = append(d.DirsSame, a.Path)
			recurseDirs = append(recurseDirs, a)
		} else if sameFile(a, b, sameAlgorithm) {
			d.FilesSame = append(d.FilesSame, a.Path)
		} else {
			d.FilesChanged = append(d.FilesChanged, a.Path)
		}
	}

	for _, b := range SortedChildren(second) {
		if seen[b.Name] {
			continue
		}
		if b.IsDir() {
			d.DirsRemoved = append(d.DirsRemoved, b.Path)
			emitWholeSubtree(b, false, out)
		} else {
			d.FilesRemoved = append(d.FilesRemoved, b.Path)
		}
	}

	*out = append(*out, d)

	// Recurse into directories present (and present as directories) on both
	// sides; the sibling lookup above already proved they have equal paths.
	for _, a := range recurseDirs {
		b := secondByName[a.Name]
		diffInto(a, b, sameAlgorithm, out)
	}
}

// emitWholeSubtree records every entry beneath an added/removed directory as
// its own DirDiff, so compare consumers see the full contents rather than
// just the top-level directory name. isAdded selects which side's bucket
// each descendant lands in.
func emitWholeSubtree(dir *Entry, isAdded bool, out *[]DirDiff) {
	d := DirDiff{Path: dir.Path}
	for _, c := range SortedChildren(dir) {
		if c.IsDir() {
			if isAdded {
				d.DirsAdded = append(d.DirsAdded, c.Path)
			} else {
				d.DirsRemoved = append(d.DirsRemoved, c.Path)
			}
		} else {
			if isAdded {
				d.FilesAdded = append(d.FilesAdded, c.Path)
			} else {
				d.FilesRemoved = append(d.FilesRemoved, c.Path)
			}
		}
	}
	*out = append(*out, d)
	for _, c := range SortedChildren(dir) {
		if c.IsDir() {
			emitWholeSubtree(c, isAdded, out)
		}
	}
}

func sameFile(a, b *Entry, sameAlgorithm bool) bool {
	if a.Metadata.UID != b.Metadata.UID || a.Metadata.GID != b.Metadata.GID {
		return false
	}
	if a.Metadata.Mode != b.Metadata.Mode {
		return false
	}
	if a.Metadata.Size != b.Metadata.Size {
		return false
	}
	if !SameTime(a.Metadata.Mtime, b.Metadata.Mtime) {
		return false
	}
	if !sameFlags(a.Metadata.Flags, b.Metadata.Flags) {
		return false
	}
	if sameAlgorithm && a.DataHash != "-" && b.DataHash != "-" {
		if a.DataHash != b.DataHash {
			return false
		}
	}
	return true
}

func sameFlags(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
