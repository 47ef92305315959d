package manifest

import (
	"sort"
	"strings"
)

// splitPath splits an absolute manifest path into its parent path and final
// component. splitPath("/a/b/c") = ("/a/b", "c"). splitPath("/a") = ("/", "a").
func splitPath(path string) (parent, name string) {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/", trimmed[idx+1:]
	}
	return trimmed[:idx], trimmed[idx+1:]
}

// Lookup finds the entry at path relative to root's tree, starting at root.
// Returns nil if no such entry exists.
func Lookup(root *Entry, path string) *Entry {
	if path == "" || path == "/" {
		return root
	}
	components := strings.Split(strings.Trim(path, "/"), "/")
	cur := root
	for _, c := range components {
		if cur == nil || !cur.IsDir() {
			return nil
		}
		cur = cur.Children[c]
	}
	return cur
}

// EnsureDir walks from root down to path, creating any missing intermediate
// directory entries along the way (with zero metadata), and returns the
// directory entry at path. Used by the indexer to materialize an include
// location's ancestry.
func EnsureDir(root *Entry, path string) *Entry {
	if path == "" || path == "/" {
		return root
	}
	components := strings.Split(strings.Trim(path, "/"), "/")
	cur := root
	built := ""
	for _, c := range components {
		built += "/" + c
		child, ok := cur.Children[c]
		if !ok {
			child = &Entry{
				Name:     c,
				Kind:     KindDir,
				Parent:   cur,
				Path:     built,
				Children: make(map[string]*Entry),
			}
			cur.Children[c] = child
		}
		cur = child
	}
	return cur
}

// Attach inserts entry as a child of the directory at parentPath, which
// must already exist. Used by both the indexer (building from live stat)
// and the parser (building from a stored file_list); the parser surfaces a
// missing parent as a *ParseError, while the indexer is expected to have
// pre-created ancestry with EnsureDir and never hits this case.
func Attach(root *Entry, parentPath string, entry *Entry) (ok bool) {
	parent := Lookup(root, parentPath)
	if parent == nil || !parent.IsDir() {
		return false
	}
	entry.Parent = parent
	if parent.Children == nil {
		parent.Children = make(map[string]*Entry)
	}
	parent.Children[entry.Name] = entry
	return true
}

// SortedChildren returns a directory's children ordered by name, so that
// emission and listings are deterministic regardless of map iteration order.
func SortedChildren(dir *Entry) []*Entry {
	if dir == nil || dir.Children == nil {
		return nil
	}
	out := make([]*Entry, 0, len(dir.Children))
	for _, c := range dir.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Walk visits every entry beneath root (not including root itself) in
// pre-order depth-first order: a directory before its children, children in
// sorted-name order. This is both the manifest emission order (spec §4.3)
// and the snapshot engine's materialization order (spec §4.5: parents
// before children).
func Walk(root *Entry, visit func(*Entry) error) error {
	for _, child := range SortedChildren(root) {
		if err := visit(child); err != nil {
			return err
		}
		if child.IsDir() {
			if err := Walk(child, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// Count returns the number of entries beneath root (directories and files,
// not counting root itself).
func Count(root *Entry) int {
	n := 0
	_ = Walk(root, func(e *Entry) error {
		n++
		return nil
	})
	return n
}

// TotalFileSize sums Metadata.Size across every file entry beneath root.
func TotalFileSize(root *Entry) int64 {
	var total int64
	_ = Walk(root, func(e *Entry) error {
		if !e.IsDir() {
			total += e.Metadata.Size
		}
		return nil
	})
	return total
}
