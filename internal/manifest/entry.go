// Package manifest implements the in-memory snapshot tree: a root directory
// entry with nested directories and files, each carrying a metadata block
// and a content hash, plus the textual file_list parser/emitter and the
// tree-diff primitive shared by every compare operation.
package manifest

import "math"

// Kind tags a manifest Entry as a directory or a regular file/symlink. It is
// a tagged variant rather than an interface hierarchy: directories and files
// share the same struct and differ only in which fields are meaningful,
// per the design note against deep inheritance for this shape.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Metadata is the common attribute block every entry carries.
type Metadata struct {
	Size  int64   // bytes; always 0 for directories
	Mode  uint32  // POSIX file-type bits + permissions + setuid/setgid/sticky
	UID   uint32
	GID   uint32
	Atime float64 // seconds since epoch, sub-second precision
	Mtime float64 // seconds since epoch, sub-second precision
	Flags *uint32 // BSD file flags; nil means "unknown/absent"
}

// timeTolerance is the comparison tolerance for Atime/Mtime, per spec: two
// timestamps are considered equal if they differ by less than 1e-5 seconds.
const timeTolerance = 1e-5

// SameTime reports whether a and b are equal within the manifest's
// tolerance for sub-second timestamp comparison.
func SameTime(a, b float64) bool {
	return math.Abs(a-b) < timeTolerance
}

// Entry is one node of a manifest tree: a file or a directory. Name is the
// final path component; Parent is a non-owning back-reference set by
// Attach and EnsureDir. Path is stored on the entry by whoever builds it
// (EnsureDir, the indexer, the parser); Attach does not compute it.
type Entry struct {
	Name     string
	Kind     Kind
	Parent   *Entry
	Path     string // full path, e.g. "/a/b/c.txt"; cached, equals ancestry join
	Metadata Metadata

	// DataHash is the hex digest of file content (or "-" if not computed).
	// Directories carry "-" when parsed and "" when built in memory; Emit
	// writes an empty DataHash as "-".
	DataHash string

	// Changed is set by the snapshot engine during Create to mark a file
	// that must be copied rather than hard-linked. It is transient: never
	// parsed from or emitted to a manifest file.
	Changed bool

	// Children holds this directory's direct children keyed by name.
	// Nil for files.
	Children map[string]*Entry
}

// NewRoot creates an empty root directory entry named "/".
func NewRoot() *Entry {
	return &Entry{
		Name:     "/",
		Kind:     KindDir,
		Path:     "/",
		Children: make(map[string]*Entry),
	}
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool { return e.Kind == KindDir }

// IsSymlink reports whether the entry's stored POSIX mode bits mark it as a
// symbolic link (S_IFLNK). Manifests don't carry a separate symlink Kind —
// spec §3 treats a symlink as a file entry whose hash is taken over its
// target string — so this inspects the mode bits instead.
func (e *Entry) IsSymlink() bool {
	const sIFMT, sIFLNK = 0o170000, 0o120000
	return e.Kind == KindFile && e.Metadata.Mode&sIFMT == sIFLNK
}
