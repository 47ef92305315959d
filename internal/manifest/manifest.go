package manifest

import "github.com/ltp-backup/ltp/internal/hashprovider"

// Manifest is the full in-memory representation of a snapshot's file_list:
// the entry tree rooted at Root, plus the bookkeeping needed to build new
// entries (current/reference on-disk paths) and to hash file content
// (the configured algorithm, from which NewHasher mints fresh Provider
// values).
type Manifest struct {
	Root *Entry

	// CurrentRoot is the on-disk path of the snapshot this manifest
	// describes. It is empty for a freshly indexed source manifest until
	// the engine sets it to the snapshot directory being built.
	CurrentRoot string

	// ReferenceRoot is the prior snapshot's on-disk path, used by the
	// engine to locate hard-link sources. Empty if there is no prior
	// snapshot (first backup).
	ReferenceRoot string

	// HashAlgorithm is the canonical algorithm name (e.g. "SHA-256").
	HashAlgorithm string
}

// New creates an empty manifest using the named hash algorithm. Returns a
// *hashprovider.ConfigError if the name is unrecognized.
func New(hashAlgorithm string) (*Manifest, error) {
	canon, err := hashprovider.CanonicalName(hashAlgorithm)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		Root:          NewRoot(),
		HashAlgorithm: canon,
	}, nil
}

// NewHasher mints a fresh hashprovider.Provider for this manifest's
// algorithm. Call it once per file: Provider state is not reusable.
func (m *Manifest) NewHasher() (hashprovider.Provider, error) {
	return hashprovider.New(m.HashAlgorithm)
}

// FileCount returns the number of file entries (directories excluded).
func (m *Manifest) FileCount() int {
	n := 0
	_ = Walk(m.Root, func(e *Entry) error {
		if !e.IsDir() {
			n++
		}
		return nil
	})
	return n
}

// TotalSize returns the sum of file sizes across the manifest.
func (m *Manifest) TotalSize() int64 {
	return TotalFileSize(m.Root)
}

// Lookup finds the entry at an absolute path, or nil.
func (m *Manifest) Lookup(path string) *Entry {
	return Lookup(m.Root, path)
}
