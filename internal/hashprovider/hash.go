// Package hashprovider implements the streaming content hashers used by the
// manifest format: a null hash, a zlib-compatible CRC32, and the standard
// cryptographic digests. Selection is by case-insensitive name.
package hashprovider

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"
)

// Provider is a streaming content hasher. Update may be called any number of
// times before HexDigest; HexDigest does not reset the underlying state.
type Provider interface {
	Update(p []byte)
	HexDigest() string
}

// Name identifies a supported hash algorithm, matched case-insensitively.
const (
	None   = "NONE"
	CRC32  = "CRC32"
	MD5    = "MD5"
	SHA256 = "SHA-256"
	SHA512 = "SHA-512"
)

// New constructs a fresh Provider for the named algorithm. Unknown names
// fail with a *ConfigError.
func New(name string) (Provider, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case None:
		return noneProvider{}, nil
	case CRC32:
		return &crcProvider{crc: crc32.NewIEEE()}, nil
	case MD5:
		return &stdProvider{h: md5.New()}, nil
	case SHA256:
		return &stdProvider{h: sha256.New()}, nil
	case SHA512:
		return &stdProvider{h: sha512.New()}, nil
	default:
		return nil, &ConfigError{Name: name}
	}
}

// CanonicalName normalizes a hash algorithm name to its canonical spelling,
// failing the same way New does for unknown names.
func CanonicalName(name string) (string, error) {
	p, err := New(name)
	if err != nil {
		return "", err
	}
	switch p.(type) {
	case noneProvider:
		return None, nil
	case *crcProvider:
		return CRC32, nil
	default:
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case MD5:
			return MD5, nil
		case SHA256:
			return SHA256, nil
		case SHA512:
			return SHA512, nil
		}
	}
	return "", &ConfigError{Name: name}
}

// ConfigError reports an unrecognized hash algorithm name.
type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unknown hash algorithm %q", e.Name)
}

// noneProvider is the NONE algorithm: it discards all input and always
// reports "-", matching the manifest's "not computed" sentinel.
type noneProvider struct{}

func (noneProvider) Update(p []byte)   {}
func (noneProvider) HexDigest() string { return "-" }

// crcProvider wraps hash/crc32 (IEEE / zlib-compatible polynomial) and
// renders eight lowercase hex digits, matching common CRC32 tooling output.
type crcProvider struct {
	crc hash.Hash32
}

func (p *crcProvider) Update(b []byte) { p.crc.Write(b) }

func (p *crcProvider) HexDigest() string {
	return fmt.Sprintf("%08x", p.crc.Sum32())
}

// stdProvider wraps a standard library hash.Hash (MD5, SHA-256, SHA-512).
type stdProvider struct {
	h hash.Hash
}

func (p *stdProvider) Update(b []byte) { p.h.Write(b) }

func (p *stdProvider) HexDigest() string {
	return hex.EncodeToString(p.h.Sum(nil))
}
