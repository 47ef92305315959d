package manifest

import (
	"bytes"
	"testing"
)

func buildSampleManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := New("SHA-256")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := EnsureDir(m.Root, "/a")
	a.Metadata = Metadata{Mode: 0o040755, UID: 1000, GID: 1000, Atime: 1.5, Mtime: 2.25}

	flags := uint32(7)
	file := &Entry{
		Name: "b.txt",
		Kind: KindFile,
		Path: "/a/b.txt",
		Metadata: Metadata{
			Size: 5, Mode: 0o100644, UID: 1000, GID: 1000,
			Atime: 10.123456789, Mtime: 20.987654321, Flags: &flags,
		},
		DataHash: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
	}
	if !Attach(m.Root, "/a", file) {
		t.Fatalf("attach failed")
	}

	c := EnsureDir(m.Root, "/a/c")
	c.Metadata = Metadata{Mode: 0o040700}
	return m
}

func TestRoundTripManifest(t *testing.T) {
	m := buildSampleManifest(t)

	var buf bytes.Buffer
	if err := Emit(&buf, m); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	parsed, err := Parse(&buf, "file_list", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.HashAlgorithm != m.HashAlgorithm {
		t.Fatalf("HashAlgorithm = %q, want %q", parsed.HashAlgorithm, m.HashAlgorithm)
	}

	origFile := Lookup(m.Root, "/a/b.txt")
	gotFile := Lookup(parsed.Root, "/a/b.txt")
	if gotFile == nil {
		t.Fatalf("parsed manifest missing /a/b.txt")
	}
	if gotFile.DataHash != origFile.DataHash {
		t.Fatalf("DataHash = %q, want %q", gotFile.DataHash, origFile.DataHash)
	}
	if gotFile.Metadata.Size != origFile.Metadata.Size {
		t.Fatalf("Size = %d, want %d", gotFile.Metadata.Size, origFile.Metadata.Size)
	}
	if !SameTime(gotFile.Metadata.Mtime, origFile.Metadata.Mtime) {
		t.Fatalf("Mtime = %v, want %v", gotFile.Metadata.Mtime, origFile.Metadata.Mtime)
	}
	if *gotFile.Metadata.Flags != *origFile.Metadata.Flags {
		t.Fatalf("Flags = %v, want %v", *gotFile.Metadata.Flags, *origFile.Metadata.Flags)
	}

	origDir := Lookup(m.Root, "/a/c")
	gotDir := Lookup(parsed.Root, "/a/c")
	if gotDir == nil || !gotDir.IsDir() {
		t.Fatalf("parsed manifest missing directory /a/c")
	}
	if gotDir.Metadata.Mode != origDir.Metadata.Mode {
		t.Fatalf("dir Mode = %o, want %o", gotDir.Metadata.Mode, origDir.Metadata.Mode)
	}
}

func TestRootNeverEmitted(t *testing.T) {
	m := buildSampleManifest(t)
	var buf bytes.Buffer
	if err := Emit(&buf, m); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte(" / \n")) {
		t.Fatalf("root directory was emitted")
	}
}

func TestEmptyManifestRoundTrip(t *testing.T) {
	m, err := New("NONE")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	if err := Emit(&buf, m); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	parsed, err := Parse(&buf, "file_list", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Root.Children) != 0 {
		t.Fatalf("expected empty manifest, got %d children", len(parsed.Root.Children))
	}
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	input := "# a comment\n\nhash MD5\n# another\np1 33188 0 0 0 0.000000000 0.000000000 - - /foo\n"
	m, err := Parse(bytes.NewBufferString(input), "file_list", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.HashAlgorithm != "MD5" {
		t.Fatalf("HashAlgorithm = %q, want MD5", m.HashAlgorithm)
	}
	if Lookup(m.Root, "/foo") == nil {
		t.Fatalf("missing /foo entry")
	}
}

func TestParseUnknownDirectiveFails(t *testing.T) {
	_, err := Parse(bytes.NewBufferString("bogus 1 2 3\n"), "file_list", nil)
	if err == nil {
		t.Fatalf("expected error for unknown directive")
	}
}

func TestParseMissingParentFails(t *testing.T) {
	_, err := Parse(bytes.NewBufferString("p1 33188 0 0 0 0 0 - - /a/b.txt\n"), "file_list", nil)
	if err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestParseEscapedPath(t *testing.T) {
	input := "p1 33188 0 0 0 0 0 - - /a\\ b.txt\n"
	m, err := Parse(bytes.NewBufferString(input), "file_list", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if Lookup(m.Root, "/a b.txt") == nil {
		t.Fatalf("missing escaped path entry /a b.txt")
	}
}

func TestDuplicateHashLastWins(t *testing.T) {
	input := "hash MD5\nhash SHA-256\n"
	var warnings []string
	m, err := Parse(bytes.NewBufferString(input), "file_list", func(s string) { warnings = append(warnings, s) })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.HashAlgorithm != "SHA-256" {
		t.Fatalf("HashAlgorithm = %q, want SHA-256", m.HashAlgorithm)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
}
