package restore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/manifest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// buildSnapshot lays out a tiny snapshot directory on disk and returns a
// manifest describing it, rooted at snapshotDir.
func buildSnapshot(t *testing.T) (*manifest.Manifest, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "world")

	m, err := manifest.New("SHA-256")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.CurrentRoot = dir

	manifest.EnsureDir(m.Root, "/sub")
	if !manifest.Attach(m.Root, "/", &manifest.Entry{
		Name: "a.txt", Kind: manifest.KindFile, Path: "/a.txt",
		Metadata: manifest.Metadata{Size: 5, Mode: 0o100644}, DataHash: "x",
	}) {
		t.Fatal("attach a.txt failed")
	}
	if !manifest.Attach(m.Root, "/sub", &manifest.Entry{
		Name: "b.txt", Kind: manifest.KindFile, Path: "/sub/b.txt",
		Metadata: manifest.Metadata{Size: 5, Mode: 0o100644}, DataHash: "y",
	}) {
		t.Fatal("attach b.txt failed")
	}
	return m, dir
}

func TestLsFileAndDirectory(t *testing.T) {
	m, _ := buildSnapshot(t)

	lines, errs := Ls(m, []string{"/a.txt", "/sub"}, false)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %+v", lines)
	}
	if lines[0].IsDir || lines[0].Path != "/a.txt" {
		t.Fatalf("lines[0] = %+v", lines[0])
	}
	if !lines[1].IsDir || len(lines[1].Children) != 1 || lines[1].Children[0] != "/sub/b.txt" {
		t.Fatalf("lines[1] = %+v", lines[1])
	}
}

func TestLsUnknownPathSuggestsFuzzyMatch(t *testing.T) {
	m, _ := buildSnapshot(t)

	_, errs := Ls(m, []string{"/a.tx"}, false)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	var nf *ltperrors.NotFoundError
	if !errAs(errs[0], &nf) {
		t.Fatalf("expected NotFoundError, got %T: %v", errs[0], errs[0])
	}
	if nf.Subject != "/a.tx" {
		t.Fatalf("Subject = %q", nf.Subject)
	}
	if !strings.Contains(nf.Msg, "/a.txt") {
		t.Fatalf("Msg = %q, want a suggestion of /a.txt", nf.Msg)
	}
}

func TestCpFileCopiesContentAndMode(t *testing.T) {
	m, _ := buildSnapshot(t)
	out := t.TempDir()
	dst := filepath.Join(out, "copy.txt")

	if err := Cp(m, "/a.txt", dst, false); err != nil {
		t.Fatalf("Cp: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("content = %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("mode = %o, want 0644", info.Mode().Perm())
	}
}

func TestCpDirectoryRequiresRecursive(t *testing.T) {
	m, _ := buildSnapshot(t)
	out := t.TempDir()

	err := Cp(m, "/sub", filepath.Join(out, "sub"), false)
	if err == nil {
		t.Fatal("expected error without --recursive")
	}
}

func TestCpDirectoryRecursiveCopiesTree(t *testing.T) {
	m, _ := buildSnapshot(t)
	out := t.TempDir()
	dst := filepath.Join(out, "sub")

	if err := Cp(m, "/sub", dst, true); err != nil {
		t.Fatalf("Cp: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "b.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("content = %q", got)
	}
}

func TestCpIntoExistingDirectoryAppendsBasename(t *testing.T) {
	m, _ := buildSnapshot(t)
	out := t.TempDir()

	if err := Cp(m, "/a.txt", out, false); err != nil {
		t.Fatalf("Cp: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("content = %q", got)
	}
}

func TestCatStreamsContent(t *testing.T) {
	m, _ := buildSnapshot(t)
	var buf bytes.Buffer
	if err := Cat(m, "/a.txt", &buf); err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if buf.String() != "hello" {
		t.Fatalf("content = %q", buf.String())
	}
}

func TestCatRejectsDirectory(t *testing.T) {
	m, _ := buildSnapshot(t)
	var buf bytes.Buffer
	if err := Cat(m, "/sub", &buf); err == nil {
		t.Fatal("expected error for directory")
	}
}

// errAs is a tiny errors.As wrapper kept local to avoid importing errors
// just for this helper's single use site.
func errAs(err error, target **ltperrors.NotFoundError) bool {
	nf, ok := err.(*ltperrors.NotFoundError)
	if !ok {
		return false
	}
	*target = nf
	return true
}
