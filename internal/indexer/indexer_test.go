package indexer

import (
	"os"
	"path/filepath"
	"testing"

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

func TestIndexBasicTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "a", "b.txt"), "hello")
	if err := os.MkdirAll(filepath.Join(src, "a", "c"), 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := Index(Options{Includes: []string{src}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	file := manifest.Lookup(m.Root, filepath.Join(src, "a", "b.txt"))
	if file == nil {
		t.Fatalf("missing file entry")
	}
	if file.Metadata.Size != 5 {
		t.Fatalf("Size = %d, want 5", file.Metadata.Size)
	}

	dir := manifest.Lookup(m.Root, filepath.Join(src, "a", "c"))
	if dir == nil || !dir.IsDir() {
		t.Fatalf("missing directory entry for a/c")
	}
}

func TestIndexExcludesFullPath(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "keep.txt"), "x")
	writeFile(t, filepath.Join(src, "skip.log"), "x")

	m, err := Index(Options{
		Includes: []string{src},
		Excludes: []string{"*.log"},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	if manifest.Lookup(m.Root, filepath.Join(src, "skip.log")) != nil {
		t.Fatalf("excluded file was indexed")
	}
	if manifest.Lookup(m.Root, filepath.Join(src, "keep.txt")) == nil {
		t.Fatalf("sibling file was wrongly excluded")
	}
}

func TestIndexExcludesDirectoryEntirely(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "node_modules", "pkg", "index.js"), "x")
	writeFile(t, filepath.Join(src, "main.go"), "x")

	m, err := Index(Options{
		Includes: []string{src},
		Excludes: []string{filepath.Join(src, "node_modules")},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	if manifest.Lookup(m.Root, filepath.Join(src, "node_modules")) != nil {
		t.Fatalf("excluded directory was indexed")
	}
	if manifest.Lookup(m.Root, filepath.Join(src, "node_modules", "pkg", "index.js")) != nil {
		t.Fatalf("file under excluded directory was indexed")
	}
	if manifest.Lookup(m.Root, filepath.Join(src, "main.go")) == nil {
		t.Fatalf("sibling file missing")
	}
}

func TestIndexNonDirectoryIncludeFails(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "file.txt")
	writeFile(t, f, "x")

	_, err := Index(Options{Includes: []string{f}})
	if err == nil {
		t.Fatalf("expected error for non-directory include")
	}
}

func TestIndexSymlinkRecordedAsFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "target.txt"), "hi")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(src, "link")
	if err := os.Symlink("target.txt", link); err != nil {
		t.Fatal(err)
	}

	m, err := Index(Options{Includes: []string{src}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	entry := manifest.Lookup(m.Root, link)
	if entry == nil {
		t.Fatalf("symlink not indexed")
	}
	if entry.IsDir() {
		t.Fatalf("symlink recorded as directory")
	}
}
