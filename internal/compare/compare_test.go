package compare

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ltp-backup/ltp/internal/indexer"
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

func buildManifest(t *testing.T, algorithm string, files map[string]string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New(algorithm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for path, content := range files {
		parent, name := splitTestPath(path)
		manifest.EnsureDir(m.Root, parent)
		entry := &manifest.Entry{
			Name:     name,
			Kind:     manifest.KindFile,
			Path:     path,
			Metadata: manifest.Metadata{Size: int64(len(content)), Mode: 0o100644},
			DataHash: content,
		}
		if !manifest.Attach(m.Root, parent, entry) {
			t.Fatalf("attach %s failed", path)
		}
	}
	return m
}

func splitTestPath(path string) (string, string) {
	idx := len(path) - 1
	for idx > 0 && path[idx] != '/' {
		idx--
	}
	if idx == 0 {
		return "/", path[1:]
	}
	return path[:idx], path[idx+1:]
}

func TestChangesClassifiesEntries(t *testing.T) {
	first := buildManifest(t, "SHA-256", map[string]string{
		"/a.txt": "aaa",
		"/b.txt": "bbb",
	})
	second := buildManifest(t, "SHA-256", map[string]string{
		"/a.txt": "aaa",
		"/c.txt": "ccc",
	})

	lines, err := Changes(first, second, false)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}

	got := map[string]Status{}
	for _, l := range lines {
		got[l.Path] = l.Status
	}
	if got["/b.txt"] != StatusAdded {
		t.Fatalf("/b.txt = %v, want added", got["/b.txt"])
	}
	if got["/c.txt"] != StatusRemoved {
		t.Fatalf("/c.txt = %v, want removed", got["/c.txt"])
	}
	if _, ok := got["/a.txt"]; ok {
		t.Fatalf("unchanged /a.txt should be omitted without includeSame")
	}
}

func TestChangesIncludeSame(t *testing.T) {
	first := buildManifest(t, "SHA-256", map[string]string{"/a.txt": "aaa"})
	second := buildManifest(t, "SHA-256", map[string]string{"/a.txt": "aaa"})

	lines, err := Changes(first, second, true)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(lines) != 1 || lines[0].Status != StatusSame {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestIntegrityDetectsCorruptionAndMissing(t *testing.T) {
	snapshotDir := t.TempDir()
	writeFile(t, filepath.Join(snapshotDir, "ok.txt"), "hello")
	writeFile(t, filepath.Join(snapshotDir, "bad.txt"), "tampered")

	m, err := manifest.New("SHA-256")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.CurrentRoot = snapshotDir

	okHash, err := hashFile(filepath.Join(snapshotDir, "ok.txt"), "SHA-256")
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	entries := []*manifest.Entry{
		{Name: "ok.txt", Kind: manifest.KindFile, Path: "/ok.txt", Metadata: manifest.Metadata{Size: 5}, DataHash: okHash},
		{Name: "bad.txt", Kind: manifest.KindFile, Path: "/bad.txt", Metadata: manifest.Metadata{Size: 8}, DataHash: "0000000000000000000000000000000000000000000000000000000000000000"},
		{Name: "gone.txt", Kind: manifest.KindFile, Path: "/gone.txt", Metadata: manifest.Metadata{Size: 1}, DataHash: "deadbeef"},
	}
	for _, e := range entries {
		if !manifest.Attach(m.Root, "/", e) {
			t.Fatalf("attach %s", e.Path)
		}
	}

	lines, err := Integrity(m)
	if err != nil {
		t.Fatalf("Integrity: %v", err)
	}
	status := map[string]IntegrityStatus{}
	for _, l := range lines {
		status[l.Path] = l.Status
	}
	if status["/ok.txt"] != IntegrityOK {
		t.Fatalf("/ok.txt = %v", status["/ok.txt"])
	}
	if status["/bad.txt"] != IntegrityCorrupted {
		t.Fatalf("/bad.txt = %v", status["/bad.txt"])
	}
	if status["/gone.txt"] != IntegrityMissing {
		t.Fatalf("/gone.txt = %v", status["/gone.txt"])
	}
}

func TestIntegrityDetectsTamperedSymlink(t *testing.T) {
	snapshotDir := t.TempDir()
	linkPath := filepath.Join(snapshotDir, "link")
	if err := os.Symlink("original-target", linkPath); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	m, err := manifest.New("SHA-256")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.CurrentRoot = snapshotDir

	okHash, err := hashSymlink(linkPath, "SHA-256")
	if err != nil {
		t.Fatalf("hashSymlink: %v", err)
	}
	const sIFLNK = 0o120000
	entries := []*manifest.Entry{
		{Name: "link", Kind: manifest.KindFile, Path: "/link", Metadata: manifest.Metadata{Mode: sIFLNK | 0o777}, DataHash: okHash},
	}
	for _, e := range entries {
		if !manifest.Attach(m.Root, "/", e) {
			t.Fatalf("attach %s", e.Path)
		}
	}

	lines, err := Integrity(m)
	if err != nil {
		t.Fatalf("Integrity: %v", err)
	}
	if len(lines) != 1 || lines[0].Status != IntegrityOK {
		t.Fatalf("untampered symlink = %+v, want OK", lines)
	}

	if err := os.Remove(linkPath); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("tampered-target", linkPath); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	lines, err = Integrity(m)
	if err != nil {
		t.Fatalf("Integrity: %v", err)
	}
	if len(lines) != 1 || lines[0].Status != IntegrityCorrupted {
		t.Fatalf("tampered symlink = %+v, want CORRUPTED", lines)
	}
}

func TestVerifyDetectsSourceModification(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "hello")

	snapM, err := manifest.New("SHA-256")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hash, err := hashFile(filepath.Join(src, "a.txt"), "SHA-256")
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	// The snapshot records the file's real stat metadata (mtime, owner),
	// as a snapshot of an unchanged file would.
	indexed, err := indexer.Index(indexer.Options{Includes: []string{src}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	entry := &manifest.Entry{
		Name: "a.txt", Kind: manifest.KindFile,
		Path:     filepath.Join(src, "a.txt"),
		Metadata: indexed.Lookup(filepath.Join(src, "a.txt")).Metadata,
		DataHash: hash,
	}
	parent := filepath.Dir(entry.Path)
	manifest.EnsureDir(snapM.Root, parent)
	if !manifest.Attach(snapM.Root, parent, entry) {
		t.Fatalf("attach failed")
	}

	// Unchanged: Verify should report no differences.
	live, err := indexer.Index(indexer.Options{Includes: []string{src}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	lines, err := Verify(snapM, live.Root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no diffs, got %+v", lines)
	}

	// Now modify the source and verify again.
	writeFile(t, filepath.Join(src, "a.txt"), "hello world")
	live2, err := indexer.Index(indexer.Options{Includes: []string{src}})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	lines2, err := Verify(snapM, live2.Root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(lines2) != 1 || lines2[0].Status != StatusChanged {
		t.Fatalf("expected one changed entry, got %+v", lines2)
	}
}

func TestLongDiffBinaryFallback(t *testing.T) {
	out := LongDiff([]byte{0, 1, 2}, []byte("text"))
	if out != "  (binary content differs)" {
		t.Fatalf("LongDiff = %q", out)
	}
}

func TestLongDiffTextShowsChangedLines(t *testing.T) {
	out := LongDiff([]byte("a\nb\nc\n"), []byte("a\nx\nc\n"))
	if out == "" {
		t.Fatalf("expected non-empty diff output")
	}
}
