package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkSnapshot(t *testing.T, target, name string, incomplete bool) {
	t.Helper()
	dir := name
	if incomplete {
		dir += IncompleteSuffix
	}
	if err := os.MkdirAll(filepath.Join(target, dir), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestListPartitionsCompleteAndIncomplete(t *testing.T) {
	target := t.TempDir()
	mkSnapshot(t, target, "2012-04-01_120000", false)
	mkSnapshot(t, target, "2012-04-02_120000", false)
	mkSnapshot(t, target, "2012-04-03_120000", true)
	if err := os.WriteFile(filepath.Join(target, "not-a-snapshot.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := List(target)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cat.Complete) != 2 {
		t.Fatalf("Complete = %v", cat.Complete)
	}
	if len(cat.Incomplete) != 1 || cat.Incomplete[0] != "2012-04-03_120000" {
		t.Fatalf("Incomplete = %v", cat.Incomplete)
	}
}

func TestResolveOrdinals(t *testing.T) {
	names := []string{
		"2012-04-01_120000",
		"2012-04-15_120000",
		"2012-09-01_120000",
		"2012-09-15_120000",
	}
	now := time.Date(2012, 9, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		spec string
		want string
	}{
		{"", names[3]},
		{"last", names[3]},
		{"previous", names[2]},
		{"first", names[0]},
		{"-2", names[2]},
		{"2012-09", names[3]},
	}
	for _, c := range cases {
		got, err := Resolve(names, c.spec, now)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", c.spec, err)
		}
		if got != c.want {
			t.Fatalf("Resolve(%q) = %q, want %q", c.spec, got, c.want)
		}
	}
}

func TestResolveRelativeWeekAgo(t *testing.T) {
	names := []string{
		"2012-09-01_120000",
		"2012-09-10_120000",
		"2012-09-19_120000",
		"2012-09-20_120000",
	}
	now := time.Date(2012, 9, 20, 12, 0, 0, 0, time.UTC)

	got, err := Resolve(names, "1 week ago", now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "2012-09-10_120000" {
		t.Fatalf("Resolve(1 week ago) = %q", got)
	}
}

func TestResolveOutOfRangeFails(t *testing.T) {
	names := []string{"2012-04-01_120000"}
	if _, err := Resolve(names, "-5", time.Now()); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}

func TestResolveEmptyCatalogFails(t *testing.T) {
	if _, err := Resolve(nil, "last", time.Now()); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
}

func TestResolveUnrecognizedFails(t *testing.T) {
	names := []string{"2012-04-01_120000"}
	if _, err := Resolve(names, "not a timespec at all", time.Now()); err == nil {
		t.Fatalf("expected error for unrecognized timespec")
	}
}
