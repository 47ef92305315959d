package compare

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LongDiff renders a unified, line-oriented diff between a changed file's
// two text contents, for the `--long` detail view of `verify`.
// Grounded on the teacher's `fst diff` command, which runs the same
// diffmatchpatch.New().DiffMain(...) character diff and then regroups it
// into printable lines; binary content (a NUL byte in the first 8KiB of
// either side, see isProbablyText) falls back to a one-line notice instead
// of garbage output.
func LongDiff(oldContent, newContent []byte) string {
	if !isProbablyText(oldContent) || !isProbablyText(newContent) {
		return "  (binary content differs)"
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(oldContent), string(newContent), true)

	var b strings.Builder
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		for i, line := range lines {
			if i == len(lines)-1 && line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				fmt.Fprintf(&b, "  %s\n", line)
			case diffmatchpatch.DiffDelete:
				fmt.Fprintf(&b, "- %s\n", line)
			case diffmatchpatch.DiffInsert:
				fmt.Fprintf(&b, "+ %s\n", line)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// isProbablyText rejects content carrying a NUL byte in its first 8KiB, the
// same heuristic git and most diff tools use to avoid treating binary
// content as text.
func isProbablyText(b []byte) bool {
	n := len(b)
	if n > 8192 {
		n = 8192
	}
	for _, c := range b[:n] {
		if c == 0 {
			return false
		}
	}
	return true
}
