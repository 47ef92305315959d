package manifest

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ltp-backup/ltp/internal/pathescape"
)

// Emit writes m to w in the file_list grammar: a "hash" directive followed
// by one "p1" line per entry in pre-order depth-first order. The root
// directory itself is never emitted, matching spec §4.3.
func Emit(w io.Writer, m *Manifest) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "hash %s\n", m.HashAlgorithm); err != nil {
		return err
	}

	err := Walk(m.Root, func(e *Entry) error {
		return emitEntry(bw, e)
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

func emitEntry(w io.Writer, e *Entry) error {
	flags := "-"
	if e.Metadata.Flags != nil {
		flags = fmt.Sprintf("%d", *e.Metadata.Flags)
	}
	hash := e.DataHash
	if hash == "" {
		hash = "-"
	}
	_, err := fmt.Fprintf(w, "p1 %d %d %d %d %s %s %s %s %s\n",
		e.Metadata.Mode,
		e.Metadata.UID,
		e.Metadata.GID,
		e.Metadata.Size,
		formatTime(e.Metadata.Atime),
		formatTime(e.Metadata.Mtime),
		flags,
		hash,
		pathescape.Escape(e.Path),
	)
	return err
}

// formatTime renders a timestamp with nine fractional digits, per spec §4.3
// emit rules.
func formatTime(t float64) string {
	return fmt.Sprintf("%.9f", t)
}
