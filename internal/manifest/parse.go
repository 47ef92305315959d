package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ltp-backup/ltp/internal/hashprovider"
	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/pathescape"
)

// Parse reads a textual file_list from r and builds the manifest tree.
// fileName is used only for error locations. A duplicate "hash" directive
// logs a warning via warn (which may be nil to discard it) and the last one
// wins, per spec §4.3.
func Parse(r io.Reader, fileName string, warn func(string)) (*Manifest, error) {
	m := &Manifest{Root: NewRoot()}
	hashSeen := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		tokens := tokenize(line)
		if len(tokens) == 0 {
			continue
		}

		directive := tokens[0]
		switch directive {
		case "hash":
			if len(tokens) != 2 {
				return nil, &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: "hash directive expects exactly one argument"}
			}
			canon, err := hashprovider.CanonicalName(tokens[1])
			if err != nil {
				return nil, &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: err.Error()}
			}
			if hashSeen && warn != nil {
				warn(fmt.Sprintf("%s:%d: duplicate hash directive, overriding previous value", fileName, lineNo))
			}
			m.HashAlgorithm = canon
			hashSeen = true

		case "p1":
			if len(tokens) != 10 {
				return nil, &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("p1 directive expects 9 fields, got %d", len(tokens)-1)}
			}
			entry, parentPath, err := parseEntry(tokens[1:])
			if err != nil {
				return nil, &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: err.Error()}
			}
			if !Attach(m.Root, parentPath, entry) {
				return nil, &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("parent directory %q not found for %q", parentPath, entry.Path)}
			}

		default:
			return nil, &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("unknown directive %q", directive)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: err.Error()}
	}
	if m.HashAlgorithm == "" {
		m.HashAlgorithm = hashprovider.None
	}
	return m, nil
}

// parseEntry builds an Entry (unattached) from a "p1" directive's fields:
// MODE UID GID SIZE ATIME MTIME FLAGS HASH PATH. Returns the entry and its
// parent path (PATH with the final component removed).
func parseEntry(fields []string) (*Entry, string, error) {
	mode, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return nil, "", fmt.Errorf("invalid MODE %q: %w", fields[0], err)
	}
	uid, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, "", fmt.Errorf("invalid UID %q: %w", fields[1], err)
	}
	gid, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, "", fmt.Errorf("invalid GID %q: %w", fields[2], err)
	}
	size, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid SIZE %q: %w", fields[3], err)
	}
	atime, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid ATIME %q: %w", fields[4], err)
	}
	mtime, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid MTIME %q: %w", fields[5], err)
	}
	var flags *uint32
	if fields[6] != "-" {
		f, err := strconv.ParseUint(fields[6], 10, 32)
		if err != nil {
			return nil, "", fmt.Errorf("invalid FLAGS %q: %w", fields[6], err)
		}
		v := uint32(f)
		flags = &v
	}
	hash := fields[7]
	path := pathescape.Unescape(fields[8])
	if !strings.HasPrefix(path, "/") {
		return nil, "", fmt.Errorf("PATH %q must be absolute", path)
	}

	parentPath, name := splitPath(path)

	const sIFMT, sIFDIR = 0o170000, 0o040000
	kind := KindFile
	if uint32(mode)&sIFMT == sIFDIR {
		kind = KindDir
	}

	entry := &Entry{
		Name: name,
		Kind: kind,
		Path: path,
		Metadata: Metadata{
			Size:  size,
			Mode:  uint32(mode),
			UID:   uint32(uid),
			GID:   uint32(gid),
			Atime: atime,
			Mtime: mtime,
			Flags: flags,
		},
		DataHash: hash,
	}
	if kind == KindDir {
		entry.Children = make(map[string]*Entry)
	}
	return entry, parentPath, nil
}

// stripComment removes a trailing "#...." comment. pathescape.Escape writes
// a '#' in a path as "\x23", so an emitted line never carries a literal
// '#' inside a token and a bare '#' always starts a comment.
func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// tokenize splits line on whitespace, treating a backslash-escaped space as
// part of the token rather than a separator.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inToken := false
	escaped := false
	for _, r := range line {
		if escaped {
			cur.WriteRune(r)
			escaped = false
			inToken = true
			continue
		}
		switch {
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
