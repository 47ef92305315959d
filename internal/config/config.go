// Package config implements the tiny Forth-like configuration-file
// mini-language (spec §6): target/include/exclude/hash/load_config
// directives, plus profile-directory lookup under
// $XDG_CONFIG_HOME/link-to-the-past-backup/.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ltp-backup/ltp/internal/hashprovider"
	"github.com/ltp-backup/ltp/internal/ltperrors"
)

// DefaultProfile is the implicit profile name used when none is given.
const DefaultProfile = "default"

// Config is the result of parsing a config file (and any files it splices
// in via load_config).
type Config struct {
	Target        string
	Includes      []string
	Excludes      []string
	HashAlgorithm string
}

// Load reads path and every config file it transitively splices in via
// load_config, accumulating directives into a single Config.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := load(cfg, path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load reads one config file, resolving paths relative to its own
// directory, and recurses for load_config directives. visited guards
// against a load_config cycle.
func load(cfg *Config, path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &ltperrors.ConfigError{Msg: fmt.Sprintf("cannot resolve %q", path), Err: err}
	}
	if visited[abs] {
		return &ltperrors.ConfigError{Msg: "load_config cycle detected at " + abs}
	}
	visited[abs] = true

	f, err := os.Open(abs)
	if err != nil {
		return &ltperrors.IOFailure{Path: abs, Err: err}
	}
	defer f.Close()

	return parseInto(cfg, f, abs, filepath.Dir(abs), visited)
}

// parseInto scans one already-open config file's directives into cfg.
// fileName labels ParseError locations; baseDir anchors relative paths
// and load_config targets.
func parseInto(cfg *Config, r io.Reader, fileName, baseDir string, visited map[string]bool) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		tokens := tokenize(line)
		if len(tokens) == 0 {
			continue
		}

		directive := tokens[0]
		if len(tokens) != 2 {
			return &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("%s directive expects exactly one argument", directive)}
		}
		arg := tokens[1]

		switch directive {
		case "target":
			cfg.Target = resolvePath(arg, baseDir)
		case "include":
			cfg.Includes = append(cfg.Includes, resolvePath(arg, baseDir))
		case "exclude":
			// An exclude is a glob matched against full paths, not a path,
			// so it is kept as written.
			cfg.Excludes = append(cfg.Excludes, arg)
		case "hash":
			canon, err := hashprovider.CanonicalName(arg)
			if err != nil {
				return &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: err.Error()}
			}
			// Duplicate hash directives are non-fatal; the last one wins,
			// matching the manifest grammar's own duplicate-hash rule.
			cfg.HashAlgorithm = canon
		case "load_config":
			sub := resolvePath(arg, baseDir)
			if err := load(cfg, sub, visited); err != nil {
				return err
			}
		default:
			return &ltperrors.ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("unknown directive %q", directive)}
		}
	}
	if err := scanner.Err(); err != nil {
		return &ltperrors.IOFailure{Path: fileName, Err: err}
	}
	return nil
}

// resolvePath expands ~ and environment variables, then, for a relative
// result, joins it against baseDir — the directory of the config file
// that named this path (spec §6's fix for load_config's relative base).
func resolvePath(p, baseDir string) string {
	p = expandHome(p)
	p = os.ExpandEnv(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	return p
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		if p == "~" {
			return home
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

// stripComment removes a trailing "# ..." comment.
func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// tokenize splits line on whitespace, treating a backslash-escaped space
// as part of the token rather than a separator, matching the manifest
// format's own grammar (spec §4.3/§6 share the same tokenizing rule).
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

// ProfileDir returns the directory holding named profiles:
// $XDG_CONFIG_HOME/link-to-the-past-backup, falling back to
// $HOME/.config/link-to-the-past-backup.
func ProfileDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "link-to-the-past-backup"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &ltperrors.ConfigError{Msg: "cannot determine home directory", Err: err}
	}
	return filepath.Join(home, ".config", "link-to-the-past-backup"), nil
}

// ProfilePath returns the on-disk path of a named profile's config file.
func ProfilePath(name string) (string, error) {
	dir, err := ProfileDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".profile"), nil
}

// LoadProfile loads a named profile's config file (and anything it
// splices in via load_config).
func LoadProfile(name string) (*Config, error) {
	path, err := ProfilePath(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ltperrors.ConfigError{Msg: fmt.Sprintf("profile %q not found at %s", name, path), Err: err}
	}
	return Load(path)
}
