// Package commands implements the ltp CLI surface (spec §6): one process
// with an action selector, global -c/-p configuration selection, and one
// subcommand per operation.
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/catalog"
	"github.com/ltp-backup/ltp/internal/config"
	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/manifest"
)

var (
	controlFile string
	profileName string
	verbose     int
	develop     bool
)

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&controlFile, "control-file", "c", "", "path to a configuration file (overrides -p)")
	cmd.PersistentFlags().StringVarP(&profileName, "profile", "p", config.DefaultProfile, "named profile under $XDG_CONFIG_HOME/link-to-the-past-backup")
	cmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")
	cmd.PersistentFlags().BoolVar(&develop, "develop", false, "enable developer diagnostics (full error chains)")
}

// loadConfig resolves the active configuration: -c names a control file
// directly, otherwise -p (or the implicit "default") selects a profile.
func loadConfig() (*config.Config, error) {
	if controlFile != "" {
		return config.Load(controlFile)
	}
	return config.LoadProfile(profileName)
}

// logf writes a progress/warning line to stderr when running at or above
// the given verbosity level.
func logf(level int, format string, args ...any) {
	if verbose < level {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// openSnapshot resolves timespec against targetDir's catalog and loads the
// selected snapshot's manifest, warning about any orphaned incomplete
// snapshots found along the way.
func openSnapshot(targetDir, timespec string) (*manifest.Manifest, string, error) {
	cat, err := catalog.List(targetDir)
	if err != nil {
		return nil, "", err
	}
	for _, name := range cat.Incomplete {
		logf(0, "warning: orphaned incomplete snapshot %s found; a previous create was interrupted", name)
	}

	name, err := catalog.Resolve(cat.Complete, timespec, nowFunc())
	if err != nil {
		return nil, "", err
	}

	dir := catalog.Path(targetDir, name)
	path := filepath.Join(dir, "file_list")
	f, err := os.Open(path)
	if err != nil {
		return nil, "", &ltperrors.IOFailure{Path: path, Err: err}
	}
	defer f.Close()

	m, err := manifest.Parse(f, path, func(w string) { logf(0, "warning: %s", w) })
	if err != nil {
		return nil, "", err
	}
	m.CurrentRoot = dir
	return m, name, nil
}

// isTerminalStdout reports whether stdout is an interactive terminal, for
// --confirm prompts and colorized output decisions.
func isTerminalStdout() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// addTimespecFlag registers the -t/--timespec flag shared by every command
// that resolves against the snapshot catalog.
func addTimespecFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVarP(dest, "timespec", "t", "", "select a snapshot: last/previous/first/-N/prefix/\"N unit ago\" (default: last)")
}

// nowFunc anchors timespec's relative descriptors ("1 week ago") to the
// real clock; overridable in tests.
var nowFunc = time.Now

// printErr renders err to stderr; under --develop (spec §6's developer
// diagnostics flag) it also prints every error in its Unwrap chain with
// its type.
func printErr(err error) {
	if develop {
		fmt.Fprintf(os.Stderr, "ltp: %v\n", err)
		for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
			fmt.Fprintf(os.Stderr, "  caused by (%T): %v\n", cause, cause)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "ltp: %v\n", err)
}

// ExitCode maps a command's returned error to a process exit code.
func ExitCode(err error) int {
	return ltperrors.ExitCode(err)
}
