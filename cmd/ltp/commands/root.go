package commands

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ltp",
		Short: "link-to-the-past-backup: incremental hard-link snapshot backups",
		Long: `ltp performs incremental, snapshot-style file-system backups that share
unchanged data across snapshots via hard links. Each run produces a
directly browsable, read-only snapshot directory; unchanged files are
hard-linked to the previous snapshot, changed or new files are copied.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(cmd)

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPathCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newCpCmd())
	cmd.AddCommand(newCatCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newIntegrityCmd())
	cmd.AddCommand(newChangesCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newPurgeCmd())
	return cmd
}

// Execute builds the command tree, runs it against os.Args, and prints any
// returned error to stderr itself (the root command sets SilenceErrors,
// which Cobra applies to every subcommand, so it never prints on our
// behalf).
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		printErr(err)
	}
	return err
}
