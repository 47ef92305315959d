package commands

import (
	"fmt"

	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/edit"
)

func newRmCmd() *cobra.Command {
	var timespec string
	var recursive, force bool

	cmd := &cobra.Command{
		Use:   "rm SRC",
		Short: "remove an entry from a specific snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, _, err := openSnapshot(cfg.Target, timespec)
			if err != nil {
				return err
			}
			if !force && isTerminalStdout() && !promptYesNo(fmt.Sprintf("remove %s from this snapshot?", shellescape.Quote(args[0]))) {
				return nil
			}
			result, err := edit.Rm(m, args[0], recursive, force)
			if err != nil {
				return err
			}
			for _, e := range result.Errors {
				printErr(e)
			}
			logf(0, "removed %d, failed %d", result.Removed, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d removal(s) failed", result.Failed)
			}
			return nil
		},
	}

	addTimespecFlag(cmd, &timespec)
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove a directory and its contents")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "continue past per-entry removal failures")
	return cmd
}
