package commands

import (
	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/restore"
)

func newCpCmd() *cobra.Command {
	var timespec string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "cp SRC DST",
		Short: "copy a snapshot path out to the live filesystem",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, _, err := openSnapshot(cfg.Target, timespec)
			if err != nil {
				return err
			}
			logf(1, "cp %s %s", shellescape.Quote(args[0]), shellescape.Quote(args[1]))
			return restore.Cp(m, args[0], args[1], recursive)
		},
	}

	addTimespecFlag(cmd, &timespec)
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "copy a directory and its contents")
	return cmd
}
