package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/restore"
)

func newCatCmd() *cobra.Command {
	var timespec string

	cmd := &cobra.Command{
		Use:   "cat SRC",
		Short: "stream a snapshot file's stored bytes to standard output",
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
			return restore.Cat(m, args[0], os.Stdout)
		},
	}

	addTimespecFlag(cmd, &timespec)
	return cmd
}
