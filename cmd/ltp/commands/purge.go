package commands

import (
	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/catalog"
	"github.com/ltp-backup/ltp/internal/edit"
)

func newPurgeCmd() *cobra.Command {
	var timespec string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "remove an entire snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, name, err := openSnapshot(cfg.Target, timespec)
			if err != nil {
				return err
			}
			snapshotDir := catalog.Path(cfg.Target, name)
			if err := edit.Purge(snapshotDir); err != nil {
				return err
			}
			logf(0, "purged %s", name)
			return nil
		},
	}

	addTimespecFlag(cmd, &timespec)
	return cmd
}
