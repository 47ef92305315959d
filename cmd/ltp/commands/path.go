package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/catalog"
)

func newPathCmd() *cobra.Command {
	var timespec string
	var interactive bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "print the resolved snapshot's absolute directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.List(cfg.Target)
			if err != nil {
				return err
			}

			name := ""
			if interactive && isTerminalStdout() {
				name, err = pickSnapshot(cat.Complete)
				if err != nil {
					return err
				}
				if name == "" {
					return nil
				}
			} else {
				name, err = catalog.Resolve(cat.Complete, timespec, nowFunc())
				if err != nil {
					return err
				}
			}
			fmt.Println(catalog.Path(cfg.Target, name))
			return nil
		},
	}

	addTimespecFlag(cmd, &timespec)
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick the snapshot from a scrollable list")
	return cmd
}
