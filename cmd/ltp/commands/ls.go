package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/restore"
)

func newLsCmd() *cobra.Command {
	var timespec string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls [PATHS...]",
		Short: "list a snapshot path's children",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, _, err := openSnapshot(cfg.Target, timespec)
			if err != nil {
				return err
			}

			paths := args
			if len(paths) == 0 {
				paths = []string{"/"}
			}

			lines, errs := restore.Ls(m, paths, recursive)
			for _, e := range errs {
				printErr(e)
			}
			for _, line := range lines {
				if !line.IsDir {
					fmt.Println(line.Path)
					continue
				}
				for _, child := range line.Children {
					fmt.Println(child)
				}
			}
			if len(errs) > 0 {
				return errs[0]
			}
			return nil
		},
	}

	addTimespecFlag(cmd, &timespec)
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "list a directory's full flattened subtree")
	return cmd
}
