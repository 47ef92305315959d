package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/compare"
	"github.com/ltp-backup/ltp/internal/indexer"
	"github.com/ltp-backup/ltp/internal/manifest"
)

func newChangesCmd() *cobra.Command {
	var timespec string
	var long, all bool

	cmd := &cobra.Command{
		Use:   "changes TIMESPEC2",
		Short: "compare the loaded snapshot against another snapshot, or the live source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			first, _, err := openSnapshot(cfg.Target, timespec)
			if err != nil {
				return err
			}

			var second *manifest.Manifest
			if args[0] == "now" {
				second, err = indexer.Index(indexer.Options{
					Includes: cfg.Includes,
					Excludes: cfg.Excludes,
					Log:      func(format string, a ...any) { logf(1, format, a...) },
				})
				if err != nil {
					return err
				}
				second.HashAlgorithm = first.HashAlgorithm
				if err := compare.HashLiveTree(second.Root, second.HashAlgorithm); err != nil {
					return err
				}
			} else {
				second, _, err = openSnapshot(cfg.Target, args[0])
				if err != nil {
					return err
				}
			}

			lines, err := compare.Changes(first, second, all)
			if err != nil {
				return err
			}
			for _, line := range lines {
				label := statusLabel(line.Status)
				if long {
					fmt.Printf("%s\t%s\n", label, line.Path)
					continue
				}
				fmt.Printf("%s %s\n", label, line.Path)
			}
			return nil
		},
	}

	addTimespecFlag(cmd, &timespec)
	cmd.Flags().BoolVarP(&long, "long", "l", false, "use a detailed (tab-separated) output format")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "also list unchanged entries")
	return cmd
}
