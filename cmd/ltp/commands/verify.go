package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/compare"
	"github.com/ltp-backup/ltp/internal/indexer"
	"github.com/ltp-backup/ltp/internal/ui"
)

func newVerifyCmd() *cobra.Command {
	var timespec string
	var long bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "scan the live source and compare it against the loaded snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, _, err := openSnapshot(cfg.Target, timespec)
			if err != nil {
				return err
			}

			live, err := indexer.Index(indexer.Options{
				Includes: cfg.Includes,
				Excludes: cfg.Excludes,
				Log:      func(format string, a ...any) { logf(1, format, a...) },
			})
			if err != nil {
				return err
			}

			lines, err := compare.Verify(m, live.Root)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Printf("%s %s\n", statusLabel(line.Status), line.Path)
				if long && line.Status == compare.StatusChanged {
					printLongDiff(filepath.Join(m.CurrentRoot, line.Path), line.Path)
				}
			}
			return nil
		},
	}

	addTimespecFlag(cmd, &timespec)
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show a unified diff for changed files")
	return cmd
}

func statusLabel(s compare.Status) string {
	switch s {
	case compare.StatusSame:
		return ui.Dim("same")
	case compare.StatusChanged:
		return ui.Yellow("changed")
	case compare.StatusAdded:
		return ui.Green("added")
	case compare.StatusRemoved:
		return ui.Red("removed")
	default:
		return s.String()
	}
}

// printLongDiff renders a unified diff between the snapshot's stored copy
// and the live file at the same absolute path, for --long output.
func printLongDiff(snapshotPath, livePath string) {
	oldContent, err := os.ReadFile(snapshotPath)
	if err != nil {
		return
	}
	newContent, err := os.ReadFile(livePath)
	if err != nil {
		return
	}
	diff := compare.LongDiff(oldContent, newContent)
	if diff != "" {
		fmt.Println(diff)
	}
}
