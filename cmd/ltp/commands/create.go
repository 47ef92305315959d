package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/engine"
	"github.com/ltp-backup/ltp/internal/humanize"
	"github.com/ltp-backup/ltp/internal/indexer"
)

func newCreateCmd() *cobra.Command {
	var force, full, dryRun, confirm bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "scan the configured sources and build a new snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			src, err := indexer.Index(indexer.Options{
				Includes: cfg.Includes,
				Excludes: cfg.Excludes,
				Log:      func(format string, a ...any) { logf(1, format, a...) },
			})
			if err != nil {
				return err
			}

			result, err := engine.Create(engine.Options{
				TargetDir:     cfg.Target,
				Source:        src,
				HashAlgorithm: cfg.HashAlgorithm,
				Force:         force,
				Full:          full,
				DryRun:        dryRun,
				Confirm:       confirm,
				IsTerminal:    isTerminalStdout,
				Prompt:        promptYesNo,
				Log:           func(format string, a ...any) { logf(0, format, a...) },
			})
			if err != nil {
				return err
			}

			if result.DryRun {
				for _, p := range result.Plan {
					fmt.Printf("%-8s %s\n", p.Action, shellescape.Quote(p.Path))
				}
				return nil
			}
			fmt.Printf("%s: %s changed, %s linked, %s\n",
				result.SnapshotName,
				pluralFiles(result.FilesChanged),
				pluralFiles(result.FilesLinked),
				humanize.Bytes(uint64(result.BytesCopied)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "proceed even if no files changed since the last snapshot")
	cmd.Flags().BoolVar(&full, "full", false, "skip change detection; copy every file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan; touch nothing")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "prompt before proceeding with a large backup")
	return cmd
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}

// promptYesNo asks a yes/no question on stdin/stdout, used by create's
// --confirm flow.
func promptYesNo(message string) bool {
	fmt.Printf("%s [y/N] ", message)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
