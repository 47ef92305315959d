package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/compare"
	"github.com/ltp-backup/ltp/internal/ltperrors"
	"github.com/ltp-backup/ltp/internal/ui"
)

func newIntegrityCmd() *cobra.Command {
	var timespec string

	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "verify every snapshot entry's on-disk content against its stored digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, _, err := openSnapshot(cfg.Target, timespec)
			if err != nil {
				return err
			}
			lines, err := compare.Integrity(m)
			if err != nil {
				return err
			}

			corrupted := 0
			var firstBad string
			for _, line := range lines {
				fmt.Printf("%s %s\n", integrityLabel(line.Status), line.Path)
				if line.Status != compare.IntegrityOK {
					corrupted++
					if firstBad == "" {
						firstBad = line.Path
					}
				}
			}
			if corrupted > 0 {
				return &ltperrors.IntegrityError{
					Path: firstBad,
					Msg:  fmt.Sprintf("%d %s failed integrity check", corrupted, pluralEntries(corrupted)),
				}
			}
			return nil
		},
	}

	addTimespecFlag(cmd, &timespec)
	return cmd
}

func integrityLabel(s compare.IntegrityStatus) string {
	switch s {
	case compare.IntegrityOK:
		return ui.Green("OK")
	case compare.IntegrityCorrupted:
		return ui.Red("CORRUPTED")
	case compare.IntegrityMissing:
		return ui.Yellow("MISSING")
	default:
		return s.String()
	}
}

func pluralEntries(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
