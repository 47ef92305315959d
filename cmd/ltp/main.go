// Command ltp is the link-to-the-past-backup CLI: incremental,
// hard-link-sharing snapshot backups of a file tree.
package main

import (
	"os"

	"github.com/ltp-backup/ltp/cmd/ltp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
