// Package cli implements the tabsql command line interface.
package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabsql/tabsql"
	"github.com/tabsql/tabsql/internal/logging"
)

// Exit codes returned by the tabsql binary.
const (
	// ExitOK covers full and partial success: rejected rows do not
	// change the exit code.
	ExitOK = 0
	// ExitError is a general failure (unreadable source, failed load)
	ExitError = 1
	// ExitUsage is a CLI usage error
	ExitUsage = 2
	// ExitSchemaConflict is an append-mode schema mismatch
	ExitSchemaConflict = 10
	// ExitConnection is a destination connection failure
	ExitConnection = 11
)

var rootCmd = &cobra.Command{
	Use:   "tabsql",
	Short: "Load tabular files into SQLite or MySQL tables",
	Long: `tabsql ingests CSV, TSV, Excel, and Parquet files into relational tables.

It detects the file's encoding and format, infers a column schema from
the data, creates or reconciles the destination table, and bulk-loads
the rows in batches. Rows that do not fit the inferred schema are
rejected and reported without aborting the load.

Exit Codes:
  0  - Success (including partial success with rejected rows)
  1  - General error (unreadable source, failed load)
  2  - CLI usage error (invalid arguments or flags)
  10 - Schema conflict in append mode
  11 - Database connection failed`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		logging.Setup(level, format)
	})
}

// ExitCodeForError maps an error from Execute to a process exit code.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, tabsql.ErrSchemaConflict):
		return ExitSchemaConflict
	case errors.Is(err, tabsql.ErrConnection):
		return ExitConnection
	case errors.Is(err, errUsage):
		return ExitUsage
	default:
		return ExitError
	}
}

// errUsage marks argument and flag validation failures.
var errUsage = errors.New("usage error")

// lookupEnv returns the first set environment variable from names.
func lookupEnv(names ...string) string {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
	}
	return ""
}
