package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tabsql/tabsql"
	"github.com/tabsql/tabsql/internal/config"
)

// Environment variables consulted for the MySQL password, in order.
var passwordEnvVars = []string{"TABSQL_MYSQL_PASSWORD", "MYSQL_PWD"}

var loadCmd = &cobra.Command{
	Use:   "load <source-file>",
	Short: "Load a tabular file into a database table",
	Long: `Load ingests one source file into one destination table.

The destination comes from flags (--sqlite for an embedded database
file, or --host/--database for a MySQL server) or from a tabsql.yaml
config file. The MySQL password is read from the TABSQL_MYSQL_PASSWORD
or MYSQL_PWD environment variable, never from a flag, and is never
logged.

Rejected rows are reported on stderr and the command still exits 0;
only an unreadable source, a schema conflict in append mode, or a
connection failure is fatal.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().String("table", "", "Destination table name (default: derived from the file name)")
	loadCmd.Flags().String("mode", "overwrite", "Load mode: overwrite or append")
	loadCmd.Flags().String("sqlite", "", "Path to an SQLite database file")
	loadCmd.Flags().String("host", "", "MySQL host")
	loadCmd.Flags().Int("port", 3306, "MySQL port")
	loadCmd.Flags().String("user", "", "MySQL user")
	loadCmd.Flags().String("database", "", "MySQL database name")
	loadCmd.Flags().String("encoding", "", "Source text encoding (default: detected)")
	loadCmd.Flags().Int("batch-size", 0, "Rows per insert batch (default: 1000)")
	loadCmd.Flags().Int64("memory-limit", 0, "Heap limit in MB for adaptive batching (default: 512, negative disables)")
	loadCmd.Flags().Int64("sample-rows", 0, "Maximum rows sampled for schema inference (default: size-based)")
	loadCmd.Flags().String("config", "", "Path to a tabsql.yaml config file")
	loadCmd.Flags().Bool("quiet", false, "Suppress per-batch progress output")

	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	sourcePath := args[0]
	flags := cmd.Flags()

	modeStr, _ := flags.GetString("mode")
	mode, ok := tabsql.ParseLoadMode(modeStr)
	if !ok {
		return fmt.Errorf("%w: invalid mode %q (want overwrite or append)", errUsage, modeStr)
	}

	dest, err := resolveDestination(cmd)
	if err != nil {
		return err
	}

	table, _ := flags.GetString("table")
	encoding, _ := flags.GetString("encoding")
	batchSize, _ := flags.GetInt("batch-size")
	memoryLimit, _ := flags.GetInt64("memory-limit")
	sampleRows, _ := flags.GetInt64("sample-rows")
	quiet, _ := flags.GetBool("quiet")

	logger := slog.Default().With(
		"source", sourcePath,
		"engine", string(dest.Engine),
		"mode", string(mode),
	)
	logger.Info("starting load")

	opts := tabsql.Options{
		SourcePath:    sourcePath,
		Table:         table,
		Mode:          mode,
		Destination:   dest,
		Source:        tabsql.SourceOptions{Encoding: encoding},
		BatchSize:     batchSize,
		MemoryLimitMB: memoryLimit,
		MaxSampleRows: sampleRows,
	}
	if !quiet {
		opts.Progress = func(committed, total int64) {
			fmt.Fprintf(os.Stderr, "\rloaded %d / ~%d rows", committed, total)
		}
	}

	result, err := tabsql.Ingest(cmd.Context(), opts)
	if !quiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		logger.Error("load failed", "error", err)
		return err
	}

	logger.Info("load finished",
		"rows_written", result.RowsWritten,
		"rows_rejected", result.RowsRejected,
	)
	for _, rowErr := range result.Errors {
		if rowErr.Column != "" {
			fmt.Fprintf(os.Stderr, "row %d: column %q: %s\n", rowErr.Row, rowErr.Column, rowErr.Reason)
		} else {
			fmt.Fprintf(os.Stderr, "row %d: %s\n", rowErr.Row, rowErr.Reason)
		}
	}

	fmt.Printf("rows_written=%d rows_rejected=%d\n", result.RowsWritten, result.RowsRejected)
	return nil
}

// resolveDestination builds the destination from flags, falling back to the
// config file when no engine flag is set.
func resolveDestination(cmd *cobra.Command) (tabsql.Destination, error) {
	flags := cmd.Flags()
	sqlitePath, _ := flags.GetString("sqlite")
	host, _ := flags.GetString("host")

	if sqlitePath != "" && host != "" {
		return tabsql.Destination{}, fmt.Errorf("%w: --sqlite and --host are mutually exclusive", errUsage)
	}

	if sqlitePath != "" {
		return tabsql.Destination{
			Engine: tabsql.EngineSQLite,
			Path:   sqlitePath,
		}, nil
	}

	if host != "" {
		port, _ := flags.GetInt("port")
		user, _ := flags.GetString("user")
		database, _ := flags.GetString("database")
		if database == "" {
			return tabsql.Destination{}, fmt.Errorf("%w: --host requires --database", errUsage)
		}
		return tabsql.Destination{
			Engine:   tabsql.EngineMySQL,
			Host:     host,
			Port:     port,
			User:     user,
			Password: lookupEnv(passwordEnvVars...),
			Database: database,
		}, nil
	}

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = config.ConfigFileName
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return tabsql.Destination{}, fmt.Errorf("%w: no destination given (use --sqlite, --host, or %s)",
				errUsage, config.ConfigFileName)
		}
		return tabsql.Destination{}, err
	}
	return cfg.ResolveDestination(lookupEnv(passwordEnvVars...))
}
