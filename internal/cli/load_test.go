package cli

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCommand executes the root command with args, then resets flag state so
// one invocation's flags never leak into the next.
func runCommand(args ...string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	loadCmd.Flags().Visit(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	return err
}

func TestLoadCommand(t *testing.T) {
	t.Run("loads csv into sqlite", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, dir, "people.csv", "id,name\n1,alice\n2,bob\n")
		dbPath := filepath.Join(dir, "out.db")

		err := runCommand("load", src, "--sqlite", dbPath, "--quiet")
		require.NoError(t, err)

		db, err := sql.Open("sqlite", dbPath)
		require.NoError(t, err)
		defer db.Close()
		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "people"`).Scan(&count))
		assert.Equal(t, 2, count)
	})

	t.Run("explicit table name", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, dir, "people.csv", "id\n1\n")
		dbPath := filepath.Join(dir, "out.db")

		err := runCommand("load", src, "--sqlite", dbPath, "--table", "humans", "--quiet")
		require.NoError(t, err)

		db, err := sql.Open("sqlite", dbPath)
		require.NoError(t, err)
		defer db.Close()
		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "humans"`).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("invalid mode is a usage error", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, dir, "people.csv", "id\n1\n")

		err := runCommand("load", src, "--sqlite", filepath.Join(dir, "out.db"), "--mode", "merge", "--quiet")
		require.Error(t, err)
		assert.Equal(t, ExitUsage, ExitCodeForError(err))
	})

	t.Run("sqlite and host are mutually exclusive", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, dir, "people.csv", "id\n1\n")

		err := runCommand("load", src,
			"--sqlite", filepath.Join(dir, "out.db"),
			"--host", "db.example.com", "--database", "d", "--quiet")
		require.Error(t, err)
		assert.Equal(t, ExitUsage, ExitCodeForError(err))
	})

	t.Run("host without database is a usage error", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, dir, "people.csv", "id\n1\n")

		err := runCommand("load", src, "--host", "db.example.com", "--quiet")
		require.Error(t, err)
		assert.Equal(t, ExitUsage, ExitCodeForError(err))
	})

	t.Run("missing destination without config is a usage error", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, dir, "people.csv", "id\n1\n")

		err := runCommand("load", src, "--config", filepath.Join(dir, "absent.yaml"), "--quiet")
		require.Error(t, err)
		assert.Equal(t, ExitUsage, ExitCodeForError(err))
	})

	t.Run("destination from config file", func(t *testing.T) {
		dir := t.TempDir()
		src := writeFile(t, dir, "people.csv", "id\n1\n2\n3\n")
		dbPath := filepath.Join(dir, "cfg.db")
		cfg := writeFile(t, dir, "tabsql.yaml",
			"destination:\n  engine: sqlite\n  path: "+dbPath+"\n")

		err := runCommand("load", src, "--config", cfg, "--quiet")
		require.NoError(t, err)

		db, err := sql.Open("sqlite", dbPath)
		require.NoError(t, err)
		defer db.Close()
		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "people"`).Scan(&count))
		assert.Equal(t, 3, count)
	})
}
