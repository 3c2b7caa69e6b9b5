package tabsql

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeclaredType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		declared string
		expected ColumnType
	}{
		{"INTEGER", ColumnTypeInteger},
		{"integer", ColumnTypeInteger},
		{"BIGINT", ColumnTypeInteger},
		{"int", ColumnTypeInteger},
		{"SMALLINT", ColumnTypeInteger},
		{"REAL", ColumnTypeReal},
		{"DOUBLE", ColumnTypeReal},
		{"FLOAT", ColumnTypeReal},
		{"DECIMAL(10,2)", ColumnTypeReal},
		{"NUMERIC", ColumnTypeReal},
		{"BOOLEAN", ColumnTypeBoolean},
		{"bool", ColumnTypeBoolean},
		{"TINYINT(1)", ColumnTypeBoolean},
		{"DATE", ColumnTypeDate},
		{"DATETIME", ColumnTypeDatetime},
		{"TIMESTAMP", ColumnTypeDatetime},
		{"TEXT", ColumnTypeText},
		{"VARCHAR(255)", ColumnTypeText},
		{"BLOB", ColumnTypeText},
		{"", ColumnTypeText},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseDeclaredType(tt.declared), "declared %q", tt.declared)
	}
}

func TestDialect_quoteIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"name"`, sqliteDialect{}.quoteIdent("name"))
	assert.Equal(t, `"a""b"`, sqliteDialect{}.quoteIdent(`a"b`))
	assert.Equal(t, "`name`", mysqlDialect{}.quoteIdent("name"))
	assert.Equal(t, "`a``b`", mysqlDialect{}.quoteIdent("a`b"))
}

func TestDialect_typeName(t *testing.T) {
	t.Parallel()

	sqlite := sqliteDialect{}
	assert.Equal(t, "INTEGER", sqlite.typeName(ColumnTypeInteger))
	assert.Equal(t, "REAL", sqlite.typeName(ColumnTypeReal))
	assert.Equal(t, "TEXT", sqlite.typeName(ColumnTypeText))

	my := mysqlDialect{}
	assert.Equal(t, "BIGINT", my.typeName(ColumnTypeInteger))
	assert.Equal(t, "DOUBLE", my.typeName(ColumnTypeReal))
	assert.Equal(t, "BOOLEAN", my.typeName(ColumnTypeBoolean))
	assert.Equal(t, "DATE", my.typeName(ColumnTypeDate))
	assert.Equal(t, "DATETIME", my.typeName(ColumnTypeDatetime))
	assert.Equal(t, "TEXT", my.typeName(ColumnTypeText))
}

func TestConnect_SQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "conn.db")
	conn, err := Connect(ctx, Destination{Engine: EngineSQLite, Path: path})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.ExecDDL(ctx, `CREATE TABLE "t" ("id" INTEGER NOT NULL, "name" TEXT)`))

	exists, err := conn.TableExists(ctx, "t")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = conn.TableExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	columns, err := conn.TableColumns(ctx, "t")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, ColumnSpec{Name: "id", Type: ColumnTypeInteger, Nullable: false}, columns[0])
	assert.Equal(t, ColumnSpec{Name: "name", Type: ColumnTypeText, Nullable: true}, columns[1])
}

func TestConn_InsertBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "insert.db")
	conn, err := Connect(ctx, Destination{Engine: EngineSQLite, Path: path})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.ExecDDL(ctx, `CREATE TABLE "t" ("id" INTEGER, "name" TEXT)`))

	t.Run("insert outside transaction fails", func(t *testing.T) {
		err := conn.InsertBatch(ctx, "t", []string{"id", "name"}, [][]any{{int64(1), "a"}})
		assert.ErrorIs(t, err, errNoActiveTransaction)
	})

	t.Run("commit persists batch", func(t *testing.T) {
		require.NoError(t, conn.Begin(ctx))
		err := conn.InsertBatch(ctx, "t", []string{"id", "name"}, [][]any{
			{int64(1), "a"},
			{int64(2), "b"},
		})
		require.NoError(t, err)
		require.NoError(t, conn.Commit())

		assert.Equal(t, 2, countRows(t, path, "t"))
	})

	t.Run("rollback discards batch", func(t *testing.T) {
		require.NoError(t, conn.Begin(ctx))
		err := conn.InsertBatch(ctx, "t", []string{"id", "name"}, [][]any{
			{int64(3), "c"},
		})
		require.NoError(t, err)
		require.NoError(t, conn.Rollback())

		assert.Equal(t, 2, countRows(t, path, "t"))
	})

	t.Run("double begin fails", func(t *testing.T) {
		require.NoError(t, conn.Begin(ctx))
		assert.Error(t, conn.Begin(ctx))
		require.NoError(t, conn.Rollback())
	})

	t.Run("commit without begin fails", func(t *testing.T) {
		assert.ErrorIs(t, conn.Commit(), errNoActiveTransaction)
	})
}

func TestConnect_unknownEngine(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Destination{Engine: "oracle"})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestConnect_MySQLUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Connect(ctx, Destination{
		Engine:   EngineMySQL,
		Host:     "127.0.0.1",
		Port:     1, // Nothing listens here
		User:     "u",
		Database: "d",
	})
	assert.ErrorIs(t, err, ErrConnection)
}

// countRows opens an independent connection and counts rows in a table.
func countRows(t *testing.T, path, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&count))
	return count
}
