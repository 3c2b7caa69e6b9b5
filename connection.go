package tabsql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // embedded destination engine
)

// EngineKind selects the destination engine.
type EngineKind string

const (
	// EngineSQLite is the embedded single-file engine
	EngineSQLite EngineKind = "sqlite"
	// EngineMySQL is the networked server engine
	EngineMySQL EngineKind = "mysql"
)

// Destination identifies where rows are loaded. For SQLite only Path is
// used; for MySQL the connection parameters are used and Path is ignored.
type Destination struct {
	Engine   EngineKind
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Conn is the capability interface both destination engines present to
// the reconciler and the loader. A Conn is owned by exactly one run.
//
// InsertBatch must run inside a transaction opened with Begin; each batch
// is committed or rolled back as a unit.
type Conn interface {
	ExecDDL(ctx context.Context, stmt string) error
	Begin(ctx context.Context) error
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error
	Commit() error
	Rollback() error
	TableExists(ctx context.Context, table string) (bool, error)
	TableColumns(ctx context.Context, table string) ([]ColumnSpec, error)
	QuoteIdent(name string) string
	ColumnTypeName(ct ColumnType) string
	Close() error
}

// Connect opens a connection to the destination and verifies it with a
// ping. Unreachable hosts and rejected credentials fail immediately with
// ErrConnection; there is no retry at this layer.
func Connect(ctx context.Context, dest Destination) (Conn, error) {
	switch dest.Engine {
	case EngineSQLite:
		db, err := sql.Open("sqlite", dest.Path)
		if err != nil {
			return nil, connectionError("sqlite", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close() // Ignore close error during error handling
			return nil, connectionError("sqlite", err)
		}
		// One connection: the run is single-threaded and SQLite locks the
		// file per writer anyway.
		db.SetMaxOpenConns(1)
		return &conn{db: db, d: sqliteDialect{}}, nil

	case EngineMySQL:
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = dest.Host + ":" + strconv.Itoa(dest.Port)
		cfg.User = dest.User
		cfg.Passwd = dest.Password
		cfg.DBName = dest.Database
		cfg.ParseTime = false
		cfg.Params = map[string]string{"charset": "utf8mb4"}

		db, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			return nil, connectionError("mysql", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close() // Ignore close error during error handling
			return nil, connectionError("mysql", err)
		}
		return &conn{db: db, d: mysqlDialect{database: dest.Database}}, nil

	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrConnection, dest.Engine)
	}
}

// dialect captures the per-engine differences behind Conn.
type dialect interface {
	quoteIdent(name string) string
	typeName(ct ColumnType) string
	tableExists(ctx context.Context, db *sql.DB, table string) (bool, error)
	tableColumns(ctx context.Context, db *sql.DB, table string) ([]ColumnSpec, error)
}

// conn implements Conn over database/sql; both engines use ? placeholders,
// so only the dialect differs.
type conn struct {
	db *sql.DB
	tx *sql.Tx
	d  dialect
}

func (c *conn) ExecDDL(ctx context.Context, stmt string) error {
	_, err := c.db.ExecContext(ctx, stmt)
	return err
}

func (c *conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return fmt.Errorf("transaction already open")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *conn) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error {
	if c.tx == nil {
		return errNoActiveTransaction
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = c.d.quoteIdent(col)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.d.quoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := c.tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close() // Ignore close error during statement cleanup
	}()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	return nil
}

func (c *conn) Commit() error {
	if c.tx == nil {
		return errNoActiveTransaction
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

func (c *conn) Rollback() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	return err
}

func (c *conn) TableExists(ctx context.Context, table string) (bool, error) {
	return c.d.tableExists(ctx, c.db, table)
}

func (c *conn) TableColumns(ctx context.Context, table string) ([]ColumnSpec, error) {
	return c.d.tableColumns(ctx, c.db, table)
}

func (c *conn) QuoteIdent(name string) string {
	return c.d.quoteIdent(name)
}

func (c *conn) ColumnTypeName(ct ColumnType) string {
	return c.d.typeName(ct)
}

func (c *conn) Close() error {
	if c.tx != nil {
		_ = c.tx.Rollback() // Ignore rollback error when abandoning a run
		c.tx = nil
	}
	return c.db.Close()
}

// parseDeclaredType maps a declared column type from either engine's
// catalog back onto the inference lattice. Unknown declarations map to
// TEXT, which accepts anything on append.
func parseDeclaredType(declared string) ColumnType {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	// Strip length suffixes like TINYINT(1) or VARCHAR(255).
	if i := strings.IndexByte(upper, '('); i >= 0 {
		upper = upper[:i]
	}

	switch {
	case upper == "BOOLEAN" || upper == "BOOL" || upper == "TINYINT":
		return ColumnTypeBoolean
	case strings.Contains(upper, "INT"):
		return ColumnTypeInteger
	case upper == "REAL" || upper == "DOUBLE" || upper == "FLOAT" ||
		upper == "DECIMAL" || upper == "NUMERIC":
		return ColumnTypeReal
	case upper == "DATETIME" || upper == "TIMESTAMP":
		return ColumnTypeDatetime
	case upper == "DATE":
		return ColumnTypeDate
	default:
		return ColumnTypeText
	}
}

// sqliteDialect implements dialect for the embedded engine.
type sqliteDialect struct{}

func (sqliteDialect) quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) typeName(ct ColumnType) string {
	// SQLite stores DATE/DATETIME/BOOLEAN under the declared name with
	// the matching affinity; the declaration round-trips through
	// PRAGMA table_info for append compatibility checks.
	return ct.String()
}

func (sqliteDialect) tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		table,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (sqliteDialect) tableColumns(ctx context.Context, db *sql.DB, table string) ([]ColumnSpec, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnSpec
	for rows.Next() {
		var name, declared string
		var notNull int
		if err := rows.Scan(&name, &declared, &notNull); err != nil {
			return nil, err
		}
		columns = append(columns, ColumnSpec{
			Name:     name,
			Type:     parseDeclaredType(declared),
			Nullable: notNull == 0,
		})
	}
	return columns, rows.Err()
}

// mysqlDialect implements dialect for the networked engine.
type mysqlDialect struct {
	database string
}

func (mysqlDialect) quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) typeName(ct ColumnType) string {
	switch ct {
	case ColumnTypeInteger:
		return "BIGINT"
	case ColumnTypeReal:
		return "DOUBLE"
	case ColumnTypeBoolean:
		return "BOOLEAN"
	case ColumnTypeDate:
		return "DATE"
	case ColumnTypeDatetime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func (d mysqlDialect) tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`,
		d.database, table,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d mysqlDialect) tableColumns(ctx context.Context, db *sql.DB, table string) ([]ColumnSpec, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY ordinal_position`,
		d.database, table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnSpec
	for rows.Next() {
		var name, declared, nullable string
		if err := rows.Scan(&name, &declared, &nullable); err != nil {
			return nil, err
		}
		columns = append(columns, ColumnSpec{
			Name:     name,
			Type:     parseDeclaredType(declared),
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	return columns, rows.Err()
}
