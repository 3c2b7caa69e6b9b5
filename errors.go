package tabsql

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal failure classes of an ingestion run.
// Recoverable row and batch failures never surface as errors; they
// accumulate in LoadResult instead.
var (
	// ErrUnreadableSource indicates the source file is missing, empty,
	// unparseable, or its text encoding could not be detected with enough
	// confidence.
	ErrUnreadableSource = errors.New("tabsql: unreadable source")

	// ErrSchemaConflict indicates an append target whose existing columns
	// are incompatible with the inferred schema.
	ErrSchemaConflict = errors.New("tabsql: schema conflict")

	// ErrConnection indicates the destination is unreachable or rejected
	// authentication.
	ErrConnection = errors.New("tabsql: connection failed")

	// ErrUnsupportedFormat indicates a source file format that is not
	// recognized as delimited text or a spreadsheet workbook.
	ErrUnsupportedFormat = errors.New("tabsql: unsupported file format")

	// errDuplicateColumnName is returned when renaming cannot resolve a
	// header collision.
	errDuplicateColumnName = errors.New("duplicate column name")

	// errNoActiveTransaction is returned when a batch insert or commit is
	// attempted outside Begin/Commit.
	errNoActiveTransaction = errors.New("no active transaction")
)

// unreadableSource wraps a cause into an ErrUnreadableSource for the given
// file path.
func unreadableSource(path string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrUnreadableSource, path)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnreadableSource, path, cause)
}

// schemaConflict builds an ErrSchemaConflict identifying the offending
// column.
func schemaConflict(table, column, detail string) error {
	return fmt.Errorf("%w: table %q column %q: %s", ErrSchemaConflict, table, column, detail)
}

// connectionError wraps a driver failure into an ErrConnection. The wrapped
// message comes from the driver and never contains credentials.
func connectionError(engine string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrConnection, engine, cause)
}
