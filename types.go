package tabsql

import (
	"strconv"
	"strings"
)

// Batch sizing constants (rows-based)
const (
	// DefaultBatchSize is the default number of rows per insert batch
	DefaultBatchSize = 1000
	// MinBatchSize is the smallest batch size the loader will configure
	MinBatchSize = 500
	// MaxBatchSize is the largest batch size the loader will configure
	MaxBatchSize = 5000
)

// Character validation constants
const (
	firstDigitChar = '0'
	lastDigitChar  = '9'
	firstLowerChar = 'a'
	lastLowerChar  = 'z'
	firstUpperChar = 'A'
	lastUpperChar  = 'Z'
	underscoreChar = '_'
)

// File format delimiters
const (
	// csvDelimiter is the delimiter for CSV files
	csvDelimiter = ','
	// tsvDelimiter is the delimiter for TSV files
	tsvDelimiter = '\t'
)

// ColumnType is the declared type of a destination column. The constants
// form a fixed promotion order used by schema inference: a column holding
// values of mixed types is promoted to the least specific type that fits
// every sampled value (see promote).
type ColumnType int

const (
	// ColumnTypeInteger represents 64-bit integer columns
	ColumnTypeInteger ColumnType = iota
	// ColumnTypeReal represents floating point columns
	ColumnTypeReal
	// ColumnTypeBoolean represents true/false columns
	ColumnTypeBoolean
	// ColumnTypeDate represents calendar date columns
	ColumnTypeDate
	// ColumnTypeDatetime represents date-and-time columns
	ColumnTypeDatetime
	// ColumnTypeText represents free text columns; every value fits
	ColumnTypeText
)

// String returns the canonical name of the column type.
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeInteger:
		return "INTEGER"
	case ColumnTypeReal:
		return "REAL"
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

// promote returns the least specific type that accommodates values of both
// argument types. INTEGER widens to REAL and DATE widens to DATETIME; every
// other mixed pairing falls back to TEXT. BOOLEAN deliberately never merges
// with numeric types: "true"/"false" strings are not representable as
// numbers, and "1"/"0" classify as INTEGER before BOOLEAN is ever tried.
func promote(a, b ColumnType) ColumnType {
	if a == b {
		return a
	}
	if a > b {
		a, b = b, a
	}
	switch {
	case a == ColumnTypeInteger && b == ColumnTypeReal:
		return ColumnTypeReal
	case a == ColumnTypeDate && b == ColumnTypeDatetime:
		return ColumnTypeDatetime
	default:
		return ColumnTypeText
	}
}

// acceptsAppend reports whether values of the inferred type can be appended
// to an existing destination column of this type. TEXT accepts anything;
// numeric and temporal types accept exact matches or narrower inferred
// types only.
func (ct ColumnType) acceptsAppend(inferred ColumnType) bool {
	if ct == ColumnTypeText {
		return true
	}
	if ct == inferred {
		return true
	}
	switch ct {
	case ColumnTypeReal:
		return inferred == ColumnTypeInteger
	case ColumnTypeDatetime:
		return inferred == ColumnTypeDate
	default:
		return false
	}
}

// ColumnSpec describes one destination column: its name, the type inferred
// from the sample, and whether any sampled value was empty.
type ColumnSpec struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// TableSchema is the ordered column layout for one destination table,
// derived once per run from a bounded sample and immutable afterwards.
type TableSchema struct {
	Table   string
	Columns []ColumnSpec
}

// ColumnNames returns the column names in declaration order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// LoadMode selects how the destination table is treated before loading.
type LoadMode string

const (
	// LoadModeOverwrite drops and recreates the destination table
	LoadModeOverwrite LoadMode = "overwrite"
	// LoadModeAppend keeps the existing table and adds rows to it
	LoadModeAppend LoadMode = "append"
)

// Valid reports whether the load mode is one of the supported values.
func (m LoadMode) Valid() bool {
	return m == LoadModeOverwrite || m == LoadModeAppend
}

// ParseLoadMode converts a user-supplied string into a LoadMode.
func ParseLoadMode(s string) (LoadMode, bool) {
	m := LoadMode(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}

// Record represents one source row as a slice of raw string fields, in
// column position order.
type Record []string

// newRecord creates a new record.
func newRecord(r []string) Record {
	return Record(r)
}

// header is the first source row, treated as column names.
type header []string

// RowError records one rejected source row: the 1-based data row index
// (the header is not counted), the column that failed coercion, and the
// reason.
type RowError struct {
	Row    int64
	Column string
	Reason string
}

// LoadResult is the summary of one ingestion run. Row rejections are a
// partial-success outcome, accumulated here rather than aborting the run.
type LoadResult struct {
	RowsWritten  int64
	RowsRejected int64
	Errors       []RowError
}

// sanitizeIdentifier converts an arbitrary header or file-derived name into
// a safe SQL identifier: spaces and punctuation become underscores, runs of
// underscores collapse, and a leading digit is prefixed.
func sanitizeIdentifier(name, fallback string) string {
	name = strings.TrimSpace(name)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case (r >= firstLowerChar && r <= lastLowerChar) ||
			(r >= firstUpperChar && r <= lastUpperChar) ||
			(r >= firstDigitChar && r <= lastDigitChar):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte(underscoreChar)
				lastUnderscore = true
			}
		}
	}

	result := strings.Trim(b.String(), "_")
	if result == "" {
		return fallback
	}
	if result[0] >= firstDigitChar && result[0] <= lastDigitChar {
		result = fallback + "_" + result
	}
	return result
}

// sanitizeTableName cleans a table name derived from user input or a file
// path.
func sanitizeTableName(name string) string {
	return sanitizeIdentifier(name, "table")
}

// sanitizeColumnName cleans a single column name taken from a header row.
// pos is the zero-based column position, used for unnamed columns.
func sanitizeColumnName(name string, pos int) string {
	return sanitizeIdentifier(name, "column"+strconv.Itoa(pos+1))
}

// BatchSize is a validated insert batch size.
type BatchSize int

// NewBatchSize clamps a requested batch size into the supported range.
// Zero or negative values select the default.
func NewBatchSize(size int) BatchSize {
	switch {
	case size <= 0:
		return BatchSize(DefaultBatchSize)
	case size < MinBatchSize:
		return BatchSize(MinBatchSize)
	case size > MaxBatchSize:
		return BatchSize(MaxBatchSize)
	default:
		return BatchSize(size)
	}
}

// Int returns the int value of BatchSize.
func (bs BatchSize) Int() int {
	return int(bs)
}
