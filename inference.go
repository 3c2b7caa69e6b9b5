package tabsql

import (
	"io"
	"strconv"
	"strings"
	"time"
)

// Sampling constants
const (
	// DefaultMaxSampleRows bounds the inference sample for large files
	DefaultMaxSampleRows = 10000
	// DefaultFullScanThreshold is the file size (bytes) under which the
	// whole file is sampled instead of a prefix
	DefaultFullScanThreshold = 32 << 20
	// maxIntegerDigits guards ParseInt against absurdly long digit runs
	maxIntegerDigits = 20
)

// dateLayouts are the accepted calendar date representations, most common
// first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// datetimeLayouts are the accepted date-and-time representations.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
}

// SampleStats describes the sample a schema was inferred from, used for
// row-count estimation when only a prefix was read.
type SampleStats struct {
	// Rows is the number of data rows sampled
	Rows int64
	// Bytes approximates the raw size of the sampled rows
	Bytes int64
	// Exhausted is true when the sample covered the whole file, making
	// Rows an exact count
	Exhausted bool
}

// classifyValue determines the most specific type of a single non-empty
// value. The precedence is fixed: INTEGER, REAL, BOOLEAN, DATE, DATETIME,
// then TEXT as the fallback. Because numeric parsing runs first, "1" and
// "0" are integers, never booleans.
func classifyValue(value string) ColumnType {
	if isInteger(value) {
		return ColumnTypeInteger
	}
	if isFloat(value) {
		return ColumnTypeReal
	}
	if isBoolean(value) {
		return ColumnTypeBoolean
	}
	if isDate(value) {
		return ColumnTypeDate
	}
	if isDatetime(value) {
		return ColumnTypeDatetime
	}
	return ColumnTypeText
}

// isInteger checks for a 64-bit integer with a cheap pre-check.
func isInteger(value string) bool {
	if len(value) == 0 || len(value) > maxIntegerDigits {
		return false
	}
	first := value[0]
	if first != '+' && first != '-' && (first < '0' || first > '9') {
		return false
	}
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

// isFloat checks for a float, excluding inf/nan spellings that ParseFloat
// would otherwise accept.
func isFloat(value string) bool {
	hasDigit := false
	for _, r := range value {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// isBoolean accepts only the words true and false, case-insensitively.
// Numeric spellings like "1"/"0" are handled by the integer check.
func isBoolean(value string) bool {
	return strings.EqualFold(value, "true") || strings.EqualFold(value, "false")
}

// isDate checks for a calendar date without a time component.
func isDate(value string) bool {
	if len(value) < 8 || len(value) > 10 {
		return false
	}
	if !strings.ContainsAny(value, "-/") {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// isDatetime checks for a date with a time component.
func isDatetime(value string) bool {
	if len(value) < 14 || len(value) > 35 {
		return false
	}
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// columnState accumulates per-column inference over the sample.
type columnState struct {
	typ      ColumnType
	hasValue bool
	hasEmpty bool
}

// fold merges one cell into the column state.
func (cs *columnState) fold(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		cs.hasEmpty = true
		return
	}
	vt := classifyValue(value)
	if !cs.hasValue {
		cs.typ = vt
		cs.hasValue = true
		return
	}
	cs.typ = promote(cs.typ, vt)
}

// spec converts the accumulated state into a ColumnSpec. A column with no
// non-empty sampled values infers to TEXT, nullable.
func (cs *columnState) spec(name string) ColumnSpec {
	if !cs.hasValue {
		return ColumnSpec{Name: name, Type: ColumnTypeText, Nullable: true}
	}
	return ColumnSpec{Name: name, Type: cs.typ, Nullable: cs.hasEmpty}
}

// InferSchema consumes up to maxRows data rows from a fresh pass over the
// source and derives the destination schema: per column, the narrowest
// type that accommodates every sampled non-empty value, and nullability
// from the presence of empty values. maxRows <= 0 samples the whole file.
//
// Inference is a pure fold over the sample; the source is restarted before
// loading, and rows seen later never revise the schema.
func InferSchema(src *SourceReader, tableName string, maxRows int64) (*TableSchema, *SampleStats, error) {
	rows, err := src.Rows()
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	names := src.Header()
	states := make([]columnState, len(names))
	stats := &SampleStats{}

	for maxRows <= 0 || stats.Rows < maxRows {
		row, err := rows.Read()
		if err != nil {
			if err == io.EOF {
				stats.Exhausted = true
				break
			}
			return nil, nil, unreadableSource(src.Path(), err)
		}

		stats.Rows++
		for i := range states {
			if i < len(row) {
				states[i].fold(row[i])
				stats.Bytes += int64(len(row[i]) + 1)
			} else {
				// A short row leaves trailing columns empty.
				states[i].hasEmpty = true
			}
		}
	}

	columns := make([]ColumnSpec, len(names))
	for i, name := range names {
		columns[i] = states[i].spec(name)
	}

	return &TableSchema{
		Table:   sanitizeTableName(tableName),
		Columns: columns,
	}, stats, nil
}

// estimateTotalRows projects a total row count for progress reporting.
// When the sample covered the whole file the count is exact; otherwise the
// file size is extrapolated by the average sampled row size.
//
// For compressed sources fileSize is the on-disk (compressed) size while
// the sampled bytes are decompressed, so the estimate undershoots by
// roughly the compression ratio. It feeds progress display only, and the
// progress callback clamps the estimate to at least the committed count.
func estimateTotalRows(fileSize int64, stats *SampleStats) int64 {
	if stats.Exhausted || stats.Rows == 0 {
		return stats.Rows
	}
	if stats.Bytes == 0 {
		return stats.Rows
	}
	avg := float64(stats.Bytes) / float64(stats.Rows)
	estimate := int64(float64(fileSize) / avg)
	if estimate < stats.Rows {
		estimate = stats.Rows
	}
	return estimate
}
