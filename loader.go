package tabsql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Coerced temporal formats; both engines accept these literals.
const (
	dateOutputLayout     = "2006-01-02"
	datetimeOutputLayout = "2006-01-02 15:04:05"
)

// ProgressFunc is called after every committed batch with the number of
// rows committed so far and the estimated total.
type ProgressFunc func(rowsCommitted, rowsTotalEstimate int64)

// Loader pulls source rows, coerces each cell to its column's inferred
// type, and submits fixed-size batches through the connection. Rows that
// fail coercion are rejected and recorded; a failed batch insert is
// retried once and then recorded as a batch-level failure. Neither aborts
// the run.
type Loader struct {
	conn        Conn
	schema      *TableSchema
	batchSize   int
	memoryLimit *MemoryLimit
	progress    ProgressFunc
}

// LoaderOption adjusts Loader behavior.
type LoaderOption func(*Loader)

// WithBatchSize sets the initial rows-per-batch, clamped into the
// supported range.
func WithBatchSize(size int) LoaderOption {
	return func(l *Loader) {
		l.batchSize = NewBatchSize(size).Int()
	}
}

// WithMemoryLimit installs a heap ceiling for adaptive batch sizing.
func WithMemoryLimit(limit *MemoryLimit) LoaderOption {
	return func(l *Loader) {
		l.memoryLimit = limit
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) LoaderOption {
	return func(l *Loader) {
		l.progress = fn
	}
}

// NewLoader creates a loader writing to the reconciled schema through the
// run's connection.
func NewLoader(conn Conn, schema *TableSchema, opts ...LoaderOption) *Loader {
	l := &Loader{
		conn:        conn,
		schema:      schema,
		batchSize:   DefaultBatchSize,
		memoryLimit: NewMemoryLimit(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// stagedRow pairs a coerced row with its 1-based source index for batch
// failure reporting.
type stagedRow struct {
	index  int64
	values []any
}

// Load drives the row stream to completion and returns the accumulated
// result. Only connection loss and cancellation abort the run; coercion
// and insert failures accumulate into the result.
func (l *Loader) Load(ctx context.Context, rows RowReader, totalEstimate int64) (*LoadResult, error) {
	result := &LoadResult{}
	currentSize := l.batchSize
	batch := make([]stagedRow, 0, currentSize)

	var rowIndex int64
	for {
		row, err := rows.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return result, unreadableSource("source stream", err)
		}

		rowIndex++
		values, rejectErr := l.coerceRow(row, rowIndex)
		if rejectErr != nil {
			result.RowsRejected++
			result.Errors = append(result.Errors, *rejectErr)
			continue
		}
		batch = append(batch, stagedRow{index: rowIndex, values: values})

		if len(batch) >= currentSize {
			if err := l.flush(ctx, batch, result, totalEstimate); err != nil {
				return result, err
			}
			batch = batch[:0]

			// Adaptive backpressure: sample memory between batches and
			// shrink subsequent batches under pressure. The size never
			// grows back within a run.
			if reduce, newSize := l.memoryLimit.ShouldReduceBatchSize(currentSize); reduce {
				if newSize < 1 {
					newSize = 1
				}
				currentSize = newSize
			}
		}
	}

	if len(batch) > 0 {
		if err := l.flush(ctx, batch, result, totalEstimate); err != nil {
			return result, err
		}
	}
	return result, nil
}

// coerceRow converts raw cells into driver values per the schema. Rows
// shorter than the header are padded with empty cells, longer ones
// truncated. The first failing cell rejects the whole row.
func (l *Loader) coerceRow(row Record, rowIndex int64) ([]any, *RowError) {
	values := make([]any, len(l.schema.Columns))
	for i, col := range l.schema.Columns {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		v, err := coerceCell(cell, col)
		if err != nil {
			return nil, &RowError{Row: rowIndex, Column: col.Name, Reason: err.Error()}
		}
		values[i] = v
	}
	return values, nil
}

// coerceCell converts one raw cell to the column's inferred type. The
// schema is frozen, so a value the sample never predicted is a rejection,
// not a schema revision.
func coerceCell(value string, col ColumnSpec) (any, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if col.Type == ColumnTypeText && !col.Nullable {
			// An empty string is a valid TEXT value.
			return value, nil
		}
		if !col.Nullable {
			return nil, errors.New("empty value in non-nullable column")
		}
		return nil, nil
	}

	switch col.Type {
	case ColumnTypeInteger:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", trimmed)
		}
		return n, nil

	case ColumnTypeReal:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || !isFloat(trimmed) {
			return nil, fmt.Errorf("%q is not a number", trimmed)
		}
		return f, nil

	case ColumnTypeBoolean:
		switch {
		case strings.EqualFold(trimmed, "true"):
			return true, nil
		case strings.EqualFold(trimmed, "false"):
			return false, nil
		default:
			return nil, fmt.Errorf("%q is not a boolean", trimmed)
		}

	case ColumnTypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.Format(dateOutputLayout), nil
			}
		}
		return nil, fmt.Errorf("%q is not a date", trimmed)

	case ColumnTypeDatetime:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.Format(datetimeOutputLayout), nil
			}
		}
		// A bare date widens into a datetime column at midnight.
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.Format(datetimeOutputLayout), nil
			}
		}
		return nil, fmt.Errorf("%q is not a datetime", trimmed)

	default:
		return value, nil
	}
}

// flush submits one batch inside its own transaction, retrying the whole
// batch once. A second failure records every row in the batch as failed
// and the run continues; connection loss and cancellation are fatal.
func (l *Loader) flush(ctx context.Context, batch []stagedRow, result *LoadResult, totalEstimate int64) error {
	rows := make([][]any, len(batch))
	for i, staged := range batch {
		rows[i] = staged.values
	}
	columns := l.schema.ColumnNames()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		lastErr = l.insertOnce(ctx, columns, rows)
		if lastErr == nil {
			result.RowsWritten += int64(len(batch))
			if l.progress != nil {
				estimate := totalEstimate
				if estimate < result.RowsWritten {
					estimate = result.RowsWritten
				}
				l.progress(result.RowsWritten, estimate)
			}
			return nil
		}
		if fatalInsertError(ctx, lastErr) {
			return connectionError("batch insert", lastErr)
		}
	}

	// Batch-level failure: every row in the batch is recorded.
	for _, staged := range batch {
		result.Errors = append(result.Errors, RowError{
			Row:    staged.index,
			Reason: fmt.Sprintf("batch insert failed: %v", lastErr),
		})
	}
	result.RowsRejected += int64(len(batch))
	return nil
}

// insertOnce runs one transactional attempt at a batch.
func (l *Loader) insertOnce(ctx context.Context, columns []string, rows [][]any) error {
	if err := l.conn.Begin(ctx); err != nil {
		return err
	}
	if err := l.conn.InsertBatch(ctx, l.schema.Table, columns, rows); err != nil {
		_ = l.conn.Rollback() // Batch atomicity: roll back the failed attempt
		return err
	}
	return l.conn.Commit()
}

// fatalInsertError reports whether a batch failure means the destination
// is gone rather than the data being bad.
func fatalInsertError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
