package tabsql

import (
	"context"
	"fmt"
)

// Options configure one source-file-to-one-table ingestion run.
type Options struct {
	// SourcePath is the CSV/TSV/XLSX/Parquet file to load.
	SourcePath string
	// Table is the destination table name. Empty derives it from the
	// source file name.
	Table string
	// Mode selects overwrite or append.
	Mode LoadMode
	// Destination selects and parameterizes the engine.
	Destination Destination
	// Source adjusts encoding handling.
	Source SourceOptions
	// BatchSize is the initial rows-per-batch; zero selects the default.
	BatchSize int
	// MemoryLimitMB caps heap usage for adaptive batch sizing. Zero
	// selects the default; a negative value disables adaptive sizing so
	// the batch size stays fixed for the whole run.
	MemoryLimitMB int64
	// MaxSampleRows bounds schema inference. Zero applies the size
	// policy: whole file under FullScanThreshold, prefix sample above.
	MaxSampleRows int64
	// FullScanThreshold is the file size (bytes) below which the whole
	// file is sampled; zero selects the default.
	FullScanThreshold int64
	// Progress, when set, is called after every committed batch.
	Progress ProgressFunc
}

// Ingest runs the pipeline for one source file: open and sniff the source,
// infer the schema from a bounded sample, reconcile the destination table,
// then bulk-load in batches. The stages run in strict sequence; each
// stage's output is a precondition for the next.
//
// Fatal errors (unreadable source, schema conflict, connection failure)
// abort the run. Row and batch rejections accumulate into the returned
// LoadResult and are not errors.
func Ingest(ctx context.Context, opts Options) (*LoadResult, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid load mode %q", opts.Mode)
	}

	src, err := OpenSource(opts.SourcePath, opts.Source)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = src.Close() // Ignore close error; the run already ended
	}()

	table := opts.Table
	if table == "" {
		table = tableFromFilePath(opts.SourcePath)
	}

	maxSample := opts.MaxSampleRows
	if maxSample <= 0 {
		threshold := opts.FullScanThreshold
		if threshold <= 0 {
			threshold = DefaultFullScanThreshold
		}
		if src.Size() >= threshold {
			maxSample = DefaultMaxSampleRows
		}
	}

	schema, stats, err := InferSchema(src, table, maxSample)
	if err != nil {
		return nil, err
	}
	totalEstimate := estimateTotalRows(src.Size(), stats)

	conn, err := Connect(ctx, opts.Destination)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = conn.Close() // Ignore close error; the run already ended
	}()

	reconciled, err := NewReconciler(conn).Reconcile(ctx, schema, opts.Mode)
	if err != nil {
		return nil, err
	}

	rows, err := src.Rows()
	if err != nil {
		return nil, err
	}

	memoryLimit := NewMemoryLimit(opts.MemoryLimitMB)
	if opts.MemoryLimitMB < 0 {
		memoryLimit.Disable()
	}

	loader := NewLoader(conn, reconciled,
		WithBatchSize(opts.BatchSize),
		WithMemoryLimit(memoryLimit),
		WithProgress(opts.Progress),
	)
	return loader.Load(ctx, rows, totalEstimate)
}
