// Package tabsql loads tabular files into relational tables.
//
// It ingests delimited text (CSV, TSV, optionally gzip/bzip2/xz/zstd
// compressed), Excel workbooks (first sheet), and Parquet files, infers a
// column schema from the file's content, and bulk-loads the rows into
// either an embedded SQLite database file or a networked MySQL server.
//
// The pipeline runs in strict sequence for one source file and one
// destination table:
//
//	source reading -> schema inference -> table reconciliation -> batch loading
//
// Schema inference samples a bounded prefix of the file (the whole file
// for small inputs) and derives, per column, the narrowest type that
// accommodates every sampled non-empty value, with the fixed precedence
// INTEGER, REAL, BOOLEAN, DATE, DATETIME, TEXT. The schema is frozen once
// loading begins; rows that later violate it are rejected and recorded,
// never used to revise the schema.
//
// Basic usage:
//
//	result, err := tabsql.Ingest(ctx, tabsql.Options{
//		SourcePath: "people.csv",
//		Table:      "people",
//		Mode:       tabsql.LoadModeOverwrite,
//		Destination: tabsql.Destination{
//			Engine: tabsql.EngineSQLite,
//			Path:   "people.db",
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("loaded %d rows, rejected %d\n", result.RowsWritten, result.RowsRejected)
//
// Row-level coercion failures and failed batches are partial-success
// outcomes: they accumulate into the returned LoadResult while the run
// continues. Only an unreadable source, a schema conflict on append, or a
// destination connection failure aborts a run.
package tabsql
