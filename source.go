package tabsql

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"
)

// SourceOptions adjust how a source file is opened.
type SourceOptions struct {
	// Encoding overrides charset auto-detection for delimited text
	// sources (e.g. "gbk", "utf-16le"). Empty means detect.
	Encoding string
	// MinEncodingConfidence is the chardet confidence (0-100) required to
	// accept a detected charset. Zero selects DefaultEncodingConfidence.
	MinEncodingConfidence int
}

// RowReader yields source rows in file order. Read returns io.EOF after
// the last row. Readers are forward-only; restarting means asking the
// SourceReader for a fresh one.
type RowReader interface {
	Read() (Record, error)
	Close() error
}

// SourceReader opens one CSV, TSV, XLSX, or Parquet file and exposes its
// header plus a restartable-from-start sequence of rows. It owns the open
// file handle for the run and must be closed when the run ends.
type SourceReader struct {
	file      *sourceFile
	opts      SourceOptions
	header    header
	size      int64
	charset   string
	delimiter rune
	active    RowReader
}

// OpenSource opens and classifies a source file, detects its text encoding
// when the format is delimited, and reads the header row. A missing,
// empty, or undecodable file fails with ErrUnreadableSource.
func OpenSource(path string, opts SourceOptions) (*SourceReader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, unreadableSource(path, err)
	}
	if info.Size() == 0 {
		return nil, unreadableSource(path, errors.New("file is empty"))
	}

	file := newSourceFile(path)
	if file.fileType == FileTypeUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	sr := &SourceReader{
		file: file,
		opts: opts,
		size: info.Size(),
	}
	if sr.opts.MinEncodingConfidence <= 0 {
		sr.opts.MinEncodingConfidence = DefaultEncodingConfidence
	}

	if file.fileType.isDelimited() {
		if err := sr.sniffText(); err != nil {
			return nil, err
		}
	}

	// Read the header row once; it also validates that the file parses at
	// all before any database work starts.
	rows, err := sr.open()
	if err != nil {
		return nil, unreadableSource(path, err)
	}
	defer rows.Close()

	first, err := rows.Read()
	if err != nil {
		if err == io.EOF {
			return nil, unreadableSource(path, errors.New("file has no rows"))
		}
		return nil, unreadableSource(path, err)
	}
	if len(first) == 0 {
		return nil, unreadableSource(path, errors.New("header row is empty"))
	}

	names := make(header, len(first))
	for i, name := range first {
		names[i] = sanitizeColumnName(name, i)
	}
	sr.header = names
	return sr, nil
}

// sniffText detects charset and delimiter from the leading bytes of a
// delimited text source.
func (sr *SourceReader) sniffText() error {
	reader, closer, err := sr.file.openReader()
	if err != nil {
		return unreadableSource(sr.file.path, err)
	}
	defer closer()

	sample := make([]byte, encodingSampleSize)
	n, err := io.ReadFull(reader, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return unreadableSource(sr.file.path, err)
	}
	sample = sample[:n]

	// Run the sample through the decoder once so delimiter sniffing sees
	// decoded text, not raw multi-byte sequences.
	decoded, charset, err := newDecodingReader(bytes.NewReader(sample), sample, sr.opts.Encoding, sr.opts.MinEncodingConfidence)
	if err != nil {
		return unreadableSource(sr.file.path, err)
	}
	text, err := io.ReadAll(decoded)
	if err != nil {
		return unreadableSource(sr.file.path, err)
	}

	sr.charset = charset
	if sr.file.fileType == FileTypeTSV {
		sr.delimiter = tsvDelimiter
	} else {
		sr.delimiter = sniffDelimiter(string(text))
	}
	return nil
}

// Header returns the sanitized column names from the first row.
func (sr *SourceReader) Header() []string {
	return append([]string(nil), sr.header...)
}

// Charset returns the charset used to decode a delimited text source, or
// "" for binary formats.
func (sr *SourceReader) Charset() string {
	return sr.charset
}

// Size returns the on-disk size of the source file in bytes.
func (sr *SourceReader) Size() int64 {
	return sr.size
}

// Path returns the source file path.
func (sr *SourceReader) Path() string {
	return sr.file.path
}

// Rows restarts reading from the first data row (the header is skipped)
// and returns a fresh forward-only reader. Any previously returned reader
// is closed first; mid-stream restart is not supported.
func (sr *SourceReader) Rows() (RowReader, error) {
	if sr.active != nil {
		_ = sr.active.Close() // Ignore close error when restarting
		sr.active = nil
	}

	rows, err := sr.open()
	if err != nil {
		return nil, unreadableSource(sr.file.path, err)
	}
	if _, err := rows.Read(); err != nil {
		// Header vanished between opens (file truncated underneath us).
		_ = rows.Close()
		return nil, unreadableSource(sr.file.path, err)
	}
	sr.active = rows
	return rows, nil
}

// Close releases the source file handle.
func (sr *SourceReader) Close() error {
	if sr.active == nil {
		return nil
	}
	err := sr.active.Close()
	sr.active = nil
	return err
}

// open creates a RowReader positioned at the header row.
func (sr *SourceReader) open() (RowReader, error) {
	switch sr.file.fileType {
	case FileTypeCSV, FileTypeTSV:
		return sr.openDelimited()
	case FileTypeXLSX:
		return sr.openXLSX()
	case FileTypeParquet:
		return sr.openParquet()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, sr.file.path)
	}
}

// delimitedRows reads CSV/TSV rows through the charset decoder.
type delimitedRows struct {
	csv    *csv.Reader
	closer func() error
}

// Read returns the next row, padded or io.EOF at end of file.
func (r *delimitedRows) Read() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		return nil, err
	}
	return newRecord(fields), nil
}

// Close releases the underlying file handle.
func (r *delimitedRows) Close() error {
	return r.closer()
}

func (sr *SourceReader) openDelimited() (RowReader, error) {
	reader, closer, err := sr.file.openReader()
	if err != nil {
		return nil, err
	}

	decoded, _, err := newDecodingReader(reader, nil, sr.charset, 0)
	if err != nil {
		_ = closer() // Ignore close error during error handling
		return nil, err
	}

	csvReader := csv.NewReader(decoded)
	csvReader.Comma = sr.delimiter
	// Rows shorter or longer than the header are padded/truncated by the
	// loader, not rejected by the parser.
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	return &delimitedRows{csv: csvReader, closer: closer}, nil
}

// xlsxRows iterates the first sheet of a workbook.
type xlsxRows struct {
	book   *excelize.File
	iter   *excelize.Rows
	closer func() error
	width  int
}

// Read returns the next sheet row padded to the header width.
func (r *xlsxRows) Read() (Record, error) {
	if !r.iter.Next() {
		if err := r.iter.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	cells, err := r.iter.Columns()
	if err != nil {
		return nil, err
	}
	if r.width == 0 {
		// First row read sets the width for padding subsequent rows.
		r.width = len(cells)
	}
	row := make(Record, r.width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row, nil
}

// Close releases the workbook.
func (r *xlsxRows) Close() error {
	_ = r.iter.Close() // Ignore iterator close error
	err := r.book.Close()
	if r.closer != nil {
		_ = r.closer() // Ignore file close error after workbook close
	}
	return err
}

func (sr *SourceReader) openXLSX() (RowReader, error) {
	var book *excelize.File
	var closer func() error

	if sr.file.compression != CompressionNone {
		// Compressed workbooks are decompressed into memory; excelize
		// needs random access to the ZIP container.
		reader, c, err := sr.file.openReader()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(reader)
		_ = c() // Ignore close error after full read
		if err != nil {
			return nil, err
		}
		book, err = excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		book, err = excelize.OpenFile(sr.file.path)
		if err != nil {
			return nil, err
		}
		closer = nil
	}

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		_ = book.Close() // Ignore close error during error handling
		return nil, errors.New("no sheets found in workbook")
	}

	// Only the first sheet is read; sheet selection is an external concern.
	iter, err := book.Rows(sheets[0])
	if err != nil {
		_ = book.Close() // Ignore close error during error handling
		return nil, fmt.Errorf("failed to open rows iterator for sheet %s: %w", sheets[0], err)
	}

	return &xlsxRows{book: book, iter: iter, closer: closer}, nil
}

// parquetRows replays rows materialized from a Parquet file. Parquet needs
// random access, so the file is decoded up front and iterated from memory.
type parquetRows struct {
	records []Record
	pos     int
}

// Read returns the next materialized row or io.EOF.
func (r *parquetRows) Read() (Record, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	row := r.records[r.pos]
	r.pos++
	return row, nil
}

// Close is a no-op; the backing slice is garbage collected.
func (r *parquetRows) Close() error {
	return nil
}

func (sr *SourceReader) openParquet() (RowReader, error) {
	reader, closer, err := sr.file.openReader()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(reader)
	_ = closer() // Ignore close error after full read
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty parquet file")
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	arrowTable, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet table: %w", err)
	}
	defer arrowTable.Release()

	schema := arrowTable.Schema()
	headerRow := make(Record, schema.NumFields())
	for i, field := range schema.Fields() {
		headerRow[i] = field.Name
	}

	records := []Record{headerRow}
	tableReader := array.NewTableReader(arrowTable, 0)
	defer tableReader.Release()

	for tableReader.Next() {
		batch := tableReader.Record()
		numRows := batch.NumRows()
		for i := int64(0); i < numRows; i++ {
			row := make(Record, batch.NumCols())
			for j, col := range batch.Columns() {
				row[j] = formatArrowValue(col, int(i))
			}
			records = append(records, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, fmt.Errorf("error reading parquet records: %w", err)
	}

	return &parquetRows{records: records}, nil
}

// formatArrowValue renders one Arrow array element as the string form the
// inference and coercion layers expect. Nulls become empty strings, the
// same representation as an empty delimited-text cell.
func formatArrowValue(col arrow.Array, row int) string {
	if col.IsNull(row) {
		return ""
	}
	return col.ValueStr(row)
}
