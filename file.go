package tabsql

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileType represents the base format of a source file, before any outer
// compression.
type FileType int

const (
	// FileTypeCSV represents comma-separated text
	FileTypeCSV FileType = iota
	// FileTypeTSV represents tab-separated text
	FileTypeTSV
	// FileTypeXLSX represents Excel workbooks
	FileTypeXLSX
	// FileTypeParquet represents Apache Parquet files
	FileTypeParquet
	// FileTypeUnsupported represents unrecognized formats
	FileTypeUnsupported
)

// File extensions
const (
	// extCSV is the CSV file extension
	extCSV = ".csv"
	// extTSV is the TSV file extension
	extTSV = ".tsv"
	// extXLSX is the Excel workbook extension
	extXLSX = ".xlsx"
	// extParquet is the Parquet file extension
	extParquet = ".parquet"
)

// sniffSampleSize is how many bytes of an unknown file are inspected to
// decide whether it is delimited text.
const sniffSampleSize = 4096

// String returns the format name.
func (ft FileType) String() string {
	switch ft {
	case FileTypeCSV:
		return "CSV"
	case FileTypeTSV:
		return "TSV"
	case FileTypeXLSX:
		return "XLSX"
	case FileTypeParquet:
		return "Parquet"
	default:
		return "unsupported"
	}
}

// isDelimited reports whether the format is delimited text, the only
// family that goes through encoding detection.
func (ft FileType) isDelimited() bool {
	return ft == FileTypeCSV || ft == FileTypeTSV
}

// sourceFile models one source file: its path, base format, and outer
// compression.
type sourceFile struct {
	path        string
	fileType    FileType
	compression CompressionType
}

// newSourceFile classifies a path by extension. Files whose extension is
// unknown are sniffed by content: enough delimiter characters in the
// leading bytes classify them as delimited text (the original tool's
// fallback for extensionless exports).
func newSourceFile(path string) *sourceFile {
	compression, basePath := detectCompression(path)
	f := &sourceFile{
		path:        path,
		compression: compression,
	}

	switch strings.ToLower(filepath.Ext(basePath)) {
	case extCSV:
		f.fileType = FileTypeCSV
	case extTSV:
		f.fileType = FileTypeTSV
	case extXLSX:
		f.fileType = FileTypeXLSX
	case extParquet:
		f.fileType = FileTypeParquet
	default:
		f.fileType = sniffFileType(path, compression)
	}
	return f
}

// sniffFileType inspects the leading bytes of a file with an unknown
// extension and classifies it as CSV or TSV when a delimiter dominates.
func sniffFileType(path string, compression CompressionType) FileType {
	file, err := os.Open(path)
	if err != nil {
		return FileTypeUnsupported
	}
	defer file.Close()

	reader, closer, err := compression.newReader(file)
	if err != nil {
		return FileTypeUnsupported
	}
	defer closer()

	sample := make([]byte, sniffSampleSize)
	n, err := io.ReadFull(reader, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnsupported
	}
	sample = sample[:n]

	// XLSX is a ZIP container, Parquet starts with "PAR1".
	if len(sample) >= 4 {
		if sample[0] == 'P' && sample[1] == 'K' && sample[2] == 0x03 && sample[3] == 0x04 {
			return FileTypeXLSX
		}
		if string(sample[:4]) == "PAR1" {
			return FileTypeParquet
		}
	}

	tabs := strings.Count(string(sample), "\t")
	commas := strings.Count(string(sample), ",")
	switch {
	case tabs > 5 && tabs >= commas:
		return FileTypeTSV
	case commas > 5:
		return FileTypeCSV
	default:
		return FileTypeUnsupported
	}
}

// sniffDelimiter picks the dominant delimiter in a decoded text sample.
// Comma wins ties, matching the common case.
func sniffDelimiter(sample string) rune {
	candidates := []rune{csvDelimiter, ';', tsvDelimiter, '|'}
	best := rune(csvDelimiter)
	bestCount := 0
	for _, c := range candidates {
		if n := strings.Count(sample, string(c)); n > bestCount {
			best = c
			bestCount = n
		}
	}
	return best
}

// openReader opens the file and layers the decompressor over it. The
// returned close function releases both.
func (f *sourceFile) openReader() (io.Reader, func() error, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, nil, err
	}

	reader, closer, err := f.compression.newReader(file)
	if err != nil {
		_ = file.Close() // Ignore close error during error handling
		return nil, nil, err
	}

	return reader, func() error {
		_ = closer() // Ignore decompressor close error in cleanup
		return file.Close()
	}, nil
}

// tableFromFilePath derives a destination table name from a file path,
// stripping compression and format extensions.
func tableFromFilePath(filePath string) string {
	fileName := filepath.Base(filePath)
	_, fileName = detectCompression(fileName)
	fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return sanitizeTableName(fileName)
}
