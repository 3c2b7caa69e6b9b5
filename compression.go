package tabsql

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression extensions
const (
	// extGZ is the gzip compression extension
	extGZ = ".gz"
	// extBZ2 is the bzip2 compression extension
	extBZ2 = ".bz2"
	// extXZ is the xz compression extension
	extXZ = ".xz"
	// extZSTD is the zstd compression extension
	extZSTD = ".zst"
)

// CompressionType identifies the outer compression of a source file.
type CompressionType int

const (
	// CompressionNone means the file is not compressed
	CompressionNone CompressionType = iota
	// CompressionGZ means gzip compression
	CompressionGZ
	// CompressionBZ2 means bzip2 compression
	CompressionBZ2
	// CompressionXZ means xz compression
	CompressionXZ
	// CompressionZSTD means zstd compression
	CompressionZSTD
)

// detectCompression determines compression from the file name suffix and
// returns the path with the compression extension stripped.
func detectCompression(path string) (CompressionType, string) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, extGZ):
		return CompressionGZ, path[:len(path)-len(extGZ)]
	case strings.HasSuffix(lower, extBZ2):
		return CompressionBZ2, path[:len(path)-len(extBZ2)]
	case strings.HasSuffix(lower, extXZ):
		return CompressionXZ, path[:len(path)-len(extXZ)]
	case strings.HasSuffix(lower, extZSTD):
		return CompressionZSTD, path[:len(path)-len(extZSTD)]
	default:
		return CompressionNone, path
	}
}

// newReader wraps reader with the matching decompressor. The returned close
// function releases decompressor state only; closing the underlying file is
// the caller's job.
func (c CompressionType) newReader(reader io.Reader) (io.Reader, func() error, error) {
	switch c {
	case CompressionGZ:
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case CompressionBZ2:
		// bzip2.NewReader doesn't need closing
		return bzip2.NewReader(reader), func() error { return nil }, nil

	case CompressionXZ:
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		// xz.Reader doesn't have a Close method
		return xzReader, func() error { return nil }, nil

	case CompressionZSTD:
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error { decoder.Close(); return nil }, nil

	default:
		return reader, func() error { return nil }, nil
	}
}
