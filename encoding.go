package tabsql

import (
	"fmt"
	"io"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding detection constants
const (
	// encodingSampleSize is how many bytes are sniffed for charset detection
	encodingSampleSize = 4096
	// DefaultEncodingConfidence is the minimum chardet confidence (0-100)
	// accepted without a user-supplied encoding override
	DefaultEncodingConfidence = 60
)

// detectedEncoding is the outcome of charset sniffing on a text source.
type detectedEncoding struct {
	charset    string
	confidence int
}

// detectEncoding sniffs the charset of a byte sample. An empty sample is
// reported as UTF-8 with zero confidence; callers reject empty files before
// this point.
//
// Pure ASCII short-circuits to UTF-8: every candidate charset decodes it
// identically, and statistical detectors report weak confidence on input
// with no multi-byte evidence.
func detectEncoding(sample []byte) detectedEncoding {
	if len(sample) == 0 {
		return detectedEncoding{charset: "UTF-8"}
	}
	if isASCII(sample) {
		return detectedEncoding{charset: "UTF-8", confidence: 100}
	}
	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return detectedEncoding{charset: "UTF-8"}
	}
	return detectedEncoding{charset: result.Charset, confidence: result.Confidence}
}

// isASCII reports whether every byte is 7-bit.
func isASCII(sample []byte) bool {
	for _, b := range sample {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// resolveCharset maps a charset name to a decoding transformer. The
// BOM override keeps byte-order marks out of the first header field and
// handles UTF-16 inputs that carry one.
func resolveCharset(name string) (transform.Transformer, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	return unicode.BOMOverride(enc.NewDecoder()), nil
}

// newDecodingReader wraps reader so that it yields UTF-8 text.
//
// When override is non-empty it names the charset to use and detection is
// skipped. Otherwise the charset is sniffed from sample; a detection
// confidence below minConfidence is an error, since loading rows decoded
// with the wrong charset silently corrupts the destination table.
func newDecodingReader(reader io.Reader, sample []byte, override string, minConfidence int) (io.Reader, string, error) {
	if override != "" {
		t, err := resolveCharset(override)
		if err != nil {
			return nil, "", err
		}
		return transform.NewReader(reader, t), override, nil
	}

	det := detectEncoding(sample)
	if det.confidence < minConfidence {
		return nil, "", fmt.Errorf("encoding detection confidence %d%% below threshold %d%% (detected %s)",
			det.confidence, minConfidence, det.charset)
	}

	t, err := resolveCharset(det.charset)
	if err != nil {
		// chardet occasionally names charsets outside the WHATWG index
		// (e.g. ISO-2022 variants). Without an override that is not
		// decodable, so treat it like low confidence.
		return nil, "", err
	}
	return transform.NewReader(reader, t), det.charset, nil
}
