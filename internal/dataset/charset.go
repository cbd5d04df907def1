package dataset

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// sampleSize is how much of the file is handed to the charset detector.
const sampleSize = 10000

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw to a UTF-8 string and reports the charset it was decoded from.
// Valid UTF-8 is returned untouched (minus a BOM); anything else goes through the
// detector's best guess, falling back to Windows-1252.
func Decode(raw []byte) (string, string, error) {
	if bytes.HasPrefix(raw, utf8BOM) {
		raw = raw[len(utf8BOM):]
	}
	if utf8.Valid(raw) {
		return string(raw), "UTF-8", nil
	}

	name, enc := detect(raw)
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", name, fmt.Errorf("failed to decode as %s: %w", name, err)
	}
	return string(decoded), name, nil
}

func detect(raw []byte) (string, encoding.Encoding) {
	sample := raw
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err == nil && result != nil && !strings.EqualFold(result.Charset, "UTF-8") {
		if enc, err := htmlindex.Get(result.Charset); err == nil {
			return result.Charset, enc
		}
	}
	return "windows-1252", charmap.Windows1252
}
