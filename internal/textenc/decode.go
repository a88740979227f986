// Package textenc turns raw supplier file bytes into text lines.
//
// Feeds arrive in whatever encoding the supplier's export tool produced.
// Decode tries a fixed candidate list and only falls back to lossy UTF-8
// replacement when nothing decodes cleanly; callers inspect Degraded to count
// encoding-error rows. The decoder never fails: it always returns something
// usable.
package textenc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Result is the outcome of decoding a payload.
type Result struct {
	Text     string
	Encoding string
	// Degraded is set when every candidate failed and invalid bytes were
	// replaced with U+FFFD.
	Degraded bool
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw bytes to text, trying UTF-8 (with and without BOM),
// Windows-1252, then ISO 8859-1. NUL bytes are stripped first; some SAP
// exports pad cells with them.
func Decode(data []byte) Result {
	data = bytes.ReplaceAll(data, []byte{0}, nil)

	if bytes.HasPrefix(data, utf8BOM) {
		trimmed := data[len(utf8BOM):]
		if utf8.Valid(trimmed) {
			return Result{Text: string(trimmed), Encoding: "utf-8-sig"}
		}
	}
	if utf8.Valid(data) {
		return Result{Text: string(data), Encoding: "utf-8"}
	}

	// Windows-1252 decodes every byte except five undefined code points, so
	// it has to be tried before Latin-1 (which never fails).
	if text, ok := decodeCharmap(charmap.Windows1252, data); ok {
		return Result{Text: text, Encoding: "cp1252"}
	}
	if text, ok := decodeCharmap(charmap.ISO8859_1, data); ok {
		return Result{Text: text, Encoding: "latin-1"}
	}

	return Result{Text: string(bytes.ToValidUTF8(data, []byte("�"))), Encoding: "utf-8", Degraded: true}
}

func decodeCharmap(cm *charmap.Charmap, data []byte) (string, bool) {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		r := cm.DecodeByte(c)
		if r == utf8.RuneError {
			return "", false
		}
		b.WriteRune(r)
	}
	return b.String(), true
}

// Lines splits decoded text into lines, tolerating CRLF, CR, and LF endings.
// A trailing empty line from a final terminator is dropped.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// DecodeLines is the common Decode + Lines composition.
func DecodeLines(data []byte) ([]string, Result) {
	res := Decode(data)
	return Lines(res.Text), res
}
