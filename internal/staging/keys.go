package staging

import (
	"strings"
	"unicode"
)

// SplitKeys breaks a mapped key cell into individual candidate keys. Feeds
// pack alias barcodes into one cell separated by commas; entries that are
// empty, longer than maxLen, or carry non-printable runes are dropped rather
// than failing the row.
func SplitKeys(value string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 50
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		key := strings.TrimSpace(part)
		if key == "" || len(key) > maxLen || !printable(key) {
			continue
		}
		out = append(out, key)
	}
	return out
}

func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
