// Package merge joins multiple per-supplier feed files that share a key
// column into one row-set.
//
// The canonical case is a supplier delivering three files: a material file
// (base), a stock file, and a headerless tax file where the only structure is
// "leading digits are the key, the last float is the value". Merge performs a
// left join on the base file's keys; secondary data is folded in where
// present and left empty otherwise.
package merge

import (
	"bytes"
	"encoding/csv"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/feedmill/feedmill/internal/textenc"
)

// ErrEmptyBaseFile indicates the base file produced no rows; callers must
// treat this as fatal rather than importing zero rows.
var ErrEmptyBaseFile = errors.New("merge: base file is empty or unparseable")

// Merger accumulates parsed files and joins them on a shared key column.
type Merger struct {
	key     string
	columns []string
	seen    map[string]struct{}
}

// Row holds one record's non-key columns.
type Row map[string]string

// Delimiter selects how a fixed-format file is tokenized.
type Delimiter string

const (
	// DelimiterSAP splits on tabs or runs of two-plus spaces, the format
	// SAP exports use.
	DelimiterSAP       Delimiter = "sap"
	DelimiterTab       Delimiter = "\t"
	DelimiterSemicolon Delimiter = ";"
	DelimiterComma     Delimiter = ","
)

var (
	sapSplit   = regexp.MustCompile(`\t|\s{2,}`)
	tabSplit   = regexp.MustCompile(`\t`)
	keyPattern = regexp.MustCompile(`^(\d{7,8})`)
	floatToken = regexp.MustCompile(`(\d+[.,]\d+)`)
)

// New creates a Merger joining on the named key column.
func New(key string) *Merger {
	if strings.TrimSpace(key) == "" {
		key = "Matnr"
	}
	return &Merger{key: key, seen: make(map[string]struct{})}
}

// Key returns the merge key column name.
func (m *Merger) Key() string { return m.key }

// ParseFixed parses a header-led file into key→row form. Column names from
// secondary files are prefixed (except the key itself) so same-named columns
// never collide with the base file. Malformed lines are skipped.
func (m *Merger) ParseFixed(content string, delim Delimiter, prefix string) map[string]Row {
	lines := textenc.Lines(content)
	if len(lines) == 0 {
		return nil
	}

	var splitter *regexp.Regexp
	switch delim {
	case DelimiterSAP, "":
		splitter = sapSplit
	case DelimiterTab:
		splitter = tabSplit
	default:
	}

	split := func(line string) []string {
		var cells []string
		if splitter != nil {
			cells = splitter.Split(line, -1)
		} else {
			cells = strings.Split(line, string(delim))
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		return cells
	}

	var headers []string
	keyIdx := -1
	result := make(map[string]Row)

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := split(line)

		if i == 0 {
			headers = cells
			if prefix != "" {
				for j, h := range headers {
					if !strings.EqualFold(h, m.key) {
						headers[j] = prefix + "_" + h
					}
				}
			}
			for j, h := range headers {
				if strings.EqualFold(h, m.key) {
					keyIdx = j
					continue
				}
				m.registerColumn(h)
			}
			continue
		}
		if keyIdx < 0 || keyIdx >= len(cells) {
			continue
		}

		key := strings.TrimSpace(cells[keyIdx])
		if key == "" {
			continue
		}

		row := make(Row, len(headers))
		for j, h := range headers {
			if j == keyIdx || j >= len(cells) {
				continue
			}
			row[h] = cells[j]
		}
		result[key] = row
	}

	return result
}

// ParseTrailingNumber parses the headerless tax/surcharge format: the first
// 7-8 leading digits are the key, the last floating-point token on the line
// is the value (comma accepted as decimal separator). Lines without a key
// are skipped; lines without a float get "0".
func (m *Merger) ParseTrailingNumber(content, column string) map[string]Row {
	result := make(map[string]Row)
	for _, line := range textenc.Lines(content) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := keyPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		value := "0"
		if floats := floatToken.FindAllString(line, -1); len(floats) > 0 {
			value = strings.ReplaceAll(floats[len(floats)-1], ",", ".")
		}
		result[match[1]] = Row{column: value}
	}

	if len(result) > 0 {
		m.registerColumn(column)
	}
	return result
}

// Merge left-joins secondary data onto the base rows: only base keys survive,
// and later files overwrite earlier values for the same column.
func (m *Merger) Merge(base map[string]Row, secondary ...map[string]Row) (map[string]Row, error) {
	if len(base) == 0 {
		return nil, ErrEmptyBaseFile
	}

	merged := make(map[string]Row, len(base))
	for key, row := range base {
		out := make(Row, len(row))
		for col, val := range row {
			out[col] = val
		}
		for _, add := range secondary {
			for col, val := range add[key] {
				out[col] = val
			}
		}
		merged[key] = out
	}
	return merged, nil
}

// Columns returns all registered column names in file order, optionally led
// by the merge key.
func (m *Merger) Columns(includeKey bool) []string {
	cols := make([]string, 0, len(m.columns)+1)
	if includeKey {
		cols = append(cols, m.key)
	}
	return append(cols, m.columns...)
}

// ToCSV renders merged rows as semicolon-separated CSV with a header row.
func (m *Merger) ToCSV(merged map[string]Row, includeKey bool) (string, error) {
	if len(merged) == 0 {
		return "", nil
	}

	headers := m.Columns(includeKey)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if err := w.Write(headers); err != nil {
		return "", err
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		row := merged[key]
		record := make([]string, 0, len(headers))
		if includeKey {
			record = append(record, key)
		}
		for _, col := range m.columns {
			record = append(record, row[col])
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func (m *Merger) registerColumn(name string) {
	if _, ok := m.seen[name]; ok {
		return
	}
	m.seen[name] = struct{}{}
	m.columns = append(m.columns, name)
}
