// Package export renders store contents as semicolon-separated CSV files for
// operators and downstream spreadsheets.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/store"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Exporter writes CSV exports into the configured export directory.
type Exporter struct {
	store *store.Store
	dir   string

	// WithBOM prepends a UTF-8 byte order mark so Excel opens the files with
	// the right encoding.
	WithBOM bool
}

// New builds an exporter targeting cfg's export directory.
func New(st *store.Store, cfg *config.Config) *Exporter {
	return &Exporter{store: st, dir: cfg.Paths.ExportDir, WithBOM: true}
}

// ErrorRows exports a run's quarantined rows as "line;key;error;raw" and
// returns the written file path. A zero runID exports across all runs.
func (e *Exporter) ErrorRows(ctx context.Context, runID int64) (string, error) {
	rows, err := e.store.ListStagingRows(ctx, runID, 0)
	if err != nil {
		return "", err
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"line", "key", "error", "raw"})
	for _, row := range rows {
		records = append(records, []string{
			strconv.Itoa(row.RowNumber),
			row.Key,
			string(row.ErrorType),
			row.RawData,
		})
	}

	name := "errors.csv"
	if runID > 0 {
		name = fmt.Sprintf("errors_run%d.csv", runID)
	}
	return e.write(name, records)
}

// Brands exports the canonical brand table with aliases.
func (e *Exporter) Brands(ctx context.Context) (string, error) {
	brands, err := e.store.ListBrands(ctx)
	if err != nil {
		return "", err
	}

	records := make([][]string, 0, len(brands)+1)
	records = append(records, []string{"name", "manufacturer", "aliases"})
	for _, b := range brands {
		records = append(records, []string{b.Name, b.Manufacturer, strings.Join(b.AliasList(), ",")})
	}
	return e.write("brands.csv", records)
}

// Providers exports the configured feed sources.
func (e *Exporter) Providers(ctx context.Context) (string, error) {
	providers, err := e.store.ListProviders(ctx)
	if err != nil {
		return "", err
	}

	records := make([][]string, 0, len(providers)+1)
	records = append(records, []string{"code", "name", "merge_key", "file_pattern", "skip_existing", "schedule_active"})
	for _, p := range providers {
		records = append(records, []string{
			p.Code, p.Name, p.MergeKey, p.FilePattern,
			strconv.FormatBool(p.SkipExisting), strconv.FormatBool(p.ScheduleActive),
		})
	}
	return e.write("providers.csv", records)
}

func (e *Exporter) write(name string, records [][]string) (string, error) {
	var buf bytes.Buffer
	if e.WithBOM {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	stamped := time.Now().UTC().Format("20060102_150405") + "_" + name
	path := filepath.Join(e.dir, stamped)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
