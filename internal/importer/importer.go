// Package importer executes one import run end to end: acquire the
// provider's feed files, merge them on the key column, decode and tokenize
// the result, and commit rows through the staging processor.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/mapping"
	"github.com/feedmill/feedmill/internal/merge"
	"github.com/feedmill/feedmill/internal/retry"
	"github.com/feedmill/feedmill/internal/staging"
	"github.com/feedmill/feedmill/internal/store"
	"github.com/feedmill/feedmill/internal/textenc"
)

// Result summarizes one executed run.
type Result struct {
	Counts          store.RunCounts
	FilesDownloaded int
	FilesImported   int
}

// Importer drives the feed-to-catalog pipeline for individual runs.
type Importer struct {
	store     *store.Store
	processor *staging.Processor
	cfg       *config.Config
	logger    *slog.Logger
}

// New builds an importer.
func New(st *store.Store, processor *staging.Processor, cfg *config.Config, logger *slog.Logger) *Importer {
	return &Importer{
		store:     st,
		processor: processor,
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "importer"),
	}
}

var headerSplit = regexp.MustCompile(`\t|\s{2,}|;|,`)

// Execute runs the full pipeline for a run that is already marked running.
// The returned result is valid even on error so the caller can persist
// partial counts.
func (im *Importer) Execute(ctx context.Context, run *store.Run) (Result, error) {
	var result Result

	provider, err := im.store.GetProvider(ctx, run.ProviderID)
	if err != nil {
		return result, err
	}
	if provider == nil {
		return result, fmt.Errorf("provider %d not found", run.ProviderID)
	}
	logger := im.logger.With(
		logging.Int64("run_id", run.ID),
		logging.String("provider", provider.Code))

	if err := CheckDiskSpace(im.cfg.Paths.DataDir, im.cfg.Import.MinFreeDiskMB); err != nil {
		return result, err
	}

	template, err := im.store.ActiveTemplate(ctx, provider.ID)
	if err != nil {
		return result, err
	}
	if template == nil {
		return result, mapping.ErrNoTemplate
	}

	paths, err := im.feedFiles(provider)
	if err != nil {
		return result, err
	}
	result.FilesDownloaded = len(paths)
	im.appendLog(ctx, run.ID, fmt.Sprintf("found %d feed file(s)", len(paths)))

	merged, parsed, err := im.mergeFiles(ctx, run, provider, paths, logger)
	if err != nil {
		return result, err
	}
	result.FilesImported = parsed

	header, rows, err := tokenize(merged)
	if err != nil {
		return result, err
	}
	engine, err := mapping.NewEngine(template, header)
	if err != nil {
		return result, err
	}

	im.appendLog(ctx, run.ID, fmt.Sprintf("importing %d row(s) via template %q", len(rows), template.Name))
	counts, err := im.processor.Process(ctx, run, provider, engine, rows)
	result.Counts = counts
	if err != nil {
		return result, err
	}
	im.appendLog(ctx, run.ID, fmt.Sprintf(
		"done: %d processed, %d created, %d updated, %d skipped, %d duplicates, %d errors",
		counts.Processed, counts.Created, counts.Updated, counts.Skipped, counts.Duplicates, counts.Errors))
	return result, nil
}

// feedFiles lists the provider's inbox files, oldest name first. The file
// pattern defaults to "<code>*".
func (im *Importer) feedFiles(provider *store.Provider) ([]string, error) {
	pattern := strings.TrimSpace(provider.FilePattern)
	if pattern == "" {
		pattern = provider.Code + "*"
	}
	paths, err := filepath.Glob(filepath.Join(im.cfg.Paths.InboxDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob feed files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no feed files matching %q in %s", pattern, im.cfg.Paths.InboxDir)
	}
	sort.Strings(paths)
	return paths, nil
}

// mergeFiles reads, retains, decodes, and joins the feed files. The first
// file whose header carries the merge key becomes the base; other header-led
// files join with their name as column prefix; headerless files are parsed as
// trailing-number data.
func (im *Importer) mergeFiles(ctx context.Context, run *store.Run, provider *store.Provider, paths []string, logger *slog.Logger) (string, int, error) {
	merger := merge.New(provider.MergeKey)

	var (
		base      map[string]merge.Row
		secondary []map[string]merge.Row
		parsed    int
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", parsed, fmt.Errorf("read feed file: %w", err)
		}
		im.retainRaw(ctx, run.ID, filepath.Base(path), data, logger)

		decoded := textenc.Decode(data)
		if decoded.Degraded {
			logger.Warn("feed file decoded lossily", logging.String("file", filepath.Base(path)))
		}

		stem := fileStem(path)
		if hasHeaderKey(decoded.Text, merger.Key()) {
			prefix := stem
			if base == nil {
				prefix = ""
			}
			rows := merger.ParseFixed(decoded.Text, merge.DelimiterSAP, prefix)
			if base == nil {
				base = rows
			} else {
				secondary = append(secondary, rows)
			}
		} else {
			secondary = append(secondary, merger.ParseTrailingNumber(decoded.Text, stem))
		}
		parsed++
		logger.Info("parsed feed file",
			logging.String("file", filepath.Base(path)),
			logging.String("encoding", decoded.Encoding))
	}

	mergedRows, err := merger.Merge(base, secondary...)
	if err != nil {
		return "", parsed, err
	}
	content, err := merger.ToCSV(mergedRows, true)
	if err != nil {
		return "", parsed, fmt.Errorf("render merged csv: %w", err)
	}

	id, err := im.store.AddAttachment(ctx, &store.Attachment{
		RunID:   run.ID,
		Name:    "merged.csv",
		Kind:    store.AttachmentProcessed,
		State:   store.AttachmentReady,
		Payload: []byte(content),
	})
	if err != nil {
		return "", parsed, err
	}
	if err := im.store.SetAttachmentState(ctx, id, store.AttachmentImported); err != nil {
		return "", parsed, err
	}
	return content, parsed, nil
}

// retainRaw stores the original file bytes on the run. Retention is
// best-effort: when retries are exhausted the failure is logged and noted on
// the run, and the import continues without its audit copy.
func (im *Importer) retainRaw(ctx context.Context, runID int64, name string, data []byte, logger *slog.Logger) {
	policy := retry.Policy{
		Attempts:       im.cfg.Scheduler.AttachmentTries,
		InitialBackoff: time.Duration(im.cfg.Scheduler.AttachmentWaitMS) * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Retryable:      store.IsBusy,
	}
	err := policy.Do(ctx, func() error {
		_, err := im.store.AddAttachment(ctx, &store.Attachment{
			RunID:   runID,
			Name:    name,
			Kind:    store.AttachmentRaw,
			Payload: data,
		})
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("raw attachment not retained",
			logging.String("file", name), logging.Error(err))
		im.appendLog(ctx, runID, fmt.Sprintf("raw attachment %q not retained: %v", name, err))
	}
}

func (im *Importer) appendLog(ctx context.Context, runID int64, line string) {
	if err := im.store.AppendRunLog(ctx, runID, line); err != nil {
		im.logger.Warn("append run log", logging.Error(err))
	}
}

// tokenize splits the merged semicolon CSV into a header and staging rows.
func tokenize(content string) ([]string, []staging.Row, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse merged csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, merge.ErrEmptyBaseFile
	}

	header := records[0]
	rows := make([]staging.Row, 0, len(records)-1)
	for i, record := range records[1:] {
		rows = append(rows, staging.Row{
			Number: i + 1,
			Cells:  record,
			Raw:    strings.Join(record, ";"),
		})
	}
	return header, rows, nil
}

// hasHeaderKey reports whether the first non-empty line contains the merge
// key as its own field.
func hasHeaderKey(text, key string) bool {
	for _, line := range textenc.Lines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, cell := range headerSplit.Split(line, -1) {
			if strings.EqualFold(strings.TrimSpace(cell), key) {
				return true
			}
		}
		return false
	}
	return false
}

func fileStem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
