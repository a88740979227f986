package store

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus represents the lifecycle state of a plan run.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
)

var runStatusSet = map[RunStatus]struct{}{
	RunPending: {},
	RunRunning: {},
	RunOK:      {},
	RunFailed:  {},
}

// ParseRunStatus validates a raw status string.
func ParseRunStatus(value string) (RunStatus, error) {
	status := RunStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := runStatusSet[status]; !ok {
		return "", fmt.Errorf("unknown run status %q", value)
	}
	return status, nil
}

// AttachmentKind distinguishes raw source bytes from processed output.
type AttachmentKind string

const (
	AttachmentRaw       AttachmentKind = "raw"
	AttachmentProcessed AttachmentKind = "processed"
)

// AttachmentState tracks an attachment through the run lifecycle.
type AttachmentState string

const (
	AttachmentDownloaded AttachmentState = "downloaded"
	AttachmentReady      AttachmentState = "ready"
	AttachmentImported   AttachmentState = "imported"
	AttachmentError      AttachmentState = "error"
)

// ErrorType classifies why a row landed in quarantine.
type ErrorType string

const (
	ErrSkippedExisting    ErrorType = "skipped_existing"
	ErrNoKey              ErrorType = "no_key"
	ErrNoKeyNoName        ErrorType = "no_key_no_name"
	ErrDuplicateKeyInFile ErrorType = "duplicate_key_in_file"
	ErrDuplicateReference ErrorType = "duplicate_reference"
	ErrDedupedIdentical   ErrorType = "deduped_identical"
	ErrNoBrand            ErrorType = "no_brand"
	ErrTechnical          ErrorType = "technical_error"
	ErrOther              ErrorType = "other"
)

// PendingState is the review state of an unresolved brand label.
type PendingState string

const (
	PendingOpen      PendingState = "pending"
	PendingValidated PendingState = "validated"
	PendingIgnored   PendingState = "ignored"
	PendingNewBrand  PendingState = "new_brand"
)

// Provider is a configured feed source.
type Provider struct {
	ID               int64
	Code             string
	Name             string
	MergeKey         string
	FilePattern      string
	SkipExisting     bool
	AutoProcess      bool
	ScheduleActive   bool
	DefaultTemplate  string
	ConnectionStatus string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Run is one execution attempt of the import pipeline for one provider.
type Run struct {
	ID              int64
	Token           string
	ProviderID      int64
	Name            string
	Status          RunStatus
	StartedAt       *time.Time
	EndedAt         *time.Time
	FilesDownloaded int
	FilesImported   int
	Counts          RunCounts
	Log             string
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RunCounts aggregates row outcomes for a run.
type RunCounts struct {
	Processed  int
	Created    int
	Updated    int
	Skipped    int
	Errors     int
	Duplicates int
}

// SuccessRate returns the fraction of processed rows that committed cleanly.
func (c RunCounts) SuccessRate() float64 {
	if c.Processed == 0 {
		return 0
	}
	return float64(c.Created+c.Updated) / float64(c.Processed)
}

// Duration returns elapsed wall time, zero while the run is open.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.EndedAt == nil {
		return 0
	}
	d := r.EndedAt.Sub(*r.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Attachment is a file artifact owned by a run.
type Attachment struct {
	ID        int64
	RunID     int64
	Name      string
	Kind      AttachmentKind
	State     AttachmentState
	MimeType  string
	Size      int64
	Payload   []byte
	CreatedAt time.Time
}

// StagingRow is a quarantined input row preserved for audit.
type StagingRow struct {
	ID             int64
	RunID          int64
	ProviderID     int64
	RowNumber      int
	Key            string
	ErrorType      ErrorType
	RawData        string
	DuplicateCount int
	ExistingRef    string
	ActionTaken    string
	CreatedAt      time.Time
}

// Brand is a canonical brand entity with a normalized alias set.
type Brand struct {
	ID             int64
	Name           string
	NormalizedName string
	Manufacturer   string
	// Aliases is the comma-separated raw alias list as stored.
	Aliases   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AliasList splits the stored alias field into trimmed entries.
func (b *Brand) AliasList() []string {
	if strings.TrimSpace(b.Aliases) == "" {
		return nil
	}
	parts := strings.Split(b.Aliases, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// PendingBrand is an unresolved free-text brand label awaiting review.
type PendingBrand struct {
	ID               int64
	RawLabel         string
	NormalizedLabel  string
	ProviderID       int64
	ProductCount     int
	State            PendingState
	SuggestedBrandID int64
	ValidatedBrandID int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Product is a canonical catalog entry.
type Product struct {
	ID        int64
	Reference string
	Name      string
	Barcode   string
	// ExtraBarcodes holds comma-separated alias keys beyond the primary.
	ExtraBarcodes string
	BrandID       int64
	Price         float64
	FieldsJSON    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Keys returns every key the product is known under, primary first.
func (p *Product) Keys() []string {
	keys := make([]string, 0, 4)
	if p.Barcode != "" {
		keys = append(keys, p.Barcode)
	}
	for _, extra := range strings.Split(p.ExtraBarcodes, ",") {
		if trimmed := strings.TrimSpace(extra); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// VendorEntry is the latest per-(key, provider) quantity/price snapshot.
type VendorEntry struct {
	ID         int64
	ProductKey string
	ProviderID int64
	Quantity   float64
	Price      float64
	Currency   string
	UpdatedAt  time.Time
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	t := parseTime(*value)
	if t.IsZero() {
		return nil
	}
	return &t
}
