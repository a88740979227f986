package store

import (
	"context"
	"fmt"
)

const attachmentColumns = `id, run_id, name, kind, state, mime_type, size, created_at`

// AddAttachment stores a file artifact on a run. The payload may be nil for
// placeholder entries when raw retention was skipped under contention.
func (s *Store) AddAttachment(ctx context.Context, a *Attachment) (int64, error) {
	if a == nil || a.RunID == 0 {
		return 0, fmt.Errorf("attachment requires a run id")
	}
	if a.Kind == "" {
		a.Kind = AttachmentRaw
	}
	if a.State == "" {
		a.State = AttachmentDownloaded
	}
	if a.MimeType == "" {
		a.MimeType = "text/csv"
	}
	res, err := s.execWithRetry(ctx, `
		INSERT INTO run_attachments (run_id, name, kind, state, mime_type, size, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Name, a.Kind, a.State, a.MimeType, int64(len(a.Payload)), a.Payload, timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListAttachments returns a run's attachments without payloads.
func (s *Store) ListAttachments(ctx context.Context, runID int64) ([]*Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM run_attachments WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		var (
			a         Attachment
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.Name, &a.Kind, &a.State, &a.MimeType, &a.Size, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(createdAt)
		attachments = append(attachments, &a)
	}
	return attachments, rows.Err()
}

// AttachmentPayload loads one attachment's raw bytes.
func (s *Store) AttachmentPayload(ctx context.Context, id int64) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM run_attachments WHERE id = ?`, id,
	).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("attachment payload: %w", err)
	}
	return payload, nil
}

// SetAttachmentState updates one attachment's lifecycle state.
func (s *Store) SetAttachmentState(ctx context.Context, id int64, state AttachmentState) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE run_attachments SET state = ? WHERE id = ?`, state, id,
	)
	if err != nil {
		return fmt.Errorf("set attachment state: %w", err)
	}
	return nil
}
