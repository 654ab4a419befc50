package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type IncidentAttachment struct {
	ID          string    `json:"id"`
	IncidentID  string    `json:"incident_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	BlobKey     string    `json:"-"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

type AttachmentsStore interface {
	AddAttachment(ctx context.Context, att *IncidentAttachment) error
	ListAttachments(ctx context.Context, incidentID string) ([]IncidentAttachment, error)
	GetAttachment(ctx context.Context, id string) (*IncidentAttachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

type attachmentsStore struct {
	db *DB
}

func NewAttachmentsStore(db *DB) AttachmentsStore {
	return &attachmentsStore{db: db}
}

func (s *attachmentsStore) AddAttachment(ctx context.Context, att *IncidentAttachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_attachments(id, incident_id, filename, content_type, size_bytes, blob_key, url, created_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		att.ID, att.IncidentID, att.Filename, att.ContentType, att.SizeBytes, att.BlobKey, att.URL, att.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment %s: %w", att.ID, err)
	}
	return nil
}

func (s *attachmentsStore) ListAttachments(ctx context.Context, incidentID string) ([]IncidentAttachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, filename, content_type, size_bytes, blob_key, url, created_at
		FROM incident_attachments WHERE incident_id=? ORDER BY created_at DESC, id DESC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list attachments %s: %w", incidentID, err)
	}
	defer rows.Close()
	res := []IncidentAttachment{}
	for rows.Next() {
		var a IncidentAttachment
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.BlobKey, &a.URL, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *attachmentsStore) GetAttachment(ctx context.Context, id string) (*IncidentAttachment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, incident_id, filename, content_type, size_bytes, blob_key, url, created_at
		FROM incident_attachments WHERE id=?`, id)
	var a IncidentAttachment
	if err := row.Scan(&a.ID, &a.IncidentID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.BlobKey, &a.URL, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attachment %s: %w", id, err)
	}
	return &a, nil
}

func (s *attachmentsStore) DeleteAttachment(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM incident_attachments WHERE id=?`, id)
	return err
}
