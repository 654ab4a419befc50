package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StageRecord is one pipeline stage of an incident. Only its existence feeds
// next-step resolution; the payload is opaque here.
type StageRecord struct {
	Kind       string         `json:"kind"`
	IncidentID string         `json:"incident_id"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type StagesStore interface {
	UpsertStage(ctx context.Context, kind, incidentID string, fields map[string]any, now time.Time) (*StageRecord, error)
	GetStage(ctx context.Context, kind, incidentID string) (*StageRecord, error)
	StageExists(ctx context.Context, kind, incidentID string) (bool, error)
}

type stagesStore struct {
	db *DB
}

func NewStagesStore(db *DB) StagesStore {
	return &stagesStore{db: db}
}

// UpsertStage merges fields into the stored payload. created_at is only
// written by the insert branch.
func (s *stagesStore) UpsertStage(ctx context.Context, kind, incidentID string, fields map[string]any, now time.Time) (*StageRecord, error) {
	var out *StageRecord
	err := s.db.WithTx(ctx, func(q Querier) error {
		existing, err := getStage(ctx, q, kind, incidentID)
		if err != nil {
			return err
		}
		merged := map[string]any{}
		if existing != nil {
			for k, v := range existing.Payload {
				merged[k] = v
			}
		}
		for k, v := range fields {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", kind, err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO incident_stages(kind, incident_id, payload, created_at, updated_at)
			VALUES(?,?,?,?,?)
			ON CONFLICT (kind, incident_id)
			DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
			kind, incidentID, string(raw), now, now); err != nil {
			return fmt.Errorf("upsert %s stage %s: %w", kind, incidentID, err)
		}
		out, err = getStage(ctx, q, kind, incidentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *stagesStore) GetStage(ctx context.Context, kind, incidentID string) (*StageRecord, error) {
	return getStage(ctx, s.db, kind, incidentID)
}

func (s *stagesStore) StageExists(ctx context.Context, kind, incidentID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM incident_stages WHERE kind=? AND incident_id=?`, kind, incidentID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check %s stage %s: %w", kind, incidentID, err)
	}
	return true, nil
}

func getStage(ctx context.Context, q Querier, kind, incidentID string) (*StageRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT kind, incident_id, payload, created_at, updated_at
		FROM incident_stages WHERE kind=? AND incident_id=?`, kind, incidentID)
	var rec StageRecord
	var raw string
	if err := row.Scan(&rec.Kind, &rec.IncidentID, &raw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s stage %s: %w", kind, incidentID, err)
	}
	rec.Payload = map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode %s payload %s: %w", kind, incidentID, err)
		}
	}
	return &rec, nil
}
