package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type AuditRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditStore interface {
	Log(ctx context.Context, username, action, details string) error
	List(ctx context.Context, limit int) ([]AuditRecord, error)
}

type auditStore struct {
	db *DB
}

func NewAuditStore(db *DB) AuditStore {
	return &auditStore{db: db}
}

func (s *auditStore) Log(ctx context.Context, username, action, details string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		username = "anonymous"
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_log(username, action, details, created_at) VALUES(?,?,?,?)`,
		username, action, details, time.Now().UTC())
	return err
}

func (s *auditStore) List(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, username, action, details, created_at FROM audit_log ORDER BY id DESC LIMIT %d`, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.ID, &r.Username, &r.Action, &r.Details, &r.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
