package store

import (
	"context"
	"fmt"
	"time"
)

// SelectionRecord is one department row captured at intake. Status is a
// denormalized copy of the header status.
type SelectionRecord struct {
	ID           int64     `json:"id"`
	IncidentID   string    `json:"incident_id"`
	Department   string    `json:"department"`
	SelectedDept string    `json:"selected_dept"`
	IncidentType string    `json:"incident_type"`
	Approval     bool      `json:"approval"`
	Informed     bool      `json:"informed"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SelectionsStore interface {
	InsertSelections(ctx context.Context, records []SelectionRecord) error
	ListSelections(ctx context.Context, incidentID string) ([]SelectionRecord, error)
	SetSelectionsStatus(ctx context.Context, incidentID, status string, now time.Time) (int64, error)
	ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

type selectionsStore struct {
	db *DB
}

func NewSelectionsStore(db *DB) SelectionsStore {
	return &selectionsStore{db: db}
}

func (s *selectionsStore) InsertSelections(ctx context.Context, records []SelectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithTx(ctx, func(q Querier) error {
		for i := range records {
			rec := &records[i]
			if rec.Status == "" {
				rec.Status = "created"
			}
			row := q.QueryRowContext(ctx, `
				INSERT INTO department_selections(incident_id, department, selected_dept, incident_type, approval, informed, status, created_at, updated_at)
				VALUES(?,?,?,?,?,?,?,?,?)
				RETURNING id`,
				rec.IncidentID, rec.Department, rec.SelectedDept, rec.IncidentType, boolToInt(rec.Approval), boolToInt(rec.Informed), rec.Status, rec.CreatedAt, rec.UpdatedAt)
			if err := row.Scan(&rec.ID); err != nil {
				return fmt.Errorf("insert selection %s/%s: %w", rec.IncidentID, rec.Department, err)
			}
		}
		return nil
	})
}

func (s *selectionsStore) ListSelections(ctx context.Context, incidentID string) ([]SelectionRecord, error) {
	query := `
		SELECT id, incident_id, department, selected_dept, incident_type, approval, informed, status, created_at, updated_at
		FROM department_selections`
	var args []any
	if incidentID != "" {
		query += " WHERE incident_id=?"
		args = append(args, incidentID)
	}
	query += " ORDER BY id ASC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()
	res := []SelectionRecord{}
	for rows.Next() {
		var rec SelectionRecord
		var approval, informed int
		if err := rows.Scan(&rec.ID, &rec.IncidentID, &rec.Department, &rec.SelectedDept, &rec.IncidentType, &approval, &informed, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Approval = approval == 1
		rec.Informed = informed == 1
		if rec.Status == "" {
			rec.Status = "created"
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *selectionsStore) SetSelectionsStatus(ctx context.Context, incidentID, status string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE department_selections SET status=?, updated_at=? WHERE incident_id=?`, status, now, incidentID)
	if err != nil {
		return 0, fmt.Errorf("propagate status to selections of %s: %w", incidentID, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *selectionsStore) ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return listIDsWithPrefix(ctx, s.db, "department_selections", prefix)
}
