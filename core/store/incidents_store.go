package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// IncidentHeader is the single summary row per incident.
type IncidentHeader struct {
	IncidentID   string    `json:"incident_id"`
	Status       string    `json:"status"`
	Title        string    `json:"title"`
	SelectedDept string    `json:"selected_dept,omitempty"`
	IncidentType string    `json:"incident_type,omitempty"`
	DateOpened   string    `json:"date_opened,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type HeaderOrder string

const (
	OrderByUpdated HeaderOrder = "updated_at"
	OrderByCreated HeaderOrder = "created_at"
)

type HeaderFilter struct {
	Status      string
	StatusNotIn []string
	OrderBy     HeaderOrder
	Limit       int
}

// HeaderPatch lists the optional fields a stage save copies onto the header.
type HeaderPatch struct {
	Title      *string
	DateOpened *string
}

type IncidentsStore interface {
	InsertHeader(ctx context.Context, header *IncidentHeader) error
	GetHeader(ctx context.Context, incidentID string) (*IncidentHeader, error)
	UpsertStatus(ctx context.Context, incidentID, status string, now time.Time) (*IncidentHeader, error)
	TouchHeader(ctx context.Context, incidentID string, patch HeaderPatch, now time.Time) error
	ListHeaders(ctx context.Context, filter HeaderFilter) ([]IncidentHeader, error)
	ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	BumpSequence(ctx context.Context, scope string, floor int64, now time.Time) (int64, error)
}

type incidentsStore struct {
	db *DB
}

func NewIncidentsStore(db *DB) IncidentsStore {
	return &incidentsStore{db: db}
}

const headerColumns = `incident_id, status, title, selected_dept, incident_type, date_opened, created_at, updated_at`

func (s *incidentsStore) InsertHeader(ctx context.Context, header *IncidentHeader) error {
	if strings.TrimSpace(header.Status) == "" {
		header.Status = "created"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents(`+headerColumns+`)
		VALUES(?,?,?,?,?,?,?,?)`,
		header.IncidentID, header.Status, header.Title, header.SelectedDept, header.IncidentType, header.DateOpened, header.CreatedAt, header.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert incident %s: %w", header.IncidentID, err)
	}
	return nil
}

func (s *incidentsStore) GetHeader(ctx context.Context, incidentID string) (*IncidentHeader, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+headerColumns+` FROM incidents WHERE incident_id=?`, incidentID)
	var h IncidentHeader
	if err := row.Scan(&h.IncidentID, &h.Status, &h.Title, &h.SelectedDept, &h.IncidentType, &h.DateOpened, &h.CreatedAt, &h.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get incident %s: %w", incidentID, err)
	}
	if strings.TrimSpace(h.Status) == "" {
		h.Status = "created"
	}
	return &h, nil
}

func (s *incidentsStore) UpsertStatus(ctx context.Context, incidentID, status string, now time.Time) (*IncidentHeader, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents(incident_id, status, created_at, updated_at)
		VALUES(?,?,?,?)
		ON CONFLICT (incident_id)
		DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at`,
		incidentID, status, now, now); err != nil {
		return nil, fmt.Errorf("upsert incident status %s: %w", incidentID, err)
	}
	return s.GetHeader(ctx, incidentID)
}

func (s *incidentsStore) TouchHeader(ctx context.Context, incidentID string, patch HeaderPatch, now time.Time) error {
	title := ""
	dateOpened := ""
	sets := []string{"updated_at=excluded.updated_at"}
	if patch.Title != nil {
		title = *patch.Title
		sets = append(sets, "title=excluded.title")
	}
	if patch.DateOpened != nil {
		dateOpened = *patch.DateOpened
		sets = append(sets, "date_opened=excluded.date_opened")
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents(incident_id, status, title, date_opened, created_at, updated_at)
		VALUES(?,'created',?,?,?,?)
		ON CONFLICT (incident_id)
		DO UPDATE SET `+strings.Join(sets, ", "),
		incidentID, title, dateOpened, now, now); err != nil {
		return fmt.Errorf("touch incident %s: %w", incidentID, err)
	}
	return nil
}

func (s *incidentsStore) ListHeaders(ctx context.Context, filter HeaderFilter) ([]IncidentHeader, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if len(filter.StatusNotIn) > 0 {
		marks := make([]string, 0, len(filter.StatusNotIn))
		for _, st := range filter.StatusNotIn {
			marks = append(marks, "?")
			args = append(args, st)
		}
		clauses = append(clauses, "status NOT IN ("+strings.Join(marks, ",")+")")
	}
	query := `SELECT ` + headerColumns + ` FROM incidents`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	order := OrderByUpdated
	if filter.OrderBy == OrderByCreated {
		order = OrderByCreated
	}
	query += fmt.Sprintf(" ORDER BY %s DESC, incident_id DESC", order)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()
	res := []IncidentHeader{}
	for rows.Next() {
		var h IncidentHeader
		if err := rows.Scan(&h.IncidentID, &h.Status, &h.Title, &h.SelectedDept, &h.IncidentType, &h.DateOpened, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		if strings.TrimSpace(h.Status) == "" {
			h.Status = "created"
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (s *incidentsStore) ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return listIDsWithPrefix(ctx, s.db, "incidents", prefix)
}

// BumpSequence advances the scope counter and returns the new value, which is
// at least floor. The first call for a scope stores floor itself.
func (s *incidentsStore) BumpSequence(ctx context.Context, scope string, floor int64, now time.Time) (int64, error) {
	if floor < 1 {
		floor = 1
	}
	var seq int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO incident_id_counters(scope, seq, updated_at)
		VALUES(?,?,?)
		ON CONFLICT (scope)
		DO UPDATE SET
			seq = CASE WHEN incident_id_counters.seq + 1 > excluded.seq THEN incident_id_counters.seq + 1 ELSE excluded.seq END,
			updated_at = excluded.updated_at
		RETURNING seq`, scope, floor, now).Scan(&seq); err != nil {
		return 0, fmt.Errorf("bump sequence %s: %w", scope, err)
	}
	return seq, nil
}

func listIDsWithPrefix(ctx context.Context, q Querier, table, prefix string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT incident_id FROM `+table+` WHERE incident_id LIKE ? ESCAPE '\'`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("scan %s ids: %w", table, err)
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if strings.HasPrefix(id, prefix) {
			res = append(res, id)
		}
	}
	return res, rows.Err()
}
