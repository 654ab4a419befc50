package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"drdesk/config"
	"drdesk/core/metrics"
	"drdesk/core/store"
	"drdesk/core/utils"
)

// Service is the orchestrator the HTTP layer talks to. Header and selection
// writes are separate statements; a failure between them is reported as a
// partial write and never rolled back.
type Service struct {
	incidents   store.IncidentsStore
	selections  store.SelectionsStore
	stages      store.StagesStore
	allocator   *Allocator
	resolver    *Resolver
	logger      *utils.Logger
	metrics     *metrics.Metrics
	clock       utils.Clock
	defaultSite string
	attempts    int
}

type IncidentView struct {
	store.IncidentHeader
	NextStep StepPath `json:"next_step"`
}

type Ack struct {
	IncidentID string    `json:"incident_id"`
	Kind       StageKind `json:"kind"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DepartmentSelection struct {
	Department string `json:"department"`
	Approval   bool   `json:"approval"`
	Informed   bool   `json:"informed"`
}

type CreateIncidentRequest struct {
	SiteCode     string                `json:"site_code"`
	SelectedDept string                `json:"selected_dept"`
	IncidentType string                `json:"incident_type"`
	Departments  []DepartmentSelection `json:"departments"`
}

func NewService(cfg *config.AppConfig, incidents store.IncidentsStore, selections store.SelectionsStore, stages store.StagesStore, logger *utils.Logger, m *metrics.Metrics) *Service {
	s := &Service{
		incidents:   incidents,
		selections:  selections,
		stages:      stages,
		resolver:    NewResolver(stages),
		logger:      logger,
		metrics:     m,
		defaultSite: "PS",
		attempts:    3,
	}
	if cfg != nil {
		if site := strings.TrimSpace(cfg.Incidents.DefaultSite); site != "" {
			s.defaultSite = site
		}
		s.attempts = cfg.EffectiveAllocationAttempts()
	}
	s.allocator = NewAllocator(incidents, selections, nil)
	return s
}

// SetClock pins the time source for the service and its allocator.
func (s *Service) SetClock(clock utils.Clock) {
	s.clock = clock
	s.allocator.clock = clock
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) CreateIncident(ctx context.Context, req CreateIncidentRequest) (string, error) {
	selectedDept := strings.TrimSpace(req.SelectedDept)
	incidentType := strings.TrimSpace(req.IncidentType)
	if selectedDept == "" {
		return "", validationError("selected_dept is required")
	}
	if incidentType == "" {
		return "", validationError("incident_type is required")
	}
	site := strings.TrimSpace(req.SiteCode)
	if site == "" {
		site = s.defaultSite
	}

	var (
		id  string
		now time.Time
	)
	for attempt := 1; ; attempt++ {
		var err error
		id, err = s.allocator.Allocate(ctx, site)
		if err != nil {
			return "", err
		}
		now = s.clock.Now()
		err = s.incidents.InsertHeader(ctx, &store.IncidentHeader{
			IncidentID:   id,
			Status:       string(StatusCreated),
			SelectedDept: selectedDept,
			IncidentType: incidentType,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", storeError("insert incident header", err)
		}
		s.metrics.AllocationConflict()
		s.logger.Warnf("incident id %s already taken (attempt %d/%d)", id, attempt, s.attempts)
		if attempt >= s.attempts {
			return "", storeError("allocate incident id", err)
		}
	}

	records := make([]store.SelectionRecord, 0, len(req.Departments))
	for _, d := range req.Departments {
		if !d.Approval && !d.Informed {
			continue
		}
		records = append(records, store.SelectionRecord{
			IncidentID:   id,
			Department:   strings.TrimSpace(d.Department),
			SelectedDept: selectedDept,
			IncidentType: incidentType,
			Approval:     d.Approval,
			Informed:     d.Informed,
			Status:       string(StatusCreated),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := s.selections.InsertSelections(ctx, records); err != nil {
		s.metrics.PartialWrite("create_incident")
		s.logger.Errorf("incident %s created without selections: %v", id, err)
		return id, partialWriteError("insert selections for "+id, err)
	}
	s.metrics.IncidentCreated(strings.ToUpper(site))
	s.logger.Printf("incident %s created dept=%s type=%s selections=%d", id, selectedDept, incidentType, len(records))
	return id, nil
}

// SetStatus validates before any write. Unknown statuses survive Normalize
// but stop here.
func (s *Service) SetStatus(ctx context.Context, incidentID, rawStatus string) (*IncidentView, error) {
	id, err := requireIncidentID(incidentID)
	if err != nil {
		return nil, err
	}
	status := Normalize(rawStatus)
	if !status.Valid() {
		return nil, validationError("status %q is not allowed", rawStatus)
	}
	return s.writeStatus(ctx, id, status, "set_status")
}

// MarkPending parks an incident so it can be resumed later.
func (s *Service) MarkPending(ctx context.Context, incidentID string) (*IncidentView, error) {
	id, err := requireIncidentID(incidentID)
	if err != nil {
		return nil, err
	}
	return s.writeStatus(ctx, id, StatusPending, "mark_pending")
}

func (s *Service) writeStatus(ctx context.Context, id string, status Status, op string) (*IncidentView, error) {
	now := s.clock.Now()
	header, err := s.incidents.UpsertStatus(ctx, id, string(status), now)
	if err != nil {
		return nil, storeError("update incident status", err)
	}
	if header == nil {
		return nil, notFoundError("incident %s not found", id)
	}
	s.metrics.StatusChanged(string(status))
	if _, err := s.selections.SetSelectionsStatus(ctx, id, string(status), now); err != nil {
		s.metrics.PartialWrite(op)
		s.logger.Errorf("incident %s status %s not propagated to selections: %v", id, status, err)
		return nil, partialWriteError("propagate status to selections of "+id, err)
	}
	return s.resolvedView(ctx, *header)
}

func (s *Service) SaveStage(ctx context.Context, rawKind, incidentID string, payload map[string]any) (*Ack, error) {
	id, err := requireIncidentID(incidentID)
	if err != nil {
		return nil, err
	}
	kind, ok := ParseStageKind(rawKind)
	if !ok {
		return nil, validationError("unknown stage %q", rawKind)
	}
	now := s.clock.Now()
	fields := kind.filterPayload(payload)
	rec, err := s.stages.UpsertStage(ctx, string(kind), id, fields, now)
	if err != nil {
		return nil, storeError("save "+string(kind)+" stage", err)
	}
	s.metrics.StageSaved(string(kind))

	var patch store.HeaderPatch
	if kind == StageGeneralInfo {
		patch.Title = stringField(fields, "title")
		patch.DateOpened = stringField(fields, "date_opened")
	}
	if err := s.incidents.TouchHeader(ctx, id, patch, now); err != nil {
		s.metrics.PartialWrite("save_stage")
		s.logger.Errorf("incident %s %s stage saved but header not touched: %v", id, kind, err)
		return nil, partialWriteError("touch incident header "+id, err)
	}
	return &Ack{
		IncidentID: id,
		Kind:       kind,
		Message:    string(kind) + " saved",
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

func (s *Service) GetStage(ctx context.Context, rawKind, incidentID string) (*store.StageRecord, error) {
	id, err := requireIncidentID(incidentID)
	if err != nil {
		return nil, err
	}
	kind, ok := ParseStageKind(rawKind)
	if !ok {
		return nil, validationError("unknown stage %q", rawKind)
	}
	rec, err := s.stages.GetStage(ctx, string(kind), id)
	if err != nil {
		return nil, storeError("get "+string(kind)+" stage", err)
	}
	if rec == nil {
		return nil, notFoundError("%s stage for %s not found", kind, id)
	}
	return rec, nil
}

func (s *Service) GetIncident(ctx context.Context, incidentID string) (*IncidentView, error) {
	id, err := requireIncidentID(incidentID)
	if err != nil {
		return nil, err
	}
	header, err := s.incidents.GetHeader(ctx, id)
	if err != nil {
		return nil, storeError("get incident", err)
	}
	if header == nil {
		return nil, notFoundError("incident %s not found", id)
	}
	return s.resolvedView(ctx, *header)
}

func (s *Service) ResolveNextStep(ctx context.Context, incidentID string) (StepPath, error) {
	id, err := requireIncidentID(incidentID)
	if err != nil {
		return "", err
	}
	step, err := s.resolver.ResolveNextStep(ctx, id)
	if err != nil {
		return "", storeError("resolve next step", err)
	}
	return step, nil
}

// ListByStatus filters on the normalized status. Unknown values are a read
// filter, not a write, so they simply match nothing.
func (s *Service) ListByStatus(ctx context.Context, rawStatus string) ([]IncidentView, error) {
	status := Normalize(rawStatus)
	return s.listResolved(ctx, store.HeaderFilter{Status: string(status), OrderBy: store.OrderByUpdated})
}

func (s *Service) ListPending(ctx context.Context) ([]IncidentView, error) {
	return s.listResolved(ctx, store.HeaderFilter{StatusNotIn: closedStatuses(), OrderBy: store.OrderByUpdated})
}

func (s *Service) ListAll(ctx context.Context) ([]IncidentView, error) {
	return s.listResolved(ctx, store.HeaderFilter{OrderBy: store.OrderByCreated})
}

// ListQueue serves the rejected and action-required queues from the static
// routing table, without touching stage records.
func (s *Service) ListQueue(ctx context.Context, rawStatus string) ([]IncidentView, error) {
	status := Normalize(rawStatus)
	if !status.Valid() {
		return nil, validationError("status %q is not allowed", rawStatus)
	}
	headers, err := s.incidents.ListHeaders(ctx, store.HeaderFilter{Status: string(status), OrderBy: store.OrderByUpdated})
	if err != nil {
		return nil, storeError("list incidents", err)
	}
	out := make([]IncidentView, 0, len(headers))
	for _, h := range headers {
		out = append(out, IncidentView{IncidentHeader: h, NextStep: DefaultNextStep(Status(h.Status))})
	}
	return out, nil
}

func (s *Service) ListSelections(ctx context.Context) ([]store.SelectionRecord, error) {
	res, err := s.selections.ListSelections(ctx, "")
	if err != nil {
		return nil, storeError("list selections", err)
	}
	return res, nil
}

func (s *Service) listResolved(ctx context.Context, filter store.HeaderFilter) ([]IncidentView, error) {
	headers, err := s.incidents.ListHeaders(ctx, filter)
	if err != nil {
		return nil, storeError("list incidents", err)
	}
	out := make([]IncidentView, 0, len(headers))
	for _, h := range headers {
		view, err := s.resolvedView(ctx, h)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

func (s *Service) resolvedView(ctx context.Context, h store.IncidentHeader) (*IncidentView, error) {
	step, err := s.resolver.ResolveNextStep(ctx, h.IncidentID)
	if err != nil {
		return nil, storeError("resolve next step", err)
	}
	return &IncidentView{IncidentHeader: h, NextStep: step}, nil
}

func requireIncidentID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", validationError("incident_id is required")
	}
	return id, nil
}

func stringField(payload map[string]any, key string) *string {
	v, ok := payload[key].(string)
	if !ok {
		return nil
	}
	return &v
}
