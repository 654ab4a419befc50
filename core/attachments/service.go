// Package attachments stores files uploaded against an incident.
package attachments

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"

	"drdesk/config"
	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

var defaultAllowedExt = []string{"pdf", "png", "jpg", "jpeg", "doc", "docx", "xlsx", "csv", "txt"}

type Service struct {
	store   store.AttachmentsStore
	blobs   BlobStore
	allowed map[string]struct{}
	logger  *utils.Logger
	clock   utils.Clock
}

type UploadRequest struct {
	IncidentID  string
	Filename    string
	ContentType string
	Body        io.Reader
}

func NewService(cfg *config.AppConfig, as store.AttachmentsStore, blobs BlobStore, logger *utils.Logger) *Service {
	exts := defaultAllowedExt
	if cfg != nil && len(cfg.Attachments.AllowedExt) > 0 {
		exts = cfg.Attachments.AllowedExt
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))] = struct{}{}
	}
	return &Service{store: as, blobs: blobs, allowed: allowed, logger: logger}
}

func (s *Service) SetClock(clock utils.Clock) {
	s.clock = clock
}

func (s *Service) Upload(ctx context.Context, req UploadRequest) (*store.IncidentAttachment, error) {
	incidentID := strings.TrimSpace(req.IncidentID)
	if incidentID == "" {
		return nil, workflow.NewDomainError(workflow.ErrorCodeValidation, "incident_id is required", nil)
	}
	name := sanitizeFilename(req.Filename)
	if name == "" {
		return nil, workflow.NewDomainError(workflow.ErrorCodeValidation, "file is required", nil)
	}
	if !s.extAllowed(name) {
		return nil, workflow.NewDomainError(workflow.ErrorCodeValidation, fmt.Sprintf("file type of %q is not allowed", name), nil)
	}
	now := s.clock.Now()
	key := blobKey(incidentID, now.Unix(), name)
	counter := &countingReader{r: req.Body}
	url, err := s.blobs.Put(ctx, key, counter, req.ContentType)
	if err != nil {
		return nil, workflow.NewDomainError(workflow.ErrorCodeStoreUnavailable, "store attachment", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("attachment id: %w", err)
	}
	att := &store.IncidentAttachment{
		ID:          id.String(),
		IncidentID:  incidentID,
		Filename:    name,
		ContentType: req.ContentType,
		SizeBytes:   counter.n,
		BlobKey:     key,
		URL:         url,
		CreatedAt:   now,
	}
	if err := s.store.AddAttachment(ctx, att); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Errorf("attachment blob %s orphaned: %v", key, delErr)
		}
		return nil, workflow.NewDomainError(workflow.ErrorCodeStoreUnavailable, "record attachment", err)
	}
	s.logger.Printf("attachment %s stored for %s (%d bytes)", att.ID, incidentID, att.SizeBytes)
	return att, nil
}

func (s *Service) List(ctx context.Context, incidentID string) ([]store.IncidentAttachment, error) {
	incidentID = strings.TrimSpace(incidentID)
	if incidentID == "" {
		return nil, workflow.NewDomainError(workflow.ErrorCodeValidation, "incident_id is required", nil)
	}
	res, err := s.store.ListAttachments(ctx, incidentID)
	if err != nil {
		return nil, workflow.NewDomainError(workflow.ErrorCodeStoreUnavailable, "list attachments", err)
	}
	return res, nil
}

func (s *Service) Delete(ctx context.Context, id string) (*store.IncidentAttachment, error) {
	att, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, workflow.NewDomainError(workflow.ErrorCodeStoreUnavailable, "get attachment", err)
	}
	if att == nil {
		return nil, workflow.NewDomainError(workflow.ErrorCodeNotFound, "attachment not found", nil)
	}
	if err := s.blobs.Delete(ctx, att.BlobKey); err != nil {
		return nil, workflow.NewDomainError(workflow.ErrorCodeStoreUnavailable, "delete attachment blob", err)
	}
	if err := s.store.DeleteAttachment(ctx, id); err != nil {
		return nil, workflow.NewDomainError(workflow.ErrorCodePartialWrite, "attachment blob deleted but record kept", err)
	}
	return att, nil
}

func (s *Service) extAllowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	_, ok := s.allowed[ext]
	return ok
}

func blobKey(incidentID string, unix int64, filename string) string {
	return fmt.Sprintf("incidents/%s/%d_%s", incidentID, unix, filename)
}

func sanitizeFilename(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '|' {
			return '_'
		}
		return r
	}, name)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
