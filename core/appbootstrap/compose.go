package appbootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"drdesk/api"
	"drdesk/config"
	"drdesk/core/attachments"
	"drdesk/core/auth"
	"drdesk/core/digest"
	"drdesk/core/metrics"
	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	workers    []api.BackgroundWorker
}

func composeRuntime(ctx context.Context, cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	audits := store.NewAuditStore(db)
	incidentsStore := store.NewIncidentsStore(db)
	selectionsStore := store.NewSelectionsStore(db)
	stagesStore := store.NewStagesStore(db)
	attachmentsStore := store.NewAttachmentsStore(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	policy, err := auth.NewPolicy()
	if err != nil {
		return nil, err
	}
	authn := auth.NewAuthenticator(users, logger)
	if err := bootstrapAdmin(ctx, cfg, authn, logger); err != nil {
		return nil, err
	}

	blobs, err := attachments.NewFSBlobStore(cfg.Attachments.StorageDir, cfg.Attachments.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	workflowSvc := workflow.NewService(cfg, incidentsStore, selectionsStore, stagesStore, logger.With("component", "workflow"), m)
	attachmentsSvc := attachments.NewService(cfg, attachmentsStore, blobs, logger.With("component", "attachments"))

	var workers []api.BackgroundWorker
	if cfg.Scheduler.Enabled {
		workers = append(workers, digest.NewScheduler(cfg.Scheduler, workflowSvc, m, logger.With("component", "digest")))
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Workflow:      workflowSvc,
			Attachments:   attachmentsSvc,
			Authenticator: authn,
			Policy:        policy,
			Audits:        audits,
			Metrics:       m,
			Gatherer:      reg,
			FilesDir:      blobs.Root(),
		},
		workers: workers,
	}, nil
}

func bootstrapAdmin(ctx context.Context, cfg *config.AppConfig, authn *auth.Authenticator, logger *utils.Logger) error {
	username := strings.TrimSpace(cfg.Security.BootstrapAdmin)
	if username == "" || cfg.Security.BootstrapPassword == "" {
		return nil
	}
	_, created, err := authn.EnsureUser(ctx, username, cfg.Security.BootstrapPassword, "QA", []string{auth.RoleAdmin})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Printf("bootstrap admin %q created", username)
	}
	return nil
}
