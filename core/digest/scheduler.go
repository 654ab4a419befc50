// Package digest periodically summarizes the pending queue by next step.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"drdesk/config"
	"drdesk/core/metrics"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type PendingLister interface {
	ListPending(ctx context.Context) ([]workflow.IncidentView, error)
}

type Scheduler struct {
	cfg     config.SchedulerConfig
	lister  PendingLister
	metrics *metrics.Metrics
	logger  *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(cfg config.SchedulerConfig, lister PendingLister, m *metrics.Metrics, logger *utils.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, lister: lister, metrics: m, logger: logger}
}

func (s *Scheduler) StartWithContext(ctx context.Context) error {
	if s == nil || s.lister == nil || !s.cfg.Enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	spec := strings.TrimSpace(s.cfg.PendingDigestCron)
	if spec == "" {
		spec = "@every 1h"
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.RunOnce(runCtx, utils.NowUTC()); err != nil {
			s.logger.Errorf("pending digest failed: %v", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("pending digest schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true
	s.logger.Printf("pending digest scheduled (%s)", spec)
	return nil
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	wasRunning := s.running
	s.cron = nil
	s.cancel = nil
	s.running = false
	s.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce counts pending incidents per resolved next step, logs the summary
// and publishes it as a gauge.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (map[string]int, error) {
	pending, err := s.lister.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, p := range pending {
		counts[string(p.NextStep)]++
	}
	s.metrics.SetPending(counts, now)
	s.logger.Printf("pending digest: %d incidents %s", len(pending), formatCounts(counts))
	return counts, nil
}

func formatCounts(counts map[string]int) string {
	steps := make([]string, 0, len(counts))
	for step := range counts {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		parts = append(parts, fmt.Sprintf("%s=%d", step, counts[step]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
