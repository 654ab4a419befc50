package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"drdesk/core/utils"
)

const idPrefix = "DR"

type idScanner interface {
	ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

type sequenceCounter interface {
	BumpSequence(ctx context.Context, scope string, floor int64, now time.Time) (int64, error)
}

// HeaderIDSource is what the allocator needs from the header store.
type HeaderIDSource interface {
	idScanner
	sequenceCounter
}

// Allocator mints DR|<site>|<yy>|<seq> ids. The prefix scan seeds a per-scope
// counter, so pre-existing data is respected and concurrent callers in the
// same scope get distinct values.
type Allocator struct {
	headers HeaderIDSource
	legacy  idScanner
	clock   utils.Clock
}

func NewAllocator(headers HeaderIDSource, legacy idScanner, clock utils.Clock) *Allocator {
	return &Allocator{headers: headers, legacy: legacy, clock: clock}
}

func (a *Allocator) Allocate(ctx context.Context, siteCode string) (string, error) {
	site, err := normalizeSite(siteCode)
	if err != nil {
		return "", err
	}
	now := a.clock.Now()
	scope := scopePrefix(site, now)

	last, err := a.lastSequence(ctx, scope)
	if err != nil {
		return "", err
	}
	seq, err := a.headers.BumpSequence(ctx, scope, last+1, now)
	if err != nil {
		return "", storeError("allocate incident id", err)
	}
	return formatIncidentID(scope, seq), nil
}

func (a *Allocator) lastSequence(ctx context.Context, scope string) (int64, error) {
	ids, err := a.headers.ListIDsWithPrefix(ctx, scope)
	if err != nil {
		return 0, storeError("scan incident ids", err)
	}
	last := maxSequence(ids, scope)
	if last > 0 || a.legacy == nil {
		return last, nil
	}
	ids, err = a.legacy.ListIDsWithPrefix(ctx, scope)
	if err != nil {
		return 0, storeError("scan selection ids", err)
	}
	return maxSequence(ids, scope), nil
}

func scopePrefix(site string, now time.Time) string {
	return fmt.Sprintf("%s|%s|%02d|", idPrefix, site, now.UTC().Year()%100)
}

// formatIncidentID pads to three digits; 1000 and above print in full.
func formatIncidentID(scope string, seq int64) string {
	return fmt.Sprintf("%s%03d", scope, seq)
}

func normalizeSite(raw string) (string, error) {
	site := strings.ToUpper(strings.TrimSpace(raw))
	if len(site) != 2 {
		return "", validationError("site code must be two letters, got %q", raw)
	}
	for _, r := range site {
		if r < 'A' || r > 'Z' {
			return "", validationError("site code must be two letters, got %q", raw)
		}
	}
	return site, nil
}

func maxSequence(ids []string, scope string) int64 {
	var best int64
	for _, id := range ids {
		if n := parseSequence(id, scope); n > best {
			best = n
		}
	}
	return best
}

// parseSequence returns 0 for anything that is not a positive decimal suffix.
func parseSequence(id, scope string) int64 {
	if !strings.HasPrefix(id, scope) {
		return 0
	}
	suffix := strings.TrimPrefix(id, scope)
	if suffix == "" || strings.Contains(suffix, "|") {
		return 0
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
