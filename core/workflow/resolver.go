package workflow

import (
	"context"
	"fmt"
)

type StageChecker interface {
	StageExists(ctx context.Context, kind, incidentID string) (bool, error)
}

// Resolver finds the first pipeline stage with no stored record.
type Resolver struct {
	stages StageChecker
}

func NewResolver(stages StageChecker) *Resolver {
	return &Resolver{stages: stages}
}

// ResolveNextStep issues one existence check per stage, in pipeline order.
// Unknown incidents resolve like empty ones. A complete pipeline stays on the
// evaluation path.
func (r *Resolver) ResolveNextStep(ctx context.Context, incidentID string) (StepPath, error) {
	for _, st := range pipeline {
		ok, err := r.stages.StageExists(ctx, string(st.kind), incidentID)
		if err != nil {
			return "", fmt.Errorf("resolve next step for %s: %w", incidentID, err)
		}
		if !ok {
			return st.path, nil
		}
	}
	return PathComments, nil
}
