package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drdesk/core/store"
	"drdesk/core/store/storetest"
)

type countingChecker struct {
	present map[string]bool
	calls   []string
	failOn  string
}

func (c *countingChecker) StageExists(_ context.Context, kind, _ string) (bool, error) {
	c.calls = append(c.calls, kind)
	if kind == c.failOn {
		return false, errors.New("store down")
	}
	return c.present[kind], nil
}

func TestResolveNextStepWalksPipelineInOrder(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	stages := store.NewStagesStore(db)
	r := NewResolver(stages)
	id := "DR|PS|25|001"

	step, err := r.ResolveNextStep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PathGeneralInfo, step)

	_, err = stages.UpsertStage(ctx, string(StageGeneralInfo), id, map[string]any{"title": "x"}, testNow)
	require.NoError(t, err)
	step, err = r.ResolveNextStep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PathDeviation, step)

	for _, kind := range StageKinds() {
		_, err = stages.UpsertStage(ctx, string(kind), id, map[string]any{}, testNow)
		require.NoError(t, err)
	}
	step, err = r.ResolveNextStep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PathComments, step)

	step, err = r.ResolveNextStep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PathComments, step)
}

func TestResolveNextStepStopsAtFirstGap(t *testing.T) {
	checker := &countingChecker{present: map[string]bool{
		string(StageGeneralInfo): true,
		string(StageDeviation):   true,
		string(StageRootCause):   true,
	}}
	step, err := NewResolver(checker).ResolveNextStep(context.Background(), "DR|PS|25|002")
	require.NoError(t, err)
	assert.Equal(t, PathPreliminary, step)
	assert.Equal(t, []string{"general-info", "deviation", "preliminary"}, checker.calls)
}

func TestResolveNextStepSurfacesStoreErrors(t *testing.T) {
	checker := &countingChecker{present: map[string]bool{}, failOn: string(StageGeneralInfo)}
	_, err := NewResolver(checker).ResolveNextStep(context.Background(), "DR|PS|25|003")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}
