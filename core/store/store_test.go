package store_test

import (
	"context"
	"testing"
	"time"

	"drdesk/core/store"
	"drdesk/core/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestInsertHeaderRejectsDuplicateID(t *testing.T) {
	db := storetest.Open(t)
	incidents := store.NewIncidentsStore(db)
	ctx := context.Background()
	h := &store.IncidentHeader{IncidentID: "DR|PS|25|001", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, incidents.InsertHeader(ctx, h))
	assert.Equal(t, "created", h.Status)
	err := incidents.InsertHeader(ctx, &store.IncidentHeader{IncidentID: "DR|PS|25|001", CreatedAt: t0, UpdatedAt: t0})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestGetHeaderMissingReturnsNil(t *testing.T) {
	db := storetest.Open(t)
	h, err := store.NewIncidentsStore(db).GetHeader(context.Background(), "DR|PS|25|404")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestUpsertStatusCreatesThenUpdates(t *testing.T) {
	db := storetest.Open(t)
	incidents := store.NewIncidentsStore(db)
	ctx := context.Background()
	h, err := incidents.UpsertStatus(ctx, "DR|PS|25|002", "pending", t0)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "pending", h.Status)
	assert.True(t, h.CreatedAt.Equal(t0))

	later := t0.Add(time.Hour)
	h, err = incidents.UpsertStatus(ctx, "DR|PS|25|002", "approved", later)
	require.NoError(t, err)
	assert.Equal(t, "approved", h.Status)
	assert.True(t, h.CreatedAt.Equal(t0))
	assert.True(t, h.UpdatedAt.Equal(later))
}

func TestTouchHeaderPatchesOnlyGivenFields(t *testing.T) {
	db := storetest.Open(t)
	incidents := store.NewIncidentsStore(db)
	ctx := context.Background()
	title := "Temperature excursion"
	require.NoError(t, incidents.TouchHeader(ctx, "DR|PS|25|003", store.HeaderPatch{Title: &title}, t0))
	require.NoError(t, incidents.TouchHeader(ctx, "DR|PS|25|003", store.HeaderPatch{}, t0.Add(time.Minute)))
	h, err := incidents.GetHeader(ctx, "DR|PS|25|003")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "created", h.Status)
	assert.Equal(t, title, h.Title)
	assert.True(t, h.UpdatedAt.Equal(t0.Add(time.Minute)))
}

func TestListHeadersFiltersAndOrders(t *testing.T) {
	db := storetest.Open(t)
	incidents := store.NewIncidentsStore(db)
	ctx := context.Background()
	for i, st := range []string{"created", "pending", "approved", "rejected", "action_required"} {
		_, err := incidents.UpsertStatus(ctx, "DR|PS|25|01"+string(rune('0'+i)), st, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	open, err := incidents.ListHeaders(ctx, store.HeaderFilter{StatusNotIn: []string{"approved", "rejected"}})
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, "DR|PS|25|014", open[0].IncidentID)
	assert.Equal(t, "DR|PS|25|010", open[2].IncidentID)

	rejected, err := incidents.ListHeaders(ctx, store.HeaderFilter{Status: "rejected"})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "DR|PS|25|013", rejected[0].IncidentID)
}

func TestListIDsWithPrefixScopesBySiteAndYear(t *testing.T) {
	db := storetest.Open(t)
	incidents := store.NewIncidentsStore(db)
	ctx := context.Background()
	for _, id := range []string{"DR|PS|25|001", "DR|PS|24|009", "DR|QA|25|004", "DR|PS|25|abc"} {
		require.NoError(t, incidents.InsertHeader(ctx, &store.IncidentHeader{IncidentID: id, CreatedAt: t0, UpdatedAt: t0}))
	}
	ids, err := incidents.ListIDsWithPrefix(ctx, "DR|PS|25|")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"DR|PS|25|001", "DR|PS|25|abc"}, ids)
}

func TestBumpSequenceHonoursFloor(t *testing.T) {
	db := storetest.Open(t)
	incidents := store.NewIncidentsStore(db)
	ctx := context.Background()
	seq, err := incidents.BumpSequence(ctx, "DR|PS|25|", 1, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	seq, err = incidents.BumpSequence(ctx, "DR|PS|25|", 1, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
	seq, err = incidents.BumpSequence(ctx, "DR|PS|25|", 10, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), seq)
	seq, err = incidents.BumpSequence(ctx, "DR|QA|25|", 0, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestSelectionsInsertListAndPropagate(t *testing.T) {
	db := storetest.Open(t)
	selections := store.NewSelectionsStore(db)
	ctx := context.Background()
	recs := []store.SelectionRecord{
		{IncidentID: "DR|PS|25|001", Department: "QA", Approval: true, CreatedAt: t0, UpdatedAt: t0},
		{IncidentID: "DR|PS|25|001", Department: "Production", Informed: true, CreatedAt: t0, UpdatedAt: t0},
		{IncidentID: "DR|PS|25|002", Department: "QA", Approval: true, CreatedAt: t0, UpdatedAt: t0},
	}
	require.NoError(t, selections.InsertSelections(ctx, recs))
	assert.NotZero(t, recs[0].ID)

	n, err := selections.SetSelectionsStatus(ctx, "DR|PS|25|001", "pending", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := selections.ListSelections(ctx, "DR|PS|25|001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, rec := range got {
		assert.Equal(t, "pending", rec.Status)
	}
	assert.True(t, got[0].Approval)
	assert.True(t, got[1].Informed)

	all, err := selections.ListSelections(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "created", all[2].Status)
}

func TestStageUpsertMergesAndKeepsCreatedAt(t *testing.T) {
	db := storetest.Open(t)
	stages := store.NewStagesStore(db)
	ctx := context.Background()

	exists, err := stages.StageExists(ctx, "deviation", "DR|PS|25|001")
	require.NoError(t, err)
	assert.False(t, exists)

	rec, err := stages.UpsertStage(ctx, "deviation", "DR|PS|25|001", map[string]any{"title": "first", "standard": "SOP-1"}, t0)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(t0))

	later := t0.Add(2 * time.Hour)
	rec, err = stages.UpsertStage(ctx, "deviation", "DR|PS|25|001", map[string]any{"title": "second"}, later)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(t0))
	assert.True(t, rec.UpdatedAt.Equal(later))
	assert.Equal(t, "second", rec.Payload["title"])
	assert.Equal(t, "SOP-1", rec.Payload["standard"])

	exists, err = stages.StageExists(ctx, "deviation", "DR|PS|25|001")
	require.NoError(t, err)
	assert.True(t, exists)
	missing, err := stages.GetStage(ctx, "preliminary", "DR|PS|25|001")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUsersCreateAndFind(t *testing.T) {
	db := storetest.Open(t)
	users := store.NewUsersStore(db)
	ctx := context.Background()
	u := &store.User{UserID: "u1", Username: " Alice ", PasswordHash: "x", Department: "QA", Roles: []string{"QA", "qa", " viewer "}}
	require.NoError(t, users.Create(ctx, u))
	assert.ErrorIs(t, users.Create(ctx, &store.User{UserID: "u2", Username: "alice", PasswordHash: "y"}), store.ErrConflict)

	got, err := users.FindByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"qa", "viewer"}, got.Roles)
	none, err := users.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindByUsernameReportsCorruptRoles(t *testing.T) {
	db := storetest.Open(t)
	users := store.NewUsersStore(db)
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &store.User{UserID: "u1", Username: "carol", PasswordHash: "x", Roles: []string{"qa"}}))
	_, err := db.ExecContext(ctx, `UPDATE users SET roles=? WHERE user_id=?`, "{not json", "u1")
	require.NoError(t, err)

	got, err := users.FindByUsername(ctx, "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode roles")
	assert.Nil(t, got)
}

func TestAttachmentsAndAudit(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()
	atts := store.NewAttachmentsStore(db)
	require.NoError(t, atts.AddAttachment(ctx, &store.IncidentAttachment{ID: "a1", IncidentID: "DR|PS|25|001", Filename: "r.pdf", BlobKey: "k1", CreatedAt: t0}))
	require.NoError(t, atts.AddAttachment(ctx, &store.IncidentAttachment{ID: "a2", IncidentID: "DR|PS|25|001", Filename: "s.png", BlobKey: "k2", CreatedAt: t0.Add(time.Minute)}))
	list, err := atts.ListAttachments(ctx, "DR|PS|25|001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	require.NoError(t, atts.DeleteAttachment(ctx, "a2"))
	gone, err := atts.GetAttachment(ctx, "a2")
	require.NoError(t, err)
	assert.Nil(t, gone)

	audits := store.NewAuditStore(db)
	require.NoError(t, audits.Log(ctx, "", "incident.status", "id=DR|PS|25|001"))
	recs, err := audits.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "anonymous", recs[0].Username)
}
