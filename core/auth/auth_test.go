package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drdesk/core/store"
	"drdesk/core/store/storetest"
	"drdesk/core/utils"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()
	a := NewAuthenticator(store.NewUsersStore(storetest.Open(t)), utils.NewNopLogger())
	created, fresh, err := a.EnsureUser(ctx, "QA.Lead", "s3cret", "Quality", []string{"qa"})
	require.NoError(t, err)
	assert.True(t, fresh)

	user, err := a.Verify(ctx, "qa.lead", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, created.UserID, user.UserID)
	assert.Equal(t, "Quality", user.Department)
	assert.Equal(t, []string{"qa"}, user.Roles)

	_, err = a.Verify(ctx, "qa.lead", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Verify(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Verify(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := NewAuthenticator(store.NewUsersStore(storetest.Open(t)), utils.NewNopLogger())
	first, fresh, err := a.EnsureUser(ctx, "admin", "one", "", []string{"admin"})
	require.NoError(t, err)
	require.True(t, fresh)

	second, fresh, err := a.EnsureUser(ctx, "admin", "two", "", []string{"admin"})
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, first.UserID, second.UserID)

	_, err = a.Verify(ctx, "admin", "one")
	assert.NoError(t, err)
}

func TestPolicy(t *testing.T) {
	p, err := NewPolicy()
	require.NoError(t, err)

	assert.True(t, p.Allowed([]string{RoleViewer}, ObjIncidents, ActRead))
	assert.False(t, p.Allowed([]string{RoleViewer}, ObjStages, ActWrite))

	assert.True(t, p.Allowed([]string{RoleOriginator}, ObjStages, ActWrite))
	assert.True(t, p.Allowed([]string{RoleOriginator}, ObjAttachments, ActRead))
	assert.False(t, p.Allowed([]string{RoleOriginator}, ObjIncidents, ActStatus))

	assert.True(t, p.Allowed([]string{RoleQA}, ObjIncidents, ActStatus))
	assert.True(t, p.Allowed([]string{RoleQA}, ObjSelection, ActWrite))

	assert.True(t, p.Allowed([]string{RoleAdmin}, ObjAttachments, ActWrite))
	assert.True(t, p.Allowed([]string{"unknown", RoleAdmin}, ObjIncidents, ActStatus))
	assert.False(t, p.Allowed(nil, ObjIncidents, ActRead))
	assert.False(t, p.Allowed([]string{"unknown"}, ObjIncidents, ActRead))
}

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
	ctx := WithUser(context.Background(), &store.User{Username: "u"})
	u, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", u.Username)
}
