package appbootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drdesk/config"
	"drdesk/core/auth"
	"drdesk/core/store/storetest"
	"drdesk/core/utils"
)

func TestComposeRuntimeBootstrapsAdminAndWorkers(t *testing.T) {
	db := storetest.Open(t)
	cfg := &config.AppConfig{
		Attachments: config.AttachmentsConfig{StorageDir: t.TempDir(), PublicBaseURL: "/files"},
		Security:    config.SecurityConfig{AuthEnabled: true, BootstrapAdmin: "admin", BootstrapPassword: "s3cret"},
		Scheduler:   config.SchedulerConfig{Enabled: true, PendingDigestCron: "@every 1h"},
	}
	ctx := context.Background()

	comp, err := composeRuntime(ctx, cfg, db, utils.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, comp.workers, 1)
	assert.NotNil(t, comp.serverDeps.Workflow)
	assert.NotNil(t, comp.serverDeps.Attachments)
	assert.Equal(t, cfg.Attachments.StorageDir, comp.serverDeps.FilesDir)

	user, err := comp.serverDeps.Authenticator.Verify(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleAdmin}, user.Roles)
	assert.True(t, comp.serverDeps.Policy.Allowed(user.Roles, auth.ObjIncidents, auth.ActStatus))

	// a second compose keeps the existing account
	cfg.Security.BootstrapPassword = "changed"
	cfg.Scheduler.Enabled = false
	comp, err = composeRuntime(ctx, cfg, db, utils.NewNopLogger())
	require.NoError(t, err)
	assert.Empty(t, comp.workers)
	_, err = comp.serverDeps.Authenticator.Verify(ctx, "admin", "s3cret")
	require.NoError(t, err)
}

func TestBootstrapAdminSkippedWithoutPassword(t *testing.T) {
	db := storetest.Open(t)
	cfg := &config.AppConfig{
		Attachments: config.AttachmentsConfig{StorageDir: t.TempDir()},
		Security:    config.SecurityConfig{BootstrapAdmin: "admin"},
	}
	comp, err := composeRuntime(context.Background(), cfg, db, utils.NewNopLogger())
	require.NoError(t, err)
	_, err = comp.serverDeps.Authenticator.Verify(context.Background(), "admin", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
