//go:build integration

package pg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"taskdesk.org/internal/audit"
	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/config"
	"taskdesk.org/internal/ids"
	"taskdesk.org/internal/migrate"
	"taskdesk.org/internal/tasks"
	"taskdesk.org/ops/migrations"
)

func setupPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("taskdesk_test"),
		postgres.WithUsername("taskdesk"),
		postgres.WithPassword("taskdesk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(stopCtx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(ctx, config.DBConfig{DSN: dsn, MaxOpenConns: 5, MaxIdleConns: 5, ConnMaxLife: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	m := migrate.NewManager(s.DB(), migrations.Files, migrations.SchemaDir, migrations.SeedsDir)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Seed(ctx))
	return s
}

func TestIntegrationSeededAdminFlow(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	issuer, err := auth.NewIssuer("integration-secret-0123456789")
	require.NoError(t, err)
	svc := auth.NewService(s, issuer)

	sess, err := svc.Login(ctx, auth.LoginInput{Email: "admin@example.com", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, auth.LevelOwner, sess.Principal.Level())
	assert.True(t, sess.Principal.HasPermission(auth.PermUsersDelete))

	p, _, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	roles, err := s.Roles(ctx).List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, "owner", roles[0].Name)

	taskSvc, err := tasks.NewService(s.Tasks())
	require.NoError(t, err)
	hours := 2.5
	created, err := taskSvc.Create(ctx, p, tasks.CreateInput{
		Title:          "Write runbook",
		EstimatedHours: &hours,
		Tags:           []string{"ops"},
	})
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusPending, created.Status)

	got, err := taskSvc.Get(ctx, p, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, got.Tags)
	require.NotNil(t, got.EstimatedHours)
	assert.InDelta(t, 2.5, *got.EstimatedHours, 0.001)

	ghost := ids.New()
	_, err = taskSvc.Create(ctx, p, tasks.CreateInput{Title: "Orphan", AssignedToID: &ghost})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	require.NoError(t, taskSvc.Delete(ctx, p, created.ID))
	_, err = taskSvc.Get(ctx, p, created.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	uid := p.UserID()
	require.NoError(t, s.Audit().Append(ctx, &audit.Entry{
		ID:         ids.New(),
		UserID:     &uid,
		Action:     audit.ActionCreate,
		Resource:   "tasks",
		Method:     "POST",
		Endpoint:   "/api/v1/tasks",
		StatusCode: 201,
		Metadata:   audit.Metadata{Body: map[string]any{"title": "Write runbook"}, Query: map[string]any{}},
		CreatedAt:  time.Now().UTC(),
	}))
	entries, err := s.Audit().List(ctx, audit.Filter{UserID: uid})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].User)
	assert.Equal(t, "admin@example.com", entries[0].User.Email)
}
