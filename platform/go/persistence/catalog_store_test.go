package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newCatalogPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("lumenboard"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	require.NoError(t, BootstrapCatalogSchema(ctx, pool))
	return pool
}

func workspaceFixture(slug string) (WorkspaceRecord, DomainRecord) {
	ws := WorkspaceRecord{
		ID:              uuid.New(),
		Name:            "Acme",
		Slug:            slug,
		Region:          "aws-us-east-1",
		MigrationStatus: "in_progress",
	}
	dom := DomainRecord{
		ID:         uuid.New(),
		Domain:     slug + ".lumenboard.test",
		DomainType: "subdomain",
		IsPrimary:  true,
		Verified:   true,
	}
	return ws, dom
}

func TestWorkspaceStoreLifecycle(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping workspace store integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := newCatalogPool(t, ctx)

	store, err := NewWorkspaceStore(ctx, pool)
	require.NoError(t, err)

	ws, dom := workspaceFixture("acme")
	created, err := store.Create(ctx, ws, dom)
	require.NoError(t, err)
	require.Equal(t, ws.ID, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	// Slug uniqueness fires at insert time.
	dup, dupDom := workspaceFixture("acme")
	_, err = store.Create(ctx, dup, dupDom)
	require.ErrorIs(t, err, ErrDuplicate)

	// The primary domain row landed in the same transaction.
	domains, err := store.ListDomains(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	require.Equal(t, "acme.lumenboard.test", domains[0].Domain)
	require.True(t, domains[0].IsPrimary)

	require.NoError(t, store.SetExternalResource(ctx, ws.ID, "proj-abc"))
	require.NoError(t, store.SetMigrationStatus(ctx, ws.ID, "completed"))

	got, err := store.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got.ExternalResourceID)
	require.Equal(t, "proj-abc", *got.ExternalResourceID)
	require.Equal(t, "completed", got.MigrationStatus)

	list, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Delete removes the workspace and cascades to its domains, freeing the
	// slug for reuse.
	require.NoError(t, store.Delete(ctx, ws.ID))
	_, err = store.GetBySlug(ctx, "acme")
	require.ErrorIs(t, err, ErrNotFound)

	domains, err = store.ListDomains(ctx, ws.ID)
	require.NoError(t, err)
	require.Empty(t, domains)

	ws2, dom2 := workspaceFixture("acme")
	_, err = store.Create(ctx, ws2, dom2)
	require.NoError(t, err)

	// Delete is idempotent.
	require.NoError(t, store.Delete(ctx, ws.ID))
}

func TestVerificationStoreUpsertSemantics(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping verification store integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := newCatalogPool(t, ctx)

	store, err := NewVerificationStore(ctx, pool)
	require.NoError(t, err)

	const identifier = "workspace-creation:owner@acme.com"

	require.NoError(t, store.Upsert(ctx, VerificationRecord{
		Identifier: identifier,
		Value:      "111111",
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}))

	attempts, err := store.IncrementAttempts(ctx, identifier)
	require.NoError(t, err)
	require.Equal(t, 1, attempts)

	// Upsert replaces the value and resets the attempt counter.
	require.NoError(t, store.Upsert(ctx, VerificationRecord{
		Identifier: identifier,
		Value:      "222222",
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}))

	rec, err := store.Get(ctx, identifier)
	require.NoError(t, err)
	require.Equal(t, "222222", rec.Value)
	require.Zero(t, rec.AttemptCount)

	require.NoError(t, store.Delete(ctx, identifier))
	_, err = store.Get(ctx, identifier)
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent record is not an error.
	require.NoError(t, store.Delete(ctx, identifier))

	_, err = store.IncrementAttempts(ctx, identifier)
	require.ErrorIs(t, err, ErrNotFound)
}
