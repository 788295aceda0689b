package provisioning

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	sqlassets "github.com/lumenboard/lumenboard/database"
	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
)

// oneTimeTokenTTL bounds the window between provisioning finishing and the
// browser redeeming the session handoff.
const oneTimeTokenTTL = 60 * time.Second

// Bootstrapper prepares a freshly allocated tenant database: schema
// migrations, seed rows, and the one-time login token. It connects per call
// because every call targets a different database.
type Bootstrapper struct {
	migrations fs.FS
	dir        string
}

// NewBootstrapper constructs a Bootstrapper over the embedded tenant DDL.
func NewBootstrapper() *Bootstrapper {
	return &Bootstrapper{
		migrations: sqlassets.TenantMigrations,
		dir:        sqlassets.TenantMigrationsDir,
	}
}

// RunMigrations applies the embedded DDL files in lexicographic order,
// statement by statement. A failure partway leaves a partial schema behind;
// that is fine because the orchestrator's rollback deletes the whole
// database resource, not individual rows.
func (b *Bootstrapper) RunMigrations(ctx context.Context, connURI string) error {
	entries, err := fs.ReadDir(b.migrations, b.dir)
	if err != nil {
		return fmt.Errorf("%w: read migrations: %v", service.ErrMigrationFailed, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	conn, err := pgx.Connect(ctx, connURI)
	if err != nil {
		return fmt.Errorf("%w: connect: %v", service.ErrMigrationFailed, err)
	}
	defer conn.Close(ctx) // nolint:errcheck

	for _, name := range names {
		contents, err := fs.ReadFile(b.migrations, b.dir+"/"+name)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", service.ErrMigrationFailed, name, err)
		}
		for _, stmt := range splitStatements(string(contents)) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%w: apply %s: %v", service.ErrMigrationFailed, name, err)
			}
		}
	}

	return nil
}

// SeedInitialData inserts the organization settings row, the owner user, the
// owner membership and one default feedback board as a single transaction. A
// half-seeded tenant (settings but no owner) must never be reachable by any
// login path, hence the all-or-nothing commit.
func (b *Bootstrapper) SeedInitialData(ctx context.Context, connURI string, seed service.Seed) (uuid.UUID, error) {
	conn, err := pgx.Connect(ctx, connURI)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: connect: %v", service.ErrSeedFailed, err)
	}
	defer conn.Close(ctx) // nolint:errcheck

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: begin tx: %v", service.ErrSeedFailed, err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ownerName := strings.TrimSpace(seed.OwnerName)
	if ownerName == "" {
		ownerName = seed.OwnerEmail
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO organization_settings (workspace_id, name, slug)
        VALUES ($1, $2, $3)`,
		seed.WorkspaceID, seed.Name, seed.Slug,
	); err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert settings: %v", service.ErrSeedFailed, err)
	}

	ownerID := uuid.New()
	if _, err := tx.Exec(ctx, `
        INSERT INTO users (id, email, full_name)
        VALUES ($1, $2, $3)`,
		ownerID, strings.ToLower(seed.OwnerEmail), ownerName,
	); err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert owner user: %v", service.ErrSeedFailed, err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO memberships (id, user_id, role)
        VALUES ($1, $2, 'owner')`,
		uuid.New(), ownerID,
	); err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert owner membership: %v", service.ErrSeedFailed, err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO boards (id, name, slug)
        VALUES ($1, 'Feature Requests', 'feature-requests')`,
		uuid.New(),
	); err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert default board: %v", service.ErrSeedFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("%w: commit: %v", service.ErrSeedFailed, err)
	}

	return ownerID, nil
}

// IssueOneTimeToken mints a single-use, short-expiry login token inside the
// tenant database. The session-handoff endpoint redeems it on first load,
// landing the owner in an authenticated session without a password round
// trip.
func (b *Bootstrapper) IssueOneTimeToken(ctx context.Context, connURI string, userID uuid.UUID) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate one-time token: %w", err)
	}
	token := hex.EncodeToString(buf)

	conn, err := pgx.Connect(ctx, connURI)
	if err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx) // nolint:errcheck

	if _, err := conn.Exec(ctx, `
        INSERT INTO login_tokens (token, user_id, expires_at)
        VALUES ($1, $2, $3)`,
		token, userID, time.Now().Add(oneTimeTokenTTL),
	); err != nil {
		return "", fmt.Errorf("insert one-time token: %w", err)
	}

	return token, nil
}

// splitStatements breaks a migration file into executable statements.
func splitStatements(sql string) []string {
	raw := strings.Split(sql, ";")
	statements := make([]string, 0, len(raw))
	for _, s := range raw {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

var _ service.TenantBootstrapper = (*Bootstrapper)(nil)
