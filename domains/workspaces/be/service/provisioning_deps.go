package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Resource identifies a provider-allocated database.
type Resource struct {
	ID            string
	ConnectionURI string
}

// ResourceProvisioner wraps the managed-database provider API.
// CreateDatabase retries transient provider failures internally and returns
// ErrProvisioningFailed once retries exhaust. DeleteDatabase is used only for
// rollback and must be best-effort: callers log its error and move on.
type ResourceProvisioner interface {
	CreateDatabase(ctx context.Context, name, region string) (Resource, error)
	DeleteDatabase(ctx context.Context, resourceID string) error
}

// ReadinessWaiter polls a freshly allocated database until it accepts a
// trivial query, because provider allocation is asynchronous and the returned
// connection string is not immediately usable.
type ReadinessWaiter interface {
	WaitUntilReady(ctx context.Context, connURI string, timeout time.Duration) error
}

// Seed carries the minimum rows a tenant database needs to be usable.
type Seed struct {
	WorkspaceID uuid.UUID
	Name        string
	Slug        string
	OwnerEmail  string
	OwnerName   string
}

// TenantBootstrapper prepares a live tenant database: schema, seed rows, and
// the one-time session-handoff token.
type TenantBootstrapper interface {
	RunMigrations(ctx context.Context, connURI string) error
	SeedInitialData(ctx context.Context, connURI string, seed Seed) (uuid.UUID, error)
	IssueOneTimeToken(ctx context.Context, connURI string, userID uuid.UUID) (string, error)
}

// TokenVerifier re-checks and consumes the provisioning token issued by the
// signup flow. Implementations must return ErrInvalidToken for a missing,
// expired, or mismatched token so the orchestrator can fail without side
// effects.
type TokenVerifier interface {
	CheckToken(ctx context.Context, email, token string) error
	ConsumeToken(ctx context.Context, email string) error
}
