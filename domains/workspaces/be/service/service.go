package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Errors returned by the workspaces service layer.
var (
	ErrNotFound            = errors.New("workspace not found")
	ErrSlugTaken           = errors.New("workspace slug is not available")
	ErrInvalidToken        = errors.New("invalid or expired provisioning token")
	ErrProvisioningFailed  = errors.New("database provisioning failed")
	ErrProvisioningTimeout = errors.New("database never became reachable")
	ErrMigrationFailed     = errors.New("tenant migrations failed")
	ErrSeedFailed          = errors.New("tenant seeding failed")
)

// MigrationStatus marks how far a catalog row has advanced. It only moves
// forward during a successful run; a failed run deletes the row instead of
// leaving a terminal "failed" state, so slugs free up immediately.
type MigrationStatus string

const (
	MigrationPending    MigrationStatus = "pending"
	MigrationInProgress MigrationStatus = "in_progress"
	MigrationCompleted  MigrationStatus = "completed"
)

// Milestone names the saga states for logging.
type Milestone string

const (
	MilestoneValidating      Milestone = "validating"
	MilestoneCatalogReserved Milestone = "catalog-reserved"
	MilestoneResourceCreate  Milestone = "resource-creating"
	MilestoneResourceReady   Milestone = "resource-ready"
	MilestoneMigrating       Milestone = "migrating"
	MilestoneSeeding         Milestone = "seeding"
	MilestoneTokenIssued     Milestone = "token-issued"
	MilestoneCompleted       Milestone = "completed"
	MilestoneRollingBack     Milestone = "rolling-back"
	MilestoneAborted         Milestone = "aborted"
)

// Workspace is the domain model for a catalog entry.
type Workspace struct {
	ID                 uuid.UUID
	Name               string
	Slug               string
	Region             string
	ExternalResourceID *string
	MigrationStatus    MigrationStatus
	CreatedAt          time.Time
}

// Repository abstracts the catalog store. Create must insert the workspace
// row together with its primary subdomain row and return ErrSlugTaken when a
// uniqueness constraint fires; that constraint is the sole race guard for
// concurrent creations of the same slug.
type Repository interface {
	Create(ctx context.Context, ws Workspace, primaryDomain string) (Workspace, error)
	SetExternalResource(ctx context.Context, id uuid.UUID, resourceID string) error
	SetMigrationStatus(ctx context.Context, id uuid.UUID, status MigrationStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetBySlug(ctx context.Context, slug string) (Workspace, error)
	List(ctx context.Context, limit, offset int) ([]Workspace, error)
}

// Config carries the provisioning policy knobs.
type Config struct {
	// Region is the provider region hint for new databases.
	Region string
	// BaseDomain forms the default subdomain, e.g. "lumenboard.app".
	BaseDomain string
	// ReadyTimeout bounds the post-allocation readiness poll.
	ReadyTimeout time.Duration
}

// CreateInput is the request to provision a workspace.
type CreateInput struct {
	Email             string
	Name              string
	Slug              string
	VerificationToken string
}

// CreateResult is returned once provisioning fully succeeds.
type CreateResult struct {
	WorkspaceID uuid.UUID
	Slug        string
	RedirectURL string
}

// Service is the provisioning orchestrator: it sequences token validation,
// catalog reservation, resource allocation, tenant bootstrap and session
// handoff, with compensating cleanup on any failure past the reservation.
type Service struct {
	repo         Repository
	provisioner  ResourceProvisioner
	waiter       ReadinessWaiter
	bootstrapper TenantBootstrapper
	tokens       TokenVerifier
	logger       *zap.Logger
	cfg          Config
}

// New constructs a Service with required dependencies.
func New(repo Repository, provisioner ResourceProvisioner, waiter ReadinessWaiter, bootstrapper TenantBootstrapper, tokens TokenVerifier, logger *zap.Logger, cfg Config) *Service {
	if repo == nil {
		panic("workspaces repo is required")
	}
	if provisioner == nil {
		panic("resource provisioner is required")
	}
	if waiter == nil {
		panic("readiness waiter is required")
	}
	if bootstrapper == nil {
		panic("tenant bootstrapper is required")
	}
	if tokens == nil {
		panic("token verifier is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if cfg.Region == "" {
		cfg.Region = "aws-us-east-1"
	}
	if cfg.BaseDomain == "" {
		panic("base domain is required")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}
	return &Service{
		repo:         repo,
		provisioner:  provisioner,
		waiter:       waiter,
		bootstrapper: bootstrapper,
		tokens:       tokens,
		logger:       logger,
		cfg:          cfg,
	}
}

// GetBySlug returns a catalog entry.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Workspace, error) {
	return s.repo.GetBySlug(ctx, normalizeSlugInput(slug))
}

// List returns catalog entries, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Workspace, error) {
	return s.repo.List(ctx, limit, offset)
}

// Create drives the full provisioning saga. Validation failures return with
// no side effects; any failure after the catalog row is reserved triggers
// rollback (delete external resource, delete catalog row) and re-raises the
// original error. The caller only ever sees that original error.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	// The saga keeps running even if the client disconnects: abandoning it
	// mid-flight would leak a billable database or a half-built tenant.
	ctx = context.WithoutCancel(ctx)

	slug := normalizeSlugInput(input.Slug)
	log := s.logger.With(zap.String("slug", slug))

	s.milestone(log, MilestoneValidating)
	if err := s.tokens.CheckToken(ctx, input.Email, input.VerificationToken); err != nil {
		return CreateResult{}, err
	}
	avail, err := s.CheckAvailability(ctx, slug)
	if err != nil {
		return CreateResult{}, fmt.Errorf("check slug: %w", err)
	}
	if !avail.Available {
		return CreateResult{}, ErrSlugTaken
	}

	primaryDomain := slug + "." + s.cfg.BaseDomain
	ws := Workspace{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(input.Name),
		Slug:            slug,
		Region:          s.cfg.Region,
		MigrationStatus: MigrationInProgress,
		CreatedAt:       time.Now().UTC(),
	}

	// The insert's uniqueness constraint is the authoritative race guard: if
	// two requests for the same slug got past the advisory check above,
	// exactly one insert succeeds and the other fails here with ErrSlugTaken.
	ws, err = s.repo.Create(ctx, ws, primaryDomain)
	if err != nil {
		return CreateResult{}, err
	}
	s.milestone(log, MilestoneCatalogReserved)

	var resourceID string

	fail := func(stage string, cause error) (CreateResult, error) {
		s.rollback(ctx, log, ws.ID, resourceID)
		return CreateResult{}, fmt.Errorf("%s: %w", stage, cause)
	}

	s.milestone(log, MilestoneResourceCreate)
	resource, err := s.provisioner.CreateDatabase(ctx, slug, ws.Region)
	if err != nil {
		return fail("create database", err)
	}
	resourceID = resource.ID
	if err := s.repo.SetExternalResource(ctx, ws.ID, resource.ID); err != nil {
		return fail("record external resource", err)
	}

	if err := s.waiter.WaitUntilReady(ctx, resource.ConnectionURI, s.cfg.ReadyTimeout); err != nil {
		return fail("wait for database", err)
	}
	s.milestone(log, MilestoneResourceReady)

	s.milestone(log, MilestoneMigrating)
	if err := s.bootstrapper.RunMigrations(ctx, resource.ConnectionURI); err != nil {
		return fail("run migrations", err)
	}

	s.milestone(log, MilestoneSeeding)
	ownerID, err := s.bootstrapper.SeedInitialData(ctx, resource.ConnectionURI, Seed{
		WorkspaceID: ws.ID,
		Name:        ws.Name,
		Slug:        ws.Slug,
		OwnerEmail:  input.Email,
		OwnerName:   input.Name,
	})
	if err != nil {
		return fail("seed tenant", err)
	}

	oneTimeToken, err := s.bootstrapper.IssueOneTimeToken(ctx, resource.ConnectionURI, ownerID)
	if err != nil {
		return fail("issue one-time token", err)
	}
	s.milestone(log, MilestoneTokenIssued)

	if err := s.repo.SetMigrationStatus(ctx, ws.ID, MigrationCompleted); err != nil {
		return fail("complete catalog row", err)
	}

	// The provisioning token is spent. A leftover record only shortens the
	// user's retry window, so a failed delete is logged, not fatal.
	if err := s.tokens.ConsumeToken(ctx, input.Email); err != nil {
		log.Warn("consume provisioning token failed", zap.Error(err))
	}

	s.milestone(log, MilestoneCompleted)

	return CreateResult{
		WorkspaceID: ws.ID,
		Slug:        ws.Slug,
		RedirectURL: fmt.Sprintf("https://%s/auth/handoff?token=%s", primaryDomain, url.QueryEscape(oneTimeToken)),
	}, nil
}

// rollback compensates committed side effects in reverse order. Each cleanup
// is attempted independently; failures are logged and never propagated, so
// the original saga error is what the caller sees. A failed resource delete
// leaves an orphan for operators to sweep; the resource id is logged for that.
func (s *Service) rollback(ctx context.Context, log *zap.Logger, workspaceID uuid.UUID, resourceID string) {
	s.milestone(log, MilestoneRollingBack)

	if resourceID != "" {
		if err := s.provisioner.DeleteDatabase(ctx, resourceID); err != nil {
			log.Error("rollback: delete external database failed",
				zap.String("resource_id", resourceID),
				zap.Error(err),
			)
		}
	}

	if err := s.repo.Delete(ctx, workspaceID); err != nil {
		log.Error("rollback: delete catalog row failed",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err),
		)
	}

	s.milestone(log, MilestoneAborted)
}

func (s *Service) milestone(log *zap.Logger, m Milestone) {
	log.Info("provisioning milestone", zap.String("state", string(m)))
}
