package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
	"github.com/lumenboard/lumenboard/platform/go/persistence"
)

// PostgresRepository implements the workspaces catalog repository on top of
// the shared persistence layer.
type PostgresRepository struct {
	store *persistence.WorkspaceStore
}

// NewPostgresRepository constructs a repository backed by WorkspaceStore.
func NewPostgresRepository(store *persistence.WorkspaceStore) *PostgresRepository {
	if store == nil {
		panic("workspace store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, ws service.Workspace, primaryDomain string) (service.Workspace, error) {
	rec, err := r.store.Create(ctx, toRecord(ws), persistence.DomainRecord{
		ID:         uuid.New(),
		Domain:     primaryDomain,
		DomainType: "subdomain",
		IsPrimary:  true,
		Verified:   true,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return service.Workspace{}, service.ErrSlugTaken
		}
		return service.Workspace{}, err
	}
	return toServiceWorkspace(rec), nil
}

func (r *PostgresRepository) SetExternalResource(ctx context.Context, id uuid.UUID, resourceID string) error {
	return mapNotFound(r.store.SetExternalResource(ctx, id, resourceID))
}

func (r *PostgresRepository) SetMigrationStatus(ctx context.Context, id uuid.UUID, status service.MigrationStatus) error {
	return mapNotFound(r.store.SetMigrationStatus(ctx, id, string(status)))
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.Delete(ctx, id)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (service.Workspace, error) {
	rec, err := r.store.GetBySlug(ctx, slug)
	if err != nil {
		return service.Workspace{}, mapNotFound(err)
	}
	return toServiceWorkspace(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]service.Workspace, error) {
	recs, err := r.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]service.Workspace, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toServiceWorkspace(rec))
	}
	return out, nil
}

func toRecord(ws service.Workspace) persistence.WorkspaceRecord {
	return persistence.WorkspaceRecord{
		ID:                 ws.ID,
		Name:               ws.Name,
		Slug:               ws.Slug,
		Region:             ws.Region,
		ExternalResourceID: ws.ExternalResourceID,
		MigrationStatus:    string(ws.MigrationStatus),
		CreatedAt:          ws.CreatedAt,
	}
}

func toServiceWorkspace(rec persistence.WorkspaceRecord) service.Workspace {
	return service.Workspace{
		ID:                 rec.ID,
		Name:               rec.Name,
		Slug:               rec.Slug,
		Region:             rec.Region,
		ExternalResourceID: rec.ExternalResourceID,
		MigrationStatus:    service.MigrationStatus(rec.MigrationStatus),
		CreatedAt:          rec.CreatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return service.ErrNotFound
	}
	return err
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
