package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
)

// MemoryRepository is an in-memory catalog suitable for tests and early
// development. The slug map plays the role of the unique constraint, so
// concurrent creations of the same slug resolve to exactly one winner here
// too.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]service.Workspace
	bySlug  map[string]uuid.UUID
	domains map[uuid.UUID]string
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]service.Workspace),
		bySlug:  make(map[string]uuid.UUID),
		domains: make(map[uuid.UUID]string),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, ws service.Workspace, primaryDomain string) (service.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[ws.Slug]; exists {
		return service.Workspace{}, service.ErrSlugTaken
	}

	r.byID[ws.ID] = ws
	r.bySlug[ws.Slug] = ws.ID
	r.domains[ws.ID] = primaryDomain
	return ws, nil
}

func (r *MemoryRepository) SetExternalResource(ctx context.Context, id uuid.UUID, resourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	ws.ExternalResourceID = &resourceID
	r.byID[id] = ws
	return nil
}

func (r *MemoryRepository) SetMigrationStatus(ctx context.Context, id uuid.UUID, status service.MigrationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	ws.MigrationStatus = status
	r.byID[id] = ws
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	delete(r.bySlug, ws.Slug)
	delete(r.domains, id)
	return nil
}

func (r *MemoryRepository) GetBySlug(ctx context.Context, slug string) (service.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bySlug[slug]
	if !ok {
		return service.Workspace{}, service.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) List(ctx context.Context, limit, offset int) ([]service.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]service.Workspace, 0, len(r.byID))
	for _, ws := range r.byID {
		items = append(items, ws)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

// PrimaryDomain returns the primary hostname recorded for a workspace.
func (r *MemoryRepository) PrimaryDomain(id uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[id]
	return d, ok
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
