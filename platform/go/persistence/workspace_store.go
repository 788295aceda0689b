package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Fully-qualified catalog tables.
const (
	WorkspacesTable       = "catalog.workspace"
	WorkspaceDomainsTable = "catalog.workspace_domain"
)

// WorkspaceRecord represents one row in the catalog workspace table.
type WorkspaceRecord struct {
	ID                 uuid.UUID `db:"id"`
	Name               string    `db:"name"`
	Slug               string    `db:"slug"`
	Region             string    `db:"region"`
	ExternalResourceID *string   `db:"external_resource_id"`
	MigrationStatus    string    `db:"migration_status"`
	CreatedAt          time.Time `db:"created_at"`
}

// DomainRecord maps a hostname to a workspace.
type DomainRecord struct {
	ID          uuid.UUID `db:"id"`
	WorkspaceID uuid.UUID `db:"workspace_id"`
	Domain      string    `db:"domain"`
	DomainType  string    `db:"domain_type"`
	IsPrimary   bool      `db:"is_primary"`
	Verified    bool      `db:"verified"`
	CreatedAt   time.Time `db:"created_at"`
}

// WorkspaceStore provides access to the catalog workspace tables.
type WorkspaceStore struct {
	pool *pgxpool.Pool
}

// NewWorkspaceStore creates a store; assumes the catalog DDL already ran.
func NewWorkspaceStore(ctx context.Context, pool *pgxpool.Pool) (*WorkspaceStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &WorkspaceStore{pool: pool}, nil
}

// Create inserts the workspace row and its primary domain row in one
// transaction. The slug and domain uniqueness constraints are the race guard
// for concurrent creations; violations surface as ErrDuplicate.
func (s *WorkspaceStore) Create(ctx context.Context, rec WorkspaceRecord, primary DomainRecord) (WorkspaceRecord, error) {
	if rec.ID == uuid.Nil {
		return WorkspaceRecord{}, errors.New("workspace id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if primary.CreatedAt.IsZero() {
		primary.CreatedAt = rec.CreatedAt
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WorkspaceRecord{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `
        INSERT INTO `+WorkspacesTable+` (id, name, slug, region, external_resource_id, migration_status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, name, slug, region, external_resource_id, migration_status, created_at`,
		rec.ID, rec.Name, rec.Slug, rec.Region, rec.ExternalResourceID, rec.MigrationStatus, rec.CreatedAt,
	)

	out, err := scanWorkspaceRecord(row)
	if err != nil {
		return WorkspaceRecord{}, mapDuplicate(err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO `+WorkspaceDomainsTable+` (id, workspace_id, domain, domain_type, is_primary, verified, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		primary.ID, rec.ID, primary.Domain, primary.DomainType, primary.IsPrimary, primary.Verified, primary.CreatedAt,
	); err != nil {
		return WorkspaceRecord{}, mapDuplicate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return WorkspaceRecord{}, err
	}
	return out, nil
}

// SetExternalResource records the provider resource backing the workspace.
func (s *WorkspaceStore) SetExternalResource(ctx context.Context, id uuid.UUID, resourceID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+WorkspacesTable+` SET external_resource_id = $2 WHERE id = $1`, id, resourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMigrationStatus advances the migration status marker.
func (s *WorkspaceStore) SetMigrationStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+WorkspacesTable+` SET migration_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the workspace row; domain rows cascade with it. Deleting an
// already-absent row is not an error so rollback stays idempotent.
func (s *WorkspaceStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+WorkspacesTable+` WHERE id = $1`, id)
	return err
}

// GetBySlug returns the workspace with the given slug.
func (s *WorkspaceStore) GetBySlug(ctx context.Context, slug string) (WorkspaceRecord, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT id, name, slug, region, external_resource_id, migration_status, created_at
        FROM `+WorkspacesTable+` WHERE slug = $1`, slug)
	return scanWorkspaceRecord(row)
}

// Get returns the workspace by id.
func (s *WorkspaceStore) Get(ctx context.Context, id uuid.UUID) (WorkspaceRecord, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT id, name, slug, region, external_resource_id, migration_status, created_at
        FROM `+WorkspacesTable+` WHERE id = $1`, id)
	return scanWorkspaceRecord(row)
}

// List returns workspaces ordered by creation time, newest first.
func (s *WorkspaceStore) List(ctx context.Context, limit, offset int) ([]WorkspaceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
        SELECT id, name, slug, region, external_resource_id, migration_status, created_at
        FROM `+WorkspacesTable+`
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []WorkspaceRecord
	for rows.Next() {
		rec, err := scanWorkspaceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListDomains returns the domain rows owned by a workspace.
func (s *WorkspaceStore) ListDomains(ctx context.Context, workspaceID uuid.UUID) ([]DomainRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, workspace_id, domain, domain_type, is_primary, verified, created_at
        FROM `+WorkspaceDomainsTable+` WHERE workspace_id = $1 ORDER BY is_primary DESC, domain`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DomainRecord
	for rows.Next() {
		var rec DomainRecord
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.Domain, &rec.DomainType, &rec.IsPrimary, &rec.Verified, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanWorkspaceRecord(row pgx.Row) (WorkspaceRecord, error) {
	var rec WorkspaceRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Slug, &rec.Region, &rec.ExternalResourceID, &rec.MigrationStatus, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkspaceRecord{}, ErrNotFound
		}
		return WorkspaceRecord{}, err
	}
	return rec, nil
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
