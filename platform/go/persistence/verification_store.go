package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VerificationTable is the fully-qualified verification table.
const VerificationTable = "catalog.verification"

// VerificationRecord is a short-lived value keyed by a composite identifier,
// e.g. "workspace-creation:<email>" for codes and "verified:<email>" for
// provisioning tokens. The identifier is unique: a later upsert for the same
// identifier replaces the earlier record, which is how a resend invalidates
// the previous code.
type VerificationRecord struct {
	Identifier   string    `db:"identifier"`
	Value        string    `db:"value"`
	ExpiresAt    time.Time `db:"expires_at"`
	AttemptCount int       `db:"attempt_count"`
}

// VerificationStore provides access to the catalog verification table.
type VerificationStore struct {
	pool *pgxpool.Pool
}

// NewVerificationStore creates a store; assumes the catalog DDL already ran.
func NewVerificationStore(ctx context.Context, pool *pgxpool.Pool) (*VerificationStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &VerificationStore{pool: pool}, nil
}

// Upsert writes the record, replacing any existing record with the same
// identifier and resetting its attempt counter.
func (s *VerificationStore) Upsert(ctx context.Context, rec VerificationRecord) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO `+VerificationTable+` (identifier, value, expires_at, attempt_count)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (identifier) DO UPDATE
        SET value = EXCLUDED.value,
            expires_at = EXCLUDED.expires_at,
            attempt_count = EXCLUDED.attempt_count,
            created_at = now()`,
		rec.Identifier, rec.Value, rec.ExpiresAt, rec.AttemptCount,
	)
	return err
}

// Get returns the record for the identifier, expired or not; expiry policy
// belongs to the caller.
func (s *VerificationStore) Get(ctx context.Context, identifier string) (VerificationRecord, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT identifier, value, expires_at, attempt_count
        FROM `+VerificationTable+` WHERE identifier = $1`, identifier)

	var rec VerificationRecord
	if err := row.Scan(&rec.Identifier, &rec.Value, &rec.ExpiresAt, &rec.AttemptCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VerificationRecord{}, ErrNotFound
		}
		return VerificationRecord{}, err
	}
	return rec, nil
}

// Delete removes the record; deleting an absent identifier is not an error.
func (s *VerificationStore) Delete(ctx context.Context, identifier string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+VerificationTable+` WHERE identifier = $1`, identifier)
	return err
}

// IncrementAttempts bumps the failed-attempt counter and returns the new
// count so callers can enforce a guessing cap.
func (s *VerificationStore) IncrementAttempts(ctx context.Context, identifier string) (int, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE `+VerificationTable+` SET attempt_count = attempt_count + 1
        WHERE identifier = $1
        RETURNING attempt_count`, identifier)

	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return count, nil
}
