package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// RosterRepository stores roster entries with pgvector embeddings.
type RosterRepository struct {
	pool *Pool
}

// NewRosterRepository creates a new PostgreSQL roster repository.
func NewRosterRepository(pool *Pool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

// List returns all entries in registration order.
func (r *RosterRepository) List(ctx context.Context) ([]roster.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, embedding, registered_at
		FROM roster
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var entries []roster.Entry
	for rows.Next() {
		var (
			e   roster.Entry
			vec pgvector.Vector
		)
		if err := rows.Scan(&e.Identity, &vec, &e.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		e.Embedding = vec.Slice()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return entries, nil
}

// Count returns the number of registered identities.
func (r *RosterRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM roster").Scan(&count); err != nil {
		return 0, fmt.Errorf("count roster: %w", err)
	}
	return count, nil
}

// Save inserts one entry. The unique name_key column enforces roster
// uniqueness on the normalized label.
func (r *RosterRepository) Save(ctx context.Context, entry roster.Entry) error {
	key := roster.NormalizeIdentity(entry.Identity)
	vec := pgvector.NewVector(entry.Embedding)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO roster (name, name_key, embedding, dim, registered_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.Identity, key, vec, len(entry.Embedding), entry.RegisteredAt)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		existing := entry.Identity
		_ = r.pool.QueryRow(ctx, "SELECT name FROM roster WHERE name_key = $1", key).Scan(&existing)
		return &roster.DuplicateIdentityError{Identity: entry.Identity, Existing: existing}
	}
	return fmt.Errorf("insert roster entry: %w", err)
}
