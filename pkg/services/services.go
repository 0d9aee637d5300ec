// Package services holds the Postgres-backed stores behind the engine and
// pipeline contracts: call records, user and spam profiles, and analysis
// results.
package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store bundles the row-level accessors over one shared pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
