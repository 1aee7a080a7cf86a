// Package store is the persistence layer for recorded payments. It is
// deliberately thin: the tipping pipeline only ever inserts completed payments
// and reads them back for the success page.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no payment matches the lookup key.
var ErrNotFound = errors.New("payment not found")

// Store wraps a pgx pool with payment queries.
type Store struct {
	Pool *pgxpool.Pool
}

// New constructs a Store around an existing pool. The pool is owned by the
// caller (cmd/api) and shared with health checks.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Ping probes connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return errors.New("store not configured")
	}
	return s.Pool.Ping(ctx)
}
