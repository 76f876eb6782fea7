package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the part of *pgxpool.Pool the PostgreSQL repositories use.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrEmailTaken is returned by every user store when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Timestamps are kept at microsecond precision on every backend so a value
// handed to a client compares equal when it comes back as a cursor.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
