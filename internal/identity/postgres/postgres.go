// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

// Package postgres implements the identity repositories on PostgreSQL
// using pgx.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pool abstracts *pgxpool.Pool so repositories can be unit-tested with
// pgxmock.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
