// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/astralx/identity/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container and applies all
// migrations.
func setupPostgresContainer() (string, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("identity_test"),
		postgres.WithUsername("identity"),
		postgres.WithPassword("identity"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return "", nil, err
	}
	if err := migrator.Up(); err != nil {
		return "", nil, err
	}
	_ = migrator.Close()

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return connStr, cleanup, nil
}

var _ = Describe("Connect", func() {
	var connStr string
	var cleanup func()
	var pool *pgxpool.Pool

	BeforeEach(func() {
		var err error
		connStr, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Connect(context.Background(), connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		pool.Close()
		cleanup()
	})

	It("connects and can query the migrated schema", func() {
		ctx := context.Background()

		var count int
		err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(0))

		err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_sessions`).Scan(&count)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(0))

		err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM password_reset_grants`).Scan(&count)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(0))
	})

	It("enforces the unique email constraint", func() {
		ctx := context.Background()

		_, err := pool.Exec(ctx, `
			INSERT INTO accounts (id, email, password_hash)
			VALUES ('01JA0000000000000000000001', 'dup@example.com', 'hash')
		`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `
			INSERT INTO accounts (id, email, password_hash)
			VALUES ('01JA0000000000000000000002', 'dup@example.com', 'hash')
		`)
		Expect(err).To(HaveOccurred())
	})

	It("cascades session deletion when an account is removed", func() {
		ctx := context.Background()

		_, err := pool.Exec(ctx, `
			INSERT INTO accounts (id, email, password_hash)
			VALUES ('01JA0000000000000000000003', 'cascade@example.com', 'hash')
		`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `
			INSERT INTO refresh_sessions (id, account_id, token_hash, expires_at)
			VALUES ('01JA0000000000000000000004', '01JA0000000000000000000003', 'th', now() + interval '1 day')
		`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `DELETE FROM accounts WHERE id = '01JA0000000000000000000003'`)
		Expect(err).NotTo(HaveOccurred())

		var count int
		err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_sessions`).Scan(&count)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(0))
	})
})
