//go:build testutil
// +build testutil

// Package testdb starts a throwaway PostgreSQL container with every migration applied.
package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trezcool/elimu/storage/database"
)

// Start runs the container and returns the migrated database. Everything is torn down on t.Cleanup.
func Start(t *testing.T) *database.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("elimu"),
		postgres.WithUsername("elimu"),
		postgres.WithPassword("elimu"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = pg.Terminate(ctx)
	})

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	sdb, err := sqlx.ConnectContext(ctx, "postgres", uri)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	db := database.Wrap(sdb)
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

// Reset empties every table.
func Reset(t *testing.T, db *database.DB) {
	t.Helper()
	_, err := db.Exec("TRUNCATE announcements, courses, contact_messages, user_settings, users CASCADE")
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
