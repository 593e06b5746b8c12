package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerTables in delete order.
var ledgerTables = []string{"transactions", "budgets", "subcategories", "categories"}

var shared struct {
	once sync.Once
	pool *pgxpool.Pool
	err  error
}

// TestPool returns a pool on TEST_DATABASE_URL, migrated and seeded once per
// test binary. The test is skipped when the variable is unset.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	shared.once.Do(func() {
		ctx := context.Background()
		if shared.pool, shared.err = Connect(ctx, url); shared.err != nil {
			return
		}
		if shared.err = RunMigrations(ctx, shared.pool); shared.err != nil {
			return
		}
		shared.err = SeedCategories(ctx, shared.pool)
	})
	if shared.err != nil {
		t.Fatalf("failed to prepare test database: %v", shared.err)
	}
	return shared.pool
}

// TestTx opens a transaction on the shared pool and rolls it back at
// cleanup. Repositories built on it see only the test's own rows.
func TestTx(t *testing.T) PGXDB {
	t.Helper()

	ctx := context.Background()
	tx, err := TestPool(t).Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin test transaction: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(ctx) })
	return tx
}

// CleanupTables empties every ledger table visible to db, seeded rows
// included.
func CleanupTables(t *testing.T, db PGXDB) {
	t.Helper()

	for _, table := range ledgerTables {
		if _, err := db.Exec(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("failed to empty %s: %v", table, err)
		}
	}
}
