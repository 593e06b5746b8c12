package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

func TestRunMigrations(t *testing.T) {
	db := TestTx(t)
	ctx := context.Background()

	// Already applied by TestPool; a second run must be a no-op.
	require.NoError(t, RunMigrations(ctx, db))

	for _, table := range []string{"categories", "subcategories", "transactions", "budgets"} {
		var exists bool
		err := db.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, table)
	}
}

func TestRunMigrations_RejectsUnknownType(t *testing.T) {
	db := TestTx(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `INSERT INTO categories (id, name, type) VALUES ('x', 'Broken', 'transfer')`)
	require.Error(t, err)
}

func TestSeedCategories(t *testing.T) {
	db := TestTx(t)
	ctx := context.Background()

	CleanupTables(t, db)
	require.NoError(t, SeedCategories(ctx, db))
	require.NoError(t, SeedCategories(ctx, db), "re-seeding must not fail")

	var count int
	err := db.QueryRow(ctx, "SELECT COUNT(*) FROM categories").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 4, count)

	var parent *string
	err = db.QueryRow(ctx, "SELECT parent_id FROM categories WHERE id = $1", models.SentinelExpenseID).Scan(&parent)
	require.NoError(t, err)
	require.NotNil(t, parent)
	require.Equal(t, models.ContainerExpenseID, *parent)
}
