package database

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/ledger-core/internal/models"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			emoji TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			parent_id TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_lower_name ON categories (LOWER(name))`,

		`CREATE TABLE IF NOT EXISTS subcategories (
			id TEXT PRIMARY KEY,
			category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			emoji TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			position INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subcategories_category_id ON subcategories(category_id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			wallet_id TEXT NOT NULL,
			category_id TEXT NOT NULL,
			category_name TEXT NOT NULL DEFAULT '',
			merchant TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			date TIMESTAMPTZ NOT NULL,
			original_amount DECIMAL(18, 4) NOT NULL,
			original_currency TEXT NOT NULL,
			amount DECIMAL(18, 4) NOT NULL,
			primary_currency TEXT NOT NULL,
			exchange_rate DECIMAL(24, 12) NOT NULL,
			secondary_currency TEXT,
			secondary_amount DECIMAL(18, 4),
			secondary_exchange_rate DECIMAL(24, 12),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_wallet_date ON transactions(wallet_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_category_id ON transactions(category_id)`,

		`CREATE TABLE IF NOT EXISTS budgets (
			id TEXT PRIMARY KEY,
			wallet_id TEXT NOT NULL,
			category_id TEXT NOT NULL,
			category_name TEXT NOT NULL DEFAULT '',
			amount DECIMAL(18, 4) NOT NULL,
			currency TEXT NOT NULL,
			period TEXT NOT NULL CHECK (period IN ('daily', 'weekly', 'monthly', 'yearly')),
			apply_to_all_periods BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_budgets_wallet_id ON budgets(wallet_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// SeedCategories inserts the reserved container and sentinel categories.
func SeedCategories(ctx context.Context, db PGXDB) error {
	for i, cat := range models.ReservedCategories() {
		_, err := db.Exec(ctx, `
			INSERT INTO categories (id, name, type, parent_id, position)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, cat.ID, cat.Name, string(cat.Type), cat.ParentID, i)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", cat.Name, err)
		}
	}

	return nil
}
