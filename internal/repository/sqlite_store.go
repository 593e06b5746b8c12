package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps the ledger in a single local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := sqliteDSN(path)

	// Migrations run on their own connection; closing the migrate instance
	// closes the handle it was given.
	if err := migrateSQLite(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Log.Info().Str("path", path).Msg("SQLite store opened")
	return &SQLiteStore{db: db}, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func migrateSQLite(dsn string) error {
	migrateDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer func() { _ = migrateDB.Close() }()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	source, err := iofs.New(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadCategories implements Store.
func (s *SQLiteStore) LoadCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, emoji, type, parent_id, created_at
		FROM categories ORDER BY position, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []models.Category
	index := make(map[string]int)
	for rows.Next() {
		var cat models.Category
		var typ string
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Emoji, &typ, &cat.ParentID, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Type = models.CategoryType(typ)
		index[cat.ID] = len(categories)
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	subRows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, name, emoji, type
		FROM subcategories ORDER BY category_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subcategories: %w", err)
	}
	defer func() { _ = subRows.Close() }()

	for subRows.Next() {
		var sub models.Subcategory
		var categoryID, typ string
		if err := subRows.Scan(&sub.ID, &categoryID, &sub.Name, &sub.Emoji, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		sub.Type = models.CategoryType(typ)
		if i, ok := index[categoryID]; ok {
			categories[i].Subcategories = append(categories[i].Subcategories, sub)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subcategories: %w", err)
	}

	return categories, nil
}

// SaveCategories implements Store. The whole tree is replaced in one
// transaction.
func (s *SQLiteStore) SaveCategories(ctx context.Context, categories []models.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin category save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subcategories`); err != nil {
		return fmt.Errorf("failed to clear subcategories: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}
	for i, cat := range categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, name, emoji, type, parent_id, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, cat.ID, cat.Name, cat.Emoji, string(cat.Type), cat.ParentID, i, cat.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to save category %q: %w", cat.Name, err)
		}
		for j, sub := range cat.Subcategories {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO subcategories (id, category_id, name, emoji, type, position)
				VALUES (?, ?, ?, ?, ?, ?)
			`, sub.ID, cat.ID, sub.Name, sub.Emoji, string(sub.Type), j); err != nil {
				return fmt.Errorf("failed to save subcategory %q: %w", sub.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit categories: %w", err)
	}
	return nil
}

// LoadTransactions implements Store.
func (s *SQLiteStore) LoadTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_id, category_id, category_name, merchant, note, date,
		       original_amount, original_currency, amount, primary_currency, exchange_rate,
		       secondary_currency, secondary_amount, secondary_exchange_rate,
		       created_at, updated_at
		FROM transactions
		ORDER BY date DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var secondaryAmount, secondaryRate decimal.NullDecimal
		if err := rows.Scan(
			&tx.ID, &tx.WalletID, &tx.CategoryID, &tx.CategoryName, &tx.Merchant, &tx.Note, &tx.Date,
			&tx.OriginalAmount, &tx.OriginalCurrency, &tx.Amount, &tx.PrimaryCurrency, &tx.ExchangeRate,
			&tx.SecondaryCurrency, &secondaryAmount, &secondaryRate,
			&tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.SecondaryAmount = nullToPtr(secondaryAmount)
		tx.SecondaryExchangeRate = nullToPtr(secondaryRate)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// SaveTransaction implements Store.
func (s *SQLiteStore) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, wallet_id, category_id, category_name, merchant, note, date,
			original_amount, original_currency, amount, primary_currency, exchange_rate,
			secondary_currency, secondary_amount, secondary_exchange_rate,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			wallet_id = excluded.wallet_id,
			category_id = excluded.category_id,
			category_name = excluded.category_name,
			merchant = excluded.merchant,
			note = excluded.note,
			date = excluded.date,
			original_amount = excluded.original_amount,
			original_currency = excluded.original_currency,
			amount = excluded.amount,
			primary_currency = excluded.primary_currency,
			exchange_rate = excluded.exchange_rate,
			secondary_currency = excluded.secondary_currency,
			secondary_amount = excluded.secondary_amount,
			secondary_exchange_rate = excluded.secondary_exchange_rate,
			updated_at = excluded.updated_at
	`, tx.ID, tx.WalletID, tx.CategoryID, tx.CategoryName, tx.Merchant, tx.Note, tx.Date.UTC(),
		tx.OriginalAmount, tx.OriginalCurrency, tx.Amount, tx.PrimaryCurrency, tx.ExchangeRate,
		tx.SecondaryCurrency, ptrToNull(tx.SecondaryAmount), ptrToNull(tx.SecondaryExchangeRate),
		tx.CreatedAt.UTC(), tx.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// DeleteTransaction implements Store.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// LoadBudgets implements Store.
func (s *SQLiteStore) LoadBudgets(ctx context.Context) ([]models.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_id, category_id, category_name, amount, currency, period, apply_to_all_periods
		FROM budgets ORDER BY wallet_id, category_name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []models.Budget
	for rows.Next() {
		var b models.Budget
		var period string
		if err := rows.Scan(
			&b.ID, &b.WalletID, &b.CategoryID, &b.CategoryName,
			&b.Amount, &b.Currency, &period, &b.ApplyToAllPeriods,
		); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		b.Period = models.Period(period)
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

// SaveBudget implements Store.
func (s *SQLiteStore) SaveBudget(ctx context.Context, b models.Budget) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (id, wallet_id, category_id, category_name, amount, currency, period, apply_to_all_periods)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			wallet_id = excluded.wallet_id,
			category_id = excluded.category_id,
			category_name = excluded.category_name,
			amount = excluded.amount,
			currency = excluded.currency,
			period = excluded.period,
			apply_to_all_periods = excluded.apply_to_all_periods
	`, b.ID, b.WalletID, b.CategoryID, b.CategoryName, b.Amount, b.Currency, string(b.Period), b.ApplyToAllPeriods)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// DeleteBudget implements Store.
func (s *SQLiteStore) DeleteBudget(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}
