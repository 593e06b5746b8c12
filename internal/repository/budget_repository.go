package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/ledger-core/internal/database"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

// BudgetRepository persists budgets.
type BudgetRepository struct {
	db database.PGXDB
}

// NewBudgetRepository creates a new BudgetRepository.
func NewBudgetRepository(db database.PGXDB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// LoadBudgets returns every stored budget.
func (r *BudgetRepository) LoadBudgets(ctx context.Context) ([]models.Budget, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, wallet_id, category_id, category_name, amount, currency, period, apply_to_all_periods
		FROM budgets ORDER BY wallet_id, category_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

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

// SaveBudget inserts or replaces a budget.
func (r *BudgetRepository) SaveBudget(ctx context.Context, b models.Budget) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO budgets (id, wallet_id, category_id, category_name, amount, currency, period, apply_to_all_periods)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			wallet_id = EXCLUDED.wallet_id,
			category_id = EXCLUDED.category_id,
			category_name = EXCLUDED.category_name,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			period = EXCLUDED.period,
			apply_to_all_periods = EXCLUDED.apply_to_all_periods
	`, b.ID, b.WalletID, b.CategoryID, b.CategoryName, b.Amount, b.Currency, string(b.Period), b.ApplyToAllPeriods)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// DeleteBudget removes a budget by ID.
func (r *BudgetRepository) DeleteBudget(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}
