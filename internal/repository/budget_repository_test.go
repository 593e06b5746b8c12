package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/ledger-core/internal/database"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

func TestBudgetRepository(t *testing.T) {
	db := database.TestTx(t)
	ctx := context.Background()
	repo := NewBudgetRepository(db)

	b := models.Budget{
		ID:                "b1",
		WalletID:          "w1",
		CategoryID:        "coffee",
		CategoryName:      "Coffee",
		Amount:            decimal.NewFromInt(5000),
		Currency:          "PHP",
		Period:            models.PeriodMonthly,
		ApplyToAllPeriods: true,
	}
	require.NoError(t, repo.SaveBudget(ctx, b))

	loaded, err := repo.LoadBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, models.PeriodMonthly, loaded[0].Period)
	require.True(t, loaded[0].ApplyToAllPeriods)
	require.True(t, b.Amount.Equal(loaded[0].Amount))

	b.Period = models.PeriodWeekly
	require.NoError(t, repo.SaveBudget(ctx, b))
	loaded, err = repo.LoadBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, models.PeriodWeekly, loaded[0].Period)

	_, err = db.Exec(ctx, `UPDATE budgets SET period = 'hourly' WHERE id = 'b1'`)
	require.Error(t, err, "period check constraint")
}

func TestBudgetRepository_Delete(t *testing.T) {
	db := database.TestTx(t)
	ctx := context.Background()
	repo := NewBudgetRepository(db)

	require.NoError(t, repo.SaveBudget(ctx, models.Budget{
		ID: "b2", WalletID: "w1", CategoryID: "c", Amount: decimal.NewFromInt(1), Currency: "PHP", Period: models.PeriodDaily,
	}))
	require.NoError(t, repo.DeleteBudget(ctx, "b2"))

	loaded, err := repo.LoadBudgets(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)
}
