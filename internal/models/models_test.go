package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCategoryType(t *testing.T) {
	t.Parallel()

	t.Run("sign follows type", func(t *testing.T) {
		t.Parallel()
		require.True(t, CategoryTypeIncome.Sign().Equal(decimal.NewFromInt(1)))
		require.True(t, CategoryTypeExpense.Sign().Equal(decimal.NewFromInt(-1)))
	})

	t.Run("type for amount", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, CategoryTypeExpense, TypeForAmount(decimal.NewFromInt(-1)))
		require.Equal(t, CategoryTypeIncome, TypeForAmount(decimal.Zero))
		require.Equal(t, CategoryTypeIncome, TypeForAmount(decimal.NewFromInt(10)))
	})

	t.Run("validity", func(t *testing.T) {
		t.Parallel()
		require.True(t, CategoryTypeIncome.Valid())
		require.False(t, CategoryType("transfer").Valid())
	})
}

func TestReservedCategories(t *testing.T) {
	t.Parallel()

	cats := ReservedCategories()
	require.Len(t, cats, 4)

	byID := make(map[string]Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	require.Nil(t, byID[ContainerIncomeID].ParentID)
	require.Nil(t, byID[ContainerExpenseID].ParentID)
	sentinelIncome := byID[SentinelIncomeID]
	sentinelExpense := byID[SentinelExpenseID]
	require.True(t, sentinelIncome.HasParent(ContainerIncomeID))
	require.True(t, sentinelExpense.HasParent(ContainerExpenseID))
	require.Equal(t, CategoryTypeExpense, byID[SentinelExpenseID].Type)

	for _, id := range []string{ContainerIncomeID, ContainerExpenseID, SentinelIncomeID, SentinelExpenseID} {
		require.True(t, IsReservedID(id), id)
	}
	require.False(t, IsReservedID("coffee"))
}

func TestCategoryClone(t *testing.T) {
	t.Parallel()

	parent := "p1"
	orig := Category{
		ID:            "c1",
		Name:          "Food",
		ParentID:      &parent,
		Subcategories: []Subcategory{{ID: "s1", Name: "Coffee", Type: CategoryTypeExpense}},
	}

	clone := orig.Clone()
	*clone.ParentID = "p2"
	clone.Subcategories[0].Name = "Tea"

	require.Equal(t, "p1", *orig.ParentID)
	require.Equal(t, "Coffee", orig.Subcategories[0].Name)
}

func TestCategoryIsTopLevel(t *testing.T) {
	t.Parallel()

	container := ContainerExpenseID
	real := "food"

	require.True(t, (&Category{}).IsTopLevel())
	require.True(t, (&Category{ParentID: &container}).IsTopLevel())
	require.False(t, (&Category{ParentID: &real}).IsTopLevel())
}

func TestPeriodValid(t *testing.T) {
	t.Parallel()

	for _, p := range Periods {
		require.True(t, p.Valid(), p)
	}
	require.False(t, Period("fortnightly").Valid())
}

func TestSupportedCurrencies(t *testing.T) {
	t.Parallel()

	require.Equal(t, "₱", SupportedCurrencies["PHP"])
	require.Contains(t, SupportedCurrencies, DefaultCurrency)
}
