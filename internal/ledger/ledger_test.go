package ledger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/ledger-core/internal/category"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/models"
	"gitlab.com/yelinaung/ledger-core/internal/notify"
	"gitlab.com/yelinaung/ledger-core/internal/receipt"
)

// fakeConverter quotes every currency against PHP.
type fakeConverter struct {
	primary   string
	secondary string
	perPHP    map[string]decimal.Decimal
	err       error
	calls     int
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{
		primary: "PHP",
		perPHP: map[string]decimal.Decimal{
			"PHP": decimal.NewFromInt(1),
			"USD": decimal.RequireFromString("0.02"),
			"SGD": decimal.RequireFromString("0.025"),
		},
	}
}

func (c *fakeConverter) Primary() string { return c.primary }

func (c *fakeConverter) Secondary() (string, bool) { return c.secondary, c.secondary != "" }

func (c *fakeConverter) ConvertAmount(
	_ context.Context,
	amount decimal.Decimal,
	from, to string,
) (exchange.ConversionResult, error) {
	c.calls++
	if from == to {
		return exchange.ConversionResult{Amount: amount, Rate: decimal.NewFromInt(1)}, nil
	}
	if c.err != nil {
		return exchange.ConversionResult{}, c.err
	}
	fromRate, ok := c.perPHP[from]
	if !ok {
		return exchange.ConversionResult{}, exchange.ErrRateUnavailable
	}
	toRate, ok := c.perPHP[to]
	if !ok {
		return exchange.ConversionResult{}, exchange.ErrRateUnavailable
	}
	rate := toRate.Div(fromRate)
	return exchange.ConversionResult{Amount: amount.Mul(rate).Round(2), Rate: rate}, nil
}

type fakePersister struct {
	saved   map[string]models.Transaction
	deleted []string
	err     error
	// failAt makes only the n-th save fail, counting from 1.
	failAt int
	saves  int
}

func (p *fakePersister) SaveTransaction(_ context.Context, tx models.Transaction) error {
	p.saves++
	if p.err != nil {
		return p.err
	}
	if p.failAt > 0 && p.saves == p.failAt {
		return errors.New("disk full")
	}
	if p.saved == nil {
		p.saved = make(map[string]models.Transaction)
	}
	p.saved[tx.ID] = tx
	return nil
}

func (p *fakePersister) DeleteTransaction(_ context.Context, id string) error {
	if p.err != nil {
		return p.err
	}
	p.deleted = append(p.deleted, id)
	return nil
}

type fixture struct {
	hub     *notify.Hub
	store   *category.Store
	conv    *fakeConverter
	persist *fakePersister
	ledger  *Ledger
	coffee  *models.Category
	salary  *models.Category
	events  *[]notify.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := notify.NewHub()
	store := category.NewStore(nil, nil, hub)

	coffee, err := store.AddCategory(context.Background(), "Coffee", "☕", nil, models.CategoryTypeExpense)
	require.NoError(t, err)
	salary, err := store.AddCategory(context.Background(), "Salary", "💼", nil, models.CategoryTypeIncome)
	require.NoError(t, err)

	conv := newFakeConverter()
	p := &fakePersister{}
	events := &[]notify.Event{}
	hub.Subscribe(func(ev notify.Event) { *events = append(*events, ev) }, notify.TopicTransactions)

	return &fixture{
		hub:     hub,
		store:   store,
		conv:    conv,
		persist: p,
		ledger:  New(nil, store, conv, p, hub),
		coffee:  coffee,
		salary:  salary,
		events:  events,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestLedger_Add(t *testing.T) {
	t.Parallel()

	t.Run("expense in primary currency", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID:         "w1",
			CategoryID:       f.coffee.ID,
			OriginalAmount:   decimal.NewFromInt(500),
			OriginalCurrency: "PHP",
			Date:             day(2026, 10, 1),
		})
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(-500).Equal(tx.Amount), tx.Amount.String())
		require.True(t, decimal.NewFromInt(1).Equal(tx.ExchangeRate))
		require.Equal(t, "PHP", tx.PrimaryCurrency)
		require.Equal(t, "Coffee", tx.CategoryName)
		require.Contains(t, f.persist.saved, tx.ID)
		require.Equal(t, []notify.Event{{Topic: notify.TopicTransactions, Action: "add", ID: tx.ID}}, *f.events)
	})

	t.Run("income keeps positive sign", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID:         "w1",
			CategoryID:       f.salary.ID,
			OriginalAmount:   decimal.NewFromInt(-1000),
			OriginalCurrency: "PHP",
		})
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(1000).Equal(tx.Amount))
		require.True(t, decimal.NewFromInt(-1000).Equal(tx.OriginalAmount), "entered value is kept as-is")
		require.False(t, tx.Date.IsZero())
	})

	t.Run("foreign currency converts into primary", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID:         "w1",
			CategoryID:       f.coffee.ID,
			OriginalAmount:   decimal.NewFromInt(10),
			OriginalCurrency: "usd",
		})
		require.NoError(t, err)
		require.Equal(t, "USD", tx.OriginalCurrency)
		require.True(t, decimal.NewFromInt(-500).Equal(tx.Amount), tx.Amount.String())
		require.True(t, decimal.NewFromInt(50).Equal(tx.ExchangeRate))
	})

	t.Run("empty currency means primary", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID:       "w1",
			CategoryID:     f.coffee.ID,
			OriginalAmount: decimal.NewFromInt(75),
		})
		require.NoError(t, err)
		require.Equal(t, "PHP", tx.OriginalCurrency)
	})

	t.Run("fills secondary currency", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.conv.secondary = "USD"

		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID:         "w1",
			CategoryID:       f.coffee.ID,
			OriginalAmount:   decimal.NewFromInt(500),
			OriginalCurrency: "PHP",
		})
		require.NoError(t, err)
		require.NotNil(t, tx.SecondaryCurrency)
		require.Equal(t, "USD", *tx.SecondaryCurrency)
		require.True(t, decimal.NewFromInt(-10).Equal(*tx.SecondaryAmount))
		require.True(t, decimal.RequireFromString("0.02").Equal(*tx.SecondaryExchangeRate))
	})

	t.Run("subcategory own type decides sign", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		refund, err := f.store.AddSubcategory(context.Background(), "Coffee", "Refunds", "", models.CategoryTypeIncome)
		require.NoError(t, err)

		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID:       "w1",
			CategoryID:     refund.ID,
			OriginalAmount: decimal.NewFromInt(120),
		})
		require.NoError(t, err)
		require.True(t, tx.Amount.IsPositive())
		require.Equal(t, "Refunds", tx.CategoryName)
	})

	t.Run("validation errors", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.ledger.Add(context.Background(), Entry{CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, ErrInvalidEntry)

		_, err = f.ledger.Add(context.Background(), Entry{WalletID: "w1", CategoryID: f.coffee.ID})
		require.ErrorIs(t, err, ErrInvalidAmount)

		_, err = f.ledger.Add(context.Background(), Entry{WalletID: "w1", CategoryID: "ghost", OriginalAmount: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, category.ErrCategoryNotFound)

		_, err = f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(1), OriginalCurrency: "JPY",
		})
		require.ErrorIs(t, err, exchange.ErrRateUnavailable)

		require.Empty(t, f.ledger.List(Filter{}))
		require.Empty(t, *f.events)
	})

	t.Run("rolls back on persistence failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.persist.err = errors.New("db down")

		_, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(1),
		})
		require.ErrorIs(t, err, models.ErrIO)
		require.Empty(t, f.ledger.List(Filter{}))
		require.Empty(t, *f.events)
	})
}

func TestLedger_Edit(t *testing.T) {
	t.Parallel()

	t.Run("primary currency edit yields identity rate", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.salary.ID, OriginalAmount: decimal.NewFromInt(10), OriginalCurrency: "USD",
		})
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(500).Equal(tx.Amount))

		edited, err := f.ledger.Edit(context.Background(), tx.ID, Entry{
			CategoryID: f.salary.ID, OriginalAmount: decimal.RequireFromString("1234.56"), OriginalCurrency: "PHP",
		})
		require.NoError(t, err)
		require.True(t, edited.OriginalAmount.Equal(edited.Amount))
		require.True(t, decimal.NewFromInt(1).Equal(edited.ExchangeRate))
		require.Equal(t, "w1", edited.WalletID)
		require.Equal(t, tx.CreatedAt, edited.CreatedAt)
	})

	t.Run("changing category flips sign", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(300),
		})
		require.NoError(t, err)

		edited, err := f.ledger.Edit(context.Background(), tx.ID, Entry{
			CategoryID: f.salary.ID, OriginalAmount: decimal.NewFromInt(300),
		})
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(300).Equal(edited.Amount))
	})

	t.Run("rate is locked in until the next edit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(10), OriginalCurrency: "USD",
		})
		require.NoError(t, err)

		f.conv.perPHP["USD"] = decimal.RequireFromString("0.01")
		f.conv.primary = "SGD"

		stored, err := f.ledger.Get(tx.ID)
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(-500).Equal(stored.Amount))
		require.Equal(t, "PHP", stored.PrimaryCurrency)

		edited, err := f.ledger.Edit(context.Background(), tx.ID, Entry{
			CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(10), OriginalCurrency: "USD",
		})
		require.NoError(t, err)
		require.Equal(t, "SGD", edited.PrimaryCurrency)
		require.True(t, decimal.RequireFromString("-25").Equal(edited.Amount), edited.Amount.String())
	})

	t.Run("failed persist keeps previous version", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		f.persist.err = errors.New("timeout")

		_, err = f.ledger.Edit(context.Background(), tx.ID, Entry{
			CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(99),
		})
		require.ErrorIs(t, err, models.ErrIO)

		got, err := f.ledger.Get(tx.ID)
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(-10).Equal(got.Amount))
	})

	t.Run("amount only edit keeps the date", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.ledger.now = func() time.Time { return day(2026, 10, 16) }
		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(80), Date: day(2024, 3, 3),
		})
		require.NoError(t, err)

		edited, err := f.ledger.Edit(context.Background(), tx.ID, Entry{
			CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(90),
		})
		require.NoError(t, err)
		require.Equal(t, day(2024, 3, 3), edited.Date)
		require.Equal(t, day(2026, 10, 16), edited.UpdatedAt)

		march := f.ledger.List(Filter{From: day(2024, 3, 1), To: day(2024, 4, 1)})
		require.Len(t, march, 1)
		require.True(t, decimal.NewFromInt(-90).Equal(march[0].Amount))
	})

	t.Run("explicit date replaces the stored one", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(80), Date: day(2024, 3, 3),
		})
		require.NoError(t, err)

		edited, err := f.ledger.Edit(context.Background(), tx.ID, Entry{
			CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(80), Date: day(2024, 5, 1),
		})
		require.NoError(t, err)
		require.Equal(t, day(2024, 5, 1), edited.Date)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.ledger.Edit(context.Background(), "nope", Entry{})
		require.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestLedger_ContainerCategoryRejected(t *testing.T) {
	t.Parallel()

	for _, id := range []string{models.ContainerExpenseID, models.ContainerIncomeID} {
		t.Run(id, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			_, err := f.ledger.Add(context.Background(), Entry{
				WalletID: "w1", CategoryID: id, OriginalAmount: decimal.NewFromInt(5),
			})
			require.ErrorIs(t, err, ErrContainerCategory)
			require.Empty(t, f.ledger.List(Filter{}))
			require.Empty(t, *f.events)
		})
	}

	t.Run("edit onto a container", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tx, err := f.ledger.Add(context.Background(), Entry{
			WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(5),
		})
		require.NoError(t, err)

		_, err = f.ledger.Edit(context.Background(), tx.ID, Entry{
			CategoryID: models.ContainerExpenseID, OriginalAmount: decimal.NewFromInt(5),
		})
		require.ErrorIs(t, err, ErrContainerCategory)

		got, err := f.ledger.Get(tx.ID)
		require.NoError(t, err)
		require.Equal(t, f.coffee.ID, got.CategoryID)
	})
}

func TestLedger_RepairOrphansIsAllOrNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []int64{10, 20, 30} {
		_, err := f.ledger.Add(ctx, Entry{WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(amount)})
		require.NoError(t, err)
	}
	require.NoError(t, f.store.DeleteCategory(ctx, "Coffee"))
	eventsBefore := len(*f.events)

	// Saves 1-3 were the adds; the second repair write fails.
	f.persist.failAt = f.persist.saves + 2

	n, err := f.ledger.RepairOrphans(ctx)
	require.ErrorIs(t, err, models.ErrIO)
	require.Zero(t, n)
	require.Len(t, *f.events, eventsBefore)

	for id, tx := range f.ledger.txs {
		require.Equal(t, f.coffee.ID, tx.CategoryID, "in-memory %s", id)
		require.Equal(t, f.coffee.ID, f.persist.saved[id].CategoryID, "stored %s", id)
	}

	n, err = f.ledger.RepairOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestLedger_Delete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tx, err := f.ledger.Add(context.Background(), Entry{
		WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	f.persist.err = errors.New("locked")
	require.ErrorIs(t, f.ledger.Delete(context.Background(), tx.ID), models.ErrIO)
	_, err = f.ledger.Get(tx.ID)
	require.NoError(t, err)

	f.persist.err = nil
	require.NoError(t, f.ledger.Delete(context.Background(), tx.ID))
	_, err = f.ledger.Get(tx.ID)
	require.ErrorIs(t, err, ErrTransactionNotFound)
	require.Equal(t, []string{tx.ID}, f.persist.deleted)

	require.ErrorIs(t, f.ledger.Delete(context.Background(), tx.ID), ErrTransactionNotFound)
}

func TestLedger_DeletedCategoryFallsBackToSentinel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	expense, err := f.ledger.Add(ctx, Entry{WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(80)})
	require.NoError(t, err)

	// A positive amount under an expense category, as left behind by a
	// cross-type reparent.
	positive := *expense
	positive.ID = "legacy"
	positive.Amount = decimal.NewFromInt(40)
	f.ledger.txs[positive.ID] = positive

	require.NoError(t, f.store.DeleteCategory(ctx, "Coffee"))

	got, err := f.ledger.Get(expense.ID)
	require.NoError(t, err)
	require.Equal(t, models.SentinelExpenseID, got.CategoryID)
	require.Equal(t, models.SentinelExpenseName, got.CategoryName)
	require.True(t, decimal.NewFromInt(-80).Equal(got.Amount))

	got, err = f.ledger.Get("legacy")
	require.NoError(t, err)
	require.Equal(t, models.SentinelIncomeID, got.CategoryID)

	// Stored record is untouched until an explicit repair.
	require.Equal(t, f.coffee.ID, f.ledger.txs[expense.ID].CategoryID)

	listed := f.ledger.List(Filter{CategoryIDs: []string{models.SentinelExpenseID}})
	require.Len(t, listed, 1)
	require.Equal(t, expense.ID, listed[0].ID)

	n, err := f.ledger.RepairOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, models.SentinelExpenseID, f.persist.saved[expense.ID].CategoryID)
	require.Equal(t, models.SentinelIncomeID, f.persist.saved["legacy"].CategoryID)

	n, err = f.ledger.RepairOrphans(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLedger_AddFromReceipt(t *testing.T) {
	t.Parallel()

	t.Run("matches subcategory by name", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		latte, err := f.store.AddSubcategory(context.Background(), "Coffee", "Latte", "", "")
		require.NoError(t, err)

		tx, err := f.ledger.AddFromReceipt(context.Background(), "w1", receipt.Analysis{
			MerchantName: "Bo's Coffee",
			Amount:       decimal.RequireFromString("3.50"),
			Currency:     "USD",
			Date:         day(2026, 10, 2),
			Category:     "latte",
			Items:        []receipt.Item{{Name: "Iced Latte", Quantity: 1}},
			Confidence:   0.9,
		})
		require.NoError(t, err)
		require.Equal(t, latte.ID, tx.CategoryID)
		require.Equal(t, "Bo's Coffee", tx.Merchant)
		require.Equal(t, "Iced Latte", tx.Note)
		require.Equal(t, "USD", tx.OriginalCurrency)
		require.True(t, decimal.RequireFromString("3.50").Equal(tx.OriginalAmount))
		require.True(t, decimal.NewFromInt(-175).Equal(tx.Amount), tx.Amount.String())
		require.Equal(t, day(2026, 10, 2), tx.Date)
	})

	t.Run("foreign currency is booked as given", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		analysis := receipt.Analysis{MerchantName: "Tim Hortons", Amount: decimal.RequireFromString("54.60"), Currency: "CAD"}

		_, err := f.ledger.AddFromReceipt(context.Background(), "w1", analysis)
		require.ErrorIs(t, err, exchange.ErrRateUnavailable)
		require.Empty(t, f.ledger.List(Filter{}))

		f.conv.perPHP["CAD"] = decimal.RequireFromString("0.025")
		tx, err := f.ledger.AddFromReceipt(context.Background(), "w1", analysis)
		require.NoError(t, err)
		require.Equal(t, "CAD", tx.OriginalCurrency)
		require.True(t, decimal.RequireFromString("-2184").Equal(tx.Amount), tx.Amount.String())
	})

	t.Run("container name lands in expense sentinel", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		tx, err := f.ledger.AddFromReceipt(context.Background(), "w1", receipt.Analysis{
			MerchantName: "Shop",
			Amount:       decimal.NewFromInt(20),
			Category:     models.ContainerExpenseName,
		})
		require.NoError(t, err)
		require.Equal(t, models.SentinelExpenseID, tx.CategoryID)
	})

	t.Run("unknown category lands in expense sentinel", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		tx, err := f.ledger.AddFromReceipt(context.Background(), "w1", receipt.Analysis{
			MerchantName: "Shop",
			Amount:       decimal.NewFromInt(20),
			Category:     "Gadgets",
		})
		require.NoError(t, err)
		require.Equal(t, models.SentinelExpenseID, tx.CategoryID)
		require.True(t, decimal.NewFromInt(-20).Equal(tx.Amount))
	})

	t.Run("requires an amount", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.ledger.AddFromReceipt(context.Background(), "w1", receipt.Analysis{MerchantName: "Shop"})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLedger_ListAndTotals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	add := func(wallet, catID string, amount int64, date time.Time) {
		t.Helper()
		_, err := f.ledger.Add(ctx, Entry{WalletID: wallet, CategoryID: catID, OriginalAmount: decimal.NewFromInt(amount), Date: date})
		require.NoError(t, err)
	}

	add("w1", f.coffee.ID, 100, day(2026, 10, 1))
	add("w1", f.coffee.ID, 50, day(2026, 10, 5))
	add("w1", f.salary.ID, 2000, day(2026, 9, 30))
	add("w2", f.coffee.ID, 999, day(2026, 10, 3))

	t.Run("filters by wallet and range, newest first", func(t *testing.T) {
		got := f.ledger.List(Filter{WalletID: "w1", From: day(2026, 10, 1), To: day(2026, 10, 5)})
		require.Len(t, got, 1)
		require.True(t, decimal.NewFromInt(-100).Equal(got[0].Amount))

		all := f.ledger.List(Filter{WalletID: "w1"})
		require.Len(t, all, 3)
		require.Equal(t, day(2026, 10, 5), all[0].Date)
		require.Equal(t, day(2026, 9, 30), all[2].Date)
	})

	t.Run("totals are cached until a change", func(t *testing.T) {
		totals, err := f.ledger.Totals(ctx, "w1")
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(-150).Equal(totals[f.coffee.ID]))
		require.True(t, decimal.NewFromInt(2000).Equal(totals[f.salary.ID]))

		calls := f.conv.calls
		_, err = f.ledger.Totals(ctx, "w1")
		require.NoError(t, err)
		require.Equal(t, calls, f.conv.calls)

		f.hub.Publish(notify.Event{Topic: notify.TopicCurrency, Action: "primary"})
		_, err = f.ledger.Totals(ctx, "w1")
		require.NoError(t, err)
		require.Greater(t, f.conv.calls, calls)
	})

	t.Run("totals follow primary currency", func(t *testing.T) {
		f.conv.primary = "USD"
		f.hub.Publish(notify.Event{Topic: notify.TopicCurrency, Action: "primary"})
		defer func() { f.conv.primary = "PHP" }()

		totals, err := f.ledger.Totals(ctx, "w1")
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(-3).Equal(totals[f.coffee.ID]), totals[f.coffee.ID].String())
	})
}

// Not parallel: swaps the package-global logger.
func TestLedger_NotesAreRedactedInLogs(t *testing.T) {
	var buf bytes.Buffer
	saved := logger.Log
	logger.Log = zerolog.New(&buf)
	t.Cleanup(func() { logger.Log = saved })

	f := newFixture(t)
	tx, err := f.ledger.Add(context.Background(), Entry{
		WalletID: "w1", CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(80), Note: "birthday gift for Ana",
	})
	require.NoError(t, err)
	_, err = f.ledger.Edit(context.Background(), tx.ID, Entry{
		CategoryID: f.coffee.ID, OriginalAmount: decimal.NewFromInt(80), Note: "refund from Ana",
	})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "Transaction added")
	require.Contains(t, out, "Transaction updated")
	require.Contains(t, out, "<redacted: 4 words, 21 chars>")
	require.Contains(t, out, "<redacted: 3 words, 15 chars>")
	require.NotContains(t, out, "Ana")
}
