// Package budget keeps per-category spending limits and measures ledger
// activity against them on any period basis.
package budget

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/category"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/ledger"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/models"
	"gitlab.com/yelinaung/ledger-core/internal/notify"
)

var (
	// ErrInvalidPeriod is returned for unknown period names.
	ErrInvalidPeriod = errors.New("invalid budget period")
	// ErrPeriodMismatch is returned when a single-period budget is viewed on
	// another period's basis.
	ErrPeriodMismatch = errors.New("budget does not apply to this period")
	// ErrBudgetNotFound is returned for unknown budget IDs.
	ErrBudgetNotFound = errors.New("budget not found")
	// ErrInvalidBudget is returned when a budget fails validation.
	ErrInvalidBudget = errors.New("invalid budget")
)

// Persister stores budgets.
type Persister interface {
	SaveBudget(ctx context.Context, b models.Budget) error
	DeleteBudget(ctx context.Context, id string) error
}

// Categories answers the category questions budgets depend on.
type Categories interface {
	FindCategoryOrSubcategory(key category.Key) category.Lookup
	DescendantIDs(id string) []string
}

// Transactions lists ledger entries.
type Transactions interface {
	List(f ledger.Filter) []models.Transaction
}

// Converter converts money between currencies.
type Converter interface {
	Primary() string
	ConvertAmount(ctx context.Context, amount decimal.Decimal, from, to string) (exchange.ConversionResult, error)
}

// Status compares spending against a budget on one period basis.
type Status struct {
	Budget    models.Budget
	Period    models.Period
	Start     time.Time
	End       time.Time
	Spent     decimal.Decimal
	Limit     decimal.Decimal
	Remaining decimal.Decimal
	// PercentUsed is Spent/Limit*100, rounded to one decimal place.
	PercentUsed decimal.Decimal
}

// OverBudget reports whether spending exceeded the projected limit.
func (s Status) OverBudget() bool {
	return s.Spent.GreaterThan(s.Limit)
}

type spentKey struct {
	walletID   string
	categoryID string
	currency   string
	period     models.Period
	start      int64
}

// Engine owns budgets and derives their spent amounts from the ledger.
type Engine struct {
	categories   Categories
	transactions Transactions
	converter    Converter
	persister    Persister
	hub          *notify.Hub
	newID        func() string

	mu      sync.RWMutex
	budgets map[string]models.Budget
	spent   map[spentKey]decimal.Decimal
	gen     uint64
}

// NewEngine builds an engine over previously loaded budgets. Its spent cache
// is cleared by every hub event.
func NewEngine(
	loaded []models.Budget,
	categories Categories,
	transactions Transactions,
	converter Converter,
	persister Persister,
	hub *notify.Hub,
) *Engine {
	e := &Engine{
		categories:   categories,
		transactions: transactions,
		converter:    converter,
		persister:    persister,
		hub:          hub,
		newID:        uuid.NewString,
		budgets:      make(map[string]models.Budget, len(loaded)),
	}
	for _, b := range loaded {
		e.budgets[b.ID] = b
	}
	if hub != nil {
		hub.Subscribe(func(notify.Event) { e.invalidate() })
	}
	return e
}

// SaveBudget creates or replaces a budget. An empty ID creates a new one and
// an empty currency means the primary currency.
func (e *Engine) SaveBudget(ctx context.Context, b models.Budget) (*models.Budget, error) {
	if b.WalletID == "" {
		return nil, fmt.Errorf("%w: wallet is required", ErrInvalidBudget)
	}
	if !b.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidBudget)
	}
	if !b.Period.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, b.Period)
	}
	lookup := e.categories.FindCategoryOrSubcategory(category.ByID(b.CategoryID))
	if !lookup.Found() {
		return nil, fmt.Errorf("%w: id %s", category.ErrCategoryNotFound, b.CategoryID)
	}
	b.CategoryName = lookup.Name()
	b.Currency = exchange.NormalizeCode(b.Currency)
	if b.Currency == "" {
		b.Currency = e.converter.Primary()
	}
	if b.ID == "" {
		b.ID = e.newID()
	}

	e.mu.Lock()
	old, existed := e.budgets[b.ID]
	e.budgets[b.ID] = b
	if e.persister != nil {
		if err := e.persister.SaveBudget(ctx, b); err != nil {
			if existed {
				e.budgets[b.ID] = old
			} else {
				delete(e.budgets, b.ID)
			}
			e.mu.Unlock()
			logger.Log.Error().Err(err).Str("budget_id", b.ID).Msg("Failed to persist budget; change rolled back")
			return nil, fmt.Errorf("%w: save budget: %w", models.ErrIO, err)
		}
	}
	e.mu.Unlock()

	logger.Log.Info().
		Str("wallet_hash", logger.HashWalletID(b.WalletID)).
		Str("budget_id", b.ID).
		Str("period", string(b.Period)).
		Msg("Budget saved")
	e.publish("save", b.ID)
	return &b, nil
}

// DeleteBudget removes a budget.
func (e *Engine) DeleteBudget(ctx context.Context, id string) error {
	e.mu.Lock()
	old, ok := e.budgets[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBudgetNotFound, id)
	}
	delete(e.budgets, id)
	if e.persister != nil {
		if err := e.persister.DeleteBudget(ctx, id); err != nil {
			e.budgets[id] = old
			e.mu.Unlock()
			return fmt.Errorf("%w: delete budget: %w", models.ErrIO, err)
		}
	}
	e.mu.Unlock()

	e.publish("delete", id)
	return nil
}

// Budget returns the budget with the given id.
func (e *Engine) Budget(id string) (models.Budget, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.budgets[id]
	if !ok {
		return models.Budget{}, fmt.Errorf("%w: %s", ErrBudgetNotFound, id)
	}
	return b, nil
}

// Budgets returns the wallet's budgets ordered by category name. An empty
// walletID returns every budget.
func (e *Engine) Budgets(walletID string) []models.Budget {
	e.mu.RLock()
	out := make([]models.Budget, 0, len(e.budgets))
	for _, b := range e.budgets {
		if walletID == "" || b.WalletID == walletID {
			out = append(out, b)
		}
	}
	e.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Budget) int {
		if c := cmp.Compare(a.CategoryName, b.CategoryName); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// TransactionsForBudget returns the wallet's transactions in [start, end)
// whose resolved category is the budget's category or one of its children.
func (e *Engine) TransactionsForBudget(b models.Budget, start, end time.Time) []models.Transaction {
	return e.transactions.List(ledger.Filter{
		WalletID:    b.WalletID,
		CategoryIDs: e.categories.DescendantIDs(b.CategoryID),
		From:        start,
		To:          end,
	})
}

// SpentAmount sums the budget's transactions over the displayPeriod range
// containing on, converted into the budget currency. Spending on an expense
// budget is reported as a positive number.
func (e *Engine) SpentAmount(
	ctx context.Context,
	b models.Budget,
	displayPeriod models.Period,
	on time.Time,
) (decimal.Decimal, error) {
	start, end, err := PeriodRange(displayPeriod, on)
	if err != nil {
		return decimal.Zero, err
	}

	key := spentKey{
		walletID:   b.WalletID,
		categoryID: b.CategoryID,
		currency:   b.Currency,
		period:     displayPeriod,
		start:      start.UnixNano(),
	}
	e.mu.RLock()
	cached, ok := e.spent[key]
	gen := e.gen
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	total := decimal.Zero
	for _, tx := range e.TransactionsForBudget(b, start, end) {
		res, err := e.converter.ConvertAmount(ctx, tx.Amount, tx.PrimaryCurrency, b.Currency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to convert transaction %s: %w", tx.ID, err)
		}
		total = total.Add(res.Amount)
	}
	if e.budgetType(b) == models.CategoryTypeExpense {
		total = total.Neg()
	}

	e.mu.Lock()
	if e.gen == gen {
		if e.spent == nil {
			e.spent = make(map[spentKey]decimal.Decimal)
		}
		e.spent[key] = total
	}
	e.mu.Unlock()
	return total, nil
}

// Status measures the budget on displayPeriod's basis. The budget amount is
// projected onto displayPeriod first, which is only allowed for budgets that
// apply to all periods.
func (e *Engine) Status(
	ctx context.Context,
	b models.Budget,
	displayPeriod models.Period,
	on time.Time,
) (Status, error) {
	if displayPeriod != b.Period && !b.ApplyToAllPeriods {
		return Status{}, fmt.Errorf("%w: budget is %s, asked for %s", ErrPeriodMismatch, b.Period, displayPeriod)
	}
	limit, err := ConvertAmount(b.Amount, b.Period, displayPeriod)
	if err != nil {
		return Status{}, err
	}
	spent, err := e.SpentAmount(ctx, b, displayPeriod, on)
	if err != nil {
		return Status{}, err
	}
	start, end, err := PeriodRange(displayPeriod, on)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Budget:    b,
		Period:    displayPeriod,
		Start:     start,
		End:       end,
		Spent:     spent,
		Limit:     limit.Round(2),
		Remaining: limit.Sub(spent).Round(2),
	}
	if limit.IsPositive() {
		st.PercentUsed = spent.Div(limit).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return st, nil
}

// budgetType is the type of the budget's category. A budget whose category
// has since been deleted is treated as an expense budget.
func (e *Engine) budgetType(b models.Budget) models.CategoryType {
	lookup := e.categories.FindCategoryOrSubcategory(category.ByID(b.CategoryID))
	if !lookup.Found() {
		return models.CategoryTypeExpense
	}
	return lookup.Type()
}

func (e *Engine) invalidate() {
	e.mu.Lock()
	e.spent = nil
	e.gen++
	e.mu.Unlock()
}

func (e *Engine) publish(action, id string) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(notify.Event{Topic: notify.TopicBudgets, Action: action, ID: id})
}
