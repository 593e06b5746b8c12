// Package app assembles the ledger components over one notification hub and
// one persistence collaborator.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"gitlab.com/yelinaung/ledger-core/internal/budget"
	"gitlab.com/yelinaung/ledger-core/internal/category"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/ledger"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/models"
	"gitlab.com/yelinaung/ledger-core/internal/notify"
	"gitlab.com/yelinaung/ledger-core/internal/receipt"
	"gitlab.com/yelinaung/ledger-core/internal/report"
	"gitlab.com/yelinaung/ledger-core/internal/repository"
)

// ErrNoAnalyzer is returned by AddReceipt when no receipt analyzer is set.
var ErrNoAnalyzer = errors.New("receipt analysis is not configured")

// ReceiptAnalyzer extracts a structured receipt from an image.
type ReceiptAnalyzer interface {
	AnalyzeReceipt(ctx context.Context, image []byte, mimeType string, categories []string) (*receipt.Analysis, error)
}

// Options configures New.
type Options struct {
	PrimaryCurrency   string
	SecondaryCurrency *string
	// RateBase is the currency every rate is quoted against.
	RateBase        string
	RateTTL         time.Duration
	RefreshInterval time.Duration
	Analyzer        ReceiptAnalyzer
}

// App holds the wired components.
type App struct {
	Hub        *notify.Hub
	Rates      *exchange.RateTable
	Converter  *exchange.Converter
	Categories *category.Store
	Ledger     *ledger.Ledger
	Budgets    *budget.Engine
	Refresher  *exchange.Refresher

	analyzer ReceiptAnalyzer
	charts   *cache.Cache
	// chartGen counts hub events so a render started before a change is
	// not cached after it.
	chartGen atomic.Uint64
}

// chartTTL bounds how long a rendered chart is reused.
const chartTTL = 15 * time.Minute

// New loads persisted state from store and builds the components. Rates are
// fetched lazily from source.
func New(ctx context.Context, store repository.Store, source exchange.RateSource, opts Options) (*App, error) {
	categories, err := store.LoadCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	transactions, err := store.LoadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	budgets, err := store.LoadBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load budgets: %w", err)
	}

	primary := opts.PrimaryCurrency
	if primary == "" {
		primary = models.DefaultCurrency
	}

	hub := notify.NewHub()
	rates := exchange.NewRateTable(source, opts.RateTTL)
	conv, err := exchange.NewConverter(rates, opts.RateBase, primary, hub)
	if err != nil {
		return nil, err
	}
	if opts.SecondaryCurrency != nil {
		if err := conv.SetSecondaryCurrency(opts.SecondaryCurrency); err != nil {
			return nil, err
		}
	}

	cats := category.NewStore(categories, store, hub)
	l := ledger.New(transactions, cats, conv, store, hub)
	engine := budget.NewEngine(budgets, cats, l, conv, store, hub)

	logger.Log.Info().
		Int("categories", len(categories)).
		Int("transactions", len(transactions)).
		Int("budgets", len(budgets)).
		Str("primary", conv.Primary()).
		Msg("Ledger state loaded")

	a := &App{
		Hub:        hub,
		Rates:      rates,
		Converter:  conv,
		Categories: cats,
		Ledger:     l,
		Budgets:    engine,
		Refresher:  exchange.NewRefresher(conv, opts.RefreshInterval),
		analyzer:   opts.Analyzer,
		charts:     cache.New(chartTTL, 2*chartTTL),
	}
	hub.Subscribe(func(notify.Event) {
		a.chartGen.Add(1)
		a.charts.Flush()
	})
	return a, nil
}

// CategoryNames returns every selectable category and subcategory name.
// Container rows are left out.
func (a *App) CategoryNames() []string {
	var names []string
	for _, c := range a.Categories.Categories() {
		if models.IsContainerID(c.ID) {
			continue
		}
		names = append(names, c.Name)
		for _, sub := range c.Subcategories {
			names = append(names, sub.Name)
		}
	}
	return names
}

// AddReceipt analyzes a receipt image and records it in walletID.
func (a *App) AddReceipt(ctx context.Context, walletID string, image []byte, mimeType string) (*models.Transaction, error) {
	if a.analyzer == nil {
		return nil, ErrNoAnalyzer
	}
	analysis, err := a.analyzer.AnalyzeReceipt(ctx, image, mimeType, a.CategoryNames())
	if err != nil {
		return nil, fmt.Errorf("failed to analyze receipt: %w", err)
	}
	return a.Ledger.AddFromReceipt(ctx, walletID, *analysis)
}

// SpendingChart renders the wallet's spending per category as a PNG.
// Rendered charts are reused until the next change to any store.
func (a *App) SpendingChart(ctx context.Context, walletID, title string) ([]byte, error) {
	key := walletID + "\x00" + title
	if png, ok := a.charts.Get(key); ok {
		return png.([]byte), nil
	}
	gen := a.chartGen.Load()

	totals, err := a.Ledger.Totals(ctx, walletID)
	if err != nil {
		return nil, err
	}
	data := report.ExpenseSlices(totals, func(id string) string {
		if lookup := a.Categories.FindCategoryOrSubcategory(category.ByID(id)); lookup.Found() {
			return lookup.Name()
		}
		return id
	})
	png, err := report.SpendingChart(data, title)
	if err != nil {
		return nil, err
	}
	if a.chartGen.Load() == gen {
		a.charts.Set(key, png, cache.DefaultExpiration)
	}
	return png, nil
}

// BudgetStatuses measures every budget of walletID on displayPeriod's basis.
// Budgets bound to a different period are skipped.
func (a *App) BudgetStatuses(
	ctx context.Context,
	walletID string,
	displayPeriod models.Period,
	on time.Time,
) ([]budget.Status, error) {
	var out []budget.Status
	for _, b := range a.Budgets.Budgets(walletID) {
		st, err := a.Budgets.Status(ctx, b, displayPeriod, on)
		if errors.Is(err, budget.ErrPeriodMismatch) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
