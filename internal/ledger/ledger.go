// Package ledger holds transactions and derives each one's signed,
// primary-currency amount from what the user actually entered.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/category"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/models"
	"gitlab.com/yelinaung/ledger-core/internal/notify"
	"gitlab.com/yelinaung/ledger-core/internal/receipt"
)

var (
	// ErrTransactionNotFound is returned for unknown transaction IDs.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidAmount is returned when the entered amount is zero.
	ErrInvalidAmount = errors.New("amount must be non-zero")
	// ErrInvalidEntry is returned when required entry fields are missing.
	ErrInvalidEntry = errors.New("invalid transaction entry")
	// ErrContainerCategory is returned when an entry names a container
	// category. Containers only anchor the tree.
	ErrContainerCategory = errors.New("container categories cannot hold transactions")
)

// Persister stores individual transactions.
type Persister interface {
	SaveTransaction(ctx context.Context, tx models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// Categories resolves category references.
type Categories interface {
	FindCategoryOrSubcategory(key category.Key) category.Lookup
	Resolve(id string, fallback models.CategoryType) (category.Lookup, bool)
}

// Converter converts amounts and reports the display currencies.
type Converter interface {
	Primary() string
	Secondary() (string, bool)
	ConvertAmount(ctx context.Context, amount decimal.Decimal, from, to string) (exchange.ConversionResult, error)
}

// Entry is the user-editable part of a transaction.
type Entry struct {
	WalletID         string
	CategoryID       string
	Merchant         string
	Note             string
	Date             time.Time
	OriginalAmount   decimal.Decimal
	OriginalCurrency string
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	WalletID    string
	CategoryIDs []string
	From        time.Time
	To          time.Time
}

// Ledger is the in-memory transaction store.
type Ledger struct {
	categories Categories
	converter  Converter
	persister  Persister
	hub        *notify.Hub
	now        func() time.Time
	newID      func() string

	mu     sync.RWMutex
	txs    map[string]models.Transaction
	totals map[string]map[string]decimal.Decimal
	// gen counts invalidations so a slow Totals cannot store a stale result.
	gen uint64
}

// New builds a ledger over previously loaded transactions and subscribes it
// to category and currency changes.
func New(
	loaded []models.Transaction,
	categories Categories,
	converter Converter,
	persister Persister,
	hub *notify.Hub,
) *Ledger {
	l := &Ledger{
		categories: categories,
		converter:  converter,
		persister:  persister,
		hub:        hub,
		now:        time.Now,
		newID:      uuid.NewString,
		txs:        make(map[string]models.Transaction, len(loaded)),
	}
	for _, tx := range loaded {
		l.txs[tx.ID] = tx
	}
	if hub != nil {
		hub.Subscribe(func(notify.Event) { l.invalidate() }, notify.TopicCategories, notify.TopicCurrency)
	}
	return l
}

// Add records a new transaction.
func (l *Ledger) Add(ctx context.Context, e Entry) (*models.Transaction, error) {
	now := l.now().UTC()
	tx := models.Transaction{ID: l.newID(), CreatedAt: now}
	if err := l.derive(ctx, &tx, e, now); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.txs[tx.ID] = tx
	if err := l.save(ctx, tx); err != nil {
		delete(l.txs, tx.ID)
		l.mu.Unlock()
		return nil, err
	}
	l.invalidateLocked()
	l.mu.Unlock()

	logger.Log.Info().
		Str("wallet_hash", logger.HashWalletID(tx.WalletID)).
		Str("transaction_id", tx.ID).
		Str("currency", tx.OriginalCurrency).
		Str("note", logger.SanitizeDescription(tx.Note)).
		Msg("Transaction added")
	l.publish("add", tx.ID)
	return &tx, nil
}

// Edit replaces the editable fields of a transaction and re-derives its
// amount at the current rate and primary currency. An empty wallet or a zero
// date keeps the stored value.
func (l *Ledger) Edit(ctx context.Context, id string, e Entry) (*models.Transaction, error) {
	l.mu.RLock()
	old, ok := l.txs[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}

	tx := old
	if e.WalletID == "" {
		e.WalletID = old.WalletID
	}
	if e.Date.IsZero() {
		e.Date = old.Date
	}
	if err := l.derive(ctx, &tx, e, l.now().UTC()); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.txs[id] = tx
	if err := l.save(ctx, tx); err != nil {
		l.txs[id] = old
		l.mu.Unlock()
		return nil, err
	}
	l.invalidateLocked()
	l.mu.Unlock()

	logger.Log.Info().
		Str("wallet_hash", logger.HashWalletID(tx.WalletID)).
		Str("transaction_id", id).
		Str("note", logger.SanitizeDescription(tx.Note)).
		Msg("Transaction updated")
	l.publish("update", id)
	return &tx, nil
}

// Delete removes a transaction.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	old, ok := l.txs[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	delete(l.txs, id)
	if l.persister != nil {
		if err := l.persister.DeleteTransaction(ctx, id); err != nil {
			l.txs[id] = old
			l.mu.Unlock()
			return fmt.Errorf("%w: delete transaction: %w", models.ErrIO, err)
		}
	}
	l.invalidateLocked()
	l.mu.Unlock()

	l.publish("delete", id)
	return nil
}

// AddFromReceipt records a transaction from a receipt analysis. The
// suggested category is matched by name across both tree levels; an unknown
// suggestion lands in the expense sentinel.
func (l *Ledger) AddFromReceipt(ctx context.Context, walletID string, a receipt.Analysis) (*models.Transaction, error) {
	if !a.HasAmount() {
		return nil, ErrInvalidAmount
	}

	categoryID := models.SentinelExpenseID
	if a.Category != "" {
		match := l.categories.FindCategoryOrSubcategory(category.ByName(a.Category))
		if match.Found() && !models.IsContainerID(match.ID()) {
			categoryID = match.ID()
		} else {
			logger.Log.Debug().
				Str("suggested", logger.SanitizeText(a.Category)).
				Msg("Receipt category not found; using sentinel")
		}
	}

	return l.Add(ctx, Entry{
		WalletID:         walletID,
		CategoryID:       categoryID,
		Merchant:         a.MerchantName,
		Note:             a.ItemSummary(),
		Date:             a.Date,
		OriginalAmount:   a.Amount,
		OriginalCurrency: a.Currency,
	})
}

// Get returns the transaction with its category resolved for display.
func (l *Ledger) Get(id string) (models.Transaction, error) {
	l.mu.RLock()
	tx, ok := l.txs[id]
	l.mu.RUnlock()
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return l.resolved(tx), nil
}

// List returns resolved transactions matching f, newest first. Category
// filters match the resolved category, so transactions of a deleted
// category are found under the sentinel.
func (l *Ledger) List(f Filter) []models.Transaction {
	l.mu.RLock()
	all := make([]models.Transaction, 0, len(l.txs))
	for _, tx := range l.txs {
		all = append(all, tx)
	}
	l.mu.RUnlock()

	var out []models.Transaction
	for _, tx := range all {
		if f.WalletID != "" && tx.WalletID != f.WalletID {
			continue
		}
		if !f.From.IsZero() && tx.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !tx.Date.Before(f.To) {
			continue
		}
		tx = l.resolved(tx)
		if len(f.CategoryIDs) > 0 && !slices.Contains(f.CategoryIDs, tx.CategoryID) {
			continue
		}
		out = append(out, tx)
	}

	slices.SortFunc(out, func(a, b models.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return out
}

// Totals sums the wallet's transactions per resolved category in the
// current primary currency. Results are cached until the next change.
func (l *Ledger) Totals(ctx context.Context, walletID string) (map[string]decimal.Decimal, error) {
	l.mu.RLock()
	cached, ok := l.totals[walletID]
	gen := l.gen
	l.mu.RUnlock()
	if ok {
		return maps.Clone(cached), nil
	}

	primary := l.converter.Primary()
	totals := make(map[string]decimal.Decimal)
	for _, tx := range l.List(Filter{WalletID: walletID}) {
		res, err := l.converter.ConvertAmount(ctx, tx.Amount, tx.PrimaryCurrency, primary)
		if err != nil {
			return nil, fmt.Errorf("failed to convert transaction %s: %w", tx.ID, err)
		}
		totals[tx.CategoryID] = totals[tx.CategoryID].Add(res.Amount)
	}

	l.mu.Lock()
	if l.gen == gen {
		if l.totals == nil {
			l.totals = make(map[string]map[string]decimal.Decimal)
		}
		l.totals[walletID] = totals
	}
	l.mu.Unlock()
	return maps.Clone(totals), nil
}

// RepairOrphans rewrites transactions whose category no longer exists to
// the sentinel matching their sign and persists them. It returns how many
// transactions were repaired. The batch is all or nothing: if any save
// fails, the records already written are saved back in their previous form
// and nothing is reported as repaired.
func (l *Ledger) RepairOrphans(ctx context.Context) (int, error) {
	l.mu.Lock()
	ids := slices.Sorted(maps.Keys(l.txs))
	var originals []models.Transaction
	for _, id := range ids {
		tx := l.txs[id]
		lookup, ok := l.categories.Resolve(tx.CategoryID, models.TypeForAmount(tx.Amount))
		if ok {
			continue
		}
		fixed := tx
		fixed.CategoryID = lookup.ID()
		fixed.CategoryName = lookup.Name()
		fixed.UpdatedAt = l.now().UTC()

		if err := l.save(ctx, fixed); err != nil {
			l.restore(ctx, originals)
			l.mu.Unlock()
			return 0, err
		}
		l.txs[id] = fixed
		originals = append(originals, tx)
	}
	l.invalidateLocked()
	l.mu.Unlock()

	repaired := len(originals)
	if repaired > 0 {
		logger.Log.Info().Int("count", repaired).Msg("Reassigned orphaned transactions to sentinel categories")
		l.publish("repair", "")
	}
	return repaired, nil
}

// restore puts originals back in memory and in storage. A record that
// cannot be written back stays repaired in storage; it still resolves to
// the same sentinel on read.
func (l *Ledger) restore(ctx context.Context, originals []models.Transaction) {
	for _, tx := range originals {
		l.txs[tx.ID] = tx
		if err := l.save(ctx, tx); err != nil {
			logger.Log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Failed to restore transaction after aborted repair")
		}
	}
}

func (l *Ledger) derive(ctx context.Context, tx *models.Transaction, e Entry, now time.Time) error {
	if e.WalletID == "" {
		return fmt.Errorf("%w: wallet is required", ErrInvalidEntry)
	}
	if e.OriginalAmount.IsZero() {
		return ErrInvalidAmount
	}

	lookup := l.categories.FindCategoryOrSubcategory(category.ByID(e.CategoryID))
	if !lookup.Found() {
		return fmt.Errorf("%w: id %s", category.ErrCategoryNotFound, e.CategoryID)
	}
	if models.IsContainerID(lookup.ID()) {
		return fmt.Errorf("%w: %s", ErrContainerCategory, lookup.Name())
	}

	primary := l.converter.Primary()
	currency := exchange.NormalizeCode(e.OriginalCurrency)
	if currency == "" {
		currency = primary
	}

	magnitude := e.OriginalAmount.Abs()
	sign := lookup.Type().Sign()

	converted, err := l.converter.ConvertAmount(ctx, magnitude, currency, primary)
	if err != nil {
		return fmt.Errorf("failed to convert %s to %s: %w", currency, primary, err)
	}

	tx.WalletID = e.WalletID
	tx.CategoryID = lookup.ID()
	tx.CategoryName = lookup.Name()
	tx.Merchant = e.Merchant
	tx.Note = e.Note
	tx.Date = e.Date
	if tx.Date.IsZero() {
		tx.Date = now
	}
	tx.UpdatedAt = now
	tx.OriginalAmount = e.OriginalAmount
	tx.OriginalCurrency = currency
	tx.PrimaryCurrency = primary
	tx.Amount = converted.Amount.Mul(sign)
	tx.ExchangeRate = converted.Rate

	tx.SecondaryCurrency, tx.SecondaryAmount, tx.SecondaryExchangeRate = nil, nil, nil
	if secondary, ok := l.converter.Secondary(); ok {
		res, err := l.converter.ConvertAmount(ctx, magnitude, currency, secondary)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("source_currency", currency).
				Str("target_currency", secondary).
				Msg("Secondary conversion unavailable; leaving it empty")
			return nil
		}
		amount := res.Amount.Mul(sign)
		rate := res.Rate
		tx.SecondaryCurrency = &secondary
		tx.SecondaryAmount = &amount
		tx.SecondaryExchangeRate = &rate
	}
	return nil
}

// resolved swaps a dangling category reference for the sentinel matching
// the transaction's sign. Stored amounts are left alone.
func (l *Ledger) resolved(tx models.Transaction) models.Transaction {
	lookup, _ := l.categories.Resolve(tx.CategoryID, models.TypeForAmount(tx.Amount))
	tx.CategoryID = lookup.ID()
	tx.CategoryName = lookup.Name()
	return tx
}

// save must be called with l.mu held.
func (l *Ledger) save(ctx context.Context, tx models.Transaction) error {
	if l.persister == nil {
		return nil
	}
	if err := l.persister.SaveTransaction(ctx, tx); err != nil {
		logger.Log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Failed to persist transaction; change rolled back")
		return fmt.Errorf("%w: save transaction: %w", models.ErrIO, err)
	}
	return nil
}

func (l *Ledger) invalidate() {
	l.mu.Lock()
	l.invalidateLocked()
	l.mu.Unlock()
}

func (l *Ledger) invalidateLocked() {
	l.totals = nil
	l.gen++
}

func (l *Ledger) publish(action, id string) {
	if l.hub == nil {
		return
	}
	l.hub.Publish(notify.Event{Topic: notify.TopicTransactions, Action: action, ID: id})
}
