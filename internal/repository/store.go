package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gitlab.com/yelinaung/ledger-core/internal/database"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

// Store is everything the ledger core needs from persistence.
type Store interface {
	LoadCategories(ctx context.Context) ([]models.Category, error)
	SaveCategories(ctx context.Context, categories []models.Category) error
	LoadTransactions(ctx context.Context) ([]models.Transaction, error)
	SaveTransaction(ctx context.Context, tx models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	LoadBudgets(ctx context.Context) ([]models.Budget, error)
	SaveBudget(ctx context.Context, b models.Budget) error
	DeleteBudget(ctx context.Context, id string) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// PostgresStore backs the core with PostgreSQL.
type PostgresStore struct {
	*CategoryRepository
	*TransactionRepository
	*BudgetRepository
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db database.PGXDB) *PostgresStore {
	return &PostgresStore{
		CategoryRepository:    NewCategoryRepository(db),
		TransactionRepository: NewTransactionRepository(db),
		BudgetRepository:      NewBudgetRepository(db),
	}
}

// MemoryStore keeps everything in process memory. FailWith makes every
// write fail, which tests use to exercise rollback.
type MemoryStore struct {
	mu           sync.Mutex
	categories   []models.Category
	transactions map[string]models.Transaction
	budgets      map[string]models.Budget
	failErr      error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]models.Transaction),
		budgets:      make(map[string]models.Budget),
	}
}

// FailWith sets the error returned by subsequent writes; nil clears it.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// LoadCategories implements Store.
func (m *MemoryStore) LoadCategories(context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Category, len(m.categories))
	for i, c := range m.categories {
		out[i] = c.Clone()
	}
	return out, nil
}

// SaveCategories implements Store.
func (m *MemoryStore) SaveCategories(_ context.Context, categories []models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return fmt.Errorf("failed to save categories: %w", m.failErr)
	}
	m.categories = make([]models.Category, len(categories))
	for i, c := range categories {
		m.categories[i] = c.Clone()
	}
	return nil
}

// LoadTransactions implements Store.
func (m *MemoryStore) LoadTransactions(context.Context) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Collect(maps.Values(m.transactions)), nil
}

// SaveTransaction implements Store.
func (m *MemoryStore) SaveTransaction(_ context.Context, tx models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return fmt.Errorf("failed to save transaction: %w", m.failErr)
	}
	m.transactions[tx.ID] = tx
	return nil
}

// DeleteTransaction implements Store.
func (m *MemoryStore) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return fmt.Errorf("failed to delete transaction: %w", m.failErr)
	}
	delete(m.transactions, id)
	return nil
}

// LoadBudgets implements Store.
func (m *MemoryStore) LoadBudgets(context.Context) ([]models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Collect(maps.Values(m.budgets)), nil
}

// SaveBudget implements Store.
func (m *MemoryStore) SaveBudget(_ context.Context, b models.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return fmt.Errorf("failed to save budget: %w", m.failErr)
	}
	m.budgets[b.ID] = b
	return nil
}

// DeleteBudget implements Store.
func (m *MemoryStore) DeleteBudget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return fmt.Errorf("failed to delete budget: %w", m.failErr)
	}
	delete(m.budgets, id)
	return nil
}
