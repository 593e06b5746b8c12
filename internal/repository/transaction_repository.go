package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/database"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

// TransactionRepository persists ledger transactions.
type TransactionRepository struct {
	db database.PGXDB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db database.PGXDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// LoadTransactions returns every stored transaction, newest first.
func (r *TransactionRepository) LoadTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx, `
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
	defer rows.Close()

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

// SaveTransaction inserts or replaces a transaction.
func (r *TransactionRepository) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (
			id, wallet_id, category_id, category_name, merchant, note, date,
			original_amount, original_currency, amount, primary_currency, exchange_rate,
			secondary_currency, secondary_amount, secondary_exchange_rate,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			wallet_id = EXCLUDED.wallet_id,
			category_id = EXCLUDED.category_id,
			category_name = EXCLUDED.category_name,
			merchant = EXCLUDED.merchant,
			note = EXCLUDED.note,
			date = EXCLUDED.date,
			original_amount = EXCLUDED.original_amount,
			original_currency = EXCLUDED.original_currency,
			amount = EXCLUDED.amount,
			primary_currency = EXCLUDED.primary_currency,
			exchange_rate = EXCLUDED.exchange_rate,
			secondary_currency = EXCLUDED.secondary_currency,
			secondary_amount = EXCLUDED.secondary_amount,
			secondary_exchange_rate = EXCLUDED.secondary_exchange_rate,
			updated_at = EXCLUDED.updated_at
	`, tx.ID, tx.WalletID, tx.CategoryID, tx.CategoryName, tx.Merchant, tx.Note, tx.Date,
		tx.OriginalAmount, tx.OriginalCurrency, tx.Amount, tx.PrimaryCurrency, tx.ExchangeRate,
		tx.SecondaryCurrency, ptrToNull(tx.SecondaryAmount), ptrToNull(tx.SecondaryExchangeRate),
		tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a transaction by ID.
func (r *TransactionRepository) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func nullToPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func ptrToNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
