// Package repository provides database access for domain entities.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/ledger-core/internal/database"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

// CategoryRepository persists the category tree.
type CategoryRepository struct {
	db database.PGXDB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db database.PGXDB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// LoadCategories returns every category in stored order with its
// subcategories attached.
func (r *CategoryRepository) LoadCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, emoji, type, parent_id, created_at
		FROM categories ORDER BY position, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

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

	subRows, err := r.db.Query(ctx, `
		SELECT id, category_id, name, emoji, type
		FROM subcategories ORDER BY category_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subcategories: %w", err)
	}
	defer subRows.Close()

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

// SaveCategories replaces the stored tree with categories in one
// transaction.
func (r *CategoryRepository) SaveCategories(ctx context.Context, categories []models.Category) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin category save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM subcategories`)
	batch.Queue(`DELETE FROM categories`)
	for i, cat := range categories {
		batch.Queue(`
			INSERT INTO categories (id, name, emoji, type, parent_id, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, cat.ID, cat.Name, cat.Emoji, string(cat.Type), cat.ParentID, i, cat.CreatedAt)
	}
	for _, cat := range categories {
		for j, sub := range cat.Subcategories {
			batch.Queue(`
				INSERT INTO subcategories (id, category_id, name, emoji, type, position)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, sub.ID, cat.ID, sub.Name, sub.Emoji, string(sub.Type), j)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save categories: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit categories: %w", err)
	}
	return nil
}
