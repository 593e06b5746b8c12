package category

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateName is returned when a name collides, case-insensitively,
	// with any category or subcategory in the taxonomy.
	ErrDuplicateName = errors.New("category name already exists")
	// ErrHasChildren is returned when reparenting or deleting a category that
	// still owns subcategories or child categories.
	ErrHasChildren = errors.New("category has children")
	// ErrCategoryNotFound is returned for unknown names or identifiers.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrReservedCategory is returned when editing a container or sentinel.
	ErrReservedCategory = errors.New("category is reserved")
	// ErrInvalidParent is returned when a parent would make the tree deeper
	// than two levels.
	ErrInvalidParent = errors.New("invalid parent category")
	// ErrInvalidName is returned for empty or over-long names.
	ErrInvalidName = errors.New("invalid category name")
	// ErrInvalidType is returned for an unknown income/expense type.
	ErrInvalidType = errors.New("invalid category type")
)

// HasChildrenError names the children that block a reparent or delete.
type HasChildrenError struct {
	Category string
	Children []string
}

func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("category %q has children: %s", e.Category, strings.Join(e.Children, ", "))
}

func (e *HasChildrenError) Unwrap() error {
	return ErrHasChildren
}
