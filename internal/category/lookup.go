package category

import "gitlab.com/yelinaung/ledger-core/internal/models"

// Key selects a category by name or by identifier.
type Key struct {
	name string
	id   string
}

// ByName looks a category up by case-insensitive name.
func ByName(name string) Key { return Key{name: name} }

// ByID looks a category up by identifier.
func ByID(id string) Key { return Key{id: id} }

// Lookup is the result of a search over both tree levels. Exactly one of
// Category or Subcategory is set on a match. Parent is the owning category
// of a subcategory, or the real (non-container) parent of a child category.
type Lookup struct {
	Category    *models.Category
	Subcategory *models.Subcategory
	Parent      *models.Category
}

// Found reports whether the lookup matched anything.
func (l Lookup) Found() bool {
	return l.Category != nil || l.Subcategory != nil
}

// IsSubcategory reports whether the match is an embedded subcategory.
func (l Lookup) IsSubcategory() bool {
	return l.Subcategory != nil
}

// ID returns the matched identifier.
func (l Lookup) ID() string {
	switch {
	case l.Subcategory != nil:
		return l.Subcategory.ID
	case l.Category != nil:
		return l.Category.ID
	}
	return ""
}

// Name returns the matched name.
func (l Lookup) Name() string {
	switch {
	case l.Subcategory != nil:
		return l.Subcategory.Name
	case l.Category != nil:
		return l.Category.Name
	}
	return ""
}

// Type returns the effective type used for sign derivation. A subcategory's
// own stored type wins over its parent's.
func (l Lookup) Type() models.CategoryType {
	switch {
	case l.Subcategory != nil:
		if l.Subcategory.Type.Valid() {
			return l.Subcategory.Type
		}
		if l.Parent != nil {
			return l.Parent.Type
		}
	case l.Category != nil:
		return l.Category.Type
	}
	return ""
}
