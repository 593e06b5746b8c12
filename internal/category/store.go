// Package category maintains the two-level income/expense category taxonomy.
package category

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/models"
	"gitlab.com/yelinaung/ledger-core/internal/notify"
)

// Persister saves the whole category list.
type Persister interface {
	SaveCategories(ctx context.Context, categories []models.Category) error
}

// Store holds the taxonomy in memory. Every successful mutation is persisted
// and then broadcast on notify.TopicCategories before the method returns.
type Store struct {
	persister Persister
	hub       *notify.Hub
	now       func() time.Time
	newID     func() string

	mu         sync.RWMutex
	categories []models.Category
}

// NewStore builds a store from previously loaded categories. Missing
// container and sentinel rows are added.
func NewStore(loaded []models.Category, persister Persister, hub *notify.Hub) *Store {
	s := &Store{
		persister: persister,
		hub:       hub,
		now:       time.Now,
		newID:     uuid.NewString,
	}

	for _, c := range loaded {
		s.categories = append(s.categories, c.Clone())
	}
	for _, reserved := range models.ReservedCategories() {
		if s.indexByID(reserved.ID) < 0 {
			s.categories = append(s.categories, reserved)
		}
	}
	return s
}

// AddCategory creates a category. Without a parent it is attached to the
// container of targetType; with a parent it inherits the parent's type.
func (s *Store) AddCategory(
	ctx context.Context,
	name, emoji string,
	parent *models.Category,
	targetType models.CategoryType,
) (*models.Category, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var created models.Category
	err = s.commit(ctx, "add", func() (string, error) {
		parentID, typ, err := s.resolveNewParent(parent, targetType)
		if err != nil {
			return "", err
		}
		if s.nameTaken(name, "") {
			return "", fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}

		created = models.Category{
			ID:        s.newID(),
			Name:      name,
			Emoji:     emoji,
			Type:      typ,
			ParentID:  &parentID,
			CreatedAt: s.now().UTC(),
		}
		s.categories = append(s.categories, created)
		return created.ID, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Debug().Str("category_id", created.ID).Str("type", string(created.Type)).Msg("Category added")
	out := created.Clone()
	return &out, nil
}

// UpdateCategory renames and re-emojis the category called originalName.
// A non-nil parent different from the current one reparents it; that is
// refused while the category still has children. Reparenting keeps the
// category's own type, so cross-type moves are allowed.
func (s *Store) UpdateCategory(
	ctx context.Context,
	originalName, newName, newEmoji string,
	parent *models.Category,
) (*models.Category, error) {
	newName, err := normalizeName(newName)
	if err != nil {
		return nil, err
	}

	var updated models.Category
	err = s.commit(ctx, "update", func() (string, error) {
		idx := s.indexByName(originalName)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q", ErrCategoryNotFound, originalName)
		}
		cat := &s.categories[idx]
		if models.IsReservedID(cat.ID) {
			return "", fmt.Errorf("%w: %q", ErrReservedCategory, cat.Name)
		}
		if s.nameTaken(newName, cat.ID) {
			return "", fmt.Errorf("%w: %q", ErrDuplicateName, newName)
		}

		if parent != nil {
			target, err := s.reparentTarget(cat, parent)
			if err != nil {
				return "", err
			}
			if cat.ParentID == nil || *cat.ParentID != target {
				if children := s.childNames(cat.ID); len(children) > 0 {
					return "", &HasChildrenError{Category: cat.Name, Children: children}
				}
				cat.ParentID = &target
			}
		}

		cat.Name = newName
		cat.Emoji = newEmoji
		updated = cat.Clone()
		return cat.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCategory removes a childless category. Transactions that referenced
// it fall back to the sentinel of their sign when read.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	return s.commit(ctx, "delete", func() (string, error) {
		idx := s.indexByName(name)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q", ErrCategoryNotFound, name)
		}
		cat := s.categories[idx]
		if models.IsReservedID(cat.ID) {
			return "", fmt.Errorf("%w: %q", ErrReservedCategory, cat.Name)
		}
		if children := s.childNames(cat.ID); len(children) > 0 {
			return "", &HasChildrenError{Category: cat.Name, Children: children}
		}
		s.categories = slices.Delete(s.categories, idx, idx+1)
		return cat.ID, nil
	})
}

// AddSubcategory appends an embedded subcategory to a top-level category.
// An empty typ inherits the parent's type.
func (s *Store) AddSubcategory(
	ctx context.Context,
	parentName, name, emoji string,
	typ models.CategoryType,
) (*models.Subcategory, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if typ != "" && !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	var created models.Subcategory
	err = s.commit(ctx, "add_subcategory", func() (string, error) {
		idx := s.indexByName(parentName)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q", ErrCategoryNotFound, parentName)
		}
		parent := &s.categories[idx]
		if models.IsReservedID(parent.ID) {
			return "", fmt.Errorf("%w: %q", ErrReservedCategory, parent.Name)
		}
		if !parent.IsTopLevel() {
			return "", fmt.Errorf("%w: %q is already a child category", ErrInvalidParent, parent.Name)
		}
		if s.nameTaken(name, "") {
			return "", fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		if typ == "" {
			typ = parent.Type
		}

		created = models.Subcategory{ID: s.newID(), Name: name, Emoji: emoji, Type: typ}
		parent.Subcategories = append(parent.Subcategories, created)
		return created.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteSubcategory removes an embedded subcategory from its parent.
func (s *Store) DeleteSubcategory(ctx context.Context, parentName, name string) error {
	return s.commit(ctx, "delete_subcategory", func() (string, error) {
		idx := s.indexByName(parentName)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q", ErrCategoryNotFound, parentName)
		}
		parent := &s.categories[idx]
		sub := slices.IndexFunc(parent.Subcategories, func(sc models.Subcategory) bool {
			return sameName(sc.Name, name)
		})
		if sub < 0 {
			return "", fmt.Errorf("%w: %q in %q", ErrCategoryNotFound, name, parent.Name)
		}
		id := parent.Subcategories[sub].ID
		parent.Subcategories = slices.Delete(parent.Subcategories, sub, sub+1)
		return id, nil
	})
}

// FindCategory returns a copy of the top-level or child category matching
// key. Subcategories are not searched.
func (s *Store) FindCategory(key Key) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, key)
	}
	out := s.categories[idx].Clone()
	return &out, nil
}

// FindCategoryOrSubcategory searches both tree levels.
func (s *Store) FindCategoryOrSubcategory(key Key) Lookup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(key)
}

// Categories returns a copy of every category, reserved rows included.
func (s *Store) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Children returns the names of everything that blocks reparenting or
// deleting the category with the given id.
func (s *Store) Children(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childNames(id)
}

// DescendantIDs returns id plus the ids of its subcategories and child
// categories.
func (s *Store) DescendantIDs(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{id}
	for _, c := range s.categories {
		if c.ID == id {
			for _, sc := range c.Subcategories {
				ids = append(ids, sc.ID)
			}
		}
		if c.HasParent(id) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Sentinel returns the permanent fallback category for t.
func (s *Store) Sentinel(t models.CategoryType) models.Category {
	c, err := s.FindCategory(ByID(models.SentinelID(t)))
	if err != nil {
		return models.ReservedCategories()[sentinelIndex(t)]
	}
	return *c
}

// Container returns the synthetic top-level anchor for t.
func (s *Store) Container(t models.CategoryType) models.Category {
	c, err := s.FindCategory(ByID(models.ContainerID(t)))
	if err != nil {
		return models.ReservedCategories()[containerIndex(t)]
	}
	return *c
}

// Resolve returns the lookup for id, falling back to the sentinel matching
// fallback when id no longer exists.
func (s *Store) Resolve(id string, fallback models.CategoryType) (Lookup, bool) {
	s.mu.RLock()
	l := s.lookupLocked(ByID(id))
	s.mu.RUnlock()
	if l.Found() {
		return l, true
	}

	sentinel := s.Sentinel(fallback)
	return Lookup{Category: &sentinel}, false
}

func (s *Store) commit(ctx context.Context, action string, apply func() (string, error)) error {
	s.mu.Lock()
	before := s.snapshotLocked()

	id, err := apply()
	if err != nil {
		s.categories = before
		s.mu.Unlock()
		return err
	}

	if s.persister != nil {
		if err := s.persister.SaveCategories(ctx, s.snapshotLocked()); err != nil {
			s.categories = before
			s.mu.Unlock()
			logger.Log.Error().Err(err).Str("action", action).Msg("Failed to persist categories; change rolled back")
			return fmt.Errorf("%w: save categories: %w", models.ErrIO, err)
		}
	}
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(notify.Event{Topic: notify.TopicCategories, Action: action, ID: id})
	}
	return nil
}

func (s *Store) resolveNewParent(
	parent *models.Category,
	targetType models.CategoryType,
) (string, models.CategoryType, error) {
	if parent == nil {
		if !targetType.Valid() {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidType, targetType)
		}
		return models.ContainerID(targetType), targetType, nil
	}

	idx := s.indexByID(parent.ID)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: parent %q", ErrCategoryNotFound, parent.Name)
	}
	p := s.categories[idx]
	if models.IsContainerID(p.ID) {
		return p.ID, p.Type, nil
	}
	if models.IsSentinelID(p.ID) || !p.IsTopLevel() {
		return "", "", fmt.Errorf("%w: %q cannot own categories", ErrInvalidParent, p.Name)
	}
	return p.ID, p.Type, nil
}

func (s *Store) reparentTarget(cat *models.Category, parent *models.Category) (string, error) {
	idx := s.indexByID(parent.ID)
	if idx < 0 {
		return "", fmt.Errorf("%w: parent %q", ErrCategoryNotFound, parent.Name)
	}
	p := s.categories[idx]
	if p.ID == cat.ID {
		return "", fmt.Errorf("%w: %q cannot be its own parent", ErrInvalidParent, cat.Name)
	}
	if models.IsContainerID(p.ID) {
		return p.ID, nil
	}
	if models.IsSentinelID(p.ID) || !p.IsTopLevel() {
		return "", fmt.Errorf("%w: %q cannot own categories", ErrInvalidParent, p.Name)
	}
	return p.ID, nil
}

func (s *Store) lookupLocked(key Key) Lookup {
	if idx := s.indexOf(key); idx >= 0 {
		cat := s.categories[idx].Clone()
		l := Lookup{Category: &cat}
		if cat.ParentID != nil && !models.IsContainerID(*cat.ParentID) {
			if p := s.indexByID(*cat.ParentID); p >= 0 {
				parent := s.categories[p].Clone()
				l.Parent = &parent
			}
		}
		return l
	}

	for _, c := range s.categories {
		for _, sc := range c.Subcategories {
			if (key.id != "" && sc.ID == key.id) || (key.id == "" && sameName(sc.Name, key.name)) {
				sub := sc
				parent := c.Clone()
				return Lookup{Subcategory: &sub, Parent: &parent}
			}
		}
	}
	return Lookup{}
}

// nameTaken checks every category and subcategory name, skipping the
// category with id exclude.
func (s *Store) nameTaken(name, exclude string) bool {
	for _, c := range s.categories {
		if c.ID != exclude && sameName(c.Name, name) {
			return true
		}
		for _, sc := range c.Subcategories {
			if sameName(sc.Name, name) {
				return true
			}
		}
	}
	return false
}

func (s *Store) childNames(id string) []string {
	var names []string
	for _, c := range s.categories {
		if c.ID == id {
			for _, sc := range c.Subcategories {
				names = append(names, sc.Name)
			}
		}
	}
	for _, c := range s.categories {
		if c.HasParent(id) {
			names = append(names, c.Name)
		}
	}
	return names
}

func (s *Store) indexOf(key Key) int {
	if key.id != "" {
		return s.indexByID(key.id)
	}
	return s.indexByName(key.name)
}

func (s *Store) indexByID(id string) int {
	return slices.IndexFunc(s.categories, func(c models.Category) bool { return c.ID == id })
}

func (s *Store) indexByName(name string) int {
	return slices.IndexFunc(s.categories, func(c models.Category) bool { return sameName(c.Name, name) })
}

func (s *Store) snapshotLocked() []models.Category {
	out := make([]models.Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = c.Clone()
	}
	return out
}

func (k Key) String() string {
	if k.id != "" {
		return "id " + k.id
	}
	return fmt.Sprintf("name %q", k.name)
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > models.MaxCategoryNameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, models.MaxCategoryNameLength)
	}
	return name, nil
}

func sentinelIndex(t models.CategoryType) int {
	if t == models.CategoryTypeIncome {
		return 2
	}
	return 3
}

func containerIndex(t models.CategoryType) int {
	if t == models.CategoryTypeIncome {
		return 0
	}
	return 1
}
