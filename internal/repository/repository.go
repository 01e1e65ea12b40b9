package repository

import (
	"context"
	"errors"
	"fmt"

	"instruments/scraper/internal/domain"
)

var (
	ErrNotFound = errors.New("referenced entity not found")
	ErrConflict = errors.New("entity conflicts with stored data")
	ErrStorage  = errors.New("storage operation failed")
)

// CatalogRepository stages catalog entities and persists everything staged in one transaction.
// The Add methods never touch storage. Commit assigns IDs to the staged entities when the
// transaction succeeds and always clears the staged set, so a failed batch is never retried.
type CatalogRepository interface {
	AddCategories(categories []*domain.Category)
	AddSubcategories(subcategories []*domain.Subcategory)
	AddItems(items []*domain.Item)
	Commit(ctx context.Context) error

	EnsureSchema(ctx context.Context) error
	LoadCategories(ctx context.Context) ([]*domain.Category, error)
	Close() error
}

type stagedCatalog struct {
	categories    []*domain.Category
	subcategories []*domain.Subcategory
	items         []*domain.Item
}

func (s *stagedCatalog) AddCategories(categories []*domain.Category) {
	s.categories = append(s.categories, categories...)
}

func (s *stagedCatalog) AddSubcategories(subcategories []*domain.Subcategory) {
	s.subcategories = append(s.subcategories, subcategories...)
}

func (s *stagedCatalog) AddItems(items []*domain.Item) {
	s.items = append(s.items, items...)
}

func (s *stagedCatalog) empty() bool {
	return len(s.categories) == 0 && len(s.subcategories) == 0 && len(s.items) == 0
}

func (s *stagedCatalog) reset() {
	s.categories = nil
	s.subcategories = nil
	s.items = nil
}

// validate checks that every parent reference points at an entity staged in the same batch.
func (s *stagedCatalog) validate() error {
	categories := make(map[*domain.Category]struct{}, len(s.categories))
	for _, c := range s.categories {
		categories[c] = struct{}{}
	}

	subcategories := make(map[*domain.Subcategory]struct{}, len(s.subcategories))
	for _, sub := range s.subcategories {
		if _, ok := categories[sub.Category]; !ok {
			return fmt.Errorf("%w: category of subcategory %q is not staged", ErrNotFound, sub.Name)
		}
		subcategories[sub] = struct{}{}
	}

	for _, item := range s.items {
		if _, ok := subcategories[item.Subcategory]; !ok {
			return fmt.Errorf("%w: subcategory of item %q is not staged", ErrNotFound, item.Name)
		}
	}

	return nil
}

// assignIDs writes identities produced by a committed transaction back to the staged entities.
func (s *stagedCatalog) assignIDs(categoryIDs, subcategoryIDs, itemIDs []int64) {
	for i, c := range s.categories {
		c.ID = categoryIDs[i]
	}
	for i, sub := range s.subcategories {
		sub.ID = subcategoryIDs[i]
	}
	for i, item := range s.items {
		item.ID = itemIDs[i]
	}
}

func nullableSKU(sku string) *string {
	if sku == "" {
		return nil
	}
	return &sku
}

// assembleCategories links loaded subcategories to their categories, preserving load order.
func assembleCategories(categories []*domain.Category, subcategories []*domain.Subcategory, categoryIDs []int64) {
	byID := make(map[int64]*domain.Category, len(categories))
	for _, c := range categories {
		c.Subcategories = make([]*domain.Subcategory, 0)
		byID[c.ID] = c
	}
	for i, sub := range subcategories {
		if parent, ok := byID[categoryIDs[i]]; ok {
			sub.Category = parent
			parent.Subcategories = append(parent.Subcategories, sub)
		}
	}
}
