package domain

import (
	"errors"
	"fmt"
)

// ErrUnlinked is returned when an entity is staged without its parent reference.
var ErrUnlinked = errors.New("entity has no parent reference")

// Staging holds the parent-linked entities of one crawl until they are handed to a sink.
// It is not safe for concurrent use.
type Staging struct {
	Categories    []*Category
	Subcategories []*Subcategory
	Items         []*Item
}

func NewStaging() *Staging {
	return &Staging{
		Categories:    make([]*Category, 0),
		Subcategories: make([]*Subcategory, 0),
		Items:         make([]*Item, 0),
	}
}

func (s *Staging) AddCategories(categories ...*Category) {
	s.Categories = append(s.Categories, categories...)
}

func (s *Staging) AddSubcategories(subcategories ...*Subcategory) error {
	for _, sub := range subcategories {
		if sub.Category == nil {
			return fmt.Errorf("subcategory %q: %w", sub.Name, ErrUnlinked)
		}
	}
	s.Subcategories = append(s.Subcategories, subcategories...)
	return nil
}

func (s *Staging) AddItems(items ...*Item) error {
	for _, item := range items {
		if item.Subcategory == nil {
			return fmt.Errorf("item %q: %w", item.Name, ErrUnlinked)
		}
	}
	s.Items = append(s.Items, items...)
	return nil
}

func (s *Staging) Counts() map[Level]int {
	return map[Level]int{
		LevelCategory:    len(s.Categories),
		LevelSubcategory: len(s.Subcategories),
		LevelItem:        len(s.Items),
	}
}
