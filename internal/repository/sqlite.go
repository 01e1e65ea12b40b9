package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"instruments/scraper/internal/domain"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS category (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL,
	image_url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subcategory (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	image_url   TEXT NOT NULL,
	category_id INTEGER NOT NULL REFERENCES category (id)
);

CREATE TABLE IF NOT EXISTS instrument (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	sku            TEXT,
	image_url      TEXT NOT NULL,
	subcategory_id INTEGER NOT NULL REFERENCES subcategory (id)
);

CREATE INDEX IF NOT EXISTS idx_subcategory_category ON subcategory (category_id);
CREATE INDEX IF NOT EXISTS idx_instrument_subcategory ON instrument (subcategory_id);
`

// sqliteRepository stores the catalog in a single SQLite file. It is meant for local runs
// where no Postgres server is available.
type sqliteRepository struct {
	stagedCatalog
	db *sql.DB
}

func NewSQLiteRepository(path string) (CatalogRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &sqliteRepository{
		db: db,
	}, nil
}

func (r *sqliteRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w: %w", ErrStorage, err)
	}
	return nil
}

func (r *sqliteRepository) Commit(ctx context.Context) error {
	// The staged batch is consumed by every commit attempt, successful or not.
	defer r.reset()

	if r.empty() {
		return nil
	}
	if err := r.validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	categoryIDs := make([]int64, len(r.categories))
	categoryID := make(map[*domain.Category]int64, len(r.categories))
	for i, c := range r.categories {
		id, err := insertRow(ctx, tx, `INSERT INTO category (name, image_url) VALUES (?, ?)`, c.Name, c.ImageURL)
		if err != nil {
			return fmt.Errorf("failed to insert category %q: %w: %w", c.Name, ErrStorage, err)
		}
		categoryIDs[i] = id
		categoryID[c] = id
	}

	subcategoryIDs := make([]int64, len(r.subcategories))
	subcategoryID := make(map[*domain.Subcategory]int64, len(r.subcategories))
	for i, sub := range r.subcategories {
		id, err := insertRow(ctx, tx, `INSERT INTO subcategory (name, image_url, category_id) VALUES (?, ?, ?)`,
			sub.Name, sub.ImageURL, categoryID[sub.Category])
		if err != nil {
			return fmt.Errorf("failed to insert subcategory %q: %w: %w", sub.Name, ErrStorage, err)
		}
		subcategoryIDs[i] = id
		subcategoryID[sub] = id
	}

	itemIDs := make([]int64, len(r.items))
	for i, item := range r.items {
		id, err := insertRow(ctx, tx, `INSERT INTO instrument (name, sku, image_url, subcategory_id) VALUES (?, ?, ?, ?)`,
			item.Name, nullableSKU(item.SKU), item.ImageURL, subcategoryID[item.Subcategory])
		if err != nil {
			return fmt.Errorf("failed to insert instrument %q: %w: %w", item.Name, ErrStorage, err)
		}
		itemIDs[i] = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w: %w", ErrStorage, err)
	}

	log.Debugf("Committed %d categories, %d subcategories, %d instruments",
		len(categoryIDs), len(subcategoryIDs), len(itemIDs))

	r.assignIDs(categoryIDs, subcategoryIDs, itemIDs)
	return nil
}

func (r *sqliteRepository) LoadCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, image_url FROM category ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w: %w", ErrStorage, err)
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w: %w", ErrStorage, err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load categories: %w: %w", ErrStorage, err)
	}

	subRows, err := r.db.QueryContext(ctx, `SELECT id, name, image_url, category_id FROM subcategory ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load subcategories: %w: %w", ErrStorage, err)
	}
	defer subRows.Close()

	subcategories := make([]*domain.Subcategory, 0)
	categoryIDs := make([]int64, 0)
	for subRows.Next() {
		sub := &domain.Subcategory{}
		var categoryID int64
		if err := subRows.Scan(&sub.ID, &sub.Name, &sub.ImageURL, &categoryID); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w: %w", ErrStorage, err)
		}
		subcategories = append(subcategories, sub)
		categoryIDs = append(categoryIDs, categoryID)
	}
	if err := subRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load subcategories: %w: %w", ErrStorage, err)
	}

	assembleCategories(categories, subcategories, categoryIDs)
	return categories, nil
}

func (r *sqliteRepository) Close() error {
	return r.db.Close()
}

func insertRow(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
