package repository

import (
	"context"
	"errors"
	"fmt"

	"instruments/scraper/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS category (
		id        BIGSERIAL PRIMARY KEY,
		name      TEXT NOT NULL,
		image_url TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subcategory (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		image_url   TEXT NOT NULL,
		category_id BIGINT NOT NULL REFERENCES category (id)
	)`,
	`CREATE TABLE IF NOT EXISTS instrument (
		id             BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL,
		sku            TEXT,
		image_url      TEXT NOT NULL,
		subcategory_id BIGINT NOT NULL REFERENCES subcategory (id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subcategory_category ON subcategory (category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_instrument_subcategory ON instrument (subcategory_id)`,
}

type postgresRepository struct {
	stagedCatalog
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) CatalogRepository {
	return &postgresRepository{
		db: db,
	}
}

func (r *postgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", translatePgError(err))
		}
	}
	return nil
}

func (r *postgresRepository) Commit(ctx context.Context) error {
	// The staged batch is consumed by every commit attempt, successful or not.
	defer r.reset()

	if r.empty() {
		return nil
	}
	if err := r.validate(); err != nil {
		return err
	}

	var categoryIDs, subcategoryIDs, itemIDs []int64
	err := runInTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		categoryIDs, err = insertReturningIDs(ctx, tx, len(r.categories), func(b *pgx.Batch, i int) {
			c := r.categories[i]
			b.Queue(`INSERT INTO category (name, image_url) VALUES ($1, $2) RETURNING id`, c.Name, c.ImageURL)
		})
		if err != nil {
			return fmt.Errorf("failed to insert categories: %w", err)
		}

		categoryID := make(map[*domain.Category]int64, len(r.categories))
		for i, c := range r.categories {
			categoryID[c] = categoryIDs[i]
		}

		subcategoryIDs, err = insertReturningIDs(ctx, tx, len(r.subcategories), func(b *pgx.Batch, i int) {
			sub := r.subcategories[i]
			b.Queue(`INSERT INTO subcategory (name, image_url, category_id) VALUES ($1, $2, $3) RETURNING id`,
				sub.Name, sub.ImageURL, categoryID[sub.Category])
		})
		if err != nil {
			return fmt.Errorf("failed to insert subcategories: %w", err)
		}

		subcategoryID := make(map[*domain.Subcategory]int64, len(r.subcategories))
		for i, sub := range r.subcategories {
			subcategoryID[sub] = subcategoryIDs[i]
		}

		itemIDs, err = insertReturningIDs(ctx, tx, len(r.items), func(b *pgx.Batch, i int) {
			item := r.items[i]
			b.Queue(`INSERT INTO instrument (name, sku, image_url, subcategory_id) VALUES ($1, $2, $3, $4) RETURNING id`,
				item.Name, nullableSKU(item.SKU), item.ImageURL, subcategoryID[item.Subcategory])
		})
		if err != nil {
			return fmt.Errorf("failed to insert instruments: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit catalog: %w", translatePgError(err))
	}

	log.Debugf("Committed %d categories, %d subcategories, %d instruments",
		len(categoryIDs), len(subcategoryIDs), len(itemIDs))

	r.assignIDs(categoryIDs, subcategoryIDs, itemIDs)
	return nil
}

func (r *postgresRepository) LoadCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, image_url FROM category ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", translatePgError(err))
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Category, error) {
		c := &domain.Category{}
		return c, row.Scan(&c.ID, &c.Name, &c.ImageURL)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan categories: %w", translatePgError(err))
	}

	rows, err = r.db.Query(ctx, `SELECT id, name, image_url, category_id FROM subcategory ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load subcategories: %w", translatePgError(err))
	}
	var categoryIDs []int64
	subcategories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Subcategory, error) {
		sub := &domain.Subcategory{}
		var categoryID int64
		if err := row.Scan(&sub.ID, &sub.Name, &sub.ImageURL, &categoryID); err != nil {
			return nil, err
		}
		categoryIDs = append(categoryIDs, categoryID)
		return sub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan subcategories: %w", translatePgError(err))
	}

	assembleCategories(categories, subcategories, categoryIDs)
	return categories, nil
}

func (r *postgresRepository) Close() error {
	r.db.Close()
	return nil
}

func runInTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertReturningIDs(ctx context.Context, tx pgx.Tx, n int, queue func(b *pgx.Batch, i int)) ([]int64, error) {
	ids := make([]int64, n)
	if n == 0 {
		return ids, nil
	}

	b := &pgx.Batch{}
	for i := 0; i < n; i++ {
		queue(b, i)
	}

	br := tx.SendBatch(ctx, b)
	for i := range ids {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			_ = br.Close()
			return nil, err
		}
	}
	return ids, br.Close()
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
