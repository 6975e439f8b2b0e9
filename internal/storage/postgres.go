package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"throttle/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       BIGINT NOT NULL CHECK (price >= 0),
	quantity    INTEGER NOT NULL CHECK (quantity >= 0),
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_created ON items (created_at, id);
`

// PostgresStorage implements the Storage interface using PostgreSQL through a pgx pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and ensures the schema exists.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(config.MaxIdleConns, int(poolConfig.MaxConns)))
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// ListItems returns one page of items in creation order.
func (ps *PostgresStorage) ListItems(ctx context.Context, limit, offset int) ([]*models.Item, int, error) {
	var total int
	if err := ps.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	// A NULL limit means no limit in PostgreSQL.
	var pgLimit *int
	if limit > 0 {
		pgLimit = &limit
	}
	rows, err := ps.pool.Query(ctx,
		`SELECT id, name, description, price, quantity, created_at, updated_at
		 FROM items ORDER BY created_at, id LIMIT $1 OFFSET $2`, pgLimit, max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := scanPgItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}

	return items, total, nil
}

// GetItem retrieves an item by its ID.
func (ps *PostgresStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, name, description, price, quantity, created_at, updated_at
		 FROM items WHERE id = $1`, id)

	item, err := scanPgItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// CreateItem stores a new item.
func (ps *PostgresStorage) CreateItem(ctx context.Context, item *models.Item) error {
	ts := now()
	tag, err := ps.pool.Exec(ctx,
		`INSERT INTO items (id, name, description, price, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6) ON CONFLICT (id) DO NOTHING`,
		item.ID, item.Name, item.Description, item.Price, item.Quantity, ts)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create item %s: %w", item.ID, ErrConflict)
	}

	item.CreatedAt = ts
	item.UpdatedAt = ts
	return nil
}

// UpdateItem replaces an existing item.
func (ps *PostgresStorage) UpdateItem(ctx context.Context, item *models.Item) error {
	ts := now()
	var createdAt time.Time
	err := ps.pool.QueryRow(ctx,
		`UPDATE items SET name = $2, description = $3, price = $4, quantity = $5, updated_at = $6
		 WHERE id = $1 RETURNING created_at`,
		item.ID, item.Name, item.Description, item.Price, item.Quantity, ts).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("update item %s: %w", item.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update item: %w", err)
	}

	item.CreatedAt = createdAt.UTC()
	item.UpdatedAt = ts
	return nil
}

// DeleteItem removes an item by its ID.
func (ps *PostgresStorage) DeleteItem(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete item %s: %w", id, ErrNotFound)
	}
	return nil
}

// Ping checks database connectivity.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

func scanPgItem(row pgx.Row) (*models.Item, error) {
	var item models.Item
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}
