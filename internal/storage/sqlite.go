package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"throttle/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       INTEGER NOT NULL,
	quantity    INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_created ON items (created_at, id);
`

// SQLiteStorage implements the Storage interface on an SQLite database.
// Timestamps are stored as Unix nanoseconds so ordering is exact.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance and ensures the schema exists.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY and
	// keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// ListItems returns one page of items in creation order
func (ss *SQLiteStorage) ListItems(ctx context.Context, limit, offset int) ([]*models.Item, int, error) {
	var total int
	if err := ss.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, name, description, price, quantity, created_at, updated_at
		 FROM items ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := scanSQLiteItem(rows)
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

// GetItem retrieves an item by its ID
func (ss *SQLiteStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, quantity, created_at, updated_at
		 FROM items WHERE id = ?`, id)

	item, err := scanSQLiteItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// CreateItem stores a new item
func (ss *SQLiteStorage) CreateItem(ctx context.Context, item *models.Item) error {
	ts := now()
	res, err := ss.db.ExecContext(ctx,
		`INSERT INTO items (id, name, description, price, quantity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		item.ID, item.Name, item.Description, item.Price, item.Quantity, ts.UnixNano(), ts.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("create item %s: %w", item.ID, ErrConflict)
	}

	item.CreatedAt = ts
	item.UpdatedAt = ts
	return nil
}

// UpdateItem replaces an existing item
func (ss *SQLiteStorage) UpdateItem(ctx context.Context, item *models.Item) error {
	ts := now()
	var createdAt int64
	err := ss.db.QueryRowContext(ctx,
		`UPDATE items SET name = ?, description = ?, price = ?, quantity = ?, updated_at = ?
		 WHERE id = ? RETURNING created_at`,
		item.Name, item.Description, item.Price, item.Quantity, ts.UnixNano(), item.ID).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update item %s: %w", item.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update item: %w", err)
	}

	item.CreatedAt = time.Unix(0, createdAt).UTC()
	item.UpdatedAt = ts
	return nil
}

// DeleteItem removes an item by its ID
func (ss *SQLiteStorage) DeleteItem(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete item %s: %w", id, ErrNotFound)
	}
	return nil
}

// Ping checks database connectivity
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteItem(row rowScanner) (*models.Item, error) {
	var (
		item                 models.Item
		createdAt, updatedAt int64
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Quantity, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.CreatedAt = time.Unix(0, createdAt).UTC()
	item.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &item, nil
}
