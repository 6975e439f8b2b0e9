package storage

import (
	"context"
	"time"

	"throttle/internal/models"
)

// Storage defines the interface for item persistence and retrieval.
// It provides a clean abstraction that can be implemented by different backends
// such as JSON files, in-process maps, or SQL databases.
//
// Items are listed in creation order (oldest first, ties broken by ID).
// Implementations return copies; callers may mutate returned items freely.
type Storage interface {
	// ListItems returns one page of items and the total number of items.
	ListItems(ctx context.Context, limit, offset int) ([]*models.Item, int, error)

	// GetItem retrieves an item by its ID. Returns ErrNotFound if absent.
	GetItem(ctx context.Context, id string) (*models.Item, error)

	// CreateItem stores a new item and sets its timestamps.
	// Returns ErrConflict if the ID is already taken.
	CreateItem(ctx context.Context, item *models.Item) error

	// UpdateItem replaces an existing item's fields and sets UpdatedAt.
	// CreatedAt is refreshed from the stored row. Returns ErrNotFound if absent.
	UpdateItem(ctx context.Context, item *models.Item) error

	// DeleteItem removes an item. Returns ErrNotFound if absent.
	DeleteItem(ctx context.Context, id string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (json, memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// Pool settings for database backends
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}

// now is the write timestamp for all backends. Postgres stores microseconds,
// so every backend truncates to keep round trips identical.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
