package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"throttle/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// This provider is ideal for development, testing, and scenarios where data
// persistence is not required. It provides fast access but data is lost on restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]*models.Item
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		items: make(map[string]*models.Item),
	}, nil
}

// ListItems returns one page of items in creation order
func (m *MemoryStorage) ListItems(ctx context.Context, limit, offset int) ([]*models.Item, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	page, total := pageItems(m.items, limit, offset)
	return page, total, nil
}

// GetItem retrieves an item by its ID
func (m *MemoryStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[id]
	if !exists {
		return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
	}

	// Return a copy
	return item.Clone(), nil
}

// CreateItem stores a new item
func (m *MemoryStorage) CreateItem(ctx context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return insertItem(m.items, item)
}

// UpdateItem replaces an existing item
func (m *MemoryStorage) UpdateItem(ctx context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return replaceItem(m.items, item)
}

// DeleteItem removes an item by its ID
func (m *MemoryStorage) DeleteItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[id]; !exists {
		return fmt.Errorf("delete item %s: %w", id, ErrNotFound)
	}

	delete(m.items, id)
	return nil
}

// Ping always succeeds for memory storage
func (m *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

// Close clears all data
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*models.Item)
	return nil
}

// The helpers below are shared by the map-backed providers. Callers hold the
// provider's lock.

func insertItem(items map[string]*models.Item, item *models.Item) error {
	if _, exists := items[item.ID]; exists {
		return fmt.Errorf("create item %s: %w", item.ID, ErrConflict)
	}

	ts := now()
	item.CreatedAt = ts
	item.UpdatedAt = ts

	// Store a copy to prevent external modification
	items[item.ID] = item.Clone()
	return nil
}

func replaceItem(items map[string]*models.Item, item *models.Item) error {
	existing, exists := items[item.ID]
	if !exists {
		return fmt.Errorf("update item %s: %w", item.ID, ErrNotFound)
	}

	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = now()
	items[item.ID] = item.Clone()
	return nil
}

func pageItems(items map[string]*models.Item, limit, offset int) ([]*models.Item, int) {
	all := make([]*models.Item, 0, len(items))
	for _, item := range items {
		all = append(all, item)
	}
	slices.SortFunc(all, compareItems)

	total := len(all)
	offset = max(offset, 0)
	if offset >= total {
		return []*models.Item{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := make([]*models.Item, 0, end-offset)
	for _, item := range all[offset:end] {
		page = append(page, item.Clone())
	}
	return page, total
}

func compareItems(a, b *models.Item) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
