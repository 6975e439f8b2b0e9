package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"throttle/internal/models"
)

const defaultJSONCacheTTL = 30 * time.Second

// JSONStorage implements the Storage interface using a JSON file for persistence.
// It keeps an in-memory copy for reads and writes through on every mutation.
// External edits to the file are picked up once the cache expires.
type JSONStorage struct {
	filePath     string
	cacheTTL     time.Duration
	mu           sync.RWMutex
	items        map[string]*models.Item
	lastModified time.Time
	cacheExpiry  time.Time
}

// JSONData represents the structure of data stored in JSON format
type JSONData struct {
	Items       []*models.Item `json:"items"`
	LastUpdated time.Time      `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	storage := &JSONStorage{
		filePath: config.Path,
		cacheTTL: defaultJSONCacheTTL,
	}

	// Initialize with empty data if file doesn't exist
	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	// Load initial data
	storage.mu.Lock()
	defer storage.mu.Unlock()
	if err := storage.refreshLocked(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return storage, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		// Create directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		j.items = make(map[string]*models.Item)
		err := j.saveLocked()
		j.items = nil
		return err
	}
	return nil
}

// refreshLocked reloads the file if the cache expired and the file changed.
// The caller holds the write lock.
func (j *JSONStorage) refreshLocked() error {
	if j.items != nil && time.Now().Before(j.cacheExpiry) {
		return nil
	}

	info, err := os.Stat(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	// If the file hasn't changed, extend the cache and return.
	if j.items != nil && !info.ModTime().After(j.lastModified) {
		j.cacheExpiry = time.Now().Add(j.cacheTTL)
		return nil
	}

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	items := make(map[string]*models.Item, len(data.Items))
	for _, item := range data.Items {
		if item != nil && item.ID != "" {
			items[item.ID] = item
		}
	}

	j.items = items
	j.lastModified = info.ModTime()
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

// saveLocked writes all items to a temporary file and renames it over the
// data file so readers never observe a partial write.
func (j *JSONStorage) saveLocked() error {
	data := &JSONData{
		Items:       make([]*models.Item, 0, len(j.items)),
		LastUpdated: time.Now().UTC(),
	}
	for _, item := range j.items {
		data.Items = append(data.Items, item)
	}
	slices.SortFunc(data.Items, compareItems)

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.filePath), filepath.Base(j.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(fileData); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	if info, err := os.Stat(j.filePath); err == nil {
		j.lastModified = info.ModTime()
	}
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

// read runs fn against a fresh view of the items.
// Fast path under the read lock; slow path refreshes under the write lock.
func (j *JSONStorage) read(fn func(items map[string]*models.Item)) error {
	j.mu.RLock()
	if j.items != nil && time.Now().Before(j.cacheExpiry) {
		defer j.mu.RUnlock()
		fn(j.items)
		return nil
	}
	j.mu.RUnlock()

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.refreshLocked(); err != nil {
		return err
	}
	fn(j.items)
	return nil
}

// write applies fn and persists the result. If persisting fails the cache is
// dropped so the next access reloads what is actually on disk.
func (j *JSONStorage) write(fn func(items map[string]*models.Item) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.refreshLocked(); err != nil {
		return err
	}
	if err := fn(j.items); err != nil {
		return err
	}
	if err := j.saveLocked(); err != nil {
		j.items = nil
		return err
	}
	return nil
}

// ListItems returns one page of items in creation order
func (j *JSONStorage) ListItems(ctx context.Context, limit, offset int) ([]*models.Item, int, error) {
	var (
		page  []*models.Item
		total int
	)
	err := j.read(func(items map[string]*models.Item) {
		page, total = pageItems(items, limit, offset)
	})
	if err != nil {
		return nil, 0, err
	}
	return page, total, nil
}

// GetItem retrieves an item by its ID
func (j *JSONStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var found *models.Item
	if err := j.read(func(items map[string]*models.Item) {
		found = items[id].Clone()
	}); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
	}
	return found, nil
}

// CreateItem stores a new item
func (j *JSONStorage) CreateItem(ctx context.Context, item *models.Item) error {
	return j.write(func(items map[string]*models.Item) error {
		return insertItem(items, item)
	})
}

// UpdateItem replaces an existing item
func (j *JSONStorage) UpdateItem(ctx context.Context, item *models.Item) error {
	return j.write(func(items map[string]*models.Item) error {
		return replaceItem(items, item)
	})
}

// DeleteItem removes an item by its ID
func (j *JSONStorage) DeleteItem(ctx context.Context, id string) error {
	return j.write(func(items map[string]*models.Item) error {
		if _, exists := items[id]; !exists {
			return fmt.Errorf("delete item %s: %w", id, ErrNotFound)
		}
		delete(items, id)
		return nil
	})
}

// Ping checks that the data file is still accessible
func (j *JSONStorage) Ping(_ context.Context) error {
	if _, err := os.Stat(j.filePath); err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	return nil
}

// Close is a no-op; every mutation is already on disk
func (j *JSONStorage) Close() error {
	return nil
}
