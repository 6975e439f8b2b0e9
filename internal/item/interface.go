package item

import (
	"context"

	"throttle/internal/models"
)

// ServiceInterface defines the interface for item service operations
type ServiceInterface interface {
	// ListItems returns a page of items
	ListItems(ctx context.Context, req *models.ListItemsRequest) (*models.ListItemsResponse, error)

	// GetItem returns a single item
	GetItem(ctx context.Context, id string) (*models.ItemResponse, error)

	// CreateItem validates and stores a new item
	CreateItem(ctx context.Context, req *models.CreateItemRequest) (*models.ItemResponse, error)

	// UpdateItem applies a partial update to an existing item
	UpdateItem(ctx context.Context, id string, req *models.UpdateItemRequest) (*models.ItemResponse, error)

	// DeleteItem removes an item
	DeleteItem(ctx context.Context, id string) (*models.DeleteItemResponse, error)

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
