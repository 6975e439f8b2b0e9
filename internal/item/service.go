// Package item implements the catalogue business logic behind the HTTP API.
package item

import (
	"context"
	"errors"

	"throttle/internal/models"
	"throttle/internal/storage"
)

// Service validates item requests and translates storage failures into
// ServiceErrors the HTTP layer can render.
type Service struct {
	storage storage.Storage
}

// NewService creates a new item service with the given storage backend
func NewService(storage storage.Storage) *Service {
	return &Service{
		storage: storage,
	}
}

func (s *Service) ListItems(ctx context.Context, req *models.ListItemsRequest) (*models.ListItemsResponse, error) {
	if req == nil {
		req = &models.ListItemsRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError(err.Error(), err)
	}
	req.Normalize()

	items, total, err := s.storage.ListItems(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, NewInternalError("failed to list items", err)
	}

	return models.NewListItemsResponse(items, total, req.Limit, req.Offset), nil
}

func (s *Service) GetItem(ctx context.Context, id string) (*models.ItemResponse, error) {
	if !models.IsValidItemID(id) {
		return nil, NewInvalidRequestError("invalid item id", nil)
	}

	item, err := s.storage.GetItem(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "failed to get item")
	}

	return toResponse(item), nil
}

func (s *Service) CreateItem(ctx context.Context, req *models.CreateItemRequest) (*models.ItemResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err.Error(), err)
	}

	item := req.ToItem()
	if err := s.storage.CreateItem(ctx, item); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, NewConflictError("item already exists")
		}
		return nil, NewInternalError("failed to create item", err)
	}

	return toResponse(item), nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, req *models.UpdateItemRequest) (*models.ItemResponse, error) {
	if !models.IsValidItemID(id) {
		return nil, NewInvalidRequestError("invalid item id", nil)
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err.Error(), err)
	}

	item, err := s.storage.GetItem(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "failed to get item")
	}

	req.Apply(item)
	if err := s.storage.UpdateItem(ctx, item); err != nil {
		return nil, s.translate(err, id, "failed to update item")
	}

	return toResponse(item), nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) (*models.DeleteItemResponse, error) {
	if !models.IsValidItemID(id) {
		return nil, NewInvalidRequestError("invalid item id", nil)
	}

	if err := s.storage.DeleteItem(ctx, id); err != nil {
		return nil, s.translate(err, id, "failed to delete item")
	}

	return &models.DeleteItemResponse{
		ID:      id,
		Message: "Item deleted successfully",
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.storage.Ping(ctx); err != nil {
		return NewUnavailableError("storage unavailable", err)
	}
	return nil
}

func (s *Service) translate(err error, id, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewItemNotFoundError(id)
	}
	return NewInternalError(message, err)
}

func toResponse(item *models.Item) *models.ItemResponse {
	resp := &models.ItemResponse{}
	resp.FromItem(item)
	return resp
}
