// Package models - API request types and input validation.
// This file defines all incoming API request structures with validation.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize input data for consistent processing (trimmed strings)
// - Separate validation from normalization for clear error reporting
// - Provide sensible defaults where appropriate
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Pagination limits for list endpoints
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type CreateItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
}

// UpdateItemRequest is a partial update: nil fields are left unchanged.
type UpdateItemRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *int64  `json:"price,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
}

type ListItemsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func (r *CreateItemRequest) Validate() error {
	return validateItemFields(r.Name, r.Description, r.Price, r.Quantity)
}

func (r *CreateItemRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// ToItem builds a new Item with a fresh ID. Timestamps are left to storage.
func (r *CreateItemRequest) ToItem() *Item {
	return &Item{
		ID:          NewItemID(),
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}
}

func (r *UpdateItemRequest) Validate() error {
	if r.Name == nil && r.Description == nil && r.Price == nil && r.Quantity == nil {
		return errors.New("at least one field must be provided")
	}

	// Validate the provided fields against a placeholder for the rest.
	name, description := "placeholder", ""
	var price int64
	quantity := 0
	if r.Name != nil {
		name = *r.Name
	}
	if r.Description != nil {
		description = *r.Description
	}
	if r.Price != nil {
		price = *r.Price
	}
	if r.Quantity != nil {
		quantity = *r.Quantity
	}
	return validateItemFields(name, description, price, quantity)
}

func (r *UpdateItemRequest) Normalize() {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		r.Name = &name
	}

	if r.Description != nil {
		desc := strings.TrimSpace(*r.Description)
		r.Description = &desc
	}
}

// Apply copies the provided fields onto item.
func (r *UpdateItemRequest) Apply(item *Item) {
	if r.Name != nil {
		item.Name = *r.Name
	}
	if r.Description != nil {
		item.Description = *r.Description
	}
	if r.Price != nil {
		item.Price = *r.Price
	}
	if r.Quantity != nil {
		item.Quantity = *r.Quantity
	}
}

func (r *ListItemsRequest) Validate() error {
	if r.Limit < 0 {
		return errors.New("limit cannot be negative")
	}

	if r.Limit > MaxPageLimit {
		return fmt.Errorf("limit cannot exceed %d", MaxPageLimit)
	}

	if r.Offset < 0 {
		return errors.New("offset cannot be negative")
	}

	return nil
}

func (r *ListItemsRequest) Normalize() {
	if r.Limit == 0 {
		r.Limit = DefaultPageLimit
	}
}
