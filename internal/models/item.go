// Package models - Item catalogue entities.
// This file defines the single resource served by the CRUD API.
//
// Design Decisions:
// - Prices are stored as integer cents to avoid floating point rounding
// - IDs are server-assigned UUIDs; clients never choose them
// - Timestamps are UTC and set by the storage layer on write
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field limits for items
const (
	MaxItemNameLength        = 100
	MaxItemDescriptionLength = 1000
)

// Item represents a catalogue entry.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewItemID returns a fresh random item identifier.
func NewItemID() string {
	return uuid.NewString()
}

// IsValidItemID reports whether id is a canonical UUID string.
func IsValidItemID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func (i *Item) Validate() error {
	if !IsValidItemID(i.ID) {
		return fmt.Errorf("invalid item id: %q", i.ID)
	}
	return validateItemFields(i.Name, i.Description, i.Price, i.Quantity)
}

// Clone returns a copy that shares no mutable state with i.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

func validateItemFields(name, description string, price int64, quantity int) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > MaxItemNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxItemNameLength)
	}
	if utf8.RuneCountInString(description) > MaxItemDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", MaxItemDescriptionLength)
	}
	if price < 0 {
		return errors.New("price cannot be negative")
	}
	if quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	return nil
}
