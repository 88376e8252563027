package domain

import (
	"errors"
	"strings"
	"time"
)

// Asset is a loanable item. Quantity is the number of units that exist.
type Asset struct {
	ID               string
	Name             string
	Description      string
	CategoryID       *string
	Quantity         int
	RequiresApproval bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate validates the asset for persistence.
func (a *Asset) Validate() error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return errors.New("name is required")
	}
	if a.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	return nil
}
