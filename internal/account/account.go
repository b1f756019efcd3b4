// Package account models the read-only account facts pricing consumes.
package account

import (
	"context"

	"github.com/google/uuid"
)

// Account carries the slice of an account that affects pricing. The engine
// never mutates accounts.
type Account struct {
	ID           uuid.UUID
	Type         string
	SegmentID    *uuid.UUID
	Tier         int
	Pincode      string
	Country      string
	Region       string
	Territories  []string
	CreditDays   int
	PaymentTerms string
}

// Store provides read access to accounts.
type Store interface {
	AccountByID(ctx context.Context, id uuid.UUID) (Account, bool, error)
}

// SavedPincode returns the account's usable postal anchor: the saved address
// pincode, else the first authorized territory.
func (a *Account) SavedPincode() string {
	if a == nil {
		return ""
	}
	if a.Pincode != "" {
		return a.Pincode
	}
	if len(a.Territories) > 0 {
		return a.Territories[0]
	}
	return ""
}
