// Package transactions ingests card transactions and runs each one through
// the fraud scoring pipeline.
package transactions

import (
	"context"
	"errors"
	"time"
)

// ErrTransactionNotFound is returned when a transaction doesn't exist.
var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is an immutable record of one card transaction.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    float64   `json:"amount"`
	Merchant  string    `json:"merchant"`
	Location  string    `json:"location"`
	CardType  string    `json:"cardType"`
	DeviceID  string    `json:"deviceId"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateRequest is the payload for submitting a transaction.
type CreateRequest struct {
	UserID    string     `json:"userId"`
	Amount    float64    `json:"amount"`
	Merchant  string     `json:"merchant"`
	Location  string     `json:"location"`
	CardType  string     `json:"cardType"`
	DeviceID  string     `json:"deviceId"`
	Timestamp *time.Time `json:"timestamp"` // defaults to now
	UserEmail string     `json:"userEmail"` // optional, for alert email delivery
}

// ListFilter narrows a transaction listing.
type ListFilter struct {
	UserID string
	Limit  int
}

// Store persists transactions.
type Store interface {
	Create(ctx context.Context, txn *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	// DistinctLocations returns the distinct non-empty locations of the
	// user's stored transactions, at most limit entries.
	DistinctLocations(ctx context.Context, userID string, limit int) ([]string, error)
}
