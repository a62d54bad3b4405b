// Package alerts manages fraud alerts and their investigation lifecycle.
//
// An alert is created for every transaction whose total score crosses the
// alerting threshold, at most one per transaction. Alert status moves
// forward only: once resolved or dismissed as a false positive, an alert
// never reopens.
package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/fraudguard/fraudguard/internal/fraud"
)

var (
	// ErrAlertNotFound is returned when an alert doesn't exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidTransition is returned when a status change violates the
	// forward-only lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status represents the investigation state of an alert.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// Statuses lists every valid alert status.
var Statuses = []Status{StatusPending, StatusInvestigating, StatusResolved, StatusFalsePositive}

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// validTransitions is the forward-only lifecycle. Same-state updates are
// not transitions and are rejected like any other missing edge.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInvestigating: true,
		StatusResolved:      true,
		StatusFalsePositive: true,
	},
	StatusInvestigating: {
		StatusResolved:      true,
		StatusFalsePositive: true,
	},
}

// CanTransition reports whether an alert may move from one status to another.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// Alert records a suspicious transaction and its investigation state.
type Alert struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	UserID        string          `json:"userId"`
	Amount        float64         `json:"amount"`
	Merchant      string          `json:"merchant"`
	Location      string          `json:"location"`
	RuleScore     float64         `json:"ruleScore"`
	AIScore       float64         `json:"aiScore"`
	TotalScore    float64         `json:"totalScore"`
	RiskLevel     fraud.RiskLevel `json:"riskLevel"`
	ViolatedRules []string        `json:"violatedRules"`
	Degraded      bool            `json:"degraded"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ResolvedAt    *time.Time      `json:"resolvedAt,omitempty"`
}

// UpdateRequest is a partial update to an alert's investigation state.
type UpdateRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

// ListFilter narrows an alert listing.
type ListFilter struct {
	Status Status // empty means all statuses
	UserID string // empty means all users
	Limit  int
}

// Store persists alerts.
type Store interface {
	Create(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	GetByTransaction(ctx context.Context, transactionID string) (*Alert, error)
	List(ctx context.Context, filter ListFilter) ([]*Alert, error)
	Update(ctx context.Context, alert *Alert) error
}
