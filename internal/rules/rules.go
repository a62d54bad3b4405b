// Package rules manages the configurable fraud detection rule set.
//
// Rules are a fixed, closed set of types (amount, velocity, location,
// merchant, time), each with a single comparison condition and a weight.
// The evaluator consumes a read-only snapshot of the active rules per
// transaction; administrative mutation never affects an evaluation in flight.
package rules

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
)

// Type identifies what signal a rule compares against its threshold.
type Type string

const (
	TypeAmount   Type = "amount"
	TypeVelocity Type = "velocity"
	TypeLocation Type = "location"
	TypeMerchant Type = "merchant"
	TypeTime     Type = "time"
)

// Types lists every recognized rule type.
var Types = []Type{TypeAmount, TypeVelocity, TypeLocation, TypeMerchant, TypeTime}

// Valid reports whether t is a recognized rule type.
func (t Type) Valid() bool {
	switch t {
	case TypeAmount, TypeVelocity, TypeLocation, TypeMerchant, TypeTime:
		return true
	}
	return false
}

// Condition is the comparison operator applied between signal and threshold.
type Condition string

const (
	ConditionGreaterThan Condition = "greater_than"
	ConditionLessThan    Condition = "less_than"
	ConditionEquals      Condition = "equals"
)

// Conditions lists every recognized comparison condition.
var Conditions = []Condition{ConditionGreaterThan, ConditionLessThan, ConditionEquals}

// Valid reports whether c is a recognized condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals:
		return true
	}
	return false
}

// Rule is one configured fraud detection rule.
type Rule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RuleType    Type      `json:"ruleType"`
	Condition   Condition `json:"condition"`
	Threshold   float64   `json:"threshold"`
	Weight      float64   `json:"weight"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateRequest is the request body for creating a rule.
type CreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	RuleType    string  `json:"ruleType" binding:"required"`
	Condition   string  `json:"condition" binding:"required"`
	Threshold   float64 `json:"threshold"`
	Weight      float64 `json:"weight"`
}

// UpdateRequest is the request body for partially updating a rule.
// Nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Threshold   *float64 `json:"threshold"`
	Weight      *float64 `json:"weight"`
	Active      *bool    `json:"active"`
}

// Store persists rule configuration.
type Store interface {
	Create(ctx context.Context, rule *Rule) error
	Get(ctx context.Context, id string) (*Rule, error)
	List(ctx context.Context, activeOnly bool) ([]*Rule, error)
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id string) error
}
