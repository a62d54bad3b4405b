package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/fraudguard/fraudguard/internal/idgen"
	"github.com/fraudguard/fraudguard/internal/validation"
)

// Service provides rule configuration business logic.
type Service struct {
	store Store
}

// NewService creates a new rule service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create validates and stores a new rule.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Rule, error) {
	if errs := validateRuleFields(req.Name, req.RuleType, req.Condition, req.Weight); len(errs) > 0 {
		return nil, errs
	}

	now := time.Now().UTC()
	rule := &Rule{
		ID:          idgen.WithPrefix("rule_"),
		Name:        validation.SanitizeString(req.Name, 200),
		Description: validation.SanitizeString(req.Description, 1000),
		RuleType:    Type(req.RuleType),
		Condition:   Condition(req.Condition),
		Threshold:   req.Threshold,
		Weight:      req.Weight,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return rule, nil
}

// Get returns a rule by ID.
func (s *Service) Get(ctx context.Context, id string) (*Rule, error) {
	return s.store.Get(ctx, id)
}

// List returns all rules, optionally restricted to active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Rule, error) {
	return s.store.List(ctx, activeOnly)
}

// Update applies a partial update to an existing rule.
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Rule, error) {
	rule, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Weight != nil {
		if errs := validation.Validate(validation.InUnitRange("weight", *req.Weight)); len(errs) > 0 {
			return nil, errs
		}
		rule.Weight = *req.Weight
	}
	if req.Name != nil {
		if errs := validation.Validate(validation.Required("name", *req.Name)); len(errs) > 0 {
			return nil, errs
		}
		rule.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.Description != nil {
		rule.Description = validation.SanitizeString(*req.Description, 1000)
	}
	if req.Threshold != nil {
		rule.Threshold = *req.Threshold
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	rule.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return rule, nil
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ActiveSnapshot returns the current active rules as a stable snapshot
// for one evaluation. The returned slice is owned by the caller.
func (s *Service) ActiveSnapshot(ctx context.Context) ([]*Rule, error) {
	return s.store.List(ctx, true)
}

func validateRuleFields(name, ruleType, condition string, weight float64) validation.ValidationErrors {
	allowedTypes := make([]string, len(Types))
	for i, t := range Types {
		allowedTypes[i] = string(t)
	}
	allowedConds := make([]string, len(Conditions))
	for i, c := range Conditions {
		allowedConds[i] = string(c)
	}
	return validation.Validate(
		validation.Required("name", name),
		validation.OneOf("ruleType", ruleType, allowedTypes...),
		validation.OneOf("condition", condition, allowedConds...),
		validation.InUnitRange("weight", weight),
	)
}
