package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/fraudguard/fraudguard/internal/idgen"
)

// defaultRules is the starter rule set installed on first run.
func defaultRules(now time.Time) []*Rule {
	return []*Rule{
		{
			ID:          idgen.WithPrefix("rule_"),
			Name:        "High Amount Transaction",
			Description: "Alert on transactions above $5000",
			RuleType:    TypeAmount,
			Condition:   ConditionGreaterThan,
			Threshold:   5000.0,
			Weight:      0.7,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          idgen.WithPrefix("rule_"),
			Name:        "Transaction Velocity Check",
			Description: "Alert on more than 5 transactions in 1 hour",
			RuleType:    TypeVelocity,
			Condition:   ConditionGreaterThan,
			Threshold:   5.0,
			Weight:      0.6,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          idgen.WithPrefix("rule_"),
			Name:        "Unusual Hours Transaction",
			Description: "Alert on transactions between midnight and 5 AM",
			RuleType:    TypeTime,
			Condition:   ConditionEquals,
			Threshold:   1.0,
			Weight:      0.4,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// Seed installs the default rule set if the store is empty.
// Returns the number of rules inserted (0 when rules already exist).
func Seed(ctx context.Context, store Store) (int, error) {
	existing, err := store.List(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list rules: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	seeded := 0
	for _, rule := range defaultRules(time.Now().UTC()) {
		if err := store.Create(ctx, rule); err != nil {
			return seeded, fmt.Errorf("failed to seed rule %q: %w", rule.Name, err)
		}
		seeded++
	}
	return seeded, nil
}
