package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fraudguard/fraudguard/internal/metrics"
	"github.com/fraudguard/fraudguard/internal/rules"
)

// Hours considered unusual for card activity by the time rule.
const (
	unusualHourStart = 0 // inclusive
	unusualHourEnd   = 5 // exclusive
)

// Evaluator scores one transaction against a rule snapshot.
type Evaluator struct {
	velocity VelocityCounter
	location LocationChecker
	merchant MerchantChecker
	window   time.Duration // fixed velocity window, independent of rule thresholds
	logger   *slog.Logger
}

// NewEvaluator creates a rule evaluator. The window is the fixed trailing
// interval used by all velocity rules.
func NewEvaluator(velocity VelocityCounter, location LocationChecker, merchant MerchantChecker, window time.Duration, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		velocity: velocity,
		location: location,
		merchant: merchant,
		window:   window,
		logger:   logger,
	}
}

// evalContext holds the per-transaction signals shared by all rules.
// Signals are derived once, before the rule loop, so two rules of the same
// type always observe the same value.
type evalContext struct {
	velocityCount     int
	locationAnomalous bool
	merchantFlagged   bool
}

// Evaluate runs every active rule in snapshot order and returns the
// saturated rule score plus the names of violated rules in evaluation order.
// Rules with an unrecognized type or condition are skipped and reported in
// skipped; they never abort the evaluation.
//
// Evaluate always records the transaction in the velocity window, even when
// no velocity rule is active, so history accumulates for future rules.
func (e *Evaluator) Evaluate(ctx context.Context, tc *TransactionContext, snapshot []*rules.Rule) (ruleScore float64, violated, skipped []string) {
	ec := e.buildContext(ctx, tc)

	for _, rule := range snapshot {
		if !rule.Active {
			continue
		}

		result, err := e.checkRule(rule, tc, ec)
		if err != nil {
			e.logger.Warn("skipping misconfigured rule",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"error", err,
			)
			metrics.RulesSkippedTotal.WithLabelValues(string(rule.RuleType)).Inc()
			skipped = append(skipped, rule.Name)
			continue
		}
		if result {
			ruleScore += rule.Weight
			violated = append(violated, rule.Name)
		}
	}

	if ruleScore > 1.0 {
		ruleScore = 1.0
	}
	return ruleScore, violated, skipped
}

// buildContext derives the shared signals for one transaction. Signal
// provider failures are logged and treated as "not anomalous" — a broken
// context source must not fail the transaction.
func (e *Evaluator) buildContext(ctx context.Context, tc *TransactionContext) *evalContext {
	ec := &evalContext{
		velocityCount: e.velocity.RecordAndCount(tc.UserID, tc.Timestamp, e.window),
	}

	anomalous, err := e.location.IsAnomalous(ctx, tc.UserID, tc.Location)
	if err != nil {
		e.logger.Warn("location signal unavailable", "user_id", tc.UserID, "error", err)
	} else {
		ec.locationAnomalous = anomalous
	}

	flagged, err := e.merchant.IsFlagged(ctx, tc.Merchant)
	if err != nil {
		e.logger.Warn("merchant signal unavailable", "merchant", tc.Merchant, "error", err)
	} else {
		ec.merchantFlagged = flagged
	}

	return ec
}

// checkRule evaluates one rule against the transaction and shared signals.
// The switch is exhaustive over rules.Type; the default case turns any
// unknown type into a configuration error rather than a silent no-op.
func (e *Evaluator) checkRule(rule *rules.Rule, tc *TransactionContext, ec *evalContext) (bool, error) {
	var signal float64
	switch rule.RuleType {
	case rules.TypeAmount:
		signal = tc.Amount
	case rules.TypeVelocity:
		signal = float64(ec.velocityCount)
	case rules.TypeLocation:
		signal = boolSignal(ec.locationAnomalous)
	case rules.TypeMerchant:
		signal = boolSignal(ec.merchantFlagged)
	case rules.TypeTime:
		signal = boolSignal(isUnusualHour(tc.Timestamp))
	default:
		return false, fmt.Errorf("unrecognized rule type %q", rule.RuleType)
	}
	return compare(signal, rule.Condition, rule.Threshold)
}

func compare(signal float64, cond rules.Condition, threshold float64) (bool, error) {
	switch cond {
	case rules.ConditionGreaterThan:
		return signal > threshold, nil
	case rules.ConditionLessThan:
		return signal < threshold, nil
	case rules.ConditionEquals:
		return signal == threshold, nil
	default:
		return false, fmt.Errorf("unrecognized condition %q", cond)
	}
}

func boolSignal(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func isUnusualHour(ts time.Time) bool {
	hour := ts.Hour()
	return hour >= unusualHourStart && hour < unusualHourEnd
}
