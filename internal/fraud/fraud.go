// Package fraud implements the transaction fraud analysis pipeline.
//
// Every transaction is evaluated against the configured rule set and an
// AI-derived score. The two are combined into a total score that drives a
// deterministic risk tier and the alerting decision. Failure of the AI
// collaborator never blocks analysis: scoring degrades to rule-only mode
// and the result is flagged as degraded.
package fraud

import (
	"context"
	"time"
)

// RiskLevel is the discrete risk tier derived from the total score.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "SAFE"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFor maps a total score to its risk tier. Pure function:
// the tier is never stored independently of the score that produced it.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskCritical
	case score >= 0.6:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	case score >= 0.2:
		return RiskLow
	default:
		return RiskSafe
	}
}

// TransactionContext carries the transaction fields needed for analysis.
// Populated by the caller — analysis itself never loads the transaction.
type TransactionContext struct {
	TransactionID string
	UserID        string
	Amount        float64
	Merchant      string
	Location      string
	CardType      string
	DeviceID      string
	Timestamp     time.Time
}

// Analysis is the outcome of analyzing a single transaction.
type Analysis struct {
	RuleScore     float64   `json:"ruleScore"`
	AIScore       float64   `json:"aiScore"`
	TotalScore    float64   `json:"totalScore"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	ViolatedRules []string  `json:"violatedRules"`
	SkippedRules  []string  `json:"skippedRules,omitempty"`
	Degraded      bool      `json:"degraded"`
	ShouldAlert   bool      `json:"shouldAlert"`
}

// Scorer computes an AI-derived fraud probability in [0,1] for a transaction.
// Implementations may fail or time out; callers must treat that as a
// recoverable condition, not a pipeline failure.
type Scorer interface {
	Score(ctx context.Context, tc *TransactionContext) (float64, error)
}

// VelocityCounter records a transaction and reports how many the user made
// inside the trailing window, including the one just recorded.
type VelocityCounter interface {
	RecordAndCount(userID string, ts time.Time, window time.Duration) int
}

// LocationChecker decides whether a transaction location is anomalous for
// the user, typically against their recent location history.
type LocationChecker interface {
	IsAnomalous(ctx context.Context, userID, location string) (bool, error)
}

// MerchantChecker decides whether a merchant is flagged as high risk.
type MerchantChecker interface {
	IsFlagged(ctx context.Context, merchant string) (bool, error)
}
