package fraud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fraudguard/fraudguard/internal/circuitbreaker"
	"github.com/fraudguard/fraudguard/internal/health"
	"github.com/fraudguard/fraudguard/internal/metrics"
	"github.com/fraudguard/fraudguard/internal/rules"
	"github.com/fraudguard/fraudguard/internal/traces"
)

const scorerBreakerKey = "ai_scorer"

// RuleSource supplies the active rule set for each analysis.
type RuleSource interface {
	ActiveSnapshot(ctx context.Context) ([]*rules.Rule, error)
}

// Analyzer runs the full scoring pipeline for a transaction: rule
// evaluation, AI scoring, and score combination.
type Analyzer struct {
	ruleSource RuleSource
	evaluator  *Evaluator
	combiner   *Combiner
	scorer     Scorer
	breaker    *circuitbreaker.Breaker
	aiTimeout  time.Duration
	logger     *slog.Logger
}

// NewAnalyzer wires the scoring pipeline. scorer may be nil, in which
// case every analysis runs degraded with an AI score of zero.
func NewAnalyzer(ruleSource RuleSource, evaluator *Evaluator, combiner *Combiner, scorer Scorer, aiTimeout time.Duration, logger *slog.Logger) *Analyzer {
	if aiTimeout <= 0 {
		aiTimeout = 5 * time.Second
	}
	return &Analyzer{
		ruleSource: ruleSource,
		evaluator:  evaluator,
		combiner:   combiner,
		scorer:     scorer,
		breaker:    circuitbreaker.New(5, 30*time.Second),
		aiTimeout:  aiTimeout,
		logger:     logger,
	}
}

// Analyze scores a transaction. Rule evaluation failures abort the
// analysis; AI scorer failures degrade it to rules-only scoring.
func (a *Analyzer) Analyze(ctx context.Context, tc *TransactionContext) (*Analysis, error) {
	ctx, span := traces.StartSpan(ctx, "fraud.Analyze",
		traces.TransactionID(tc.TransactionID),
		traces.UserID(tc.UserID),
	)
	defer span.End()

	start := time.Now()

	active, err := a.ruleSource.ActiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	ruleScore, violated, skipped := a.evaluator.Evaluate(ctx, tc, active)

	aiScore, degraded := a.aiScore(ctx, tc)

	total := a.combiner.Combine(ruleScore, aiScore)
	analysis := &Analysis{
		RuleScore:     ruleScore,
		AIScore:       aiScore,
		TotalScore:    total,
		RiskLevel:     RiskLevelFor(total),
		ViolatedRules: violated,
		SkippedRules:  skipped,
		Degraded:      degraded,
		ShouldAlert:   a.combiner.ShouldAlert(total),
	}

	outcome := "clear"
	if analysis.ShouldAlert {
		outcome = "alerted"
	}
	metrics.TransactionsScoredTotal.WithLabelValues(outcome).Inc()
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	if degraded {
		metrics.DegradedAnalysesTotal.Inc()
	}

	span.SetAttributes(
		traces.TotalScore(total),
		traces.RiskLevel(string(analysis.RiskLevel)),
	)

	a.logger.Info("transaction scored",
		"transaction_id", tc.TransactionID,
		"user_id", tc.UserID,
		"rule_score", ruleScore,
		"ai_score", aiScore,
		"total_score", total,
		"risk_level", analysis.RiskLevel,
		"violated_rules", len(violated),
		"degraded", degraded,
	)

	return analysis, nil
}

// AIScorerCheck reports the AI scorer's availability: whether a scorer
// is configured and its circuit breaker is not open.
func (a *Analyzer) AIScorerCheck(ctx context.Context) health.Status {
	if a.scorer == nil {
		return health.Status{Name: "ai_scorer", Healthy: true, Detail: "disabled, rule-only scoring"}
	}
	state := a.breaker.State(scorerBreakerKey)
	if state == circuitbreaker.StateOpen {
		return health.Status{Name: "ai_scorer", Healthy: false, Detail: "circuit open"}
	}
	return health.Status{Name: "ai_scorer", Healthy: true, Detail: "circuit " + state.String()}
}

// aiScore calls the AI scorer behind the circuit breaker. Any failure
// returns a zero score marked degraded so the pipeline keeps moving.
func (a *Analyzer) aiScore(ctx context.Context, tc *TransactionContext) (score float64, degraded bool) {
	if a.scorer == nil {
		return 0, true
	}
	if !a.breaker.Allow(scorerBreakerKey) {
		metrics.AIScorerRequestsTotal.WithLabelValues("breaker_open").Inc()
		a.logger.Warn("ai scorer circuit open, degrading analysis",
			"transaction_id", tc.TransactionID)
		return 0, true
	}

	ctx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()

	score, err := a.scorer.Score(ctx, tc)
	if err != nil {
		a.breaker.RecordFailure(scorerBreakerKey)
		result := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
		metrics.AIScorerRequestsTotal.WithLabelValues(result).Inc()
		a.logger.Warn("ai scorer failed, degrading analysis",
			"transaction_id", tc.TransactionID, "error", err)
		return 0, true
	}

	a.breaker.RecordSuccess(scorerBreakerKey)
	metrics.AIScorerRequestsTotal.WithLabelValues("ok").Inc()
	return score, false
}
