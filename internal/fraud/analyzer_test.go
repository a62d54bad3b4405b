package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fraudguard/fraudguard/internal/rules"
)

type staticRuleSource struct {
	snapshot []*rules.Rule
	err      error
}

func (s staticRuleSource) ActiveSnapshot(context.Context) ([]*rules.Rule, error) {
	return s.snapshot, s.err
}

type scorerFunc func(ctx context.Context, tc *TransactionContext) (float64, error)

func (f scorerFunc) Score(ctx context.Context, tc *TransactionContext) (float64, error) {
	return f(ctx, tc)
}

func newTestAnalyzer(src RuleSource, scorer Scorer) *Analyzer {
	eval := newTestEvaluator(&fixedVelocity{count: 1}, nil, nil)
	comb := NewCombiner(0.4, 0.6, 0.5)
	return NewAnalyzer(src, eval, comb, scorer, 50*time.Millisecond, testLogger())
}

func TestAnalyzeCriticalTransaction(t *testing.T) {
	src := staticRuleSource{snapshot: []*rules.Rule{
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
	}}
	scorer := scorerFunc(func(context.Context, *TransactionContext) (float64, error) {
		return 0.9, nil
	})

	a := newTestAnalyzer(src, scorer)
	analysis, err := a.Analyze(context.Background(), daytimeTxn(8000))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if analysis.TotalScore < 0.8199 || analysis.TotalScore > 0.8201 {
		t.Errorf("total = %v, want 0.82", analysis.TotalScore)
	}
	if analysis.RiskLevel != RiskCritical {
		t.Errorf("risk level = %v, want CRITICAL", analysis.RiskLevel)
	}
	if !analysis.ShouldAlert {
		t.Error("critical transaction should alert")
	}
	if analysis.Degraded {
		t.Error("healthy scorer must not mark the analysis degraded")
	}
}

func TestAnalyzeSafeTransaction(t *testing.T) {
	src := staticRuleSource{snapshot: []*rules.Rule{
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
	}}
	scorer := scorerFunc(func(context.Context, *TransactionContext) (float64, error) {
		return 0.1, nil
	})

	a := newTestAnalyzer(src, scorer)
	analysis, err := a.Analyze(context.Background(), daytimeTxn(25))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if analysis.RiskLevel != RiskSafe {
		t.Errorf("risk level = %v, want SAFE", analysis.RiskLevel)
	}
	if analysis.ShouldAlert {
		t.Error("safe transaction should not alert")
	}
}

func TestAnalyzeDegradesOnScorerError(t *testing.T) {
	src := staticRuleSource{snapshot: []*rules.Rule{
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
		activeRule("Velocity", rules.TypeVelocity, rules.ConditionGreaterThan, 0, 0.6),
	}}
	scorer := scorerFunc(func(context.Context, *TransactionContext) (float64, error) {
		return 0, errors.New("model unavailable")
	})

	a := newTestAnalyzer(src, scorer)
	analysis, err := a.Analyze(context.Background(), daytimeTxn(8000))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !analysis.Degraded {
		t.Error("scorer failure must mark the analysis degraded")
	}
	if analysis.AIScore != 0 {
		t.Errorf("ai score = %v, want 0 in degraded mode", analysis.AIScore)
	}
	// Both rules fire, the rule score saturates at 1.0, total is 0.4.
	if analysis.TotalScore < 0.3999 || analysis.TotalScore > 0.4001 {
		t.Errorf("total = %v, want 0.4 from rules alone", analysis.TotalScore)
	}
	if analysis.ShouldAlert {
		t.Error("degraded 0.4 total should not alert")
	}
}

func TestAnalyzeDegradesOnScorerTimeout(t *testing.T) {
	src := staticRuleSource{snapshot: nil}
	scorer := scorerFunc(func(ctx context.Context, _ *TransactionContext) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	a := newTestAnalyzer(src, scorer)
	analysis, err := a.Analyze(context.Background(), daytimeTxn(25))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !analysis.Degraded {
		t.Error("scorer timeout must mark the analysis degraded")
	}
}

func TestAnalyzeDegradedStillAlertsWithRuleHeavyWeights(t *testing.T) {
	src := staticRuleSource{snapshot: []*rules.Rule{
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
	}}
	scorer := scorerFunc(func(context.Context, *TransactionContext) (float64, error) {
		return 0, errors.New("model unavailable")
	})

	eval := newTestEvaluator(&fixedVelocity{count: 1}, nil, nil)
	comb := NewCombiner(1.0, 0.0, 0.5)
	a := NewAnalyzer(src, eval, comb, scorer, 50*time.Millisecond, testLogger())

	analysis, err := a.Analyze(context.Background(), daytimeTxn(8000))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !analysis.Degraded {
		t.Error("scorer failure must mark the analysis degraded")
	}
	if analysis.TotalScore != 0.7 {
		t.Errorf("total = %v, want 0.7 from rules alone", analysis.TotalScore)
	}
	if !analysis.ShouldAlert {
		t.Error("rule-only total above the threshold must still alert")
	}
}

func TestAnalyzeNilScorerIsAlwaysDegraded(t *testing.T) {
	a := newTestAnalyzer(staticRuleSource{}, nil)
	analysis, err := a.Analyze(context.Background(), daytimeTxn(25))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !analysis.Degraded || analysis.AIScore != 0 {
		t.Errorf("nil scorer: degraded=%v ai=%v, want degraded with zero score", analysis.Degraded, analysis.AIScore)
	}
}

func TestAnalyzeBreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	scorer := scorerFunc(func(context.Context, *TransactionContext) (float64, error) {
		calls++
		return 0, errors.New("model unavailable")
	})

	a := newTestAnalyzer(staticRuleSource{}, scorer)
	for i := 0; i < 10; i++ {
		if _, err := a.Analyze(context.Background(), daytimeTxn(25)); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
	}

	// Breaker trips at 5 consecutive failures; later analyses skip the call.
	if calls >= 10 {
		t.Errorf("scorer called %d times over 10 analyses, breaker never opened", calls)
	}

	if st := a.AIScorerCheck(context.Background()); st.Healthy {
		t.Errorf("ai_scorer check healthy with circuit open: %+v", st)
	}
}

func TestAIScorerCheck(t *testing.T) {
	withoutScorer := newTestAnalyzer(staticRuleSource{}, nil)
	if st := withoutScorer.AIScorerCheck(context.Background()); !st.Healthy {
		t.Errorf("disabled scorer should report healthy, got %+v", st)
	}

	scorer := scorerFunc(func(context.Context, *TransactionContext) (float64, error) {
		return 0.5, nil
	})
	withScorer := newTestAnalyzer(staticRuleSource{}, scorer)
	if st := withScorer.AIScorerCheck(context.Background()); !st.Healthy {
		t.Errorf("closed circuit should report healthy, got %+v", st)
	}
}

func TestAnalyzeRuleSourceErrorAborts(t *testing.T) {
	a := newTestAnalyzer(staticRuleSource{err: errors.New("store down")}, nil)
	if _, err := a.Analyze(context.Background(), daytimeTxn(25)); err == nil {
		t.Fatal("rule store failure must abort the analysis")
	}
}
