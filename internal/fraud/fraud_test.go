package fraud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fraudguard/fraudguard/internal/rules"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedVelocity struct {
	count int
	calls int
}

func (f *fixedVelocity) RecordAndCount(string, time.Time, time.Duration) int {
	f.calls++
	return f.count
}

type staticLocation struct {
	anomalous bool
	err       error
}

func (s staticLocation) IsAnomalous(context.Context, string, string) (bool, error) {
	return s.anomalous, s.err
}

type staticMerchant struct {
	flagged bool
	err     error
}

func (s staticMerchant) IsFlagged(context.Context, string) (bool, error) {
	return s.flagged, s.err
}

func newTestEvaluator(vel *fixedVelocity, loc LocationChecker, mer MerchantChecker) *Evaluator {
	if vel == nil {
		vel = &fixedVelocity{}
	}
	if loc == nil {
		loc = staticLocation{}
	}
	if mer == nil {
		mer = staticMerchant{}
	}
	return NewEvaluator(vel, loc, mer, time.Hour, testLogger())
}

func activeRule(name string, rt rules.Type, cond rules.Condition, threshold, weight float64) *rules.Rule {
	return &rules.Rule{
		ID:        "rule_" + name,
		Name:      name,
		RuleType:  rt,
		Condition: cond,
		Threshold: threshold,
		Weight:    weight,
		Active:    true,
	}
}

func daytimeTxn(amount float64) *TransactionContext {
	return &TransactionContext{
		TransactionID: "txn_test",
		UserID:        "user-1",
		Amount:        amount,
		Merchant:      "Coffee Shop",
		Location:      "New York",
		Timestamp:     time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
}

func TestRiskLevelFor(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0.0, RiskSafe},
		{0.19, RiskSafe},
		{0.2, RiskLow},
		{0.39, RiskLow},
		{0.4, RiskMedium},
		{0.6, RiskHigh},
		{0.79, RiskHigh},
		{0.8, RiskCritical},
		{1.0, RiskCritical},
	}
	for _, c := range cases {
		if got := RiskLevelFor(c.score); got != c.want {
			t.Errorf("RiskLevelFor(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestCombine(t *testing.T) {
	c := NewCombiner(0.4, 0.6, 0.5)

	got := c.Combine(0.7, 0.9)
	if got < 0.8199 || got > 0.8201 {
		t.Fatalf("Combine(0.7, 0.9) = %v, want 0.82", got)
	}
	if RiskLevelFor(got) != RiskCritical {
		t.Errorf("risk level for %v = %v, want CRITICAL", got, RiskLevelFor(got))
	}
	if !c.ShouldAlert(got) {
		t.Error("score 0.82 should alert")
	}
}

func TestCombineLowScoresStaySafe(t *testing.T) {
	c := NewCombiner(0.4, 0.6, 0.5)

	got := c.Combine(0.0, 0.1)
	if got < 0.0599 || got > 0.0601 {
		t.Fatalf("Combine(0.0, 0.1) = %v, want 0.06", got)
	}
	if RiskLevelFor(got) != RiskSafe {
		t.Errorf("risk level for %v = %v, want SAFE", got, RiskLevelFor(got))
	}
	if c.ShouldAlert(got) {
		t.Error("score 0.06 should not alert")
	}
}

func TestCombineClamps(t *testing.T) {
	c := NewCombiner(0.9, 0.9, 0.5)
	if got := c.Combine(1.0, 1.0); got != 1.0 {
		t.Errorf("Combine over 1.0 = %v, want clamp to 1.0", got)
	}
	if got := c.Combine(-1.0, 0.0); got != 0.0 {
		t.Errorf("Combine below 0 = %v, want clamp to 0.0", got)
	}
}

func TestShouldAlertThresholdInclusive(t *testing.T) {
	c := NewCombiner(0.4, 0.6, 0.5)
	if !c.ShouldAlert(0.5) {
		t.Error("score exactly at threshold should alert")
	}
	if c.ShouldAlert(0.4999) {
		t.Error("score just below threshold should not alert")
	}
}

func TestEvaluateAmountRule(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	snapshot := []*rules.Rule{
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
	}

	score, violated, skipped := e.Evaluate(context.Background(), daytimeTxn(6500), snapshot)
	if score != 0.7 {
		t.Errorf("score = %v, want 0.7", score)
	}
	if len(violated) != 1 || violated[0] != "High Amount" {
		t.Errorf("violated = %v, want [High Amount]", violated)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}

	score, violated, _ = e.Evaluate(context.Background(), daytimeTxn(4999), snapshot)
	if score != 0 || len(violated) != 0 {
		t.Errorf("below-threshold amount: score=%v violated=%v, want 0 and none", score, violated)
	}
}

func TestEvaluateAmountBoundaryIsExclusive(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	snapshot := []*rules.Rule{
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
	}

	score, _, _ := e.Evaluate(context.Background(), daytimeTxn(5000), snapshot)
	if score != 0 {
		t.Errorf("amount exactly at greater_than threshold scored %v, want 0", score)
	}
}

func TestEvaluateVelocityRule(t *testing.T) {
	vel := &fixedVelocity{count: 6}
	e := newTestEvaluator(vel, nil, nil)
	snapshot := []*rules.Rule{
		activeRule("Velocity", rules.TypeVelocity, rules.ConditionGreaterThan, 5, 0.6),
	}

	score, violated, _ := e.Evaluate(context.Background(), daytimeTxn(10), snapshot)
	if score != 0.6 || len(violated) != 1 {
		t.Errorf("score=%v violated=%v, want 0.6 and one rule", score, violated)
	}
}

func TestEvaluateRecordsVelocityWithoutVelocityRule(t *testing.T) {
	vel := &fixedVelocity{count: 1}
	e := newTestEvaluator(vel, nil, nil)
	snapshot := []*rules.Rule{
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
	}

	e.Evaluate(context.Background(), daytimeTxn(10), snapshot)
	if vel.calls != 1 {
		t.Errorf("velocity recorded %d times, want 1", vel.calls)
	}
}

func TestEvaluateVelocityRecordedOnce(t *testing.T) {
	vel := &fixedVelocity{count: 3}
	e := newTestEvaluator(vel, nil, nil)
	snapshot := []*rules.Rule{
		activeRule("Velocity A", rules.TypeVelocity, rules.ConditionGreaterThan, 2, 0.3),
		activeRule("Velocity B", rules.TypeVelocity, rules.ConditionGreaterThan, 10, 0.3),
	}

	_, violated, _ := e.Evaluate(context.Background(), daytimeTxn(10), snapshot)
	if vel.calls != 1 {
		t.Errorf("velocity recorded %d times with two velocity rules, want 1", vel.calls)
	}
	if len(violated) != 1 || violated[0] != "Velocity A" {
		t.Errorf("violated = %v, want only Velocity A", violated)
	}
}

func TestEvaluateLocationAndMerchantRules(t *testing.T) {
	e := newTestEvaluator(nil, staticLocation{anomalous: true}, staticMerchant{flagged: true})
	snapshot := []*rules.Rule{
		activeRule("Odd Location", rules.TypeLocation, rules.ConditionEquals, 1.0, 0.3),
		activeRule("Bad Merchant", rules.TypeMerchant, rules.ConditionEquals, 1.0, 0.3),
	}

	score, violated, _ := e.Evaluate(context.Background(), daytimeTxn(10), snapshot)
	if score < 0.5999 || score > 0.6001 {
		t.Errorf("score = %v, want 0.6", score)
	}
	if len(violated) != 2 {
		t.Errorf("violated = %v, want both rules", violated)
	}
}

func TestEvaluateTimeRule(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	snapshot := []*rules.Rule{
		activeRule("Unusual Hours", rules.TypeTime, rules.ConditionEquals, 1.0, 0.4),
	}

	night := daytimeTxn(10)
	night.Timestamp = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	score, _, _ := e.Evaluate(context.Background(), night, snapshot)
	if score != 0.4 {
		t.Errorf("3am transaction scored %v, want 0.4", score)
	}

	score, _, _ = e.Evaluate(context.Background(), daytimeTxn(10), snapshot)
	if score != 0 {
		t.Errorf("2:30pm transaction scored %v, want 0", score)
	}
}

func TestEvaluateScoreSaturates(t *testing.T) {
	e := newTestEvaluator(&fixedVelocity{count: 100}, staticLocation{anomalous: true}, staticMerchant{flagged: true})
	snapshot := []*rules.Rule{
		activeRule("A", rules.TypeAmount, rules.ConditionGreaterThan, 100, 0.7),
		activeRule("B", rules.TypeVelocity, rules.ConditionGreaterThan, 1, 0.6),
		activeRule("C", rules.TypeLocation, rules.ConditionEquals, 1.0, 0.5),
	}

	score, violated, _ := e.Evaluate(context.Background(), daytimeTxn(9999), snapshot)
	if score != 1.0 {
		t.Errorf("score = %v, want saturation at 1.0", score)
	}
	if len(violated) != 3 {
		t.Errorf("violated = %v, want all three rules reported past saturation", violated)
	}
}

func TestEvaluateSkipsUnknownTypeAndCondition(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	snapshot := []*rules.Rule{
		{ID: "rule_x", Name: "Mystery", RuleType: "geoip", Condition: rules.ConditionEquals, Threshold: 1, Weight: 0.9, Active: true},
		{ID: "rule_y", Name: "Fuzzy", RuleType: rules.TypeAmount, Condition: "approximately", Threshold: 5000, Weight: 0.9, Active: true},
		activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7),
	}

	score, violated, skipped := e.Evaluate(context.Background(), daytimeTxn(6000), snapshot)
	if score != 0.7 {
		t.Errorf("score = %v, want 0.7 from the one valid rule", score)
	}
	if len(violated) != 1 || violated[0] != "High Amount" {
		t.Errorf("violated = %v, want [High Amount]", violated)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %v, want the two misconfigured rules", skipped)
	}
}

func TestEvaluateIgnoresInactiveRules(t *testing.T) {
	e := newTestEvaluator(nil, nil, nil)
	inactive := activeRule("High Amount", rules.TypeAmount, rules.ConditionGreaterThan, 5000, 0.7)
	inactive.Active = false

	score, violated, _ := e.Evaluate(context.Background(), daytimeTxn(9000), []*rules.Rule{inactive})
	if score != 0 || len(violated) != 0 {
		t.Errorf("inactive rule evaluated: score=%v violated=%v", score, violated)
	}
}

func TestEvaluateSignalErrorIsNotAnomalous(t *testing.T) {
	e := newTestEvaluator(nil, staticLocation{err: errors.New("store down")}, nil)
	snapshot := []*rules.Rule{
		activeRule("Odd Location", rules.TypeLocation, rules.ConditionEquals, 1.0, 0.5),
	}

	score, _, skipped := e.Evaluate(context.Background(), daytimeTxn(10), snapshot)
	if score != 0 {
		t.Errorf("score = %v, want 0 when location signal fails", score)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, signal failure must not skip the rule", skipped)
	}
}

func TestStaticMerchantList(t *testing.T) {
	m := NewStaticMerchantList([]string{"Shady Imports", " darkweb store "})

	flagged, err := m.IsFlagged(context.Background(), "shady imports")
	if err != nil || !flagged {
		t.Errorf("IsFlagged(shady imports) = %v, %v, want true", flagged, err)
	}
	flagged, _ = m.IsFlagged(context.Background(), "Darkweb Store")
	if !flagged {
		t.Error("flagged list match should ignore case and padding")
	}
	flagged, _ = m.IsFlagged(context.Background(), "Coffee Shop")
	if flagged {
		t.Error("unlisted merchant should not be flagged")
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"0.75", 0.75, true},
		{" 0.3\n", 0.3, true},
		{"```0.9```", 0.9, true},
		{"1.8", 1.0, true},
		{"-0.2", 0.0, true},
		{"high risk", 0, false},
	}
	for _, c := range cases {
		got, err := parseScore(c.raw)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("parseScore(%q) = %v, %v, want %v", c.raw, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Errorf("parseScore(%q) succeeded, want error", c.raw)
		}
	}
}
