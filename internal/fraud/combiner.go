package fraud

// Combiner merges a rule score with an AI score into the total score used
// for the alerting decision. Weights come from configuration so the blend
// can be tuned without touching the algorithm.
type Combiner struct {
	ruleWeight     float64
	aiWeight       float64
	alertThreshold float64
}

// NewCombiner creates a score combiner with the given weights and alert
// threshold. All three are expected to lie in [0,1].
func NewCombiner(ruleWeight, aiWeight, alertThreshold float64) *Combiner {
	return &Combiner{
		ruleWeight:     ruleWeight,
		aiWeight:       aiWeight,
		alertThreshold: alertThreshold,
	}
}

// Combine returns clamp(ruleScore*ruleWeight + aiScore*aiWeight, 0, 1).
func (c *Combiner) Combine(ruleScore, aiScore float64) float64 {
	total := ruleScore*c.ruleWeight + aiScore*c.aiWeight
	if total > 1.0 {
		total = 1.0
	}
	if total < 0.0 {
		total = 0.0
	}
	return total
}

// ShouldAlert reports whether a total score warrants an alert.
// The threshold is inclusive: a score exactly at the threshold alerts.
func (c *Combiner) ShouldAlert(totalScore float64) bool {
	return totalScore >= c.alertThreshold
}
