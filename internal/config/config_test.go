package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.InDelta(t, 0.4, cfg.RuleScoreWeight, 1e-9)
	assert.InDelta(t, 0.6, cfg.AIScoreWeight, 1e-9)
	assert.InDelta(t, 0.5, cfg.AlertThreshold, 1e-9)
	assert.Equal(t, 60*time.Minute, cfg.VelocityWindow)
	assert.Equal(t, 5*time.Second, cfg.AIScorerTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALERT_THRESHOLD", "0.7")
	t.Setenv("VELOCITY_WINDOW", "30m")
	t.Setenv("FLAGGED_MERCHANTS", "FRAUD_SHOP, SUSPICIOUS_MERCHANT_X")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.InDelta(t, 0.7, cfg.AlertThreshold, 1e-9)
	assert.Equal(t, 30*time.Minute, cfg.VelocityWindow)
	assert.Equal(t, []string{"FRAUD_SHOP", "SUSPICIOUS_MERCHANT_X"}, cfg.FlaggedMerchants)
}

func TestValidate_RejectsOutOfRangeWeights(t *testing.T) {
	cfg := &Config{
		RuleScoreWeight: 1.5,
		AIScoreWeight:   0.6,
		AlertThreshold:  0.5,
		VelocityWindow:  time.Hour,
		AIScorerTimeout: time.Second,
	}
	assert.Error(t, cfg.Validate())

	cfg.RuleScoreWeight = 0.4
	assert.NoError(t, cfg.Validate())

	cfg.AlertThreshold = -0.1
	assert.Error(t, cfg.Validate())
}

func TestEmailMockMode(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.EmailMockMode())

	cfg.SMTPHost = "smtp.example.com"
	assert.False(t, cfg.EmailMockMode())
}
