package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudguard/fraudguard/internal/config"
	"github.com/fraudguard/fraudguard/internal/fraud"
)

type fixedScorer struct{ score float64 }

func (f fixedScorer) Score(context.Context, *fraud.TransactionContext) (float64, error) {
	return f.score, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "development",
		LogLevel:        "error",
		RuleScoreWeight: config.DefaultRuleScoreWeight,
		AIScoreWeight:   config.DefaultAIScoreWeight,
		AlertThreshold:  config.DefaultAlertThreshold,
		VelocityWindow:  config.DefaultVelocityWindow,
		AIScorerTimeout: config.DefaultAIScorerTimeout,
		RateLimitRPM:    10000,
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithScorer(fixedScorer{score: 0.9})}, opts...)
	srv, err := New(testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if srv.rateLimiter != nil {
			// Shutdown() already stops the limiter; Stop is not idempotent.
			defer func() { _ = recover() }()
			srv.rateLimiter.Stop()
		}
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestInfoEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fraudguard")
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Not ready until Run() flips the flag
	w = doJSON(t, srv, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	srv.ready.Store(true)
	w = doJSON(t, srv, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionPipelineOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	body := map[string]interface{}{
		"userId":    "user-1",
		"amount":    8000,
		"merchant":  "Electronics Depot",
		"location":  "Lagos",
		"cardType":  "visa",
		"deviceId":  "dev-1",
		"timestamp": "2026-03-10T14:30:00Z",
	}
	w := doJSON(t, srv, http.MethodPost, "/v1/transactions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
		Analysis struct {
			TotalScore  float64 `json:"totalScore"`
			RiskLevel   string  `json:"riskLevel"`
			ShouldAlert bool    `json:"shouldAlert"`
		} `json:"analysis"`
		Alert *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"alert"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	// Seeded "High Amount Transaction" rule (weight 0.7) plus AI 0.9:
	// 0.7*0.4 + 0.9*0.6 = 0.82
	assert.InDelta(t, 0.82, result.Analysis.TotalScore, 0.001)
	assert.Equal(t, "CRITICAL", result.Analysis.RiskLevel)
	assert.True(t, result.Analysis.ShouldAlert)
	require.NotNil(t, result.Alert)
	assert.Equal(t, "pending", result.Alert.Status)

	// The alert is queryable
	w = doJSON(t, srv, http.MethodGet, "/v1/alerts/"+result.Alert.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// And the transaction too
	w = doJSON(t, srv, http.MethodGet, "/v1/transactions/"+result.Transaction.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionValidationOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/v1/transactions", map[string]interface{}{
		"userId":   "user-1",
		"amount":   -5,
		"merchant": "Shop",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/v1/transactions", map[string]interface{}{
		"userId":   "user-1",
		"amount":   9000,
		"merchant": "Electronics Depot",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var result struct {
		Alert struct {
			ID string `json:"id"`
		} `json:"alert"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(t, result.Alert.ID)

	w = doJSON(t, srv, http.MethodPatch, "/v1/alerts/"+result.Alert.ID, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Forward-only: resolved alerts never reopen
	w = doJSON(t, srv, http.MethodPatch, "/v1/alerts/"+result.Alert.ID, map[string]string{"status": "investigating"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSeededRulesInstalled(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/v1/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
}

func TestAdminSecretGuardsRuleMutations(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = "s3cret"
	srv, err := New(cfg, WithScorer(fixedScorer{score: 0.1}))
	require.NoError(t, err)
	t.Cleanup(srv.rateLimiter.Stop)

	body := map[string]interface{}{
		"name":      "Test Rule",
		"ruleType":  "amount",
		"condition": "greater_than",
		"threshold": 100,
		"weight":    0.5,
	}

	w := doJSON(t, srv, http.MethodPost, "/v1/rules", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/v1/rules", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", "s3cret")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := doJSON(t, srv, http.MethodPost, "/v1/transactions", map[string]interface{}{
			"userId":   fmt.Sprintf("user-%d", i),
			"amount":   10,
			"merchant": "Coffee Shop",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		TrackedUsers int64  `json:"trackedUsers"`
		Storage      string `json:"storage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.TrackedUsers)
	assert.Equal(t, "memory", stats.Storage)
}

func TestShutdownStopsHub(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(35 * time.Second):
		t.Fatal("server did not shut down")
	}
}
