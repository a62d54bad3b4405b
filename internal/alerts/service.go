package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fraudguard/fraudguard/internal/fraud"
	"github.com/fraudguard/fraudguard/internal/idgen"
	"github.com/fraudguard/fraudguard/internal/metrics"
	"github.com/fraudguard/fraudguard/internal/traces"
	"github.com/fraudguard/fraudguard/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// UpdateNotifier pushes alert status changes to the alert's user.
// Implementations must not block.
type UpdateNotifier interface {
	DispatchUpdate(alert *Alert)
}

// Service provides alert lifecycle business logic.
type Service struct {
	store    Store
	notifier UpdateNotifier
	logger   *slog.Logger
}

// NewService creates a new alert service. notifier may be nil when live
// updates are disabled.
func NewService(store Store, notifier UpdateNotifier, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// CreateFromAnalysis opens a pending alert for a flagged transaction.
func (s *Service) CreateFromAnalysis(ctx context.Context, tc *fraud.TransactionContext, analysis *fraud.Analysis) (*Alert, error) {
	ctx, span := traces.StartSpan(ctx, "alerts.CreateFromAnalysis",
		traces.TransactionID(tc.TransactionID),
		traces.RiskLevel(string(analysis.RiskLevel)),
	)
	defer span.End()

	now := time.Now().UTC()
	alert := &Alert{
		ID:            idgen.WithPrefix("alt_"),
		TransactionID: tc.TransactionID,
		UserID:        tc.UserID,
		Amount:        tc.Amount,
		Merchant:      tc.Merchant,
		Location:      tc.Location,
		RuleScore:     analysis.RuleScore,
		AIScore:       analysis.AIScore,
		TotalScore:    analysis.TotalScore,
		RiskLevel:     analysis.RiskLevel,
		ViolatedRules: analysis.ViolatedRules,
		Degraded:      analysis.Degraded,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(alert.RiskLevel)).Inc()
	s.logger.Info("alert created",
		"alert_id", alert.ID,
		"transaction_id", alert.TransactionID,
		"user_id", alert.UserID,
		"risk_level", alert.RiskLevel,
		"total_score", alert.TotalScore,
	)
	return alert, nil
}

// Get returns an alert by ID.
func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	return s.store.Get(ctx, id)
}

// GetByTransaction returns the alert for a transaction, if one exists.
func (s *Service) GetByTransaction(ctx context.Context, transactionID string) (*Alert, error) {
	return s.store.GetByTransaction(ctx, transactionID)
}

// List returns alerts newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, userID string, limit int) ([]*Alert, error) {
	filter := ListFilter{UserID: userID, Limit: limit}
	if status != "" {
		st := Status(status)
		if !st.Valid() {
			allowed := make([]string, len(Statuses))
			for i, v := range Statuses {
				allowed[i] = string(v)
			}
			return nil, validation.Validate(validation.OneOf("status", status, allowed...))
		}
		filter.Status = st
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.store.List(ctx, filter)
}

// Update applies a partial update to an alert. Status changes must follow
// the forward-only lifecycle; notes overwrite any previous notes.
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Alert, error) {
	alert, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		next := Status(*req.Status)
		if !next.Valid() {
			allowed := make([]string, len(Statuses))
			for i, v := range Statuses {
				allowed[i] = string(v)
			}
			return nil, validation.Validate(validation.OneOf("status", *req.Status, allowed...))
		}
		if !CanTransition(alert.Status, next) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, next)
		}

		alert.Status = next
		if next.Terminal() {
			resolvedAt := time.Now().UTC()
			alert.ResolvedAt = &resolvedAt
		}
		metrics.AlertTransitionsTotal.WithLabelValues(string(next)).Inc()
	}
	if req.Notes != nil {
		alert.Notes = validation.SanitizeString(*req.Notes, 2000)
	}
	alert.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}

	s.logger.Info("alert updated", "alert_id", alert.ID, "status", alert.Status)
	if s.notifier != nil {
		s.notifier.DispatchUpdate(alert)
	}
	return alert, nil
}
