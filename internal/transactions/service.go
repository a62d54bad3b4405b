package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fraudguard/fraudguard/internal/alerts"
	"github.com/fraudguard/fraudguard/internal/fraud"
	"github.com/fraudguard/fraudguard/internal/idgen"
	"github.com/fraudguard/fraudguard/internal/logging"
	"github.com/fraudguard/fraudguard/internal/syncutil"
	"github.com/fraudguard/fraudguard/internal/traces"
	"github.com/fraudguard/fraudguard/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Analyzer scores one transaction.
type Analyzer interface {
	Analyze(ctx context.Context, tc *fraud.TransactionContext) (*fraud.Analysis, error)
}

// AlertCreator opens an alert for a flagged transaction.
type AlertCreator interface {
	CreateFromAnalysis(ctx context.Context, tc *fraud.TransactionContext, analysis *fraud.Analysis) (*alerts.Alert, error)
}

// Notifier delivers a new alert to the user, fire and forget.
type Notifier interface {
	Dispatch(alert *alerts.Alert, recipientEmail string)
}

// Result is the full outcome of processing one transaction.
type Result struct {
	Transaction *Transaction    `json:"transaction"`
	Analysis    *fraud.Analysis `json:"analysis"`
	Alert       *alerts.Alert   `json:"alert,omitempty"`
}

// Service runs the transaction ingestion pipeline.
type Service struct {
	store    Store
	analyzer Analyzer
	alerter  AlertCreator
	notifier Notifier
	locks    *syncutil.ContextShardedMutex
	logger   *slog.Logger
}

// NewService creates the transaction service. notifier may be nil when
// notifications are disabled.
func NewService(store Store, analyzer Analyzer, alerter AlertCreator, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		analyzer: analyzer,
		alerter:  alerter,
		notifier: notifier,
		locks:    syncutil.NewContextShardedMutex(),
		logger:   logger,
	}
}

// Process validates, analyzes, and persists a transaction, opening an
// alert when the total score crosses the threshold. Transactions of one
// user are processed serially so velocity and location history stay
// consistent under concurrent submissions.
func (s *Service) Process(ctx context.Context, req *CreateRequest) (*Result, error) {
	if errs := validateCreate(req); len(errs) > 0 {
		return nil, errs
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	txn := &Transaction{
		ID:        idgen.WithPrefix("txn_"),
		UserID:    req.UserID,
		Amount:    req.Amount,
		Merchant:  validation.SanitizeString(req.Merchant, 200),
		Location:  validation.SanitizeString(req.Location, 200),
		CardType:  validation.SanitizeString(req.CardType, 50),
		DeviceID:  validation.SanitizeString(req.DeviceID, 100),
		Timestamp: ts,
		CreatedAt: time.Now().UTC(),
	}

	ctx = logging.WithUserID(ctx, txn.UserID)
	ctx, span := traces.StartSpan(ctx, "transactions.Process",
		traces.TransactionID(txn.ID),
		traces.UserID(txn.UserID),
	)
	defer span.End()

	unlock, err := s.locks.LockContext(ctx, txn.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tc := &fraud.TransactionContext{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		Amount:        txn.Amount,
		Merchant:      txn.Merchant,
		Location:      txn.Location,
		CardType:      txn.CardType,
		DeviceID:      txn.DeviceID,
		Timestamp:     txn.Timestamp,
	}

	// Analyze before persisting so the location history the rules see
	// excludes the transaction under analysis.
	analysis, err := s.analyzer.Analyze(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("analyze transaction: %w", err)
	}

	if err := s.store.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	result := &Result{Transaction: txn, Analysis: analysis}
	if !analysis.ShouldAlert {
		return result, nil
	}

	alert, err := s.alerter.CreateFromAnalysis(ctx, tc, analysis)
	if err != nil {
		// The transaction is stored and scored; surface the alert failure.
		return nil, fmt.Errorf("create alert: %w", err)
	}
	result.Alert = alert

	if s.notifier != nil {
		s.notifier.Dispatch(alert, req.UserEmail)
	}
	return result, nil
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// List returns transactions newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.List(ctx, ListFilter{UserID: userID, Limit: limit})
}

func validateCreate(req *CreateRequest) validation.ValidationErrors {
	return validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("merchant", req.Merchant),
		validation.NonNegative("amount", req.Amount),
		validation.MaxLength("userId", req.UserID, 100),
	)
}
