package alerts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fraudguard/fraudguard/internal/fraud"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed alert store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the alerts table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id             VARCHAR(36) PRIMARY KEY,
			transaction_id VARCHAR(36) NOT NULL UNIQUE,
			user_id        VARCHAR(100) NOT NULL,
			amount         DOUBLE PRECISION NOT NULL,
			merchant       VARCHAR(200) NOT NULL,
			location       VARCHAR(200) NOT NULL,
			rule_score     DOUBLE PRECISION NOT NULL,
			ai_score       DOUBLE PRECISION NOT NULL,
			total_score    DOUBLE PRECISION NOT NULL,
			risk_level     VARCHAR(10) NOT NULL,
			violated_rules TEXT[] NOT NULL DEFAULT '{}',
			degraded       BOOLEAN NOT NULL DEFAULT FALSE,
			status         VARCHAR(20) NOT NULL DEFAULT 'pending',
			notes          TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
		CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, alert *Alert) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO alerts (id, transaction_id, user_id, amount, merchant, location,
			rule_score, ai_score, total_score, risk_level, violated_rules, degraded,
			status, notes, created_at, updated_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		alert.ID, alert.TransactionID, alert.UserID, alert.Amount, alert.Merchant, alert.Location,
		alert.RuleScore, alert.AIScore, alert.TotalScore, string(alert.RiskLevel),
		pq.Array(alert.ViolatedRules), alert.Degraded,
		string(alert.Status), alert.Notes, alert.CreatedAt, alert.UpdatedAt, alert.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Alert, error) {
	row := p.db.QueryRowContext(ctx, selectAlert+` WHERE id = $1`, id)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

func (p *PostgresStore) GetByTransaction(ctx context.Context, transactionID string) (*Alert, error) {
	row := p.db.QueryRowContext(ctx, selectAlert+` WHERE transaction_id = $1`, transactionID)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert by transaction: %w", err)
	}
	return alert, nil
}

func (p *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	query := selectAlert
	var args []interface{}
	var where []string

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var result []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, alert *Alert) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE alerts
		SET status = $2, notes = $3, updated_at = $4, resolved_at = $5
		WHERE id = $1
	`, alert.ID, string(alert.Status), alert.Notes, alert.UpdatedAt, alert.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

const selectAlert = `
	SELECT id, transaction_id, user_id, amount, merchant, location,
		rule_score, ai_score, total_score, risk_level, violated_rules, degraded,
		status, notes, created_at, updated_at, resolved_at
	FROM alerts`

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(s scanner) (*Alert, error) {
	var a Alert
	var riskLevel, status string
	var resolvedAt sql.NullTime
	err := s.Scan(&a.ID, &a.TransactionID, &a.UserID, &a.Amount, &a.Merchant, &a.Location,
		&a.RuleScore, &a.AIScore, &a.TotalScore, &riskLevel, pq.Array(&a.ViolatedRules), &a.Degraded,
		&status, &a.Notes, &a.CreatedAt, &a.UpdatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	a.RiskLevel = fraud.RiskLevel(riskLevel)
	a.Status = Status(status)
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}
