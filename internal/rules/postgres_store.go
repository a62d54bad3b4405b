package rules

import (
	"context"
	"database/sql"
	"fmt"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed rule store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the rules table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rules (
			id          VARCHAR(36) PRIMARY KEY,
			name        VARCHAR(200) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			rule_type   VARCHAR(20) NOT NULL,
			condition   VARCHAR(20) NOT NULL,
			threshold   DOUBLE PRECISION NOT NULL,
			weight      DOUBLE PRECISION NOT NULL,
			active      BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(active);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, rule *Rule) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, description, rule_type, condition, threshold, weight, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rule.ID, rule.Name, rule.Description, string(rule.RuleType), string(rule.Condition),
		rule.Threshold, rule.Weight, rule.Active, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Rule, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, description, rule_type, condition, threshold, weight, active, created_at, updated_at
		FROM rules WHERE id = $1
	`, id)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (p *PostgresStore) List(ctx context.Context, activeOnly bool) ([]*Rule, error) {
	query := `
		SELECT id, name, description, rule_type, condition, threshold, weight, active, created_at, updated_at
		FROM rules`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var result []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, rule *Rule) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rules
		SET name = $2, description = $3, threshold = $4, weight = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, rule.ID, rule.Name, rule.Description, rule.Threshold, rule.Weight, rule.Active, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(s scanner) (*Rule, error) {
	var r Rule
	var ruleType, condition string
	err := s.Scan(&r.ID, &r.Name, &r.Description, &ruleType, &condition,
		&r.Threshold, &r.Weight, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.RuleType = Type(ruleType)
	r.Condition = Condition(condition)
	return &r, nil
}
