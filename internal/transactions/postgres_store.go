package transactions

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

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id         VARCHAR(36) PRIMARY KEY,
			user_id    VARCHAR(100) NOT NULL,
			amount     DOUBLE PRECISION NOT NULL,
			merchant   VARCHAR(200) NOT NULL,
			location   VARCHAR(200) NOT NULL DEFAULT '',
			card_type  VARCHAR(50) NOT NULL DEFAULT '',
			device_id  VARCHAR(100) NOT NULL DEFAULT '',
			timestamp  TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, timestamp DESC);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, txn *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, merchant, location, card_type, device_id, timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		txn.ID, txn.UserID, txn.Amount, txn.Merchant, txn.Location,
		txn.CardType, txn.DeviceID, txn.Timestamp, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, selectTransaction+` WHERE id = $1`, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

func (p *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	query := selectTransaction
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []*Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, txn)
	}
	return result, rows.Err()
}

func (p *PostgresStore) DistinctLocations(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT location FROM transactions
		WHERE user_id = $1 AND location <> ''
		ORDER BY location ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("distinct locations: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}

const selectTransaction = `
	SELECT id, user_id, amount, merchant, location, card_type, device_id, timestamp, created_at
	FROM transactions`

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	var t Transaction
	err := s.Scan(&t.ID, &t.UserID, &t.Amount, &t.Merchant, &t.Location,
		&t.CardType, &t.DeviceID, &t.Timestamp, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
