package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.TransactionRepository interface implementation
var _ storage.TransactionRepository = (*TransactionRepository)(nil)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) (*TransactionRepository, error) {
	s := &TransactionRepository{
		db: db,
	}
	return s, nil
}

// Append implementation of interface storage.TransactionRepository
func (r *TransactionRepository) Append(ctx context.Context, m *model.TransactionRecord) error {
	const SQL = `
		INSERT INTO transactions (id, transaction_id, account_id, amount, direction, kind, counterparty_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, SQL,
		m.ID, m.TransactionID, m.AccountID, m.Amount, m.Direction, m.Kind, m.CounterpartyID, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

// AllByAccountID implementation of interface storage.TransactionRepository
func (r *TransactionRepository) AllByAccountID(ctx context.Context, accountID string) ([]*model.TransactionRecord, error) {
	l := logger.Ctx(ctx).With().Str("method", "AllByAccountID").Logger()

	const SQL = `
		SELECT id, transaction_id, account_id, amount, direction, kind, counterparty_id, status, created_at
		FROM transactions
		WHERE account_id=$1
		ORDER BY seq
`
	rows, err := r.db.QueryContext(ctx, SQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.TransactionRecord, 0)

	for rows.Next() {
		m := &model.TransactionRecord{}
		if err := rows.Scan(&m.ID, &m.TransactionID, &m.AccountID, &m.Amount, &m.Direction, &m.Kind, &m.CounterpartyID, &m.Status, &m.CreatedAt); err != nil {
			l.Debug().Err(err).Send()
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}
