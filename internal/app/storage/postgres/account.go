package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.AccountRepository interface implementation
var _ storage.AccountRepository = (*AccountRepository)(nil)

type AccountRepository struct {
	db *sql.DB
}

func (r *AccountRepository) LoggerComponent() string {
	return "AccountRepository"
}

func NewAccountRepository(db *sql.DB) (*AccountRepository, error) {
	s := &AccountRepository{
		db: db,
	}
	return s, nil
}

// Read implementation of interface storage.AccountRepository
func (r *AccountRepository) Read(ctx context.Context, id string) (*model.Account, error) {
	const SQL = `
		SELECT id, balance, version, updated_at
		FROM accounts
		WHERE id=$1
`
	m := &model.Account{}

	err := r.db.QueryRowContext(ctx, SQL, id).Scan(&m.ID, &m.Balance, &m.Version, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// CompareAndSwap implementation of interface storage.AccountRepository
func (r *AccountRepository) CompareAndSwap(ctx context.Context, prev, next *model.Account) error {
	l := logger.Get(ctx, r).With().Str("account_id", next.ID).Logger()

	now := time.Now()
	var (
		res sql.Result
		err error
	)

	if prev == nil {
		const SQL = `
			INSERT INTO accounts (id, balance, version, updated_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (id) DO NOTHING
`
		res, err = r.db.ExecContext(ctx, SQL, next.ID, next.Balance, now)
	} else {
		const SQL = `
			UPDATE accounts
			SET balance=$1, version=version+1, updated_at=$2
			WHERE id=$3 AND version=$4
`
		res, err = r.db.ExecContext(ctx, SQL, next.Balance, now, next.ID, prev.Version)
	}

	if err != nil {
		if isSerializationFailure(err) {
			l.Debug().Err(err).Msg("Serialization failure")
			return apperr.ErrVersionConflict
		}
		if isIntegrityViolation(err) {
			return fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
		}
		return fmt.Errorf("write: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		l.Debug().Msg("Version moved")
		return apperr.ErrVersionConflict
	}

	next.Version = 1
	if prev != nil {
		next.Version = prev.Version + 1
	}
	next.UpdatedAt = now

	return nil
}
