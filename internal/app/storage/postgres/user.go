package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.UserRepository interface implementation
var _ storage.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	db *sql.DB
}

func (r *UserRepository) LoggerComponent() string {
	return "UserRepository"
}

func NewUserRepository(db *sql.DB) (*UserRepository, error) {
	s := &UserRepository{
		db: db,
	}
	return s, nil
}

// Create implementation of interface storage.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	const SQL = `
		INSERT INTO users (id, name, password)
		VALUES ($1, $2, crypt($3, gen_salt('bf')))
`

	_, err := r.db.ExecContext(ctx, SQL, user.ID, user.Name, user.Password)
	if err != nil {
		if isIntegrityViolation(err) {
			return nil, apperr.ErrConflict
		}

		return nil, fmt.Errorf("insert: %w", err)
	}

	return &model.User{ID: user.ID, Name: user.Name}, nil
}

// Read implementation of interface storage.UserRepository
func (r *UserRepository) Read(ctx context.Context, id string) (*model.User, error) {
	const SQL = `
		SELECT id, name
		FROM users
		WHERE id=$1
`
	user := &model.User{}

	err := r.db.QueryRowContext(ctx, SQL, id).Scan(&user.ID, &user.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return user, nil
}

// ReadByIDAndPassword implementation of interface storage.UserRepository
func (r *UserRepository) ReadByIDAndPassword(ctx context.Context, id string, password string) (*model.User, error) {
	const SQL = `
		SELECT id, name
		FROM users
		WHERE id = $1
		AND password = crypt($2, password)
`
	user := &model.User{}

	err := r.db.QueryRowContext(ctx, SQL, id, password).Scan(&user.ID, &user.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return user, nil
}
