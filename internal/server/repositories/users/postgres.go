package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/dbx"
	"github.com/dotkom/vengeful/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByOWUserID(ctx context.Context, owUserID int64) (*models.User, error) {
	query :=
		`SELECT user_id, ow_user_id, first_name, last_name, email FROM users
		 WHERE ow_user_id = $1
		 `

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, owUserID).
		Scan(&u.UserID, &u.OWUserID, &u.FirstName, &u.LastName, &u.Email)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query :=
		`SELECT user_id, ow_user_id, first_name, last_name, email FROM users
		 WHERE user_id = $1
		 `

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&u.UserID, &u.OWUserID, &u.FirstName, &u.LastName, &u.Email)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (ow_user_id, first_name, last_name, email)
		 VALUES ($1, $2, $3, $4)
		 RETURNING user_id
		 `

	err := r.db.QueryRowContext(ctx, query,
		u.OWUserID, u.FirstName, u.LastName, u.Email).Scan(&u.UserID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) UpdateDisplayFields(ctx context.Context, u *models.User) error {
	query :=
		`UPDATE users SET first_name = $2, last_name = $3, email = $4
		 WHERE user_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query,
		u.UserID, u.FirstName, u.LastName, u.Email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
