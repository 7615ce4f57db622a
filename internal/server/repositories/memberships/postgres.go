package memberships

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

func (r *PostgresRepository) GetByOWGroupUserID(ctx context.Context, owGroupUserID int64) (*models.GroupMember, error) {
	query :=
		`SELECT group_id, user_id, ow_group_user_id, active FROM group_members
		 WHERE ow_group_user_id = $1
		 `

	m := &models.GroupMember{}
	err := r.db.QueryRowContext(ctx, query, owGroupUserID).
		Scan(&m.GroupID, &m.UserID, &m.OWGroupUserID, &m.Active)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) GetByGroupAndUser(ctx context.Context, groupID, userID int64) (*models.GroupMember, error) {
	query :=
		`SELECT group_id, user_id, ow_group_user_id, active FROM group_members
		 WHERE group_id = $1 AND user_id = $2
		 `

	m := &models.GroupMember{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).
		Scan(&m.GroupID, &m.UserID, &m.OWGroupUserID, &m.Active)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID int64) ([]*models.GroupMember, error) {
	query :=
		`SELECT group_id, user_id, ow_group_user_id, active FROM group_members
		 WHERE group_id = $1
		 ORDER BY user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	members := make([]*models.GroupMember, 0)
	for rows.Next() {
		m := &models.GroupMember{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.OWGroupUserID, &m.Active); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return members, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.GroupMember) error {
	query :=
		`INSERT INTO group_members (group_id, user_id, ow_group_user_id, active)
		 VALUES ($1, $2, $3, $4)
		 `

	if _, err := r.db.ExecContext(ctx, query,
		m.GroupID, m.UserID, m.OWGroupUserID, m.Active); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, owGroupUserID int64, active bool) error {
	query :=
		`UPDATE group_members SET active = $2
		 WHERE ow_group_user_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, owGroupUserID, active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}
