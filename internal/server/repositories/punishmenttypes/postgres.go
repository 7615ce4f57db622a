package punishmenttypes

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

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID int64) ([]*models.PunishmentType, error) {
	query :=
		`SELECT punishment_type_id, group_id, name, value, logo_url FROM punishment_types
		 WHERE group_id = $1
		 ORDER BY punishment_type_id
		 `

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	types := make([]*models.PunishmentType, 0)
	for rows.Next() {
		t := &models.PunishmentType{}
		if err := rows.Scan(&t.PunishmentTypeID, &t.GroupID, &t.Name, &t.Value, &t.LogoURL); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return types, nil
}

func (r *PostgresRepository) CountByGroup(ctx context.Context, groupID int64) (int, error) {
	query :=
		`SELECT COUNT(*) FROM punishment_types
		 WHERE group_id = $1
		 `

	var n int
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, groupID, punishmentTypeID int64) (*models.PunishmentType, error) {
	query :=
		`SELECT punishment_type_id, group_id, name, value, logo_url FROM punishment_types
		 WHERE group_id = $1 AND punishment_type_id = $2
		 `

	t := &models.PunishmentType{}
	err := r.db.QueryRowContext(ctx, query, groupID, punishmentTypeID).
		Scan(&t.PunishmentTypeID, &t.GroupID, &t.Name, &t.Value, &t.LogoURL)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.PunishmentType) (*models.PunishmentType, error) {
	query :=
		`INSERT INTO punishment_types (group_id, name, value, logo_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING punishment_type_id
		 `

	err := r.db.QueryRowContext(ctx, query,
		t.GroupID, t.Name, t.Value, t.LogoURL).Scan(&t.PunishmentTypeID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, groupID, punishmentTypeID int64) error {
	query :=
		`DELETE FROM punishment_types
		 WHERE group_id = $1 AND punishment_type_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, groupID, punishmentTypeID)
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
