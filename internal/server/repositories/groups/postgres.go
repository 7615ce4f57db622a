package groups

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

func (r *PostgresRepository) GetByOWGroupID(ctx context.Context, owGroupID int64) (*models.Group, error) {
	query :=
		`SELECT group_id, ow_group_id, name, name_short, rules, image FROM groups
		 WHERE ow_group_id = $1
		 `

	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, owGroupID).
		Scan(&g.GroupID, &g.OWGroupID, &g.Name, &g.NameShort, &g.Rules, &g.Image)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return g, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, groupID int64) (*models.Group, error) {
	query :=
		`SELECT group_id, ow_group_id, name, name_short, rules, image FROM groups
		 WHERE group_id = $1
		 `

	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, groupID).
		Scan(&g.GroupID, &g.OWGroupID, &g.Name, &g.NameShort, &g.Rules, &g.Image)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return g, nil
}

func (r *PostgresRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Group, error) {
	query :=
		`SELECT g.group_id, g.ow_group_id, g.name, g.name_short, g.rules, g.image
		 FROM groups g
		 JOIN group_members gm ON gm.group_id = g.group_id
		 WHERE gm.user_id = $1 AND gm.active
		 ORDER BY g.group_id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.GroupID, &g.OWGroupID, &g.Name, &g.NameShort, &g.Rules, &g.Image); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return groups, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Group, error) {
	query :=
		`SELECT group_id, ow_group_id, name, name_short, rules, image FROM groups
		 ORDER BY group_id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.GroupID, &g.OWGroupID, &g.Name, &g.NameShort, &g.Rules, &g.Image); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return groups, nil
}

func (r *PostgresRepository) Create(ctx context.Context, g *models.Group) (*models.Group, error) {
	query :=
		`INSERT INTO groups (ow_group_id, name, name_short, rules, image)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING group_id
		 `

	err := r.db.QueryRowContext(ctx, query,
		g.OWGroupID, g.Name, g.NameShort, g.Rules, g.Image).Scan(&g.GroupID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return g, nil
}

func (r *PostgresRepository) UpdateDisplayFields(ctx context.Context, g *models.Group) error {
	query :=
		`UPDATE groups SET name = $2, name_short = $3, rules = $4, image = $5
		 WHERE group_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query,
		g.GroupID, g.Name, g.NameShort, g.Rules, g.Image); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
