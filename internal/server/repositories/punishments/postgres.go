package punishments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

const selectColumns = `punishment_id, punishment_type_id, group_id, user_id, reason, amount,
		created_time, created_by, verified_time, verified_by`

func scanPunishment(row interface{ Scan(dest ...any) error }) (*models.Punishment, error) {
	p := &models.Punishment{}
	err := row.Scan(&p.PunishmentID, &p.PunishmentTypeID, &p.GroupID, &p.UserID,
		&p.Reason, &p.Amount, &p.CreatedTime, &p.CreatedBy, &p.VerifiedTime, &p.VerifiedBy)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, punishmentID int64) (*models.Punishment, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM punishments
		 WHERE punishment_id = $1
		 `

	p, err := scanPunishment(r.db.QueryRowContext(ctx, query, punishmentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) ListByGroupAndUser(ctx context.Context, groupID, userID int64) ([]*models.Punishment, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM punishments
		 WHERE group_id = $1 AND user_id = $2
		 ORDER BY punishment_id
		 `

	rows, err := r.db.QueryContext(ctx, query, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Punishment, 0)
	for rows.Next() {
		p, err := scanPunishment(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return list, nil
}

func (r *PostgresRepository) CountByGroup(ctx context.Context, groupID int64) (int, error) {
	query :=
		`SELECT COUNT(*) FROM punishments
		 WHERE group_id = $1
		 `

	var n int
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Punishment) (*models.Punishment, error) {
	query :=
		`INSERT INTO punishments (punishment_type_id, group_id, user_id, reason, amount, created_time, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING punishment_id
		 `

	err := r.db.QueryRowContext(ctx, query,
		p.PunishmentTypeID, p.GroupID, p.UserID, p.Reason, p.Amount,
		p.CreatedTime, p.CreatedBy).Scan(&p.PunishmentID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) Verify(ctx context.Context, punishmentID, verifiedBy int64, verifiedTime time.Time) (*models.Punishment, error) {
	// The verified_time IS NULL predicate makes "verify exactly once" hold
	// even if two verifies race within snapshot isolation.
	query :=
		`UPDATE punishments SET verified_time = $2, verified_by = $3
		 WHERE punishment_id = $1 AND verified_time IS NULL
		 RETURNING ` + selectColumns + `
		 `

	p, err := scanPunishment(r.db.QueryRowContext(ctx, query, punishmentID, verifiedTime, verifiedBy))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, punishmentID int64) error {
	query :=
		`DELETE FROM punishments
		 WHERE punishment_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, punishmentID)
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
