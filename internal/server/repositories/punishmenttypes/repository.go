// Package punishmenttypes persists the per-group punishment-type catalog.
package punishmenttypes

import (
	"context"

	"github.com/dotkom/vengeful/internal/server/models"
)

type Repository interface {
	ListByGroup(ctx context.Context, groupID int64) ([]*models.PunishmentType, error)
	CountByGroup(ctx context.Context, groupID int64) (int, error)
	GetByID(ctx context.Context, groupID, punishmentTypeID int64) (*models.PunishmentType, error)
	// Create inserts the type and fills in the database-assigned id.
	Create(ctx context.Context, t *models.PunishmentType) (*models.PunishmentType, error)
	// Delete removes the catalog entry. Punishments given under the type are
	// untouched.
	Delete(ctx context.Context, groupID, punishmentTypeID int64) error
}
