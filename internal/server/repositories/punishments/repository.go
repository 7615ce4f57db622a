// Package punishments persists punishment instances and their verification
// state.
package punishments

import (
	"context"
	"time"

	"github.com/dotkom/vengeful/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, punishmentID int64) (*models.Punishment, error)
	ListByGroupAndUser(ctx context.Context, groupID, userID int64) ([]*models.Punishment, error)
	CountByGroup(ctx context.Context, groupID int64) (int, error)
	// Create inserts the punishment and fills in the database-assigned id.
	Create(ctx context.Context, p *models.Punishment) (*models.Punishment, error)
	// Verify stamps verified_time/verified_by on a not-yet-verified
	// punishment and returns the updated row.
	Verify(ctx context.Context, punishmentID, verifiedBy int64, verifiedTime time.Time) (*models.Punishment, error)
	// Delete removes the punishment for good; deleting an absent id reports
	// not-found.
	Delete(ctx context.Context, punishmentID int64) error
}
