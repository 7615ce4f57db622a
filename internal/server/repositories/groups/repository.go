// Package groups persists Group rows. Groups are created on first external
// sighting and updated in place afterwards; they are never deleted.
package groups

import (
	"context"

	"github.com/dotkom/vengeful/internal/server/models"
)

type Repository interface {
	// GetByOWGroupID looks a group up by its external merge key.
	GetByOWGroupID(ctx context.Context, owGroupID int64) (*models.Group, error)
	GetByID(ctx context.Context, groupID int64) (*models.Group, error)
	// ListByUserID returns the groups in which the user holds an active
	// membership.
	ListByUserID(ctx context.Context, userID int64) ([]*models.Group, error)
	// ListAll returns every locally known group; the periodic sync walks
	// this list.
	ListAll(ctx context.Context) ([]*models.Group, error)
	// Create inserts the group and fills in the database-assigned GroupID.
	Create(ctx context.Context, g *models.Group) (*models.Group, error)
	// UpdateDisplayFields overwrites name, short name, rules and image.
	UpdateDisplayFields(ctx context.Context, g *models.Group) error
}
