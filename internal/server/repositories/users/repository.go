// Package users persists User rows mirrored from the external provider.
package users

import (
	"context"

	"github.com/dotkom/vengeful/internal/server/models"
)

type Repository interface {
	GetByOWUserID(ctx context.Context, owUserID int64) (*models.User, error)
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	// Create inserts the user and fills in the database-assigned UserID.
	Create(ctx context.Context, u *models.User) (*models.User, error)
	// UpdateDisplayFields overwrites names and email.
	UpdateDisplayFields(ctx context.Context, u *models.User) error
}
