// Package memberships persists the User-Group join facts. Reconciliation
// toggles the active flag; rows are never deleted, which is what keeps
// punishment history readable after a member leaves.
package memberships

import (
	"context"

	"github.com/dotkom/vengeful/internal/server/models"
)

type Repository interface {
	// GetByOWGroupUserID looks a membership up by its external merge key.
	GetByOWGroupUserID(ctx context.Context, owGroupUserID int64) (*models.GroupMember, error)
	GetByGroupAndUser(ctx context.Context, groupID, userID int64) (*models.GroupMember, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*models.GroupMember, error)
	Create(ctx context.Context, m *models.GroupMember) error
	SetActive(ctx context.Context, owGroupUserID int64, active bool) error
}
