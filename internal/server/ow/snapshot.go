// Package ow is the client for the external group provider: a read-only,
// pull-based feed of group snapshots. The feed is treated as untrusted and
// eventually consistent; snapshots are validated before any local merge and
// a fetch failure never leaves partial state behind.
package ow

import (
	"fmt"

	"github.com/dotkom/vengeful/internal/common"
)

// Member is one roster entry of a group snapshot, keyed by the provider's
// stable identifiers.
type Member struct {
	OWUserID      int64   `json:"ow_user_id"`
	OWGroupUserID int64   `json:"ow_group_user_id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Email         *string `json:"email"`
}

// Group is a point-in-time snapshot of one group: display metadata plus the
// current member roster.
type Group struct {
	OWGroupID int64    `json:"ow_group_id"`
	Name      string   `json:"name"`
	NameShort string   `json:"name_short"`
	Rules     string   `json:"rules"`
	Image     string   `json:"image"`
	Members   []Member `json:"members"`
}

// Validate rejects snapshots that cannot be merged safely: missing external
// ids, duplicated merge keys, or a roster above the configured member cap.
func (g *Group) Validate(maxMembers int) error {
	if g.OWGroupID == 0 {
		return fmt.Errorf("%w: snapshot group without ow_group_id", common.ErrValidation)
	}
	if len(g.Members) > maxMembers {
		return fmt.Errorf("%w: snapshot roster exceeds member limit (%d)", common.ErrValidation, maxMembers)
	}

	seen := make(map[int64]struct{}, len(g.Members))
	for _, m := range g.Members {
		if m.OWUserID == 0 || m.OWGroupUserID == 0 {
			return fmt.Errorf("%w: snapshot member without external ids", common.ErrValidation)
		}
		if _, ok := seen[m.OWGroupUserID]; ok {
			return fmt.Errorf("%w: duplicate ow_group_user_id %d in snapshot", common.ErrValidation, m.OWGroupUserID)
		}
		seen[m.OWGroupUserID] = struct{}{}
	}

	return nil
}
