// Package policy is the authorization guard for the punishment ledger: a set
// of pure decision functions over membership and punishment facts. Callers
// load the facts inside the same transaction that performs the mutation, so
// a concurrent reconciliation cannot flip membership state between the check
// and the write it authorizes.
//
// Rules:
//   - Any mutating call scoped to a group requires an active membership.
//   - The punishment-type catalog is capped per group.
//   - A punishment may target any active member, including the actor.
//   - The creator may not verify their own punishment; verification happens
//     at most once.
//   - Only the creator may delete a punishment.
package policy

import (
	"fmt"

	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/server/models"
)

// CanCreatePunishmentType allows an active member to add a catalog entry as
// long as the group is below the configured cap.
func CanCreatePunishmentType(actorActive bool, typeCount, maxTypes int) error {
	if !actorActive {
		return fmt.Errorf("%w: not an active member of the group", common.ErrForbidden)
	}
	if typeCount >= maxTypes {
		return fmt.Errorf("%w: punishment type limit (%d) reached", common.ErrValidation, maxTypes)
	}
	return nil
}

// CanDeletePunishmentType allows any active member to remove a catalog entry.
func CanDeletePunishmentType(actorActive bool) error {
	if !actorActive {
		return fmt.Errorf("%w: not an active member of the group", common.ErrForbidden)
	}
	return nil
}

// CanCreatePunishment allows an active member to punish any active member of
// the same group, themselves included.
func CanCreatePunishment(actorActive, targetActive bool) error {
	if !actorActive {
		return fmt.Errorf("%w: not an active member of the group", common.ErrForbidden)
	}
	if !targetActive {
		return fmt.Errorf("%w: target is not an active member of the group", common.ErrValidation)
	}
	return nil
}

// CanVerifyPunishment allows an active member other than the creator to
// verify a punishment exactly once.
func CanVerifyPunishment(actorID int64, actorActive bool, p *models.Punishment) error {
	if p == nil {
		return common.ErrNotFound
	}
	if !actorActive {
		return fmt.Errorf("%w: not an active member of the group", common.ErrForbidden)
	}
	if p.CreatedBy == actorID {
		return fmt.Errorf("%w: cannot verify own punishment", common.ErrForbidden)
	}
	if p.Verified() {
		return fmt.Errorf("%w: already verified", common.ErrConflict)
	}
	return nil
}

// CanDeletePunishment allows only the creator to delete a punishment.
// Deletion is permitted whether or not the punishment has been verified.
func CanDeletePunishment(actorID int64, p *models.Punishment) error {
	if p == nil {
		return common.ErrNotFound
	}
	if p.CreatedBy != actorID {
		return fmt.Errorf("%w: only the creator can delete a punishment", common.ErrForbidden)
	}
	return nil
}
