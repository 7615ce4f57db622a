package models

import "time"

// Punishment is one infraction given to a group member. PunishmentTypeID is
// kept as a historical reference even after the type is deleted from the
// catalog, so there is deliberately no foreign key on it.
type Punishment struct {
	PunishmentID     int64      `json:"punishment_id"`
	PunishmentTypeID int64      `json:"punishment_type_id"`
	GroupID          int64      `json:"group_id"`
	UserID           int64      `json:"user_id"`
	Reason           string     `json:"reason"`
	Amount           int        `json:"amount"`
	CreatedTime      time.Time  `json:"created_time"`
	CreatedBy        int64      `json:"created_by"`
	VerifiedTime     *time.Time `json:"verified_time"`
	VerifiedBy       *int64     `json:"verified_by"`
}

// Verified reports whether the punishment has been verified by another
// member. A punishment is verified at most once.
func (p *Punishment) Verified() bool {
	return p.VerifiedTime != nil
}
