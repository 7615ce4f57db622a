// Package models holds the persisted row types shared by repositories and
// services. Surrogate ids are assigned by the database and never change;
// the ow_* fields are the external provider's identifiers and are the only
// merge keys used during reconciliation.
package models

// Group mirrors one row of the groups table. Display fields are owned by the
// external provider and overwritten on every sync.
type Group struct {
	GroupID   int64  `json:"group_id"`
	OWGroupID int64  `json:"ow_group_id"`
	Name      string `json:"name"`
	NameShort string `json:"name_short"`
	Rules     string `json:"rules"`
	Image     string `json:"image"`
}
