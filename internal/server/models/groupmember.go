package models

// GroupMember links a User to a Group. Reconciliation only ever flips Active;
// the row itself is never deleted, so punishment history stays attached to a
// member who has left the group.
type GroupMember struct {
	GroupID       int64 `json:"group_id"`
	UserID        int64 `json:"user_id"`
	OWGroupUserID int64 `json:"ow_group_user_id"`
	Active        bool  `json:"active"`
}
