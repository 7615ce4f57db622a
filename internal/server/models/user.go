package models

// User mirrors one row of the users table. Name and email come from the
// external provider and are not locally editable.
type User struct {
	UserID    int64   `json:"user_id"`
	OWUserID  int64   `json:"ow_user_id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email"`
}
