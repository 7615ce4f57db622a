package models

// PunishmentType is a per-group catalog entry: a named infraction category
// with a point value. The number of types per group is capped by config.
type PunishmentType struct {
	PunishmentTypeID int64  `json:"punishment_type_id"`
	GroupID          int64  `json:"-"`
	Name             string `json:"name"`
	Value            int    `json:"value"`
	LogoURL          string `json:"logo_url"`
}
