package repomanager

import (
	"context"
	"database/sql"

	"github.com/dotkom/vengeful/internal/dbx"
	"github.com/dotkom/vengeful/internal/server/repositories/groups"
	"github.com/dotkom/vengeful/internal/server/repositories/memberships"
	"github.com/dotkom/vengeful/internal/server/repositories/punishments"
	"github.com/dotkom/vengeful/internal/server/repositories/punishmenttypes"
	"github.com/dotkom/vengeful/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same wiring
// serves plain reads (bind *sql.DB) and transactional flows (bind *sql.Tx).
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Groups(db dbx.DBTX) groups.Repository
	Users(db dbx.DBTX) users.Repository
	Memberships(db dbx.DBTX) memberships.Repository
	PunishmentTypes(db dbx.DBTX) punishmenttypes.Repository
	Punishments(db dbx.DBTX) punishments.Repository
}
