package services

import (
	"context"
	"database/sql"

	"github.com/dotkom/vengeful/internal/dbx"
	"github.com/dotkom/vengeful/internal/server/models"
	"github.com/dotkom/vengeful/internal/server/repositories/repomanager"
)

// MemberDetail is one roster entry of a group, with the member's punishment
// history attached. Inactive members are included so that history stays
// visible after someone leaves; clients filter on Active.
type MemberDetail struct {
	UserID        int64                `json:"user_id"`
	OWUserID      int64                `json:"ow_user_id"`
	OWGroupUserID int64                `json:"ow_group_user_id"`
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	Email         *string              `json:"email"`
	Active        bool                 `json:"active"`
	Punishments   []*models.Punishment `json:"punishments"`
}

// GroupDetail is a group with its punishment-type catalog and full roster.
type GroupDetail struct {
	models.Group
	PunishmentTypes []*models.PunishmentType `json:"punishment_types"`
	Members         []*MemberDetail          `json:"members"`
}

// GroupService is the read side: group listings and punishment histories.
// Multi-entity reads run in a read-only transaction so a concurrent
// reconciliation cannot produce a roster that is half old, half new.
type GroupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewGroupService(db *sql.DB, m repomanager.RepositoryManager) *GroupService {
	return &GroupService{db: db, repomanager: m}
}

// UserByOWID resolves a local user from the external id carried by an access
// token.
func (s *GroupService) UserByOWID(ctx context.Context, owUserID int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByOWUserID(ctx, owUserID)
}

// MyGroups lists the groups in which the user is an active member.
func (s *GroupService) MyGroups(ctx context.Context, userID int64) ([]*models.Group, error) {
	return s.repomanager.Groups(s.db).ListByUserID(ctx, userID)
}

// Group returns a group with its catalog and roster.
func (s *GroupService) Group(ctx context.Context, groupID int64) (*GroupDetail, error) {
	var detail *GroupDetail
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx dbx.DBTX) error {
		group, err := s.repomanager.Groups(tx).GetByID(ctx, groupID)
		if err != nil {
			return err
		}

		types, err := s.repomanager.PunishmentTypes(tx).ListByGroup(ctx, groupID)
		if err != nil {
			return err
		}

		members, err := s.members(ctx, tx, groupID)
		if err != nil {
			return err
		}

		detail = &GroupDetail{Group: *group, PunishmentTypes: types, Members: members}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// GroupUsers lists all members of a group with their punishments.
func (s *GroupService) GroupUsers(ctx context.Context, groupID int64) ([]*MemberDetail, error) {
	var members []*MemberDetail
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Groups(tx).GetByID(ctx, groupID); err != nil {
			return err
		}
		var err error
		members, err = s.members(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// GroupUser returns one member of a group with their punishment history.
func (s *GroupService) GroupUser(ctx context.Context, groupID, userID int64) (*MemberDetail, error) {
	var member *MemberDetail
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx dbx.DBTX) error {
		membership, err := s.repomanager.Memberships(tx).GetByGroupAndUser(ctx, groupID, userID)
		if err != nil {
			return err
		}
		member, err = s.memberDetail(ctx, tx, membership)
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *GroupService) members(ctx context.Context, tx dbx.DBTX, groupID int64) ([]*MemberDetail, error) {
	memberships, err := s.repomanager.Memberships(tx).ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members := make([]*MemberDetail, 0, len(memberships))
	for _, membership := range memberships {
		detail, err := s.memberDetail(ctx, tx, membership)
		if err != nil {
			return nil, err
		}
		members = append(members, detail)
	}
	return members, nil
}

func (s *GroupService) memberDetail(ctx context.Context, tx dbx.DBTX, membership *models.GroupMember) (*MemberDetail, error) {
	user, err := s.repomanager.Users(tx).GetByID(ctx, membership.UserID)
	if err != nil {
		return nil, err
	}

	punishments, err := s.repomanager.Punishments(tx).ListByGroupAndUser(ctx, membership.GroupID, membership.UserID)
	if err != nil {
		return nil, err
	}

	return &MemberDetail{
		UserID:        user.UserID,
		OWUserID:      user.OWUserID,
		OWGroupUserID: membership.OWGroupUserID,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		Active:        membership.Active,
		Punishments:   punishments,
	}, nil
}
