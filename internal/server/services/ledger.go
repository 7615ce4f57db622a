package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/dbx"
	"github.com/dotkom/vengeful/internal/server/config"
	"github.com/dotkom/vengeful/internal/server/models"
	"github.com/dotkom/vengeful/internal/server/policy"
	"github.com/dotkom/vengeful/internal/server/repositories/memberships"
	"github.com/dotkom/vengeful/internal/server/repositories/repomanager"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// NewPunishmentType is the validated input for a catalog entry.
type NewPunishmentType struct {
	Name    string `json:"name"`
	Value   int    `json:"value"`
	LogoURL string `json:"logo_url"`
}

// NewPunishment is one item of a punishment-creation batch.
type NewPunishment struct {
	PunishmentTypeID int64  `json:"punishment_type_id"`
	Reason           string `json:"reason"`
	Amount           int    `json:"amount"`
}

// LedgerService owns the punishment-type catalog and the punishment
// lifecycle. Every mutation loads its authorization facts and writes inside
// a single transaction, so the policy check and the write it authorizes see
// the same membership state.
type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
}

func NewLedgerService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *LedgerService {
	return &LedgerService{db: db, repomanager: m, config: cfg}
}

// memberActive reports whether the user currently holds an active membership
// in the group. An absent membership row counts as inactive.
func memberActive(ctx context.Context, repo memberships.Repository, groupID, userID int64) (bool, error) {
	m, err := repo.GetByGroupAndUser(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.Active, nil
}

// CreatePunishmentType adds a catalog entry to the group, subject to the
// per-group cap.
func (s *LedgerService) CreatePunishmentType(ctx context.Context, actorUserID, groupID int64, spec NewPunishmentType) (*models.PunishmentType, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: punishment type name is required", common.ErrValidation)
	}
	if spec.Value < 0 {
		return nil, fmt.Errorf("%w: punishment type value cannot be negative", common.ErrValidation)
	}

	var created *models.PunishmentType
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		active, err := memberActive(ctx, s.repomanager.Memberships(tx), groupID, actorUserID)
		if err != nil {
			return err
		}

		typeRepo := s.repomanager.PunishmentTypes(tx)
		count, err := typeRepo.CountByGroup(ctx, groupID)
		if err != nil {
			return err
		}

		if err := policy.CanCreatePunishmentType(active, count, s.config.MaxPunishmentTypes); err != nil {
			return err
		}

		created, err = typeRepo.Create(ctx, &models.PunishmentType{
			GroupID: groupID,
			Name:    spec.Name,
			Value:   spec.Value,
			LogoURL: spec.LogoURL,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeletePunishmentType removes a catalog entry. Punishments already given
// under the type keep referencing it historically.
func (s *LedgerService) DeletePunishmentType(ctx context.Context, actorUserID, groupID, punishmentTypeID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		active, err := memberActive(ctx, s.repomanager.Memberships(tx), groupID, actorUserID)
		if err != nil {
			return err
		}
		if err := policy.CanDeletePunishmentType(active); err != nil {
			return err
		}
		return s.repomanager.PunishmentTypes(tx).Delete(ctx, groupID, punishmentTypeID)
	})
}

// CreatePunishments applies a batch of punishments to one member. The batch
// is all-or-nothing: the first item that fails validation rejects the whole
// batch. On success the ordered list of assigned ids is returned.
func (s *LedgerService) CreatePunishments(ctx context.Context, actorUserID, groupID, targetUserID int64, items []NewPunishment) ([]int64, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty punishment batch", common.ErrValidation)
	}

	var ids []int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		memberRepo := s.repomanager.Memberships(tx)
		actorActive, err := memberActive(ctx, memberRepo, groupID, actorUserID)
		if err != nil {
			return err
		}
		targetActive, err := memberActive(ctx, memberRepo, groupID, targetUserID)
		if err != nil {
			return err
		}

		punishmentRepo := s.repomanager.Punishments(tx)
		count, err := punishmentRepo.CountByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if count+len(items) > s.config.MaxActivePunishmentsPerGroup {
			return fmt.Errorf("%w: punishment limit (%d) reached for group", common.ErrValidation, s.config.MaxActivePunishmentsPerGroup)
		}

		typeRepo := s.repomanager.PunishmentTypes(tx)
		now := timeNow().UTC()

		ids = make([]int64, 0, len(items))
		for _, item := range items {
			if err := policy.CanCreatePunishment(actorActive, targetActive); err != nil {
				return err
			}
			if item.Amount <= 0 {
				return fmt.Errorf("%w: punishment amount must be positive", common.ErrValidation)
			}
			if _, err := typeRepo.GetByID(ctx, groupID, item.PunishmentTypeID); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("%w: unknown punishment type %d", common.ErrValidation, item.PunishmentTypeID)
				}
				return err
			}

			created, err := punishmentRepo.Create(ctx, &models.Punishment{
				PunishmentTypeID: item.PunishmentTypeID,
				GroupID:          groupID,
				UserID:           targetUserID,
				Reason:           item.Reason,
				Amount:           item.Amount,
				CreatedTime:      now,
				CreatedBy:        actorUserID,
			})
			if err != nil {
				return err
			}
			ids = append(ids, created.PunishmentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// VerifyPunishment marks a punishment as verified by the actor and returns
// the updated record. A punishment is verified at most once, and never by
// its creator.
func (s *LedgerService) VerifyPunishment(ctx context.Context, actorUserID, punishmentID int64) (*models.Punishment, error) {
	var verified *models.Punishment
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		punishmentRepo := s.repomanager.Punishments(tx)
		p, err := punishmentRepo.GetByID(ctx, punishmentID)
		if err != nil {
			return err
		}

		active, err := memberActive(ctx, s.repomanager.Memberships(tx), p.GroupID, actorUserID)
		if err != nil {
			return err
		}
		if err := policy.CanVerifyPunishment(actorUserID, active, p); err != nil {
			return err
		}

		verified, err = punishmentRepo.Verify(ctx, punishmentID, actorUserID, timeNow().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return verified, nil
}

// DeletePunishment removes a punishment for good. Only the creator may
// delete; a repeated delete of the same id reports not-found.
func (s *LedgerService) DeletePunishment(ctx context.Context, actorUserID, punishmentID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		punishmentRepo := s.repomanager.Punishments(tx)
		p, err := punishmentRepo.GetByID(ctx, punishmentID)
		if err != nil {
			return err
		}
		if err := policy.CanDeletePunishment(actorUserID, p); err != nil {
			return err
		}
		return punishmentRepo.Delete(ctx, punishmentID)
	})
}
