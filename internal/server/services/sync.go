// Package services contains the server-side business logic. This file
// implements SyncService, the reconciler that converges local group, user
// and membership state to the external provider's snapshots.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/dbx"
	"github.com/dotkom/vengeful/internal/logging"
	"github.com/dotkom/vengeful/internal/server/config"
	"github.com/dotkom/vengeful/internal/server/models"
	"github.com/dotkom/vengeful/internal/server/ow"
	"github.com/dotkom/vengeful/internal/server/repositories/repomanager"
	"github.com/dotkom/vengeful/internal/server/repositories/users"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// SyncService merges provider snapshots into local storage. Each group merge
// is one transaction: either the full set of upserts and deactivations for
// that group commits, or none of it does. Concurrent merges of the same
// external group collapse into one via singleflight, which keeps the
// single-writer-per-group contract without a lock table.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	source      ow.Source
	config      *config.Config
	logger      logging.Logger
	inflight    singleflight.Group
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, source ow.Source, cfg *config.Config, logger logging.Logger) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		source:      source,
		config:      cfg,
		logger:      logger.With("module", "sync"),
	}
}

// SyncGroup validates a group snapshot and applies it atomically. Re-running
// with an unchanged snapshot performs zero writes.
//
// Concurrent calls for the same external group coalesce: a call arriving
// while a merge for that group is in flight waits for that merge and shares
// its result instead of applying its own snapshot. A snapshot dropped this
// way is not lost for good; the feed is eventually consistent and the next
// sync round converges on it.
func (s *SyncService) SyncGroup(ctx context.Context, snap ow.Group) error {
	if err := snap.Validate(s.config.MaxGroupMembers); err != nil {
		return err
	}

	key := strconv.FormatInt(snap.OWGroupID, 10)
	_, err, _ := s.inflight.Do(key, func() (any, error) {
		return nil, dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return s.mergeGroup(ctx, tx, &snap)
		})
	})
	return err
}

// SyncUserGroups pulls the caller's groups from the provider and merges each
// of them. A fetch failure aborts before any local mutation.
func (s *SyncService) SyncUserGroups(ctx context.Context, owUserID int64) error {
	snapshots, err := s.source.UserGroups(ctx, owUserID)
	if err != nil {
		return fmt.Errorf("fetching groups for user %d: %w", owUserID, err)
	}
	if len(snapshots) > s.config.MaxGroupsPerUser {
		return fmt.Errorf("%w: user belongs to more than %d groups", common.ErrValidation, s.config.MaxGroupsPerUser)
	}

	for _, snap := range snapshots {
		if err := s.SyncGroup(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// SyncAll re-reconciles every locally known group against a fresh snapshot.
// A failure on one group does not keep the others from being merged.
func (s *SyncService) SyncAll(ctx context.Context) error {
	known, err := s.repomanager.Groups(s.db).ListAll(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, g := range known {
		snap, err := s.source.Group(ctx, g.OWGroupID)
		if err == nil {
			err = s.SyncGroup(ctx, *snap)
		}
		if err != nil {
			s.logger.Error(ctx, "group sync failed", "ow_group_id", g.OWGroupID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run drives periodic reconciliation until the context is cancelled. Each
// round retries with exponential backoff before giving up until the next
// tick.
func (s *SyncService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "stopping sync loop")
			return
		case <-ticker.C:
			backoff := retry.WithMaxRetries(2, retry.NewExponential(time.Second))
			err := retry.Do(ctx, backoff, func(ctx context.Context) error {
				return retry.RetryableError(s.SyncAll(ctx))
			})
			if err != nil {
				s.logger.Error(ctx, "periodic sync failed", "error", err)
			}
		}
	}
}

func (s *SyncService) mergeGroup(ctx context.Context, tx dbx.DBTX, snap *ow.Group) error {
	groupRepo := s.repomanager.Groups(tx)
	userRepo := s.repomanager.Users(tx)
	memberRepo := s.repomanager.Memberships(tx)

	group, err := groupRepo.GetByOWGroupID(ctx, snap.OWGroupID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		group, err = groupRepo.Create(ctx, &models.Group{
			OWGroupID: snap.OWGroupID,
			Name:      snap.Name,
			NameShort: snap.NameShort,
			Rules:     snap.Rules,
			Image:     snap.Image,
		})
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		// Display fields are never locally editable, so the latest snapshot
		// simply wins. Skip the write when nothing changed.
		if group.Name != snap.Name || group.NameShort != snap.NameShort ||
			group.Rules != snap.Rules || group.Image != snap.Image {
			group.Name = snap.Name
			group.NameShort = snap.NameShort
			group.Rules = snap.Rules
			group.Image = snap.Image
			if err := groupRepo.UpdateDisplayFields(ctx, group); err != nil {
				return err
			}
		}
	}

	inRoster := make(map[int64]struct{}, len(snap.Members))
	for _, m := range snap.Members {
		inRoster[m.OWGroupUserID] = struct{}{}

		user, err := s.mergeUser(ctx, userRepo, &m)
		if err != nil {
			return err
		}

		membership, err := memberRepo.GetByOWGroupUserID(ctx, m.OWGroupUserID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			err = memberRepo.Create(ctx, &models.GroupMember{
				GroupID:       group.GroupID,
				UserID:        user.UserID,
				OWGroupUserID: m.OWGroupUserID,
				Active:        true,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		case !membership.Active:
			// Rejoin: the same membership row is reactivated, never duplicated.
			if err := memberRepo.SetActive(ctx, m.OWGroupUserID, true); err != nil {
				return err
			}
		}
	}

	// Members absent from the snapshot are flagged inactive, not removed,
	// so their punishment history stays attached.
	known, err := memberRepo.ListByGroup(ctx, group.GroupID)
	if err != nil {
		return err
	}
	for _, membership := range known {
		if _, ok := inRoster[membership.OWGroupUserID]; !ok && membership.Active {
			if err := memberRepo.SetActive(ctx, membership.OWGroupUserID, false); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SyncService) mergeUser(ctx context.Context, userRepo users.Repository, m *ow.Member) (*models.User, error) {
	user, err := userRepo.GetByOWUserID(ctx, m.OWUserID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return userRepo.Create(ctx, &models.User{
			OWUserID:  m.OWUserID,
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Email:     m.Email,
		})
	case err != nil:
		return nil, err
	}

	if user.FirstName != m.FirstName || user.LastName != m.LastName || !equalEmail(user.Email, m.Email) {
		user.FirstName = m.FirstName
		user.LastName = m.LastName
		user.Email = m.Email
		if err := userRepo.UpdateDisplayFields(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func equalEmail(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
