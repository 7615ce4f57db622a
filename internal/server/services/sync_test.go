package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/dbx"
	"github.com/dotkom/vengeful/internal/logging"
	"github.com/dotkom/vengeful/internal/server/config"
	"github.com/dotkom/vengeful/internal/server/models"
	"github.com/dotkom/vengeful/internal/server/ow"
	groupsrepo "github.com/dotkom/vengeful/internal/server/repositories/groups"
)

type fakeSource struct {
	userGroups map[int64][]ow.Group
	groups     map[int64]*ow.Group
	err        error
}

func (f *fakeSource) UserGroups(ctx context.Context, owUserID int64) ([]ow.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.userGroups[owUserID], nil
}

func (f *fakeSource) Group(ctx context.Context, owGroupID int64) (*ow.Group, error) {
	g, ok := f.groups[owGroupID]
	if !ok {
		return nil, errors.New("provider status 404")
	}
	return g, nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func syncConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func newSyncService(t *testing.T, store *memStore, source ow.Source, cfg *config.Config) (*SyncService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })
	return NewSyncService(db, &fakeRepoManager{store}, source, cfg, discardLogger()), mock
}

func email(s string) *string { return &s }

func dotkomSnapshot() ow.Group {
	return ow.Group{
		OWGroupID: 12,
		Name:      "Dotkom",
		NameShort: "DOTKOM",
		Rules:     "No rules",
		Image:     "dotkom.png",
		Members: []ow.Member{
			{OWUserID: 1, OWGroupUserID: 101, FirstName: "Alice", LastName: "Aanes", Email: email("alice@online.ntnu.no")},
			{OWUserID: 2, OWGroupUserID: 102, FirstName: "Bob", LastName: "Berg"},
		},
	}
}

func TestSyncGroup_FirstSightCreatesEverything(t *testing.T) {
	store := newMemStore()
	svc, mock := newSyncService(t, store, &fakeSource{}, syncConfig())

	mock.ExpectBegin()
	mock.ExpectCommit()

	if err := svc.SyncGroup(context.Background(), dotkomSnapshot()); err != nil {
		t.Fatalf("SyncGroup error: %v", err)
	}

	if len(store.groups) != 1 || len(store.users) != 2 || len(store.members) != 2 {
		t.Fatalf("unexpected state: %d groups, %d users, %d members",
			len(store.groups), len(store.users), len(store.members))
	}
	for _, m := range store.members {
		if !m.Active {
			t.Fatalf("expected all memberships active: %+v", m)
		}
	}
	// group + 2 users + 2 memberships
	if store.writes != 5 {
		t.Fatalf("expected 5 writes, got %d", store.writes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSyncGroup_UnchangedSnapshotWritesNothing(t *testing.T) {
	store := newMemStore()
	svc, mock := newSyncService(t, store, &fakeSource{}, syncConfig())

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.SyncGroup(context.Background(), dotkomSnapshot()); err != nil {
		t.Fatalf("first SyncGroup error: %v", err)
	}
	writes := store.writes

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.SyncGroup(context.Background(), dotkomSnapshot()); err != nil {
		t.Fatalf("second SyncGroup error: %v", err)
	}
	if store.writes != writes {
		t.Fatalf("expected no additional writes, got %d", store.writes-writes)
	}
}

func TestSyncGroup_UpdatesDisplayFields(t *testing.T) {
	store := newMemStore()
	svc, mock := newSyncService(t, store, &fakeSource{}, syncConfig())

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.SyncGroup(context.Background(), dotkomSnapshot()); err != nil {
		t.Fatalf("first SyncGroup error: %v", err)
	}
	writes := store.writes

	snap := dotkomSnapshot()
	snap.Rules = "Be on time"
	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.SyncGroup(context.Background(), snap); err != nil {
		t.Fatalf("second SyncGroup error: %v", err)
	}

	if store.writes != writes+1 {
		t.Fatalf("expected exactly one additional write, got %d", store.writes-writes)
	}
	for _, g := range store.groups {
		if g.Rules != "Be on time" {
			t.Fatalf("rules not updated: %+v", g)
		}
	}
}

func TestSyncGroup_DepartedMemberDeactivated(t *testing.T) {
	store := newMemStore()
	svc, mock := newSyncService(t, store, &fakeSource{}, syncConfig())

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.SyncGroup(context.Background(), dotkomSnapshot()); err != nil {
		t.Fatalf("first SyncGroup error: %v", err)
	}

	snap := dotkomSnapshot()
	snap.Members = snap.Members[:1] // Bob left
	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.SyncGroup(context.Background(), snap); err != nil {
		t.Fatalf("second SyncGroup error: %v", err)
	}

	if len(store.members) != 2 {
		t.Fatalf("membership rows must be retained, got %d", len(store.members))
	}
	for _, m := range store.members {
		switch m.OWGroupUserID {
		case 101:
			if !m.Active {
				t.Fatalf("Alice should remain active: %+v", m)
			}
		case 102:
			if m.Active {
				t.Fatalf("Bob should be inactive: %+v", m)
			}
		}
	}
}

func TestSyncGroup_RejoinReactivatesSameRow(t *testing.T) {
	store := newMemStore()
	svc, mock := newSyncService(t, store, &fakeSource{}, syncConfig())

	full := dotkomSnapshot()
	short := dotkomSnapshot()
	short.Members = short.Members[:1]

	for _, snap := range []ow.Group{full, short, full} {
		mock.ExpectBegin()
		mock.ExpectCommit()
		if err := svc.SyncGroup(context.Background(), snap); err != nil {
			t.Fatalf("SyncGroup error: %v", err)
		}
	}

	if len(store.members) != 2 {
		t.Fatalf("rejoin must not duplicate membership rows, got %d", len(store.members))
	}
	for _, m := range store.members {
		if !m.Active {
			t.Fatalf("expected all memberships active after rejoin: %+v", m)
		}
	}
}

func TestSyncGroup_InvalidSnapshotRejectedBeforeTx(t *testing.T) {
	store := newMemStore()
	svc, mock := newSyncService(t, store, &fakeSource{}, syncConfig())

	snap := dotkomSnapshot()
	snap.Members[1].OWGroupUserID = snap.Members[0].OWGroupUserID

	err := svc.SyncGroup(context.Background(), snap)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes, got %d", store.writes)
	}
	// no transaction may have been opened
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSyncUserGroups_MergesAllGroups(t *testing.T) {
	store := newMemStore()
	bedkom := ow.Group{
		OWGroupID: 13,
		Name:      "Bedkom",
		Members: []ow.Member{
			{OWUserID: 1, OWGroupUserID: 201, FirstName: "Alice", LastName: "Aanes"},
		},
	}
	source := &fakeSource{userGroups: map[int64][]ow.Group{1: {dotkomSnapshot(), bedkom}}}
	svc, mock := newSyncService(t, store, source, syncConfig())

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	if err := svc.SyncUserGroups(context.Background(), 1); err != nil {
		t.Fatalf("SyncUserGroups error: %v", err)
	}
	if len(store.groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(store.groups))
	}
	// Alice exists once despite appearing in both rosters
	if len(store.users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(store.users))
	}
}

func TestSyncUserGroups_FetchFailureAbortsBeforeWrites(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{err: errors.New("provider down")}
	svc, mock := newSyncService(t, store, source, syncConfig())

	if err := svc.SyncUserGroups(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes, got %d", store.writes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSyncUserGroups_GroupCapRejected(t *testing.T) {
	store := newMemStore()
	cfg := syncConfig()
	cfg.MaxGroupsPerUser = 1
	source := &fakeSource{userGroups: map[int64][]ow.Group{
		1: {dotkomSnapshot(), {OWGroupID: 13, Name: "Bedkom"}},
	}}
	svc, _ := newSyncService(t, store, source, cfg)

	err := svc.SyncUserGroups(context.Background(), 1)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes, got %d", store.writes)
	}
}

func TestSyncAll_ContinuesPastFailingGroup(t *testing.T) {
	store := newMemStore()
	store.seedGroup(&models.Group{OWGroupID: 12, Name: "Dotkom"})
	store.seedGroup(&models.Group{OWGroupID: 13, Name: "Bedkom"})

	fresh := ow.Group{OWGroupID: 13, Name: "Bedkom renamed"}
	source := &fakeSource{groups: map[int64]*ow.Group{13: &fresh}}
	svc, mock := newSyncService(t, store, source, syncConfig())

	// only the reachable group opens a transaction
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := svc.SyncAll(context.Background())
	if err == nil {
		t.Fatal("expected first error to be reported")
	}

	renamed := false
	for _, g := range store.groups {
		if g.OWGroupID == 13 && g.Name == "Bedkom renamed" {
			renamed = true
		}
	}
	if !renamed {
		t.Fatal("reachable group was not merged")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// gatedRepoManager lets a test hold a merge open in the middle of its
// transaction: the first GetByOWGroupID call signals entered and then blocks
// until release is closed. merges counts how many merges actually ran.
type gatedRepoManager struct {
	*fakeRepoManager
	entered chan struct{}
	release chan struct{}
	merges  atomic.Int32
}

func (m *gatedRepoManager) Groups(db dbx.DBTX) groupsrepo.Repository {
	return &gatedGroupsRepo{fakeGroupsRepo{m.s}, m}
}

type gatedGroupsRepo struct {
	fakeGroupsRepo
	gate *gatedRepoManager
}

func (r *gatedGroupsRepo) GetByOWGroupID(ctx context.Context, owGroupID int64) (*models.Group, error) {
	r.gate.merges.Add(1)
	r.gate.entered <- struct{}{}
	<-r.gate.release
	return r.fakeGroupsRepo.GetByOWGroupID(ctx, owGroupID)
}

func TestSyncGroup_ConcurrentMergesOfSameGroupCoalesce(t *testing.T) {
	store := newMemStore()
	gate := &gatedRepoManager{
		fakeRepoManager: &fakeRepoManager{store},
		entered:         make(chan struct{}, 2),
		release:         make(chan struct{}),
	}

	db, mock := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })
	svc := NewSyncService(db, gate, &fakeSource{}, syncConfig(), discardLogger())

	// only one transaction may be opened for the two calls
	mock.ExpectBegin()
	mock.ExpectCommit()

	errs := make([]error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = svc.SyncGroup(context.Background(), dotkomSnapshot())
	}()

	// first merge is now parked inside its transaction
	<-gate.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = svc.SyncGroup(context.Background(), dotkomSnapshot())
	}()

	// give the second call time to reach the in-flight merge, then let the
	// held merge finish
	time.Sleep(100 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("SyncGroup call %d error: %v", i, err)
		}
	}
	if n := gate.merges.Load(); n != 1 {
		t.Fatalf("expected the concurrent calls to share one merge, got %d", n)
	}
	// exactly one merge means exactly one set of writes
	if store.writes != 5 {
		t.Fatalf("expected 5 writes, got %d", store.writes)
	}
	if len(store.groups) != 1 || len(store.members) != 2 {
		t.Fatalf("unexpected state: %d groups, %d members", len(store.groups), len(store.members))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSyncService_RunStopsOnCancel(t *testing.T) {
	store := newMemStore()
	cfg := syncConfig()
	cfg.SyncInterval = time.Hour
	svc, _ := newSyncService(t, store, &fakeSource{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
