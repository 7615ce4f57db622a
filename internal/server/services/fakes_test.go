package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/dbx"
	"github.com/dotkom/vengeful/internal/server/models"
	groupsrepo "github.com/dotkom/vengeful/internal/server/repositories/groups"
	membershipsrepo "github.com/dotkom/vengeful/internal/server/repositories/memberships"
	punishmentsrepo "github.com/dotkom/vengeful/internal/server/repositories/punishments"
	punishmenttypesrepo "github.com/dotkom/vengeful/internal/server/repositories/punishmenttypes"
	usersrepo "github.com/dotkom/vengeful/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

// memStore is a shared in-memory state backing the fake repositories. The
// writes counter increments on every mutating call, which is what the
// idempotence tests assert on.
type memStore struct {
	mu          sync.Mutex
	groups      map[int64]*models.Group
	users       map[int64]*models.User
	members     []*models.GroupMember
	types       map[int64]*models.PunishmentType
	punishments map[int64]*models.Punishment
	nextID      int64
	writes      int
}

func newMemStore() *memStore {
	return &memStore{
		groups:      make(map[int64]*models.Group),
		users:       make(map[int64]*models.User),
		types:       make(map[int64]*models.PunishmentType),
		punishments: make(map[int64]*models.Punishment),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func copyGroup(g *models.Group) *models.Group             { c := *g; return &c }
func copyUser(u *models.User) *models.User                { c := *u; return &c }
func copyMember(m *models.GroupMember) *models.GroupMember {
	c := *m
	return &c
}
func copyType(t *models.PunishmentType) *models.PunishmentType { c := *t; return &c }
func copyPunishment(p *models.Punishment) *models.Punishment   { c := *p; return &c }

// seeding helpers, locking omitted on purpose: tests seed before use

func (s *memStore) seedGroup(g *models.Group) *models.Group {
	if g.GroupID == 0 {
		g.GroupID = s.id()
	}
	s.groups[g.GroupID] = copyGroup(g)
	return g
}

func (s *memStore) seedUser(u *models.User) *models.User {
	if u.UserID == 0 {
		u.UserID = s.id()
	}
	s.users[u.UserID] = copyUser(u)
	return u
}

func (s *memStore) seedMember(m *models.GroupMember) {
	s.members = append(s.members, copyMember(m))
}

func (s *memStore) seedType(t *models.PunishmentType) *models.PunishmentType {
	if t.PunishmentTypeID == 0 {
		t.PunishmentTypeID = s.id()
	}
	s.types[t.PunishmentTypeID] = copyType(t)
	return t
}

func (s *memStore) seedPunishment(p *models.Punishment) *models.Punishment {
	if p.PunishmentID == 0 {
		p.PunishmentID = s.id()
	}
	s.punishments[p.PunishmentID] = copyPunishment(p)
	return p
}

// --- fake repositories ---

type fakeGroupsRepo struct{ s *memStore }

func (f *fakeGroupsRepo) GetByOWGroupID(ctx context.Context, owGroupID int64) (*models.Group, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, g := range f.s.groups {
		if g.OWGroupID == owGroupID {
			return copyGroup(g), nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeGroupsRepo) GetByID(ctx context.Context, groupID int64) (*models.Group, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	g, ok := f.s.groups[groupID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyGroup(g), nil
}

func (f *fakeGroupsRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Group, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	list := make([]*models.Group, 0)
	for _, m := range f.s.members {
		if m.UserID == userID && m.Active {
			if g, ok := f.s.groups[m.GroupID]; ok {
				list = append(list, copyGroup(g))
			}
		}
	}
	return list, nil
}

func (f *fakeGroupsRepo) ListAll(ctx context.Context) ([]*models.Group, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	list := make([]*models.Group, 0, len(f.s.groups))
	for _, g := range f.s.groups {
		list = append(list, copyGroup(g))
	}
	return list, nil
}

func (f *fakeGroupsRepo) Create(ctx context.Context, g *models.Group) (*models.Group, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.writes++
	g.GroupID = f.s.id()
	f.s.groups[g.GroupID] = copyGroup(g)
	return g, nil
}

func (f *fakeGroupsRepo) UpdateDisplayFields(ctx context.Context, g *models.Group) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.groups[g.GroupID]; !ok {
		return common.ErrNotFound
	}
	f.s.writes++
	f.s.groups[g.GroupID] = copyGroup(g)
	return nil
}

type fakeUsersRepo struct{ s *memStore }

func (f *fakeUsersRepo) GetByOWUserID(ctx context.Context, owUserID int64) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.OWUserID == owUserID {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyUser(u), nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.writes++
	u.UserID = f.s.id()
	f.s.users[u.UserID] = copyUser(u)
	return u, nil
}

func (f *fakeUsersRepo) UpdateDisplayFields(ctx context.Context, u *models.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[u.UserID]; !ok {
		return common.ErrNotFound
	}
	f.s.writes++
	f.s.users[u.UserID] = copyUser(u)
	return nil
}

type fakeMembershipsRepo struct{ s *memStore }

func (f *fakeMembershipsRepo) GetByOWGroupUserID(ctx context.Context, owGroupUserID int64) (*models.GroupMember, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, m := range f.s.members {
		if m.OWGroupUserID == owGroupUserID {
			return copyMember(m), nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeMembershipsRepo) GetByGroupAndUser(ctx context.Context, groupID, userID int64) (*models.GroupMember, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, m := range f.s.members {
		if m.GroupID == groupID && m.UserID == userID {
			return copyMember(m), nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeMembershipsRepo) ListByGroup(ctx context.Context, groupID int64) ([]*models.GroupMember, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	list := make([]*models.GroupMember, 0)
	for _, m := range f.s.members {
		if m.GroupID == groupID {
			list = append(list, copyMember(m))
		}
	}
	return list, nil
}

func (f *fakeMembershipsRepo) Create(ctx context.Context, m *models.GroupMember) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.writes++
	f.s.members = append(f.s.members, copyMember(m))
	return nil
}

func (f *fakeMembershipsRepo) SetActive(ctx context.Context, owGroupUserID int64, active bool) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, m := range f.s.members {
		if m.OWGroupUserID == owGroupUserID {
			f.s.writes++
			m.Active = active
			return nil
		}
	}
	return common.ErrNotFound
}

type fakeTypesRepo struct{ s *memStore }

func (f *fakeTypesRepo) ListByGroup(ctx context.Context, groupID int64) ([]*models.PunishmentType, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	list := make([]*models.PunishmentType, 0)
	for _, t := range f.s.types {
		if t.GroupID == groupID {
			list = append(list, copyType(t))
		}
	}
	return list, nil
}

func (f *fakeTypesRepo) CountByGroup(ctx context.Context, groupID int64) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := 0
	for _, t := range f.s.types {
		if t.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTypesRepo) GetByID(ctx context.Context, groupID, punishmentTypeID int64) (*models.PunishmentType, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.types[punishmentTypeID]
	if !ok || t.GroupID != groupID {
		return nil, common.ErrNotFound
	}
	return copyType(t), nil
}

func (f *fakeTypesRepo) Create(ctx context.Context, t *models.PunishmentType) (*models.PunishmentType, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.writes++
	t.PunishmentTypeID = f.s.id()
	f.s.types[t.PunishmentTypeID] = copyType(t)
	return t, nil
}

func (f *fakeTypesRepo) Delete(ctx context.Context, groupID, punishmentTypeID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.types[punishmentTypeID]
	if !ok || t.GroupID != groupID {
		return common.ErrNotFound
	}
	f.s.writes++
	delete(f.s.types, punishmentTypeID)
	return nil
}

type fakePunishmentsRepo struct{ s *memStore }

func (f *fakePunishmentsRepo) GetByID(ctx context.Context, punishmentID int64) (*models.Punishment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.punishments[punishmentID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyPunishment(p), nil
}

func (f *fakePunishmentsRepo) ListByGroupAndUser(ctx context.Context, groupID, userID int64) ([]*models.Punishment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	list := make([]*models.Punishment, 0)
	for _, p := range f.s.punishments {
		if p.GroupID == groupID && p.UserID == userID {
			list = append(list, copyPunishment(p))
		}
	}
	return list, nil
}

func (f *fakePunishmentsRepo) CountByGroup(ctx context.Context, groupID int64) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := 0
	for _, p := range f.s.punishments {
		if p.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (f *fakePunishmentsRepo) Create(ctx context.Context, p *models.Punishment) (*models.Punishment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.writes++
	p.PunishmentID = f.s.id()
	f.s.punishments[p.PunishmentID] = copyPunishment(p)
	return p, nil
}

func (f *fakePunishmentsRepo) Verify(ctx context.Context, punishmentID, verifiedBy int64, verifiedTime time.Time) (*models.Punishment, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.punishments[punishmentID]
	if !ok || p.VerifiedTime != nil {
		return nil, common.ErrConflict
	}
	f.s.writes++
	p.VerifiedTime = &verifiedTime
	p.VerifiedBy = &verifiedBy
	return copyPunishment(p), nil
}

func (f *fakePunishmentsRepo) Delete(ctx context.Context, punishmentID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.punishments[punishmentID]; !ok {
		return common.ErrNotFound
	}
	f.s.writes++
	delete(f.s.punishments, punishmentID)
	return nil
}

// fakeRepoManager vends the in-memory fakes regardless of the bound DBTX.
type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Groups(db dbx.DBTX) groupsrepo.Repository     { return &fakeGroupsRepo{m.s} }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return &fakeUsersRepo{m.s} }
func (m *fakeRepoManager) Memberships(db dbx.DBTX) membershipsrepo.Repository {
	return &fakeMembershipsRepo{m.s}
}
func (m *fakeRepoManager) PunishmentTypes(db dbx.DBTX) punishmenttypesrepo.Repository {
	return &fakeTypesRepo{m.s}
}
func (m *fakeRepoManager) Punishments(db dbx.DBTX) punishmentsrepo.Repository {
	return &fakePunishmentsRepo{m.s}
}
