package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/kvstore"
	"github.com/iliyamo/auth-service/internal/logger"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/password"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/token"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memUsers struct {
	mu   sync.Mutex
	rows map[uint64]model.User
	next uint64
}

func newMemUsers() *memUsers { return &memUsers{rows: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	m.next++
	u.ID = m.next
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == email {
			return r, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memUsers) mutate(id uint64, fn func(*model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&r)
	m.rows[id] = r
	return nil
}

func (m *memUsers) TouchLogin(_ context.Context, id uint64, at time.Time) error {
	return m.mutate(id, func(u *model.User) { u.LastLogin = &at })
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, hash string, at time.Time) error {
	return m.mutate(id, func(u *model.User) { u.PasswordHash = hash; u.UpdatedAt = &at })
}

func (m *memUsers) List(_ context.Context, limit, offset int) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []model.User{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.rows[ids[i]])
	}
	return out, nil
}

func (m *memUsers) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *memUsers) Update(_ context.Context, u model.User, at time.Time) error {
	return m.mutate(u.ID, func(r *model.User) {
		r.FirstName, r.LastName, r.IsActive, r.IsSuperuser = u.FirstName, u.LastName, u.IsActive, u.IsSuperuser
		r.UpdatedAt = &at
	})
}

func (m *memUsers) SetRole(_ context.Context, id uint64, roleID *uint64, at time.Time) error {
	return m.mutate(id, func(u *model.User) { u.RoleID = roleID; u.UpdatedAt = &at })
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memRoles struct {
	mu    sync.Mutex
	rows  map[uint64]model.Role
	next  uint64
	inUse func(id uint64) bool
}

func newMemRoles() *memRoles { return &memRoles{rows: map[uint64]model.Role{}} }

func (m *memRoles) add(name string, perms ...string) model.Role {
	r := model.Role{Name: name, Permissions: perms}
	_ = m.Create(context.Background(), &r)
	return r
}

func (m *memRoles) Create(_ context.Context, r *model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.rows {
		if x.Name == r.Name {
			return repository.ErrRoleExists
		}
	}
	m.next++
	r.ID = m.next
	m.rows[r.ID] = *r
	return nil
}

func (m *memRoles) GetByID(_ context.Context, id uint64) (model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return model.Role{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memRoles) GetByName(_ context.Context, name string) (model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Name == name {
			return r, nil
		}
	}
	return model.Role{}, repository.ErrNotFound
}

func (m *memRoles) List(context.Context) ([]model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Role{}
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRoles) Update(_ context.Context, r model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.rows {
		if x.Name == r.Name && x.ID != r.ID {
			return repository.ErrRoleExists
		}
	}
	m.rows[r.ID] = r
	return nil
}

func (m *memRoles) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	if m.inUse != nil && m.inUse(id) {
		return repository.ErrRoleInUse
	}
	delete(m.rows, id)
	return nil
}

// memLedger mimics the conditional-update rotation of the SQL ledger.
type memLedger struct {
	mu        sync.Mutex
	rows      map[uint64]*model.RefreshToken
	next      uint64
	insertErr error
}

func newMemLedger() *memLedger { return &memLedger{rows: map[uint64]*model.RefreshToken{}} }

func (m *memLedger) insertLocked(t *model.RefreshToken) error {
	for _, r := range m.rows {
		if r.TokenHash == t.TokenHash {
			return errors.New("duplicate token hash")
		}
	}
	m.next++
	t.ID = m.next
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memLedger) Insert(_ context.Context, t *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	return m.insertLocked(t)
}

func (m *memLedger) FindActive(_ context.Context, hash string, now time.Time) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TokenHash == hash && r.Usable(now) {
			return *r, nil
		}
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

func (m *memLedger) Rotate(_ context.Context, oldID uint64, now time.Time, next *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[oldID]
	if !ok || !r.Usable(now) {
		return repository.ErrStaleToken
	}
	r.Revoked = true
	return m.insertLocked(next)
}

func (m *memLedger) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.UserID == userID && !r.Revoked {
			r.Revoked = true
			n++
		}
	}
	return n, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type authFixture struct {
	svc    *AuthService
	clock  *fakeClock
	users  *memUsers
	roles  *memRoles
	ledger *memLedger
	events *recordingPublisher
	codec  *token.Codec
	redis  *miniredis.Miniredis
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := token.NewCodec("test-secret-0123456789abcdef0123", "HS256", token.WithClock(clock.Now))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &authFixture{
		clock:  clock,
		users:  newMemUsers(),
		roles:  newMemRoles(),
		ledger: newMemLedger(),
		events: &recordingPublisher{},
		codec:  codec,
		redis:  mr,
	}
	f.roles.add(RoleAdmin, "users:read", "users:write")
	f.roles.add(RoleUser)

	f.svc = NewAuthService(AuthDeps{
		Users:     f.users,
		Roles:     f.roles,
		Ledger:    f.ledger,
		Blacklist: kvstore.NewBlacklist(rdb),
		Resets:    kvstore.NewResetTickets(rdb),
		Events:    f.events,
		Hasher:    password.NewHasher(4),
		Codec:     codec,
	}, AuthConfig{
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		ResetTTL:   time.Hour,
		Policy:     password.Policy{MinLength: 8},
	}, logger.NewNop())
	return f
}

func (f *authFixture) register(t *testing.T, email, plain string) model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Password: plain})
	require.NoError(t, err)
	return u
}

func (f *authFixture) login(t *testing.T, email, plain string) TokenPair {
	t.Helper()
	ctx := context.Background()
	u, err := f.svc.Authenticate(ctx, email, plain)
	require.NoError(t, err)
	pair, err := f.svc.CreateTokens(ctx, u)
	require.NoError(t, err)
	return pair
}
