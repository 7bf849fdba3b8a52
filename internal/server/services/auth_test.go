package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/dbx"
	"github.com/dmitrijs2005/chatter/internal/logging"
	"github.com/dmitrijs2005/chatter/internal/server/auth"
	"github.com/dmitrijs2005/chatter/internal/server/models"
	chatsrepo "github.com/dmitrijs2005/chatter/internal/server/repositories/chats"
	messagesrepo "github.com/dmitrijs2005/chatter/internal/server/repositories/messages"
	sessionsrepo "github.com/dmitrijs2005/chatter/internal/server/repositories/sessions"
	usersrepo "github.com/dmitrijs2005/chatter/internal/server/repositories/users"
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

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeSessionsRepo keeps session rows in a map keyed by token hash, so
// consume/delete semantics behave like the real store.
type fakeSessionsRepo struct {
	mu        sync.Mutex
	byHash    map[string]*models.Session
	nextID    int
	createErr error
	clock     *testClock
}

func newFakeSessionsRepo(clock *testClock) *fakeSessionsRepo {
	return &fakeSessionsRepo{byHash: map[string]*models.Session{}, clock: clock}
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byHash[s.TokenHash]; ok {
		return nil, common.ErrDuplicateHash
	}
	f.nextID++
	cp := *s
	cp.ID = time.Now().Format("150405.000000000") + string(rune('a'+f.nextID))
	f.byHash[s.TokenHash] = &cp
	return &cp, nil
}

func (f *fakeSessionsRepo) FindByHash(ctx context.Context, hash string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[hash]
	if !ok || !s.ExpiresAt.After(f.clock.now()) {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionsRepo) ConsumeByHash(ctx context.Context, hash string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.byHash, hash)
	return s, nil
}

func (f *fakeSessionsRepo) DeleteByID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, s := range f.byHash {
		if s.ID == id {
			delete(f.byHash, h)
		}
	}
	return nil
}

func (f *fakeSessionsRepo) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byHash[hash]; !ok {
		return 0, nil
	}
	delete(f.byHash, hash)
	return 1, nil
}

func (f *fakeSessionsRepo) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for h, s := range f.byHash {
		if s.UserID == userID {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionsRepo) DeleteExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for h, s := range f.byHash {
		if !s.ExpiresAt.After(f.clock.now()) {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byHash)
}

func (f *fakeSessionsRepo) countByUser(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.byHash {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

func (f *fakeSessionsRepo) get(hash string) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byHash[hash]
}

type fakeUsersRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	nextID    int
	createErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email || existing.Username == u.Username {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	cp := *u
	cp.ID = "user-" + string(rune('0'+f.nextID))
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == identifier || u.Username == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) add(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

type fakeRepoManager struct {
	users    *fakeUsersRepo
	sessions *fakeSessionsRepo
	chats    chatsrepo.Repository
	messages messagesrepo.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.users }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository { return m.sessions }
func (m *fakeRepoManager) Chats(db dbx.DBTX) chatsrepo.Repository       { return m.chats }
func (m *fakeRepoManager) Messages(db dbx.DBTX) messagesrepo.Repository { return m.messages }

type authFixture struct {
	svc      *AuthService
	mock     sqlmock.Sqlmock
	clock    *testClock
	users    *fakeUsersRepo
	sessions *fakeSessionsRepo
	db       *sql.DB
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	users := newFakeUsersRepo()
	sessions := newFakeSessionsRepo(clock)
	rm := &fakeRepoManager{users: users, sessions: sessions}

	codec := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Now:           clock.now,
	})

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	svc := NewAuthService(db, rm, codec, logger)
	svc.now = clock.now

	return &authFixture{svc: svc, mock: mock, clock: clock, users: users, sessions: sessions, db: db}
}

// addUser seeds an account with a bcrypt-hashed password.
func (f *authFixture) addUser(t *testing.T, id, email, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &models.User{ID: id, Email: email, Username: username, PasswordHash: hash}
	f.users.add(u)
	return u
}

// --- registration and login ---

func TestRegister_CreatesUserAndSession(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	user, pair, err := f.svc.Register(context.Background(), "a@example.com", "alice", "sekret", "uploads/2025/06/01/pic", DeviceInfo{UserAgent: "cli/1.0"})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("user id not assigned: %+v", user)
	}
	if user.AvatarKey != "uploads/2025/06/01/pic" {
		t.Fatalf("avatar key = %q", user.AvatarKey)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty token pair: %+v", pair)
	}

	sess := f.sessions.get(auth.HashToken(pair.RefreshToken))
	if sess == nil {
		t.Fatal("session row not stored under the refresh token hash")
	}
	if sess.UserID != user.ID {
		t.Fatalf("session owner = %q, want %q", sess.UserID, user.ID)
	}
	if want := f.clock.now().Add(7 * 24 * time.Hour); !sess.ExpiresAt.Equal(want) {
		t.Fatalf("session expiry = %v, want %v", sess.ExpiresAt, want)
	}
	if sess.UserAgent != "cli/1.0" {
		t.Fatalf("user agent = %q", sess.UserAgent)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRegister_DuplicateRollsBack(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "x")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, _, err := f.svc.Register(context.Background(), "a@example.com", "alice2", "sekret", "", DeviceInfo{})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("err = %v, want ErrorAlreadyExists", err)
	}
	if f.sessions.count() != 0 {
		t.Fatalf("no session should exist after failed registration")
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "u1", "a@example.com", "alice", "sekret")

	got, pair, err := f.svc.Login(context.Background(), "alice", "sekret", DeviceInfo{ClientAddr: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("user = %q, want %q", got.ID, u.ID)
	}
	sess := f.sessions.get(auth.HashToken(pair.RefreshToken))
	if sess == nil || sess.ClientAddr != "10.0.0.1" {
		t.Fatalf("session not recorded with client addr: %+v", sess)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")

	tests := []struct {
		name       string
		identifier string
		password   string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "nobody", "sekret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Login(context.Background(), tt.identifier, tt.password, DeviceInfo{})
			if !errors.Is(err, common.ErrorUnauthorized) {
				t.Fatalf("err = %v, want ErrorUnauthorized", err)
			}
			if f.sessions.count() != 0 {
				t.Fatal("failed login must not create a session")
			}
		})
	}
}

// --- rotation ---

// login seeds a session the regular way and returns its pair.
func (f *authFixture) login(t *testing.T, identifier, password string) *TokenPair {
	t.Helper()
	_, pair, err := f.svc.Login(context.Background(), identifier, password, DeviceInfo{UserAgent: "phone", ClientAddr: "10.0.0.2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return pair
}

func (f *authFixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func TestRefresh_RotatesLiveToken(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	pair := f.login(t, "alice", "sekret")
	f.expectTx()

	f.clock.advance(time.Minute)
	res, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if res.Outcome != OutcomeRotated {
		t.Fatalf("outcome = %v, want rotated", res.Outcome)
	}
	if res.Pair == nil || res.Pair.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation must mint a distinct refresh token")
	}

	if f.sessions.get(auth.HashToken(pair.RefreshToken)) != nil {
		t.Fatal("old session must be gone after rotation")
	}
	next := f.sessions.get(auth.HashToken(res.Pair.RefreshToken))
	if next == nil {
		t.Fatal("replacement session missing")
	}
	if next.UserAgent != "phone" || next.ClientAddr != "10.0.0.2" {
		t.Fatalf("device metadata not carried over: %+v", next)
	}
	if want := f.clock.now().Add(7 * 24 * time.Hour); !next.ExpiresAt.Equal(want) {
		t.Fatalf("replacement expiry = %v, want fresh TTL %v", next.ExpiresAt, want)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRefresh_ReusedTokenRevokesAllSessions(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	f.addUser(t, "u2", "b@example.com", "bob", "hunter2")

	phone := f.login(t, "alice", "sekret")
	f.login(t, "alice", "sekret") // second device
	bob := f.login(t, "bob", "hunter2")

	f.expectTx()
	res, err := f.svc.Refresh(context.Background(), phone.RefreshToken)
	if err != nil || res.Outcome != OutcomeRotated {
		t.Fatalf("first refresh: res=%+v err=%v", res, err)
	}

	// The same token a second time: consumed already, signature still good.
	f.expectTx()
	res, err = f.svc.Refresh(context.Background(), phone.RefreshToken)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if res.Outcome != OutcomeReuseDetected {
		t.Fatalf("outcome = %v, want reuse_detected", res.Outcome)
	}
	if res.RevokedSessions != 2 {
		t.Fatalf("revoked = %d, want 2 (rotated descendant and second device)", res.RevokedSessions)
	}
	if f.sessions.countByUser("u1") != 0 {
		t.Fatal("every session of the token owner must be revoked")
	}
	// Other accounts are untouched.
	if f.sessions.get(auth.HashToken(bob.RefreshToken)) == nil {
		t.Fatal("unrelated user's session must survive")
	}
}

func TestRefresh_ExpiredSessionRow(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	pair := f.login(t, "alice", "sekret")

	f.clock.advance(8 * 24 * time.Hour)
	f.expectTx()
	res, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if res.Outcome != OutcomeExpired {
		t.Fatalf("outcome = %v, want expired", res.Outcome)
	}
	if res.Pair != nil {
		t.Fatal("no pair may be issued for an expired token")
	}
	if f.sessions.count() != 0 {
		t.Fatal("expired row must be removed by the attempt")
	}
}

func TestRefresh_ExpiredTokenWithoutRow(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	pair := f.login(t, "alice", "sekret")

	// The sweeper got there first; the signature is genuine but stale.
	if _, err := f.sessions.DeleteByHash(context.Background(), auth.HashToken(pair.RefreshToken)); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(8 * 24 * time.Hour)

	f.expectTx()
	res, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if res.Outcome != OutcomeExpired {
		t.Fatalf("outcome = %v, want expired (stale genuine token is not an alarm)", res.Outcome)
	}
}

func TestRefresh_ForgedToken(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	alive := f.login(t, "alice", "sekret")

	forger := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("not-the-real-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Now:           f.clock.now,
	})
	forged, err := forger.IssueRefreshToken(&models.User{ID: "u1", Email: "a@example.com", Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	for _, raw := range []string{forged, "garbage", ""} {
		f.expectTx()
		res, err := f.svc.Refresh(context.Background(), raw)
		if err != nil {
			t.Fatalf("Refresh(%q) error: %v", raw, err)
		}
		if res.Outcome != OutcomeInvalid {
			t.Fatalf("Refresh(%q) outcome = %v, want invalid", raw, res.Outcome)
		}
	}

	// A rejected forgery must not disturb live sessions.
	if f.sessions.get(auth.HashToken(alive.RefreshToken)) == nil {
		t.Fatal("live session must survive forged attempts")
	}
}

func TestRefresh_StorageFailureKeepsOldSession(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	pair := f.login(t, "alice", "sekret")

	f.sessions.createErr = errors.New("disk full")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err == nil {
		t.Fatal("expected storage error")
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
	// The fake cannot restore the row itself; the rollback assertion above is
	// the transactional guarantee the real store relies on.
}

// --- logout and sweeping ---

func TestLogout_Idempotent(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	pair := f.login(t, "alice", "sekret")

	for i := 0; i < 2; i++ {
		if err := f.svc.Logout(context.Background(), pair.RefreshToken); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
	}
	if err := f.svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("Logout with empty token: %v", err)
	}
	if f.sessions.count() != 0 {
		t.Fatal("session must be gone after logout")
	}
}

func TestLogout_DoesNotTriggerReuseDetection(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	phone := f.login(t, "alice", "sekret")
	laptop := f.login(t, "alice", "sekret")

	if err := f.svc.Logout(context.Background(), phone.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if f.sessions.get(auth.HashToken(laptop.RefreshToken)) == nil {
		t.Fatal("logout of one device must not touch the other")
	}
}

func TestRevokeAll(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	f.login(t, "alice", "sekret")
	f.login(t, "alice", "sekret")

	n, err := f.svc.RevokeAll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if n != 2 || f.sessions.count() != 0 {
		t.Fatalf("revoked = %d, remaining = %d", n, f.sessions.count())
	}
}

func TestSweepExpired(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "u1", "a@example.com", "alice", "sekret")
	f.addUser(t, "u2", "b@example.com", "bob", "hunter2")
	f.login(t, "alice", "sekret")
	f.clock.advance(6 * 24 * time.Hour)
	bob := f.login(t, "bob", "hunter2")
	f.clock.advance(2 * 24 * time.Hour) // alice's expired, bob's has a day left

	n, err := f.svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if f.sessions.get(auth.HashToken(bob.RefreshToken)) == nil {
		t.Fatal("live session must survive the sweep")
	}
}

// --- end to end ---

func TestRefresh_FullLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.MatchExpectationsInOrder(false)
	for i := 0; i < 7; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}

	ctx := context.Background()
	_, pair, err := f.svc.Register(ctx, "a@example.com", "alice", "sekret", "", DeviceInfo{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// A healthy client rotating several times.
	tokens := []string{pair.RefreshToken}
	current := pair.RefreshToken
	for i := 0; i < 3; i++ {
		f.clock.advance(time.Hour)
		res, err := f.svc.Refresh(ctx, current)
		if err != nil || res.Outcome != OutcomeRotated {
			t.Fatalf("rotation %d: res=%+v err=%v", i, res, err)
		}
		current = res.Pair.RefreshToken
		tokens = append(tokens, current)
	}

	// An attacker replays the second token from the chain.
	res, err := f.svc.Refresh(ctx, tokens[1])
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Outcome != OutcomeReuseDetected {
		t.Fatalf("replay outcome = %v, want reuse_detected", res.Outcome)
	}

	// The legitimate client's current token died with the family.
	res, err = f.svc.Refresh(ctx, current)
	if err != nil {
		t.Fatalf("post-revocation refresh: %v", err)
	}
	if res.Outcome != OutcomeReuseDetected {
		t.Fatalf("post-revocation outcome = %v, want reuse_detected (token still verifies)", res.Outcome)
	}

	// Logging back in starts a clean session.
	_, pair, err = f.svc.Login(ctx, "alice", "sekret", DeviceInfo{})
	if err != nil {
		t.Fatalf("re-login: %v", err)
	}
	f.clock.advance(time.Hour)
	res, err = f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil || res.Outcome != OutcomeRotated {
		t.Fatalf("refresh after re-login: res=%+v err=%v", res, err)
	}
}
