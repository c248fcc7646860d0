package user

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth/internal/security"
	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth/internal/user/repo"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*entity.User
	// raceEmail simulates a concurrent insert that wins between lookup and create
	raceEmail string
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*entity.User)}
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*entity.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u.Public(), nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(_ context.Context, email, hash string, displayName *string) (*entity.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok || email == m.raceEmail {
		return nil, userrepo.ErrEmailTaken
	}
	m.nextID++
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &entity.User{ID: m.nextID, Email: email, PasswordHash: hash, DisplayName: displayName, IsActive: true, CreatedAt: now, UpdatedAt: now}
	m.users[email] = u
	return u.Public(), nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return errors.New("no such user")
}

func (m *memStore) hashOf(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email].PasswordHash
}

func newTestService(t *testing.T, store Store) *UserService {
	t.Helper()
	hasher := security.NewArgon2Hasher(security.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1})
	svc, err := NewUserService(store, hasher, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	name := "  Ada  "
	u, err := svc.Register(ctx, "  Ada@Example.COM ", "password1", &name)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "ada@example.com" || !u.IsActive || u.DisplayName == nil || *u.DisplayName != "Ada" {
		t.Fatalf("unexpected user %+v", u)
	}
	if h := store.hashOf("ada@example.com"); !strings.HasPrefix(h, "$argon2id$") {
		t.Fatalf("stored hash %q is not argon2id", h)
	}

	got, err := svc.Authenticate(ctx, "ADA@example.com", "password1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("authenticated id = %d, want %d", got.ID, u.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"bad email", "not-an-email", "password1", "Invalid email"},
		{"empty email", "   ", "password1", "Invalid email"},
		{"short password", "a@example.com", "1234567", "Password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password, nil)
			if apperr.KindOf(err) != apperr.KindInvalidInput {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if apperr.PublicMessage(err) != tt.want {
				t.Fatalf("message = %q, want %q", apperr.PublicMessage(err), tt.want)
			}
		})
	}

	if _, err := svc.Register(ctx, "b@example.com", "12345678", nil); err != nil {
		t.Fatalf("8 byte password should be accepted: %v", err)
	}
}

func TestRegisterBlankDisplayNameIsNil(t *testing.T) {
	svc := newTestService(t, newMemStore())
	blank := "   "
	u, err := svc.Register(context.Background(), "c@example.com", "password1", &blank)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.DisplayName != nil {
		t.Fatalf("display name = %q, want nil", *u.DisplayName)
	}
}

func TestRegisterConflictCaseInsensitive(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()
	if _, err := svc.Register(ctx, "dup@example.com", "password1", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "DUP@Example.com", "password2", nil)
	if apperr.KindOf(err) != apperr.KindConflict || apperr.PublicMessage(err) != "Email already in use" {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterConflictFromStore(t *testing.T) {
	store := newMemStore()
	store.raceEmail = "race@example.com"
	svc := newTestService(t, store)
	_, err := svc.Register(context.Background(), "race@example.com", "password1", nil)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "user@example.com", "password1", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "off@example.com", "password1", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store.mu.Lock()
	store.users["off@example.com"].IsActive = false
	store.mu.Unlock()

	cases := []struct{ email, password string }{
		{"user@example.com", "wrong-password"},
		{"nobody@example.com", "password1"},
		{"off@example.com", "password1"},
	}
	for _, c := range cases {
		_, err := svc.Authenticate(ctx, c.email, c.password)
		if apperr.KindOf(err) != apperr.KindUnauthorized || apperr.PublicMessage(err) != "Invalid credentials" {
			t.Fatalf("%s: expected Invalid credentials, got %v", c.email, err)
		}
	}
}

func TestAuthenticateRehashesBcrypt(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	legacy, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	store.users["old@example.com"] = &entity.User{ID: 99, Email: "old@example.com", PasswordHash: string(legacy), IsActive: true}

	if _, err := svc.Authenticate(context.Background(), "old@example.com", "password1"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if h := store.hashOf("old@example.com"); !strings.HasPrefix(h, "$argon2id$") {
		t.Fatalf("hash not upgraded: %q", h)
	}
	if _, err := svc.Authenticate(context.Background(), "old@example.com", "password1"); err != nil {
		t.Fatalf("Authenticate after rehash: %v", err)
	}
}

func TestGet(t *testing.T) {
	svc := newTestService(t, newMemStore())
	ctx := context.Background()
	u, err := svc.Register(ctx, "me@example.com", "password1", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := svc.Get(ctx, u.ID)
	if err != nil || got.Email != "me@example.com" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := svc.Get(ctx, 12345); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
