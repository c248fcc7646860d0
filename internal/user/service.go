package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth/internal/user/repo"
)

// MinPasswordLength is measured in bytes.
const MinPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// Store is the persistence the user service needs.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id int64) (*entity.PublicUser, error)
	Create(ctx context.Context, email, passwordHash string, displayName *string) (*entity.PublicUser, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// UserService owns registration and credential checks.
type UserService struct {
	store     Store
	hasher    PasswordHasher
	logger    *zap.SugaredLogger
	dummyHash string
}

func NewUserService(store Store, hasher PasswordHasher, logger *zap.SugaredLogger) (*UserService, error) {
	// verified against when the account is missing so every failed login
	// costs one hash verification
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return &UserService{store: store, hasher: hasher, logger: logger, dummyHash: dummy}, nil
}

var (
	errInvalidEmail       = apperr.InvalidInput("Invalid email")
	errPasswordTooShort   = apperr.InvalidInput(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	errEmailInUse         = apperr.Conflict("Email already in use")
	errInvalidCredentials = apperr.Unauthorized("Invalid credentials")
	errUserNotFound       = apperr.NotFound("Not found")
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active account. A blank display name is stored as NULL.
func (s *UserService) Register(ctx context.Context, email, password string, displayName *string) (*entity.PublicUser, error) {
	email = NormalizeEmail(email)
	if !emailRegex.MatchString(email) {
		return nil, errInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, errPasswordTooShort
	}
	if displayName != nil {
		trimmed := strings.TrimSpace(*displayName)
		if trimmed == "" {
			displayName = nil
		} else {
			displayName = &trimmed
		}
	}

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("find user", err)
	}
	if existing != nil {
		return nil, errEmailInUse
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	u, err := s.store.Create(ctx, email, hash, displayName)
	if err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, errEmailInUse
		}
		return nil, apperr.Internal("create user", err)
	}
	return u, nil
}

// Authenticate checks email and password. Unknown, inactive and wrong
// password all fail with the same Unauthorized error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = NormalizeEmail(email)
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("find user", err)
	}
	if u == nil {
		s.hasher.Verify(s.dummyHash, password)
		return nil, errInvalidCredentials
	}
	if ok := s.hasher.Verify(u.PasswordHash, password); !ok || !u.IsActive {
		return nil, errInvalidCredentials
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if newHash, hErr := s.hasher.Hash(password); hErr == nil {
			if uErr := s.store.UpdatePasswordHash(ctx, u.ID, newHash); uErr != nil {
				s.logger.Warnw("password rehash failed", "user_id", u.ID, "err", uErr)
			} else {
				u.PasswordHash = newHash
			}
		}
	}
	return u, nil
}

// Get returns the public projection of a user.
func (s *UserService) Get(ctx context.Context, id int64) (*entity.PublicUser, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("find user", err)
	}
	if u == nil {
		return nil, errUserNotFound
	}
	return u, nil
}
