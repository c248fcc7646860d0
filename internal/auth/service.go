package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-auth/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth/internal/auth/entity"
	sessionrepo "github.com/ovaphlow/pitchfork/service-auth/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-auth/internal/security"
	userentity "github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
)

// SessionStore persists refresh sessions.
type SessionStore interface {
	Create(ctx context.Context, s *entity.Session) error
	FindByRefreshTokenHash(ctx context.Context, hash string) (*entity.SessionWithUser, error)
	RevokeByRefreshTokenHash(ctx context.Context, hash string) error
	Rotate(ctx context.Context, oldID int64, next *entity.Session) error
}

// Users is the part of the user service the auth flows depend on.
type Users interface {
	Register(ctx context.Context, email, password string, displayName *string) (*userentity.PublicUser, error)
	Authenticate(ctx context.Context, email, password string) (*userentity.User, error)
	Get(ctx context.Context, id int64) (*userentity.PublicUser, error)
}

// AccessTokenIssuer mints access tokens.
type AccessTokenIssuer interface {
	IssueAccessToken(userID int64, email string) (string, error)
}

// ClientMeta is the optional provenance recorded on a session.
type ClientMeta struct {
	DeviceLabel *string
	UserAgent   *string
	IPAddress   *string
}

type LoginResult struct {
	AccessToken  string                 `json:"accessToken"`
	RefreshToken string                 `json:"refreshToken"`
	User         *userentity.PublicUser `json:"user"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

var (
	errMissingRefreshToken = apperr.InvalidInput("Missing refreshToken")
	errInvalidRefreshToken = apperr.Unauthorized("Invalid refresh token")
	errRefreshTokenExpired = apperr.Unauthorized("Refresh token expired")
)

// AuthService runs the login, refresh and logout flows.
type AuthService struct {
	users      Users
	sessions   SessionStore
	tokens     AccessTokenIssuer
	clock      clockwork.Clock
	refreshTTL time.Duration
}

func NewAuthService(users Users, sessions SessionStore, tokens AccessTokenIssuer, clock clockwork.Clock, refreshTTL time.Duration) *AuthService {
	return &AuthService{users: users, sessions: sessions, tokens: tokens, clock: clock, refreshTTL: refreshTTL}
}

func (s *AuthService) Register(ctx context.Context, email, password string, displayName *string) (*userentity.PublicUser, error) {
	return s.users.Register(ctx, email, password, displayName)
}

// Login verifies credentials and opens a new session. The raw refresh token
// is only ever returned here and from Refresh.
func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) (*LoginResult, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	access, err := s.tokens.IssueAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, apperr.Internal("issue access token", err)
	}
	refresh, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	sess := &entity.Session{
		UserID:           u.ID,
		RefreshTokenHash: hash,
		ExpiresAt:        s.clock.Now().UTC().Add(s.refreshTTL),
		DeviceLabel:      trimmedOrNil(meta.DeviceLabel),
		UserAgent:        trimmedOrNil(meta.UserAgent),
		IPAddress:        trimmedOrNil(meta.IPAddress),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, apperr.Internal("create session", err)
	}
	return &LoginResult{AccessToken: access, RefreshToken: refresh, User: u.Public()}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction that stores its successor.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, errMissingRefreshToken
	}
	cur, err := s.sessions.FindByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, apperr.Internal("find session", err)
	}
	if cur == nil || cur.RevokedAt != nil || !cur.UserIsActive {
		return nil, errInvalidRefreshToken
	}
	now := s.clock.Now().UTC()
	if !cur.ExpiresAt.After(now) {
		return nil, errRefreshTokenExpired
	}

	access, err := s.tokens.IssueAccessToken(cur.UserID, cur.Email)
	if err != nil {
		return nil, apperr.Internal("issue access token", err)
	}
	refresh, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	next := &entity.Session{
		UserID:           cur.UserID,
		RefreshTokenHash: hash,
		ExpiresAt:        now.Add(s.refreshTTL),
		DeviceLabel:      cur.DeviceLabel,
		UserAgent:        cur.UserAgent,
		IPAddress:        cur.IPAddress,
	}
	if err := s.sessions.Rotate(ctx, cur.ID, next); err != nil {
		if errors.Is(err, sessionrepo.ErrSessionRevoked) {
			return nil, errInvalidRefreshToken
		}
		return nil, apperr.Internal("rotate session", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the session behind refreshToken. Unknown or already revoked
// tokens succeed silently.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return errMissingRefreshToken
	}
	if err := s.sessions.RevokeByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken)); err != nil {
		return apperr.Internal("revoke session", err)
	}
	return nil
}

func (s *AuthService) GetMe(ctx context.Context, userID int64) (*userentity.PublicUser, error) {
	return s.users.Get(ctx, userID)
}

func newRefreshToken() (token, hash string, err error) {
	token, err = security.NewRefreshToken()
	if err != nil {
		return "", "", apperr.Internal("generate refresh token", err)
	}
	return token, security.HashRefreshToken(token), nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
