package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidToken is returned for any access token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// IDSource supplies unique token ids.
type IDSource interface {
	Next() string
}

// TokenMinter issues HS256 access tokens.
type TokenMinter struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clockwork.Clock
	ids    IDSource
}

func NewTokenMinter(secret []byte, issuer string, ttl time.Duration, clock clockwork.Clock, ids IDSource) *TokenMinter {
	return &TokenMinter{secret: secret, issuer: issuer, ttl: ttl, clock: clock, ids: ids}
}

// IssueAccessToken signs {iss, iat, exp, sub, email, jti} for the user.
func (m *TokenMinter) IssueAccessToken(userID int64, email string) (string, error) {
	now := m.clock.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        m.ids.Next(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Email: email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// TokenVerifier validates access tokens minted by TokenMinter.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewTokenVerifier(secret []byte, issuer string, clock clockwork.Clock) *TokenVerifier {
	return &TokenVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

// VerifyAccessToken checks signature, algorithm, issuer and expiry and
// returns the user id from the subject.
func (v *TokenVerifier) VerifyAccessToken(raw string) (int64, error) {
	claims := &AccessClaims{}
	token, err := v.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
