package entity

import "time"

// Session is one issued refresh token. Rows are never updated except to
// revoke them; rotation inserts a new row.
type Session struct {
	ID               int64      `db:"id"`
	UserID           int64      `db:"user_id"`
	RefreshTokenHash string     `db:"refresh_token_hash"`
	ExpiresAt        time.Time  `db:"expires_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
	DeviceLabel      *string    `db:"device_label"`
	UserAgent        *string    `db:"user_agent"`
	IPAddress        *string    `db:"ip_address"`
	LastUsedAt       *time.Time `db:"last_used_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

// SessionWithUser is a session joined with the owner's email and status.
type SessionWithUser struct {
	Session
	Email        string `db:"email"`
	UserIsActive bool   `db:"is_active"`
}
