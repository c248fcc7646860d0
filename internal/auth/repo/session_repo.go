package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-auth/internal/auth/entity"
)

// ErrSessionRevoked is returned by Rotate when the old session was revoked
// by someone else first.
var ErrSessionRevoked = errors.New("session already revoked")

const insertSession = `INSERT INTO sessions
	(user_id, refresh_token_hash, expires_at, device_label, user_agent, ip_address, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`

type SessionRepo struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

func NewSessionRepo(db *sqlx.DB, clock clockwork.Clock) *SessionRepo {
	return &SessionRepo{db: db, clock: clock}
}

// Create inserts s and sets its ID and CreatedAt.
func (r *SessionRepo) Create(ctx context.Context, s *entity.Session) error {
	return insert(ctx, r.db, r.clock, s)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func insert(ctx context.Context, q queryer, clock clockwork.Clock, s *entity.Session) error {
	s.CreatedAt = clock.Now().UTC()
	row := q.QueryRowxContext(ctx, q.Rebind(insertSession),
		s.UserID, s.RefreshTokenHash, s.ExpiresAt.UTC(), s.DeviceLabel, s.UserAgent, s.IPAddress, s.CreatedAt)
	if err := row.Scan(&s.ID); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByRefreshTokenHash loads a session and its owner in one query. It
// returns nil when no session has that hash.
func (r *SessionRepo) FindByRefreshTokenHash(ctx context.Context, hash string) (*entity.SessionWithUser, error) {
	q := r.db.Rebind(`SELECT s.id, s.user_id, s.refresh_token_hash, s.expires_at, s.revoked_at,
		s.device_label, s.user_agent, s.ip_address, s.last_used_at, s.created_at,
		u.email, u.is_active
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.refresh_token_hash = ?`)
	var s entity.SessionWithUser
	if err := r.db.GetContext(ctx, &s, q, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

// RevokeByID revokes the session if it is still active. Revoking twice is a no-op.
func (r *SessionRepo) RevokeByID(ctx context.Context, id int64) error {
	now := r.clock.Now().UTC()
	q := r.db.Rebind(`UPDATE sessions SET revoked_at = ?, last_used_at = ? WHERE id = ? AND revoked_at IS NULL`)
	if _, err := r.db.ExecContext(ctx, q, now, now, id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeByRefreshTokenHash revokes the matching active session, if any.
func (r *SessionRepo) RevokeByRefreshTokenHash(ctx context.Context, hash string) error {
	now := r.clock.Now().UTC()
	q := r.db.Rebind(`UPDATE sessions SET revoked_at = ?, last_used_at = ? WHERE refresh_token_hash = ? AND revoked_at IS NULL`)
	if _, err := r.db.ExecContext(ctx, q, now, now, hash); err != nil {
		return fmt.Errorf("revoke session by hash: %w", err)
	}
	return nil
}

// Rotate revokes oldID and inserts next in one transaction. Only the caller
// whose conditional revoke changes the row succeeds; everyone else gets
// ErrSessionRevoked and nothing is written.
func (r *SessionRepo) Rotate(ctx context.Context, oldID int64, next *entity.Session) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback()

	now := r.clock.Now().UTC()
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE sessions SET revoked_at = ?, last_used_at = ? WHERE id = ? AND revoked_at IS NULL`),
		now, now, oldID)
	if err != nil {
		return fmt.Errorf("revoke old session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke old session: %w", err)
	}
	if n == 0 {
		return ErrSessionRevoked
	}
	if err := insert(ctx, tx, r.clock, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}
