package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

func NewUserRepo(db *sqlx.DB, clock clockwork.Clock) *UserRepo {
	return &UserRepo{db: db, clock: clock}
}

// FindByEmail returns the user with the given normalized email, or nil when
// there is none.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT id, email, password_hash, display_name, is_active, created_at, updated_at
		FROM users WHERE email = ?`)
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

// FindByID returns the public projection of a user, or nil when there is none.
func (r *UserRepo) FindByID(ctx context.Context, id int64) (*entity.PublicUser, error) {
	q := r.db.Rebind(`SELECT id, email, display_name, is_active, created_at, updated_at
		FROM users WHERE id = ?`)
	var u entity.PublicUser
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &u, nil
}

// Create inserts an active user and returns its public projection.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string, displayName *string) (*entity.PublicUser, error) {
	now := r.clock.Now().UTC()
	q := r.db.Rebind(`INSERT INTO users (email, password_hash, display_name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	if err := r.db.QueryRowxContext(ctx, q, email, passwordHash, displayName, true, now, now).Scan(&id); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &entity.PublicUser{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdatePasswordHash replaces the stored hash, e.g. after a parameter upgrade.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	q := r.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, hash, r.clock.Now().UTC(), id); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

// SetActive toggles whether the user may authenticate.
func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	q := r.db.Rebind(`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, active, r.clock.Now().UTC(), id); err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}
