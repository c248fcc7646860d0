package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

func openTempDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{
		Driver:  database.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "users.db"),
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUserRepoCreateAndFind(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	r := NewUserRepo(openTempDB(t), clock)
	ctx := context.Background()

	name := "Grace"
	created, err := r.Create(ctx, "grace@example.com", "hash", &name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 || !created.IsActive || !created.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected created user %+v", created)
	}

	byEmail, err := r.FindByEmail(ctx, "grace@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if byEmail == nil || byEmail.PasswordHash != "hash" || byEmail.DisplayName == nil || *byEmail.DisplayName != "Grace" {
		t.Fatalf("unexpected user %+v", byEmail)
	}

	byID, err := r.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if byID == nil || byID.Email != "grace@example.com" || !byID.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected public user %+v", byID)
	}
}

func TestUserRepoMissing(t *testing.T) {
	r := NewUserRepo(openTempDB(t), clockwork.NewFakeClock())
	ctx := context.Background()
	if u, err := r.FindByEmail(ctx, "none@example.com"); err != nil || u != nil {
		t.Fatalf("FindByEmail = %+v, %v", u, err)
	}
	if u, err := r.FindByID(ctx, 404); err != nil || u != nil {
		t.Fatalf("FindByID = %+v, %v", u, err)
	}
}

func TestUserRepoDuplicateEmail(t *testing.T) {
	r := NewUserRepo(openTempDB(t), clockwork.NewFakeClock())
	ctx := context.Background()
	if _, err := r.Create(ctx, "dup@example.com", "h", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(ctx, "dup@example.com", "h", nil); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRepoUpdates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewUserRepo(openTempDB(t), clock)
	ctx := context.Background()
	u, err := r.Create(ctx, "u@example.com", "old", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(time.Hour)
	if err := r.UpdatePasswordHash(ctx, u.ID, "new"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	if err := r.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got, err := r.FindByEmail(ctx, "u@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.PasswordHash != "new" || got.IsActive || !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("unexpected user after update %+v", got)
	}
}
