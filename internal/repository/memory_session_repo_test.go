package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/gatekeeper/internal/model"
)

func newTestSession(id string, expiresAt time.Time) *model.Session {
	return &model.Session{
		ID: id,
		Identity: model.Identity{
			ID:    "google-" + id,
			Email: id + "@example.com",
			Name:  "User " + id,
		},
		IsWhitelisted: true,
		ExpiresAt:     expiresAt,
		CreatedAt:     expiresAt.Add(-24 * time.Hour),
	}
}

func TestMemorySessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*MemorySessionRepo)(nil)
}

func TestMemorySessionRepo_CreateAndFind(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	s := newTestSession("s1", time.Now().Add(time.Hour))
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.Identity.Email != "s1@example.com" {
		t.Errorf("Email = %q, want %q", got.Identity.Email, "s1@example.com")
	}
	if !got.IsWhitelisted {
		t.Error("IsWhitelisted should be preserved")
	}
}

func TestMemorySessionRepo_FindByID_Missing_ReturnsNil(t *testing.T) {
	repo := NewMemorySessionRepo()

	got, err := repo.FindByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestMemorySessionRepo_FindByID_Expired_ReturnsNil(t *testing.T) {
	repo := NewMemorySessionRepo()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	if err := repo.Create(ctx, newTestSession("s1", now.Add(time.Minute))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// 有効期限ちょうどで失効する
	repo.now = func() time.Time { return now.Add(time.Minute) }

	got, err := repo.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Error("expired session should not be returned")
	}
}

func TestMemorySessionRepo_ReturnsCopy(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()
	repo.Create(ctx, newTestSession("s1", time.Now().Add(time.Hour)))

	got, _ := repo.FindByID(ctx, "s1")
	got.IsWhitelisted = false

	again, _ := repo.FindByID(ctx, "s1")
	if !again.IsWhitelisted {
		t.Error("mutating a returned session must not affect the stored one")
	}
}

func TestMemorySessionRepo_DeleteByID(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()
	repo.Create(ctx, newTestSession("s1", time.Now().Add(time.Hour)))

	if err := repo.DeleteByID(ctx, "s1"); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	got, _ := repo.FindByID(ctx, "s1")
	if got != nil {
		t.Error("deleted session should not be found")
	}

	// 存在しないIDの削除もエラーにしない
	if err := repo.DeleteByID(ctx, "s1"); err != nil {
		t.Errorf("DeleteByID() on missing id error = %v", err)
	}
}

func TestMemorySessionRepo_CreatePurgesExpired(t *testing.T) {
	repo := NewMemorySessionRepo()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	repo.Create(ctx, newTestSession("old", now.Add(time.Second)))
	repo.now = func() time.Time { return now.Add(time.Hour) }
	repo.Create(ctx, newTestSession("new", now.Add(2*time.Hour)))

	if n := repo.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestMemorySessionRepo_ConcurrentAccess(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			repo.Create(ctx, newTestSession(id, expires))
			repo.FindByID(ctx, id)
			if i%2 == 0 {
				repo.DeleteByID(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	if n := repo.Len(); n != 25 {
		t.Errorf("Len() = %d, want 25", n)
	}
}
