package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/ytsched/internal/kvstore"
	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/shared"
)

// setupRepo creates a repository over an in-memory SQLite store with migrations applied.
func setupRepo(t *testing.T) (*VideoRepository, kvstore.Store) {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := kvstore.NewSQLiteStore(db)
	return NewVideoRepository(store, nil), store
}

func sampleVideo() *models.ScheduledVideo {
	return &models.ScheduledVideo{
		URL:           "https://blob.example.com/videos/clip-x1.mp4",
		Title:         "Clip",
		Description:   "desc",
		ScheduledDate: "2025-03-01",
		Pathname:      "videos/clip-x1.mp4",
		BlobURL:       "https://blob.example.com/videos/clip-x1.mp4",
	}
}

func TestVideoRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Save and Get", func(t *testing.T) {
		repo, store := setupRepo(t)
		v := sampleVideo()

		if err := repo.Save(ctx, v); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		raw, err := store.Get(ctx, "video:videos/clip-x1.mp4")
		if err != nil {
			t.Fatalf("record should be stored under its video key: %v", err)
		}
		if raw == "" {
			t.Fatal("stored record is empty")
		}

		got, err := repo.Get(ctx, v.Pathname)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if *got != *v {
			t.Errorf("Get() = %+v, want %+v", got, v)
		}
	})

	t.Run("Save rejects incomplete records", func(t *testing.T) {
		repo, _ := setupRepo(t)
		v := sampleVideo()
		v.Title = ""

		if err := repo.Save(ctx, v); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo, _ := setupRepo(t)
		_, err := repo.Get(ctx, "videos/nope.mp4")
		if !IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("Get tolerates records without pathname", func(t *testing.T) {
		repo, store := setupRepo(t)
		store.Set(ctx, "video:videos/legacy.mp4", `{"url":"u","title":"Legacy","scheduledDate":"2025-03-01"}`)

		got, err := repo.Get(ctx, "videos/legacy.mp4")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Pathname != "videos/legacy.mp4" {
			t.Errorf("Pathname = %q", got.Pathname)
		}
	})

	t.Run("Get rejects corrupt JSON", func(t *testing.T) {
		repo, store := setupRepo(t)
		store.Set(ctx, "video:videos/bad.mp4", `{not json`)
		if _, err := repo.Get(ctx, "videos/bad.mp4"); err == nil || IsNotFound(err) {
			t.Errorf("expected decode error, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo, _ := setupRepo(t)
		v := sampleVideo()
		repo.Save(ctx, v)

		if err := repo.Delete(ctx, v.Pathname); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.Get(ctx, v.Pathname); !IsNotFound(err) {
			t.Errorf("expected not found after delete, got %v", err)
		}
	})
}

func TestLeases(t *testing.T) {
	ctx := context.Background()

	t.Run("Claim is exclusive until released", func(t *testing.T) {
		repo, store := setupRepo(t)

		lease, err := repo.Claim(ctx, "videos/a.mp4", time.Minute)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		if lease.Key != "lease:video:videos/a.mp4" {
			t.Errorf("lease key = %q", lease.Key)
		}
		if owner, _ := store.Get(ctx, lease.Key); owner != lease.Owner {
			t.Errorf("stored owner = %q, want %q", owner, lease.Owner)
		}

		if _, err := repo.Claim(ctx, "videos/a.mp4", time.Minute); !errors.Is(err, shared.ErrLeaseHeld) {
			t.Fatalf("expected ErrLeaseHeld, got %v", err)
		}

		if err := lease.Release(ctx); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if _, err := repo.Claim(ctx, "videos/a.mp4", time.Minute); err != nil {
			t.Errorf("Claim() after release error = %v", err)
		}
	})

	t.Run("Release does not free another owner's lease", func(t *testing.T) {
		repo, store := setupRepo(t)

		stale, _ := repo.Claim(ctx, "videos/b.mp4", time.Minute)
		store.Delete(ctx, stale.Key)
		current, err := repo.Claim(ctx, "videos/b.mp4", time.Minute)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}

		if err := stale.Release(ctx); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if owner, _ := store.Get(ctx, current.Key); owner != current.Owner {
			t.Errorf("current lease was released by stale owner")
		}
	})

	t.Run("leases do not collide with records", func(t *testing.T) {
		repo, _ := setupRepo(t)
		v := sampleVideo()
		repo.Save(ctx, v)

		lease, err := repo.Claim(ctx, v.Pathname, 0)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		defer lease.Release(ctx)

		if _, err := repo.Get(ctx, v.Pathname); err != nil {
			t.Errorf("record should be unaffected by lease: %v", err)
		}
		if time.Until(lease.Expires) < 29*time.Minute {
			t.Errorf("zero ttl should default to 30m, expires %v", lease.Expires)
		}
	})
}
