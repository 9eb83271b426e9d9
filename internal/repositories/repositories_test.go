package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/pomokey/pomokey/internal/models"
	"github.com/pomokey/pomokey/internal/shared"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestLibraryRepository(t *testing.T) {
	t.Run("Load Absent Returns Empty", func(t *testing.T) {
		repo := NewLibraryRepository(newTestDB(t), nil)

		lib := repo.Load("nobody")
		if lib == nil {
			t.Fatal("expected a library, got nil")
		}
		if len(lib.Tracks) != 0 || lib.ETag != "" {
			t.Errorf("expected empty library, got %+v", lib)
		}
	})

	t.Run("Save And Load Round Trip", func(t *testing.T) {
		repo := NewLibraryRepository(newTestDB(t), nil)

		saved := &models.Library{
			ETag: "tag-1",
			Tracks: []models.Track{
				{ID: "a", URI: "spotify:track:a", DurationMS: 180000, Key: 4, Mode: 1, Energy: 0.6},
				{ID: "b", URI: "spotify:track:b", DurationMS: 240000, Key: models.KeyUnknown, Mode: models.ModeUnknown, Energy: models.EnergyUnknown},
			},
		}

		if err := repo.Save("user1", saved); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		loaded := repo.Load("user1")
		if loaded.ETag != "tag-1" {
			t.Errorf("expected etag tag-1, got %q", loaded.ETag)
		}
		if len(loaded.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(loaded.Tracks))
		}
		if loaded.Tracks[0] != saved.Tracks[0] {
			t.Errorf("first track mismatch: %+v", loaded.Tracks[0])
		}
		if loaded.Tracks[1].Energy != models.EnergyUnknown {
			t.Errorf("energy sentinel not preserved: %v", loaded.Tracks[1].Energy)
		}
	})

	t.Run("Save Overwrites Whole Record", func(t *testing.T) {
		repo := NewLibraryRepository(newTestDB(t), nil)

		first := &models.Library{ETag: "v1", Tracks: []models.Track{{ID: "a"}, {ID: "b"}}}
		if err := repo.Save("user1", first); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		second := &models.Library{ETag: "v2", Tracks: []models.Track{{ID: "c"}}}
		if err := repo.Save("user1", second); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		loaded := repo.Load("user1")
		if loaded.ETag != "v2" || len(loaded.Tracks) != 1 || loaded.Tracks[0].ID != "c" {
			t.Errorf("expected full overwrite, got %+v", loaded)
		}
	})

	t.Run("Used Flag Not Persisted", func(t *testing.T) {
		repo := NewLibraryRepository(newTestDB(t), nil)

		lib := &models.Library{Tracks: []models.Track{{ID: "a", Used: true}}}
		if err := repo.Save("user1", lib); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		if loaded := repo.Load("user1"); loaded.Tracks[0].Used {
			t.Error("used flag should not survive persistence")
		}
	})

	t.Run("Corrupt Record Treated As Absent", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewLibraryRepository(db, nil)

		if _, err := db.Exec("INSERT INTO libraries (user_id, etag, tracks) VALUES ('user1', 'v1', 'not json')"); err != nil {
			t.Fatalf("failed to insert corrupt record: %v", err)
		}

		lib := repo.Load("user1")
		if len(lib.Tracks) != 0 || lib.ETag != "" {
			t.Errorf("expected empty library for corrupt record, got %+v", lib)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewLibraryRepository(newTestDB(t), nil)

		if err := repo.Save("user1", &models.Library{ETag: "v1"}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.Clear("user1"); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if lib := repo.Load("user1"); lib.ETag != "" {
			t.Errorf("expected cleared library, got %+v", lib)
		}
	})
}

func TestCredentialRepository(t *testing.T) {
	t.Run("Load Absent Returns Zero", func(t *testing.T) {
		repo := NewCredentialRepository(newTestDB(t))

		creds := repo.Load()
		if creds.AccessToken != "" {
			t.Errorf("expected empty credentials, got %+v", creds)
		}
		if creds.Valid() {
			t.Error("zero credentials should not be valid")
		}
	})

	t.Run("Save And Load", func(t *testing.T) {
		repo := NewCredentialRepository(newTestDB(t))

		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		if err := repo.Save(Credentials{AccessToken: "tok", ExpiresAt: expires}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		creds := repo.Load()
		if creds.AccessToken != "tok" {
			t.Errorf("expected token tok, got %q", creds.AccessToken)
		}
		if !creds.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, creds.ExpiresAt)
		}
		if !creds.Valid() {
			t.Error("expected valid credentials")
		}
	})

	t.Run("Expired Token Invalid", func(t *testing.T) {
		creds := Credentials{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute)}
		if creds.Valid() {
			t.Error("expired credentials should not be valid")
		}
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		repo := NewCredentialRepository(newTestDB(t))

		if err := repo.Save(Credentials{AccessToken: "old", ExpiresAt: time.Now()}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.Save(Credentials{AccessToken: "new", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		if creds := repo.Load(); creds.AccessToken != "new" {
			t.Errorf("expected new token, got %q", creds.AccessToken)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewCredentialRepository(newTestDB(t))

		if err := repo.Save(Credentials{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := repo.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if creds := repo.Load(); creds.AccessToken != "" {
			t.Errorf("expected cleared credentials, got %+v", creds)
		}
	})
}
