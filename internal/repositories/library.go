package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pomokey/pomokey/internal/models"
)

// LibraryRepository persists cached user libraries.
//
// Saves are serialized with a mutex so two sessions for the same process
// cannot interleave partial writes; each save rewrites the full record in a
// single statement.
type LibraryRepository struct {
	db     *sql.DB
	logger *log.Logger
	mu     sync.Mutex
}

// NewLibraryRepository creates a LibraryRepository with the given database connection.
func NewLibraryRepository(db *sql.DB, logger *log.Logger) *LibraryRepository {
	return &LibraryRepository{db: db, logger: logger}
}

// Load retrieves the cached library for a user.
//
// A missing or unreadable record yields an empty library, never an error:
// corruption is treated as a cache miss.
func (r *LibraryRepository) Load(userID string) *models.Library {
	var etag, tracksJSON string

	row := r.db.QueryRow("SELECT etag, tracks FROM libraries WHERE user_id = ?", userID)
	if err := row.Scan(&etag, &tracksJSON); err != nil {
		if !errors.Is(err, sql.ErrNoRows) && r.logger != nil {
			r.logger.Warn("unreadable library record, treating as absent", "user", userID, "error", err)
		}
		return &models.Library{}
	}

	var tracks []models.Track
	if err := json.Unmarshal([]byte(tracksJSON), &tracks); err != nil {
		if r.logger != nil {
			r.logger.Warn("corrupt library record, treating as absent", "user", userID, "error", err)
		}
		return &models.Library{}
	}

	return &models.Library{Tracks: tracks, ETag: etag}
}

// Save overwrites the user's cache record with the full library.
func (r *LibraryRepository) Save(userID string, lib *models.Library) error {
	tracks := lib.Tracks
	if tracks == nil {
		tracks = []models.Track{}
	}

	payload, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.Exec(`
		INSERT INTO libraries (user_id, etag, tracks, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			etag = excluded.etag,
			tracks = excluded.tracks,
			updated_at = CURRENT_TIMESTAMP
	`, userID, lib.ETag, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}

	return nil
}

// Clear removes the user's cache record.
func (r *LibraryRepository) Clear(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("DELETE FROM libraries WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear library: %w", err)
	}
	return nil
}
