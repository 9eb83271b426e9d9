package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// Credentials is the cached access token and its absolute expiry.
type Credentials struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token exists and has not expired.
func (c Credentials) Valid() bool {
	return c.AccessToken != "" && time.Now().Before(c.ExpiresAt)
}

// CredentialRepository persists the single-row token cache.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a CredentialRepository with the given database connection.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Load retrieves the cached credentials. An absent record yields zero credentials.
func (r *CredentialRepository) Load() Credentials {
	var creds Credentials
	var expiresAt sql.NullTime

	row := r.db.QueryRow("SELECT access_token, expires_at FROM credentials WHERE id = 1")
	if err := row.Scan(&creds.AccessToken, &expiresAt); err != nil {
		// Absent or unreadable rows are both cache misses.
		return Credentials{}
	}

	if expiresAt.Valid {
		creds.ExpiresAt = expiresAt.Time
	}
	return creds
}

// Save overwrites the cached credentials.
func (r *CredentialRepository) Save(creds Credentials) error {
	_, err := r.db.Exec(`
		INSERT INTO credentials (id, access_token, expires_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at
	`, creds.AccessToken, creds.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Clear removes the cached credentials.
func (r *CredentialRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM credentials WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
