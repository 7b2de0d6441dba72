package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

type Status string

const (
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Attempt is one publish try for an assembled panorama.
type Attempt struct {
	ID         int64
	ListingID  string
	ArtifactID string
	Number     int // 1-based attempt count for the artifact
	Status     Status
	URL        string
	Error      string
	// DuplicateRisk marks a success that followed a failed attempt under a
	// fresh object key; the remote may hold an orphaned copy.
	DuplicateRisk bool
	CreatedAt     time.Time
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS publish_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	listing_id TEXT NOT NULL,
	artifact_id TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	status TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	duplicate_risk INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_publish_attempts_listing ON publish_attempts(listing_id);
CREATE INDEX IF NOT EXISTS idx_publish_attempts_created ON publish_attempts(created_at);
`

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(a Attempt) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	result, err := s.db.Exec(`
		INSERT INTO publish_attempts (listing_id, artifact_id, attempt, status, url, error, duplicate_risk, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ListingID, a.ArtifactID, a.Number, string(a.Status), a.URL, a.Error, a.DuplicateRisk, a.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}

	id, _ := result.LastInsertId()
	return id, nil
}

// ForListing returns attempts for a listing, oldest first.
func (s *Store) ForListing(listingID string) ([]Attempt, error) {
	rows, err := s.db.Query(`
		SELECT id, listing_id, artifact_id, attempt, status, url, error, duplicate_risk, created_at
		FROM publish_attempts
		WHERE listing_id = ?
		ORDER BY id ASC`,
		listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// PossibleDuplicates returns successful attempts flagged as duplicate risks.
// An empty listingID matches every listing.
func (s *Store) PossibleDuplicates(listingID string) ([]Attempt, error) {
	rows, err := s.db.Query(`
		SELECT id, listing_id, artifact_id, attempt, status, url, error, duplicate_risk, created_at
		FROM publish_attempts
		WHERE status = ? AND duplicate_risk = 1
		AND (? = '' OR listing_id = ?)
		ORDER BY id ASC`,
		string(StatusPublished), listingID, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// Prune deletes attempts recorded before cutoff.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM publish_attempts WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return result.RowsAffected()
}

func scanAttempts(rows *sql.Rows) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var status string
		var created int64
		if err := rows.Scan(&a.ID, &a.ListingID, &a.ArtifactID, &a.Number, &status, &a.URL, &a.Error, &a.DuplicateRisk, &created); err != nil {
			return nil, err
		}
		a.Status = Status(status)
		a.CreatedAt = time.Unix(created, 0)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
