package fingerprint

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/karimfahmy/clipvault/internal/db"
)

// Entry is one recorded fingerprint.
type Entry struct {
	ContentHash string
	DocumentID  string
	URL         string
	CapturedAt  time.Time
}

// Store persists content fingerprints in sqlite. It answers two questions:
// "has this exact content been captured before, regardless of URL?" and
// "which hash did we last index for this document?".
type Store struct {
	db *db.DB
}

// NewStore creates a Store over the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Lookup returns an entry recorded for hash, or ok=false if unknown.
// Several documents can carry the same content (a copied note file is a
// legal vault state); the lowest document ID wins so the answer is stable.
func (s *Store) Lookup(hash string) (Entry, bool, error) {
	row := s.db.QueryRow(
		`SELECT content_hash, document_id, url, captured_at FROM fingerprints
		 WHERE content_hash = ? ORDER BY document_id LIMIT 1`,
		hash,
	)
	return scanEntry(row, "fingerprint lookup")
}

// LookupByDocument returns the entry recorded for a document ID, or ok=false.
func (s *Store) LookupByDocument(documentID string) (Entry, bool, error) {
	row := s.db.QueryRow(
		`SELECT content_hash, document_id, url, captured_at FROM fingerprints WHERE document_id = ?`,
		documentID,
	)
	return scanEntry(row, "fingerprint lookup by document")
}

func scanEntry(row *sql.Row, op string) (Entry, bool, error) {
	var e Entry
	var at string
	err := row.Scan(&e.ContentHash, &e.DocumentID, &e.URL, &at)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("%s: %w", op, err)
	}
	e.CapturedAt, err = time.Parse(time.RFC3339, at)
	if err != nil {
		return Entry{}, false, fmt.Errorf("%s: bad captured_at %q: %w", op, at, err)
	}
	return e, true, nil
}

// Record stores the fingerprint for a document. Rows are keyed by
// document_id: a re-capture with changed content replaces the hash, and
// two notes with identical content each keep their own row, so indexing
// a vault containing copied notes never trips a uniqueness conflict.
func (s *Store) Record(hash, documentID, url string, capturedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO fingerprints (document_id, content_hash, url, captured_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
		     content_hash = excluded.content_hash,
		     url          = excluded.url,
		     captured_at  = excluded.captured_at`,
		documentID, hash, url, capturedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("fingerprint record: %w", err)
	}
	return nil
}

// Touch refreshes the captured_at timestamp for a known hash. Used when a
// re-capture produces identical content and only the metadata moves.
func (s *Store) Touch(hash string, capturedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE fingerprints SET captured_at = ? WHERE content_hash = ?`,
		capturedAt.UTC().Format(time.RFC3339), hash,
	)
	if err != nil {
		return fmt.Errorf("fingerprint touch: %w", err)
	}
	return nil
}

// Remove deletes all fingerprints for a document. Called when the document
// is removed from the vault.
func (s *Store) Remove(documentID string) error {
	_, err := s.db.Exec(`DELETE FROM fingerprints WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("fingerprint remove: %w", err)
	}
	return nil
}

// Clear drops every fingerprint. Used by force reindex before rebuilding.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM fingerprints`)
	if err != nil {
		return fmt.Errorf("fingerprint clear: %w", err)
	}
	return nil
}

// Documents returns every recorded entry, one per document. Used by
// reconciliation to find documents whose notes were deleted externally.
func (s *Store) Documents() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT content_hash, document_id, url, captured_at FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("fingerprint list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ContentHash, &e.DocumentID, &e.URL, &at); err != nil {
			return nil, fmt.Errorf("fingerprint list: %w", err)
		}
		if e.CapturedAt, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("fingerprint list: bad captured_at %q: %w", at, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded fingerprints.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fingerprints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("fingerprint count: %w", err)
	}
	return n, nil
}
