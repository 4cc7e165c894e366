package vectordb

import "context"

// Store defines the interface for the persistent passage index.
type Store interface {
	// AddPassages inserts passages, embedding their text.
	AddPassages(ctx context.Context, passages []Passage) error

	// Search returns up to limit passages ranked by similarity to the
	// query text. Equal similarity is broken by more recent captured_at.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// DeleteByDocument removes all passages for a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Reset removes every passage.
	Reset(ctx context.Context) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory. Returns
	// os.ErrNotExist-wrapped errors when nothing was persisted yet.
	Load(ctx context.Context, dir string) error

	// Count returns the number of stored passages.
	Count() int
}
