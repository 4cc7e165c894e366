package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/karimfahmy/clipvault/internal/chunker"
	"github.com/karimfahmy/clipvault/internal/db"
	"github.com/karimfahmy/clipvault/internal/embeddings"
	"github.com/karimfahmy/clipvault/internal/fingerprint"
	"github.com/karimfahmy/clipvault/internal/vault"
	"github.com/karimfahmy/clipvault/internal/vectordb"
)

var (
	// ErrIndexCorrupt indicates a store-level inconsistency, most
	// importantly an index built by a different embedding model than the
	// one configured now. Surfaced distinctly from "no results" so callers
	// can trigger a rebuild instead of silently degrading.
	ErrIndexCorrupt = errors.New("vector index corrupt")

	// ErrEmbeddingUnavailable indicates the embedding backend could not be
	// reached. Fatal for the call; not retried here.
	ErrEmbeddingUnavailable = embeddings.ErrUnavailable
)

const (
	metaEmbedderName = "embedder_name"
	metaEmbedderDims = "embedder_dimensions"
)

// Manager owns the vector store and keeps it consistent with the vault:
// every non-deleted note has passages derived from its current content
// hash, and no document ever has passages from two hashes at once.
//
// Locking: Upsert and Remove take a per-document lock plus a shared global
// read lock; RebuildAll takes the global write lock. Search takes the
// global read lock. The delete-then-insert sequence for one document is
// therefore atomic with respect to every other operation on it.
type Manager struct {
	store        vectordb.Store
	fingerprints *fingerprint.Store
	meta         *db.DB
	embedderName string
	dataDir      string

	maxChars     int
	overlapChars int

	mu      sync.RWMutex
	docMu   sync.Mutex
	docLock map[string]*sync.Mutex
}

// NewManager creates a Manager, loads any persisted index from dataDir and
// verifies the embedder identity pin. A pin mismatch fails with
// ErrIndexCorrupt before any writes can mix embedding spaces.
func NewManager(store vectordb.Store, fingerprints *fingerprint.Store, meta *db.DB, embedder embeddings.Embedder, maxChars, overlapChars int, dataDir string) (*Manager, error) {
	m := &Manager{
		store:        store,
		fingerprints: fingerprints,
		meta:         meta,
		embedderName: embedder.Name(),
		dataDir:      dataDir,
		maxChars:     maxChars,
		overlapChars: overlapChars,
		docLock:      make(map[string]*sync.Mutex),
	}

	pinned, err := meta.GetMeta(metaEmbedderName)
	if err != nil {
		return nil, err
	}
	switch {
	case pinned == "":
		if err := meta.SetMeta(metaEmbedderName, m.embedderName); err != nil {
			return nil, err
		}
		if err := meta.SetMeta(metaEmbedderDims, strconv.Itoa(embedder.Dimensions())); err != nil {
			return nil, err
		}
	case pinned != m.embedderName:
		return nil, fmt.Errorf("%w: index was built with embedder %q but %q is configured; run a force reindex",
			ErrIndexCorrupt, pinned, m.embedderName)
	}

	if err := store.Load(context.Background(), dataDir); err != nil {
		// A missing persist file just means a fresh index.
		log.Printf("index: no persisted store loaded from %s: %v", dataDir, err)
	}

	return m, nil
}

// Upsert indexes a document. If the recorded content hash is unchanged it
// is a no-op. Otherwise existing passages are deleted and fresh ones
// inserted as a single logical unit.
func (m *Manager) Upsert(ctx context.Context, doc *vault.Document) (changed bool, err error) {
	if doc.ContentHash == "" {
		doc.ContentHash = fingerprint.Fingerprint(doc.RawText)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	lock := m.lockFor(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	prev, known, err := m.fingerprints.LookupByDocument(doc.ID)
	if err != nil {
		return false, err
	}
	if known && prev.ContentHash == doc.ContentHash {
		return false, nil
	}

	if err := m.reindexLocked(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes all passages and the fingerprint for a document. Used
// when a vault note is deleted externally and detected by reconciliation.
func (m *Manager) Remove(ctx context.Context, documentID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lock := m.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete passages for %s: %w", documentID, err)
	}
	if err := m.fingerprints.Remove(documentID); err != nil {
		return err
	}
	return m.persistLocked(ctx)
}

// RebuildAll clears the index and reindexes every given document from
// scratch. Idempotent: rebuilding twice from the same vault state yields
// the same passage set. onProgress may be nil.
func (m *Manager) RebuildAll(ctx context.Context, docs []*vault.Document, onProgress func(done, total int)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := m.fingerprints.Clear(); err != nil {
		return err
	}
	if err := m.meta.SetMeta(metaEmbedderName, m.embedderName); err != nil {
		return err
	}

	for i, doc := range docs {
		if doc.ContentHash == "" {
			doc.ContentHash = fingerprint.Fingerprint(doc.RawText)
		}
		if err := m.reindexLocked(ctx, doc); err != nil {
			return fmt.Errorf("rebuild %s: %w", doc.ID, err)
		}
		if onProgress != nil {
			onProgress(i+1, len(docs))
		}
	}

	return m.persistLocked(ctx)
}

// Search returns the top-k passages for the query text.
func (m *Manager) Search(ctx context.Context, query string, topK int) ([]vectordb.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results, err := m.store.Search(ctx, query, topK)
	if err != nil {
		if errors.Is(err, embeddings.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	return results, nil
}

// Stats describes the index state.
type Stats struct {
	Passages  int
	Documents int
	Embedder  string
}

// Stats returns current index counters.
func (m *Manager) Stats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs, err := m.fingerprints.Count()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Passages:  m.store.Count(),
		Documents: docs,
		Embedder:  m.embedderName,
	}, nil
}

// Close persists the store. Called on shutdown.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked(ctx)
}

// reindexLocked performs the delete-then-insert sequence for one document.
// Callers must hold the document lock (or the global write lock).
func (m *Manager) reindexLocked(ctx context.Context, doc *vault.Document) error {
	passages, err := m.chunkDocument(doc)
	if err != nil {
		return err
	}

	if err := m.store.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete stale passages for %s: %w", doc.ID, err)
	}
	if err := m.store.AddPassages(ctx, passages); err != nil {
		if errors.Is(err, embeddings.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("add passages for %s: %w", doc.ID, err)
	}

	if err := m.fingerprints.Record(doc.ContentHash, doc.ID, doc.URL, doc.CapturedAt); err != nil {
		return err
	}
	return m.persistLocked(ctx)
}

func (m *Manager) chunkDocument(doc *vault.Document) ([]vectordb.Passage, error) {
	chunks, err := chunker.Chunk(doc.RawText, m.maxChars, m.overlapChars)
	if err != nil {
		return nil, err
	}

	passages := make([]vectordb.Passage, 0, len(chunks))
	for _, c := range chunks {
		passages = append(passages, vectordb.Passage{
			ID:   fmt.Sprintf("%s#%d", doc.ID, c.Index),
			Text: c.Text,
			Metadata: vectordb.PassageMetadata{
				DocumentID:  doc.ID,
				URL:         doc.URL,
				Title:       doc.Title,
				ContentHash: doc.ContentHash,
				Sequence:    c.Index,
				CharStart:   c.Start,
				CharEnd:     c.End,
				CapturedAt:  doc.CapturedAt,
			},
		})
	}
	return passages, nil
}

func (m *Manager) persistLocked(ctx context.Context) error {
	if err := m.store.Persist(ctx, m.dataDir); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	return nil
}

func (m *Manager) lockFor(documentID string) *sync.Mutex {
	m.docMu.Lock()
	defer m.docMu.Unlock()
	lock, ok := m.docLock[documentID]
	if !ok {
		lock = &sync.Mutex{}
		m.docLock[documentID] = lock
	}
	return lock
}
