package vectordb

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/karimfahmy/clipvault/internal/embeddings"
)

const (
	collectionName  = "vault"
	persistFilename = "chromem.gob.gz"
)

// ChromemStore implements Store using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates an in-memory ChromemStore embedding through the
// given embedder. Call Load to restore a persisted index.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, collection: col, embedFunc: ef}, nil
}

func (s *ChromemStore) AddPassages(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		docs[i] = chromem.Document{
			ID:       p.ID,
			Content:  p.Text,
			Metadata: metadataToMap(p.Metadata),
		}
	}

	return s.collection.AddDocuments(ctx, docs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			Passage: Passage{
				ID:       r.ID,
				Text:     r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}

	// chromem orders by similarity; break exact ties by recency.
	sort.SliceStable(searchResults, func(i, j int) bool {
		if searchResults[i].Similarity != searchResults[j].Similarity {
			return searchResults[i].Similarity > searchResults[j].Similarity
		}
		return searchResults[i].Passage.Metadata.CapturedAt.After(searchResults[j].Passage.Metadata.CapturedAt)
	})

	return searchResults, nil
}

func (s *ChromemStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	where := map[string]string{"document_id": documentID}
	return s.collection.Delete(ctx, where, nil)
}

func (s *ChromemStore) Reset(_ context.Context) error {
	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(collectionName, nil, s.embedFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Persist(_ context.Context, dir string) error {
	return s.db.ExportToFile(filepath.Join(dir, persistFilename), true, "")
}

func (s *ChromemStore) Load(_ context.Context, dir string) error {
	err := s.db.ImportFromFile(filepath.Join(dir, persistFilename), "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func metadataToMap(m PassageMetadata) map[string]string {
	return map[string]string{
		"document_id":  m.DocumentID,
		"url":          m.URL,
		"title":        m.Title,
		"content_hash": m.ContentHash,
		"sequence":     strconv.Itoa(m.Sequence),
		"char_start":   strconv.Itoa(m.CharStart),
		"char_end":     strconv.Itoa(m.CharEnd),
		"captured_at":  m.CapturedAt.UTC().Format(time.RFC3339),
	}
}

func mapToMetadata(m map[string]string) PassageMetadata {
	sequence, _ := strconv.Atoi(m["sequence"])
	charStart, _ := strconv.Atoi(m["char_start"])
	charEnd, _ := strconv.Atoi(m["char_end"])
	capturedAt, _ := time.Parse(time.RFC3339, m["captured_at"])

	return PassageMetadata{
		DocumentID:  m["document_id"],
		URL:         m["url"],
		Title:       m["title"],
		ContentHash: m["content_hash"],
		Sequence:    sequence,
		CharStart:   charStart,
		CharEnd:     charEnd,
		CapturedAt:  capturedAt,
	}
}
