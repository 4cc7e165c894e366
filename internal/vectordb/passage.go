package vectordb

import "time"

// Passage is a vector-store-resident chunk of a captured document. The
// metadata is sufficient to build a citation without re-reading the note.
type Passage struct {
	ID       string
	Text     string
	Metadata PassageMetadata
}

// PassageMetadata identifies the passage's source document.
type PassageMetadata struct {
	DocumentID  string
	URL         string
	Title       string
	ContentHash string
	Sequence    int
	CharStart   int
	CharEnd     int
	CapturedAt  time.Time
}

// SearchResult pairs a passage with its similarity score.
type SearchResult struct {
	Passage    Passage
	Similarity float32
}
