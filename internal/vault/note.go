package vault

import (
	"time"
)

// SummaryState records whether a note's summary section is populated.
type SummaryState string

const (
	// SummaryOK means the summary was generated and written.
	SummaryOK SummaryState = "ok"
	// SummaryPending means summarization failed at capture time; the raw
	// clipping was kept and a later reindex may retry the summary.
	SummaryPending SummaryState = "pending"
)

// Document is one captured page: the front-matter identity plus the
// summary and raw clipping bodies. The ID is the note's path relative to
// the vault root, which stays stable across process restarts.
type Document struct {
	ID          string
	Path        string // absolute path on disk
	URL         string
	Title       string
	ContentHash string
	CapturedAt  time.Time
	Tags        []string
	Category    string
	Summary     string
	SummarySt   SummaryState
	RawText     string
}

// frontMatter is the machine-parsable block at the top of every note.
// It must round-trip: writing a note and reading it back reproduces
// identical url, content_hash, captured_at and tags.
type frontMatter struct {
	URL          string   `yaml:"url"`
	Title        string   `yaml:"title"`
	ContentHash  string   `yaml:"content_hash"`
	CapturedAt   string   `yaml:"captured_at"`
	Tags         []string `yaml:"tags,omitempty"`
	Category     string   `yaml:"category,omitempty"`
	SummaryState string   `yaml:"summary_state"`
	CapturedBy   string   `yaml:"captured_by"`
}

const capturedByValue = "clipvault"

// Section headings inside the note body.
const (
	summaryHeading  = "## Summary"
	clippingHeading = "## Clipping"
)
