package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/karimfahmy/clipvault/internal/fingerprint"
	"github.com/karimfahmy/clipvault/internal/index"
	"github.com/karimfahmy/clipvault/internal/scraper"
	"github.com/karimfahmy/clipvault/internal/summarizer"
	"github.com/karimfahmy/clipvault/internal/vault"
)

// Stage names the orchestrator's pipeline states. Terminal failure stages
// carry which step broke, so callers know whether partial artifacts exist.
type Stage string

const (
	StageReceived    Stage = "RECEIVED"
	StageScraping    Stage = "SCRAPING"
	StageSummarizing Stage = "SUMMARIZING"
	StageWriting     Stage = "WRITING"
	StageIndexing    Stage = "INDEXING"
	StageIndexed     Stage = "INDEXED"

	StageScrapeFailed    Stage = "SCRAPE_FAILED"
	StageSummarizeFailed Stage = "SUMMARIZE_FAILED"
	StageWriteFailed     Stage = "WRITE_FAILED"
	StageIndexFailed     Stage = "INDEX_FAILED"
)

// Error is a structured capture failure: which stage broke, a machine
// readable kind, and whether a partial artifact (the written note) exists.
type Error struct {
	Stage       Stage
	Kind        string
	Err         error
	PartialPath string
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result reports a finished capture.
type Result struct {
	RequestID    string             `json:"request_id"`
	Stage        Stage              `json:"stage"`
	DocumentID   string             `json:"document_id,omitempty"`
	Path         string             `json:"path,omitempty"`
	Title        string             `json:"title,omitempty"`
	Indexed      bool               `json:"indexed"`
	Deduplicated bool               `json:"deduplicated,omitempty"`
	SummaryState vault.SummaryState `json:"summary_state,omitempty"`
	Warning      string             `json:"warning,omitempty"`
}

// Orchestrator composes scrape, summarize, write and index into one
// pipeline. Stages run strictly in order; retries happen here, at stage
// granularity, never inside the clients.
type Orchestrator struct {
	scraper      *scraper.Adapter
	summarizer   *summarizer.Client
	writer       *vault.Writer
	index        *index.Manager
	fingerprints *fingerprint.Store
	vaultRoot    string
	retry        RetryPolicy
}

// NewOrchestrator wires the capture pipeline.
func NewOrchestrator(
	scrapeAdapter *scraper.Adapter,
	summarizeClient *summarizer.Client,
	writer *vault.Writer,
	indexManager *index.Manager,
	fingerprints *fingerprint.Store,
	vaultRoot string,
	retry RetryPolicy,
) *Orchestrator {
	return &Orchestrator{
		scraper:      scrapeAdapter,
		summarizer:   summarizeClient,
		writer:       writer,
		index:        indexManager,
		fingerprints: fingerprints,
		vaultRoot:    vaultRoot,
		retry:        retry,
	}
}

// Capture runs the full pipeline for one URL. A summarization failure
// degrades to a raw-only note (partial success); a write failure is
// terminal; an index failure still returns the written note's path so the
// gap between "captured" and "searchable" is visible to the caller.
func (o *Orchestrator) Capture(ctx context.Context, pageURL string) (*Result, error) {
	result := &Result{
		RequestID: uuid.NewString(),
		Stage:     StageReceived,
	}
	log.Printf("capture: [%s] %s", result.RequestID, pageURL)

	// Scrape.
	result.Stage = StageScraping
	var scraped *scraper.Result
	err := o.retry.Do(ctx, "scrape", scrapeRetryable, func(ctx context.Context) error {
		var attemptErr error
		scraped, attemptErr = o.scraper.Scrape(ctx, pageURL)
		return attemptErr
	})
	if err != nil {
		result.Stage = StageScrapeFailed
		return result, &Error{Stage: StageScrapeFailed, Kind: scrapeKind(err), Err: err}
	}
	result.Title = scraped.Title

	// Dedup on content identity before spending LLM tokens: identical
	// content arriving via any URL is a re-capture, not a new document.
	hash := fingerprint.Fingerprint(scraped.Markdown)
	if res, handled, err := o.handleRecapture(ctx, result, hash); handled || err != nil {
		return res, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	doc := &vault.Document{
		URL:         pageURL,
		Title:       scraped.Title,
		ContentHash: hash,
		CapturedAt:  now,
		RawText:     scraped.Markdown,
		SummarySt:   vault.SummaryOK,
	}

	// Summarize. Failure here is partial, not fatal: the scraped content
	// is still valuable and the summary can be retried by a later reindex.
	result.Stage = StageSummarizing
	var summary *summarizer.Result
	err = o.retry.Do(ctx, "summarize", summarizeRetryable, func(ctx context.Context) error {
		var attemptErr error
		summary, attemptErr = o.summarizer.Summarize(ctx, doc.RawText)
		return attemptErr
	})
	if err != nil {
		log.Printf("capture: [%s] summarization failed, writing raw note: %v", result.RequestID, err)
		doc.SummarySt = vault.SummaryPending
		result.Warning = fmt.Sprintf("summarization failed: %v; note saved without summary", err)
	} else {
		doc.Summary = summary.Summary
		doc.Tags = summary.Keywords
		doc.Category = summary.Category
		if summary.Truncated {
			result.Warning = "content exceeded the summarization budget and was truncated head+tail"
		}
	}
	result.SummaryState = doc.SummarySt

	// Write the note atomically.
	result.Stage = StageWriting
	path, err := o.writer.Write(doc)
	if err != nil {
		result.Stage = StageWriteFailed
		return result, &Error{Stage: StageWriteFailed, Kind: "WRITE_ERROR", Err: err}
	}
	result.Path = path
	result.DocumentID = doc.ID

	// Index. The note is durable at this point; an index failure must be
	// reported, never swallowed, so the caller can reindex later.
	result.Stage = StageIndexing
	err = o.retry.Do(ctx, "index", indexRetryable, func(ctx context.Context) error {
		_, attemptErr := o.index.Upsert(ctx, doc)
		return attemptErr
	})
	if err != nil {
		result.Stage = StageIndexFailed
		return result, &Error{Stage: StageIndexFailed, Kind: "INDEX_ERROR", Err: err, PartialPath: path}
	}

	result.Stage = StageIndexed
	result.Indexed = true
	log.Printf("capture: [%s] indexed %s as %s", result.RequestID, pageURL, doc.ID)
	return result, nil
}

// handleRecapture checks the content hash against known captures. On a
// hit, only captured_at moves: the note's front-matter is refreshed and
// the fingerprint touched. No new note, no new passages.
func (o *Orchestrator) handleRecapture(ctx context.Context, result *Result, hash string) (*Result, bool, error) {
	entry, known, err := o.fingerprints.Lookup(hash)
	if err != nil {
		return result, false, &Error{Stage: StageScraping, Kind: "STORE_ERROR", Err: err}
	}
	if !known {
		return nil, false, nil
	}

	existing, err := vault.ParseNote(o.vaultRoot, o.notePath(entry.DocumentID))
	if err == nil {
		existing.CapturedAt = time.Now().UTC().Truncate(time.Second)
		if _, err := o.writer.Write(existing); err != nil {
			log.Printf("capture: [%s] refresh of %s failed: %v", result.RequestID, entry.DocumentID, err)
		}
		if err := o.fingerprints.Touch(hash, existing.CapturedAt); err != nil {
			log.Printf("capture: [%s] fingerprint touch failed: %v", result.RequestID, err)
		}
		result.Path = existing.Path
		result.Title = existing.Title
		result.SummaryState = existing.SummarySt
		result.Indexed = true
	} else {
		// Note vanished but fingerprint survived; reconciliation will
		// clean this up. Report the dedup hit without claiming the note
		// is still there.
		log.Printf("capture: [%s] fingerprint hit for missing note %s: %v", result.RequestID, entry.DocumentID, err)
		result.Warning = "previously captured note is missing from the vault; run reindex"
	}

	result.Stage = StageIndexed
	result.DocumentID = entry.DocumentID
	result.Deduplicated = true
	log.Printf("capture: [%s] deduplicated against %s", result.RequestID, entry.DocumentID)
	return result, true, nil
}

// RetryPendingSummaries finds captured notes whose summarization failed at
// capture time and tries again. Called from the incremental reindex path.
// Returns how many notes gained a summary.
func (o *Orchestrator) RetryPendingSummaries(ctx context.Context, docs []*vault.Document) int {
	if o.summarizer == nil {
		return 0
	}

	retried := 0
	for _, doc := range docs {
		if doc.SummarySt != vault.SummaryPending || !vault.IsCaptured(doc) {
			continue
		}

		summary, err := o.summarizer.Summarize(ctx, doc.RawText)
		if err != nil {
			log.Printf("capture: summary retry for %s failed: %v", doc.ID, err)
			continue
		}

		doc.Summary = summary.Summary
		doc.Tags = summary.Keywords
		doc.Category = summary.Category
		doc.SummarySt = vault.SummaryOK
		if _, err := o.writer.Write(doc); err != nil {
			log.Printf("capture: rewriting %s after summary retry failed: %v", doc.ID, err)
			continue
		}
		retried++
	}
	return retried
}

func (o *Orchestrator) notePath(documentID string) string {
	return o.vaultRoot + "/" + documentID
}

func scrapeRetryable(err error) bool {
	var se *scraper.Error
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

func summarizeRetryable(err error) bool {
	var se *summarizer.Error
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

func indexRetryable(err error) bool {
	return errors.Is(err, index.ErrEmbeddingUnavailable)
}

func scrapeKind(err error) string {
	var se *scraper.Error
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "UPSTREAM_ERROR"
}
