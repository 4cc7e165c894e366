package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
)

// ErrorKind classifies scrape failures for the capture orchestrator's
// retry decision.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "TIMEOUT"
	KindUpstream     ErrorKind = "UPSTREAM_ERROR"
	KindEmptyContent ErrorKind = "EMPTY_CONTENT"
	KindInvalidURL   ErrorKind = "INVALID_URL"
)

// Error is a classified scrape failure.
type Error struct {
	Kind     ErrorKind
	Strategy string
	Err      error
}

func (e *Error) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("scrape failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("scrape failed (%s, strategy %s): %v", e.Kind, e.Strategy, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator's retry policy applies.
// Bad input and empty pages do not get better on retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUpstream
}

// Result is a successful scrape: page text as markdown plus the strategy
// that produced it.
type Result struct {
	URL      string
	Title    string
	Markdown string
	Method   string
}

// Strategy is one way of turning a URL into content. Each strategy is
// attempted at most once per Scrape call; retry scheduling belongs to the
// capture orchestrator.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, pageURL string) (*Result, error)
}

// Adapter tries an ordered list of strategies until one succeeds.
type Adapter struct {
	strategies []Strategy
	timeout    time.Duration
}

// New builds an Adapter. When readerBaseURL is non-empty the remote reader
// service is primary with the direct fetch as fallback; otherwise direct
// fetch is the only strategy.
func New(readerBaseURL, userAgent string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var strategies []Strategy
	if readerBaseURL != "" {
		strategies = append(strategies, newReaderStrategy(readerBaseURL))
	}
	strategies = append(strategies, newDirectStrategy(userAgent))

	return &Adapter{strategies: strategies, timeout: timeout}
}

// Scrape validates the URL, then runs each strategy once under the
// configured per-attempt timeout. A result with empty or whitespace-only
// text counts as a failure, not a success.
func (a *Adapter) Scrape(ctx context.Context, pageURL string) (*Result, error) {
	if err := validateURL(pageURL); err != nil {
		return nil, &Error{Kind: KindInvalidURL, Err: err}
	}

	var lastErr *Error
	for _, strat := range a.strategies {
		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		res, err := strat.Attempt(attemptCtx, pageURL)
		cancel()

		if err != nil {
			lastErr = classify(strat.Name(), err)
			log.Printf("scrape: strategy %s failed for %s: %v", strat.Name(), pageURL, err)
			continue
		}

		if strings.TrimSpace(res.Markdown) == "" {
			lastErr = &Error{Kind: KindEmptyContent, Strategy: strat.Name(), Err: fmt.Errorf("no content extracted from %s", pageURL)}
			log.Printf("scrape: strategy %s returned empty content for %s", strat.Name(), pageURL)
			continue
		}

		if strings.TrimSpace(res.Title) == "" {
			res.Title = fallbackTitle(pageURL)
		}
		res.URL = pageURL
		res.Method = strat.Name()
		return res, nil
	}

	return nil, lastErr
}

func validateURL(pageURL string) error {
	u, err := url.ParseRequestURI(pageURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", pageURL)
	}
	return nil
}

func classify(strategy string, err error) *Error {
	kind := KindUpstream
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Strategy: strategy, Err: err}
}

func fallbackTitle(pageURL string) string {
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "Untitled"
}
