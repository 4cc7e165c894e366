package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ParseNote reads a note file back into a Document. The ID is the path
// relative to root.
func ParseNote(root, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading note %s: %w", path, err)
	}

	fm, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing note %s: %w", path, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, fmt.Errorf("note %s outside vault: %w", path, err)
	}

	capturedAt, err := time.Parse(time.RFC3339, fm.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("note %s: invalid captured_at %q: %w", path, fm.CapturedAt, err)
	}

	doc := &Document{
		ID:          filepath.ToSlash(rel),
		Path:        path,
		URL:         fm.URL,
		Title:       fm.Title,
		ContentHash: fm.ContentHash,
		CapturedAt:  capturedAt,
		Tags:        fm.Tags,
		Category:    fm.Category,
		SummarySt:   SummaryState(fm.SummaryState),
	}
	doc.Summary, doc.RawText = splitBody(body)
	return doc, nil
}

// IsCaptured reports whether the note at path was written by clipvault,
// without parsing the whole file. Hand-written vault notes are indexed but
// never rewritten or summarized.
func IsCaptured(doc *Document) bool {
	return doc.URL != "" && doc.ContentHash != ""
}

// Scan walks the vault and parses every markdown note not matched by an
// exclude pattern (doublestar globs relative to root). Notes that fail to
// parse are skipped and reported in the second return value rather than
// aborting the scan: one malformed file must not block reindexing the rest.
func Scan(root string, excludes []string) ([]*Document, []error) {
	var docs []*Document
	var problems []error

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			for _, pattern := range excludes {
				if matched, _ := doublestar.Match(pattern, rel+"/"); matched {
					return filepath.SkipDir
				}
				if matched, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); matched {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), ".md") || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		for _, pattern := range excludes {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return nil
			}
		}

		doc, parseErr := ParseNote(root, path)
		if parseErr != nil {
			problems = append(problems, parseErr)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		problems = append(problems, fmt.Errorf("walking vault %s: %w", root, err))
	}

	return docs, problems
}

func splitFrontMatter(content string) (frontMatter, string, error) {
	var fm frontMatter

	if !strings.HasPrefix(content, "---\n") {
		return fm, "", fmt.Errorf("missing front matter block")
	}
	rest := content[4:]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return fm, "", fmt.Errorf("unterminated front matter block")
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return fm, "", fmt.Errorf("invalid front matter: %w", err)
	}

	return fm, rest[end+5:], nil
}

// splitBody separates the summary and clipping sections. Notes not written
// by clipvault (no section headings) are treated as all clipping.
func splitBody(body string) (summary, raw string) {
	sumIdx := strings.Index(body, summaryHeading)
	clipIdx := strings.Index(body, clippingHeading)

	if clipIdx < 0 {
		return "", strings.TrimSpace(body)
	}
	raw = strings.TrimSpace(body[clipIdx+len(clippingHeading):])

	if sumIdx >= 0 && sumIdx < clipIdx {
		summary = strings.TrimSpace(body[sumIdx+len(summaryHeading) : clipIdx])
	}
	return summary, raw
}
