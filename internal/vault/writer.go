package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const maxSlugLen = 50

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*#^\[\]]`)
	dashRuns             = regexp.MustCompile(`[\s-]+`)
)

// Writer persists documents as markdown notes under the vault root.
type Writer struct {
	root string
}

// NewWriter creates a Writer for the given vault root, creating the
// directory if needed.
func NewWriter(root string) (*Writer, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}
	return &Writer{root: root}, nil
}

// Write renders doc as a markdown note and writes it atomically: content
// goes to a temporary file in the vault directory first, then is renamed
// into place, so a concurrent reader never sees a half-written note.
//
// When doc.Path is empty a filename is derived from captured_at and a slug
// of the title; on collision a numeric suffix is appended. The chosen path
// and the vault-relative ID are filled into doc before returning.
func (w *Writer) Write(doc *Document) (string, error) {
	if doc.Path == "" {
		path, err := w.allocatePath(doc.CapturedAt, doc.Title)
		if err != nil {
			return "", err
		}
		doc.Path = path
	}

	rel, err := filepath.Rel(w.root, doc.Path)
	if err != nil {
		return "", fmt.Errorf("note path %s outside vault: %w", doc.Path, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("note path %s escapes vault root", doc.Path)
	}
	doc.ID = filepath.ToSlash(rel)

	content, err := renderNote(doc)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(doc.Path), ".clip-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp note: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("writing temp note: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing temp note: %w", err)
	}

	if err := os.Rename(tmpName, doc.Path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("renaming note into place: %w", err)
	}

	return doc.Path, nil
}

// allocatePath picks a deterministic, collision-free filename:
// "YYYY-MM-DD - <slug>.md", with "-2", "-3", ... appended on collision.
func (w *Writer) allocatePath(capturedAt time.Time, title string) (string, error) {
	base := fmt.Sprintf("%s - %s", capturedAt.Format("2006-01-02"), Slug(title))

	candidate := filepath.Join(w.root, base+".md")
	for n := 2; ; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("checking note path: %w", err)
		}
		candidate = filepath.Join(w.root, fmt.Sprintf("%s-%d.md", base, n))
	}
}

// Slug turns a title into a filesystem-safe name segment.
func Slug(title string) string {
	s := invalidFilenameChars.ReplaceAllString(title, "")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_")
	if len(s) > maxSlugLen {
		cut := maxSlugLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.Trim(s[:cut], "-_")
	}
	if s == "" {
		s = "Untitled"
	}
	return s
}

func renderNote(doc *Document) (string, error) {
	fm := frontMatter{
		URL:          doc.URL,
		Title:        doc.Title,
		ContentHash:  doc.ContentHash,
		CapturedAt:   doc.CapturedAt.UTC().Format(time.RFC3339),
		Tags:         doc.Tags,
		Category:     doc.Category,
		SummaryState: string(doc.SummarySt),
		CapturedBy:   capturedByValue,
	}
	fmBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return "", fmt.Errorf("marshalling front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fmBytes)
	sb.WriteString("---\n\n")
	sb.WriteString("# " + doc.Title + "\n\n")
	sb.WriteString(summaryHeading + "\n\n")
	if doc.Summary != "" {
		sb.WriteString(doc.Summary + "\n")
	}
	sb.WriteString("\n" + clippingHeading + "\n\n")
	sb.WriteString(doc.RawText)
	if !strings.HasSuffix(doc.RawText, "\n") {
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
