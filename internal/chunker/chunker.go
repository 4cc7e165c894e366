package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrConfiguration indicates invalid chunking parameters.
var ErrConfiguration = errors.New("invalid chunker configuration")

// Passage is a contiguous slice of a document's text. Start/End are byte
// offsets into the original text; consecutive passages overlap by the
// configured amount so retrieval does not lose cross-boundary context.
type Passage struct {
	Index int
	Text  string
	Start int
	End   int
}

// Chunk splits text into overlapping passages of at most maxChars bytes.
// Cuts prefer paragraph breaks, then sentence ends, before falling back to
// a hard cut. overlap must be smaller than maxChars.
//
// The passages cover the full text with no gaps: each passage starts
// exactly overlap bytes before the previous one ended (or where it ended,
// when the overlap would not make progress).
func Chunk(text string, maxChars, overlap int) ([]Passage, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max_chars must be positive, got %d", ErrConfiguration, maxChars)
	}
	if overlap < 0 || overlap >= maxChars {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrConfiguration, overlap, maxChars)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var passages []Passage
	start := 0
	for idx := 0; start < len(text); idx++ {
		end := start + maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end)
		}

		passages = append(passages, Passage{
			Index: idx,
			Text:  text[start:end],
			Start: start,
			End:   end,
		})

		if end == len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return passages, nil
}

// cutPoint picks a semantic boundary in text[start:limit], scanning from the
// end. A boundary in the first half of the window is ignored so passages
// stay reasonably full.
func cutPoint(text string, start, limit int) int {
	window := text[start:limit]
	half := len(window) / 2

	if i := strings.LastIndex(window, "\n\n"); i >= half {
		return start + i + 2
	}

	best := -1
	bestLen := 0
	for _, sep := range []string{". ", "! ", "? ", ".\n", "\n"} {
		if i := strings.LastIndex(window, sep); i > best {
			best = i
			bestLen = len(sep)
		}
	}
	if best >= half {
		return start + best + bestLen
	}

	// Hard cut, pulled back to a rune boundary.
	for limit > start && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}
