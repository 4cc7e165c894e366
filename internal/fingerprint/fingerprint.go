package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Fingerprint returns a stable content hash for the given text. The text is
// normalized first so that incidental whitespace, encoding artifacts and
// markdown markup do not change the identity: two scrapes of the same page
// through different strategies hash the same.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Normalize strips markdown markup and collapses whitespace. The result is
// the canonical form over which content hashes are computed.
func Normalize(text string) string {
	plain := StripMarkdown(text)
	return strings.Join(strings.Fields(plain), " ")
}

// StripMarkdown extracts the plain text of a markdown document by walking
// the goldmark AST. Headings, emphasis, links and list markers are dropped;
// only the human-readable text survives.
func StripMarkdown(text string) string {
	src := []byte(text)
	root := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.CodeBlock:
			writeBlockLines(&sb, src, t)
		case *ast.FencedCodeBlock:
			writeBlockLines(&sb, src, t)
		}
		return ast.WalkContinue, nil
	})

	return sb.String()
}

func writeBlockLines(sb *strings.Builder, src []byte, n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
}
