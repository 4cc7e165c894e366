package fingerprint

import (
	"strings"
	"testing"
)

func TestFingerprint_StableAcrossWhitespace(t *testing.T) {
	a := Fingerprint("Hello world.\nThis is a test.")
	b := Fingerprint("Hello   world.\n\n\nThis is\ta test.")
	if a != b {
		t.Errorf("whitespace variants should hash the same:\n%s\n%s", a, b)
	}
}

func TestFingerprint_StableAcrossMarkup(t *testing.T) {
	a := Fingerprint("# Heading\n\nSome **bold** and *italic* text.")
	b := Fingerprint("Heading\n\nSome bold and italic text.")
	if a != b {
		t.Errorf("markup variants should hash the same")
	}
}

func TestFingerprint_DifferentContentDiffers(t *testing.T) {
	a := Fingerprint("The quick brown fox.")
	b := Fingerprint("The quick brown dog.")
	if a == b {
		t.Error("different content produced identical hashes")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("## Title\n\n- item *one*\n- item two\n")
	want := "Title item one item two"
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestStripMarkdown_Links(t *testing.T) {
	got := StripMarkdown("See [the docs](https://example.com) for details.")
	if strings.Contains(got, "https://example.com") {
		t.Errorf("link target survived stripping: %q", got)
	}
	if !strings.Contains(got, "the docs") {
		t.Errorf("link text lost: %q", got)
	}
}

func TestStripMarkdown_CodeBlocks(t *testing.T) {
	got := StripMarkdown("Intro\n\n```go\nfunc main() {}\n```\n\nOutro")
	for _, want := range []string{"Intro", "func main() {}", "Outro"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in stripped output %q", want, got)
		}
	}
}
