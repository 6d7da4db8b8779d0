// Package markup implements pure text functions shared by marker extraction
// and span matching: emphasis stripping, glyph normalization and HTML to
// plain text conversion. Both sides of every match must go through the same
// pipeline or offset mapping in the locator breaks.
package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

var (
	// Longest pattern first, otherwise triple runs unwrap partially and
	// leave stray delimiters behind.
	emphasisTriple = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	emphasisDouble = regexp.MustCompile(`\*\*(.+?)\*\*`)
	emphasisSingle = regexp.MustCompile(`\*(.+?)\*`)

	// A single delimited run opening a line - action asides often start this
	// way and the closing delimiter may still be mid-stream.
	emphasisLead = regexp.MustCompile(`^\s*\*+`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// StripEmphasis removes markdown emphasis delimiters keeping their content.
// Nested runs are unwrapped until fixpoint so the result is stable under
// repeated application.
func StripEmphasis(text string) string {
	for {
		next := emphasisTriple.ReplaceAllString(text, "$1")
		next = emphasisDouble.ReplaceAllString(next, "$1")
		next = emphasisSingle.ReplaceAllString(next, "$1")
		if next == text {
			break
		}
		text = next
	}
	// unwrap an unpaired run at the very start of the text, the closing
	// delimiter may not have arrived yet
	if m := emphasisLead.FindString(text); len(m) != 0 {
		text = text[len(m):]
	}
	return text
}

var glyphReplacer = strings.NewReplacer(
	"“", `"`, // left double
	"”", `"`, // right double
	"‘", `'`, // left single
	"’", `'`, // right single
	"…", "...",
)

// NormalizeGlyphs maps curly quotes to straight quotes and the single
// ellipsis glyph to three literal periods.
func NormalizeGlyphs(text string) string {
	return glyphReplacer.Replace(text)
}

// CollapseWhitespace replaces every whitespace run with a single space and
// trims the result.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Normalize is the full matching pipeline: NFC, emphasis stripping, glyph
// mapping, whitespace collapse. Idempotent: Normalize(Normalize(x)) ==
// Normalize(x).
func Normalize(text string) string {
	if len(text) == 0 {
		return ""
	}
	text = norm.NFC.String(text)
	text = StripEmphasis(text)
	text = NormalizeGlyphs(text)
	return CollapseWhitespace(text)
}

// HTMLToPlainText parses an HTML fragment, takes its decoded text content
// and runs it through the normalization pipeline. Never fails: unparseable
// input degrades to whatever text the tokenizer recovers.
func HTMLToPlainText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), bodyContext())
	if err != nil {
		return Normalize(fragment)
	}
	var sb strings.Builder
	for _, n := range nodes {
		collectText(n, &sb)
	}
	return Normalize(sb.String())
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// bodyContext returns a fresh body element for fragment parsing.
func bodyContext() *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
}
