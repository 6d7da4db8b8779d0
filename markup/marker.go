package markup

import (
	"strings"
	"unicode"
)

// Marker is one extracted aside payload. Content is raw and may still carry
// inline markdown, Speaker is empty when the name attribute is absent.
type Marker struct {
	Speaker    string
	Content    string
	SourceSpan string
}

// Tag spellings recognized for markers, matched case-insensitively. The
// closing tag must use the same spelling as the opening one, mixed variants
// within one marker are not a match.
var tagSpellings = []string{
	"lumia_ooc",
	"lumia-ooc",
	"lumiaooc",
	"ooc",
}

// personaPrefixes are redundant brand words stripped from speaker names,
// either space-separated ("Lumia Serena") or concatenated camel-case
// ("LumioMarcus").
var personaPrefixes = []string{"lumia", "lumio"}

// ExtractMarkers scans raw source text for tag-delimited markers and returns
// them in source order. It is a pure function, never touches any tree and
// never panics: unmatched or truncated markers (normal while the source is
// still streaming) simply yield no match.
func ExtractMarkers(raw string) []Marker {
	var out []Marker
	lower := strings.ToLower(raw)

	pos := 0
	for pos < len(raw) {
		rel := strings.IndexByte(lower[pos:], '<')
		if rel < 0 {
			break
		}
		at := pos + rel

		spelling, attrs, contentStart, ok := parseOpenTag(lower, raw, at)
		if !ok {
			pos = at + 1
			continue
		}

		closeTag := "</" + spelling + ">"
		crel := strings.Index(lower[contentStart:], closeTag)
		if crel < 0 {
			// truncated marker, likely mid-stream
			pos = at + 1
			continue
		}
		contentEnd := contentStart + crel

		content := strings.TrimSpace(raw[contentStart:contentEnd])
		if len(content) != 0 {
			out = append(out, Marker{
				Speaker:    attrValue(attrs, "name"),
				Content:    content,
				SourceSpan: raw[at : contentEnd+len(closeTag)],
			})
		}
		pos = contentEnd + len(closeTag)
	}
	return out
}

// parseOpenTag matches one of the recognized spellings at '<' position `at`
// and returns the matched spelling, the raw attributes blob and the offset
// just past '>'.
func parseOpenTag(lower, raw string, at int) (spelling, attrs string, contentStart int, ok bool) {
	rest := lower[at+1:]
	for _, s := range tagSpellings {
		if !strings.HasPrefix(rest, s) {
			continue
		}
		after := at + 1 + len(s)
		if after >= len(raw) {
			return "", "", 0, false
		}
		// tag name must end here, otherwise "ooc" would match inside
		// unrelated longer tags
		switch raw[after] {
		case '>':
			return s, "", after + 1, true
		case ' ', '\t', '\n', '\r':
			gt := strings.IndexByte(raw[after:], '>')
			if gt < 0 {
				return "", "", 0, false
			}
			return s, raw[after : after+gt], after + gt + 1, true
		}
	}
	return "", "", 0, false
}

// attrValue pulls a single attribute value out of an attributes blob,
// tolerating double quotes, single quotes, HTML-entity-escaped quotes and a
// bare unquoted token.
func attrValue(attrs, key string) string {
	lower := strings.ToLower(attrs)
	pos := 0
	for {
		rel := strings.Index(lower[pos:], key)
		if rel < 0 {
			return ""
		}
		at := pos + rel
		// must be a standalone key
		if at > 0 && !isAttrBoundary(rune(lower[at-1])) {
			pos = at + len(key)
			continue
		}
		rest := strings.TrimLeft(attrs[at+len(key):], " \t\r\n")
		if !strings.HasPrefix(rest, "=") {
			pos = at + len(key)
			continue
		}
		rest = strings.TrimLeft(rest[1:], " \t\r\n")
		return unquoteAttr(rest)
	}
}

func isAttrBoundary(r rune) bool {
	return unicode.IsSpace(r) || r == '\'' || r == '"'
}

func unquoteAttr(rest string) string {
	for _, q := range []string{`"`, `'`, "&quot;", "&#34;", "&#39;"} {
		if strings.HasPrefix(rest, q) {
			body := rest[len(q):]
			if end := strings.Index(body, q); end >= 0 {
				return strings.TrimSpace(body[:end])
			}
			// unterminated quote, take what is there
			return strings.TrimSpace(body)
		}
	}
	// bare token
	if end := strings.IndexFunc(rest, unicode.IsSpace); end >= 0 {
		return rest[:end]
	}
	return rest
}

// SanitizeSpeakerName strips a redundant persona prefix word from a display
// name: "Lumia Serena" becomes "Serena" and "LumioMarcus" becomes "Marcus".
// Names that merely share leading letters with a prefix ("Serenity") are
// left alone.
func SanitizeSpeakerName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return name
	}
	lower := strings.ToLower(name)
	for _, prefix := range personaPrefixes {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := name[len(prefix):]
		// space-separated form
		if trimmed := strings.TrimLeft(rest, " \t"); len(trimmed) != 0 && len(trimmed) != len(rest) {
			return trimmed
		}
		// concatenated camel-case form: remainder must itself look like a
		// name, otherwise the prefix is part of the real name
		if r := firstRune(rest); unicode.IsUpper(r) {
			return rest
		}
	}
	return name
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
