package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"aside/markup"
)

const (
	// prefixAnchorLen is the number of normalized characters used as the
	// primary anchor.
	prefixAnchorLen = 40
	// suffixAnchorLen is the secondary anchor length, applied to long
	// search strings to reject near-duplicate false positives.
	suffixAnchorLen = 12
	// suffixThreshold is the search length above which the suffix anchor
	// is verified.
	suffixThreshold = 60
	// suffixSlack is how far from the computed end position the suffix
	// anchor may land before the match is treated as a false positive.
	suffixSlack = 8
	// fallbackRatio is the minimum share of a paragraph's text the search
	// string must cover before the whole-paragraph fallback accepts it.
	fallbackRatio = 0.7
)

// Locate finds the exact span of rawContent inside the rendered container.
// Both sides go through the identical normalization pipeline, then the
// normalized match offsets are mapped back to raw text offsets and finally
// to (text node, local offset) pairs. Returns nil when no anchored match
// exists in this pass.
func Locate(container *html.Node, rawContent string) *Span {
	if container == nil {
		return nil
	}
	search := markup.Normalize(rawContent)
	if len(search) == 0 {
		return nil
	}

	run := collectRun(container)
	if len(run.segs) == 0 {
		return nil
	}
	normAll := markup.Normalize(run.raw)

	prefix := runePrefix(search, prefixAnchorLen)
	idx := strings.Index(normAll, prefix)
	if idx < 0 {
		return nil
	}

	endTarget := idx + len(search)
	if utf8.RuneCountInString(search) > suffixThreshold {
		var ok bool
		if endTarget, ok = verifySuffix(normAll, search, endTarget); !ok {
			return nil
		}
	}
	if endTarget > len(normAll) {
		return nil
	}

	rawStart, rawEnd, ok := mapToRaw(run.raw, idx, endTarget)
	if !ok {
		return nil
	}

	startNode, startOff := run.nodeAtStart(rawStart)
	endNode, endOff := run.nodeAtEnd(rawEnd)
	if startNode == nil || endNode == nil {
		return nil
	}

	return &Span{
		container: container,
		startNode: startNode, startOff: startOff,
		endNode: endNode, endOff: endOff,
	}
}

// verifySuffix checks that the suffix anchor lands near the computed end
// position and returns the exact end offset derived from where it actually
// matched.
func verifySuffix(normAll, search string, endTarget int) (int, bool) {
	suffix := runeSuffix(search, suffixAnchorLen)
	lo := endTarget - len(suffix) - suffixSlack
	if lo < 0 {
		lo = 0
	}
	hi := endTarget + suffixSlack
	if hi > len(normAll) {
		hi = len(normAll)
	}
	if lo >= hi {
		return 0, false
	}
	at := strings.Index(normAll[lo:hi], suffix)
	if at < 0 {
		return 0, false
	}
	return lo + at + len(suffix), true
}

// mapToRaw converts offsets in the normalized accumulated string back to
// offsets in the raw accumulated string by re-normalizing progressively
// longer raw prefixes until the normalized length reaches each target.
// Normalization changes string length (stripped emphasis shrinks it, an
// ellipsis glyph grows into three periods), so there is no arithmetic
// shortcut.
func mapToRaw(raw string, startTarget, endTarget int) (rawStart, rawEnd int, ok bool) {
	rawStart, rawEnd = -1, -1
	prevBoundary := 0
	for i := range raw {
		if i == 0 {
			continue
		}
		n := len(markup.Normalize(raw[:i]))
		if rawStart < 0 && n >= startTarget+1 {
			rawStart = prevBoundary
		}
		if n >= endTarget {
			rawEnd = i
			break
		}
		prevBoundary = i
	}
	if rawEnd < 0 {
		n := len(markup.Normalize(raw))
		if rawStart < 0 && n >= startTarget+1 {
			rawStart = prevBoundary
		}
		if n >= endTarget {
			rawEnd = len(raw)
		}
	}
	return rawStart, rawEnd, rawStart >= 0 && rawEnd > rawStart
}

// LocateFallback scans the container's top-level paragraph elements and
// accepts one whose text is at least 70% composed of the search text. This
// is the legacy coarse path used when no surgical match was found - the
// ratio guards against swallowing a paragraph that mixes annotated and
// plain prose.
func LocateFallback(container *html.Node, rawContent string) *Span {
	if container == nil {
		return nil
	}
	search := markup.Normalize(rawContent)
	if len(search) == 0 {
		return nil
	}
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if !isBlock(c) || IsAnnotation(c) {
			continue
		}
		paraText := markup.Normalize(Text(c))
		if len(paraText) == 0 || !strings.Contains(paraText, search) {
			continue
		}
		if float64(len(search)) < fallbackRatio*float64(len(paraText)) {
			continue
		}
		run := collectRun(c)
		if len(run.segs) == 0 {
			continue
		}
		first, last := run.segs[0], run.segs[len(run.segs)-1]
		return &Span{
			container: container,
			startNode: first.node, startOff: 0,
			endNode: last.node, endOff: len(last.node.Data),
		}
	}
	return nil
}

func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func runeSuffix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := len(s); i > 0; {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		count++
		if count == n {
			return s[i:]
		}
	}
	return s
}
