package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// inlineWrappers are legacy inline-style elements that may be left as empty
// shells after a span extraction.
var inlineWrappers = map[string]bool{
	"em": true, "i": true, "strong": true, "b": true, "u": true,
	"s": true, "q": true, "span": true, "font": true, "mark": true,
	"small": true, "sub": true, "sup": true,
}

// maxUnwrapLevels bounds the upward walk. Deleting an interior span only
// ever hollows out the few wrappers that contained it.
const maxUnwrapLevels = 4

// Cleanup walks upward from a freshly inserted annotation node, unwrapping
// ancestor wrappers whose only meaningful child is the node itself, and
// drops line-break siblings made useless by the extraction. Without this an
// extraction that consumed a whole paragraph leaves an empty shell that
// reintroduces unwanted spacing.
func Cleanup(inserted *html.Node) {
	if inserted == nil {
		return
	}
	for range maxUnwrapLevels {
		parent := inserted.Parent
		if parent == nil || parent.Type != html.ElementNode {
			return
		}
		if HasAttr(parent, MessageIDAttr) || parent.Data == "body" {
			break
		}
		if !inlineWrappers[parent.Data] && !isBlock(parent) {
			break
		}
		if !onlyMeaningfulChild(parent, inserted) {
			break
		}
		// hoist the node into the grandparent, drop the hollow wrapper
		grand := parent.Parent
		if grand == nil {
			break
		}
		removeHollowChildren(parent, inserted)
		parent.RemoveChild(inserted)
		grand.InsertBefore(inserted, parent)
		grand.RemoveChild(parent)
	}
	dropAdjacentBreaks(inserted)
}

// onlyMeaningfulChild reports whether every child of parent other than keep
// is ignorable: whitespace text, line breaks or empty inline shells.
func onlyMeaningfulChild(parent, keep *html.Node) bool {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c == keep || ignorable(c) {
			continue
		}
		return false
	}
	return true
}

func ignorable(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return len(strings.TrimSpace(n.Data)) == 0
	case html.CommentNode:
		return true
	case html.ElementNode:
		if n.Data == "br" {
			return true
		}
		if !inlineWrappers[n.Data] {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !ignorable(c) {
				return false
			}
		}
		return true
	}
	return false
}

func removeHollowChildren(parent, keep *html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		if c != keep {
			parent.RemoveChild(c)
		}
		c = next
	}
}

// dropAdjacentBreaks removes <br> siblings hugging the annotation node.
func dropAdjacentBreaks(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for sib := n.PrevSibling; sib != nil; {
		prev := sib.PrevSibling
		if !skippableBreak(sib) {
			break
		}
		parent.RemoveChild(sib)
		sib = prev
	}
	for sib := n.NextSibling; sib != nil; {
		next := sib.NextSibling
		if !skippableBreak(sib) {
			break
		}
		parent.RemoveChild(sib)
		sib = next
	}
}

func skippableBreak(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "br" {
		return true
	}
	return n.Type == html.TextNode && len(strings.TrimSpace(n.Data)) == 0
}
