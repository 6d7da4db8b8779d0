package dom

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// Span is a located marker occurrence: a native-range equivalent over the
// rendered tree. It lives for exactly one replacement operation and is never
// stored across passes - the host may re-render at any frame boundary and
// invalidate every node reference in here.
type Span struct {
	container *html.Node
	startNode *html.Node
	startOff  int
	endNode   *html.Node
	endOff    int

	// recorded by Extract for the follow-up Insert
	insertParent *html.Node
	insertAfter  *html.Node
	extracted    bool
}

// ErrDetached is returned when the span's nodes no longer hang off the
// container, which means the host re-rendered between location and
// extraction.
var ErrDetached = errors.New("span nodes detached from container")

// Extract splits the boundary text nodes, lifts the span's content out of
// the live tree into a detached fragment and returns the formatted inner
// markup the renderer produced for it. The tree is left without the span;
// Insert puts the annotation node in its place. Extraction and insertion
// happen within one synchronous flush step so no intermediate state is
// observable.
func (s *Span) Extract() (string, error) {
	if s.extracted {
		return "", errors.New("span already extracted")
	}
	if !s.attached() {
		return "", ErrDetached
	}

	startN := splitTextBefore(s.startNode, s.startOff)
	endN := s.endNode
	endOff := s.endOff
	if s.endNode == s.startNode {
		// boundaries share a node, the start split shifted the end offset
		endN = startN
		endOff -= s.startOff
	}
	endN = splitTextAfter(endN, endOff)

	s.insertParent = startN.Parent
	s.insertAfter = startN.PrevSibling

	// walk from above the boundary text nodes: when the span collapsed into
	// a single node the node itself has no children to iterate
	root := commonAncestor(startN.Parent, endN.Parent)
	if root == nil {
		return "", ErrDetached
	}

	frag := &html.Node{Type: html.DocumentNode}
	st := statePending
	extractBetween(root, frag, startN, endN, &st)
	if st != stateDone {
		return "", ErrDetached
	}
	s.extracted = true

	var sb strings.Builder
	for c := frag.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String(), nil
}

// Insert places the built annotation node at the position the extracted
// content used to occupy.
func (s *Span) Insert(n *html.Node) error {
	if !s.extracted {
		return errors.New("span content not extracted")
	}
	parent := s.insertParent
	if parent == nil {
		return ErrDetached
	}
	if s.insertAfter != nil && s.insertAfter.Parent == parent {
		insertAfter(parent, s.insertAfter, n)
		return nil
	}
	if parent.FirstChild != nil {
		parent.InsertBefore(n, parent.FirstChild)
	} else {
		parent.AppendChild(n)
	}
	return nil
}

func (s *Span) attached() bool {
	return s.startNode.Parent != nil && s.endNode.Parent != nil &&
		(s.startNode == s.container || isAncestor(s.container, s.startNode)) &&
		(s.endNode == s.container || isAncestor(s.container, s.endNode))
}

type extractState int

const (
	statePending extractState = iota
	stateInside
	stateDone
)

// extractBetween moves every node between startN and endN inclusive from the
// live tree under src into dst, shell-cloning partially covered elements the
// way a native range extraction does. Content outside the boundaries stays
// byte-for-byte where it was.
func extractBetween(src, dst *html.Node, startN, endN *html.Node, st *extractState) {
	for c := src.FirstChild; c != nil && *st != stateDone; {
		next := c.NextSibling
		containsStart := c == startN || isAncestor(c, startN)
		containsEnd := c == endN || isAncestor(c, endN)

		switch {
		case *st == statePending && !containsStart:
			// untouched leading sibling

		case *st == statePending && c == startN:
			*st = stateInside
			detach(c)
			dst.AppendChild(c)
			if c == endN {
				*st = stateDone
			}

		case *st == statePending: // element wrapping the start boundary
			shell := cloneShallow(c)
			dst.AppendChild(shell)
			extractBetween(c, shell, startN, endN, st)

		case *st == stateInside && c == endN:
			detach(c)
			dst.AppendChild(c)
			*st = stateDone

		case *st == stateInside && containsEnd:
			shell := cloneShallow(c)
			dst.AppendChild(shell)
			extractBetween(c, shell, startN, endN, st)

		case *st == stateInside:
			detach(c)
			dst.AppendChild(c)
		}
		c = next
	}
}

// splitTextBefore makes off the beginning of a text node, splitting when it
// falls mid-node, and returns the node that starts at the boundary.
func splitTextBefore(n *html.Node, off int) *html.Node {
	if off <= 0 {
		return n
	}
	if off >= len(n.Data) {
		off = len(n.Data)
	}
	rest := &html.Node{Type: html.TextNode, Data: n.Data[off:]}
	n.Data = n.Data[:off]
	insertAfter(n.Parent, n, rest)
	return rest
}

// splitTextAfter makes off the end of a text node and returns the node that
// ends at the boundary.
func splitTextAfter(n *html.Node, off int) *html.Node {
	if off >= len(n.Data) {
		return n
	}
	if off < 0 {
		off = 0
	}
	rest := &html.Node{Type: html.TextNode, Data: n.Data[off:]}
	n.Data = n.Data[:off]
	insertAfter(n.Parent, n, rest)
	return n
}

func insertAfter(parent, ref, n *html.Node) {
	if parent == nil {
		return
	}
	if ref != nil && ref.NextSibling != nil {
		parent.InsertBefore(n, ref.NextSibling)
		return
	}
	parent.AppendChild(n)
}

func commonAncestor(a, b *html.Node) *html.Node {
	seen := make(map[*html.Node]bool)
	for p := a; p != nil; p = p.Parent {
		seen[p] = true
	}
	for p := b; p != nil; p = p.Parent {
		if seen[p] {
			return p
		}
	}
	return nil
}
