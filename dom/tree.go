// Package dom locates marker spans inside a rendered message tree and
// replaces them surgically, leaving sibling content untouched. The tree is
// golang.org/x/net/html nodes, the only concrete tree type the program
// touches - all offset mapping and anchor verification works on plain
// strings and is testable against small parsed fixtures.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MessageIDAttr is the host attribute keying a rendered container to its
// message index.
const MessageIDAttr = "data-mesid"

// BoxAttr marks inserted annotation nodes. Subtrees under it are invisible
// to the text walker, which is what makes repeated passes converge.
const BoxAttr = "data-aside-box"

// BoxIDAttr carries the unique identity of one inserted annotation node.
const BoxIDAttr = "data-aside-id"

// blockLevel lists elements treated as block boundaries during the text
// walk. Crossing into a new one inserts a synthetic separating space so
// content split across paragraphs matches the unbroken source text.
var blockLevel = map[string]bool{
	"p": true, "div": true, "blockquote": true, "pre": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// Attr returns the value of the named attribute, empty when absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present at all.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// IsAnnotation reports whether the node is a previously inserted annotation
// box.
func IsAnnotation(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && HasAttr(n, BoxAttr)
}

func isBlock(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && blockLevel[n.Data]
}

// blockAncestor returns the nearest block-level ancestor of n under root,
// or root itself.
func blockAncestor(n, root *html.Node) *html.Node {
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if isBlock(p) {
			return p
		}
	}
	return root
}

// isAncestor reports whether anc is a proper ancestor of n.
func isAncestor(anc, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == anc {
			return true
		}
	}
	return false
}

// FindContainer locates the rendered container element carrying the given
// message id attribute value. Returns nil when the host has not rendered
// that message yet.
func FindContainer(root *html.Node, mesid string) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode && Attr(root, MessageIDAttr) == mesid {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindContainer(c, mesid); found != nil {
			return found
		}
	}
	return nil
}

// ParseFragment parses an HTML fragment in body context and returns its
// top-level nodes.
func ParseFragment(fragment string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(fragment), ctx)
}

// RenderChildren serializes the children of n to HTML markup.
func RenderChildren(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// Text returns the concatenated text content of the subtree, skipping
// annotation boxes.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if IsAnnotation(n) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// cloneShallow copies an element node without children.
func cloneShallow(n *html.Node) *html.Node {
	return &html.Node{
		Type:     n.Type,
		DataAtom: n.DataAtom,
		Data:     n.Data,
		Attr:     append([]html.Attribute(nil), n.Attr...),
	}
}

// detach removes n from its parent, tolerating already detached nodes.
func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
