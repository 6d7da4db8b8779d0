package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// segment ties one text node to its byte range inside the accumulated raw
// string.
type segment struct {
	node       *html.Node
	start, end int
}

// textRun is the flattened text of a container: every text node's raw data
// concatenated in document order, with a synthetic space wherever the walk
// crossed into a new block-level ancestor. Offsets into raw that fall on a
// synthetic space belong to no node.
type textRun struct {
	raw  string
	segs []segment
}

// collectRun walks all text nodes under container, skipping previously
// inserted annotation boxes, and builds the offset table used to map string
// positions back to tree positions.
func collectRun(container *html.Node) *textRun {
	var (
		sb        strings.Builder
		segs      []segment
		lastBlock *html.Node
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if IsAnnotation(n) {
			return
		}
		if n.Type == html.TextNode {
			if len(n.Data) == 0 {
				return
			}
			block := blockAncestor(n, container)
			if lastBlock != nil && block != lastBlock {
				sb.WriteByte(' ') // synthetic separator, no segment
			}
			lastBlock = block
			start := sb.Len()
			sb.WriteString(n.Data)
			segs = append(segs, segment{node: n, start: start, end: sb.Len()})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)

	return &textRun{raw: sb.String(), segs: segs}
}

// nodeAtStart maps a raw byte offset to the text node containing it. Offsets
// inside a synthetic gap advance to the start of the following node.
func (r *textRun) nodeAtStart(off int) (*html.Node, int) {
	for _, s := range r.segs {
		if off < s.start {
			return s.node, 0
		}
		if off < s.end {
			return s.node, off - s.start
		}
	}
	return nil, 0
}

// nodeAtEnd maps an exclusive raw byte offset to the text node it terminates
// in. Offsets inside a synthetic gap pull back to the end of the preceding
// node.
func (r *textRun) nodeAtEnd(off int) (*html.Node, int) {
	for i := len(r.segs) - 1; i >= 0; i-- {
		s := r.segs[i]
		if off > s.end {
			return s.node, s.end - s.start
		}
		if off > s.start {
			return s.node, off - s.start
		}
	}
	return nil, 0
}
