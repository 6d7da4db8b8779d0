package host

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"aside/dom"
)

func TestSessionContainerCaching(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutMessage(0, "raw", `<div data-mesid="0"><p>hello</p></div>`, false); err != nil {
		t.Fatal(err)
	}
	sess := NewSession(s)

	first, err := sess.Container(0)
	if err != nil {
		t.Fatal(err)
	}
	if first == nil {
		t.Fatal("container not found")
	}
	if dom.Attr(first, dom.MessageIDAttr) != "0" {
		t.Errorf("container mesid = %q", dom.Attr(first, dom.MessageIDAttr))
	}

	// unchanged message keeps node identity across calls
	second, err := sess.Container(0)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("unchanged message was reparsed")
	}

	// host rewrite invalidates the cache
	if err := s.PutMessage(0, "raw", `<div data-mesid="0"><p>rewritten</p></div>`, false); err != nil {
		t.Fatal(err)
	}
	third, err := sess.Container(0)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("rewritten message kept the stale tree")
	}
	if !strings.Contains(dom.RenderChildren(third), "rewritten") {
		t.Errorf("fresh content missing: %s", dom.RenderChildren(third))
	}
}

func TestSessionWrapsBareMarkup(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutMessage(2, "raw", `<p>no container</p>`, false); err != nil {
		t.Fatal(err)
	}
	sess := NewSession(s)

	c, err := sess.Container(2)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("container not synthesized")
	}
	if dom.Attr(c, dom.MessageIDAttr) != "2" {
		t.Errorf("synthesized container mesid = %q", dom.Attr(c, dom.MessageIDAttr))
	}
}

func TestSessionUnrenderedMessage(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutMessage(1, "streaming source", "", true); err != nil {
		t.Fatal(err)
	}
	sess := NewSession(s)

	c, err := sess.Container(1)
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Error("container synthesized for unrendered message")
	}
}

func TestSessionSaveRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutMessage(0, "raw", `<div data-mesid="0"><p>text</p></div>`, false); err != nil {
		t.Fatal(err)
	}
	sess := NewSession(s)

	c, err := sess.Container(0)
	if err != nil {
		t.Fatal(err)
	}

	// mutate the tree the way the engine does, then persist
	box := &html.Node{
		Type: html.ElementNode,
		Data: "div",
		Attr: []html.Attribute{{Key: dom.BoxAttr}, {Key: dom.BoxIDAttr, Val: "test-id"}},
	}
	c.AppendChild(box)
	if err := sess.Save(0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rendered, err := s.RenderedHTML(0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rendered, dom.BoxAttr) {
		t.Errorf("saved markup lost the annotation: %s", rendered)
	}

	// the save bumps the store revision but must not cost the session its
	// live tree
	again, err := sess.Container(0)
	if err != nil {
		t.Fatal(err)
	}
	if again != c {
		t.Error("Save invalidated the session's own tree")
	}
}
