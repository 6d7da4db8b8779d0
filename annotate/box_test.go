package annotate

import (
	"strings"
	"testing"

	"aside/config"
	"aside/dom"
)

func TestBoxBuilderAllStyles(t *testing.T) {
	for _, name := range config.BoxStyleNames() {
		style, err := config.ParseBoxStyle(name)
		if err != nil {
			t.Fatal(err)
		}
		b, err := NewBoxBuilder(style)
		if err != nil {
			t.Fatalf("NewBoxBuilder(%s): %v", name, err)
		}
		box, err := b.Build("Nova", "nova.png", "<em>waves</em> hello")
		if err != nil {
			t.Fatalf("Build(%s): %v", name, err)
		}
		if !dom.IsAnnotation(box) {
			t.Errorf("%s box is not marked as annotation", name)
		}
		if dom.Attr(box, dom.BoxIDAttr) == "" {
			t.Errorf("%s box has no identity", name)
		}
		markup := dom.RenderChildren(box)
		if !strings.Contains(markup, "<em>waves</em> hello") {
			t.Errorf("%s box lost inner markup: %s", name, markup)
		}
		if !strings.Contains(strings.ToLower(markup), "nova") {
			t.Errorf("%s box lost speaker: %s", name, markup)
		}
	}
}

func TestBoxBuilderUniqueIdentity(t *testing.T) {
	b, err := NewBoxBuilder(config.BoxStyleClassic)
	if err != nil {
		t.Fatal(err)
	}
	first, err := b.Build("A", "", "x")
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build("A", "", "x")
	if err != nil {
		t.Fatal(err)
	}
	if dom.Attr(first, dom.BoxIDAttr) == dom.Attr(second, dom.BoxIDAttr) {
		t.Error("two boxes share one identity")
	}
}

func TestBoxBuilderNoAvatar(t *testing.T) {
	b, err := NewBoxBuilder(config.BoxStyleClassic)
	if err != nil {
		t.Fatal(err)
	}
	box, err := b.Build("Nova", "", "text")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(dom.RenderChildren(box), "<img") {
		t.Error("avatar image rendered without an URL")
	}
}

func TestBoxBuilderEscapesSpeaker(t *testing.T) {
	b, err := NewBoxBuilder(config.BoxStyleMinimal)
	if err != nil {
		t.Fatal(err)
	}
	box, err := b.Build(`<script>alert(1)</script>`, "", "text")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(dom.RenderChildren(box), "<script>") {
		t.Error("speaker name not escaped")
	}
}
