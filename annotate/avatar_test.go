package annotate

import (
	"testing"
)

func testLibrary() []AvatarEntry {
	return []AvatarEntry{
		{Name: "Serenity", URL: "serenity.png"},
		{Name: "Serena Nightfall", URL: "serena-nightfall.png"},
		{Name: "Serena", URL: "serena.png"},
		{Name: "Marcus", URL: "marcus.png"},
	}
}

func TestResolveExactBeatsPartial(t *testing.T) {
	r := NewLibraryResolver(testLibrary(), DefaultScoreThreshold)
	if got := r.Resolve("Serena"); got != "serena.png" {
		t.Errorf("Resolve(Serena) = %q, want serena.png", got)
	}
}

func TestResolveNoSubstringMatch(t *testing.T) {
	r := NewLibraryResolver([]AvatarEntry{{Name: "Serenity", URL: "serenity.png"}}, DefaultScoreThreshold)
	if got := r.Resolve("Serena"); got != "" {
		t.Errorf("Serena matched Serenity via %q", got)
	}
	if got := r.Resolve("Serenity"); got != "serenity.png" {
		t.Errorf("Resolve(Serenity) = %q", got)
	}
}

func TestResolveWordOverlap(t *testing.T) {
	r := NewLibraryResolver([]AvatarEntry{{Name: "Serena Nightfall", URL: "serena-nightfall.png"}}, DefaultScoreThreshold)
	// single shared word out of three total scores 66, above threshold
	if got := r.Resolve("Serena"); got != "serena-nightfall.png" {
		t.Errorf("Resolve(Serena) = %q, want serena-nightfall.png", got)
	}
}

func TestResolveCaseAndDiacritics(t *testing.T) {
	r := NewLibraryResolver(testLibrary(), DefaultScoreThreshold)
	for _, name := range []string{"serena", "SERENA", "Seréna"} {
		if got := r.Resolve(name); got != "serena.png" {
			t.Errorf("Resolve(%q) = %q, want serena.png", name, got)
		}
	}
}

func TestResolveBelowThreshold(t *testing.T) {
	r := NewLibraryResolver(testLibrary(), DefaultScoreThreshold)
	for _, name := range []string{"Nova", "", "   "} {
		if got := r.Resolve(name); got != "" {
			t.Errorf("Resolve(%q) = %q, want no match", name, got)
		}
	}
}

func TestMatchScoreBounds(t *testing.T) {
	r := NewLibraryResolver([]AvatarEntry{{Name: "Nightfall Serena", URL: "x.png"}}, 0)
	// same word set, different order: a hit but never reported as exact
	if got := r.Resolve("Serena Nightfall"); got != "x.png" {
		t.Errorf("reordered words did not match: %q", got)
	}
	e := scoredEntry{key: "nightfall-serena", words: []string{"nightfall", "serena"}}
	if s := matchScore("serena-nightfall", []string{"serena", "nightfall"}, e); s != 99 {
		t.Errorf("reordered word set score = %d, want 99", s)
	}
}
