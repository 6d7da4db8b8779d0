package annotate

import (
	"strings"

	"github.com/gosimple/slug"
)

// AvatarResolver maps a sanitized speaker name to an avatar URL. Empty
// string means no avatar.
type AvatarResolver interface {
	Resolve(name string) string
}

// AvatarEntry is one named image in an avatar library.
type AvatarEntry struct {
	Name string
	URL  string
}

// DefaultScoreThreshold is the minimal match score an entry has to reach to
// be considered a hit.
const DefaultScoreThreshold = 60

// LibraryResolver scores a speaker name against library entries and picks
// the best one. Matching is word based - an exact (case-folded) name scores
// 100, partial matches score by word overlap, substrings of a word never
// match. So "Serena" matches "Serena" and "Serena Nightfall" but not
// "Serenity".
type LibraryResolver struct {
	entries   []scoredEntry
	threshold int
}

type scoredEntry struct {
	key   string
	words []string
	url   string
}

func NewLibraryResolver(entries []AvatarEntry, threshold int) *LibraryResolver {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	r := &LibraryResolver{threshold: threshold}
	for _, e := range entries {
		key := slug.Make(e.Name)
		if key == "" {
			continue
		}
		r.entries = append(r.entries, scoredEntry{
			key:   key,
			words: strings.Split(key, "-"),
			url:   e.URL,
		})
	}
	return r
}

// Resolve returns the URL of the best scoring entry, or empty string when
// nothing reaches the threshold. Ties keep the earlier entry.
func (r *LibraryResolver) Resolve(name string) string {
	key := slug.Make(name)
	if key == "" {
		return ""
	}
	words := strings.Split(key, "-")

	best, bestScore := "", 0
	for _, e := range r.entries {
		s := matchScore(key, words, e)
		if s > bestScore {
			best, bestScore = e.url, s
		}
	}
	if bestScore < r.threshold {
		return ""
	}
	return best
}

// matchScore is the Sørensen–Dice coefficient over whole words, scaled to
// 0..100, with exact key equality pinned to 100.
func matchScore(key string, words []string, e scoredEntry) int {
	if key == e.key {
		return 100
	}
	common := 0
	for _, w := range words {
		for _, ew := range e.words {
			if w == ew {
				common++
				break
			}
		}
	}
	if common == 0 {
		return 0
	}
	score := 2 * common * 100 / (len(words) + len(e.words))
	if score >= 100 {
		// word sets coincide but order or separators differ
		score = 99
	}
	return score
}
