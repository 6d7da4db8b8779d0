package host

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"aside/dom"
)

// Session adapts a Store to what the annotation engine consumes: live
// parsed containers that persist across reconciliation passes, the way a
// rendered page does. A container is re-parsed only when the host rewrote
// the message, which drops any annotations the engine put into the old tree
// - exactly the skip-and-retry behavior a real re-render causes.
type Session struct {
	store *Store

	mu    sync.Mutex
	trees map[int]*cachedTree
}

type cachedTree struct {
	container *html.Node
	rev       int64
}

func NewSession(store *Store) *Session {
	return &Session{store: store, trees: make(map[int]*cachedTree)}
}

func (s *Session) RawText(id int) (string, error) {
	return s.store.RawText(id)
}

func (s *Session) MessageIDs() ([]int, error) {
	return s.store.MessageIDs()
}

// Container returns the live tree for a message, nil when the host has not
// rendered it yet.
func (s *Session) Container(id int) (*html.Node, error) {
	rendered, rev, err := s.store.RenderedRevision(id)
	if err != nil {
		return nil, err
	}
	if rendered == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.trees[id]; ok && c.rev == rev {
		return c.container, nil
	}

	container, err := parseRendered(rendered, id)
	if err != nil {
		return nil, err
	}
	s.trees[id] = &cachedTree{container: container, rev: rev}
	return container, nil
}

// Save persists the current (annotated) state of a message's tree back into
// the store and keeps the cache coherent with the written revision.
func (s *Session) Save(id int) error {
	s.mu.Lock()
	c, ok := s.trees[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	var sb strings.Builder
	if err := html.Render(&sb, c.container); err != nil {
		return fmt.Errorf("rendering message %d: %w", id, err)
	}
	if err := s.store.UpdateRendered(id, sb.String()); err != nil {
		return fmt.Errorf("saving message %d: %w", id, err)
	}

	// the write bumped the revision; re-pin the cache so the next Container
	// call does not reparse and lose node identity
	_, rev, err := s.store.RenderedRevision(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if cur, ok := s.trees[id]; ok && cur.container == c.container {
		cur.rev = rev
	}
	s.mu.Unlock()
	return nil
}

// Invalidate drops the cached tree of one message, forcing a reparse.
func (s *Session) Invalidate(id int) {
	s.mu.Lock()
	delete(s.trees, id)
	s.mu.Unlock()
}

// Reset drops all cached trees, used when the conversation is swapped.
func (s *Session) Reset() {
	s.mu.Lock()
	s.trees = make(map[int]*cachedTree)
	s.mu.Unlock()
}

// parseRendered parses stored markup and finds the message container in it.
// Markup without an explicit container element gets wrapped in one.
func parseRendered(rendered string, id int) (*html.Node, error) {
	nodes, err := dom.ParseFragment(rendered)
	if err != nil {
		return nil, fmt.Errorf("parsing rendered message %d: %w", id, err)
	}
	mesid := strconv.Itoa(id)
	for _, n := range nodes {
		if found := dom.FindContainer(n, mesid); found != nil {
			return found, nil
		}
	}

	container := &html.Node{
		Type: html.ElementNode,
		Data: "div",
		Attr: []html.Attribute{{Key: dom.MessageIDAttr, Val: mesid}},
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}
