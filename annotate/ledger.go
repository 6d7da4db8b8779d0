// Package annotate orchestrates one reconciliation pass: extract markers
// from raw message text, locate their spans in the rendered tree, replace
// them with built annotation boxes and remember what has been done so
// repeated passes converge instead of stacking boxes.
package annotate

import (
	"sync"
)

// Ledger records which normalized marker payloads have already been turned
// into annotation boxes, per message. Presence of an entry means the exact
// payload was processed for that message; the set is dropped when the
// message is force-reprocessed and the whole ledger when the conversation is
// replaced.
type Ledger struct {
	mu        sync.Mutex
	processed map[int]map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{processed: make(map[int]map[string]struct{})}
}

func (l *Ledger) HasProcessed(messageID int, normalizedText string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[messageID][normalizedText]
	return ok
}

func (l *Ledger) MarkProcessed(messageID int, normalizedText string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.processed[messageID]
	if !ok {
		set = make(map[string]struct{})
		l.processed[messageID] = set
	}
	set[normalizedText] = struct{}{}
}

// Clear forgets everything recorded for one message.
func (l *Ledger) Clear(messageID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.processed, messageID)
}

// ClearAll forgets everything, used on full reprocess with clearExisting and
// on conversation switch.
func (l *Ledger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.processed)
}
