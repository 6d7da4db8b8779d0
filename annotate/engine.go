package annotate

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"aside/config"
	"aside/dom"
	"aside/markup"
	"aside/schedule"
)

// Store is what the engine needs from the transcript host: the raw source
// text of a message and the live rendered container for it. Container may
// return nil when the host has not rendered the message yet - the engine
// skips and a later pass retries.
type Store interface {
	RawText(id int) (string, error)
	Container(id int) (*html.Node, error)
	MessageIDs() ([]int, error)
}

// Engine runs one reconciliation pass per scheduled message: extract
// markers from the raw text, locate each payload in the rendered tree,
// replace the span with a built annotation box and record the payload in the
// ledger so unchanged messages converge to exactly one box per marker.
type Engine struct {
	store   Store
	avatars AvatarResolver
	boxes   *BoxBuilder
	ledger  *Ledger
	log     *zap.Logger
	enabled bool
}

func NewEngine(cfg *config.Config, store Store, avatars AvatarResolver, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	boxes, err := NewBoxBuilder(cfg.Boxes.Style)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:   store,
		avatars: avatars,
		boxes:   boxes,
		ledger:  NewLedger(),
		log:     log,
		enabled: cfg.Boxes.Enable,
	}, nil
}

// Callbacks wires the engine into a scheduler.
func (e *Engine) Callbacks() schedule.Callbacks {
	return schedule.Callbacks{
		Message: e.ProcessMessage,
		Full:    e.ProcessAll,
	}
}

// Reset drops all ledger state, used when the host swaps the conversation.
func (e *Engine) Reset() {
	e.ledger.ClearAll()
}

// ProcessMessage reconciles a single message. force forgets previous ledger
// entries first, for hosts that re-render the message from source before
// scheduling. A marker whose span cannot be located is not an error - the
// text may still be streaming in or already annotated.
func (e *Engine) ProcessMessage(id int, force bool) error {
	if !e.enabled {
		return nil
	}

	raw, err := e.store.RawText(id)
	if err != nil {
		return fmt.Errorf("message %d: %w", id, err)
	}
	markers := markup.ExtractMarkers(raw)
	if len(markers) == 0 {
		return nil
	}

	container, err := e.store.Container(id)
	if err != nil {
		return fmt.Errorf("message %d: %w", id, err)
	}
	if container == nil {
		e.log.Debug("message not rendered yet", zap.Int("id", id))
		return nil
	}

	if force {
		e.ledger.Clear(id)
	}

	var errs error
	for _, m := range markers {
		key := markup.Normalize(m.Content)
		if key == "" {
			continue
		}
		if e.ledger.HasProcessed(id, key) {
			continue
		}
		inserted, err := e.annotate(id, container, m)
		if err != nil {
			e.log.Warn("annotation failed", zap.Int("id", id), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("message %d: %w", id, err))
			continue
		}
		if inserted {
			e.ledger.MarkProcessed(id, key)
		}
	}
	return errs
}

// ProcessAll reconciles every message in the store. With clearExisting the
// ledger is dropped first so every marker is reconsidered against the fresh
// render.
func (e *Engine) ProcessAll(clearExisting bool) error {
	if !e.enabled {
		return nil
	}
	ids, err := e.store.MessageIDs()
	if err != nil {
		return err
	}
	if clearExisting {
		e.ledger.ClearAll()
	}
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, e.ProcessMessage(id, false))
	}
	return errs
}

// annotate replaces one marker's span with a box. Reports false without
// error when the span cannot be located - the render may still lag the
// source, so the marker stays unrecorded and a later pass retries.
func (e *Engine) annotate(id int, container *html.Node, m markup.Marker) (bool, error) {
	span := dom.Locate(container, m.Content)
	if span == nil {
		span = dom.LocateFallback(container, m.Content)
	}
	if span == nil {
		e.log.Debug("marker span not found", zap.Int("id", id), zap.String("speaker", m.Speaker))
		return false, nil
	}

	inner, err := span.Extract()
	if err != nil {
		return false, fmt.Errorf("extracting span: %w", err)
	}

	speaker := markup.SanitizeSpeakerName(m.Speaker)
	var avatarURL string
	if e.avatars != nil && speaker != "" {
		avatarURL = e.avatars.Resolve(speaker)
	}

	box, err := e.boxes.Build(speaker, avatarURL, inner)
	if err != nil {
		return false, err
	}
	if err := span.Insert(box); err != nil {
		return false, fmt.Errorf("inserting box: %w", err)
	}
	dom.Cleanup(box)
	return true, nil
}
