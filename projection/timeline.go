// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"sync"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/domain/event"
)

var _ contract.EventSink = (*Timeline)(nil)

// Timeline holds a simple local timeline of stored messages, in the
// order they were observed. Duplicate deliveries of the same message
// id are dropped.
type Timeline struct {
	mu       sync.Mutex
	messages []domain.Message
	seen     map[domain.MessageID]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[domain.MessageID]struct{})}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	stored, ok := e.(event.MessageStored)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.seen[stored.Message.ID]; dup {
		return nil
	}
	t.seen[stored.Message.ID] = struct{}{}
	t.messages = append(t.messages, stored.Message)
	return nil
}

// Messages returns a copy of the observed timeline.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
