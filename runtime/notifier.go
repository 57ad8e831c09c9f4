package runtime

import (
	"context"
	"log/slog"
	"sync"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/domain/event"
)

// Notifier is the per-user broadcast group. One user may hold several
// notification connections (phone, laptop); Publish reaches all of
// them, at most once each, and silently skips users with none.
type Notifier struct {
	mu    sync.RWMutex
	users map[domain.UserID]map[string]contract.EventSink
	log   *slog.Logger
}

func NewNotifier(log *slog.Logger) *Notifier {
	return &Notifier{
		users: make(map[domain.UserID]map[string]contract.EventSink),
		log:   log,
	}
}

func (n *Notifier) Attach(userID domain.UserID, connectionID string, sink contract.EventSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.users[userID]; !ok {
		n.users[userID] = make(map[string]contract.EventSink)
	}
	n.users[userID][connectionID] = sink
}

func (n *Notifier) Detach(userID domain.UserID, connectionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if sinks, ok := n.users[userID]; ok {
		delete(sinks, connectionID)
		if len(sinks) == 0 {
			delete(n.users, userID)
		}
	}
}

// Publish delivers the event to every active connection of one user.
// A failing sink never prevents delivery to the remaining ones.
func (n *Notifier) Publish(ctx context.Context, userID domain.UserID, e event.DomainEvent) {
	n.mu.RLock()
	sinks := make([]contract.EventSink, 0, len(n.users[userID]))
	for _, sink := range n.users[userID] {
		sinks = append(sinks, sink)
	}
	n.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			n.log.Debug("Notification delivery failed", "user_id", userID, "error", err)
		}
	}
}
