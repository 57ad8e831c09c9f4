package workers

import (
	"context"
	"log/slog"
	"time"

	"hearthchat/contract"
	"hearthchat/domain/event"
	"hearthchat/observability"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout delivers persisted events to live connections.
//
// Room broadcasts go to every sink subscribed to the room, in the order
// events arrive (persistence order). Notifications go to the user
// channel of every other current room member, resolved live against
// the directory so revoked members are never notified. Rejections go
// back to the origin connection only.
//
// Delivery is best-effort with no retries; a failure on one sink never
// prevents delivery to the others.
type EventFanout struct {
	registry    contract.IRegistry
	notifier    contract.INotifier
	directory   contract.IDirectory
	store       contract.IMessageStore
	observers   []contract.EventSink
	events      chan event.DomainEvent
	stats       *observability.Stats
	sinkTimeout time.Duration
	log         *slog.Logger
}

// NewEventFanout builds the delivery worker. Observers are permanent
// sinks that see every stored message regardless of any room
// subscription; they outlive individual connections.
func NewEventFanout(
	registry contract.IRegistry,
	notifier contract.INotifier,
	directory contract.IDirectory,
	store contract.IMessageStore,
	observers []contract.EventSink,
	events chan event.DomainEvent,
	stats *observability.Stats,
	sinkTimeout time.Duration,
	log *slog.Logger) *EventFanout {
	return &EventFanout{
		registry:    registry,
		notifier:    notifier,
		directory:   directory,
		store:       store,
		observers:   observers,
		events:      events,
		stats:       stats,
		sinkTimeout: sinkTimeout,
		log:         log,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.fanout(ctx, evt)
		}
	}
}

func (w *EventFanout) fanout(ctx context.Context, evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.MessageStored:
		for _, observer := range w.observers {
			w.consume(ctx, observer, e)
		}
		w.broadcast(ctx, e)
		w.notifyRoomMembers(ctx, e)
	case event.SendRejected:
		if sink, ok := w.registry.SinkFor(e.Connection); ok {
			w.consume(ctx, sink, e)
		}
	default:
		w.log.Debug("Not implemented event", "event", evt)
	}
}

// broadcast relays one stored message to every subscriber of its room,
// sender's own connection included.
func (w *EventFanout) broadcast(ctx context.Context, e event.MessageStored) {
	sinks := w.registry.GetSinksForRoom(e.RoomID())
	for _, sink := range sinks {
		w.consume(ctx, sink, e)
	}
	w.stats.AddBroadcasts(len(sinks))
}

// notifyRoomMembers resolves the current room member list (a live
// lookup, never a snapshot taken at connect time) and publishes a
// lightweight notification to every member except the sender.
func (w *EventFanout) notifyRoomMembers(ctx context.Context, e event.MessageStored) {
	room, err := w.store.RoomByID(ctx, e.RoomID())
	if err != nil {
		w.log.Warn("Notification fanout skipped: room lookup failed",
			"room_id", e.RoomID(), "error", err)
		return
	}
	members, err := w.directory.ActiveMembers(ctx, room.FamilyID)
	if err != nil {
		w.log.Warn("Notification fanout skipped: directory lookup failed",
			"family_id", room.FamilyID, "error", err)
		return
	}

	notification := event.RoomNotification{
		Room:      e.RoomID(),
		MessageID: e.Message.ID,
		Sender:    e.Sender,
		At:        e.Message.CreatedAt,
	}
	notified := 0
	for _, member := range members {
		if !room.HasMember(member.ID) {
			continue
		}
		if member.UserID == e.Sender.UserID {
			// Never the sender's own notification channel.
			continue
		}
		w.notifier.Publish(ctx, member.UserID, notification)
		notified++
	}
	w.stats.AddNotifications(notified)
}

func (w *EventFanout) consume(ctx context.Context, sink contract.EventSink, e event.DomainEvent) {
	deliverCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(deliverCtx, e); err != nil {
		w.log.Debug("Sink delivery failed", "room_id", e.RoomID(), "error", err)
	}
}
