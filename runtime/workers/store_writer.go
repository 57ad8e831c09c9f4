package workers

import (
	"context"
	"log/slog"

	stderrors "errors"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/domain/event"
	"hearthchat/errors"
	"hearthchat/observability"
)

// Ensure *StoreWriter implements the contract.Worker interface at compile time.
var _ contract.Worker = (*StoreWriter)(nil)

// StoreWriter is the single ordered path between connection actors and
// the store: command in, atomic write, event out. Running exactly one
// of these is what makes the store the ordering authority: events
// leave in persistence order, and connection actors never block on
// disk because they only enqueue commands.
type StoreWriter struct {
	store    contract.IMessageStore
	commands chan domain.Command
	events   chan event.DomainEvent
	stats    *observability.Stats
	log      *slog.Logger
}

func NewStoreWriter(
	store contract.IMessageStore,
	commands chan domain.Command,
	events chan event.DomainEvent,
	stats *observability.Stats,
	log *slog.Logger) *StoreWriter {
	return &StoreWriter{
		store:    store,
		commands: commands,
		events:   events,
		stats:    stats,
		log:      log,
	}
}

func (w *StoreWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			send, ok := cmd.(domain.SendMessageCommand)
			if !ok {
				continue
			}
			// The write is allowed to complete even if the origin
			// connection closes right after dispatching.
			evt := w.persist(context.WithoutCancel(ctx), send)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case w.events <- evt:
			}
		}
	}
}

func (w *StoreWriter) persist(ctx context.Context, cmd domain.SendMessageCommand) event.DomainEvent {
	message, sender, err := w.store.Create(ctx, cmd.RoomID(), cmd.Sender, cmd.Ciphertext, cmd.IV)
	if err == nil {
		w.stats.IncrStored()
		return event.MessageStored{Message: message, Sender: sender}
	}

	w.stats.IncrRejected()
	rejected := event.SendRejected{Room: cmd.RoomID(), Connection: cmd.Connection}
	switch {
	case stderrors.Is(err, errors.ErrNotAMember):
		// Membership revoked between connect time and send time.
		// Security-relevant, not a routine bad request.
		w.log.Warn("Send rejected: sender is no longer a room member",
			"user_id", cmd.Sender.UserID,
			"room_id", cmd.Room)
		rejected.Reason = "Not a member of this room"
	case stderrors.Is(err, errors.ErrRoomNotFound):
		w.log.Warn("Send rejected: room does not exist", "room_id", cmd.Room)
		rejected.Reason = "Room not found"
	default:
		w.log.Error("Failed to save message",
			"user_id", cmd.Sender.UserID,
			"room_id", cmd.Room,
			"error", err)
		rejected.Reason = "Failed to save message to database"
	}
	return rejected
}
