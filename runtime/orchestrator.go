package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/domain/event"
	"hearthchat/observability"
	"hearthchat/projection"
	"hearthchat/runtime/workers"
)

// Orchestrator wires connection actors to the persistence and fan-out
// pipeline. Actors talk to it only through channels and the two
// broadcast registries; there is no actor-to-actor reference anywhere.
type Orchestrator struct {
	log         *slog.Logger
	supervisor  contract.ISupervisor
	registry    contract.IRegistry
	notifier    contract.INotifier
	directory   contract.IDirectory
	store       contract.IMessageStore
	stats       *observability.Stats
	timeline    *projection.Timeline
	commands    chan domain.Command
	events      chan event.DomainEvent
	sinkTimeout time.Duration
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	registry contract.IRegistry,
	notifier contract.INotifier,
	directory contract.IDirectory,
	store contract.IMessageStore,
	stats *observability.Stats,
	bufferSize int,
	sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		notifier:    notifier,
		directory:   directory,
		store:       store,
		stats:       stats,
		timeline:    projection.NewTimeline(),
		commands:    make(chan domain.Command, bufferSize),
		events:      make(chan event.DomainEvent, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// Dispatch queues a command without blocking the calling actor.
// Returns false when the pipeline is saturated; the caller owns
// telling its client.
func (o *Orchestrator) Dispatch(cmd domain.Command) bool {
	select {
	case o.commands <- cmd:
		return true
	default:
		o.log.Warn(fmt.Sprintf("Command channel full for Room %d, dropping command", cmd.RoomID()))
		return false
	}
}

// RegisterParticipant subscribes a connection to its room's broadcast group.
func (o *Orchestrator) RegisterParticipant(pID string, roomID domain.RoomID, sink contract.EventSink) {
	o.registry.Subscribe(pID, roomID, sink)
}

// UnregisterParticipant disconnects a room connection.
func (o *Orchestrator) UnregisterParticipant(pID string, roomID domain.RoomID) {
	o.registry.Unsubscribe(pID, roomID)
}

// AttachNotifications subscribes a connection to one user's notification group.
func (o *Orchestrator) AttachNotifications(userID domain.UserID, connectionID string, sink contract.EventSink) {
	o.notifier.Attach(userID, connectionID, sink)
}

// DetachNotifications disconnects a notification connection.
func (o *Orchestrator) DetachNotifications(userID domain.UserID, connectionID string) {
	o.notifier.Detach(userID, connectionID)
}

// Start registers the pipeline workers and launches supervision.
// Exactly one StoreWriter runs: ordering comes from there.
func (o *Orchestrator) Start(ctx context.Context, metricInterval time.Duration) {
	writer := workers.NewStoreWriter(o.store, o.commands, o.events, o.stats, o.log)
	// The timeline is a permanent sink: it observes every stored
	// message alongside the connection sinks.
	fanout := workers.NewEventFanout(
		o.registry, o.notifier, o.directory, o.store,
		[]contract.EventSink{o.timeline},
		o.events, o.stats, o.sinkTimeout, o.log,
	)
	health := workers.NewHealthMonitoringWorker(o.log, metricInterval)

	o.supervisor.Add(writer, fanout, health)

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
}

// Timeline exposes the observed message timeline for inspection.
func (o *Orchestrator) Timeline() *projection.Timeline {
	return o.timeline
}

// Stop initiates a graceful shutdown: workers stop pulling from the
// pipeline, in-flight writes are left to complete.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
