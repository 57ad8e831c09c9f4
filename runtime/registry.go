// Package runtime handles event propagation between connection actors.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"sync"

	"hearthchat/contract"
	"hearthchat/domain"
)

type Set map[string]struct{}

// Registry is the room broadcast group. It maps live connections
// (participants) to their sinks and rooms to their participants.
type Registry struct {
	mu          sync.RWMutex
	Sessions    map[string]contract.EventSink // map participant -> Sink
	RoomMembers map[domain.RoomID]Set         // map room to participants
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:    make(map[string]contract.EventSink),
		RoomMembers: make(map[domain.RoomID]Set),
	}
}

// GetSinksForRoom retrieves all active communication channels for a specific room.
// It performs a two-step lookup:
// 1. Identifies participant IDs associated with the room via RoomMembers.
// 2. Resolves those IDs into actual EventSinks using the Sessions map.
//
// Returns nil if the room doesn't exist or has no subscribers.
func (r *Registry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for participantID := range members {
		if sink, exists := r.Sessions[participantID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// SinkFor resolves a single participant's sink, used to route rejections
// back to the connection that caused them.
func (r *Registry) SinkFor(participantID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.Sessions[participantID]
	return sink, ok
}

// Subscribe registers a participant's active connection and assigns it to a room.
// If the room does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) Subscribe(participantID string, roomID domain.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[participantID] = sink

	if _, ok := r.RoomMembers[roomID]; !ok {
		r.RoomMembers[roomID] = make(Set)
	}
	r.RoomMembers[roomID][participantID] = struct{}{}
}

// Unsubscribe removes a participant from the registry and its room.
// It cleans up the session and ensures no empty sets are left in the
// room map to prevent memory leaks over time.
func (r *Registry) Unsubscribe(participantID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Sessions, participantID)

	if members, ok := r.RoomMembers[roomID]; ok {
		delete(members, participantID)

		if len(members) == 0 {
			delete(r.RoomMembers, roomID)
		}
	}
}
