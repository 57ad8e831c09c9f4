// Package observability aggregates live delivery counters for the
// debug endpoint. It observes the pipeline; it never influences it.
package observability

import (
	"sync/atomic"
	"time"
)

// Stats tracks delivery in real time. All counters are atomic;
// a Stats instance is shared freely between workers and handlers.
type Stats struct {
	StartedAt time.Time

	activeConnections int64
	messagesStored    uint64
	broadcasts        uint64
	notifications     uint64
	rejectedSends     uint64
}

func NewStats() *Stats {
	return &Stats{StartedAt: time.Now().UTC()}
}

func (s *Stats) ConnOpened() { atomic.AddInt64(&s.activeConnections, 1) }

func (s *Stats) ConnClosed() { atomic.AddInt64(&s.activeConnections, -1) }

func (s *Stats) IncrStored() { atomic.AddUint64(&s.messagesStored, 1) }

func (s *Stats) IncrRejected() { atomic.AddUint64(&s.rejectedSends, 1) }

func (s *Stats) AddBroadcasts(n int) {
	atomic.AddUint64(&s.broadcasts, uint64(n))
}

func (s *Stats) AddNotifications(n int) {
	atomic.AddUint64(&s.notifications, uint64(n))
}

// Snapshot renders the counters for the debug dashboard.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"uptime":             time.Since(s.StartedAt).Round(time.Second).String(),
		"active_connections": atomic.LoadInt64(&s.activeConnections),
		"messages_stored":    atomic.LoadUint64(&s.messagesStored),
		"broadcasts":         atomic.LoadUint64(&s.broadcasts),
		"notifications":      atomic.LoadUint64(&s.notifications),
		"rejected_sends":     atomic.LoadUint64(&s.rejectedSends),
	}
}
