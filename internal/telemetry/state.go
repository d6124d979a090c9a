// Package telemetry holds the robot state hub, the metric collectors, and
// the sampler loop that turns state into metric data and log records.
package telemetry

import (
	"sync"

	"github.com/fieldrover/rovermon/pkg/models"
)

// StateSource provides the latest known robot state. The boolean is false
// until a first state has been received.
type StateSource interface {
	Current() (models.RobotState, bool)
}

// StateSink accepts robot state updates.
type StateSink interface {
	Update(state models.RobotState)
}

// StateHub is a concurrency-safe latest-state holder. The ingest endpoint
// and the simulator write to it; collectors and the stream server read from
// it. Subscribers receive every update on a best-effort basis: a slow
// subscriber drops updates rather than blocking the writer.
type StateHub struct {
	mu    sync.RWMutex
	state models.RobotState
	set   bool
	subs  map[chan models.RobotState]struct{}
}

// NewStateHub creates an empty StateHub.
func NewStateHub() *StateHub {
	return &StateHub{subs: make(map[chan models.RobotState]struct{})}
}

// Update stores the state and fans it out to subscribers.
func (h *StateHub) Update(state models.RobotState) {
	h.mu.Lock()
	h.state = state
	h.set = true
	for ch := range h.subs {
		select {
		case ch <- state:
		default: // subscriber is behind, drop
		}
	}
	h.mu.Unlock()
}

// Current returns the latest state, and false if none has been received yet.
func (h *StateHub) Current() (models.RobotState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state, h.set
}

// Subscribe registers a channel that receives every subsequent update.
// The returned cancel function must be called to release the subscription.
func (h *StateHub) Subscribe() (<-chan models.RobotState, func()) {
	ch := make(chan models.RobotState, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}
