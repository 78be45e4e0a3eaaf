package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber event queue depth. A subscriber that
// falls further behind starts dropping events; its client recovers by
// re-running snapshot reconstruction.
const subscriberBuffer = 64

// Subscriber receives the event stream for a single frame.
type Subscriber struct {
	ID      string
	FrameID uint64

	ch      chan Event
	dropped atomic.Uint64

	closeOnce sync.Once
}

// Events returns the receive channel. It is closed on Unsubscribe and on hub
// shutdown.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded because the subscriber was
// not keeping up.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Hub is the in-process broadcast fabric. Each frame has a logical channel;
// publishing never blocks and never fails when nobody is listening.
type Hub struct {
	mu     sync.RWMutex
	frames map[uint64]map[string]*Subscriber
	closed bool

	published atomic.Uint64

	// bridge, when set, republishes local events to other instances.
	bridge func(Event)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{frames: make(map[uint64]map[string]*Subscriber)}
}

// SetBridge installs a cross-instance publisher invoked for every locally
// published event. Must be called before the hub is in use.
func (h *Hub) SetBridge(bridge func(Event)) {
	h.bridge = bridge
}

// Subscribe registers a new viewer of frameID.
func (h *Hub) Subscribe(frameID uint64) *Subscriber {
	sub := &Subscriber{
		ID:      uuid.NewString(),
		FrameID: frameID,
		ch:      make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	subs, ok := h.frames[frameID]
	if !ok {
		subs = make(map[string]*Subscriber)
		h.frames[frameID] = subs
	}
	subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a viewer and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if subs, ok := h.frames[sub.FrameID]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.frames, sub.FrameID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Publish fans an event out to every subscriber of its frame and forwards it
// to the bridge. Slow subscribers drop the event rather than block the caller.
func (h *Hub) Publish(ev Event) {
	h.publishLocal(ev)
	if h.bridge != nil {
		h.bridge(ev)
	}
}

// publishLocal delivers to in-process subscribers only. The redis bridge uses
// it to avoid echoing remote events back out.
func (h *Hub) publishLocal(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.published.Add(1)
	for _, sub := range h.frames[ev.FrameID] {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of live viewers of a frame.
func (h *Hub) SubscriberCount(frameID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.frames[frameID])
}

// Published returns the total number of locally published events.
func (h *Hub) Published() uint64 {
	return h.published.Load()
}

// Close shuts the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.frames {
		for _, sub := range subs {
			sub.close()
		}
	}
	h.frames = make(map[uint64]map[string]*Subscriber)
}
