package pipeline

import (
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/extractor"
)

// Event types emitted by the pipeline.
const (
	EventFrame             = "frame"
	EventPresence          = "presence"
	EventUnknown           = "unknown"
	EventAcquisitionFailed = "acquisition_failed"
)

// Event is a pipeline notification for live viewers.
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// PresenceData accompanies EventPresence.
type PresenceData struct {
	Identity string  `json:"identity"`
	Outcome  string  `json:"outcome"`
	Distance float64 `json:"distance"`
}

// FrameData accompanies EventFrame.
type FrameData struct {
	Faces  int      `json:"faces"`
	Labels []string `json:"labels"`
	// Boxes are in 0-1 frame coordinates, parallel to Labels.
	Boxes []extractor.Box `json:"boxes,omitempty"`
}

// EventBroadcaster fans events out to listeners. Slow listeners miss events
// rather than blocking the pipeline.
type EventBroadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener and closes its channel.
func (b *EventBroadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// ListenerCount returns the number of attached listeners.
func (b *EventBroadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
