package broadcast

import (
	"sync"

	"github.com/dmehra21/codebid/go/internal/arena/events"
)

// Recorder is a Broadcaster that captures events in memory. Intended
// for tests.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Broadcast(room string, typ events.Type, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.New(room, typ, payload))
}

// Events returns a copy of everything broadcast so far.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// EventsOfType returns recorded events matching typ, in order.
func (r *Recorder) EventsOfType(typ events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// RoomEvents returns recorded events for a room, in order.
func (r *Recorder) RoomEvents(room string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Room == room {
			out = append(out, e)
		}
	}
	return out
}
