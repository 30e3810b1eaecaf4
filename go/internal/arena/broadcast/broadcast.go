// Package broadcast is the only channel by which engine state
// transitions become observable to clients. Delivery is at-most-once
// and fire-and-forget: a publish error is logged, never retried, and
// never fails the phase that produced it.
package broadcast

import (
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/events"
)

// Broadcaster publishes engine events to a room. Implementations must
// not block the caller on slow or absent observers.
type Broadcaster interface {
	Broadcast(room string, typ events.Type, payload any)
}

// Multi fans one broadcast out to several sinks.
type Multi []Broadcaster

func (m Multi) Broadcast(room string, typ events.Type, payload any) {
	for _, b := range m {
		b.Broadcast(room, typ, payload)
	}
}

// Logger is a Broadcaster that only logs, for dev mode without a bus.
type Logger struct{}

func (Logger) Broadcast(room string, typ events.Type, payload any) {
	log.Debug().
		Str("room", room).
		Str("event_type", string(typ)).
		Msg("broadcast (log only)")
}
