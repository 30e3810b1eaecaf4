package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/events"
)

// SubjectPrefix is the root of all event subjects. One subject per
// room: <prefix>.<room>.
const SubjectPrefix = "codebid.events"

// Subject returns the NATS subject for a room.
func Subject(room string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, room)
}

// NATSPublisher publishes events to core NATS. Core NATS delivery is
// at-most-once with no replay, which is exactly the contract the
// gateway exposes to clients: a disconnected observer misses events
// and must request a snapshot on rejoin.
type NATSPublisher struct {
	nc *nats.Conn
}

// ConnectPublisher dials NATS and returns a publisher over it.
func ConnectPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) Broadcast(room string, typ events.Type, payload any) {
	event := events.New(room, typ, payload)

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event")
		return
	}

	if err := p.nc.Publish(Subject(room), data); err != nil {
		log.Error().
			Err(err).
			Str("room", room).
			Str("event_type", string(typ)).
			Msg("failed to publish event")
	}
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
