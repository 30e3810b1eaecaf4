package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
)

// ConsumerConfig holds NATS consumer settings for the gateway side of
// the event bus.
type ConsumerConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig subscribes to every engine event.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		Subject:       broadcast.SubjectPrefix + ".>",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer subscribes to the event bus and fans events out to
// WebSocket clients. Core NATS delivery is at-most-once; an event
// missed during an outage is simply not replayed, and clients recover
// from the next room snapshot.
type EventConsumer struct {
	manager *Manager
	nc      *nats.Conn
	sub     *nats.Subscription
	config  ConsumerConfig
}

// NewEventConsumer connects to NATS and prepares a consumer.
func NewEventConsumer(manager *Manager, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &EventConsumer{
		manager: manager,
		nc:      nc,
		config:  config,
	}, nil
}

// Start subscribes and begins dispatching events to connections.
func (ec *EventConsumer) Start() error {
	sub, err := ec.nc.Subscribe(ec.config.Subject, func(msg *nats.Msg) {
		var event events.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal bus event")
			return
		}
		ec.manager.Dispatch(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", ec.config.Subject, err)
	}

	ec.sub = sub
	log.Info().Str("subject", ec.config.Subject).Msg("event consumer started")
	return nil
}

// Stop drains the subscription and closes the connection.
func (ec *EventConsumer) Stop() {
	if ec.sub != nil {
		if err := ec.sub.Drain(); err != nil {
			log.Error().Err(err).Msg("failed to drain subscription")
		}
	}
	if ec.nc != nil {
		ec.nc.Close()
	}
	log.Info().Msg("event consumer stopped")
}
