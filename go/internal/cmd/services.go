package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena"
	"github.com/dmehra21/codebid/go/internal/arena/auction"
	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/gateway"
	"github.com/dmehra21/codebid/go/internal/arena/grading"
	"github.com/dmehra21/codebid/go/internal/arena/session"
	"github.com/dmehra21/codebid/go/internal/arena/standings"
	"github.com/dmehra21/codebid/go/internal/arena/wallet"
	"github.com/dmehra21/codebid/go/internal/store"
)

// Services wires the full dependency chain: storage, wallet ledger,
// auction machines, grading, sessions, and the WebSocket gateway.
type Services struct {
	Store       store.Store
	Engine      *arena.Engine
	Automaton   *session.Automaton
	Manager     *gateway.Manager
	Consumer    *gateway.EventConsumer
	Broadcaster *broadcast.NATSPublisher
}

func setupServices(cfg *Config, st store.Store, clock clockwork.Clock) (*Services, error) {
	publisher, err := broadcast.ConnectPublisher(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event bus publisher: %w", err)
	}

	tick := cfg.tickInterval()
	ledger := wallet.NewLedger(st)
	machines := auction.NewFactory(st, ledger, clock, publisher, tick)
	grader := grading.NewGateway(st, grading.UnscoredGrader{}, clock, publisher, tick)
	eliminator := standings.NewEliminator(st)

	controller := auction.NewController(st, machines, grader, eliminator, publisher, auction.ControllerConfig{
		AuctionDuration: cfg.auctionDuration(),
		CodingDuration:  cfg.codingDuration(),
	})

	automaton := session.NewAutomaton(st, machines, grader, eliminator, clock, publisher, session.Config{
		ScanInterval:       cfg.scanInterval(),
		QuorumPollInterval: cfg.quorumPollInterval(),
		PacingGap:          cfg.pacingGap(),
		Tick:               tick,
	})

	engine := arena.NewEngine(controller, automaton, grader)
	manager := gateway.NewManager(gateway.DefaultConfig(), engine)

	consumerCfg := gateway.DefaultConsumerConfig()
	consumerCfg.URL = cfg.NATS.URL
	consumer, err := gateway.NewEventConsumer(manager, consumerCfg)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to connect event bus consumer: %w", err)
	}

	log.Info().Str("backend", cfg.Storage.Backend).Msg("services wired")
	return &Services{
		Store:       st,
		Engine:      engine,
		Automaton:   automaton,
		Manager:     manager,
		Consumer:    consumer,
		Broadcaster: publisher,
	}, nil
}
