package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/arena/grading"
	"github.com/dmehra21/codebid/go/internal/arena/standings"
	"github.com/dmehra21/codebid/go/internal/models"
)

var (
	ErrAuctionInProgress = errors.New("an auction is already in progress")
	ErrCodingInProgress  = errors.New("a coding phase is already in progress")
	ErrNoActiveAuction   = errors.New("no active auction")
	ErrNothingToCode     = errors.New("no allotted questions to start coding for")
)

// ControllerStore is what the ad-hoc flow needs beyond the machine's
// own store.
type ControllerStore interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListAllotmentsByStatus(ctx context.Context, status models.AllotmentStatus) ([]models.Allotment, error)
}

// ControllerConfig holds the fixed phase durations for standalone
// auctions.
type ControllerConfig struct {
	AuctionDuration time.Duration
	CodingDuration  time.Duration
}

// Controller runs the standalone flow on the global room: an admin
// pushes one question at a time, and a later explicit trigger starts a
// single coding phase over everything won so far.
type Controller struct {
	store      ControllerStore
	machines   *Factory
	grading    *grading.Gateway
	eliminator *standings.Eliminator
	b          broadcast.Broadcaster
	cfg        ControllerConfig

	mu             sync.Mutex
	ctx            context.Context
	active         *Machine
	coding         bool
	codingDeadline time.Time
}

func NewController(store ControllerStore, machines *Factory, gw *grading.Gateway, eliminator *standings.Eliminator, b broadcast.Broadcaster, cfg ControllerConfig) *Controller {
	if cfg.AuctionDuration <= 0 {
		cfg.AuctionDuration = time.Minute
	}
	if cfg.CodingDuration <= 0 {
		cfg.CodingDuration = 15 * time.Minute
	}
	return &Controller{
		store:      store,
		machines:   machines,
		grading:    gw,
		eliminator: eliminator,
		b:          b,
		cfg:        cfg,
		ctx:        context.Background(),
	}
}

// Start binds the controller's phase goroutines to the application
// lifetime. Cancelling ctx aborts any live phase without settlement.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
}

// PushQuestion opens a bidding phase for one question. Rejected while
// any phase is live.
func (c *Controller) PushQuestion(ctx context.Context, questionID uuid.UUID) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return uuid.Nil, ErrAuctionInProgress
	}
	if c.coding {
		return uuid.Nil, ErrCodingInProgress
	}

	question, err := c.store.GetQuestion(ctx, questionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load question %s: %w", questionID, err)
	}

	machine := c.machines.New(*question, events.GlobalRoom, events.Adhoc, c.cfg.AuctionDuration, Meta{})
	c.active = machine

	runCtx := c.ctx
	go func() {
		if _, err := machine.Run(runCtx); err != nil {
			log.Warn().Err(err).Str("auction_id", machine.ID().String()).Msg("auction aborted")
		}
		c.mu.Lock()
		if c.active == machine {
			c.active = nil
		}
		c.mu.Unlock()
	}()

	log.Info().
		Str("auction_id", machine.ID().String()).
		Str("question", question.Title).
		Msg("question pushed")
	return machine.ID(), nil
}

// PlaceBid routes a bid to the live auction.
func (c *Controller) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount int) (models.Bid, error) {
	c.mu.Lock()
	machine := c.active
	c.mu.Unlock()

	if machine == nil || machine.ID() != auctionID {
		return models.Bid{}, ErrNoActiveAuction
	}
	return machine.PlaceBid(ctx, bidderID, amount)
}

// StartCoding runs the elimination check, then opens one coding phase
// covering every allotment still waiting for code.
func (c *Controller) StartCoding(ctx context.Context) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrAuctionInProgress
	}
	if c.coding {
		c.mu.Unlock()
		return ErrCodingInProgress
	}

	outcome, err := c.eliminator.Check(ctx)
	if err != nil {
		log.Error().Err(err).Msg("elimination check failed")
	} else if len(outcome.Eliminated) > 0 {
		c.b.Broadcast(events.GlobalRoom, events.TypeTeamsEliminated, events.TeamsEliminatedPayload{
			EliminatedTeams: outcome.Eliminated,
			QualifiedTeams:  outcome.Qualified,
		})
	}

	allotments, err := c.store.ListAllotmentsByStatus(ctx, models.AllotmentStatusAllotted)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to list allotted questions: %w", err)
	}
	if len(allotments) == 0 {
		c.mu.Unlock()
		return ErrNothingToCode
	}

	c.coding = true
	c.codingDeadline = c.machines.clock.Now().Add(c.cfg.CodingDuration)
	runCtx := c.ctx
	c.mu.Unlock()

	go func() {
		if _, err := c.grading.Run(runCtx, events.GlobalRoom, events.Adhoc, allotments, c.cfg.CodingDuration); err != nil {
			log.Warn().Err(err).Msg("coding phase aborted")
		}
		c.mu.Lock()
		c.coding = false
		c.mu.Unlock()
	}()

	log.Info().Int("allotments", len(allotments)).Msg("coding phase started")
	return nil
}

// Snapshot returns the global-room state a late joiner should render.
func (c *Controller) Snapshot() events.AuctionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snap events.AuctionSnapshot
	switch {
	case c.active != nil:
		q := c.active.Question()
		snap.IsActive = true
		snap.TimeRemaining = c.active.Remaining()
		snap.Question = &events.QuestionSummary{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			Difficulty:  q.Difficulty,
		}
		snap.CurrentBid = c.active.Snapshot()
	case c.coding:
		snap.IsCodingPhase = true
		left := c.codingDeadline.Sub(c.machines.clock.Now())
		if left > 0 {
			snap.TimeRemaining = int((left + time.Second - 1) / time.Second)
		}
	}
	return snap
}
