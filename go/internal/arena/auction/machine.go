// Package auction runs one question's bidding phase to completion:
// push, countdown, close, settle.
package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/arena/wallet"
	"github.com/dmehra21/codebid/go/internal/models"
)

// Store is what the auction machine needs from persistence.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateAuction(ctx context.Context, a models.Auction) error
	UpdateAuction(ctx context.Context, a models.Auction) error
	CreateBid(ctx context.Context, b models.Bid) error
	CreateAllotment(ctx context.Context, a models.Allotment) error
}

// Settlement is the outcome of a completed auction. Allotment is nil
// when the auction closed with no bids.
type Settlement struct {
	Auction   models.Auction
	Allotment *models.Allotment
}

// Meta positions an auction inside a scheduled session for client
// payloads. Zero values mean a standalone auction.
type Meta struct {
	QuestionNumber int
	TotalQuestions int
}

// Factory builds machines sharing one set of dependencies.
type Factory struct {
	store  Store
	ledger *wallet.Ledger
	clock  clockwork.Clock
	b      broadcast.Broadcaster
	tick   time.Duration
}

// NewFactory creates a machine factory. tick is the countdown
// broadcast interval; production uses one second.
func NewFactory(store Store, ledger *wallet.Ledger, clock clockwork.Clock, b broadcast.Broadcaster, tick time.Duration) *Factory {
	if tick <= 0 {
		tick = time.Second
	}
	return &Factory{store: store, ledger: ledger, clock: clock, b: b, tick: tick}
}

// New creates a machine for one question, still in pending phase.
func (f *Factory) New(question models.Question, room string, names events.Names, duration time.Duration, meta Meta) *Machine {
	auction := models.Auction{
		ID:            uuid.New(),
		QuestionID:    question.ID,
		Status:        models.AuctionStatusPending,
		TimerDuration: int(duration / time.Second),
		CreatedAt:     f.clock.Now().UTC(),
	}
	return &Machine{
		factory:  f,
		question: question,
		auction:  auction,
		room:     room,
		names:    names,
		duration: duration,
		meta:     meta,
		register: newRegister(auction, f.store, f.clock.Now),
	}
}

// Machine drives a single auction through pending, active, and
// completed. The countdown is fixed; accepted bids do not extend it.
// All mutable phase state lives in the register behind its mutex, so
// every Machine field is set at construction and read-only after.
type Machine struct {
	factory  *Factory
	question models.Question
	auction  models.Auction
	room     string
	names    events.Names
	duration time.Duration
	meta     Meta
	register *Register
}

// ID returns the auction's identity.
func (m *Machine) ID() uuid.UUID {
	return m.auction.ID
}

// Question returns the question under auction.
func (m *Machine) Question() models.Question {
	return m.question
}

// PlaceBid forwards to the bid register. It is safe to call
// concurrently with Run.
func (m *Machine) PlaceBid(ctx context.Context, bidderID uuid.UUID, amount int) (models.Bid, error) {
	bid, err := m.register.PlaceBid(ctx, bidderID, amount)
	if err != nil {
		return models.Bid{}, err
	}
	m.factory.b.Broadcast(m.room, m.names.NewBid, events.NewBidPayload{
		AuctionID:      m.auction.ID,
		Amount:         bid.Amount,
		BidderUsername: bid.BidderUsername,
		BidderTeam:     bid.BidderTeam,
		TimeRemaining:  m.Remaining(),
	})
	return bid, nil
}

// Remaining returns whole seconds left on the countdown.
func (m *Machine) Remaining() int {
	deadline := m.register.Deadline()
	if deadline.IsZero() {
		return 0
	}
	left := deadline.Sub(m.factory.clock.Now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// Snapshot returns the current high bid for late-joiner state.
func (m *Machine) Snapshot() models.BidSnapshot {
	return m.register.Snapshot()
}

// Run activates the auction, broadcasts the question, counts down,
// and settles on expiry. Cancelling ctx aborts without settlement;
// the auction record is left as-is and no further events are emitted.
func (m *Machine) Run(ctx context.Context) (Settlement, error) {
	clock := m.factory.clock
	start := clock.Now().UTC()
	active := m.register.open(start, start.Add(m.duration))

	if err := m.factory.store.CreateAuction(ctx, active); err != nil {
		return Settlement{}, fmt.Errorf("failed to persist auction: %w", err)
	}

	m.factory.b.Broadcast(m.room, m.names.QuestionPushed, events.QuestionPushedPayload{
		AuctionID: m.auction.ID,
		Question: events.QuestionSummary{
			ID:          m.question.ID,
			Title:       m.question.Title,
			Description: m.question.Description,
			Difficulty:  m.question.Difficulty,
		},
		TimeRemaining:  int(m.duration / time.Second),
		QuestionNumber: m.meta.QuestionNumber,
		TotalQuestions: m.meta.TotalQuestions,
	})

	ticker := clock.NewTicker(m.factory.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Settlement{}, ctx.Err()
		case <-ticker.Chan():
			remaining := m.Remaining()
			if remaining <= 0 {
				return m.settle(ctx), nil
			}
			m.factory.b.Broadcast(m.room, m.names.TimerUpdate, events.TimerUpdatePayload{
				TimeRemaining: remaining,
			})
		}
	}
}

// settle closes the register and resolves the winner. A persistence
// failure here is logged and not retried: the phase completes
// regardless, favoring contest liveness over settlement durability.
func (m *Machine) settle(ctx context.Context) Settlement {
	final := m.register.close(m.factory.clock.Now())
	summary := events.QuestionSummary{
		ID:          m.question.ID,
		Title:       m.question.Title,
		Description: m.question.Description,
		Difficulty:  m.question.Difficulty,
	}

	if final.CurrentBid.BidderID == nil {
		if err := m.factory.store.UpdateAuction(ctx, final); err != nil {
			log.Error().Err(err).Str("auction_id", final.ID.String()).Msg("failed to persist settled auction")
		}
		m.factory.b.Broadcast(m.room, m.names.AuctionEnded, events.AuctionEndedPayload{
			AuctionID: final.ID,
			Winner:    nil,
			Question:  summary,
		})
		log.Info().Str("auction_id", final.ID.String()).Msg("auction settled with no bids")
		return Settlement{Auction: final}
	}

	winnerID := *final.CurrentBid.BidderID
	final.WinnerID = &winnerID
	final.WinningAmount = final.CurrentBid.Amount
	if err := m.factory.store.UpdateAuction(ctx, final); err != nil {
		log.Error().Err(err).Str("auction_id", final.ID.String()).Msg("failed to persist settled auction")
	}

	if err := m.factory.ledger.Debit(ctx, winnerID, final.WinningAmount); err != nil {
		log.Error().
			Err(err).
			Str("auction_id", final.ID.String()).
			Str("winner_id", winnerID.String()).
			Msg("failed to debit winner wallet")
	}

	allotment := models.Allotment{
		ID:             uuid.New(),
		UserID:         winnerID,
		Username:       final.CurrentBid.BidderUsername,
		TeamName:       final.CurrentBid.BidderTeam,
		QuestionID:     m.question.ID,
		AuctionID:      final.ID,
		BidAmount:      final.WinningAmount,
		TotalTestCases: len(m.question.TestCases),
		Status:         models.AllotmentStatusAllotted,
		AllottedAt:     m.factory.clock.Now().UTC(),
	}
	if err := m.factory.store.CreateAllotment(ctx, allotment); err != nil {
		log.Error().Err(err).Str("auction_id", final.ID.String()).Msg("failed to persist allotment")
	}

	m.factory.b.Broadcast(m.room, m.names.AuctionEnded, events.AuctionEndedPayload{
		AuctionID: final.ID,
		Winner: &events.WinnerInfo{
			Username: final.CurrentBid.BidderUsername,
			TeamName: final.CurrentBid.BidderTeam,
			Amount:   final.WinningAmount,
		},
		Question: summary,
	})

	log.Info().
		Str("auction_id", final.ID.String()).
		Str("winner", final.CurrentBid.BidderUsername).
		Int("amount", final.WinningAmount).
		Msg("auction settled")

	return Settlement{Auction: final, Allotment: &allotment}
}
