package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/models"
)

// Validation rejections, reported synchronously to the bidder only.
var (
	ErrNotActive           = errors.New("auction is not accepting bids")
	ErrBidTooLow           = errors.New("bid must be higher than current bid")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// Register accepts bids for a single auction. All check-and-set work
// on the high-bid snapshot runs under one mutex, including the store
// reads and writes, so two bids racing past a stale snapshot cannot
// both be accepted: amounts form a strict ascending sequence.
type Register struct {
	mu       sync.Mutex
	auction  models.Auction
	deadline time.Time
	closed   bool

	store Store
	now   func() time.Time
}

func newRegister(auction models.Auction, store Store, now func() time.Time) *Register {
	return &Register{auction: auction, store: store, now: now}
}

// PlaceBid validates and records a bid. Rejections in priority order:
// wrong phase, amount not above the high bid, balance below amount.
// The bidder's balance is checked but not reserved.
func (r *Register) PlaceBid(ctx context.Context, bidderID uuid.UUID, amount int) (models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.auction.Status != models.AuctionStatusActive {
		return models.Bid{}, ErrNotActive
	}
	if amount <= r.auction.CurrentBid.Amount {
		return models.Bid{}, fmt.Errorf("%w: current high bid is %d", ErrBidTooLow, r.auction.CurrentBid.Amount)
	}

	bidder, err := r.store.GetUser(ctx, bidderID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("failed to load bidder %s: %w", bidderID, err)
	}
	if bidder.Wallet < amount {
		return models.Bid{}, fmt.Errorf("%w: balance %d, bid %d", ErrInsufficientBalance, bidder.Wallet, amount)
	}

	bid := models.Bid{
		ID:             uuid.New(),
		AuctionID:      r.auction.ID,
		BidderID:       bidder.ID,
		BidderUsername: bidder.Username,
		BidderTeam:     bidder.TeamName,
		Amount:         amount,
		CreatedAt:      r.now().UTC(),
	}
	if err := r.store.CreateBid(ctx, bid); err != nil {
		return models.Bid{}, fmt.Errorf("failed to record bid: %w", err)
	}

	bidderID = bidder.ID
	r.auction.CurrentBid = models.BidSnapshot{
		Amount:         amount,
		BidderID:       &bidderID,
		BidderUsername: bidder.Username,
		BidderTeam:     bidder.TeamName,
	}
	if err := r.store.UpdateAuction(ctx, r.auction); err != nil {
		// The immutable bid record is already persisted; a stale
		// snapshot in the store does not affect the live auction.
		log.Error().Err(err).Str("auction_id", r.auction.ID.String()).Msg("failed to persist high-bid snapshot")
	}

	return bid, nil
}

// open flips the auction to active and starts the countdown,
// returning the activated state for persistence. Bids arriving before
// open are rejected with ErrNotActive by the status check.
func (r *Register) open(start, deadline time.Time) models.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := start
	r.auction.Status = models.AuctionStatusActive
	r.auction.StartTime = &s
	r.deadline = deadline
	return r.auction
}

// Deadline returns the countdown deadline, zero before open.
func (r *Register) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

// Snapshot returns the current high bid.
func (r *Register) Snapshot() models.BidSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auction.CurrentBid
}

// close freezes the register and returns the final auction state.
// Bids arriving after close are rejected with ErrNotActive.
func (r *Register) close(endTime time.Time) models.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.auction.Status = models.AuctionStatusCompleted
	t := endTime.UTC()
	r.auction.EndTime = &t
	return r.auction
}
