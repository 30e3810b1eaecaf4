package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the phase of a single bidding round.
type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusCompleted AuctionStatus = "completed"
)

// BidSnapshot is the mutable high-bid record on an auction. A zero
// Amount with a nil BidderID means no bid has been accepted yet.
type BidSnapshot struct {
	Amount         int        `json:"amount"`
	BidderID       *uuid.UUID `json:"bidder_id,omitempty"`
	BidderUsername string     `json:"bidder_username,omitempty"`
	BidderTeam     string     `json:"bidder_team,omitempty"`
}

// Auction is one timed bidding round for exactly one question. It is
// mutated only by the auction machine and is immutable once completed.
type Auction struct {
	ID            uuid.UUID     `json:"id"`
	QuestionID    uuid.UUID     `json:"question_id"`
	Status        AuctionStatus `json:"status"`
	CurrentBid    BidSnapshot   `json:"current_bid"`
	WinnerID      *uuid.UUID    `json:"winner_id,omitempty"`
	WinningAmount int           `json:"winning_amount"`
	StartTime     *time.Time    `json:"start_time,omitempty"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	TimerDuration int           `json:"timer_duration"` // seconds
	CreatedAt     time.Time     `json:"created_at"`
}
