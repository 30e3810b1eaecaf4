package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an append-only record of an accepted bid. Bids are never
// mutated or deleted; they form the audit trail independent of the
// auction's high-bid snapshot.
type Bid struct {
	ID             uuid.UUID `json:"id"`
	AuctionID      uuid.UUID `json:"auction_id"`
	BidderID       uuid.UUID `json:"bidder_id"`
	BidderUsername string    `json:"bidder_username"`
	BidderTeam     string    `json:"bidder_team"`
	Amount         int       `json:"amount"`
	CreatedAt      time.Time `json:"created_at"`
}
