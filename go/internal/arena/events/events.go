package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a broadcast event. The names are part of the wire
// contract with clients and must not change.
type Type string

const (
	// Ad-hoc auction events, broadcast to the global room.
	TypeQuestionPushed    Type = "question-pushed"
	TypeNewBid            Type = "new-bid"
	TypeTimerUpdate       Type = "timer-update"
	TypeAuctionEnded      Type = "auction-ended"
	TypeCodingStarted     Type = "coding-started"
	TypeCodingTimerUpdate Type = "coding-timer-update"
	TypeCodingEnded       Type = "coding-ended"
	TypeTeamsEliminated   Type = "teams-eliminated"

	// Scheduled-session events, scoped to the session room.
	TypeScheduledReady             Type = "scheduled-auction-ready"
	TypeScheduledStarted           Type = "scheduled-auction-started"
	TypeScheduledQuestionPushed    Type = "scheduled-question-pushed"
	TypeScheduledTimerUpdate       Type = "scheduled-timer-update"
	TypeScheduledAuctionEnded      Type = "scheduled-auction-ended"
	TypeScheduledCodingStarted     Type = "scheduled-coding-started"
	TypeScheduledCodingTimerUpdate Type = "scheduled-coding-timer-update"
	TypeScheduledCodingEnded       Type = "scheduled-coding-ended"
	TypeScheduledCompleted         Type = "scheduled-auction-completed"
	TypeScheduledCancelled         Type = "scheduled-auction-cancelled"

	// Roster change notifications for waiting sessions.
	TypeUserJoinedScheduled Type = "user-joined-scheduled"
	TypeUserLeftScheduled   Type = "user-left-scheduled"

	// State snapshots sent to a client on room join.
	TypeAuctionState   Type = "auction-state"
	TypeScheduledState Type = "scheduled-auction-state"

	// Validation rejections, sent back to the initiating client only.
	TypeError Type = "error"
)

// GlobalRoom is the room all ad-hoc auction events are broadcast to.
const GlobalRoom = "global"

// SessionRoom returns the room name for a scheduled session.
func SessionRoom(sessionID uuid.UUID) string {
	return "scheduled-" + sessionID.String()
}

// Event is the envelope every broadcast carries.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Room      string    `json:"room"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Names bundles the event types the auction machine and grading
// gateway emit, so the same code serves both the ad-hoc flow and
// scheduled sessions.
type Names struct {
	QuestionPushed    Type
	NewBid            Type
	TimerUpdate       Type
	AuctionEnded      Type
	CodingStarted     Type
	CodingTimerUpdate Type
	CodingEnded       Type
}

// Adhoc is the event name set for standalone auctions.
var Adhoc = Names{
	QuestionPushed:    TypeQuestionPushed,
	NewBid:            TypeNewBid,
	TimerUpdate:       TypeTimerUpdate,
	AuctionEnded:      TypeAuctionEnded,
	CodingStarted:     TypeCodingStarted,
	CodingTimerUpdate: TypeCodingTimerUpdate,
	CodingEnded:       TypeCodingEnded,
}

// Scheduled is the event name set for session-scoped auctions.
var Scheduled = Names{
	QuestionPushed:    TypeScheduledQuestionPushed,
	NewBid:            TypeNewBid,
	TimerUpdate:       TypeScheduledTimerUpdate,
	AuctionEnded:      TypeScheduledAuctionEnded,
	CodingStarted:     TypeScheduledCodingStarted,
	CodingTimerUpdate: TypeScheduledCodingTimerUpdate,
	CodingEnded:       TypeScheduledCodingEnded,
}
