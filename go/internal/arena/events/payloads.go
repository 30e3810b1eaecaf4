package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmehra21/codebid/go/internal/models"
)

// Payload types shared between the engine packages and the gateway.

// QuestionSummary is the client-facing view of a question during
// bidding. Test cases and starter code are withheld until coding.
type QuestionSummary struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  models.Difficulty `json:"difficulty"`
}

// QuestionPushedPayload announces the start of a bidding phase.
type QuestionPushedPayload struct {
	AuctionID      uuid.UUID       `json:"auction_id"`
	Question       QuestionSummary `json:"question"`
	TimeRemaining  int             `json:"time_remaining"`
	QuestionNumber int             `json:"question_number,omitempty"`
	TotalQuestions int             `json:"total_questions,omitempty"`
}

// NewBidPayload announces an accepted bid.
type NewBidPayload struct {
	AuctionID      uuid.UUID `json:"auction_id"`
	Amount         int       `json:"amount"`
	BidderUsername string    `json:"bidder_username"`
	BidderTeam     string    `json:"bidder_team"`
	TimeRemaining  int       `json:"time_remaining"`
}

// TimerUpdatePayload carries the per-second countdown for either phase.
type TimerUpdatePayload struct {
	TimeRemaining int `json:"time_remaining"`
}

// WinnerInfo identifies the settled winner of an auction.
type WinnerInfo struct {
	Username string `json:"username"`
	TeamName string `json:"team_name"`
	Amount   int    `json:"amount"`
}

// AuctionEndedPayload announces settlement. Winner is nil when the
// auction closed with no bids.
type AuctionEndedPayload struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	Winner    *WinnerInfo     `json:"winner"`
	Question  QuestionSummary `json:"question"`
}

// CodingAssignment is one allotment delivered to its owner at the
// start of a coding phase, with the full question including test
// cases and starter code.
type CodingAssignment struct {
	AllotmentID uuid.UUID       `json:"allotment_id"`
	Question    models.Question `json:"question"`
}

// CodingStartedPayload assigns questions to one participant.
type CodingStartedPayload struct {
	UserID        uuid.UUID          `json:"user_id"`
	Assignments   []CodingAssignment `json:"assignments"`
	TimeRemaining int                `json:"time_remaining"`
}

// PerformerResult is one evaluated allotment in a coding-ended digest.
type PerformerResult struct {
	Username        string  `json:"username"`
	TeamName        string  `json:"team_name"`
	Score           float64 `json:"score"`
	TestCasesPassed int     `json:"test_cases_passed"`
	TotalTestCases  int     `json:"total_test_cases"`
}

// CodingEndedPayload closes a coding phase with its top performers.
type CodingEndedPayload struct {
	TopPerformers []PerformerResult `json:"top_performers"`
}

// TeamsEliminatedPayload reports the outcome of an elimination check.
type TeamsEliminatedPayload struct {
	EliminatedTeams []string `json:"eliminated_teams"`
	QualifiedTeams  []string `json:"qualified_teams"`
}

// ScheduledReadyPayload announces a session entering its waiting room.
type ScheduledReadyPayload struct {
	SessionID   uuid.UUID `json:"session_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// ScheduledStartedPayload announces quorum being met.
type ScheduledStartedPayload struct {
	SessionID      uuid.UUID `json:"session_id"`
	Title          string    `json:"title"`
	TotalQuestions int       `json:"total_questions"`
}

// ScheduledCompletedPayload carries the top of the final standings.
type ScheduledCompletedPayload struct {
	SessionID uuid.UUID              `json:"session_id"`
	Results   []models.SessionResult `json:"results"`
}

// ScheduledCancelledPayload announces an administrative cancel.
type ScheduledCancelledPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title"`
}

// RosterChangedPayload reports a join or leave on a waiting session.
type RosterChangedPayload struct {
	SessionID    uuid.UUID `json:"session_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	CurrentCount int       `json:"current_count"`
	MinUsers     int       `json:"min_users"`
}

// ErrorPayload is a validation rejection for the initiating client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// AuctionSnapshot is the point-in-time state served to late joiners
// of the global room.
type AuctionSnapshot struct {
	IsActive      bool               `json:"is_active"`
	IsCodingPhase bool               `json:"is_coding_phase"`
	TimeRemaining int                `json:"time_remaining"`
	Question      *QuestionSummary   `json:"question,omitempty"`
	CurrentBid    models.BidSnapshot `json:"current_bid"`
}

// SessionSnapshot is the point-in-time state served to late joiners
// of a session room.
type SessionSnapshot struct {
	SessionID            uuid.UUID            `json:"session_id"`
	Status               models.SessionStatus `json:"status"`
	IsActive             bool                 `json:"is_active"`
	IsCodingPhase        bool                 `json:"is_coding_phase"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	TotalQuestions       int                  `json:"total_questions"`
	TimeRemaining        int                  `json:"time_remaining"`
	Question             *QuestionSummary     `json:"question,omitempty"`
	CurrentBid           models.BidSnapshot   `json:"current_bid"`
	JoinedCount          int                  `json:"joined_count"`
	MinUsers             int                  `json:"min_users"`
}

// New wraps a payload in a broadcast envelope.
func New(room string, typ Type, payload any) Event {
	return Event{
		ID:        uuid.New(),
		Room:      room,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
