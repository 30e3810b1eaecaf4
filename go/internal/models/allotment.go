package models

import (
	"time"

	"github.com/google/uuid"
)

// AllotmentStatus tracks an allotment through the coding lifecycle.
type AllotmentStatus string

const (
	AllotmentStatusAllotted  AllotmentStatus = "allotted"
	AllotmentStatusCoding    AllotmentStatus = "coding"
	AllotmentStatusSubmitted AllotmentStatus = "submitted"
	AllotmentStatusEvaluated AllotmentStatus = "evaluated"
)

// Allotment is a participant's won right and obligation to solve a
// specific question. Exactly one is created per settled-with-winner
// auction. Terminal once evaluated.
type Allotment struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Username        string          `json:"username"`
	TeamName        string          `json:"team_name"`
	QuestionID      uuid.UUID       `json:"question_id"`
	AuctionID       uuid.UUID       `json:"auction_id"`
	BidAmount       int             `json:"bid_amount"`
	SubmittedCode   string          `json:"submitted_code"`
	TestCasesPassed int             `json:"test_cases_passed"`
	TotalTestCases  int             `json:"total_test_cases"`
	Score           float64         `json:"score"`
	Status          AllotmentStatus `json:"status"`
	AllottedAt      time.Time       `json:"allotted_at"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	EvaluatedAt     *time.Time      `json:"evaluated_at,omitempty"`
}
