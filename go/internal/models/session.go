package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle state of a scheduled session.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusWaiting    SessionStatus = "waiting"
	SessionStatusInProgress SessionStatus = "in-progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Participant records one user's membership in a session roster.
type Participant struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	TeamName string    `json:"team_name"`
	JoinedAt time.Time `json:"joined_at"`
}

// SessionResult is one participant's final standing in a session.
type SessionResult struct {
	UserID             uuid.UUID `json:"user_id"`
	Username           string    `json:"username"`
	TeamName           string    `json:"team_name"`
	TotalScore         float64   `json:"total_score"`
	QuestionsWon       int       `json:"questions_won"`
	QuestionsCompleted int       `json:"questions_completed"`
	Rank               int       `json:"rank"`
}

// ScheduledSession is an admin-defined sequence of questions run
// back-to-back with a quorum-gated start. Once the status leaves
// scheduled, it is mutated exclusively by the session automaton.
// MaxUsers of 0 means no capacity limit.
type ScheduledSession struct {
	ID                   uuid.UUID       `json:"id"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	ScheduledTime        time.Time       `json:"scheduled_time"`
	QuestionIDs          []uuid.UUID     `json:"question_ids"`
	MinUsers             int             `json:"min_users"`
	MaxUsers             int             `json:"max_users"`
	AuctionDuration      int             `json:"auction_duration"` // seconds per question auction
	CodingDuration       int             `json:"coding_duration"`  // seconds per coding window
	Status               SessionStatus   `json:"status"`
	JoinedUsers          []Participant   `json:"joined_users"`
	CurrentQuestionIndex int             `json:"current_question_index"`
	StartedAt            *time.Time      `json:"started_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	Results              []SessionResult `json:"results,omitempty"`
	CreatedBy            uuid.UUID       `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
}
