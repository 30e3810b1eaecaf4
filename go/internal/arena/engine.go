// Package arena composes the contest engine: standalone auctions on
// the global room, scheduled sessions, and code submission.
package arena

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmehra21/codebid/go/internal/arena/auction"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/arena/grading"
	"github.com/dmehra21/codebid/go/internal/arena/session"
	"github.com/dmehra21/codebid/go/internal/models"
)

// Engine is the single command surface the gateway and HTTP handlers
// route through.
type Engine struct {
	Controller *auction.Controller
	Sessions   *session.Automaton
	Grading    *grading.Gateway
}

func NewEngine(controller *auction.Controller, sessions *session.Automaton, grading *grading.Gateway) *Engine {
	return &Engine{
		Controller: controller,
		Sessions:   sessions,
		Grading:    grading,
	}
}

func (e *Engine) PlaceAdhocBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount int) (models.Bid, error) {
	return e.Controller.PlaceBid(ctx, auctionID, bidderID, amount)
}

func (e *Engine) PlaceSessionBid(ctx context.Context, sessionID, bidderID uuid.UUID, amount int) (models.Bid, error) {
	return e.Sessions.PlaceBid(ctx, sessionID, bidderID, amount)
}

func (e *Engine) SubmitCode(ctx context.Context, allotmentID, userID uuid.UUID, code string) error {
	return e.Grading.Submit(ctx, allotmentID, userID, code)
}

func (e *Engine) JoinSession(ctx context.Context, sessionID, userID uuid.UUID) (*models.ScheduledSession, error) {
	return e.Sessions.Join(ctx, sessionID, userID)
}

func (e *Engine) LeaveSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	return e.Sessions.Leave(ctx, sessionID, userID)
}

func (e *Engine) GlobalSnapshot() events.AuctionSnapshot {
	return e.Controller.Snapshot()
}

func (e *Engine) SessionSnapshot(ctx context.Context, sessionID uuid.UUID) (events.SessionSnapshot, error) {
	return e.Sessions.Snapshot(ctx, sessionID)
}
