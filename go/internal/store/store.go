// Package store provides durable persistence for the contest engine.
// Two implementations exist: Postgres for production and Memory for
// tests and single-node dev mode.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra21/codebid/go/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientFunds is returned when a conditional wallet
	// debit would take the balance negative.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// Store is the full persistence capability the engine consumes.
// Engine packages depend on narrow subsets of it; this union exists
// for wiring.
type Store interface {
	// Users and wallets.
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	DebitWallet(ctx context.Context, userID uuid.UUID, amount int) error
	ListTeams(ctx context.Context) ([]string, error)
	DeactivateTeam(ctx context.Context, teamName string) error

	// Questions.
	CreateQuestion(ctx context.Context, q models.Question) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)

	// Auctions.
	CreateAuction(ctx context.Context, a models.Auction) error
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	UpdateAuction(ctx context.Context, a models.Auction) error
	CountCompletedAuctions(ctx context.Context) (int, error)

	// Bids, append-only.
	CreateBid(ctx context.Context, b models.Bid) error
	ListBidsByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error)

	// Allotments.
	CreateAllotment(ctx context.Context, a models.Allotment) error
	GetAllotment(ctx context.Context, id uuid.UUID) (*models.Allotment, error)
	UpdateAllotment(ctx context.Context, a models.Allotment) error
	ListAllotmentsByStatus(ctx context.Context, status models.AllotmentStatus) ([]models.Allotment, error)
	ListAllotmentsByUsers(ctx context.Context, userIDs []uuid.UUID, status models.AllotmentStatus) ([]models.Allotment, error)
	ListEvaluatedAllotmentsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.Allotment, error)
	CountAllotmentsByTeam(ctx context.Context, teamName string) (int, error)

	// Scheduled sessions.
	CreateSession(ctx context.Context, s models.ScheduledSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.ScheduledSession, error)
	UpdateSession(ctx context.Context, s models.ScheduledSession) error
	ListDueSessions(ctx context.Context, now time.Time) ([]models.ScheduledSession, error)
}
