package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/models"
)

// Engine is the contest surface the gateway routes client commands to.
type Engine interface {
	PlaceAdhocBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount int) (models.Bid, error)
	PlaceSessionBid(ctx context.Context, sessionID, bidderID uuid.UUID, amount int) (models.Bid, error)
	SubmitCode(ctx context.Context, allotmentID, userID uuid.UUID, code string) error
	JoinSession(ctx context.Context, sessionID, userID uuid.UUID) (*models.ScheduledSession, error)
	LeaveSession(ctx context.Context, sessionID, userID uuid.UUID) error
	GlobalSnapshot() events.AuctionSnapshot
	SessionSnapshot(ctx context.Context, sessionID uuid.UUID) (events.SessionSnapshot, error)
}

// clientMessage is the envelope for every client command.
type clientMessage struct {
	Action      string    `json:"action"`
	Room        string    `json:"room,omitempty"`
	AuctionID   uuid.UUID `json:"auction_id,omitempty"`
	SessionID   uuid.UUID `json:"session_id,omitempty"`
	AllotmentID uuid.UUID `json:"allotment_id,omitempty"`
	Amount      int       `json:"amount,omitempty"`
	Code        string    `json:"code,omitempty"`
}

const (
	actionJoinRoom     = "join-room"
	actionLeaveRoom    = "leave-room"
	actionPlaceBid     = "place-bid"
	actionSubmitCode   = "submit-code"
	actionJoinSession  = "join-scheduled-auction"
	actionLeaveSession = "leave-scheduled-auction"
)

// handleClientMessage routes one client command. Validation failures
// go back to this connection only; nothing is broadcast.
func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.send(events.TypeError, events.ErrorPayload{Message: "invalid message"})
		return
	}

	ctx := context.Background()

	switch msg.Action {
	case actionJoinRoom:
		if msg.Room == "" {
			c.send(events.TypeError, events.ErrorPayload{Message: "room is required"})
			return
		}
		c.Manager.joinRoom(c, msg.Room)
		c.sendSnapshot(ctx, msg.Room)

	case actionLeaveRoom:
		if msg.Room == "" || msg.Room == events.GlobalRoom {
			return
		}
		c.Manager.leaveRoom(c, msg.Room)

	case actionPlaceBid:
		var err error
		if msg.SessionID != uuid.Nil {
			_, err = c.Manager.engine.PlaceSessionBid(ctx, msg.SessionID, c.UserID, msg.Amount)
		} else {
			_, err = c.Manager.engine.PlaceAdhocBid(ctx, msg.AuctionID, c.UserID, msg.Amount)
		}
		if err != nil {
			c.send(events.TypeError, events.ErrorPayload{Message: err.Error()})
		}

	case actionSubmitCode:
		if err := c.Manager.engine.SubmitCode(ctx, msg.AllotmentID, c.UserID, msg.Code); err != nil {
			c.send(events.TypeError, events.ErrorPayload{Message: err.Error()})
		}

	case actionJoinSession:
		if _, err := c.Manager.engine.JoinSession(ctx, msg.SessionID, c.UserID); err != nil {
			c.send(events.TypeError, events.ErrorPayload{Message: err.Error()})
			return
		}
		room := events.SessionRoom(msg.SessionID)
		c.Manager.joinRoom(c, room)
		c.sendSnapshot(ctx, room)

	case actionLeaveSession:
		if err := c.Manager.engine.LeaveSession(ctx, msg.SessionID, c.UserID); err != nil {
			c.send(events.TypeError, events.ErrorPayload{Message: err.Error()})
			return
		}
		c.Manager.leaveRoom(c, events.SessionRoom(msg.SessionID))

	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("action", msg.Action).
			Msg("unknown client action")
	}
}

// sendSnapshot delivers the room's current state to this connection,
// so a late joiner can render mid-phase.
func (c *Connection) sendSnapshot(ctx context.Context, room string) {
	if room == events.GlobalRoom {
		c.send(events.TypeAuctionState, c.Manager.engine.GlobalSnapshot())
		return
	}

	idStr, ok := strings.CutPrefix(room, "scheduled-")
	if !ok {
		return
	}
	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		return
	}
	snap, err := c.Manager.engine.SessionSnapshot(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("room", room).Msg("failed to build session snapshot")
		return
	}
	c.send(events.TypeScheduledState, snap)
}
