package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/arena/grading"
	"github.com/dmehra21/codebid/go/internal/arena/standings"
	"github.com/dmehra21/codebid/go/internal/models"
	"github.com/dmehra21/codebid/go/internal/store"
)

func testController(t *testing.T, m *store.Memory, rec *broadcast.Recorder) *Controller {
	t.Helper()
	factory := testFactory(m, rec)
	gw := grading.NewGateway(m, grading.UnscoredGrader{}, clockwork.NewRealClock(), rec, 2*time.Millisecond)
	c := NewController(m, factory, gw, standings.NewEliminator(m), rec, ControllerConfig{
		AuctionDuration: 40 * time.Millisecond,
		CodingDuration:  30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c.Start(ctx)
	return c
}

func TestControllerRejectsOverlappingAuctions(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	question := seedQuestion(t, m, 2)
	c := testController(t, m, broadcast.NewRecorder())

	_, err := c.PushQuestion(ctx, question.ID)
	require.NoError(t, err)

	_, err = c.PushQuestion(ctx, question.ID)
	require.ErrorIs(t, err, ErrAuctionInProgress)
}

func TestControllerRejectsUnknownQuestion(t *testing.T) {
	m := store.NewMemory()
	c := testController(t, m, broadcast.NewRecorder())

	_, err := c.PushQuestion(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestControllerBidRouting(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	alice := seedUser(t, m, "alice", "alpha", 100)
	question := seedQuestion(t, m, 2)
	c := testController(t, m, broadcast.NewRecorder())

	_, err := c.PlaceBid(ctx, uuid.New(), alice.ID, 10)
	require.ErrorIs(t, err, ErrNoActiveAuction, "no live auction")

	auctionID, err := c.PushQuestion(ctx, question.ID)
	require.NoError(t, err)

	_, err = c.PlaceBid(ctx, uuid.New(), alice.ID, 10)
	require.ErrorIs(t, err, ErrNoActiveAuction, "wrong auction id")

	require.Eventually(t, func() bool {
		_, err := c.PlaceBid(ctx, auctionID, alice.ID, 10)
		return err == nil
	}, time.Second, 2*time.Millisecond)
}

func TestControllerStartCodingRequiresAllotments(t *testing.T) {
	m := store.NewMemory()
	seedUser(t, m, "alice", "alpha", 100)
	c := testController(t, m, broadcast.NewRecorder())

	err := c.StartCoding(context.Background())
	require.ErrorIs(t, err, ErrNothingToCode)
}

func TestControllerFullCycle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	alice := seedUser(t, m, "alice", "alpha", 100)
	question := seedQuestion(t, m, 2)
	c := testController(t, m, rec)

	auctionID, err := c.PushQuestion(ctx, question.ID)
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.True(t, snap.IsActive)
	require.NotNil(t, snap.Question)
	assert.Equal(t, question.ID, snap.Question.ID)

	require.Eventually(t, func() bool {
		_, err := c.PlaceBid(ctx, auctionID, alice.ID, 25)
		return err == nil
	}, time.Second, 2*time.Millisecond)

	// Wait for settlement, then start the coding phase.
	require.Eventually(t, func() bool {
		return len(rec.EventsOfType(events.TypeAuctionEnded)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.StartCoding(ctx))
	assert.True(t, c.Snapshot().IsCodingPhase)

	err = c.StartCoding(ctx)
	require.ErrorIs(t, err, ErrCodingInProgress)

	require.Eventually(t, func() bool {
		return len(rec.EventsOfType(events.TypeCodingEnded)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	evaluated, err := m.ListAllotmentsByStatus(ctx, models.AllotmentStatusEvaluated)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, alice.ID, evaluated[0].UserID)

	assert.False(t, c.Snapshot().IsActive)
}
