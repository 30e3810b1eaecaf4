package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/arena/wallet"
	"github.com/dmehra21/codebid/go/internal/models"
	"github.com/dmehra21/codebid/go/internal/store"
)

func seedQuestion(t *testing.T, m *store.Memory, testCases int) models.Question {
	t.Helper()
	q := models.Question{
		ID:          uuid.New(),
		Title:       "two sum",
		Description: "find indices adding to target",
		Difficulty:  models.DifficultyEasy,
		CreatedAt:   time.Now().UTC(),
	}
	for i := 0; i < testCases; i++ {
		q.TestCases = append(q.TestCases, models.TestCase{Input: "in", ExpectedOutput: "out"})
	}
	require.NoError(t, m.CreateQuestion(context.Background(), q))
	return q
}

func testFactory(m *store.Memory, rec *broadcast.Recorder) *Factory {
	clock := clockwork.NewRealClock()
	return NewFactory(m, wallet.NewLedger(m), clock, rec, 2*time.Millisecond)
}

func runMachine(machine *Machine) (chan Settlement, chan error) {
	settlements := make(chan Settlement, 1)
	errs := make(chan error, 1)
	go func() {
		s, err := machine.Run(context.Background())
		settlements <- s
		errs <- err
	}()
	return settlements, errs
}

func TestMachineSettlesWithWinner(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	alice := seedUser(t, m, "alice", "alpha", 100)
	question := seedQuestion(t, m, 4)

	machine := testFactory(m, rec).New(question, events.GlobalRoom, events.Adhoc, 40*time.Millisecond, Meta{})
	settlements, errs := runMachine(machine)

	// Bid once the auction activates.
	require.Eventually(t, func() bool {
		_, err := machine.PlaceBid(ctx, alice.ID, 30)
		return err == nil
	}, time.Second, 2*time.Millisecond)

	var settlement Settlement
	select {
	case settlement = <-settlements:
	case <-time.After(2 * time.Second):
		t.Fatal("auction did not settle")
	}
	require.NoError(t, <-errs)

	require.NotNil(t, settlement.Allotment)
	assert.Equal(t, alice.ID, settlement.Allotment.UserID)
	assert.Equal(t, 30, settlement.Allotment.BidAmount)
	assert.Equal(t, models.AllotmentStatusAllotted, settlement.Allotment.Status)
	assert.Equal(t, 4, settlement.Allotment.TotalTestCases)

	require.NotNil(t, settlement.Auction.WinnerID)
	assert.Equal(t, alice.ID, *settlement.Auction.WinnerID)
	assert.Equal(t, 30, settlement.Auction.WinningAmount)

	winner, err := m.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, winner.Wallet, "winning amount is debited at settlement")

	stored, err := m.GetAuction(ctx, machine.ID())
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusCompleted, stored.Status)

	ended := rec.EventsOfType(events.TypeAuctionEnded)
	require.Len(t, ended, 1)
	payload := ended[0].Payload.(events.AuctionEndedPayload)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, "alice", payload.Winner.Username)
}

func TestMachineSettlesWithNoBids(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	alice := seedUser(t, m, "alice", "alpha", 100)
	question := seedQuestion(t, m, 2)

	machine := testFactory(m, rec).New(question, events.GlobalRoom, events.Adhoc, 20*time.Millisecond, Meta{})
	settlements, errs := runMachine(machine)

	var settlement Settlement
	select {
	case settlement = <-settlements:
	case <-time.After(2 * time.Second):
		t.Fatal("auction did not settle")
	}
	require.NoError(t, <-errs)

	assert.Nil(t, settlement.Allotment)
	assert.Nil(t, settlement.Auction.WinnerID)

	untouched, err := m.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, untouched.Wallet)

	ended := rec.EventsOfType(events.TypeAuctionEnded)
	require.Len(t, ended, 1)
	assert.Nil(t, ended[0].Payload.(events.AuctionEndedPayload).Winner)
}

func TestMachineAbortsOnCancel(t *testing.T) {
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	question := seedQuestion(t, m, 1)

	machine := testFactory(m, rec).New(question, events.GlobalRoom, events.Adhoc, time.Hour, Meta{})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := machine.Run(ctx)
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return len(rec.EventsOfType(events.TypeQuestionPushed)) == 1
	}, time.Second, 2*time.Millisecond)

	cancel()
	select {
	case err := <-errs:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("machine did not stop on cancel")
	}

	assert.Empty(t, rec.EventsOfType(events.TypeAuctionEnded), "aborted auctions emit no settlement event")
}

func TestMachineRejectsBidsBeforeRun(t *testing.T) {
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	alice := seedUser(t, m, "alice", "alpha", 100)
	question := seedQuestion(t, m, 1)

	machine := testFactory(m, rec).New(question, events.GlobalRoom, events.Adhoc, 20*time.Millisecond, Meta{})

	_, err := machine.PlaceBid(context.Background(), alice.ID, 10)
	require.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, 0, machine.Remaining())
	assert.Equal(t, models.BidSnapshot{}, machine.Snapshot())
}

func TestMachineBidsConcurrentWithRun(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	question := seedQuestion(t, m, 1)

	bidders := make([]models.User, 8)
	for i := range bidders {
		bidders[i] = seedUser(t, m, fmt.Sprintf("user%d", i), "alpha", 1000)
	}

	machine := testFactory(m, rec).New(question, events.GlobalRoom, events.Adhoc, 60*time.Millisecond, Meta{})
	settlements, errs := runMachine(machine)

	// Hammer bids, Remaining, and Snapshot from the moment Run is
	// spawned, through activation, until after settlement.
	var wg sync.WaitGroup
	for i, bidder := range bidders {
		wg.Add(1)
		go func(id uuid.UUID, base int) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				_, err := machine.PlaceBid(ctx, id, base+n*10)
				if err != nil {
					assert.Truef(t,
						errors.Is(err, ErrNotActive) || errors.Is(err, ErrBidTooLow) || errors.Is(err, ErrInsufficientBalance),
						"unexpected bid error: %v", err)
				}
				machine.Remaining()
				machine.Snapshot()
			}
		}(bidder.ID, i+1)
	}

	var settlement Settlement
	select {
	case settlement = <-settlements:
	case <-time.After(2 * time.Second):
		t.Fatal("auction did not settle")
	}
	require.NoError(t, <-errs)
	wg.Wait()

	bids, err := m.ListBidsByAuction(ctx, machine.ID())
	require.NoError(t, err)
	require.NotEmpty(t, bids)
	for i := 1; i < len(bids); i++ {
		assert.Greater(t, bids[i].Amount, bids[i-1].Amount, "accepted bids form a strict ascending sequence")
	}
	require.NotNil(t, settlement.Auction.WinnerID)
	assert.Equal(t, bids[len(bids)-1].Amount, settlement.Auction.WinningAmount)
}

func TestMachinePushPayloadCarriesSessionMeta(t *testing.T) {
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	question := seedQuestion(t, m, 1)

	room := events.SessionRoom(uuid.New())
	machine := testFactory(m, rec).New(question, room, events.Scheduled, 20*time.Millisecond, Meta{QuestionNumber: 2, TotalQuestions: 5})
	settlements, _ := runMachine(machine)

	select {
	case <-settlements:
	case <-time.After(2 * time.Second):
		t.Fatal("auction did not settle")
	}

	pushed := rec.EventsOfType(events.TypeScheduledQuestionPushed)
	require.Len(t, pushed, 1)
	assert.Equal(t, room, pushed[0].Room)
	payload := pushed[0].Payload.(events.QuestionPushedPayload)
	assert.Equal(t, 2, payload.QuestionNumber)
	assert.Equal(t, 5, payload.TotalQuestions)
}
