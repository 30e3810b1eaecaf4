package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra21/codebid/go/internal/models"
)

func seedUser(t *testing.T, m *Memory, username, team string, wallet int) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.New(),
		Username:  username,
		TeamName:  team,
		Role:      models.UserRoleUser,
		Wallet:    wallet,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.CreateUser(context.Background(), user))
	return user
}

func TestMemoryDebitWallet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	user := seedUser(t, m, "alice", "alpha", 100)

	require.NoError(t, m.DebitWallet(ctx, user.ID, 60))

	got, err := m.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Wallet)

	err = m.DebitWallet(ctx, user.ID, 50)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	got, err = m.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Wallet, "failed debit must not mutate the balance")
}

func TestMemoryDebitWalletUnknownUser(t *testing.T) {
	m := NewMemory()
	err := m.DebitWallet(context.Background(), uuid.New(), 10)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListTeams(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedUser(t, m, "alice", "alpha", 100)
	seedUser(t, m, "bob", "beta", 100)
	seedUser(t, m, "carol", "alpha", 100)

	admin := models.User{ID: uuid.New(), Username: "root", TeamName: "staff", Role: models.UserRoleAdmin}
	require.NoError(t, m.CreateUser(ctx, admin))

	teams, err := m.ListTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, teams)
}

func TestMemoryDeactivateTeam(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := seedUser(t, m, "alice", "alpha", 100)
	bob := seedUser(t, m, "bob", "beta", 100)

	require.NoError(t, m.DeactivateTeam(ctx, "alpha"))

	got, err := m.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = m.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestMemoryAllotmentListings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := seedUser(t, m, "alice", "alpha", 100)
	bob := seedUser(t, m, "bob", "beta", 100)

	base := time.Now().UTC()
	mk := func(user models.User, status models.AllotmentStatus, offset time.Duration) models.Allotment {
		a := models.Allotment{
			ID:         uuid.New(),
			UserID:     user.ID,
			Username:   user.Username,
			TeamName:   user.TeamName,
			QuestionID: uuid.New(),
			AuctionID:  uuid.New(),
			Status:     status,
			AllottedAt: base.Add(offset),
		}
		require.NoError(t, m.CreateAllotment(ctx, a))
		return a
	}

	first := mk(alice, models.AllotmentStatusAllotted, 0)
	second := mk(bob, models.AllotmentStatusAllotted, time.Second)
	mk(alice, models.AllotmentStatusEvaluated, 2*time.Second)

	allotted, err := m.ListAllotmentsByStatus(ctx, models.AllotmentStatusAllotted)
	require.NoError(t, err)
	require.Len(t, allotted, 2)
	assert.Equal(t, first.ID, allotted[0].ID, "listings are ordered by allotted-at")
	assert.Equal(t, second.ID, allotted[1].ID)

	evaluated, err := m.ListEvaluatedAllotmentsByUsers(ctx, []uuid.UUID{alice.ID})
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, alice.ID, evaluated[0].UserID)

	count, err := m.CountAllotmentsByTeam(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryListDueSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	mk := func(status models.SessionStatus, at time.Time) models.ScheduledSession {
		s := models.ScheduledSession{
			ID:            uuid.New(),
			Title:         "weekly",
			ScheduledTime: at,
			Status:        status,
		}
		require.NoError(t, m.CreateSession(ctx, s))
		return s
	}

	early := mk(models.SessionStatusScheduled, now.Add(-2*time.Minute))
	late := mk(models.SessionStatusScheduled, now.Add(-time.Minute))
	mk(models.SessionStatusScheduled, now.Add(time.Hour))
	mk(models.SessionStatusWaiting, now.Add(-time.Hour))

	due, err := m.ListDueSessions(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)
}

func TestMemoryCountCompletedAuctions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateAuction(ctx, models.Auction{ID: uuid.New(), Status: models.AuctionStatusCompleted}))
	require.NoError(t, m.CreateAuction(ctx, models.Auction{ID: uuid.New(), Status: models.AuctionStatusCompleted}))
	require.NoError(t, m.CreateAuction(ctx, models.Auction{ID: uuid.New(), Status: models.AuctionStatusActive}))

	count, err := m.CountCompletedAuctions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
