package standings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra21/codebid/go/internal/models"
	"github.com/dmehra21/codebid/go/internal/store"
)

func seedTeamMember(t *testing.T, m *store.Memory, username, team string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.New(),
		Username:  username,
		TeamName:  team,
		Role:      models.UserRoleUser,
		Wallet:    100,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.CreateUser(context.Background(), user))
	return user
}

func seedCompletedAuctions(t *testing.T, m *store.Memory, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, m.CreateAuction(context.Background(), models.Auction{
			ID:     uuid.New(),
			Status: models.AuctionStatusCompleted,
		}))
	}
}

func seedTeamWins(t *testing.T, m *store.Memory, user models.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, m.CreateAllotment(context.Background(), models.Allotment{
			ID:       uuid.New(),
			UserID:   user.ID,
			Username: user.Username,
			TeamName: user.TeamName,
			Status:   models.AllotmentStatusAllotted,
		}))
	}
}

func TestEliminatorDeactivatesTeamsBelowFloor(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	alice := seedTeamMember(t, m, "alice", "alpha")
	bob := seedTeamMember(t, m, "bob", "beta")
	carol := seedTeamMember(t, m, "carol", "gamma")

	// Nine completed auctions across three teams: floor is 3.
	seedCompletedAuctions(t, m, 9)
	seedTeamWins(t, m, alice, 4)
	seedTeamWins(t, m, bob, 3)
	seedTeamWins(t, m, carol, 2)

	outcome, err := NewEliminator(m).Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, outcome.Eliminated)
	assert.Equal(t, []string{"alpha", "beta"}, outcome.Qualified)

	deactivated, err := m.GetUser(ctx, carol.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	survivor, err := m.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, survivor.IsActive)
}

func TestEliminatorNoEliminationsBelowFullRound(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedTeamMember(t, m, "alice", "alpha")
	seedTeamMember(t, m, "bob", "beta")

	// One completed auction over two teams: floor is 0, everyone stays.
	seedCompletedAuctions(t, m, 1)

	outcome, err := NewEliminator(m).Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, outcome.Eliminated)
	assert.Equal(t, []string{"alpha", "beta"}, outcome.Qualified)
}

func TestEliminatorNoTeams(t *testing.T) {
	m := store.NewMemory()
	seedCompletedAuctions(t, m, 5)

	outcome, err := NewEliminator(m).Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outcome.Eliminated)
	assert.Empty(t, outcome.Qualified)
}
