package standings

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra21/codebid/go/internal/models"
)

func evaluated(user uuid.UUID, username string, score float64) models.Allotment {
	return models.Allotment{
		ID:       uuid.New(),
		UserID:   user,
		Username: username,
		Score:    score,
		Status:   models.AllotmentStatusEvaluated,
	}
}

func TestAggregateRanksByTotalScore(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	results := Aggregate([]models.Allotment{
		evaluated(alice, "alice", 50),
		evaluated(bob, "bob", 100),
		evaluated(alice, "alice", 75),
		evaluated(carol, "carol", 0),
	})

	require.Len(t, results, 3)
	assert.Equal(t, "alice", results[0].Username)
	assert.Equal(t, 125.0, results[0].TotalScore)
	assert.Equal(t, 2, results[0].QuestionsWon)
	assert.Equal(t, 2, results[0].QuestionsCompleted)
	assert.Equal(t, 1, results[0].Rank)

	assert.Equal(t, "bob", results[1].Username)
	assert.Equal(t, 2, results[1].Rank)

	assert.Equal(t, "carol", results[2].Username)
	assert.Equal(t, 1, results[2].QuestionsWon)
	assert.Equal(t, 0, results[2].QuestionsCompleted, "zero-score questions do not count as completed")
	assert.Equal(t, 3, results[2].Rank)
}

func TestAggregateTieBreaksOnQuestionsCompleted(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	// Same total, but bob spread it over two completed questions.
	results := Aggregate([]models.Allotment{
		evaluated(alice, "alice", 100),
		evaluated(bob, "bob", 50),
		evaluated(bob, "bob", 50),
	})

	require.Len(t, results, 2)
	assert.Equal(t, "bob", results[0].Username)
	assert.Equal(t, "alice", results[1].Username)
}

func TestAggregateTiesKeepFirstSeenOrder(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	results := Aggregate([]models.Allotment{
		evaluated(alice, "alice", 80),
		evaluated(bob, "bob", 80),
	})

	require.Len(t, results, 2)
	assert.Equal(t, "alice", results[0].Username)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "bob", results[1].Username)
	assert.Equal(t, 2, results[1].Rank)
}

func TestAggregateIgnoresUnevaluated(t *testing.T) {
	pending := models.Allotment{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: models.AllotmentStatusCoding,
	}
	assert.Empty(t, Aggregate([]models.Allotment{pending}))
}

func TestTopTruncates(t *testing.T) {
	results := []models.SessionResult{{Rank: 1}, {Rank: 2}, {Rank: 3}}
	assert.Len(t, Top(results, 2), 2)
	assert.Len(t, Top(results, 10), 3)
}
