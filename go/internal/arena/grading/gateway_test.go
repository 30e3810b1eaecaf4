package grading

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/models"
	"github.com/dmehra21/codebid/go/internal/store"
)

func seedQuestion(t *testing.T, m *store.Memory, testCases int) models.Question {
	t.Helper()
	q := models.Question{
		ID:         uuid.New(),
		Title:      "reverse list",
		Difficulty: models.DifficultyMedium,
		CreatedAt:  time.Now().UTC(),
	}
	for i := 0; i < testCases; i++ {
		q.TestCases = append(q.TestCases, models.TestCase{Input: "in", ExpectedOutput: "out"})
	}
	require.NoError(t, m.CreateQuestion(context.Background(), q))
	return q
}

func seedAllotment(t *testing.T, m *store.Memory, q models.Question, username string, status models.AllotmentStatus) models.Allotment {
	t.Helper()
	a := models.Allotment{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Username:       username,
		TeamName:       username + "-team",
		QuestionID:     q.ID,
		AuctionID:      uuid.New(),
		BidAmount:      10,
		TotalTestCases: len(q.TestCases),
		Status:         status,
		AllottedAt:     time.Now().UTC(),
	}
	require.NoError(t, m.CreateAllotment(context.Background(), a))
	return a
}

func testGateway(m *store.Memory, grader Grader, rec *broadcast.Recorder) *Gateway {
	return NewGateway(m, grader, clockwork.NewRealClock(), rec, 2*time.Millisecond)
}

func TestSubmitRejectsWrongOwner(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	q := seedQuestion(t, m, 2)
	allotment := seedAllotment(t, m, q, "alice", models.AllotmentStatusCoding)
	g := testGateway(m, UnscoredGrader{}, broadcast.NewRecorder())

	err := g.Submit(ctx, allotment.ID, uuid.New(), "code")
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestSubmitRejectsOutsideCodingWindow(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	q := seedQuestion(t, m, 2)
	allotment := seedAllotment(t, m, q, "alice", models.AllotmentStatusAllotted)
	g := testGateway(m, UnscoredGrader{}, broadcast.NewRecorder())

	err := g.Submit(ctx, allotment.ID, allotment.UserID, "code")
	require.ErrorIs(t, err, ErrNotCoding)
}

func TestSubmitRecordsCode(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	q := seedQuestion(t, m, 2)
	allotment := seedAllotment(t, m, q, "alice", models.AllotmentStatusCoding)
	g := testGateway(m, UnscoredGrader{}, broadcast.NewRecorder())

	require.NoError(t, g.Submit(ctx, allotment.ID, allotment.UserID, "def solve(): pass"))

	stored, err := m.GetAllotment(ctx, allotment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AllotmentStatusSubmitted, stored.Status)
	assert.Equal(t, "def solve(): pass", stored.SubmittedCode)
	require.NotNil(t, stored.SubmittedAt)
}

func TestRunGradesSubmissions(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rec := broadcast.NewRecorder()
	q := seedQuestion(t, m, 4)
	allotment := seedAllotment(t, m, q, "alice", models.AllotmentStatusAllotted)

	grader := GraderFunc(func(ctx context.Context, code string, testCases []models.TestCase) (int, int, error) {
		return 2, len(testCases), nil
	})
	g := testGateway(m, grader, rec)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := g.Run(ctx, events.GlobalRoom, events.Adhoc, []models.Allotment{allotment}, 20*time.Millisecond)
		assert.NoError(t, err)
	}()

	// Submit while the window is open.
	require.Eventually(t, func() bool {
		return g.Submit(ctx, allotment.ID, allotment.UserID, "solution") == nil
	}, time.Second, 2*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coding phase did not finish")
	}

	stored, err := m.GetAllotment(ctx, allotment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AllotmentStatusEvaluated, stored.Status)
	assert.Equal(t, 2, stored.TestCasesPassed)
	assert.Equal(t, 4, stored.TotalTestCases)
	assert.Equal(t, 50.0, stored.Score)
	require.NotNil(t, stored.EvaluatedAt)

	started := rec.EventsOfType(events.TypeCodingStarted)
	require.Len(t, started, 1)
	payload := started[0].Payload.(events.CodingStartedPayload)
	assert.Equal(t, allotment.UserID, payload.UserID)
	require.Len(t, payload.Assignments, 1)
	assert.Len(t, payload.Assignments[0].Question.TestCases, 4, "assignments carry the full question")

	ended := rec.EventsOfType(events.TypeCodingEnded)
	require.Len(t, ended, 1)
	top := ended[0].Payload.(events.CodingEndedPayload).TopPerformers
	require.Len(t, top, 1)
	assert.Equal(t, "alice", top[0].Username)
	assert.Equal(t, 50.0, top[0].Score)
}

func TestRunAutoSubmitsUntouchedAllotments(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	q := seedQuestion(t, m, 3)
	allotment := seedAllotment(t, m, q, "alice", models.AllotmentStatusAllotted)
	g := testGateway(m, UnscoredGrader{}, broadcast.NewRecorder())

	evaluated, err := g.Run(ctx, events.GlobalRoom, events.Adhoc, []models.Allotment{allotment}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)

	assert.Equal(t, models.AllotmentStatusEvaluated, evaluated[0].Status)
	assert.Empty(t, evaluated[0].SubmittedCode)
	assert.Equal(t, 0.0, evaluated[0].Score)
	require.NotNil(t, evaluated[0].SubmittedAt, "untouched allotments are auto-submitted at expiry")
}

func TestRunIsolatesGraderFailures(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	q := seedQuestion(t, m, 2)
	broken := seedAllotment(t, m, q, "alice", models.AllotmentStatusAllotted)
	healthy := seedAllotment(t, m, q, "bob", models.AllotmentStatusAllotted)

	grader := GraderFunc(func(ctx context.Context, code string, testCases []models.TestCase) (int, int, error) {
		if strings.Contains(code, "boom") {
			return 0, 0, errors.New("sandbox crashed")
		}
		return len(testCases), len(testCases), nil
	})
	g := testGateway(m, grader, broadcast.NewRecorder())

	done := make(chan []models.Allotment, 1)
	go func() {
		evaluated, err := g.Run(ctx, events.GlobalRoom, events.Adhoc, []models.Allotment{broken, healthy}, 20*time.Millisecond)
		assert.NoError(t, err)
		done <- evaluated
	}()

	require.Eventually(t, func() bool {
		return g.Submit(ctx, broken.ID, broken.UserID, "boom") == nil
	}, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool {
		return g.Submit(ctx, healthy.ID, healthy.UserID, "ok") == nil
	}, time.Second, 2*time.Millisecond)

	var evaluated []models.Allotment
	select {
	case evaluated = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coding phase did not finish")
	}
	require.Len(t, evaluated, 2)

	byUser := map[uuid.UUID]models.Allotment{}
	for _, a := range evaluated {
		byUser[a.UserID] = a
	}
	assert.Equal(t, 0.0, byUser[broken.UserID].Score, "grader failure scores zero")
	assert.Equal(t, 100.0, byUser[healthy.UserID].Score, "other allotments grade normally")
}

func TestRunEmptyBatch(t *testing.T) {
	g := testGateway(store.NewMemory(), UnscoredGrader{}, broadcast.NewRecorder())
	evaluated, err := g.Run(context.Background(), events.GlobalRoom, events.Adhoc, nil, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, evaluated)
}
