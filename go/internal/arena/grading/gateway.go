// Package grading turns auction settlements into coding assignments,
// drives the coding countdown, and evaluates submissions when it
// expires.
package grading

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/models"
)

// Submission rejections.
var (
	ErrNotCoding = errors.New("allotment is not in coding phase")
	ErrNotOwner  = errors.New("allotment belongs to another user")
)

// Store is what the grading gateway needs from persistence.
type Store interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	GetAllotment(ctx context.Context, id uuid.UUID) (*models.Allotment, error)
	UpdateAllotment(ctx context.Context, a models.Allotment) error
}

// Gateway runs coding phases. One Run call covers one batch of
// allotments; each allotment is graded independently, so a grader
// error for one never blocks the rest.
type Gateway struct {
	store  Store
	grader Grader
	clock  clockwork.Clock
	b      broadcast.Broadcaster
	tick   time.Duration
}

func NewGateway(store Store, grader Grader, clock clockwork.Clock, b broadcast.Broadcaster, tick time.Duration) *Gateway {
	if tick <= 0 {
		tick = time.Second
	}
	return &Gateway{store: store, grader: grader, clock: clock, b: b, tick: tick}
}

// Submit records a participant's code during the coding window and
// moves the allotment from coding to submitted.
func (g *Gateway) Submit(ctx context.Context, allotmentID, userID uuid.UUID, code string) error {
	allotment, err := g.store.GetAllotment(ctx, allotmentID)
	if err != nil {
		return fmt.Errorf("failed to load allotment %s: %w", allotmentID, err)
	}
	if allotment.UserID != userID {
		return ErrNotOwner
	}
	if allotment.Status != models.AllotmentStatusCoding {
		return ErrNotCoding
	}

	now := g.clock.Now().UTC()
	allotment.SubmittedCode = code
	allotment.Status = models.AllotmentStatusSubmitted
	allotment.SubmittedAt = &now
	if err := g.store.UpdateAllotment(ctx, *allotment); err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	log.Info().
		Str("allotment_id", allotmentID.String()).
		Str("user_id", userID.String()).
		Msg("code submitted")
	return nil
}

// Run converts the given allotments to coding, counts the window
// down, and grades everything at expiry. It returns the evaluated
// allotments. Cancelling ctx aborts without grading.
func (g *Gateway) Run(ctx context.Context, room string, names events.Names, allotments []models.Allotment, duration time.Duration) ([]models.Allotment, error) {
	if len(allotments) == 0 {
		return nil, nil
	}

	ids := g.startCoding(ctx, room, names, allotments, duration)

	deadline := g.clock.Now().Add(duration)
	ticker := g.clock.NewTicker(g.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.Chan():
			left := deadline.Sub(g.clock.Now())
			if left <= 0 {
				return g.evaluate(ctx, room, names, ids), nil
			}
			remaining := int((left + time.Second - 1) / time.Second)
			g.b.Broadcast(room, names.CodingTimerUpdate, events.TimerUpdatePayload{
				TimeRemaining: remaining,
			})
		}
	}
}

// startCoding flips each allotment to coding and delivers assignments
// to their owners, grouped per user with the full question.
func (g *Gateway) startCoding(ctx context.Context, room string, names events.Names, allotments []models.Allotment, duration time.Duration) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(allotments))
	perUser := make(map[uuid.UUID][]events.CodingAssignment)
	userOrder := make([]uuid.UUID, 0, len(allotments))

	for _, a := range allotments {
		a.Status = models.AllotmentStatusCoding
		if err := g.store.UpdateAllotment(ctx, a); err != nil {
			log.Error().Err(err).Str("allotment_id", a.ID.String()).Msg("failed to move allotment to coding")
		}
		ids = append(ids, a.ID)

		question, err := g.store.GetQuestion(ctx, a.QuestionID)
		if err != nil {
			log.Error().Err(err).Str("question_id", a.QuestionID.String()).Msg("failed to load question for assignment")
			continue
		}
		if _, seen := perUser[a.UserID]; !seen {
			userOrder = append(userOrder, a.UserID)
		}
		perUser[a.UserID] = append(perUser[a.UserID], events.CodingAssignment{
			AllotmentID: a.ID,
			Question:    *question,
		})
	}

	for _, userID := range userOrder {
		g.b.Broadcast(room, names.CodingStarted, events.CodingStartedPayload{
			UserID:        userID,
			Assignments:   perUser[userID],
			TimeRemaining: int(duration / time.Second),
		})
	}
	return ids
}

// evaluate grades every allotment in the batch. Untouched allotments
// are auto-submitted with empty code.
func (g *Gateway) evaluate(ctx context.Context, room string, names events.Names, ids []uuid.UUID) []models.Allotment {
	now := g.clock.Now().UTC()
	var evaluated []models.Allotment

	for _, id := range ids {
		allotment, err := g.store.GetAllotment(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("allotment_id", id.String()).Msg("failed to reload allotment for grading")
			continue
		}
		if allotment.Status == models.AllotmentStatusEvaluated {
			evaluated = append(evaluated, *allotment)
			continue
		}
		if allotment.Status == models.AllotmentStatusCoding {
			allotment.Status = models.AllotmentStatusSubmitted
			allotment.SubmittedAt = &now
		}

		question, err := g.store.GetQuestion(ctx, allotment.QuestionID)
		var testCases []models.TestCase
		if err != nil {
			log.Error().Err(err).Str("question_id", allotment.QuestionID.String()).Msg("failed to load question for grading")
		} else {
			testCases = question.TestCases
		}

		passed, total, err := g.grader.Grade(ctx, allotment.SubmittedCode, testCases)
		if err != nil {
			// Grader failures score zero and never block the batch.
			log.Error().Err(err).Str("allotment_id", allotment.ID.String()).Msg("grader failed, scoring zero")
			passed, total = 0, len(testCases)
		}

		allotment.TestCasesPassed = passed
		allotment.TotalTestCases = total
		allotment.Score = score(passed, total)
		allotment.Status = models.AllotmentStatusEvaluated
		allotment.EvaluatedAt = &now

		if err := g.store.UpdateAllotment(ctx, *allotment); err != nil {
			log.Error().Err(err).Str("allotment_id", allotment.ID.String()).Msg("failed to persist evaluation")
		}
		evaluated = append(evaluated, *allotment)
	}

	g.b.Broadcast(room, names.CodingEnded, events.CodingEndedPayload{
		TopPerformers: topPerformers(evaluated, 3),
	})
	return evaluated
}

// score is pass ratio as a percentage; a question with no test cases
// scores zero rather than dividing by zero.
func score(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

// topPerformers returns the best n evaluated allotments by score,
// then test cases passed, preserving input order on ties.
func topPerformers(allotments []models.Allotment, n int) []events.PerformerResult {
	sorted := append([]models.Allotment(nil), allotments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].TestCasesPassed > sorted[j].TestCasesPassed
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]events.PerformerResult, len(sorted))
	for i, a := range sorted {
		out[i] = events.PerformerResult{
			Username:        a.Username,
			TeamName:        a.TeamName,
			Score:           a.Score,
			TestCasesPassed: a.TestCasesPassed,
			TotalTestCases:  a.TotalTestCases,
		}
	}
	return out
}
