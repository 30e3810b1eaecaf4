package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/auction"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/arena/standings"
	"github.com/dmehra21/codebid/go/internal/models"
)

type phase int

const (
	phaseWaiting phase = iota
	phaseBidding
	phaseCoding
	phaseIdle
)

// run is the goroutine-owned state of one live session. The automaton
// holds it in the registry from the waiting room until completion or
// cancellation.
type run struct {
	a         *Automaton
	sessionID uuid.UUID
	room      string
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.Mutex
	phase    phase
	machine  *auction.Machine
	deadline time.Time
}

func (r *run) currentMachine() *auction.Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != phaseBidding {
		return nil
	}
	return r.machine
}

func (r *run) setBidding(m *auction.Machine) {
	r.mu.Lock()
	r.phase = phaseBidding
	r.machine = m
	r.mu.Unlock()
}

func (r *run) setCoding(deadline time.Time) {
	r.mu.Lock()
	r.phase = phaseCoding
	r.machine = nil
	r.deadline = deadline
	r.mu.Unlock()
}

func (r *run) setIdle() {
	r.mu.Lock()
	r.phase = phaseIdle
	r.machine = nil
	r.mu.Unlock()
}

// fillSnapshot adds live phase state to a session snapshot.
func (r *run) fillSnapshot(snap *events.SessionSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.phase {
	case phaseBidding:
		if r.machine == nil {
			return
		}
		q := r.machine.Question()
		snap.IsActive = true
		snap.TimeRemaining = r.machine.Remaining()
		snap.Question = &events.QuestionSummary{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			Difficulty:  q.Difficulty,
		}
		snap.CurrentBid = r.machine.Snapshot()
	case phaseCoding:
		snap.IsCodingPhase = true
		left := r.deadline.Sub(r.a.clock.Now())
		if left > 0 {
			snap.TimeRemaining = int((left + time.Second - 1) / time.Second)
		}
	}
}

// loop drives the session from waiting to completed. It exits early,
// without settling or grading anything further, when its context is
// cancelled.
func (r *run) loop(ctx context.Context) {
	defer close(r.done)
	defer r.a.removeRun(r.sessionID)

	session, ok := r.awaitQuorum(ctx)
	if !ok {
		return
	}

	r.a.b.Broadcast(r.room, events.TypeScheduledStarted, events.ScheduledStartedPayload{
		SessionID:      session.ID,
		Title:          session.Title,
		TotalQuestions: len(session.QuestionIDs),
	})
	log.Info().
		Str("session_id", r.sessionID.String()).
		Int("participants", len(session.JoinedUsers)).
		Int("questions", len(session.QuestionIDs)).
		Msg("session started")

	// Roster is frozen from here on.
	roster := make([]uuid.UUID, len(session.JoinedUsers))
	for i, p := range session.JoinedUsers {
		roster[i] = p.UserID
	}

	auctionDur := time.Duration(session.AuctionDuration) * time.Second
	codingDur := time.Duration(session.CodingDuration) * time.Second
	total := len(session.QuestionIDs)
	eliminationDone := false

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			return
		}

		question, err := r.a.store.GetQuestion(ctx, session.QuestionIDs[i])
		if err != nil {
			log.Error().
				Err(err).
				Str("session_id", r.sessionID.String()).
				Str("question_id", session.QuestionIDs[i].String()).
				Msg("failed to load session question, skipping")
			if !r.advanceIndex(ctx, i+1) {
				return
			}
			continue
		}

		machine := r.a.machines.New(*question, r.room, events.Scheduled, auctionDur, auction.Meta{
			QuestionNumber: i + 1,
			TotalQuestions: total,
		})
		r.setBidding(machine)
		settlement, err := machine.Run(ctx)
		r.setIdle()
		if err != nil {
			return
		}

		if settlement.Allotment != nil {
			if !eliminationDone {
				r.runElimination(ctx)
				eliminationDone = true
			}
			r.setCoding(r.a.clock.Now().Add(codingDur))
			_, err := r.a.grading.Run(ctx, r.room, events.Scheduled, []models.Allotment{*settlement.Allotment}, codingDur)
			r.setIdle()
			if err != nil {
				return
			}
		}

		if !r.advanceIndex(ctx, i+1) {
			return
		}

		if i < total-1 && r.a.cfg.PacingGap > 0 {
			select {
			case <-ctx.Done():
				return
			case <-r.a.clock.After(r.a.cfg.PacingGap):
			}
		}
	}

	r.complete(ctx, roster)
}

// awaitQuorum polls until the automaton flips the session to
// in-progress. The flip itself happens in tryBegin under the roster
// mutex; this loop only decides when to try again. It returns false
// when the session can no longer start.
func (r *run) awaitQuorum(ctx context.Context) (*models.ScheduledSession, bool) {
	ticker := r.a.clock.NewTicker(r.a.cfg.QuorumPollInterval)
	defer ticker.Stop()

	for {
		session, started, keepWaiting := r.a.tryBegin(ctx, r.sessionID)
		if started {
			return session, true
		}
		if !keepWaiting {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.Chan():
		}
	}
}

// advanceIndex persists the strictly increasing question cursor.
func (r *run) advanceIndex(ctx context.Context, next int) bool {
	session, err := r.a.store.GetSession(ctx, r.sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", r.sessionID.String()).Msg("failed to reload session")
		return ctx.Err() == nil
	}
	if next > session.CurrentQuestionIndex {
		session.CurrentQuestionIndex = next
		if err := r.a.store.UpdateSession(ctx, *session); err != nil {
			log.Error().Err(err).Str("session_id", r.sessionID.String()).Msg("failed to advance question index")
		}
	}
	return true
}

func (r *run) runElimination(ctx context.Context) {
	outcome, err := r.a.eliminator.Check(ctx)
	if err != nil {
		log.Error().Err(err).Str("session_id", r.sessionID.String()).Msg("elimination check failed")
		return
	}
	if len(outcome.Eliminated) == 0 {
		return
	}
	r.a.b.Broadcast(r.room, events.TypeTeamsEliminated, events.TeamsEliminatedPayload{
		EliminatedTeams: outcome.Eliminated,
		QualifiedTeams:  outcome.Qualified,
	})
}

// complete aggregates standings over the frozen roster, persists the
// full results, and announces the leaders.
func (r *run) complete(ctx context.Context, roster []uuid.UUID) {
	allotments, err := r.a.store.ListEvaluatedAllotmentsByUsers(ctx, roster)
	if err != nil {
		log.Error().Err(err).Str("session_id", r.sessionID.String()).Msg("failed to load session allotments")
		allotments = nil
	}
	results := standings.Aggregate(allotments)

	session, err := r.a.store.GetSession(ctx, r.sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", r.sessionID.String()).Msg("failed to reload session for completion")
		return
	}
	now := r.a.clock.Now().UTC()
	session.Status = models.SessionStatusCompleted
	session.CompletedAt = &now
	session.Results = results
	if err := r.a.store.UpdateSession(ctx, *session); err != nil {
		log.Error().Err(err).Str("session_id", r.sessionID.String()).Msg("failed to complete session")
	}

	r.a.b.Broadcast(r.room, events.TypeScheduledCompleted, events.ScheduledCompletedPayload{
		SessionID: session.ID,
		Results:   standings.Top(results, 10),
	})
	log.Info().
		Str("session_id", r.sessionID.String()).
		Int("results", len(results)).
		Msg("session completed")
}
