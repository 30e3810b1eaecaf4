// Package session sequences scheduled multi-question contests:
// quorum wait, repeated bidding and coding cycles, ranking, and
// completion. All per-session timers are owned here and are released
// when the session ends or is cancelled.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/auction"
	"github.com/dmehra21/codebid/go/internal/arena/broadcast"
	"github.com/dmehra21/codebid/go/internal/arena/events"
	"github.com/dmehra21/codebid/go/internal/arena/grading"
	"github.com/dmehra21/codebid/go/internal/arena/standings"
	"github.com/dmehra21/codebid/go/internal/models"
)

// Validation rejections for joins, leaves, and cancels.
var (
	ErrNotJoinable      = errors.New("session is not accepting joins")
	ErrSessionFull      = errors.New("session is full")
	ErrAlreadyJoined    = errors.New("already joined this session")
	ErrNotJoined        = errors.New("not joined to this session")
	ErrSessionCompleted = errors.New("session is already completed")
	ErrNoActiveAuction  = errors.New("no active auction for this session")
)

// Store is what the automaton needs from persistence.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	CreateSession(ctx context.Context, s models.ScheduledSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.ScheduledSession, error)
	UpdateSession(ctx context.Context, s models.ScheduledSession) error
	ListDueSessions(ctx context.Context, now time.Time) ([]models.ScheduledSession, error)
	ListEvaluatedAllotmentsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.Allotment, error)
}

// Config holds the automaton's timing knobs.
type Config struct {
	ScanInterval       time.Duration // wall-clock scan for due sessions
	QuorumPollInterval time.Duration // waiting-room quorum poll
	PacingGap          time.Duration // gap between grading end and next push
	Tick               time.Duration // countdown broadcast interval
}

// DefaultConfig matches the production cadence: 60 s scans, 30 s
// quorum polls, 3 s pacing, 1 s ticks.
func DefaultConfig() Config {
	return Config{
		ScanInterval:       time.Minute,
		QuorumPollInterval: 30 * time.Second,
		PacingGap:          3 * time.Second,
		Tick:               time.Second,
	}
}

// Automaton owns every live session run, keyed by session ID. It is
// the only mutator of a ScheduledSession once its status leaves
// scheduled.
type Automaton struct {
	store      Store
	machines   *auction.Factory
	grading    *grading.Gateway
	eliminator *standings.Eliminator
	clock      clockwork.Clock
	b          broadcast.Broadcaster
	cfg        Config

	mu   sync.Mutex
	runs map[uuid.UUID]*run
}

func NewAutomaton(store Store, machines *auction.Factory, gw *grading.Gateway, eliminator *standings.Eliminator, clock clockwork.Clock, b broadcast.Broadcaster, cfg Config) *Automaton {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.QuorumPollInterval <= 0 {
		cfg.QuorumPollInterval = 30 * time.Second
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return &Automaton{
		store:      store,
		machines:   machines,
		grading:    gw,
		eliminator: eliminator,
		clock:      clock,
		b:          b,
		cfg:        cfg,
		runs:       make(map[uuid.UUID]*run),
	}
}

// Start runs the wall-clock scan loop until ctx is cancelled. Due
// sessions move to waiting and get their own run goroutine.
func (a *Automaton) Start(ctx context.Context) {
	log.Info().Dur("scan_interval", a.cfg.ScanInterval).Msg("session automaton started")

	a.scan(ctx)
	ticker := a.clock.NewTicker(a.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session automaton shutting down")
			return
		case <-ticker.Chan():
			a.scan(ctx)
		}
	}
}

func (a *Automaton) scan(ctx context.Context) {
	due, err := a.store.ListDueSessions(ctx, a.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to list due sessions")
		return
	}
	for _, session := range due {
		session.Status = models.SessionStatusWaiting
		if err := a.store.UpdateSession(ctx, session); err != nil {
			log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to move session to waiting")
			continue
		}
		a.b.Broadcast(events.GlobalRoom, events.TypeScheduledReady, events.ScheduledReadyPayload{
			SessionID:   session.ID,
			Title:       session.Title,
			Description: session.Description,
		})
		a.spawn(ctx, session.ID)
		log.Info().Str("session_id", session.ID.String()).Str("title", session.Title).Msg("session waiting for quorum")
	}
}

// spawn registers and starts a run for a waiting session.
func (a *Automaton) spawn(ctx context.Context, sessionID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.runs[sessionID]; exists {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		a:         a,
		sessionID: sessionID,
		room:      events.SessionRoom(sessionID),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	a.runs[sessionID] = r
	go r.loop(runCtx)
}

func (a *Automaton) removeRun(sessionID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.runs, sessionID)
}

func (a *Automaton) getRun(sessionID uuid.UUID) *run {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runs[sessionID]
}

// tryBegin attempts the waiting to in-progress flip. It runs under the
// roster mutex, so a join or leave accepted while the session is still
// waiting is either in the persisted roster or rejected after the
// flip, never silently lost. started reports success; keepWaiting
// tells the run whether to poll again.
func (a *Automaton) tryBegin(ctx context.Context, sessionID uuid.UUID) (session *models.ScheduledSession, started, keepWaiting bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to load waiting session")
		return nil, false, true
	}
	if session.Status != models.SessionStatusWaiting {
		return nil, false, false
	}
	if len(session.JoinedUsers) < session.MinUsers {
		log.Debug().
			Str("session_id", sessionID.String()).
			Int("joined", len(session.JoinedUsers)).
			Int("min_users", session.MinUsers).
			Msg("session below quorum")
		return nil, false, true
	}

	now := a.clock.Now().UTC()
	session.Status = models.SessionStatusInProgress
	session.StartedAt = &now
	session.CurrentQuestionIndex = 0
	if err := a.store.UpdateSession(ctx, *session); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to start session")
		return nil, false, true
	}
	return session, true, false
}

// ScheduleParams describes a session to be created.
type ScheduleParams struct {
	Title           string
	Description     string
	ScheduledTime   time.Time
	QuestionIDs     []uuid.UUID
	MinUsers        int
	MaxUsers        int
	AuctionDuration int // seconds
	CodingDuration  int // seconds
	CreatedBy       uuid.UUID
}

// Schedule creates a session in scheduled status. Every referenced
// question must exist. Zero durations and quorum fall back to the
// production defaults.
func (a *Automaton) Schedule(ctx context.Context, p ScheduleParams) (*models.ScheduledSession, error) {
	if p.Title == "" {
		return nil, errors.New("title is required")
	}
	if len(p.QuestionIDs) == 0 {
		return nil, errors.New("at least one question is required")
	}
	if !p.ScheduledTime.After(a.clock.Now()) {
		return nil, errors.New("scheduled time must be in the future")
	}
	for _, qid := range p.QuestionIDs {
		if _, err := a.store.GetQuestion(ctx, qid); err != nil {
			return nil, fmt.Errorf("failed to load question %s: %w", qid, err)
		}
	}
	if p.MinUsers <= 0 {
		p.MinUsers = 2
	}
	if p.AuctionDuration <= 0 {
		p.AuctionDuration = 60
	}
	if p.CodingDuration <= 0 {
		p.CodingDuration = 900
	}

	session := models.ScheduledSession{
		ID:              uuid.New(),
		Title:           p.Title,
		Description:     p.Description,
		ScheduledTime:   p.ScheduledTime.UTC(),
		QuestionIDs:     p.QuestionIDs,
		MinUsers:        p.MinUsers,
		MaxUsers:        p.MaxUsers,
		AuctionDuration: p.AuctionDuration,
		CodingDuration:  p.CodingDuration,
		Status:          models.SessionStatusScheduled,
		JoinedUsers:     []models.Participant{},
		CreatedBy:       p.CreatedBy,
		CreatedAt:       a.clock.Now().UTC(),
	}
	if err := a.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Info().
		Str("session_id", session.ID.String()).
		Str("title", session.Title).
		Time("scheduled_time", session.ScheduledTime).
		Msg("session scheduled")
	return &session, nil
}

// Join adds a participant to a scheduled or waiting session. The
// roster check-and-set is serialized on the automaton mutex.
func (a *Automaton) Join(ctx context.Context, sessionID, userID uuid.UUID) (*models.ScheduledSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.Status != models.SessionStatusScheduled && session.Status != models.SessionStatusWaiting {
		return nil, ErrNotJoinable
	}
	for _, p := range session.JoinedUsers {
		if p.UserID == userID {
			return nil, ErrAlreadyJoined
		}
	}
	if session.MaxUsers > 0 && len(session.JoinedUsers) >= session.MaxUsers {
		return nil, ErrSessionFull
	}

	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	session.JoinedUsers = append(session.JoinedUsers, models.Participant{
		UserID:   user.ID,
		Username: user.Username,
		TeamName: user.TeamName,
		JoinedAt: a.clock.Now().UTC(),
	})
	if err := a.store.UpdateSession(ctx, *session); err != nil {
		return nil, fmt.Errorf("failed to save join: %w", err)
	}

	a.b.Broadcast(events.SessionRoom(sessionID), events.TypeUserJoinedScheduled, events.RosterChangedPayload{
		SessionID:    sessionID,
		UserID:       user.ID,
		Username:     user.Username,
		CurrentCount: len(session.JoinedUsers),
		MinUsers:     session.MinUsers,
	})
	return session, nil
}

// Leave removes a participant from a scheduled or waiting session.
func (a *Automaton) Leave(ctx context.Context, sessionID, userID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.Status != models.SessionStatusScheduled && session.Status != models.SessionStatusWaiting {
		return ErrNotJoinable
	}

	kept := session.JoinedUsers[:0]
	found := false
	for _, p := range session.JoinedUsers {
		if p.UserID == userID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return ErrNotJoined
	}
	session.JoinedUsers = kept
	if err := a.store.UpdateSession(ctx, *session); err != nil {
		return fmt.Errorf("failed to save leave: %w", err)
	}

	a.b.Broadcast(events.SessionRoom(sessionID), events.TypeUserLeftScheduled, events.RosterChangedPayload{
		SessionID:    sessionID,
		UserID:       userID,
		CurrentCount: len(session.JoinedUsers),
		MinUsers:     session.MinUsers,
	})
	return nil
}

// Cancel stops a session's run synchronously: its phase timer, coding
// timer, and quorum poll are all released before the status flips to
// cancelled, so no broadcast for this room follows the cancellation
// event. No settlement or grading happens for remaining questions.
func (a *Automaton) Cancel(ctx context.Context, sessionID uuid.UUID) error {
	a.mu.Lock()
	r := a.runs[sessionID]
	delete(a.runs, sessionID)
	a.mu.Unlock()

	if r != nil {
		r.cancel()
		<-r.done
	}

	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.Status == models.SessionStatusCompleted {
		return ErrSessionCompleted
	}
	if session.Status == models.SessionStatusCancelled {
		return nil
	}

	session.Status = models.SessionStatusCancelled
	if err := a.store.UpdateSession(ctx, *session); err != nil {
		return fmt.Errorf("failed to save cancellation: %w", err)
	}

	a.b.Broadcast(events.SessionRoom(sessionID), events.TypeScheduledCancelled, events.ScheduledCancelledPayload{
		SessionID: sessionID,
		Title:     session.Title,
	})
	log.Info().Str("session_id", sessionID.String()).Msg("session cancelled")
	return nil
}

// PlaceBid routes a bid to the session's live auction, if any.
func (a *Automaton) PlaceBid(ctx context.Context, sessionID, bidderID uuid.UUID, amount int) (models.Bid, error) {
	r := a.getRun(sessionID)
	if r == nil {
		return models.Bid{}, ErrNoActiveAuction
	}
	machine := r.currentMachine()
	if machine == nil {
		return models.Bid{}, ErrNoActiveAuction
	}
	return machine.PlaceBid(ctx, bidderID, amount)
}

// Snapshot returns the point-in-time state a late joiner of the
// session room should render.
func (a *Automaton) Snapshot(ctx context.Context, sessionID uuid.UUID) (events.SessionSnapshot, error) {
	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return events.SessionSnapshot{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	snap := events.SessionSnapshot{
		SessionID:            session.ID,
		Status:               session.Status,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		TotalQuestions:       len(session.QuestionIDs),
		JoinedCount:          len(session.JoinedUsers),
		MinUsers:             session.MinUsers,
	}

	if r := a.getRun(sessionID); r != nil {
		r.fillSnapshot(&snap)
	}
	return snap, nil
}
