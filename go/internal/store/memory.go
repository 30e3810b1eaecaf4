package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra21/codebid/go/internal/models"
)

// Memory is a concurrency-safe in-memory Store. It backs tests and
// STORAGE=memory dev mode; nothing survives a restart.
type Memory struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]models.User
	questions  map[uuid.UUID]models.Question
	auctions   map[uuid.UUID]models.Auction
	bids       map[uuid.UUID][]models.Bid // keyed by auction ID
	allotments map[uuid.UUID]models.Allotment
	sessions   map[uuid.UUID]models.ScheduledSession
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:      make(map[uuid.UUID]models.User),
		questions:  make(map[uuid.UUID]models.Question),
		auctions:   make(map[uuid.UUID]models.Auction),
		bids:       make(map[uuid.UUID][]models.Bid),
		allotments: make(map[uuid.UUID]models.Allotment),
		sessions:   make(map[uuid.UUID]models.ScheduledSession),
	}
}

func (m *Memory) CreateUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, ErrNotFound)
	}
	return &user, nil
}

// DebitWallet atomically subtracts amount from the user's wallet,
// failing without mutation if the balance would go negative.
func (m *Memory) DebitWallet(ctx context.Context, userID uuid.UUID, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("debit wallet of %s: %w", userID, ErrNotFound)
	}
	if user.Wallet < amount {
		return fmt.Errorf("debit %d from %s: %w", amount, userID, ErrInsufficientFunds)
	}
	user.Wallet -= amount
	m.users[userID] = user
	return nil
}

// ListTeams returns the distinct team names of non-admin users.
func (m *Memory) ListTeams(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var teams []string
	for _, u := range m.users {
		if u.Role != models.UserRoleUser || u.TeamName == "" {
			continue
		}
		if !seen[u.TeamName] {
			seen[u.TeamName] = true
			teams = append(teams, u.TeamName)
		}
	}
	sort.Strings(teams)
	return teams, nil
}

func (m *Memory) DeactivateTeam(ctx context.Context, teamName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.TeamName == teamName {
			u.IsActive = false
			m.users[id] = u
		}
	}
	return nil
}

func (m *Memory) CreateQuestion(ctx context.Context, q models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

func (m *Memory) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, fmt.Errorf("get question %s: %w", id, ErrNotFound)
	}
	q.TestCases = append([]models.TestCase(nil), q.TestCases...)
	return &q, nil
}

func (m *Memory) CreateAuction(ctx context.Context, a models.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[a.ID] = a
	return nil
}

func (m *Memory) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) UpdateAuction(ctx context.Context, a models.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[a.ID]; !ok {
		return fmt.Errorf("update auction %s: %w", a.ID, ErrNotFound)
	}
	m.auctions[a.ID] = a
	return nil
}

func (m *Memory) CountCompletedAuctions(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.auctions {
		if a.Status == models.AuctionStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CreateBid(ctx context.Context, b models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids[b.AuctionID] = append(m.bids[b.AuctionID], b)
	return nil
}

func (m *Memory) ListBidsByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Bid(nil), m.bids[auctionID]...), nil
}

func (m *Memory) CreateAllotment(ctx context.Context, a models.Allotment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allotments[a.ID] = a
	return nil
}

func (m *Memory) GetAllotment(ctx context.Context, id uuid.UUID) (*models.Allotment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.allotments[id]
	if !ok {
		return nil, fmt.Errorf("get allotment %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) UpdateAllotment(ctx context.Context, a models.Allotment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.allotments[a.ID]; !ok {
		return fmt.Errorf("update allotment %s: %w", a.ID, ErrNotFound)
	}
	m.allotments[a.ID] = a
	return nil
}

func (m *Memory) ListAllotmentsByStatus(ctx context.Context, status models.AllotmentStatus) ([]models.Allotment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Allotment
	for _, a := range m.allotments {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sortAllotments(out)
	return out, nil
}

func (m *Memory) ListAllotmentsByUsers(ctx context.Context, userIDs []uuid.UUID, status models.AllotmentStatus) ([]models.Allotment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		members[id] = true
	}
	var out []models.Allotment
	for _, a := range m.allotments {
		if members[a.UserID] && a.Status == status {
			out = append(out, a)
		}
	}
	sortAllotments(out)
	return out, nil
}

func (m *Memory) ListEvaluatedAllotmentsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.Allotment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		members[id] = true
	}
	var out []models.Allotment
	for _, a := range m.allotments {
		if members[a.UserID] && a.Status == models.AllotmentStatusEvaluated {
			out = append(out, a)
		}
	}
	sortAllotments(out)
	return out, nil
}

func (m *Memory) CountAllotmentsByTeam(ctx context.Context, teamName string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.allotments {
		if a.TeamName == teamName {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CreateSession(ctx context.Context, s models.ScheduledSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id uuid.UUID) (*models.ScheduledSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	s.QuestionIDs = append([]uuid.UUID(nil), s.QuestionIDs...)
	s.JoinedUsers = append([]models.Participant(nil), s.JoinedUsers...)
	s.Results = append([]models.SessionResult(nil), s.Results...)
	return &s, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s models.ScheduledSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("update session %s: %w", s.ID, ErrNotFound)
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) ListDueSessions(ctx context.Context, now time.Time) ([]models.ScheduledSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ScheduledSession
	for _, s := range m.sessions {
		if s.Status == models.SessionStatusScheduled && !s.ScheduledTime.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

// sortAllotments orders by allotted-at then ID so listings are stable
// regardless of map iteration order.
func sortAllotments(allotments []models.Allotment) {
	sort.Slice(allotments, func(i, j int) bool {
		if !allotments[i].AllottedAt.Equal(allotments[j].AllottedAt) {
			return allotments[i].AllottedAt.Before(allotments[j].AllottedAt)
		}
		return allotments[i].ID.String() < allotments[j].ID.String()
	})
}
