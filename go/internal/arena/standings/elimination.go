package standings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EliminationStore is what the elimination policy needs from
// persistence.
type EliminationStore interface {
	CountCompletedAuctions(ctx context.Context) (int, error)
	ListTeams(ctx context.Context) ([]string, error)
	CountAllotmentsByTeam(ctx context.Context, teamName string) (int, error)
	DeactivateTeam(ctx context.Context, teamName string) error
}

// Eliminator applies the fairness floor between phases: a team whose
// allotment count falls below floor(completed auctions / team count)
// has all members deactivated. Deactivation is monotonic; this engine
// never reactivates a team.
type Eliminator struct {
	store EliminationStore
}

func NewEliminator(store EliminationStore) *Eliminator {
	return &Eliminator{store: store}
}

// Outcome lists the teams on either side of the floor.
type Outcome struct {
	Eliminated []string
	Qualified  []string
}

// Check computes the floor and deactivates under-performing teams.
// With zero teams there are no eliminations.
func (e *Eliminator) Check(ctx context.Context) (Outcome, error) {
	totalAuctions, err := e.store.CountCompletedAuctions(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to count completed auctions: %w", err)
	}
	teams, err := e.store.ListTeams(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to list teams: %w", err)
	}
	if len(teams) == 0 {
		return Outcome{}, nil
	}

	floor := totalAuctions / len(teams)

	var outcome Outcome
	for _, team := range teams {
		won, err := e.store.CountAllotmentsByTeam(ctx, team)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to count allotments for team %s: %w", team, err)
		}
		if won < floor {
			if err := e.store.DeactivateTeam(ctx, team); err != nil {
				return Outcome{}, fmt.Errorf("failed to deactivate team %s: %w", team, err)
			}
			outcome.Eliminated = append(outcome.Eliminated, team)
			log.Info().Str("team", team).Int("won", won).Int("floor", floor).Msg("team eliminated")
		} else {
			outcome.Qualified = append(outcome.Qualified, team)
		}
	}
	return outcome, nil
}
