// Package standings reduces graded allotments into ranked results and
// applies the team elimination policy.
package standings

import (
	"sort"

	"github.com/google/uuid"

	"github.com/dmehra21/codebid/go/internal/models"
)

// Aggregate reduces evaluated allotments into ranked session results.
// Participants are grouped in first-seen input order; the sort is
// stable and descending by (total score, questions completed), so
// ties keep their aggregation order and ranks are dense sequential
// integers starting at 1.
func Aggregate(allotments []models.Allotment) []models.SessionResult {
	byUser := make(map[uuid.UUID]*models.SessionResult)
	order := make([]uuid.UUID, 0, len(allotments))

	for _, a := range allotments {
		if a.Status != models.AllotmentStatusEvaluated {
			continue
		}
		result, ok := byUser[a.UserID]
		if !ok {
			result = &models.SessionResult{
				UserID:   a.UserID,
				Username: a.Username,
				TeamName: a.TeamName,
			}
			byUser[a.UserID] = result
			order = append(order, a.UserID)
		}
		result.TotalScore += a.Score
		result.QuestionsWon++
		if a.Score > 0 {
			result.QuestionsCompleted++
		}
	}

	results := make([]models.SessionResult, 0, len(order))
	for _, id := range order {
		results = append(results, *byUser[id])
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].QuestionsCompleted > results[j].QuestionsCompleted
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// Top returns the first n results without mutating the input.
func Top(results []models.SessionResult, n int) []models.SessionResult {
	if len(results) <= n {
		return results
	}
	return results[:n]
}
