package quiz

import (
	"sort"

	"quiz-competition-service/internal/domain"
)

// Rank orders results by score descending and assigns 1-based ranks by sort
// position. The input must be in creation order: the sort is stable, so equal
// scores keep that order rather than tying on any secondary metric. Ranks are
// dense integers 1..N with no gaps. The whole slice is recomputed from
// scratch on every call to avoid incremental drift.
func Rank(results []domain.Result) []domain.Result {
	ranked := make([]domain.Result, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
