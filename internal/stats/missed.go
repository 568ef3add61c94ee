// Package stats contains statistics calculations and reporting.
package stats

import (
	"sort"

	"github.com/verte-zerg/typebook/internal/model"
)

// RankMissed orders aggregates by miss count, then by lowest accuracy.
// Characters never missed are dropped.
func RankMissed(aggs []model.CharAggregate) []model.CharAggregate {
	candidates := make([]model.CharAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Incorrect > 0 {
			candidates = append(candidates, agg)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Incorrect != candidates[j].Incorrect {
			return candidates[i].Incorrect > candidates[j].Incorrect
		}
		ai, aj := accuracy(candidates[i]), accuracy(candidates[j])
		if ai == aj {
			return candidates[i].Char < candidates[j].Char
		}
		return ai < aj
	})
	return candidates
}

// MostMissed returns up to top characters from RankMissed.
func MostMissed(aggs []model.CharAggregate, top int) []string {
	ranked := RankMissed(aggs)
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	out := make([]string, len(ranked))
	for i, agg := range ranked {
		out[i] = agg.Char
	}
	return out
}

// MissedSet turns characters into a lookup set for drill generation.
func MissedSet(chars []string) map[rune]struct{} {
	set := map[rune]struct{}{}
	for _, ch := range chars {
		if runes := []rune(ch); len(runes) > 0 {
			set[runes[0]] = struct{}{}
		}
	}
	return set
}

func accuracy(agg model.CharAggregate) float64 {
	total := agg.Correct + agg.Incorrect
	if total == 0 {
		return 1.0
	}
	return float64(agg.Correct) / float64(total)
}
