// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sprints  []model.SprintAggregate
	Activity model.ActivityTotals
	CharAggs []model.CharAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig, now time.Time) (Report, error) {
	sprints, err := st.ListSprints(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	activity, err := st.GetActivity(ctx, cfg.UserID, now)
	if err != nil {
		return Report{}, err
	}
	charAggs, err := st.ListCharAggregatesForSprints(ctx, sprintIDs(sprints))
	if err != nil {
		return Report{}, err
	}
	return Report{
		Sprints:  sprints,
		Activity: activity,
		CharAggs: charAggs,
	}, nil
}

func sprintIDs(sprints []model.SprintAggregate) []string {
	ids := make([]string, len(sprints))
	for i, s := range sprints {
		ids[i] = s.SprintID
	}
	return ids
}
