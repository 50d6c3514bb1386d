package activity

import (
	"sort"
	"time"

	"taskdesk/internal/domain"
)

const dayKeyLayout = "2006-01-02"

type DayGroup struct {
	Day        string            `json:"day"`
	Activities []domain.Activity `json:"activities"`
}

// GroupByDay buckets activities by calendar day in loc. Buckets come newest
// day first; inside a bucket entries are newest first with ties broken by id
// descending, so the result never depends on input order.
func GroupByDay(activities []domain.Activity, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	sorted := append([]domain.Activity(nil), activities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	groups := make([]DayGroup, 0)
	for _, a := range sorted {
		key := a.CreatedAt.In(loc).Format(dayKeyLayout)
		if n := len(groups); n > 0 && groups[n-1].Day == key {
			groups[n-1].Activities = append(groups[n-1].Activities, a)
			continue
		}
		groups = append(groups, DayGroup{Day: key, Activities: []domain.Activity{a}})
	}
	return groups
}
