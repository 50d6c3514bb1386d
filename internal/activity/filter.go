package activity

import (
	"sort"
	"strings"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/query"
)

// Criteria mirrors the task filter: every field is optional and fields are
// AND-combined. From is inclusive, To exclusive.
type Criteria struct {
	Types          []domain.ActivityType `json:"types,omitempty"`
	Users          []string              `json:"users,omitempty"`
	From           time.Time             `json:"from,omitempty"`
	To             time.Time             `json:"to,omitempty"`
	EntityType     string                `json:"entityType,omitempty"`
	EntityID       string                `json:"entityId,omitempty"`
	SearchTerm     string                `json:"searchTerm,omitempty"`
	IncludePrivate bool                  `json:"includePrivate,omitempty"`
}

// Filter returns the matching activities newest first.
func Filter(activities []domain.Activity, c Criteria) []domain.Activity {
	out := make([]domain.Activity, 0, len(activities))
	for _, a := range activities {
		if Match(a, c) {
			out = append(out, a)
		}
	}
	sortNewestFirst(out)
	return out
}

func Match(a domain.Activity, c Criteria) bool {
	if a.IsPrivate && !c.IncludePrivate {
		return false
	}
	if len(c.Types) > 0 && !containsType(c.Types, a.Type) {
		return false
	}
	if len(c.Users) > 0 && !containsString(c.Users, a.UserID) {
		return false
	}
	if !c.From.IsZero() && a.CreatedAt.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && !a.CreatedAt.Before(c.To) {
		return false
	}
	if c.EntityType != "" && a.EntityType != c.EntityType {
		return false
	}
	if c.EntityID != "" && a.EntityID != c.EntityID {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(c.SearchTerm)); term != "" {
		if !strings.Contains(strings.ToLower(a.Title), term) &&
			!strings.Contains(strings.ToLower(a.Description), term) &&
			!strings.Contains(strings.ToLower(a.UserName), term) {
			return false
		}
	}
	return true
}

type Preset string

const (
	PresetToday Preset = "today"
	PresetWeek  Preset = "week"
	PresetMonth Preset = "month"
	PresetAll   Preset = "all"
)

func ParsePreset(raw string) (Preset, error) {
	switch p := Preset(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PresetAll, nil
	case PresetToday, PresetWeek, PresetMonth, PresetAll:
		return p, nil
	}
	return "", domain.Validationf("unknown activity range %q", raw)
}

// RangeFor narrows c to the preset window around now. PresetAll leaves the
// bounds untouched.
func RangeFor(p Preset, now time.Time, c Criteria) Criteria {
	var w query.Window
	switch p {
	case PresetToday:
		w = query.DayWindow(now)
	case PresetWeek:
		w = query.WeekWindow(now)
	case PresetMonth:
		w = query.MonthWindow(now)
	default:
		return c
	}
	c.From, c.To = w.Start, w.End
	return c
}

// sortNewestFirst orders by timestamp descending. The sort is stable so
// callers control tie order.
func sortNewestFirst(as []domain.Activity) {
	sort.SliceStable(as, func(i, j int) bool {
		return as[i].CreatedAt.After(as[j].CreatedAt)
	})
}

func containsType(set []domain.ActivityType, v domain.ActivityType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
