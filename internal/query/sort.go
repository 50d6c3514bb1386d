package query

import (
	"sort"
	"strings"
	"time"

	"taskdesk/internal/domain"
)

type SortField string

const (
	SortTitle             SortField = "title"
	SortStatus            SortField = "status"
	SortPriority          SortField = "priority"
	SortType              SortField = "type"
	SortDueDate           SortField = "dueDate"
	SortCreatedAt         SortField = "createdAt"
	SortUpdatedAt         SortField = "updatedAt"
	SortCompletedDate     SortField = "completedDate"
	SortAssignee          SortField = "assignee"
	SortEstimatedDuration SortField = "estimatedDuration"
)

var sortFields = []SortField{
	SortTitle, SortStatus, SortPriority, SortType, SortDueDate, SortCreatedAt,
	SortUpdatedAt, SortCompletedDate, SortAssignee, SortEstimatedDuration,
}

type SortSpec struct {
	Field      SortField `json:"field"`
	Descending bool      `json:"descending,omitempty"`
}

// ParseSort reads "field" or "-field" (descending).
func ParseSort(raw string) (SortSpec, error) {
	raw = strings.TrimSpace(raw)
	spec := SortSpec{}
	if strings.HasPrefix(raw, "-") {
		spec.Descending = true
		raw = raw[1:]
	}
	for _, f := range sortFields {
		if strings.EqualFold(string(f), raw) {
			spec.Field = f
			return spec, nil
		}
	}
	return SortSpec{}, domain.Validationf("unknown sort field %q", raw)
}

// Sort orders tasks in place by the specs in priority order. The sort is
// stable so ties keep collection order. Missing values sort last in both
// directions. Specs with an unknown field are ignored.
func Sort(tasks []domain.Task, specs ...SortSpec) {
	if len(specs) == 0 {
		return
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		for _, s := range specs {
			c := compare(tasks[i], tasks[j], s)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func compare(a, b domain.Task, s SortSpec) int {
	var c int
	switch s.Field {
	case SortTitle:
		c = compareFold(a.Title, b.Title)
	case SortStatus:
		c = compareFold(string(a.Status), string(b.Status))
	case SortType:
		c = compareFold(string(a.Type), string(b.Type))
	case SortAssignee:
		if missing := compareMissing(a.AssignedUserName == "", b.AssignedUserName == ""); missing != 0 {
			return missing
		}
		c = compareFold(a.AssignedUserName, b.AssignedUserName)
	case SortPriority:
		c = a.Priority.Rank() - b.Priority.Rank()
	case SortEstimatedDuration:
		if missing := compareMissing(a.EstimatedDuration == nil, b.EstimatedDuration == nil); missing != 0 {
			return missing
		}
		if a.EstimatedDuration != nil {
			c = *a.EstimatedDuration - *b.EstimatedDuration
		}
	case SortDueDate:
		return directed(compareTimePtr(a.DueDate, b.DueDate), a.DueDate == nil || b.DueDate == nil, s.Descending)
	case SortCompletedDate:
		return directed(compareTimePtr(a.CompletedDate, b.CompletedDate), a.CompletedDate == nil || b.CompletedDate == nil, s.Descending)
	case SortCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		c = a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		// unknown fields compare equal and keep collection order
		return 0
	}
	if s.Descending {
		return -c
	}
	return c
}

// directed flips c for descending order unless the comparison involved a
// missing value, which always sorts last.
func directed(c int, missing, desc bool) int {
	if missing || !desc {
		return c
	}
	return -c
}

func compareTimePtr(a, b *time.Time) int {
	if m := compareMissing(a == nil, b == nil); m != 0 || a == nil {
		return m
	}
	return a.Compare(*b)
}

func compareMissing(aMissing, bMissing bool) int {
	switch {
	case aMissing && !bMissing:
		return 1
	case !aMissing && bMissing:
		return -1
	}
	return 0
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
