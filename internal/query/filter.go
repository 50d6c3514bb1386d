package query

import (
	"strings"
	"time"

	"taskdesk/internal/domain"
)

// Range bounds a timestamp inclusively; a zero bound is open.
type Range struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Filter is a conjunction of optional predicates. Empty slices, empty
// strings and nil pointers mean "no constraint".
type Filter struct {
	Statuses      []domain.Status   `json:"status,omitempty"`
	Priorities    []domain.Priority `json:"priority,omitempty"`
	Types         []domain.TaskType `json:"type,omitempty"`
	AssignedUsers []string          `json:"assignedUser,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	SearchTerm    string            `json:"searchTerm,omitempty"`
	IsOverdue     *bool             `json:"isOverdue,omitempty"`
	IsDueToday    *bool             `json:"isDueToday,omitempty"`
	DateRange     *Range            `json:"dateRange,omitempty"`
	DueDateRange  *Range            `json:"dueDateRange,omitempty"`
	ContactID     string            `json:"contactId,omitempty"`
	DealID        string            `json:"dealId,omitempty"`
	CompanyID     string            `json:"companyId,omitempty"`
}

// Apply returns the tasks matching f in their original order.
func Apply(tasks []domain.Task, f Filter, at time.Time) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if Match(t, f, at) {
			out = append(out, t)
		}
	}
	return out
}

// ByStatus is the status predicate of Filter on its own, used for board columns.
func ByStatus(tasks []domain.Task, status domain.Status, at time.Time) []domain.Task {
	return Apply(tasks, Filter{Statuses: []domain.Status{status}}, at)
}

func Match(t domain.Task, f Filter, at time.Time) bool {
	if len(f.Statuses) > 0 && !matchStatus(t, f.Statuses, at) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, t.Type) {
		return false
	}
	if len(f.AssignedUsers) > 0 && !contains(f.AssignedUsers, t.AssignedUserID) {
		return false
	}
	if len(f.Tags) > 0 && !matchAnyTag(t, f.Tags) {
		return false
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" && !matchSearch(t, term) {
		return false
	}
	if f.IsOverdue != nil && IsOverdue(t, at) != *f.IsOverdue {
		return false
	}
	if f.IsDueToday != nil && IsDueToday(t, at) != *f.IsDueToday {
		return false
	}
	if f.DateRange != nil && !f.DateRange.Contains(t.CreatedAt) {
		return false
	}
	if f.DueDateRange != nil && (t.DueDate == nil || !f.DueDateRange.Contains(*t.DueDate)) {
		return false
	}
	if f.ContactID != "" && t.ContactID != f.ContactID {
		return false
	}
	if f.DealID != "" && t.DealID != f.DealID {
		return false
	}
	if f.CompanyID != "" && t.CompanyID != f.CompanyID {
		return false
	}
	return true
}

// matchStatus compares stored statuses; the derived overdue value matches
// through IsOverdue.
func matchStatus(t domain.Task, statuses []domain.Status, at time.Time) bool {
	for _, s := range statuses {
		if s == domain.StatusOverdue {
			if IsOverdue(t, at) {
				return true
			}
			continue
		}
		if t.Status == s {
			return true
		}
	}
	return false
}

func matchAnyTag(t domain.Task, tags []string) bool {
	for _, tag := range tags {
		if t.HasTag(tag) {
			return true
		}
	}
	return false
}

func matchSearch(t domain.Task, term string) bool {
	needle := strings.ToLower(term)
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
