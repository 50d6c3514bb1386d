package activity

import (
	"sync"

	"taskdesk/internal/domain"
)

// Log is the append-only activity journal. Entries are never updated or
// removed once appended.
type Log struct {
	mu      sync.RWMutex
	entries []domain.Activity
	ids     map[string]struct{}
}

func NewLog(seed ...domain.Activity) (*Log, error) {
	l := &Log{ids: make(map[string]struct{}, len(seed))}
	for _, a := range seed {
		if err := l.Append(a); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Log) Append(a domain.Activity) error {
	if a.ID == "" {
		return domain.Validationf("activity id is required")
	}
	if !a.Type.Valid() {
		return domain.Validationf("invalid activity type %q", a.Type)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ids == nil {
		l.ids = make(map[string]struct{})
	}
	if _, ok := l.ids[a.ID]; ok {
		return domain.Invariantf("activity %s already recorded", a.ID)
	}
	l.ids[a.ID] = struct{}{}
	l.entries = append(l.entries, cloneActivity(a))
	return nil
}

// All returns every activity in append order.
func (l *Log) All() []domain.Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAll(l.entries)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Since returns the activities appended after the first n.
func (l *Log) Since(n int) []domain.Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(l.entries) {
		return []domain.Activity{}
	}
	return cloneAll(l.entries[n:])
}

// ForEntity returns the entity's activities newest first. Entries with equal
// timestamps come back in reverse append order.
func (l *Log) ForEntity(entityType, entityID string) []domain.Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		a := l.entries[i]
		if a.EntityType == entityType && a.EntityID == entityID {
			out = append(out, cloneActivity(a))
		}
	}
	sortNewestFirst(out)
	return out
}

func cloneAll(in []domain.Activity) []domain.Activity {
	out := make([]domain.Activity, len(in))
	for i, a := range in {
		out[i] = cloneActivity(a)
	}
	return out
}

func cloneActivity(a domain.Activity) domain.Activity {
	if a.Metadata != nil {
		md := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			md[k] = v
		}
		a.Metadata = md
	}
	return a
}
