package store

import (
	"taskdesk/internal/domain"
)

// Collection is an insertion-ordered map keyed by id. Iteration order is
// the order items were first inserted, which is the tie-break order for
// stable sorts downstream.
type Collection[T any] struct {
	order []string
	items map[string]T
}

func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{items: make(map[string]T)}
}

func (c *Collection[T]) Get(id string) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

// Put inserts or replaces; replacing keeps the original position.
func (c *Collection[T]) Put(id string, v T) {
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *Collection[T]) Delete(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, have := range c.order {
		if have == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *Collection[T]) Len() int { return len(c.order) }

// Values returns items in insertion order.
func (c *Collection[T]) Values() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Store holds the engine's entities. It is not safe for concurrent use;
// the engine serializes access.
type Store struct {
	Tasks     *Collection[domain.Task]
	Templates *Collection[domain.TaskTemplate]
	Events    *Collection[domain.CalendarEvent]
}

func New() *Store {
	return &Store{
		Tasks:     NewCollection[domain.Task](),
		Templates: NewCollection[domain.TaskTemplate](),
		Events:    NewCollection[domain.CalendarEvent](),
	}
}

// Snapshot is the serializable content of a Store.
type Snapshot struct {
	Tasks     []domain.Task          `json:"tasks"`
	Templates []domain.TaskTemplate  `json:"templates"`
	Events    []domain.CalendarEvent `json:"events"`
}

func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Tasks:     make([]domain.Task, 0, s.Tasks.Len()),
		Templates: make([]domain.TaskTemplate, 0, s.Templates.Len()),
		Events:    make([]domain.CalendarEvent, 0, s.Events.Len()),
	}
	for _, t := range s.Tasks.Values() {
		snap.Tasks = append(snap.Tasks, t.Clone())
	}
	for _, t := range s.Templates.Values() {
		snap.Templates = append(snap.Templates, t.Clone())
	}
	for _, e := range s.Events.Values() {
		snap.Events = append(snap.Events, e.Clone())
	}
	return snap
}

// Restore builds a Store from a snapshot, rejecting duplicate ids.
func Restore(snap Snapshot) (*Store, error) {
	s := New()
	for _, t := range snap.Tasks {
		if _, dup := s.Tasks.Get(t.ID); dup || t.ID == "" {
			return nil, domain.Invariantf("snapshot has invalid or duplicate task id %q", t.ID)
		}
		s.Tasks.Put(t.ID, t.Clone())
	}
	for _, t := range snap.Templates {
		if _, dup := s.Templates.Get(t.ID); dup || t.ID == "" {
			return nil, domain.Invariantf("snapshot has invalid or duplicate template id %q", t.ID)
		}
		s.Templates.Put(t.ID, t.Clone())
	}
	for _, e := range snap.Events {
		if _, dup := s.Events.Get(e.ID); dup || e.ID == "" {
			return nil, domain.Invariantf("snapshot has invalid or duplicate event id %q", e.ID)
		}
		s.Events.Put(e.ID, e.Clone())
	}
	return s, nil
}
