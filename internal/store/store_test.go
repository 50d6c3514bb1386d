package store_test

import (
	"testing"

	"taskdesk/internal/domain"
	"taskdesk/internal/store"
)

func TestCollectionKeepsInsertionOrder(t *testing.T) {
	c := store.NewCollection[string]()
	c.Put("b", "B")
	c.Put("a", "A")
	c.Put("c", "C")
	c.Put("b", "B2")
	if !c.Delete("a") || c.Delete("a") {
		t.Fatalf("delete should succeed once")
	}
	got := c.Values()
	if len(got) != 2 || got[0] != "B2" || got[1] != "C" {
		t.Fatalf("values = %v", got)
	}
}

func TestSnapshotRoundTripIsDeep(t *testing.T) {
	s := store.New()
	s.Tasks.Put("t1", domain.Task{ID: "t1", Title: "one", Tags: []string{"x"}})
	s.Templates.Put("tpl", domain.TaskTemplate{ID: "tpl", Name: "tpl"})
	snap := s.Snapshot()
	snap.Tasks[0].Tags[0] = "mutated"

	orig, _ := s.Tasks.Get("t1")
	if orig.Tags[0] != "x" {
		t.Fatalf("snapshot shares memory with store")
	}
	restored, err := store.Restore(snap)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Tasks.Len() != 1 || restored.Templates.Len() != 1 {
		t.Fatalf("restore lost entities")
	}

	snap.Tasks = append(snap.Tasks, snap.Tasks[0])
	if _, err := store.Restore(snap); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}
