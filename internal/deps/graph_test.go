package deps_test

import (
	"reflect"
	"testing"

	"taskdesk/internal/deps"
	"taskdesk/internal/domain"
)

func node(id string, status domain.Status, dependsOn ...string) domain.Task {
	return domain.Task{ID: id, Status: status, Dependencies: dependsOn}
}

func TestCanStart(t *testing.T) {
	g := deps.Build([]domain.Task{
		node("a", domain.StatusCompleted),
		node("b", domain.StatusPending),
		node("c", domain.StatusPending, "a"),
		node("d", domain.StatusPending, "a", "b", "ghost"),
	})
	if r := g.CanStart("c"); !r.Ready || len(r.BlockedBy) != 0 {
		t.Fatalf("c should be ready: %+v", r)
	}
	r := g.CanStart("d")
	if r.Ready || !reflect.DeepEqual(r.BlockedBy, []string{"b", "ghost"}) {
		t.Fatalf("d readiness: %+v", r)
	}
	if r := g.CanStart("a"); !r.Ready {
		t.Fatalf("task without dependencies is ready")
	}
}

func TestValidateDependencies(t *testing.T) {
	g := deps.Build([]domain.Task{
		node("a", domain.StatusPending),
		node("b", domain.StatusPending, "a"),
		node("c", domain.StatusPending, "b"),
	})
	if err := g.ValidateDependencies("a", []string{"a"}); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("self dependency should be rejected, got %v", err)
	}
	if err := g.ValidateDependencies("a", []string{"c"}); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("cycle a->c->b->a should be rejected, got %v", err)
	}
	if err := g.ValidateDependencies("c", []string{"a", "b"}); err != nil {
		t.Fatalf("valid deps rejected: %v", err)
	}
	if err := g.ValidateDependencies("new", []string{"c", "unknown"}); err != nil {
		t.Fatalf("new task deps rejected: %v", err)
	}
}

func TestTopoOrderAndCycle(t *testing.T) {
	g := deps.Build([]domain.Task{
		node("c", domain.StatusPending, "b"),
		node("a", domain.StatusPending),
		node("b", domain.StatusPending, "a"),
		node("d", domain.StatusPending),
	})
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c", "d"}) && !reflect.DeepEqual(order, []string{"a", "d", "b", "c"}) {
		t.Fatalf("topo order = %v", order)
	}
	if got := g.Dependents("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("dependents = %v", got)
	}

	cyclic := deps.Build([]domain.Task{
		node("x", domain.StatusPending, "y"),
		node("y", domain.StatusPending, "x"),
	})
	if cycle := cyclic.DetectCycle(); len(cycle) != 2 {
		t.Fatalf("expected cycle, got %v", cycle)
	}
	if _, err := cyclic.TopoOrder(); err == nil {
		t.Fatalf("expected cycle error")
	}
}
