package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"slotting/internal/model"
)

func sampleInstance(t *testing.T) *model.Instance {
	t.Helper()
	inst, err := model.NewInstance(
		[][]int{{0, 1, 2}, {1, 0, 1}, {2, 1, 0}},
		[]int{2, 3, 1},
		[]int{0, 0, 1, 2},
		[][]int{{0, 1}, {2}},
		[][]int{{0, 1}, {2, 3}},
		map[string]float64{"num_products": 4},
	)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	return inst
}

// exerciseStore runs the behavior every Store implementation shares. It does
// not assume the store starts empty.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	inst := sampleInstance(t)
	count := func() int {
		t.Helper()
		n, err := s.CountInstances(ctx)
		if err != nil {
			t.Fatalf("CountInstances: %v", err)
		}
		return n
	}
	before := count()

	rec, err := s.CreateInstance(ctx, "demo", inst)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if n := count(); n != before+1 {
		t.Fatalf("CountInstances after create = %d, want %d", n, before+1)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() || rec.Name != "demo" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	got, err := s.GetInstance(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if diff := cmp.Diff(inst.Doc(), got.Instance.Doc()); diff != "" {
		t.Fatalf("instance mismatch (-want +got):\n%s", diff)
	}

	var saved []model.SolutionRecord
	for i, positions := range [][]int{{0, 0, 1, 2}, {1, 1, 1, 0}, {0, 1, 1, 2}} {
		in := model.SolutionRecord{
			InstanceID: rec.ID,
			Algorithm:  "naive",
			Positions:  positions,
			Cost:       10 + i,
			Feasible:   true,
		}
		if i == 1 {
			in.Feasible = false
			in.Violations = []string{"rack 1 holds 3 products for capacity 3"}
		}
		sol, err := s.SaveSolution(ctx, in)
		if err != nil {
			t.Fatalf("SaveSolution %d: %v", i, err)
		}
		saved = append(saved, sol)
	}
	one, err := s.GetSolution(ctx, rec.ID, saved[1].ID)
	if err != nil {
		t.Fatalf("GetSolution: %v", err)
	}
	if diff := cmp.Diff(saved[1].Positions, one.Positions); diff != "" || one.Feasible || len(one.Violations) != 1 {
		t.Fatalf("solution mismatch: %+v (diff %s)", one, diff)
	}

	page1, next, err := s.ListSolutions(ctx, rec.ID, "", 2)
	if err != nil || len(page1) != 2 || next == "" {
		t.Fatalf("ListSolutions page 1 = %d items, next %q, err %v", len(page1), next, err)
	}
	page2, next2, err := s.ListSolutions(ctx, rec.ID, next, 2)
	if err != nil || len(page2) != 1 || next2 != "" {
		t.Fatalf("ListSolutions page 2 = %d items, next %q, err %v", len(page2), next2, err)
	}
	seen := map[string]bool{}
	for _, sol := range append(page1, page2...) {
		seen[sol.ID] = true
	}
	for _, sol := range saved {
		if !seen[sol.ID] {
			t.Fatalf("solution %s missing from pages", sol.ID)
		}
	}

	if _, err := s.SaveSolution(ctx, model.SolutionRecord{InstanceID: "00000000-0000-0000-0000-000000000000", Positions: []int{0}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SaveSolution(unknown) = %v, want ErrNotFound", err)
	}

	if err := s.DeleteInstance(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}
	if _, err := s.GetInstance(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetInstance after delete = %v, want ErrNotFound", err)
	}
	if n := count(); n != before {
		t.Fatalf("CountInstances after delete = %d, want %d", n, before)
	}
	if _, err := s.GetSolution(ctx, rec.ID, saved[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSolution after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteInstance(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteInstance = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryListInstancesPaging(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		rec, err := m.CreateInstance(ctx, name, sampleInstance(t))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}
	items, next, err := m.ListInstances(ctx, "", 2)
	if err != nil || len(items) != 2 || next != ids[1] {
		t.Fatalf("page 1 = %d items, next %q, err %v", len(items), next, err)
	}
	items, next, err = m.ListInstances(ctx, next, 2)
	if err != nil || len(items) != 1 || items[0].ID != ids[2] || next != "" {
		t.Fatalf("page 2 = %+v, next %q, err %v", items, next, err)
	}
	items, _, _ = m.ListInstances(ctx, "unknown", 2)
	if len(items) != 0 {
		t.Fatalf("unknown cursor returned %d items", len(items))
	}
	items, _, _ = m.ListInstances(ctx, "", 0)
	if len(items) != 3 {
		t.Fatalf("default limit returned %d items", len(items))
	}
}

func TestMemoryRejectsNilInstance(t *testing.T) {
	if _, err := NewMemory().CreateInstance(context.Background(), "x", nil); !errors.Is(err, model.ErrInvalidInstance) {
		t.Fatalf("err = %v, want ErrInvalidInstance", err)
	}
}

func TestMemoryListSolutionsUnknownInstance(t *testing.T) {
	if _, _, err := NewMemory().ListSolutions(context.Background(), "nope", "", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemorySolutionsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec, err := m.CreateInstance(ctx, "alias", sampleInstance(t))
	if err != nil {
		t.Fatal(err)
	}
	saved, err := m.SaveSolution(ctx, model.SolutionRecord{
		InstanceID: rec.ID,
		Positions:  []int{0, 0, 1, 2},
		Violations: []string{"rack 0 over capacity"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.GetSolution(ctx, rec.ID, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Positions[0] = 9
	got.Violations[0] = "tampered"
	list, _, err := m.ListSolutions(ctx, rec.ID, "", 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListSolutions = %v, %v", list, err)
	}
	list[0].Violations[0] = "tampered again"

	again, err := m.GetSolution(ctx, rec.ID, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"rack 0 over capacity"}, again.Violations); diff != "" {
		t.Fatalf("stored violations changed (-want +got):\n%s", diff)
	}
	if again.Positions[0] != 0 {
		t.Fatalf("stored positions changed: %v", again.Positions)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{-1: defaultLimit, 0: defaultLimit, 5: 5, maxLimit + 1: maxLimit} {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
