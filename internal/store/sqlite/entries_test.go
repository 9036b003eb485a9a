package sqlite

import (
	"context"
	"slices"
	"testing"
)

func TestCountEntries_ScorePredicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-owner")
	seedDataset(t, s, "ds-1", "usr-owner", []int{1, 2, 3, 4, 5, 5, 0})

	tests := []struct {
		name   string
		scores []int
		want   int
	}{
		{"no predicate", nil, 7},
		{"empty predicate", []int{}, 7},
		{"single score", []int{5}, 2},
		{"low scores", []int{1, 2}, 2},
		{"middle scores", []int{3, 4}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CountEntries(ctx, "ds-1", tt.scores)
			if err != nil {
				t.Fatalf("CountEntries: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestListEntryIDs_OrderedByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-owner")
	seedDataset(t, s, "ds-1", "usr-owner", []int{5, 1, 5, 2})

	ids, err := s.ListEntryIDs(ctx, "ds-1", []int{5})
	if err != nil {
		t.Fatalf("ListEntryIDs: %v", err)
	}
	want := []string{"ds-1-e00", "ds-1-e02"}
	if !slices.Equal(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}

	low, err := s.LowScoreEntryIDs(ctx, "ds-1")
	if err != nil {
		t.Fatalf("LowScoreEntryIDs: %v", err)
	}
	if !slices.Equal(low, []string{"ds-1-e01", "ds-1-e03"}) {
		t.Errorf("LowScoreEntryIDs: got %v", low)
	}
}

func TestListEntries_Window(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-owner")
	seedDataset(t, s, "ds-1", "usr-owner", make([]int, 25))

	page, err := s.ListEntries(ctx, "ds-1", nil, 20, 10)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("got %d entries, want 5", len(page))
	}
	if page[0].ID != "ds-1-e20" || page[4].ID != "ds-1-e24" {
		t.Errorf("window: got %s..%s", page[0].ID, page[4].ID)
	}
	if page[0].Score != nil {
		t.Errorf("Score: expected nil, got %d", *page[0].Score)
	}
}

func TestGetEntriesByIDs_ScopedToDataset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-owner")
	seedDataset(t, s, "ds-1", "usr-owner", []int{3, 4})
	seedDataset(t, s, "ds-2", "usr-owner", []int{3})

	got, err := s.GetEntriesByIDs(ctx, "ds-1", []string{"ds-1-e01", "ds-2-e00", "ds-1-e00"})
	if err != nil {
		t.Fatalf("GetEntriesByIDs: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ds-1-e00" || got[1].ID != "ds-1-e01" {
		t.Errorf("got %v", got)
	}
	if got[1].Score == nil || *got[1].Score != 4 {
		t.Errorf("Score: got %v", got[1].Score)
	}

	empty, err := s.GetEntriesByIDs(ctx, "ds-1", nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty ids: got %v %v", empty, err)
	}
}

func TestEachEntry_PositionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-owner")
	seedDataset(t, s, "ds-1", "usr-owner", []int{1, 2, 3})

	var positions []int
	for e, err := range s.EachEntry(ctx, "ds-1") {
		if err != nil {
			t.Fatalf("EachEntry: %v", err)
		}
		positions = append(positions, e.Position)
	}
	if !slices.Equal(positions, []int{0, 1, 2}) {
		t.Errorf("positions: got %v", positions)
	}

	// Breaking early must not leak the cursor.
	for range s.EachEntry(ctx, "ds-1") {
		break
	}
	if _, err := s.CountEntries(ctx, "ds-1", nil); err != nil {
		t.Errorf("store unusable after early break: %v", err)
	}
}
