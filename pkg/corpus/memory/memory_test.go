package memory_test

import (
	"context"
	"testing"

	"github.com/quorumhq/quorum/pkg/corpus"
	"github.com/quorumhq/quorum/pkg/corpus/memory"
)

func TestSearch_OrdersByCosineDistance(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	ctx := context.Background()

	err := s.UpsertChildren(ctx, []corpus.ChildChunk{
		{ID: "c1", ParentID: "p1", Embedding: []float32{1, 0, 0}},
		{ID: "c2", ParentID: "p2", Embedding: []float32{0, 1, 0}},
		{ID: "c3", ParentID: "p1", Embedding: []float32{0.9, 0.1, 0}},
	})
	if err != nil {
		t.Fatalf("UpsertChildren: %v", err)
	}

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Search: got %d matches, want 3", len(matches))
	}
	if matches[0].ChildID != "c1" || matches[1].ChildID != "c3" || matches[2].ChildID != "c2" {
		t.Errorf("order=%s,%s,%s, want c1,c3,c2",
			matches[0].ChildID, matches[1].ChildID, matches[2].ChildID)
	}
	if matches[0].Distance > 1e-9 {
		t.Errorf("identical vector: distance=%g, want ~0", matches[0].Distance)
	}
}

func TestSearch_TiesBreakByInsertionOrder(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	ctx := context.Background()

	// Two chunks at the exact same distance from the query.
	err := s.UpsertChildren(ctx, []corpus.ChildChunk{
		{ID: "second", ParentID: "p", Embedding: []float32{0, 1}},
		{ID: "first", ParentID: "p", Embedding: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("UpsertChildren: %v", err)
	}

	matches, err := s.Search(ctx, []float32{1, 1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if matches[0].ChildID != "second" || matches[1].ChildID != "first" {
		t.Errorf("tie order=%s,%s, want insertion order second,first",
			matches[0].ChildID, matches[1].ChildID)
	}
}

func TestSearch_LimitAndEmpty(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	ctx := context.Background()

	matches, err := s.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty store: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("empty store: got %d matches, want 0", len(matches))
	}

	err = s.UpsertChildren(ctx, []corpus.ChildChunk{
		{ID: "a", ParentID: "p", Embedding: []float32{1, 0}},
		{ID: "b", ParentID: "p", Embedding: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("UpsertChildren: %v", err)
	}
	matches, err = s.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("limit 1: got %d matches, want 1", len(matches))
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	ctx := context.Background()
	if err := s.UpsertChildren(ctx, []corpus.ChildChunk{{ID: "a", ParentID: "p", Embedding: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("UpsertChildren: %v", err)
	}
	if _, err := s.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Fatal("Search: err=nil, want dimension mismatch")
	}
}

func TestParents_UpsertGetList(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	ctx := context.Background()

	err := s.UpsertParents(ctx, []corpus.ParentChunk{
		{ID: "p1", Speaker: "Shreyas Doshi", Text: "on pre-mortems"},
		{ID: "p2", Speaker: "Claire Vo", Text: "on ai tooling"},
		{ID: "p3", Speaker: "Shreyas Doshi", Text: "on leverage"},
	})
	if err != nil {
		t.Fatalf("UpsertParents: %v", err)
	}

	got, err := s.GetParents(ctx, []string{"p1", "p3", "missing"})
	if err != nil {
		t.Fatalf("GetParents: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("GetParents: got %d parents, want 2 (unknown ID silently absent)", len(got))
	}
	if got["p1"].Speaker != "Shreyas Doshi" {
		t.Errorf("p1 speaker=%q, want %q", got["p1"].Speaker, "Shreyas Doshi")
	}

	speakers, err := s.ListSpeakers(ctx)
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	want := []string{"Claire Vo", "Shreyas Doshi"}
	if len(speakers) != len(want) || speakers[0] != want[0] || speakers[1] != want[1] {
		t.Errorf("ListSpeakers=%v, want %v", speakers, want)
	}
}

func TestReset_EmptiesBothCollections(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	ctx := context.Background()

	_ = s.UpsertParents(ctx, []corpus.ParentChunk{{ID: "p", Speaker: "A", Text: "t"}})
	_ = s.UpsertChildren(ctx, []corpus.ChildChunk{{ID: "c", ParentID: "p", Embedding: []float32{1}}})

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	speakers, err := s.ListSpeakers(ctx)
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	if len(speakers) != 0 {
		t.Errorf("speakers after reset=%v, want none", speakers)
	}
	matches, err := s.Search(ctx, []float32{1}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches after reset=%d, want 0", len(matches))
	}
}
