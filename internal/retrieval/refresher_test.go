package retrieval

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestRefresherPicksUpNewDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "saving_money.txt"), "# Saving\nSaving money means you keep part of what you earn for a future goal.")

	coord := NewCoordinator(DirSource{Dir: dir}, nil, nil, nil, nil)
	if _, err := coord.Ingest(context.Background()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := coord.Topics(); !reflect.DeepEqual(got, []string{"saving money"}) {
		t.Fatalf("unexpected topics before refresh %v", got)
	}

	r, err := StartRefresher(coord, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("start refresher: %v", err)
	}
	writeFile(t, filepath.Join(dir, "budgeting.md"), "# Budgets\nA budget is a plan that shows how you will spend and save your income.")

	want := []string{"budgeting", "saving money"}
	deadline := time.Now().Add(5 * time.Second)
	for !reflect.DeepEqual(coord.Topics(), want) {
		if time.Now().After(deadline) {
			_ = r.Stop()
			t.Fatalf("refresher never re-ingested, topics %v", coord.Topics())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	results, err := coord.Search(context.Background(), "budget plan income", 1)
	if err != nil || len(results) != 1 || results[0].Chunk.Source != "budgeting.md" {
		t.Fatalf("expected refreshed chunk searchable, got %+v err=%v", results, err)
	}
}

func TestTopicsCollapseSameStem(t *testing.T) {
	coord := NewCoordinator(StaticSource{
		{Name: "budget.md", Text: "# Budgets\nA budget is a plan that shows how you will spend your money."},
		{Name: "budget.txt", Text: "# More budgets\nWrite down what you earn and what you spend every single week."},
	}, nil, nil, nil, nil)
	stats, err := coord.Ingest(context.Background())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Chunks != 2 {
		t.Fatalf("expected both documents indexed, got %d chunks", stats.Chunks)
	}
	if got := coord.Topics(); !reflect.DeepEqual(got, []string{"budget"}) {
		t.Fatalf("unexpected topics %v", got)
	}
}
