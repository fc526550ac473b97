package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := OpenHistoryStore(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistoryAppendAndListNewestFirst(t *testing.T) {
	store := openTestHistory(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i, prompt := range []string{"first", "second", "third"} {
		rec, err := store.Append(ctx, models.HistoryRecord{
			Prompt:        prompt,
			SQL:           "SELECT 1",
			Visualization: models.VisualizationTable,
			Success:       i != 1,
			RowCount:      i,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if rec.ID == "" {
			t.Fatalf("expected generated id")
		}
	}

	page, err := store.List(ctx, models.ListHistoryRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Records) != 2 || page.Records[0].Prompt != "third" || page.Records[1].Prompt != "second" {
		t.Fatalf("unexpected first page: %+v", page.Records)
	}
	if page.Records[1].Success {
		t.Fatalf("expected failure flag to round trip")
	}
	if page.NextPageToken != "2" {
		t.Fatalf("unexpected next token: %q", page.NextPageToken)
	}

	next, err := store.List(ctx, models.ListHistoryRequest{PageSize: 2, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next.Records) != 1 || next.Records[0].Prompt != "first" || next.NextPageToken != "" {
		t.Fatalf("unexpected last page: %+v", next)
	}
	if !next.Records[0].CreatedAt.Equal(base) {
		t.Fatalf("timestamp did not round trip: %v", next.Records[0].CreatedAt)
	}
}

func TestHistoryRejectsBadToken(t *testing.T) {
	store := openTestHistory(t)
	if _, err := store.List(context.Background(), models.ListHistoryRequest{PageToken: "abc"}); err == nil {
		t.Fatalf("expected invalid token error")
	}
}
