package memory

import (
	"context"
	"testing"
	"time"

	"github.com/formrelay/capture_layer/internal/capture"
)

func TestInsertSelectRoundTrip(t *testing.T) {
	store := New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	store.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	ctx := context.Background()
	if err := store.Insert(ctx, capture.Record{"email": "a@b.com", "name": "Ann"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, capture.Record{"email": "b@c.com"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := store.SelectAll(ctx)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Values["email"] != "a@b.com" || rows[1].Values["email"] != "b@c.com" {
		t.Fatalf("rows out of insertion order: %+v", rows)
	}
	if !rows[1].Created.After(rows[0].Created) {
		t.Fatalf("created timestamps not ascending")
	}
}

func TestSelectAllCopiesValues(t *testing.T) {
	store := New()
	ctx := context.Background()
	if err := store.Insert(ctx, capture.Record{"email": "a@b.com"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, _ := store.SelectAll(ctx)
	rows[0].Values["email"] = "mutated"

	again, _ := store.SelectAll(ctx)
	if again[0].Values["email"] != "a@b.com" {
		t.Fatalf("stored row was mutated through the returned copy")
	}
}
