package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
)

func waitWritten(t *testing.T, idx *SQLiteIndex, want uint64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if idx.Stats().Written >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("written=%d want>=%d", idx.Stats().Written, want)
}

func TestSQLiteIndex_History(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenSQLite(filepath.Join(dir, "index", "drops.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = idx.Close() }()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []drop.Result{
		{
			RequestID:  "r1",
			Requester:  drop.Requester{Name: "Tom", ID: 7},
			Items:      []items.Item{{ID: 0x0A10}, {ID: 0x0A11, Count: 4}},
			Success:    true,
			EnqueuedAt: base,
			ResolvedAt: base.Add(time.Second),
		},
		{
			RequestID:  "r2",
			Requester:  drop.Requester{Name: "Ann", ID: 8},
			Items:      []items.Item{{ID: 0x0003}},
			Err:        "injection failed: timeout",
			EnqueuedAt: base,
			ResolvedAt: base.Add(2 * time.Second),
		},
		{
			RequestID:  "r3",
			Requester:  drop.Requester{Name: "Tom", ID: 7},
			Items:      []items.Item{{ID: 0x16A2, Count: 0x2B}},
			Success:    true,
			EnqueuedAt: base,
			ResolvedAt: base.Add(3 * time.Second),
		},
	}
	for _, r := range results {
		if err := idx.RecordDrop(r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	waitWritten(t, idx, 3)

	all, err := idx.History(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(all) != 3 || all[0].RequestID != "r3" || all[2].RequestID != "r1" {
		t.Fatalf("history order mismatch: %+v", all)
	}
	if all[1].Success || all[1].Error != "injection failed: timeout" {
		t.Fatalf("failed row=%+v", all[1])
	}

	tom, err := idx.History(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(tom) != 2 {
		t.Fatalf("tom rows=%d want=2", len(tom))
	}
	r1 := tom[1]
	if len(r1.Items) != 2 || r1.Items[0] != (items.Item{ID: 0x0A10}).Hex() || r1.Items[1] != (items.Item{ID: 0x0A11, Count: 4}).Hex() {
		t.Fatalf("r1 items=%v", r1.Items)
	}
	if !r1.ResolvedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("resolved_at=%s", r1.ResolvedAt)
	}

	one, err := idx.History(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(one) != 1 {
		t.Fatalf("limit rows=%d want=1", len(one))
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "drops.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.UpsertCatalogs(map[string]string{"items": "aa", "recipes": "bb", "empty": ""}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("catalog rows=%d want=2", n)
	}
}

func TestSQLiteIndex_ClosedIgnoresWrites(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "drops.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.RecordDrop(drop.Result{RequestID: "late"}); err != nil {
		t.Fatalf("record after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
