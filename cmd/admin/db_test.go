package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/persistence/indexdb"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index", "drops.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []drop.Result{
		{RequestID: "r1", Requester: drop.Requester{Name: "Tom", ID: 7}, Items: []items.Item{{ID: 0x0A10}, {ID: 0x0A11}}, Success: true, EnqueuedAt: base, ResolvedAt: base.Add(time.Second)},
		{RequestID: "r2", Requester: drop.Requester{Name: "Ann", ID: 8}, Items: []items.Item{{ID: 0x0A10}}, Err: "injection failed", EnqueuedAt: base, ResolvedAt: base.Add(2 * time.Second)},
		{RequestID: "r3", Requester: drop.Requester{Name: "Tom", ID: 7}, Items: []items.Item{{ID: 0x0A10, Count: 3}}, Success: true, EnqueuedAt: base, ResolvedAt: base.Add(3 * time.Second)},
	}
	for _, r := range results {
		if err := idx.RecordDrop(r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := idx.UpsertCatalogs(map[string]string{"items": "abc"}); err != nil {
		t.Fatalf("upsert catalogs: %v", err)
	}
	// Close drains the writer queue.
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func query(t *testing.T, path, q string, opts queryOpts) []any {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var out []any
	if err := runQuery(db, q, opts, func(v any) { out = append(out, v) }); err != nil {
		t.Fatalf("%s: %v", q, err)
	}
	return out
}

func TestRunQuery_Drops(t *testing.T) {
	path := seedIndex(t)

	rows := query(t, path, "drops", queryOpts{})
	if len(rows) != 3 {
		t.Fatalf("rows=%d want=3", len(rows))
	}
	first := rows[0].(dropRow)
	if first.RequestID != "r3" || first.ItemCount != 1 || !first.Success {
		t.Fatalf("first=%+v", first)
	}

	rows = query(t, path, "drops", queryOpts{RequesterID: 8})
	if len(rows) != 1 {
		t.Fatalf("filtered rows=%d want=1", len(rows))
	}
	if r := rows[0].(dropRow); r.Success || r.Error != "injection failed" {
		t.Fatalf("row=%+v", r)
	}
}

func TestRunQuery_Requesters(t *testing.T) {
	rows := query(t, seedIndex(t), "requesters", queryOpts{})
	if len(rows) != 2 {
		t.Fatalf("rows=%d want=2", len(rows))
	}
	tom := rows[0].(requesterRow)
	if tom.RequesterID != 7 || tom.Drops != 2 || tom.Failed != 0 || tom.Items != 3 {
		t.Fatalf("tom=%+v", tom)
	}
	ann := rows[1].(requesterRow)
	if ann.RequesterID != 8 || ann.Failed != 1 {
		t.Fatalf("ann=%+v", ann)
	}
}

func TestRunQuery_ItemsCountsOnlySuccessfulDrops(t *testing.T) {
	rows := query(t, seedIndex(t), "items", queryOpts{})
	if len(rows) != 2 {
		t.Fatalf("rows=%d want=2", len(rows))
	}
	top := rows[0].(itemRow)
	if top.ItemID != "0A10" || top.Drops != 2 {
		t.Fatalf("top=%+v", top)
	}
}

func TestRunQuery_Catalogs(t *testing.T) {
	rows := query(t, seedIndex(t), "catalogs", queryOpts{})
	if len(rows) != 1 || rows[0].(catalogRow).Digest != "abc" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestRunQuery_Unknown(t *testing.T) {
	db, err := sql.Open("sqlite", seedIndex(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := runQuery(db, "nope", queryOpts{}, func(any) {}); err != errUnknownQuery {
		t.Fatalf("err=%v want=%v", err, errUnknownQuery)
	}
}
