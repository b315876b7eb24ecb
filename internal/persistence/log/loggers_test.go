package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
)

func TestDropLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewDropLogger(dir)
	at := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	l.w.now = func() time.Time { return at }

	ok := drop.Result{
		RequestID: "r1",
		Requester: drop.Requester{Name: "Tom", ID: 7},
		Items:     []items.Item{{ID: 0x0A10, Count: 29}},
		Success:   true,
	}
	bad := drop.Result{RequestID: "r2", Requester: drop.Requester{Name: "Ann", ID: 8}, Err: "injection failed"}
	if err := l.RecordDrop(ok); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.RecordDrop(bad); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "drops")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "drops-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	var got []Entry
	if err := ReadFile(files[0], func(e Entry) bool { got = append(got, e); return true }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries=%d want=2", len(got))
	}
	if got[0].RequestID != "r1" || !got[0].Success || got[0].RequesterID != 7 {
		t.Fatalf("entry0=%+v", got[0])
	}
	if len(got[0].Items) != 1 || got[0].Items[0] != "0000001D00000A10" {
		t.Fatalf("items=%v", got[0].Items)
	}
	if got[1].Success || got[1].Error != "injection failed" {
		t.Fatalf("entry1=%+v", got[1])
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "drops")
	at := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }
	var closed []string
	w.OnClosed(func(path string) { closed = append(closed, path) })
	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	at = at.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, _ := Files(dir, "drops")
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}
	if len(closed) != 2 || closed[0] != files[0] || closed[1] != files[1] {
		t.Fatalf("closed=%v want=%v", closed, files)
	}
}

func TestReadFile_StopsEarly(t *testing.T) {
	dir := t.TempDir()
	l := NewDropLogger(dir)
	l.w.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	for i := 0; i < 5; i++ {
		if err := l.RecordDrop(drop.Result{RequestID: "x"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	_ = l.Close()
	files, _ := Files(dir, "drops")
	if len(files) == 0 {
		t.Fatalf("no journal files")
	}
	n := 0
	if err := ReadFile(files[0], func(Entry) bool { n++; return n < 2 }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("n=%d want=2", n)
	}
	if err := ReadFile(filepath.Join(dir, "missing.jsonl.zst"), func(Entry) bool { return true }); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
