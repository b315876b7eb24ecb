package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu       sync.Mutex
	onClosed func(path string)
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// OnClosed registers fn to receive the path of every file the writer finishes,
// on rotation and on Close.
func (w *JSONLZstdWriter) OnClosed(fn func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onClosed = fn
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 32*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	var closed string
	if w.f != nil {
		closed = w.f.Name()
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	if closed != "" && w.onClosed != nil {
		w.onClosed(closed)
	}
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Entry is one journal line.
type Entry struct {
	RequestID   string    `json:"request_id"`
	Requester   string    `json:"requester"`
	RequesterID uint64    `json:"requester_id"`
	Items       []string  `json:"items"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

func EntryFor(res drop.Result) Entry {
	hex := make([]string, len(res.Items))
	for i, it := range res.Items {
		hex[i] = it.Hex()
	}
	return Entry{
		RequestID:   res.RequestID,
		Requester:   res.Requester.Name,
		RequesterID: res.Requester.ID,
		Items:       hex,
		Success:     res.Success,
		Error:       res.Err,
		EnqueuedAt:  res.EnqueuedAt,
		ResolvedAt:  res.ResolvedAt,
	}
}

// DropLogger journals every resolved drop request (compressed).
type DropLogger struct{ w *JSONLZstdWriter }

func NewDropLogger(dir string) *DropLogger {
	return &DropLogger{w: NewJSONLZstdWriter(dir, "drops")}
}

// RecordDrop implements drop.Recorder.
func (l *DropLogger) RecordDrop(res drop.Result) error { return l.w.Write(EntryFor(res)) }
func (l *DropLogger) Close() error                     { return l.w.Close() }

// OnClosed forwards finished journal files to fn (see JSONLZstdWriter.OnClosed).
func (l *DropLogger) OnClosed(fn func(path string)) { l.w.OnClosed(fn) }
