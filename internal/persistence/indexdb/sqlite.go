package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
)

// SQLiteIndex is a queryable secondary index of resolved drops. The zstd
// journal stays the source of truth; rows are dropped if the writer falls
// behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTotal   atomic.Uint64
	written     atomic.Uint64
	writeErrors atomic.Uint64
}

type req struct {
	drop dropRow
}

type dropRow struct {
	RequestID   string
	Requester   string
	RequesterID uint64
	Success     bool
	Error       string
	Items       []string
	EnqueuedAt  time.Time
	ResolvedAt  time.Time
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
	Written       uint64 `json:"written"`
	WriteErrors   uint64 `json:"write_errors"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drops (
			request_id TEXT PRIMARY KEY,
			requester TEXT NOT NULL,
			requester_id INTEGER NOT NULL,
			success INTEGER NOT NULL,
			error TEXT,
			item_count INTEGER NOT NULL,
			enqueued_at TEXT NOT NULL,
			resolved_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drops_requester_resolved ON drops(requester_id, resolved_at);`,
		`CREATE INDEX IF NOT EXISTS idx_drops_resolved ON drops(resolved_at);`,
		`CREATE TABLE IF NOT EXISTS drop_items (
			request_id TEXT NOT NULL REFERENCES drops(request_id) ON DELETE CASCADE,
			slot INTEGER NOT NULL,
			item_hex TEXT NOT NULL,
			PRIMARY KEY (request_id, slot)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordDrop implements drop.Recorder. It never blocks the drop loop.
func (s *SQLiteIndex) RecordDrop(res drop.Result) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	hex := make([]string, len(res.Items))
	for i, it := range res.Items {
		hex[i] = it.Hex()
	}
	r := dropRow{
		RequestID:   res.RequestID,
		Requester:   res.Requester.Name,
		RequesterID: res.Requester.ID,
		Success:     res.Success,
		Error:       res.Err,
		Items:       hex,
		EnqueuedAt:  res.EnqueuedAt,
		ResolvedAt:  res.ResolvedAt,
	}
	select {
	case s.ch <- req{drop: r}:
	default:
		// Drop if the indexer falls behind; the journal remains the source of truth.
		s.dropTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropTotal.Load(),
		Written:       s.written.Load(),
		WriteErrors:   s.writeErrors.Load(),
	}
}

// UpsertCatalogs stores the loaded catalog digests so history rows can be
// tied to the data they were resolved against.
func (s *SQLiteIndex) UpsertCatalogs(digests map[string]string) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	names := make([]string, 0, len(digests))
	for n := range digests {
		names = append(names, n)
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,updated_at) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, n := range names {
		if n == "" || digests[n] == "" {
			continue
		}
		if _, err := stmt.Exec(n, digests[n], now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// HistoryRow is one resolved drop as stored in the index.
type HistoryRow struct {
	RequestID   string    `json:"request_id"`
	Requester   string    `json:"requester"`
	RequesterID uint64    `json:"requester_id"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Items       []string  `json:"items"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// History returns the newest drops first. requesterID 0 means everyone.
func (s *SQLiteIndex) History(ctx context.Context, requesterID uint64, limit int) ([]HistoryRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `SELECT request_id, requester, requester_id, success, COALESCE(error,''), enqueued_at, resolved_at FROM drops`
	args := []any{}
	if requesterID != 0 {
		q += ` WHERE requester_id = ?`
		args = append(args, int64(requesterID))
	}
	q += ` ORDER BY resolved_at DESC, request_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []HistoryRow
	for rows.Next() {
		var (
			h        HistoryRow
			rid      int64
			success  int
			enq, res string
		)
		if err := rows.Scan(&h.RequestID, &h.Requester, &rid, &success, &h.Error, &enq, &res); err != nil {
			_ = rows.Close()
			return nil, err
		}
		h.RequesterID = uint64(rid)
		h.Success = success != 0
		h.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enq)
		h.ResolvedAt, _ = time.Parse(time.RFC3339Nano, res)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		items, err := s.itemsFor(ctx, out[i].RequestID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *SQLiteIndex) itemsFor(ctx context.Context, requestID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_hex FROM drop_items WHERE request_id = ? ORDER BY slot`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDrop, _ := s.db.Prepare(`INSERT OR REPLACE INTO drops(request_id,requester,requester_id,success,error,item_count,enqueued_at,resolved_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertItem, _ := s.db.Prepare(`INSERT OR REPLACE INTO drop_items(request_id,slot,item_hex) VALUES(?,?,?)`)
	defer func() {
		if insertDrop != nil {
			_ = insertDrop.Close()
		}
		if insertItem != nil {
			_ = insertItem.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		pending       uint64
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		} else {
			s.written.Add(pending)
		}
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}

	// Commit when the channel drains so History sees fresh rows.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.dropTotal.Add(1)
			continue
		}
		d := r.drop
		if insertDrop == nil || insertItem == nil {
			rollback()
			continue
		}
		errText := sql.NullString{String: d.Error, Valid: strings.TrimSpace(d.Error) != ""}
		if _, err := tx.Stmt(insertDrop).Exec(
			d.RequestID,
			d.Requester,
			int64(d.RequesterID),
			boolInt(d.Success),
			errText,
			len(d.Items),
			formatTime(d.EnqueuedAt),
			formatTime(d.ResolvedAt),
		); err != nil {
			rollback()
			continue
		}
		opCount++
		ok := true
		for i, h := range d.Items {
			if _, err := tx.Stmt(insertItem).Exec(d.RequestID, i, h); err != nil {
				rollback()
				ok = false
				break
			}
			opCount++
		}
		if ok {
			pending++
		}
		flushIfNeeded()
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
