package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/drops.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	requesterID := fs.Uint64("requester_id", 0, "requester filter for drops (0 = everyone)")
	_ = fs.Parse(args)

	q := "drops"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "drops.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	err = runQuery(db, q, queryOpts{Limit: *limit, RequesterID: *requesterID}, func(v any) { _ = enc.Encode(v) })
	if err == errUnknownQuery {
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

var errUnknownQuery = fmt.Errorf("unknown query")

type queryOpts struct {
	Limit       int
	RequesterID uint64
}

type dropRow struct {
	RequestID   string `json:"request_id"`
	Requester   string `json:"requester"`
	RequesterID int64  `json:"requester_id"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	ItemCount   int    `json:"item_count"`
	ResolvedAt  string `json:"resolved_at"`
}

type requesterRow struct {
	RequesterID int64  `json:"requester_id"`
	Requester   string `json:"requester"`
	Drops       int    `json:"drops"`
	Failed      int    `json:"failed"`
	Items       int    `json:"items"`
}

type itemRow struct {
	ItemID string `json:"item_id"`
	Drops  int    `json:"drops"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

// runQuery runs one named report against a drop index and emits one value per
// row.
func runQuery(db *sql.DB, q string, opts queryOpts, emit func(any)) error {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	switch q {
	case "drops":
		query := `SELECT request_id,requester,requester_id,success,COALESCE(error,''),item_count,resolved_at FROM drops`
		args := []any{}
		if opts.RequesterID != 0 {
			query += ` WHERE requester_id=?`
			args = append(args, int64(opts.RequesterID))
		}
		query += ` ORDER BY resolved_at DESC LIMIT ?`
		args = append(args, opts.Limit)
		return scanRows(db, query, args, func(rows *sql.Rows) (any, error) {
			var r dropRow
			var success int
			err := rows.Scan(&r.RequestID, &r.Requester, &r.RequesterID, &success, &r.Error, &r.ItemCount, &r.ResolvedAt)
			r.Success = success != 0
			return r, err
		}, emit)

	case "requesters":
		query := `SELECT requester_id, MAX(requester), COUNT(*), SUM(CASE WHEN success=0 THEN 1 ELSE 0 END), SUM(item_count)
			FROM drops GROUP BY requester_id ORDER BY COUNT(*) DESC, requester_id LIMIT ?`
		return scanRows(db, query, []any{opts.Limit}, func(rows *sql.Rows) (any, error) {
			var r requesterRow
			err := rows.Scan(&r.RequesterID, &r.Requester, &r.Drops, &r.Failed, &r.Items)
			return r, err
		}, emit)

	case "items":
		// The id is the low 16 bits, i.e. the last four hex digits.
		query := `SELECT substr(i.item_hex, 13, 4) AS id, COUNT(*) FROM drop_items i
			JOIN drops d ON d.request_id = i.request_id WHERE d.success=1
			GROUP BY id ORDER BY COUNT(*) DESC, id LIMIT ?`
		return scanRows(db, query, []any{opts.Limit}, func(rows *sql.Rows) (any, error) {
			var r itemRow
			err := rows.Scan(&r.ItemID, &r.Drops)
			return r, err
		}, emit)

	case "catalogs":
		return scanRows(db, `SELECT name,digest,updated_at FROM catalogs ORDER BY name`, nil, func(rows *sql.Rows) (any, error) {
			var r catalogRow
			err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt)
			return r, err
		}, emit)

	default:
		return errUnknownQuery
	}
}

func scanRows(db *sql.DB, query string, args []any, scan func(*sql.Rows) (any, error), emit func(any)) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return err
		}
		emit(v)
	}
	return rows.Err()
}
