package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/catalog"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
	persistlog "github.com/Magma5/SysBot.AnimalCrossing/internal/persistence/log"
)

func main() {
	var (
		dir         = flag.String("dir", "./data/journal", "journal dir containing drops-*.jsonl.zst")
		requesterID = flag.Uint64("requester_id", 0, "only show drops for this requester (0 = everyone)")
		failedOnly  = flag.Bool("failed_only", false, "only show failed drops")
		since       = flag.String("since", "", "only show drops resolved at or after this RFC3339 time")
		asJSON      = flag.Bool("json", false, "print matching entries as JSON lines")
		catalogDir  = flag.String("catalog", "", "catalog directory used to print item names (optional)")
		lang        = flag.String("lang", "en", "name language when -catalog is set")
	)
	flag.Parse()

	f := filter{requesterID: *requesterID, failedOnly: *failedOnly}
	if s := strings.TrimSpace(*since); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		f.since = t
	}

	var names items.Names
	if *catalogDir != "" {
		cat, err := catalog.Load(*catalogDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load catalog:", err)
			os.Exit(1)
		}
		n, ok := cat.Names(catalog.NormalizeLanguage(*lang))
		if !ok {
			fmt.Fprintln(os.Stderr, "no names for language", *lang)
			os.Exit(1)
		}
		names = n
	}

	files, err := persistlog.Files(*dir, "drops")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files found in", *dir)
		os.Exit(1)
	}

	p := printer{out: os.Stdout, json: *asJSON, names: names}
	var sum summary
	for _, path := range files {
		err := persistlog.ReadFile(path, func(e persistlog.Entry) bool {
			if !f.match(e) {
				return true
			}
			sum.add(e)
			p.print(e)
			return true
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read journal:", err)
			os.Exit(1)
		}
	}
	if !*asJSON {
		fmt.Printf("%d drops (%d ok, %d failed), %d items\n", sum.total, sum.ok, sum.total-sum.ok, sum.items)
	}
}

type filter struct {
	requesterID uint64
	failedOnly  bool
	since       time.Time
}

func (f filter) match(e persistlog.Entry) bool {
	if f.requesterID != 0 && e.RequesterID != f.requesterID {
		return false
	}
	if f.failedOnly && e.Success {
		return false
	}
	if !f.since.IsZero() && e.ResolvedAt.Before(f.since) {
		return false
	}
	return true
}

type summary struct {
	total, ok, items int
}

func (s *summary) add(e persistlog.Entry) {
	s.total++
	if e.Success {
		s.ok++
	}
	s.items += len(e.Items)
}

type printer struct {
	out   io.Writer
	json  bool
	names items.Names
}

func (p printer) print(e persistlog.Entry) {
	if p.json {
		b, err := json.Marshal(e)
		if err != nil {
			return
		}
		fmt.Fprintln(p.out, string(b))
		return
	}
	status := "ok"
	if !e.Success {
		status = "FAILED: " + e.Error
	}
	fmt.Fprintf(p.out, "%s %s %s (%d) %s\n", e.ResolvedAt.UTC().Format(time.RFC3339), e.RequestID, e.Requester, e.RequesterID, status)
	for _, h := range e.Items {
		fmt.Fprintf(p.out, "  %s%s\n", h, p.label(h))
	}
}

func (p printer) label(hex string) string {
	if p.names == nil {
		return ""
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return ""
	}
	name := p.names.Name(uint16(v & 0xFFFF))
	if name == "" {
		return ""
	}
	return " " + name
}
