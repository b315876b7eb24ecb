package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/offsets"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/persistence/indexdb"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/persistence/objstore"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/transport/observer"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/transport/ws"
)

type historyReader interface {
	History(ctx context.Context, requesterID uint64, limit int) ([]indexdb.HistoryRow, error)
}

// app is the HTTP surface of the bot. Stats sources are plain funcs so tests
// can stub them.
type app struct {
	botID         string
	adminLoopback bool

	layout    offsets.Layout
	inventory uint32

	loopStats    func() drop.Stats
	gatewayStats func() ws.Stats
	indexStats   func() indexdb.Stats
	webhookStats func() indexdb.WebhookStats
	archiveStats func() objstore.ArchiverStats
	history      historyReader

	gateway  http.Handler
	observer *observer.Server
}

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/metrics", a.metrics)
	mux.HandleFunc("/admin/v1/history", a.admin(a.historyHandler))
	mux.HandleFunc("/admin/v1/offsets", a.admin(a.offsetsHandler))
	if a.observer != nil {
		mux.HandleFunc("/admin/v1/status", a.observer.BootstrapHandler())
		mux.HandleFunc("/admin/v1/status/ws", a.observer.WSHandler())
	}
	if a.gateway != nil {
		mux.Handle("/v1/ws", a.gateway)
	}
	return mux
}

func (a *app) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if a.adminLoopback && !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (a *app) historyHandler(rw http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		http.Error(rw, "index disabled", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	var requester uint64
	if s := q.Get("requester_id"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(rw, "bad requester_id", http.StatusBadRequest)
			return
		}
		requester = v
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = v
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rows, err := a.history.History(ctx, requester, limit)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []indexdb.HistoryRow{}
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{"drops": rows})
}

func (a *app) offsetsHandler(rw http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name string `json:"name"`
		Addr string `json:"addr"`
	}
	table := a.layout.Table(a.inventory)
	out := make([]entry, 0, len(table))
	for _, e := range table {
		out = append(out, entry{Name: e.Name, Addr: fmt.Sprintf("0x%08X", e.Addr)})
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{"inventory": fmt.Sprintf("0x%08X", a.inventory), "offsets": out})
}

// metrics writes the Prometheus text exposition format.
func (a *app) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	if a.loopStats != nil {
		s := a.loopStats()
		fmt.Fprintf(rw, "# HELP dropbot_queue_depth Drop requests waiting in the queue.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_queue_depth gauge\n")
		fmt.Fprintf(rw, "dropbot_queue_depth{bot=%q} %d\n", a.botID, s.QueueDepth)

		fmt.Fprintf(rw, "# HELP dropbot_drops_total Resolved drop requests by outcome.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_drops_total counter\n")
		fmt.Fprintf(rw, "dropbot_drops_total{bot=%q,outcome=%q} %d\n", a.botID, "injected", s.Injected)
		fmt.Fprintf(rw, "dropbot_drops_total{bot=%q,outcome=%q} %d\n", a.botID, "failed", s.Failed)
		fmt.Fprintf(rw, "dropbot_drops_total{bot=%q,outcome=%q} %d\n", a.botID, "shutdown", s.Shutdown)

		fmt.Fprintf(rw, "# HELP dropbot_cleans_total Clean routines run.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_cleans_total counter\n")
		fmt.Fprintf(rw, "dropbot_cleans_total{bot=%q,outcome=%q} %d\n", a.botID, "ok", s.Cleans)
		fmt.Fprintf(rw, "dropbot_cleans_total{bot=%q,outcome=%q} %d\n", a.botID, "error", s.CleanErrors)

		fmt.Fprintf(rw, "# HELP dropbot_record_errors_total Recorder calls that failed or panicked.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_record_errors_total counter\n")
		fmt.Fprintf(rw, "dropbot_record_errors_total{bot=%q} %d\n", a.botID, s.RecordErrors)
	}

	if a.gatewayStats != nil {
		s := a.gatewayStats()
		fmt.Fprintf(rw, "# HELP dropbot_gateway_sessions Connected gateway sessions.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_gateway_sessions gauge\n")
		fmt.Fprintf(rw, "dropbot_gateway_sessions{bot=%q} %d\n", a.botID, s.Sessions)

		fmt.Fprintf(rw, "# HELP dropbot_gateway_done_dropped_total DONE notifications dropped on a full outbox.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_gateway_done_dropped_total counter\n")
		fmt.Fprintf(rw, "dropbot_gateway_done_dropped_total{bot=%q} %d\n", a.botID, s.DoneDropped)
	}

	if a.indexStats != nil {
		s := a.indexStats()
		fmt.Fprintf(rw, "# HELP dropbot_index_queue_depth SQLite index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "dropbot_index_queue_depth{bot=%q} %d\n", a.botID, s.QueueDepth)

		fmt.Fprintf(rw, "# HELP dropbot_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_index_dropped_total counter\n")
		fmt.Fprintf(rw, "dropbot_index_dropped_total{bot=%q} %d\n", a.botID, s.DropTotal)

		fmt.Fprintf(rw, "# HELP dropbot_index_write_errors_total Index statements that failed.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_index_write_errors_total counter\n")
		fmt.Fprintf(rw, "dropbot_index_write_errors_total{bot=%q} %d\n", a.botID, s.WriteErrors)
	}

	if a.webhookStats != nil {
		s := a.webhookStats()
		fmt.Fprintf(rw, "# HELP dropbot_webhook_queue_depth Webhook events waiting to be sent.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_webhook_queue_depth gauge\n")
		fmt.Fprintf(rw, "dropbot_webhook_queue_depth{bot=%q} %d\n", a.botID, s.QueueDepth)

		fmt.Fprintf(rw, "# HELP dropbot_webhook_flush_fail_total Webhook batches that failed after retry.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_webhook_flush_fail_total counter\n")
		fmt.Fprintf(rw, "dropbot_webhook_flush_fail_total{bot=%q} %d\n", a.botID, s.FlushFailTotal)

		fmt.Fprintf(rw, "# HELP dropbot_webhook_dropped_total Webhook events dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_webhook_dropped_total counter\n")
		fmt.Fprintf(rw, "dropbot_webhook_dropped_total{bot=%q} %d\n", a.botID, s.QueueDroppedTotal)
	}

	if a.archiveStats != nil {
		s := a.archiveStats()
		fmt.Fprintf(rw, "# HELP dropbot_archive_queue_depth Journal files waiting for upload.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_archive_queue_depth gauge\n")
		fmt.Fprintf(rw, "dropbot_archive_queue_depth{bot=%q} %d\n", a.botID, s.QueueDepth)

		fmt.Fprintf(rw, "# HELP dropbot_archive_uploads_total Journal file uploads by outcome.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_archive_uploads_total counter\n")
		fmt.Fprintf(rw, "dropbot_archive_uploads_total{bot=%q,outcome=%q} %d\n", a.botID, "ok", s.UploadedTotal)
		fmt.Fprintf(rw, "dropbot_archive_uploads_total{bot=%q,outcome=%q} %d\n", a.botID, "failed", s.FailedTotal)
		fmt.Fprintf(rw, "dropbot_archive_uploads_total{bot=%q,outcome=%q} %d\n", a.botID, "dropped", s.DroppedTotal)

		fmt.Fprintf(rw, "# HELP dropbot_archive_last_success_unix Unix time of the last successful upload.\n")
		fmt.Fprintf(rw, "# TYPE dropbot_archive_last_success_unix gauge\n")
		fmt.Fprintf(rw, "dropbot_archive_last_success_unix{bot=%q} %d\n", a.botID, s.LastSuccess)
	}
}
