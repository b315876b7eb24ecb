package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
)

// WebhookConfig points a remote mirror of the drop index at an HTTP ingest
// endpoint that accepts {"events":[...]} batches.
type WebhookConfig struct {
	Endpoint      string
	Token         string
	BotID         string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

type WebhookIndex struct {
	cfg        WebhookConfig
	httpClient *http.Client

	ch   chan webhookEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped atomic.Uint64
	flushFail    atomic.Uint64
	flushed      atomic.Uint64
}

type webhookEvent struct {
	Kind    string `json:"kind"`
	BotID   string `json:"bot_id"`
	Payload any    `json:"payload"`
}

type webhookDropPayload struct {
	RequestID   string   `json:"request_id"`
	Requester   string   `json:"requester"`
	RequesterID uint64   `json:"requester_id"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
	Items       []string `json:"items"`
	EnqueuedAt  string   `json:"enqueued_at"`
	ResolvedAt  string   `json:"resolved_at"`
}

type WebhookStats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueDroppedTotal uint64 `json:"queue_dropped_total"`
	FlushFailTotal    uint64 `json:"flush_fail_total"`
	FlushedTotal      uint64 `json:"flushed_total"`
}

func OpenWebhook(cfg WebhookConfig) (*WebhookIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.BotID = strings.TrimSpace(cfg.BotID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty webhook endpoint")
	}
	if cfg.BotID == "" {
		return nil, fmt.Errorf("empty bot id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &WebhookIndex{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		ch: make(chan webhookEvent, 4096),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()

	return d, nil
}

func (d *WebhookIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

// RecordDrop implements drop.Recorder.
func (d *WebhookIndex) RecordDrop(res drop.Result) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	hex := make([]string, len(res.Items))
	for i, it := range res.Items {
		hex[i] = it.Hex()
	}
	p := webhookDropPayload{
		RequestID:   res.RequestID,
		Requester:   res.Requester.Name,
		RequesterID: res.Requester.ID,
		Success:     res.Success,
		Error:       res.Err,
		Items:       hex,
		EnqueuedAt:  formatTime(res.EnqueuedAt),
		ResolvedAt:  formatTime(res.ResolvedAt),
	}
	d.enqueue(webhookEvent{Kind: "drop", BotID: d.cfg.BotID, Payload: p})
	return nil
}

func (d *WebhookIndex) Stats() WebhookStats {
	return WebhookStats{
		QueueDepth:        len(d.ch),
		QueueDroppedTotal: d.queueDropped.Load(),
		FlushFailTotal:    d.flushFail.Load(),
		FlushedTotal:      d.flushed.Load(),
	}
}

func (d *WebhookIndex) enqueue(ev webhookEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.queueDropped.Add(1)
		d.printf("webhook queue full; drop kind=%s bot=%s", ev.Kind, ev.BotID)
	}
}

// loop batches events; a batch that fails to send is kept and retried on the
// next flush, up to maxRetained events.
func (d *WebhookIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	maxRetained := d.cfg.BatchSize * 64
	batch := make([]webhookEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("webhook flush failed batch=%d err=%v", len(batch), err)
			if len(batch) > maxRetained {
				over := len(batch) - maxRetained
				d.queueDropped.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		d.flushed.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *WebhookIndex) sendBatch(events []webhookEvent) error {
	if len(events) == 0 {
		return nil
	}

	body := struct {
		Events []webhookEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-dropbot-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *WebhookIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
