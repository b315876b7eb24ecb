// Package drop batches item records into requests and delivers them, one at
// a time, through a single injection loop.
package drop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
)

// DefaultMaxItems caps a request when no limit is configured.
const DefaultMaxItems = 7

var (
	ErrEmptyRequest = fmt.Errorf("%w: no items requested", items.ErrInvalidInput)
	ErrQueueClosed  = errors.New("drop queue closed")
	ErrShutdown     = errors.New("drop queue shut down with request pending")
	ErrInjection    = errors.New("injection failed")
)

type Requester struct {
	Name string `json:"name"`
	ID   uint64 `json:"id"`
}

// Result is what a request resolves to.
type Result struct {
	RequestID  string       `json:"request_id"`
	Requester  Requester    `json:"requester"`
	Items      []items.Item `json:"items"`
	Success    bool         `json:"success"`
	Err        string       `json:"error,omitempty"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
	ResolvedAt time.Time    `json:"resolved_at"`

	err error
}

// Error returns the failure cause, nil on success.
func (r Result) Error() error { return r.err }

type BuildOptions struct {
	MaxItems int
	Stacks   items.Stacks
}

type BuildResult struct {
	Requested int
	Kept      int
	Truncated bool
}

// Request is a requester-attributed batch of item records. Its items never
// change after Build; only the completion slot moves from pending to resolved.
type Request struct {
	id        string
	requester Requester
	items     []items.Item
	truncated bool
	created   time.Time

	once     sync.Once
	done     chan struct{}
	result   Result
	onFinish func(Result)
}

// Build validates raw, truncates it to the item limit, fills unset stack counts
// and attaches onFinish as the completion callback. onFinish runs exactly once,
// on its own goroutine.
func Build(who Requester, raw []items.Item, opts BuildOptions, onFinish func(Result)) (*Request, BuildResult, error) {
	if len(raw) == 0 {
		return nil, BuildResult{}, ErrEmptyRequest
	}
	for _, it := range raw {
		if it.IsNone() {
			return nil, BuildResult{}, fmt.Errorf("%w: empty item slot", items.ErrInvalidInput)
		}
	}
	limit := opts.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}
	br := BuildResult{Requested: len(raw)}
	if len(raw) > limit {
		raw = raw[:limit]
		br.Truncated = true
	}
	br.Kept = len(raw)

	r := &Request{
		id:        uuid.NewString(),
		requester: who,
		items:     items.FillStacks(raw, opts.Stacks),
		truncated: br.Truncated,
		created:   time.Now().UTC(),
		done:      make(chan struct{}),
		onFinish:  onFinish,
	}
	return r, br, nil
}

func (r *Request) ID() string           { return r.id }
func (r *Request) Requester() Requester { return r.requester }
func (r *Request) Truncated() bool      { return r.truncated }
func (r *Request) Len() int             { return len(r.items) }

// Items returns a copy of the batch.
func (r *Request) Items() []items.Item {
	out := make([]items.Item, len(r.items))
	copy(out, r.items)
	return out
}

// Bytes is the batch in its in-memory encoding.
func (r *Request) Bytes() []byte { return items.Encode(r.items) }

// Done is closed once the request resolves.
func (r *Request) Done() <-chan struct{} { return r.done }

// Result returns the outcome; ok is false while pending.
func (r *Request) Result() (res Result, ok bool) {
	select {
	case <-r.done:
		return r.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the request resolves or ctx ends.
func (r *Request) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve settles the completion slot. Later calls are ignored and report false.
func (r *Request) resolve(err error) bool {
	fired := false
	r.once.Do(func() {
		fired = true
		r.result = Result{
			RequestID:  r.id,
			Requester:  r.requester,
			Items:      r.Items(),
			Success:    err == nil,
			EnqueuedAt: r.created,
			ResolvedAt: time.Now().UTC(),
			err:        err,
		}
		if err != nil {
			r.result.Err = err.Error()
		}
		close(r.done)
		if r.onFinish != nil {
			res := r.result
			go r.onFinish(res)
		}
	})
	return fired
}
