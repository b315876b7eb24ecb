package drop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

//go:generate go tool mockgen -destination=./mocks/injector_mock.go -package=mocks . Injector,Cleaner

// Injector writes bytes into game memory at addr.
type Injector interface {
	Inject(ctx context.Context, addr uint32, data []byte) error
}

// Cleaner runs the "pick up items around the bot" routine.
type Cleaner interface {
	Clean(ctx context.Context) error
}

// Recorder receives every resolved request (journal, index).
type Recorder interface {
	RecordDrop(res Result) error
}

type LoopConfig struct {
	Queue    *Queue
	Clean    *CleanFlag
	Injector Injector
	Cleaner  Cleaner

	// Target is the address of the first pocket slot the batch is written to.
	Target        uint32
	InjectTimeout time.Duration
	Recorders     []Recorder
	Logger        *log.Logger
}

// Loop is the single consumer of a Queue.
type Loop struct {
	queue    *Queue
	clean    *CleanFlag
	injector Injector
	cleaner  Cleaner
	target   uint32
	timeout  time.Duration
	recs     []Recorder
	log      *log.Logger

	running atomic.Bool
	stats   loopCounters
}

type loopCounters struct {
	injected atomic.Uint64
	failed   atomic.Uint64
	shutdown atomic.Uint64
	cleans   atomic.Uint64
	cleanErr atomic.Uint64
	recErr   atomic.Uint64
}

type Stats struct {
	QueueDepth   int    `json:"queue_depth"`
	Injected     uint64 `json:"injected"`
	Failed       uint64 `json:"failed"`
	Shutdown     uint64 `json:"shutdown"`
	Cleans       uint64 `json:"cleans"`
	CleanErrors  uint64 `json:"clean_errors"`
	CleanPending bool   `json:"clean_pending"`
	RecordErrors uint64 `json:"record_errors"`
}

func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Queue == nil {
		return nil, errors.New("drop loop: queue is required")
	}
	if cfg.Injector == nil {
		return nil, errors.New("drop loop: injector is required")
	}
	clean := cfg.Clean
	if clean == nil {
		clean = NewCleanFlag()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{
		queue:    cfg.Queue,
		clean:    clean,
		injector: cfg.Injector,
		cleaner:  cfg.Cleaner,
		target:   cfg.Target,
		timeout:  cfg.InjectTimeout,
		recs:     cfg.Recorders,
		log:      logger,
	}, nil
}

// Run drains the queue until ctx ends or the queue is closed. On return every
// request still pending has been failed with ErrShutdown.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("drop loop: already running")
	}
	defer func() {
		if n := l.queue.Close(); n > 0 {
			l.stats.shutdown.Add(uint64(n))
			l.log.Printf("shutdown: failed %d pending drop requests", n)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.clean.Take() {
			l.runClean(ctx)
		}
		if r, ok := l.queue.TryDequeue(); ok {
			l.process(ctx, r)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.queue.Closed():
			return nil
		case <-l.queue.Ready():
		case <-l.clean.Signal():
		}
	}
}

func (l *Loop) process(ctx context.Context, r *Request) {
	err := l.inject(ctx, r)
	if !r.resolve(err) {
		return
	}
	if err != nil {
		l.stats.failed.Add(1)
		l.log.Printf("drop %s for %s (%d): %v", r.ID(), r.requester.Name, r.requester.ID, err)
	} else {
		l.stats.injected.Add(1)
		l.log.Printf("drop %s for %s (%d): injected %d items", r.ID(), r.requester.Name, r.requester.ID, r.Len())
	}
	res, _ := r.Result()
	for _, rec := range l.recs {
		if rec == nil {
			continue
		}
		if err := l.record(rec, res); err != nil {
			l.stats.recErr.Add(1)
			l.log.Printf("record drop %s: %v", r.ID(), err)
		}
	}
}

// record hands res to one sink. A panicking sink affects only that call.
func (l *Loop) record(rec Recorder, res Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return rec.RecordDrop(res)
}

// inject performs the memory write for one request. Shutdown does not
// interrupt a write already started; a panic fails only this request.
func (l *Loop) inject(ctx context.Context, r *Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInjection, p)
		}
	}()
	ictx := context.WithoutCancel(ctx)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ictx, l.timeout)
		defer cancel()
	}
	if err := l.injector.Inject(ictx, l.target, r.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrInjection, err)
	}
	return nil
}

func (l *Loop) runClean(ctx context.Context) {
	if l.cleaner == nil {
		l.log.Printf("clean requested but no cleaner configured")
		return
	}
	defer func() {
		if p := recover(); p != nil {
			l.stats.cleanErr.Add(1)
			l.log.Printf("clean: panic: %v", p)
		}
	}()
	if err := l.cleaner.Clean(context.WithoutCancel(ctx)); err != nil {
		l.stats.cleanErr.Add(1)
		l.log.Printf("clean: %v", err)
		return
	}
	l.stats.cleans.Add(1)
}

func (l *Loop) Stats() Stats {
	return Stats{
		QueueDepth:   l.queue.Len(),
		Injected:     l.stats.injected.Load(),
		Failed:       l.stats.failed.Load(),
		Shutdown:     l.stats.shutdown.Load(),
		Cleans:       l.stats.cleans.Load(),
		CleanErrors:  l.stats.cleanErr.Load(),
		CleanPending: l.clean.Pending(),
		RecordErrors: l.stats.recErr.Load(),
	}
}
