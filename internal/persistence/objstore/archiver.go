package objstore

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type ArchiverStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DroppedTotal  uint64 `json:"dropped_total"`
	UploadedTotal uint64 `json:"uploaded_total"`
	FailedTotal   uint64 `json:"failed_total"`
	LastSuccess   int64  `json:"last_success_unix"`
	LastError     int64  `json:"last_error_unix"`
}

// Archiver uploads finished journal files in the background. Object keys are
// the file's path relative to baseDir, under prefix.
type Archiver struct {
	up      uploader
	baseDir string
	prefix  string
	logger  *log.Logger
	backoff time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan string
	wg     sync.WaitGroup

	dropped     atomic.Uint64
	uploaded    atomic.Uint64
	failed      atomic.Uint64
	lastSuccess atomic.Int64
	lastError   atomic.Int64
}

func NewArchiver(up uploader, baseDir, prefix string, queueSize int, logger *log.Logger) *Archiver {
	if queueSize <= 0 {
		queueSize = 256
	}
	a := &Archiver{
		up:      up,
		baseDir: baseDir,
		prefix:  strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		logger:  logger,
		backoff: 200 * time.Millisecond,
		jobs:    make(chan string, queueSize),
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for p := range a.jobs {
			a.upload(p)
		}
	}()
	return a
}

// Enqueue schedules localPath for upload. It never blocks; a full queue or a
// closed archiver drops the file (it stays on disk).
func (a *Archiver) Enqueue(localPath string) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.jobs <- localPath:
	default:
		n := a.dropped.Add(1)
		a.printf("archive drop local=%s reason=queue_full dropped_total=%d", localPath, n)
	}
}

// Close uploads everything still queued, then returns.
func (a *Archiver) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Archiver) Stats() ArchiverStats {
	if a == nil {
		return ArchiverStats{}
	}
	return ArchiverStats{
		QueueDepth:    len(a.jobs),
		QueueCapacity: cap(a.jobs),
		DroppedTotal:  a.dropped.Load(),
		UploadedTotal: a.uploaded.Load(),
		FailedTotal:   a.failed.Load(),
		LastSuccess:   a.lastSuccess.Load(),
		LastError:     a.lastError.Load(),
	}
}

func (a *Archiver) upload(localPath string) {
	key, err := a.objectKey(localPath)
	if err != nil {
		a.failed.Add(1)
		a.printf("archive skip local=%s err=%v", localPath, err)
		return
	}
	const attempts = 4
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = a.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			a.uploaded.Add(1)
			a.lastSuccess.Store(time.Now().Unix())
			a.printf("archived key=%s", key)
			return
		}
		if i < attempts {
			time.Sleep(time.Duration(i*i) * a.backoff)
		}
	}
	a.failed.Add(1)
	a.lastError.Store(time.Now().Unix())
	a.printf("archive failed key=%s err=%v", key, err)
}

func (a *Archiver) objectKey(localPath string) (string, error) {
	base, err := filepath.Abs(a.baseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, base)
	}
	if a.prefix != "" {
		rel = path.Join(a.prefix, rel)
	}
	return rel, nil
}

func (a *Archiver) printf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
