package objstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Config{Endpoint: "r2.example", Bucket: "b"}); err == nil {
		t.Fatalf("expected error without keys")
	}
	c, err := New(Config{Endpoint: "r2.example", Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.endpoint != "https://r2.example" || c.region != "auto" {
		t.Fatalf("endpoint=%s region=%s", c.endpoint, c.region)
	}
}

func TestClient_PutFileSigned(t *testing.T) {
	var (
		gotPath, gotAuth, gotDate, gotHash string
		gotBody                            []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("x-amz-date")
		gotHash = r.Header.Get("x-amz-content-sha256")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, Bucket: "journal", Region: "us-east-1", AccessKeyID: "AKID", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "drops-2026-03-01-10.jsonl.zst")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.PutFile(context.Background(), "bot 1/drops-2026-03-01-10.jsonl.zst", local); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if gotPath != "/journal/bot%201/drops-2026-03-01-10.jsonl.zst" {
		t.Fatalf("path=%s", gotPath)
	}
	if string(gotBody) != "payload" {
		t.Fatalf("body=%q", gotBody)
	}
	if gotDate != "20260301T100000Z" {
		t.Fatalf("x-amz-date=%s", gotDate)
	}
	// sha256("payload")
	if gotHash != "239f59ed55e737c77147cf55ad0c1b030b6d7ee748a7426952f9b852d5a935e5" {
		t.Fatalf("hash=%s", gotHash)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKID/20260301/us-east-1/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("auth=%s", gotAuth)
	}
}

func TestClient_PutFileErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, _ := New(Config{Endpoint: srv.URL, Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"})
	local := filepath.Join(t.TempDir(), "f")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	err := c.PutFile(context.Background(), "f", local)
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v", err)
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakeUploader) PutFile(ctx context.Context, key, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("temporary")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestArchiver_UploadsRelativeKeys(t *testing.T) {
	base := t.TempDir()
	up := &fakeUploader{fails: 1}
	a := NewArchiver(up, base, "/island_1/", 4, nil)
	a.backoff = time.Millisecond

	a.Enqueue(filepath.Join(base, "journal", "drops-2026-03-01-10.jsonl.zst"))
	a.Enqueue(filepath.Join(filepath.Dir(base), "elsewhere.zst"))
	a.Close()

	if len(up.keys) != 1 || up.keys[0] != "island_1/journal/drops-2026-03-01-10.jsonl.zst" {
		t.Fatalf("keys=%v", up.keys)
	}
	st := a.Stats()
	if st.UploadedTotal != 1 || st.FailedTotal != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestArchiver_EnqueueAfterCloseIsDropped(t *testing.T) {
	a := NewArchiver(&fakeUploader{}, t.TempDir(), "", 1, nil)
	a.Close()
	a.Enqueue("x")
	a.Close()
	if st := a.Stats(); st.DroppedTotal != 1 {
		t.Fatalf("dropped=%d want=1", st.DroppedTotal)
	}
}
