package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	requesterID := fs.Uint64("requester_id", 0, "requester filter (0 = everyone)")
	limit := fs.Int("limit", 0, "result limit (server default when 0)")
	_ = fs.Parse(args)

	q := url.Values{}
	if *requesterID != 0 {
		q.Set("requester_id", strconv.FormatUint(*requesterID, 10))
	}
	if *limit > 0 {
		q.Set("limit", strconv.Itoa(*limit))
	}
	path := "/admin/v1/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	os.Exit(fetch(*baseURL, path))
}

func getCmd(name, path string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	os.Exit(fetch(*baseURL, path))
}

// fetch prints the body of GET base+path and returns the exit code.
func fetch(base, path string) int {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimRight(string(b), "\n"))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
