// Package sysbot talks to a console running sys-botbase over its line-based
// TCP protocol.
package sysbot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

// maxPokeBytes caps one poke command's payload.
const maxPokeBytes = 0x200

var ErrVerify = errors.New("sysbot: read-back mismatch")

type Config struct {
	Addr    string
	Timeout time.Duration

	// CleanPresses is how many times Clean presses the pickup button.
	CleanPresses int
	CleanDelay   time.Duration
	// Verify peeks every injected range back and compares it.
	Verify bool
	Logger *log.Logger
}

// Client serializes commands over one connection and redials after any I/O
// error.
type Client struct {
	cfg    Config
	dialer net.Dialer
	logger *log.Logger

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CleanPresses <= 0 {
		cfg.CleanPresses = 10
	}
	if cfg.CleanDelay < 0 {
		cfg.CleanDelay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	return err
}

func (c *Client) connLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	conn, err := c.dialer.DialContext(dctx, "tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("sysbot dial %s: %w", c.cfg.Addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	c.logger.Printf("sysbot connected to %s", c.cfg.Addr)
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.cfg.Timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// exec sends one command line and, if wantReply, reads one reply line.
func (c *Client) exec(ctx context.Context, cmd string, wantReply bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connLocked(ctx); err != nil {
		return "", err
	}
	_ = c.conn.SetDeadline(c.deadline(ctx))
	if _, err := c.conn.Write([]byte(cmd + "\r\n")); err != nil {
		_ = c.dropLocked()
		return "", fmt.Errorf("sysbot %s: %w", verb(cmd), err)
	}
	if !wantReply {
		return "", nil
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		_ = c.dropLocked()
		return "", fmt.Errorf("sysbot %s: %w", verb(cmd), err)
	}
	return strings.TrimSpace(line), nil
}

func verb(cmd string) string {
	if i := strings.IndexByte(cmd, ' '); i > 0 {
		return cmd[:i]
	}
	return cmd
}

// Poke writes data at addr in chunks.
func (c *Client) Poke(ctx context.Context, addr uint32, data []byte) error {
	for off := 0; off < len(data); off += maxPokeBytes {
		end := off + maxPokeBytes
		if end > len(data) {
			end = len(data)
		}
		cmd := fmt.Sprintf("poke 0x%08X 0x%s", addr+uint32(off), strings.ToUpper(hex.EncodeToString(data[off:end])))
		if _, err := c.exec(ctx, cmd, false); err != nil {
			return err
		}
	}
	return nil
}

// Peek reads n bytes at addr.
func (c *Client) Peek(ctx context.Context, addr uint32, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]byte, 0, n)
	for off := 0; off < n; off += maxPokeBytes {
		size := n - off
		if size > maxPokeBytes {
			size = maxPokeBytes
		}
		line, err := c.exec(ctx, fmt.Sprintf("peek 0x%08X %d", addr+uint32(off), size), true)
		if err != nil {
			return nil, err
		}
		b, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("sysbot peek: bad reply %q", line)
		}
		if len(b) != size {
			return nil, fmt.Errorf("sysbot peek: got %d bytes want %d", len(b), size)
		}
		out = append(out, b...)
	}
	return out, nil
}

// Click presses and releases one controller button (A, B, X, Y, ...).
func (c *Client) Click(ctx context.Context, button string) error {
	_, err := c.exec(ctx, "click "+strings.ToUpper(strings.TrimSpace(button)), false)
	return err
}

// Inject implements drop.Injector.
func (c *Client) Inject(ctx context.Context, addr uint32, data []byte) error {
	if err := c.Poke(ctx, addr, data); err != nil {
		return err
	}
	if !c.cfg.Verify {
		return nil
	}
	got, err := c.Peek(ctx, addr, len(data))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return fmt.Errorf("%w at 0x%08X", ErrVerify, addr)
	}
	return nil
}

// Clean implements drop.Cleaner by repeatedly pressing the pickup button.
func (c *Client) Clean(ctx context.Context) error {
	for i := 0; i < c.cfg.CleanPresses; i++ {
		if err := c.Click(ctx, "Y"); err != nil {
			return err
		}
		if c.cfg.CleanDelay > 0 {
			t := time.NewTimer(c.cfg.CleanDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return nil
}
