package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "gateway ws url")
		name   = flag.String("name", "dropctl", "requester display name")
		userID = flag.Uint64("user_id", 0, "requester id")
		cmd    = flag.String("cmd", protocol.CmdLookup, "command: drop|diy|clean|lookup|item|stack|customize")
		args   = flag.String("args", "", "command arguments as typed after the command name")
		lang   = flag.String("lang", "", "language for lookup (default: server default)")
		page   = flag.Int("page", 0, "lookup page (1-based)")
		wait   = flag.Duration("wait", 60*time.Second, "how long to wait for DONE after a queued drop")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[dropctl] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c := client{conn: conn, out: os.Stdout, wait: *wait}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		UserID:          *userID,
	}
	command := protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		ID:              uuid.NewString(),
		Cmd:             *cmd,
		Args:            *args,
		Lang:            *lang,
		Page:            *page,
	}
	ok, err := c.run(ctx, hello, command)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if !ok {
		os.Exit(1)
	}
}

var errNoDone = errors.New("connection closed before DONE")

// client runs one HELLO/COMMAND exchange.
type client struct {
	conn *websocket.Conn
	out  io.Writer
	wait time.Duration
}

// run reports whether the command succeeded: every REPLY without an error code
// (a truncation notice still counts) and a successful DONE when a drop was
// queued.
func (c client) run(ctx context.Context, hello protocol.HelloMsg, cmd protocol.CommandMsg) (bool, error) {
	if err := c.conn.WriteJSON(hello); err != nil {
		return false, fmt.Errorf("send HELLO: %w", err)
	}
	var w protocol.WelcomeMsg
	if err := c.read(&w, protocol.TypeWelcome); err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "session %s (max %d items, languages %v)\n", w.SessionID, w.MaxDropCount, w.Languages)

	if err := c.conn.WriteJSON(cmd); err != nil {
		return false, fmt.Errorf("send COMMAND: %w", err)
	}

	ok := true
	pending := ""
	deadline := time.Now().Add(c.wait)
	if d, has := ctx.Deadline(); has && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.SetReadDeadline(time.Now())
		case <-finished:
		}
	}()

	gotReply := false
	// DONE may overtake the REPLY that announces its request id.
	early := map[string]protocol.DoneMsg{}
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if pending != "" {
				return false, fmt.Errorf("%w: %v", errNoDone, err)
			}
			if gotReply {
				return ok, nil
			}
			return false, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeReply:
			var r protocol.ReplyMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			if r.ReplyTo != "" && r.ReplyTo != cmd.ID {
				continue
			}
			gotReply = true
			c.print(r.Code, r.Text)
			if r.Code != "" && r.Code != protocol.ErrBatchTruncated {
				ok = false
			}
			if r.RequestID != "" {
				pending = r.RequestID
				if d, seen := early[pending]; seen {
					c.print(d.Code, d.Text)
					return ok && d.Success, nil
				}
			}
			if pending == "" && cmd.Cmd != protocol.CmdDrop && cmd.Cmd != protocol.CmdDIY {
				return ok, nil
			}
			if pending == "" && r.Code != "" && r.Code != protocol.ErrBatchTruncated {
				return ok, nil
			}
		case protocol.TypeDone:
			var d protocol.DoneMsg
			if err := json.Unmarshal(msg, &d); err != nil {
				continue
			}
			if d.RequestID != pending {
				early[d.RequestID] = d
				continue
			}
			c.print(d.Code, d.Text)
			return ok && d.Success, nil
		}
	}
}

func (c client) read(v any, want string) error {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read %s: %w", want, err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return fmt.Errorf("read %s: %w", want, err)
	}
	if base.Type != want {
		var r protocol.ReplyMsg
		if json.Unmarshal(msg, &r) == nil && r.Text != "" {
			return fmt.Errorf("expected %s, got %s: %s %s", want, base.Type, r.Code, r.Text)
		}
		return fmt.Errorf("expected %s, got %s", want, base.Type)
	}
	return json.Unmarshal(msg, v)
}

func (c client) print(code, text string) {
	if code != "" {
		fmt.Fprintf(c.out, "[%s] %s\n", code, text)
		return
	}
	fmt.Fprintln(c.out, text)
}
