// Package ws is the JSON-over-websocket front end that accepts user commands
// and reports drop completions.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/commands"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/protocol"
)

// Commands executes one user command.
type Commands interface {
	Handle(who drop.Requester, cmd, args, lang string, page int, onFinish func(drop.Result)) []commands.Reply
}

type Config struct {
	ReadLimit  int64
	OutboxSize int
}

type Server struct {
	cmds    Commands
	welcome protocol.WelcomeMsg
	cfg     Config
	log     *log.Logger

	upgrader websocket.Upgrader

	nextID      atomic.Uint64
	sessions    atomic.Int64
	doneDropped atomic.Uint64
}

type Stats struct {
	Sessions    int64  `json:"sessions"`
	DoneDropped uint64 `json:"done_dropped"`
}

// NewServer serves cmds. welcome is sent after every accepted HELLO with a
// fresh session id.
func NewServer(cmds Commands, welcome protocol.WelcomeMsg, cfg Config, logger *log.Logger) *Server {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 * 1024
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 64
	}
	if logger == nil {
		logger = log.Default()
	}
	welcome.Type = protocol.TypeWelcome
	welcome.ProtocolVersion = protocol.Version
	return &Server{
		cmds:    cmds,
		welcome: welcome,
		cfg:     cfg,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Stats() Stats {
	return Stats{Sessions: s.sessions.Load(), DoneDropped: s.doneDropped.Load()}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(s.cfg.ReadLimit)

		who, ok := s.handshake(conn)
		if !ok {
			return
		}
		sid := fmt.Sprintf("S%d", s.nextID.Add(1))
		welcome := s.welcome
		welcome.SessionID = sid
		if err := writeJSON(conn, welcome); err != nil {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.log.Printf("session %s: %s (%d) connected", sid, who.Name, who.ID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// out is never closed: completion callbacks may still fire after the
		// session ends and must find a channel to (not) send on.
		out := make(chan []byte, s.cfg.OutboxSize)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
		onFinish := func(res drop.Result) {
			b, err := json.Marshal(protocol.DoneMsg{
				Type:            protocol.TypeDone,
				ProtocolVersion: protocol.Version,
				RequestID:       res.RequestID,
				Success:         res.Success,
				Code:            protocol.CodeFor(res.Error()),
				Text:            commands.DoneText(res),
			})
			if err != nil {
				return
			}
			select {
			case out <- b:
			default:
				s.doneDropped.Add(1)
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			cmd, err := decodeCommand(msg)
			if err != nil {
				send(protocol.ReplyMsg{
					Type:            protocol.TypeReply,
					ProtocolVersion: protocol.Version,
					ReplyTo:         cmd.ID,
					Code:            protocol.ErrProtoBadRequest,
					Text:            err.Error(),
				})
				continue
			}
			for _, rep := range s.cmds.Handle(who, cmd.Cmd, cmd.Args, cmd.Lang, cmd.Page, onFinish) {
				send(protocol.ReplyMsg{
					Type:            protocol.TypeReply,
					ProtocolVersion: protocol.Version,
					ReplyTo:         cmd.ID,
					Code:            rep.Code,
					Text:            rep.Text,
					RequestID:       rep.RequestID,
				})
			}
		}
		s.log.Printf("session %s: %s (%d) disconnected", sid, who.Name, who.ID)
	}
}

func decodeCommand(msg []byte) (protocol.CommandMsg, error) {
	var cmd protocol.CommandMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return cmd, errors.New("malformed message")
	}
	if base.Type != protocol.TypeCommand {
		return cmd, fmt.Errorf("unexpected message type %q", base.Type)
	}
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return cmd, fmt.Errorf("invalid COMMAND: %w", err)
	}
	if err := protocol.Validate(protocol.TypeCommand, msg); err != nil {
		return cmd, fmt.Errorf("invalid COMMAND: %v", err)
	}
	if cmd.ProtocolVersion != protocol.Version {
		return cmd, fmt.Errorf("bad protocol_version %q", cmd.ProtocolVersion)
	}
	return cmd, nil
}

func (s *Server) handshake(conn *websocket.Conn) (drop.Requester, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return drop.Requester{}, false
	}

	reject := func(reason string) (drop.Requester, bool) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
		return drop.Requester{}, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return reject("expected HELLO")
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		return reject("bad HELLO")
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return reject("bad HELLO")
	}
	if hello.ProtocolVersion != protocol.Version {
		return reject("bad protocol_version")
	}
	name := strings.TrimSpace(hello.Name)
	if name == "" {
		return reject("empty name")
	}
	return drop.Requester{Name: name, ID: hello.UserID}, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
