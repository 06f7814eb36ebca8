// internal/dispatch/dispatch.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gamehall/gamehall/internal/gateway"
	"github.com/gamehall/gamehall/internal/protocol"
	"github.com/gamehall/gamehall/internal/session"
)

const (
	// idleTimeout bounds each read on a client connection.
	idleTimeout = 20 * time.Second
	// idleRetryLimit caps consecutive timed-out reads before the worker
	// gives up on the connection.
	idleRetryLimit = 15
)

// Request is one inbound frame, with the saved file path when the frame
// carried one.
type Request struct {
	Msg      map[string]any
	FilePath string
}

// Op returns the frame's op code, "" when absent.
func (r *Request) Op() string {
	op, _ := r.Msg["op"].(string)
	return op
}

// String reads a string field, "" when absent or mistyped.
func (r *Request) String(key string) string {
	v, _ := r.Msg[key].(string)
	return v
}

// Int reads an integer field. JSON numbers decode as float64; string
// digits are accepted too since some clients send ids as strings.
func (r *Request) Int(key string) (int64, bool) {
	switch v := r.Msg[key].(type) {
	case float64:
		return int64(v), true
	case string:
		var n int64
		_, err := fmt.Sscanf(v, "%d", &n)
		return n, err == nil
	}
	return 0, false
}

// Session is the per-connection state handed to every handler: the socket,
// the worker's own database gateway, and the shared registry. UserID is
// zero until authentication succeeds.
type Session struct {
	Conn     net.Conn
	Codec    *protocol.Codec
	Registry *session.Registry
	DB       *gateway.Gateway
	Log      *logrus.Logger
	UserID   int64
}

// Reply sends a payload to this session's user. Authenticated sessions go
// through the registry so replies and notifications serialize on the one
// socket; unauthenticated sessions have no registry entry and are written
// directly from the worker goroutine.
func (s *Session) Reply(payload map[string]any) {
	if s.UserID != 0 && s.Registry != nil {
		s.Registry.SendAsync(s.UserID, payload)
		return
	}
	if err := s.Codec.SendJSON(s.Conn, payload); err != nil {
		s.Log.Warnf("direct reply failed: %v", err)
	}
}

// ReplyOK sends {status:"ok", op:..., extra...}.
func (s *Session) ReplyOK(op string, extra map[string]any) {
	payload := map[string]any{"status": "ok", "op": op}
	for k, v := range extra {
		payload[k] = v
	}
	s.Reply(payload)
}

// ReplyError sends {status:"error", op:..., error:...}.
func (s *Session) ReplyError(op, msg string) {
	s.Reply(map[string]any{"status": "error", "op": op, "error": msg})
}

// Result tells the worker loop what a handler decided about the session.
type Result struct {
	// SetUser, when true, installs UserID as the session's user.
	SetUser bool
	UserID  int64
	// Disconnect closes the connection and runs the user-lifecycle
	// cascade (logout semantics).
	Disconnect bool
	// Detach closes the connection without the cascade: the user is
	// leaving for a game process and will return via "back".
	Detach bool
}

// HandlerFunc processes one request. Business failures are replied inside
// the handler and return a zero Result with nil error; a non-nil error
// means something unexpected broke and the dispatcher answers generically.
type HandlerFunc func(s *Session, req *Request) (Result, error)

type registration struct {
	fn   HandlerFunc
	auth bool
}

// Mux routes op codes to handlers with a single authoritative auth gate.
type Mux struct {
	handlers map[string]registration
}

// NewMux returns an empty op registry.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]registration)}
}

// Handle registers a handler. authRequired ops are rejected with "Login
// required" until the session has a user id.
func (m *Mux) Handle(op string, authRequired bool, fn HandlerFunc) {
	m.handlers[op] = registration{fn: fn, auth: authRequired}
}

// Ops lists the registered op codes, letting tests enumerate coverage.
func (m *Mux) Ops() []string {
	ops := make([]string, 0, len(m.handlers))
	for op := range m.handlers {
		ops = append(ops, op)
	}
	return ops
}

// ServeConn is the per-connection worker loop. tempDir receives inbound
// file frames. onExit runs exactly once when the loop ends, with the
// authenticated user id (0 if none) and whether the exit was a detach.
func (m *Mux) ServeConn(ctx context.Context, s *Session, tempDir string, onExit func(userID int64, detach bool)) {
	detach := false
	defer func() {
		onExit(s.UserID, detach)
		s.Conn.Close()
	}()

	// Inbound files stage in a per-connection directory; two clients
	// uploading the same filename must not clobber each other.
	staging, err := os.MkdirTemp(tempDir, "session-*")
	if err != nil {
		s.Log.Errorf("creating staging dir: %v", err)
		return
	}
	defer os.RemoveAll(staging)

	idleReads := 0
	for ctx.Err() == nil {
		msg, filePath, err := s.Codec.RecvFile(s.Conn, staging, idleTimeout)
		switch {
		case errors.Is(err, protocol.ErrTimeout):
			idleReads++
			if idleReads > idleRetryLimit {
				s.Log.Infof("closing idle connection %s", s.Conn.RemoteAddr())
				return
			}
			continue
		case errors.Is(err, protocol.ErrMalformedJSON):
			s.Log.Warnf("malformed frame from %s", s.Conn.RemoteAddr())
			continue
		case err != nil:
			// Connection closed or broken; no reply is possible.
			return
		}
		idleReads = 0

		req := &Request{Msg: msg, FilePath: filePath}
		op := req.Op()
		if op == "" {
			s.Reply(map[string]any{"status": "error", "op": "unknown", "error": "Missing 'op' field"})
			continue
		}

		reg, ok := m.handlers[op]
		if !ok {
			s.ReplyError(op, fmt.Sprintf("Unknown op '%s'", op))
			continue
		}
		if reg.auth && s.UserID == 0 {
			s.ReplyError(op, "Login required")
			continue
		}

		res, err := reg.fn(s, req)
		if err != nil {
			s.Log.Errorf("handler %s failed: %v", op, err)
			s.ReplyError(op, fmt.Sprintf("Internal server error: %v", err))
			continue
		}
		if res.SetUser {
			s.UserID = res.UserID
		}
		if res.Detach {
			detach = true
			return
		}
		if res.Disconnect {
			return
		}
	}
}
