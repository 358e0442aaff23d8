package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/scadform/scadform/internal/build"
	scaderr "github.com/scadform/scadform/internal/errors"
	"github.com/scadform/scadform/internal/logging"
	"github.com/scadform/scadform/internal/types"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum compile-request size allowed from peer. Sources can be
	// large, but not arbitrarily so.
	maxRequestSize = 4 << 20
)

// Channel serves the compile websocket. Each connection processes
// compile-requests sequentially: one inbound request produces zero or more
// log messages followed by exactly one terminal result or error message.
type Channel struct {
	orch   *build.Orchestrator
	logger logging.Logger

	host           string
	port           int
	allowedOrigins []string

	// timeout bounds a single compilation; zero means unbounded.
	timeout time.Duration
}

// NewChannel builds a Channel over the given orchestrator.
func NewChannel(orch *build.Orchestrator, logger logging.Logger, host string, port int, allowedOrigins []string, timeout time.Duration) *Channel {
	return &Channel{
		orch:           orch,
		logger:         logger.WithComponent("channel"),
		host:           host,
		port:           port,
		allowedOrigins: allowedOrigins,
		timeout:        timeout,
	}
}

func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: false,
	})
	if err != nil {
		c.logger.Error(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxRequestSize)

	// The connection context is cancelled when the peer goes away, which
	// aborts any compilation still running for it.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer conn.Close(websocket.StatusInternalError, "")

	c.serve(ctx, conn)
}

// serve runs the per-connection loop. Requests are handled one at a time so
// log and terminal messages from different requests never interleave.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	session := newSession(ctx, conn, c.logger)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.logger.Debug(ctx, "connection closed", "reason", err.Error())
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			session.sendError(fmt.Sprintf("malformed message: %v", err))
			continue
		}
		if env.Type != MessageCompileRequest {
			session.sendError(fmt.Sprintf("unexpected message type %q", env.Type))
			continue
		}

		c.handleRequest(ctx, session, &env)
	}
}

func (c *Channel) handleRequest(ctx context.Context, session *session, env *Envelope) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := types.CompileRequest{
		Source:    env.Source,
		Overrides: env.Overrides,
	}

	result, err := c.orch.Compile(ctx, req, session)
	if err != nil {
		session.sendError(err.Error())
		return
	}

	session.sendResult(result)
}

// checkOrigin validates the request origin. Connections without an Origin
// header are allowed so non-browser clients can connect.
func (c *Channel) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	allowed := []string{
		fmt.Sprintf("%s:%d", c.host, c.port),
		fmt.Sprintf("localhost:%d", c.port),
		fmt.Sprintf("127.0.0.1:%d", c.port),
	}
	allowed = append(allowed, c.allowedOrigins...)

	for _, host := range allowed {
		if originURL.Host == host {
			return true
		}
	}

	return false
}

// session serializes writes to one connection. Log messages arrive from the
// engine relay goroutines while the request handler owns the terminal
// message, so every write goes through the same mutex. The connection
// context bounds every write, so a disconnect does not leave relayed log
// lines waiting out the write timeout one by one.
type session struct {
	ctx    context.Context
	conn   *websocket.Conn
	logger logging.Logger
	mu     sync.Mutex
}

func newSession(ctx context.Context, conn *websocket.Conn, logger logging.Logger) *session {
	return &session{ctx: ctx, conn: conn, logger: logger}
}

// Log implements build.LogSink by relaying engine output as log messages.
// A delivery failure here is a channel fault, not a compilation fault.
func (s *session) Log(text string, severity types.LogSeverity) {
	s.write(&Envelope{
		Type:     MessageLog,
		Text:     text,
		Severity: severity,
	})
}

func (s *session) sendResult(result *types.CompileResult) {
	s.write(&Envelope{
		Type:       MessageResult,
		Artifact:   result.Artifact,
		CacheHit:   result.CacheHit,
		ExitStatus: result.ExitStatus,
	})
}

func (s *session) sendError(message string) {
	s.write(&Envelope{
		Type:    MessageError,
		Message: message,
	})
}

// write delivers one message under the connection context. Terminal messages
// for a timed-out compile must still go out, so the per-request deadline
// never bounds a write.
func (s *session) write(env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error(s.ctx, scaderr.New(scaderr.KindChannel, "message encode failed"), "dropping message", "type", env.Type)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(s.ctx, writeWait)
	defer cancel()

	if err := s.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		s.logger.Error(s.ctx, scaderr.Wrap(scaderr.KindChannel, err, "message delivery failed"), "dropping message", "type", env.Type)
	}
}
