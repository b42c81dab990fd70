// Package server accepts TCP connections and runs one session engine per
// connection. Requests are newline-delimited lines; responses are written
// back exactly as the engine produced them, best-effort, matching the
// protocol's single-line request model.
package server

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pkaski/cubby/internal/audit"
	"github.com/pkaski/cubby/internal/config"
	"github.com/pkaski/cubby/internal/session"
	"github.com/pkaski/cubby/internal/userstore"
)

// WelcomeText is sent once when a connection is accepted.
const WelcomeText = "Welcome to the server! Please enter your command"

// Session tracks one live client connection.
type Session struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time
}

// Server owns the listener and the live session registry. The credential
// store is the only state shared between connection goroutines; each
// session engine is exclusively owned by its goroutine.
type Server struct {
	cfg      *config.Config
	users    *userstore.Store
	recorder audit.Recorder
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*Session
}

// New creates a server. A nil recorder disables auditing; a nil logger
// discards logs.
func New(cfg *config.Config, users *userstore.Store, recorder audit.Recorder, logger *slog.Logger) *Server {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:      cfg,
		users:    users,
		recorder: recorder,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address. Only valid after Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.cfg.ListenAddr
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("serve called before listen")
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return err
		}

		if s.cfg.MaxSessions > 0 && s.sessionCount() >= s.cfg.MaxSessions {
			s.logger.Warn("session limit reached", "remote", conn.RemoteAddr().String(), "limit", s.cfg.MaxSessions)
			_ = conn.Close()
			continue
		}

		sess := &Session{
			ID:         newSessionID(),
			RemoteAddr: conn.RemoteAddr().String(),
			StartedAt:  time.Now(),
		}
		s.register(sess)

		go func() {
			defer s.unregister(sess.ID)
			defer conn.Close()
			s.logger.Info("session start", "id", sess.ID, "remote", sess.RemoteAddr)
			s.handle(conn, sess)
			s.logger.Info("session end", "id", sess.ID, "remote", sess.RemoteAddr)
		}()
	}
}

// Start is Listen followed by Serve.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// handle runs the per-connection loop: read one line, execute, respond.
// A write failure means the client is gone and ends the session; any
// command failure is already text by the time it gets here.
func (s *Server) handle(conn net.Conn, sess *Session) {
	engine := session.New(s.users, s.cfg.DataDir)

	if _, err := conn.Write([]byte(WelcomeText)); err != nil {
		return
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		response, closed := engine.Execute(line)
		s.record(sess, engine, line, response)

		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}
		if closed {
			return
		}
	}
}

// record writes one audit entry. Only the command token is kept; the
// argument tail of register/login lines carries secrets.
func (s *Server) record(sess *Session, engine *session.Engine, line, response string) {
	command := ""
	if fields := strings.Fields(line); len(fields) > 0 {
		command = strings.ToLower(fields[0])
	}

	status := "ok"
	if session.IsErrorResponse(response) {
		status = "error"
	}

	s.recorder.Record(audit.Entry{
		SessionID: sess.ID,
		Username:  engine.Username(),
		Command:   command,
		Status:    status,
		At:        time.Now().Unix(),
	})
	s.logger.Debug("command", "session", sess.ID, "user", engine.Username(), "command", command, "status", status)
}

// ListSessions returns a snapshot of the live sessions.
func (s *Server) ListSessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) register(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// newSessionID generates a ULID for a new session.
func newSessionID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// rand.Reader does not fail in practice; fall back to a
		// timestamp-only ID rather than dropping the connection.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id.String()
}
