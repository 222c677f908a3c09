// Package relay owns the single controller connection.
package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trafficviewer/pkg/fsd"
	"trafficviewer/pkg/logging"
)

// State is the lifecycle of the controller connection.
type State int

const (
	AwaitingClient State = iota
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingClient:
		return "awaiting_client"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state for JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{AwaitingClient, Connected, Closed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown relay state %q", b)
}

// Listen accepts exactly one connection on addr and closes the listener.
// Cancelling ctx aborts the wait.
func Listen(ctx context.Context, addr string) (net.Conn, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("Waiting for ATC client connection", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	slog.Info("Incoming connection", "remote", conn.RemoteAddr().String())
	return conn, nil
}

// MaxLineLength bounds an inbound line including its terminator. Longer
// lines are discarded.
const MaxLineLength = 4096

// Options configures a Server.
type Options struct {
	WriteTimeout time.Duration
}

// Server relays protocol lines over one connection. A reader goroutine
// decodes inbound lines into a queue drained by Poll.
type Server struct {
	conn         net.Conn
	session      string
	writeTimeout time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	inbox []fsd.Message

	writeMu  sync.Mutex
	failures atomic.Int32
	stopping atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
}

// New starts relaying on conn.
func New(conn net.Conn, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	session := uuid.NewString()
	s := &Server{
		conn:         conn,
		session:      session,
		writeTimeout: opts.WriteTimeout,
		logger:       slog.With("component", "relay", "session", session),
		done:         make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Session identifies this connection in logs.
func (s *Server) Session() string {
	return s.session
}

// Poll returns every message received since the last call, in wire order.
func (s *Server) Poll() []fsd.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) == 0 {
		return nil
	}
	out := s.inbox
	s.inbox = nil
	return out
}

// Send encodes and sends msg.
func (s *Server) Send(msg fsd.Message) bool {
	return s.SendLine(msg.String())
}

// SendLine writes text followed by CRLF. It reports false when the line
// was not fully written; the consecutive failure count is kept for the caller.
func (s *Server) SendLine(text string) bool {
	line := text + "\r\n"
	buf := fsd.EncodeWire(line)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.stopping.Load() {
		return false
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	n, err := s.conn.Write(buf)
	if err != nil || n == 0 {
		fails := s.failures.Add(1)
		s.logger.Warn("Send failed", "failures", fails, "error", err)
		return false
	}
	s.failures.Store(0)
	logging.Protocol(s.session, logging.Outbound, line)
	return true
}

// Failures returns the number of consecutive failed sends.
func (s *Server) Failures() int {
	return int(s.failures.Load())
}

// Done is closed when the reader has terminated.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// State reports Connected until the reader terminates.
func (s *Server) State() State {
	select {
	case <-s.done:
		return Closed
	default:
		return Connected
	}
}

// Close stops the reader, waits for it to exit and closes the connection.
// No message is queued after Close returns. Safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stopping.Store(true)
		// Unblock a pending read.
		_ = s.conn.SetReadDeadline(time.Now())
		<-s.done

		s.mu.Lock()
		s.inbox = nil
		s.mu.Unlock()

		s.writeMu.Lock()
		err = s.conn.Close()
		s.writeMu.Unlock()
		s.logger.Info("Relay closed")
	})
	return err
}

func (s *Server) readLoop() {
	defer close(s.done)

	r := bufio.NewReaderSize(s.conn, MaxLineLength)
	oversized := false
	for !s.stopping.Load() {
		raw, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Drop the line through its terminator.
			if !oversized {
				s.logger.Warn("Discarding oversized line", "limit", MaxLineLength)
			}
			oversized = true
			continue
		}
		if oversized {
			oversized = false
		} else if len(raw) > 0 && !s.stopping.Load() {
			s.handleLine(raw)
		}
		if err != nil {
			switch {
			case s.stopping.Load():
			case errors.Is(err, io.EOF):
				s.logger.Info("Connection to controller client ended")
			default:
				s.logger.Warn("Read failed", "error", err)
			}
			return
		}
	}
}

func (s *Server) handleLine(raw []byte) {
	line := fsd.DecodeWire(raw)
	logging.Protocol(s.session, logging.Inbound, line)

	msg, err := fsd.Parse(line)
	if err != nil {
		s.logger.Debug("Discarding line", "error", err)
		return
	}

	s.mu.Lock()
	s.inbox = append(s.inbox, msg)
	s.mu.Unlock()
}
