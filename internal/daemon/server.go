package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// Server listens on a Unix socket and answers the daemon's restricted
// ping/status wire protocol.
type Server struct {
	socketPath string
	listener   net.Listener
	pool       *Pool
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server bound to socketPath once ListenAndServe runs.
func NewServer(socketPath string, pool *Pool) *Server {
	return &Server{socketPath: socketPath, pool: pool}
}

// ErrAnotherInstanceRunning is returned by Bind when an existing listener
// on the same socket already answers connections.
var ErrAnotherInstanceRunning = errors.New("daemon: another instance is already listening")

// Bind implements single-instance enforcement: try to listen; on failure,
// probe whether an existing listener answers. If so, return
// ErrAnotherInstanceRunning so the caller exits cleanly. Otherwise the
// socket path is stale (the process that owned it died); remove it and
// retry exactly once.
func (s *Server) Bind() error {
	l, err := net.Listen("unix", s.socketPath)
	if err == nil {
		s.listener = l
		return nil
	}

	if conn, dialErr := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond); dialErr == nil {
		_ = conn.Close()
		return ErrAnotherInstanceRunning
	}

	_ = os.Remove(s.socketPath)
	l, err = net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("daemon: bind %s after removing stale socket: %w", s.socketPath, err)
	}
	s.listener = l
	return nil
}

// ListenAndServe accepts connections until ctx is cancelled. If Bind has
// not been called yet, it binds first and returns Bind's error on failure.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Bind(); err != nil {
			return err
		}
	}
	s.started = time.Now()

	defer func() {
		_ = s.listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("daemon: listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("daemon: accept error", slog.Any("error", err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	reader := bufio.NewReaderSize(conn, MaxLineBytes)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return
	}
	if len(line) > MaxLineBytes {
		s.writeResponse(conn, ErrResponse("request exceeds line size limit"))
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeResponse(conn, ErrResponse("malformed request"))
		return
	}
	if err := req.Validate(); err != nil {
		s.writeResponse(conn, ErrResponse(err.Error()))
		return
	}

	s.writeResponse(conn, s.handle(ctx, req))
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Cmd {
	case CmdPing:
		return s.handlePing(ctx, req)
	case CmdStatus:
		return s.handleStatus()
	default:
		return ErrResponse("unknown cmd: " + req.Cmd)
	}
}

func (s *Server) handlePing(ctx context.Context, req Request) Response {
	if s.pool == nil {
		return ErrResponse("daemon has no worker pool configured")
	}
	if _, err := s.pool.Touch(ctx, req.Project, req.Models); err != nil {
		return ErrResponse(err.Error())
	}
	return OKResponse(nil)
}

func (s *Server) handleStatus() Response {
	if s.pool == nil {
		return OKResponse(nil)
	}
	return OKResponse(s.pool.Snapshot())
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
