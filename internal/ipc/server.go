package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"vodwatch/internal/config"
	"vodwatch/internal/daemon"
	"vodwatch/internal/logging"
	"vodwatch/internal/recording"
	"vodwatch/internal/services"
)

const serviceName = "Vodwatch"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "CLI commands may fail to reach the monitor"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the monitor if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse later CLI calls"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// request derives a per-call context carrying a correlation ID.
func (s *service) request(channel string) (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	if channel != "" {
		ctx = services.WithChannel(ctx, channel)
	}
	return ctx, logging.WithContext(ctx, s.logger)
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, recording.ErrAlreadyActive):
		return CodeAlreadyActive
	case errors.Is(err, recording.ErrAtCapacity):
		return CodeAtCapacity
	case errors.Is(err, recording.ErrNotFound):
		return CodeNotFound
	default:
		return CodeFailed
	}
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Monitoring = status.Monitoring
	resp.PID = status.PID
	resp.RunID = status.RunID
	resp.StartedAt = status.StartedAt
	resp.Cycles = status.Cycles
	resp.MaxConcurrent = status.MaxConcurrent
	resp.Channels = status.Channels
	resp.Sessions = status.Sessions
	resp.Recent = status.Recent
	resp.LockPath = status.LockPath
	resp.LedgerPath = status.LedgerPath
	return nil
}

func (s *service) Sessions(_ SessionsRequest, resp *SessionsResponse) error {
	sessions, err := s.daemon.Sessions(s.ctx)
	if err != nil {
		return err
	}
	resp.Sessions = sessions
	return nil
}

func (s *service) Record(req RecordRequest, resp *RecordResponse) error {
	channel, err := config.NormalizeChannel(req.Channel)
	if err != nil {
		return err
	}
	ctx, logger := s.request(channel)
	logger.Debug("record requested")
	info, err := s.daemon.Admit(ctx, channel)
	if err != nil {
		resp.Code = errorCode(err)
		resp.Message = err.Error()
		return nil
	}
	resp.Admitted = true
	resp.Session = info
	logging.Event(logger, "recording admitted via IPC", "ipc_record",
		logging.String(logging.FieldSessionID, info.ID))
	return nil
}

func (s *service) StopRecording(req StopRecordingRequest, resp *StopRecordingResponse) error {
	channel, err := config.NormalizeChannel(req.Channel)
	if err != nil {
		return err
	}
	ctx, logger := s.request(channel)
	if err := s.daemon.StopChannel(ctx, channel); err != nil {
		resp.Code = errorCode(err)
		resp.Message = err.Error()
		return nil
	}
	resp.Stopped = true
	logging.Event(logger, "recording stop requested via IPC", "ipc_stop")
	return nil
}

func (s *service) StopAll(_ StopAllRequest, resp *StopAllResponse) error {
	_, logger := s.request("")
	resp.Requested = s.daemon.StopRecordings()
	logging.Event(logger, "stop all requested via IPC", "ipc_stop_all",
		logging.Int("sessions", resp.Requested))
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := s.daemon.Events(ctx, req.Since, req.Limit, req.Follow)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Events = events
	resp.Next = next
	return nil
}
