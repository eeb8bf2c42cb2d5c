package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/provider"
	"github.com/0xADE/datacube/proto"
)

// DefaultWriteTimeout bounds writing one response frame.
const DefaultWriteTimeout = 10 * time.Second

var (
	// ErrSocketInUse means another process is accepting on the socket path.
	ErrSocketInUse = errors.New("socket is in use")
	// ErrNotSocket means the socket path exists and is not a socket.
	ErrNotSocket = errors.New("path exists and is not a socket")
	// ErrProtocolViolation means a client sent a frame only the server may send.
	ErrProtocolViolation = errors.New("protocol violation")
)

// Handler answers decoded requests.
type Handler interface {
	Query(ctx context.Context, req proto.QueryRequest) proto.QueryResponse
	ListProviders() proto.ListProvidersResponse
}

// Options configures a Server.
type Options struct {
	SocketPath   string
	MaxFrameSize uint32
	// IdleTimeout closes connections that send nothing for this long. Zero
	// disables it.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
}

// Peer identifies the process on the other end of a connection.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

// Server handles Unix socket connections, one goroutine per connection.
type Server struct {
	opts    Options
	handler Handler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool
	done     chan struct{}
	wg       sync.WaitGroup
	nextConn atomic.Uint64
}

// New creates a server. Nothing listens until Listen or Start.
func New(opts Options, handler Handler, logger *zap.Logger) *Server {
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = proto.DefaultMaxBody
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		opts:    opts,
		handler: handler,
		logger:  logger.Named("server"),
		conns:   make(map[net.Conn]struct{}),
		done:    make(chan struct{}),
	}
}

// NewServer creates a server configured from cfg.
func NewServer(cfg *config.Config, router *provider.Router, logger *zap.Logger) *Server {
	return New(Options{
		SocketPath:   cfg.SocketPath,
		MaxFrameSize: uint32(cfg.MaxFrameSize),
		IdleTimeout:  cfg.IdleTimeout,
	}, router, logger)
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.opts.SocketPath
}

// Listen binds the socket. The parent directory is created with mode 0700
// if missing, and a socket file left behind by a dead process is removed.
func (s *Server) Listen() error {
	path := s.opts.SocketPath

	// Create directory if needed
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if err := removeStaleSocket(path); err != nil {
		return err
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("restricting socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Listening", zap.String("socket", path))
	return nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%w: %s", ErrNotSocket, path)
	}
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return fmt.Errorf("%w: %s", ErrSocketInUse, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	return nil
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	go func() {
		if err := s.Serve(ctx); err != nil {
			s.logger.Error("Server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Serve accepts connections until ctx is cancelled or Stop is called. It
// calls Listen first if needed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		listener = s.listener
		s.mu.Unlock()
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	var tempDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			tempDelay = min(tempDelay, time.Second)
			s.logger.Warn("Accept failed", zap.Error(err), zap.Duration("retry_in", tempDelay))
			select {
			case <-time.After(tempDelay):
			case <-s.done:
				return nil
			}
			continue
		}
		tempDelay = 0

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConnection(ctx, conn)
	}
}

// Stop closes the listener and every open connection, waits for their
// goroutines and removes the socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closing = true
	close(s.done)

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	if rmErr := os.Remove(s.opts.SocketPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
		err = rmErr
	}
	s.logger.Info("Server stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	log := s.logger.With(zap.Uint64("conn", s.nextConn.Add(1)))
	if peer, ok := peerCredentials(conn); ok {
		log = log.With(zap.Int32("pid", peer.PID), zap.Uint32("uid", peer.UID))
	}
	log.Debug("New connection accepted")

	dec := proto.NewDecoder(conn, s.opts.MaxFrameSize)
	for {
		if s.opts.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}

		frame, err := dec.Decode()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug("Connection closed by client")
			case s.isClosing():
			default:
				log.Warn("Dropping connection", zap.Error(err))
			}
			return
		}

		if err := s.dispatch(ctx, conn, frame, log); err != nil {
			log.Warn("Dropping connection", zap.Error(err))
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn, frame proto.Frame, log *zap.Logger) error {
	switch frame.Type {
	case proto.TypeQueryRequest:
		return s.handleQuery(ctx, conn, frame.Body, log)
	case proto.TypeListProvidersRequest:
		return s.handleListProviders(conn, log)
	default:
		return fmt.Errorf("%w: client sent %s", ErrProtocolViolation, frame.Type)
	}
}

func (s *Server) handleQuery(ctx context.Context, conn net.Conn, body []byte, log *zap.Logger) error {
	var req proto.QueryRequest
	var resp proto.QueryResponse
	if err := proto.Unmarshal(body, &req); err != nil {
		log.Debug("Malformed query", zap.Error(err))
		resp = provider.MalformedRequest(err)
	} else {
		log.Debug("Handling query", zap.String("query", req.Query), zap.String("provider", req.Provider))
		resp = s.handler.Query(ctx, req)
	}
	return s.writeResponse(conn, proto.TypeQueryResponse, resp)
}

func (s *Server) handleListProviders(conn net.Conn, log *zap.Logger) error {
	log.Debug("Handling list providers")
	return s.writeResponse(conn, proto.TypeListProvidersResponse, s.handler.ListProviders())
}

func (s *Server) writeResponse(conn net.Conn, t proto.MessageType, msg any) error {
	conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return proto.WriteMessage(conn, t, msg)
}
