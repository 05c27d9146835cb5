package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/pkg/logger"
)

// Server manages IPC connections from CLI clients over a Unix socket (or
// named pipe on Windows). It dispatches incoming requests to registered
// handlers and owns the broadcast pool watch subscribers hang off.
type Server struct {
	log      logger.Logger
	pool     *Pool
	handler  map[common.UpdateType]HandlerFunc
	port     int
	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a server listening on the platform socket transport,
// falling back to TCP on port if socket creation fails.
func NewServer(l logger.Logger, port int) *Server {
	return &Server{
		log:     l,
		pool:    NewPool(l),
		handler: make(map[common.UpdateType]HandlerFunc),
		port:    port,
	}
}

// Pool exposes the broadcast pool so the round driver can push updates.
func (s *Server) Pool() *Pool {
	return s.pool
}

// RegisterHandler associates a handler function with a method. When a
// request with the given method is received, the handler is invoked.
func (s *Server) RegisterHandler(method common.UpdateType, handler HandlerFunc) {
	s.handler[method] = handler
}

// Start begins listening for incoming connections and blocks until the
// context is canceled. Each connection is handled in its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	l, err := s.createListener()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Error("accepting connection: %s", err.Error())
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown closes the listener and removes the socket file.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.log.Error("closing listener: %s", err.Error())
		}
		s.listener = nil
	}
	if err := cleanupSocket(); err != nil {
		s.log.Error("removing socket file: %s", err.Error())
	}
	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	sconn := NewSyncConn(conn)
	defer func() {
		s.pool.Drop(conn)
		_ = conn.Close()
	}()
	for {
		buf, err := sconn.Read()
		if err != nil {
			if err != io.EOF {
				s.log.Error("reading request: %s", err.Error())
			}
			return
		}
		if err := s.handlerWrapper(sconn, buf); err != nil {
			s.log.Error("handling request: %s", err.Error())
			return
		}
	}
}

func (s *Server) handlerWrapper(sconn *SyncConn, b []byte) error {
	req, err := ParseRequest(b)
	if err != nil {
		return fmt.Errorf("error parsing request: %s", err.Error())
	}
	rHandler, ok := s.handler[req.Method]
	if !ok {
		err = sconn.Write(CreateError("unknown method: " + string(req.Method)))
		if err != nil {
			return fmt.Errorf("error writing response: %s", err.Error())
		}
		return nil
	}
	utype, msg, err := rHandler(sconn, s.pool, req.Message)
	if err != nil {
		err = sconn.Write(InitError(err))
		if err != nil {
			return fmt.Errorf("error writing response: %s", err.Error())
		}
		return nil
	}
	err = sconn.Write(MakeResult(utype, msg))
	if err != nil {
		return fmt.Errorf("error writing response: %s", err.Error())
	}
	return nil
}
