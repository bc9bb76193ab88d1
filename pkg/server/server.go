// Package server implements the per-connection duplex concurrency model
// (C8): one reader goroutine and one writer goroutine per connection,
// joined by a bounded outbound queue, dispatching decoded frames against
// storage and the query engine.
package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/docstore/pkg/log"
	"github.com/cuemby/docstore/pkg/storage"
)

// Server accepts connections on a single TCP listener and serves each
// one independently until Stop is called.
type Server struct {
	listener net.Listener
	disp     *dispatcher
	logger   zerolog.Logger

	mu    sync.Mutex
	conns map[string]*conn
	wg    sync.WaitGroup
}

// New builds a Server over store. It does not start listening.
func New(store storage.Store) *Server {
	return &Server{
		disp:   newDispatcher(store),
		logger: log.WithComponent("server"),
		conns:  make(map[string]*conn),
	}
}

// Start binds addr and begins accepting connections on a new goroutine.
// It returns once the listener is bound, not once it stops serving.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}
	s.listener = lis

	s.logger.Info().Str("addr", addr).Msg("listening")
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			s.logger.Debug().Err(err).Msg("accept loop terminating")
			return
		}

		id := uuid.New().String()
		c := newConn(id, raw, s.disp)

		s.mu.Lock()
		s.conns[id] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()
			s.mu.Lock()
			delete(s.conns, id)
			s.mu.Unlock()
		}()
	}
}

// Stop closes the listener and every open connection, then waits for
// their goroutines to exit.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.raw.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
