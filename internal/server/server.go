// Package server runs the TCP listener and per-connection handling
// loop: connection bookkeeping via sync.Map and atomic counters, a
// context-driven accept loop, and graceful shutdown, handling one
// command at a time per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"rkv/internal/config"
	"rkv/internal/replication"
	"rkv/internal/resp"
	"rkv/internal/router"
	"rkv/internal/store"
)

// Server owns the listener and the live connection set.
type Server struct {
	cfg  *config.Config
	db   *store.Database
	repl *replication.Replicator
	rt   *router.Router

	listener net.Listener

	connections     sync.Map
	connIDCounter   atomic.Int64
	activeConnCount atomic.Int64
	wg              sync.WaitGroup

	mu           sync.Mutex
	isShutdown   bool
	shutdownChan chan struct{}
}

// New builds a Server over the given subsystems.
func New(cfg *config.Config, db *store.Database, repl *replication.Replicator) *Server {
	return &Server{
		cfg:          cfg,
		db:           db,
		repl:         repl,
		rt:           router.New(cfg, db, repl),
		shutdownChan: make(chan struct{}),
	}
}

// Start binds the listener and serves connections until ctx is
// cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = listener
	log.Printf("[server] listening on %s", addr)

	go s.acceptLoop(ctx)

	<-ctx.Done()
	s.Shutdown()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shuttingDown := s.isShutdown
			s.mu.Unlock()
			if shuttingDown {
				return
			}
			log.Printf("[server] accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := s.connIDCounter.Add(1)
	s.activeConnCount.Add(1)
	defer s.activeConnCount.Add(-1)

	s.connections.Store(connID, conn)
	defer s.connections.Delete(connID)
	defer conn.Close()

	started := time.Now()
	reader := resp.NewFrameReader(conn)

	for {
		op, err := reader.ReadOperation()
		if err != nil {
			var protoErr *resp.ProtocolError
			if !errors.As(err, &protoErr) {
				break
			}
			out, serr := resp.Serialize(resp.Error(protoErr.Error()))
			if serr != nil {
				break
			}
			if _, werr := conn.Write(out); werr != nil {
				break
			}
			continue
		}

		reply := s.rt.Handle(op)

		out, err := resp.Serialize(reply)
		if err != nil {
			log.Printf("[server] connection %d: cannot serialize reply: %v", connID, err)
			break
		}
		if _, err := conn.Write(out); err != nil {
			break
		}

		if router.IsWrite(op) {
			if _, failed := reply.(resp.Error); !failed {
				s.repl.Distribute(op)
			}
			s.repl.AddOffset(mustFrameLen(op))
		}
	}

	if d := time.Since(started); d > 2*time.Second {
		log.Printf("[server] connection %d from %s closed after %v", connID, conn.RemoteAddr(), d.Round(time.Second))
	}
}

// mustFrameLen re-serializes op to measure the inbound frame's wire
// length for replication offset accounting; op was just parsed from
// the wire so re-encoding it is always well-formed.
func mustFrameLen(op resp.Operation) int {
	out, err := resp.Serialize(op)
	if err != nil {
		return 0
	}
	return len(out)
}

// Shutdown closes the listener and every live connection, then waits
// (bounded) for in-flight handlers to return.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return
	}
	s.isShutdown = true
	s.mu.Unlock()

	close(s.shutdownChan)
	if s.listener != nil {
		s.listener.Close()
	}

	s.connections.Range(func(_, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			conn.Close()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[server] all connections closed gracefully")
	case <-time.After(5 * time.Second):
		log.Println("[server] shutdown timeout reached, forcing exit")
	}
}
