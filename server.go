// Package gosimplehttp is an embeddable HTTP/1.1 server that multiplexes
// many TCP or UNIX-domain client connections from a single thread using
// epoll readiness notification. Register handlers, call Serve, and it
// blocks the calling goroutine for the server's lifetime; call Kill from
// any other goroutine to stop it.
package gosimplehttp

import (
	"github.com/sirupsen/logrus"

	"github.com/megakuul/gosimplehttp/internal/fd"
	"github.com/megakuul/gosimplehttp/internal/listener"
	"github.com/megakuul/gosimplehttp/internal/loop"
	"github.com/megakuul/gosimplehttp/internal/router"
)

// Server is the embeddable HTTP server facade. It owns the listening
// descriptor and the route table; Serve hands both to a loop.Loop for the
// duration of one call.
type Server struct {
	listenFD *fd.Handle
	routes   *router.Table
	cfg      *Config
	log      *logrus.Logger
}

// NewTCP4 binds an IPv4 stream socket at addr:port. addr must be a
// dotted-quad literal; a malformed address fails with listener.ErrInvalidArgument.
func NewTCP4(addr string, port int, opts ...Option) (*Server, error) {
	s := newServer(opts...)
	h, err := listener.TCP4(addr, port, s.cfg.SocketBufferSize)
	if err != nil {
		return nil, err
	}
	s.listenFD = h
	return s, nil
}

// NewUnix binds a UNIX domain stream socket at path, creating parent
// directories and removing a stale socket file as needed.
func NewUnix(path string, opts ...Option) (*Server, error) {
	s := newServer(opts...)
	h, err := listener.Unix(path)
	if err != nil {
		return nil, err
	}
	s.listenFD = h
	return s, nil
}

func newServer(opts ...Option) *Server {
	s := &Server{
		routes: router.New(),
		cfg:    DefaultConfig(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers h for method at path. Must be called before Serve; the
// route table is read-only once the loop starts.
func (s *Server) Handle(method, path string, h Handler) {
	s.routes.Register(path, method, h)
}

// Get registers a GET handler at path.
func (s *Server) Get(path string, h Handler) { s.Handle("GET", path, h) }

// Post registers a POST handler at path.
func (s *Server) Post(path string, h Handler) { s.Handle("POST", path, h) }

// Put registers a PUT handler at path.
func (s *Server) Put(path string, h Handler) { s.Handle("PUT", path, h) }

// Patch registers a PATCH handler at path.
func (s *Server) Patch(path string, h Handler) { s.Handle("PATCH", path, h) }

// Delete registers a DELETE handler at path.
func (s *Server) Delete(path string, h Handler) { s.Handle("DELETE", path, h) }

// Serve performs listen(), enters the epoll event loop, and blocks the
// calling goroutine until Kill is called from another goroutine or a
// loop-fatal error occurs. It is not safe to call Serve more than once
// concurrently on the same Server.
func (s *Server) Serve() error {
	l := loop.New(s.listenFD, s.routes, s.cfg, s.log)
	return l.Run()
}

// Kill requests graceful shutdown: it closes the listening descriptor,
// which causes the next loop iteration inside Serve to observe hangup and
// return normally. Safe to call from any goroutine, and safe to call more
// than once.
func (s *Server) Kill() error {
	return s.listenFD.Close()
}
