package aipprof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/volcengine/apminsight-pprof-go/logger"
)

// Server serves a Service on its own gin engine and listener.
type Server struct {
	cfg     *Config
	service *Service
	engine  *gin.Engine

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
	wg  sync.WaitGroup

	logger logger.Logger
}

func NewServer(opts ...Option) *Server {
	cfg := newConfig(opts...)
	s := &Server{
		cfg:     cfg,
		service: newService(cfg),
		logger:  cfg.Logger,
	}
	s.engine = s.newEngine()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery(), s.logRequests())

	prefix := s.cfg.PathPrefix
	for _, route := range Routes() {
		h := s.handle(route)
		if route == RouteIndex {
			if prefix != "" {
				e.GET(prefix, h)
			}
			e.GET(prefix+"/", h)
			continue
		}
		e.GET(prefix+"/"+route, h)
		e.GET(prefix+"/"+route+"/", h)
	}
	e.NoRoute(func(c *gin.Context) {
		s.service.NotFound(c.Request.URL.Path).Write(c.Writer)
	})
	return e
}

func (s *Server) handle(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.service.Handle(c.Request.Context(), route, c.Request.URL.Query()).Write(c.Writer)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("[Server.logRequests] %s %s status=%d cost=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Handler exposes the engine, e.g. to mount it on an existing http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Service() *Service {
	return s.service
}

// Start listens on the configured address and serves in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.engine}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("[Server.Start] serve failed: %v", err)
		}
	}()
	s.logger.Info("[Server.Start] pprof endpoints at http://%s%s/", ln.Addr(), s.cfg.PathPrefix)
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx is done.
// The server can be started again afterwards.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.wg.Wait()

	s.mu.Lock()
	if s.srv == srv {
		s.srv, s.ln = nil, nil
	}
	s.mu.Unlock()
	s.logger.Info("[Server.Stop] stopped")
	return err
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// StartPprofServer starts a Server at host:port in the background.
// The endpoints are then available under /debug/pprof. Call Stop to shut it down.
func StartPprofServer(host string, port int, opts ...Option) (*Server, error) {
	opts = append(opts, WithAddr(net.JoinHostPort(host, strconv.Itoa(port))))
	s := NewServer(opts...)
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}
