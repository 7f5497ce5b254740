// Package ops serves the daemon's health and metrics endpoints.
package ops

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Health is reported by GET /healthz.
type Health struct {
	Status    string `json:"status"`
	Principal string `json:"principal,omitempty"`
	Since     string `json:"since,omitempty"`
}

// HealthFunc samples the daemon state. ok=false answers 503.
type HealthFunc func() (h Health, ok bool)

// Server is the ops HTTP listener.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewRouter builds the gin engine for the ops endpoints.
func NewRouter(reg *prometheus.Registry, health HealthFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		h, ok := health()
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, h)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return r
}

// NewServer creates the listener on addr.
func NewServer(addr string, reg *prometheus.Registry, health HealthFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(reg, health),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("ops listener started", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops listener failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
