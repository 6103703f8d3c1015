// Package api exposes pool operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ammEngine/internal/pool"
)

// Server provides the HTTP API for a pool service.
type Server struct {
	svc    *pool.Service
	logger *zap.Logger
	router *mux.Router
	http   *http.Server
}

// NewServer wires routes for svc. gatherer backs /metrics and may be nil.
func NewServer(svc *pool.Service, gatherer prometheus.Gatherer, logger *zap.Logger, addr string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, logger: logger}

	r := mux.NewRouter()

	r.HandleFunc("/pools", s.handleListPools).Methods(http.MethodGet)
	r.HandleFunc("/pools", s.handleInitialize).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}", s.handleGetPool).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/quote", s.handleQuote).Methods(http.MethodGet)
	r.HandleFunc("/pools/{id}/swap", s.handleSwap).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/deposit", s.handleDeposit).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/lock", s.handleLock(true)).Methods(http.MethodPost)
	r.HandleFunc("/pools/{id}/unlock", s.handleLock(false)).Methods(http.MethodPost)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router = r
	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("api listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
