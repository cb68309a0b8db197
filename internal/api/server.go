// Package api serves the ccbilling and genproj HTTP API along with a
// status and event stream for operators.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/household/internal/auth"
	"github.com/theirongolddev/household/internal/blob"
	"github.com/theirongolddev/household/internal/capability"
	"github.com/theirongolddev/household/internal/orders"
	"github.com/theirongolddev/household/internal/store"
)

// Config wires the API server to its dependencies.
type Config struct {
	Addr             string
	Store            *store.Store
	Bucket           blob.Bucket
	Catalog          *capability.Catalog
	Orders           *orders.Client
	// OrderCacheMaxAge bounds cached order details served by amazon-details.
	OrderCacheMaxAge time.Duration
	// Issuer is nil when authentication is disabled.
	Issuer           *auth.Issuer
	Allow            *auth.Allowlist
	Logger           logrus.FieldLogger
	EventsBuffer     int
	Now              func() time.Time
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	UptimeSec       int64     `json:"uptime_sec"`
	RequestCount    int64     `json:"request_count"`
	LastEventAt     time.Time `json:"last_event_at,omitzero"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
	AuthEnabled     bool      `json:"auth_enabled"`
	OrdersEnabled   bool      `json:"orders_enabled"`
}

// Server is the household HTTP API.
type Server struct {
	cfg Config
	log logrus.FieldLogger

	startedAt time.Time
	requests  atomic.Int64

	mu          sync.RWMutex
	nextEventID int64
	events      []Event
	nextSubID   int
	subs        map[int]chan Event

	quit     chan struct{}
	quitOnce sync.Once
}

// New returns a server with defaults applied.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OrderCacheMaxAge <= 0 {
		cfg.OrderCacheMaxAge = store.DefaultOrderMaxAge
	}
	if cfg.Catalog == nil {
		cfg.Catalog = capability.Default()
	}
	if cfg.Allow == nil {
		cfg.Allow = auth.NewAllowlist(nil)
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Server{
		cfg:       cfg,
		log:       log.WithField("component", "api"),
		startedAt: cfg.Now(),
		subs:      make(map[int]chan Event),
		quit:      make(chan struct{}),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.NotFoundHandler = s.logRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	}))
	r.MethodNotAllowedHandler = s.logRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/v1/stream", s.handleStream).Methods(http.MethodGet)

	cc := r.PathPrefix("/projects/ccbilling").Subrouter()
	cc.Use(auth.Middleware(s.cfg.Issuer, s.cfg.Allow))
	s.routeBilling(cc)

	gp := r.PathPrefix("/projects/genproj/api").Subrouter()
	gp.HandleFunc("/capabilities", s.handleListCapabilities).Methods(http.MethodGet)
	gp.HandleFunc("/capabilities", s.handleResolveCapabilities).Methods(http.MethodPost)
	gp.HandleFunc("/conflicts", s.handleConflicts).Methods(http.MethodPost)

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.WithField("addr", s.cfg.Addr).Info("api listening")

	select {
	case <-ctx.Done():
		// Streams hold their connections open; release them first.
		s.quitOnce.Do(func() { close(s.quit) })
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("api http server: %w", err)
	}
}

func (s *Server) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		StartedAt:       s.startedAt,
		UptimeSec:       int64(s.cfg.Now().Sub(s.startedAt).Seconds()),
		RequestCount:    s.requests.Load(),
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
		AuthEnabled:     s.cfg.Issuer != nil,
		OrdersEnabled:   s.cfg.Orders.Configured(),
	}
	if n := len(s.events); n > 0 {
		st.LastEventAt = s.events[n-1].Timestamp
	}
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}
