package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/usecase/profile"
	"rateKit/internal/usecase/sns"
)

const userHeader = "X-User-ID"

type SNSService interface {
	Connect(ctx context.Context, userID string, platform domain.Platform, in sns.CredentialInput) (domain.PlatformIdentity, error)
	RefreshStats(ctx context.Context, userID string, platform domain.Platform) error
	RefreshAllStats(ctx context.Context, userID string) ([]sns.RefreshResult, error)
	LatestStats(ctx context.Context, userID string, platform domain.Platform) (*domain.StatsSnapshot, error)
	Portfolio(ctx context.Context, userID string) ([]sns.AccountPortfolio, error)
	BuildAuthorizationURL(ctx context.Context, userID string, platform domain.Platform) (sns.AuthorizationRequest, error)
	HandleCallback(ctx context.Context, code, state string) (domain.PlatformIdentity, error)
}

type PricingService interface {
	ComputePlatformRate(ctx context.Context, userID string, platform domain.Platform, tier domain.BrandTier) (*domain.RateCard, error)
	ComputeAllRates(ctx context.Context, userID string, tier domain.BrandTier) ([]domain.RateCard, error)
}

type ProfileService interface {
	Summary(ctx context.Context, userID string) (*profile.Summary, error)
}

// EventSource is satisfied by *events.Bus.
type EventSource interface {
	Subscribe(topic string) (<-chan any, func())
}

type Config struct {
	Addr    string
	SNS     SNSService
	Pricing PricingService
	Profile ProfileService
	Events  EventSource
	// Topics forwarded to websocket clients.
	Topics []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// FrontendURL receives the browser after an OAuth callback.
	FrontendURL string
}

func (c Config) addr() string {
	if c.Addr == "" {
		return ":8080"
	}
	return c.Addr
}

// Server exposes the engine over REST and relays bus events to websocket
// clients on /ws/events.
type Server struct {
	cfg      Config
	router   *mux.Router
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	httpSrv *http.Server
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

func NewServer(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*wsClient]struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogging)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(withCORS)
	api.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	api.HandleFunc("/sns/connect", s.requireUser(s.handleConnect)).Methods(http.MethodPost)
	api.HandleFunc("/sns/refresh", s.requireUser(s.handleRefreshAll)).Methods(http.MethodPost)
	api.HandleFunc("/sns/refresh/{platform}", s.requireUser(s.handleRefresh)).Methods(http.MethodPost)
	api.HandleFunc("/sns/stats/{platform}", s.requireUser(s.handleStats)).Methods(http.MethodGet)
	api.HandleFunc("/sns/portfolio", s.requireUser(s.handlePortfolio)).Methods(http.MethodGet)

	api.HandleFunc("/price/calc", s.requireUser(s.handlePriceCalc)).Methods(http.MethodPost)
	api.HandleFunc("/price/calc-all", s.requireUser(s.handlePriceCalcAll)).Methods(http.MethodPost)

	api.HandleFunc("/profile", s.requireUser(s.handleProfile)).Methods(http.MethodGet)

	api.HandleFunc("/oauth/{platform}/start", s.requireUser(s.handleOAuthStart)).Methods(http.MethodPost)
	api.HandleFunc("/oauth/{platform}/callback", s.handleOAuthCallback).Methods(http.MethodGet)

	r.HandleFunc("/ws/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go s.forwardEvents(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.closeClients()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: shutdown error")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("api: listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+userHeader)
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("api: response writer cannot hijack")
	}
	return h.Hijack()
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("api: request")
	})
}
