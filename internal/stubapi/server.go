package stubapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/config"
	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/clog"
)

type Server struct {
	server  *http.Server
	env     *config.StubEnv
	handler *handler
}

type Option func(*Server)

// WithClock fixes the time used for plan deadlines and message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.handler.now = now }
}

func NewServer(env *config.StubEnv, repo *Repository, opts ...Option) (*Server, error) {
	chans, err := env.Channels()
	if err != nil {
		return nil, err
	}
	channels := make([]apiclient.Channel, len(chans))
	for i, c := range chans {
		channels[i] = apiclient.Channel{ID: c.ID, Name: c.Name}
	}
	s := &Server{
		env:     env,
		handler: &handler{repo: repo, channels: channels, now: time.Now},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the full HTTP handler, including CORS, h2c and the API
// key check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		clog.SlogChiMiddleware(),
		cerr.NewJSONResponseChiMiddleware(),
	)
	r.Route("/api", s.handler.routes)
	r.Route("/slack/api", s.handler.slackRoutes)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		cerr.SetNewJSONError(r.Context(), cerr.InvalidArgument, "method not allowed", nil)
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle("/slack/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker()))

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{})
}

// ListenAndServe serves until Shutdown is called. ctx becomes the base
// context of every request.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting stub api", "addr", addr, "channels", len(s.handler.channels))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/grpc.health.v1.Health/Check" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.env.APIKey)) != 1 {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","code":"unauthenticated"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
