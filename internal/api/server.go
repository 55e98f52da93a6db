// Package api provides the HTTP API server and handlers for the books-manager server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/books-manager/books-manager-server/internal/ledger"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/metrics"
	"github.com/books-manager/books-manager-server/internal/ratelimit"
	"github.com/books-manager/books-manager-server/internal/service"
	"github.com/books-manager/books-manager-server/internal/store"
)

// BasePath prefixes every operation, matching the web front-end's proxy.
const BasePath = "/prod-api/books-manager"

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Services groups the business logic used by the handlers.
type Services struct {
	Users   *service.UserService
	Catalog *service.CatalogService
	Ledger  *ledger.Ledger
}

// Options configures the HTTP surface.
type Options struct {
	// StaticDir, when set, is served at "/" with an index.html fallback.
	StaticDir   string
	CORSOrigins []string
	// LoginRatePerMinute limits login attempts per client IP. Zero disables it.
	LoginRatePerMinute int

	Metrics *metrics.Metrics
	// Store is pinged by the health check.
	Store store.Store
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services     *Services
	opts         Options
	router       chi.Router
	api          huma.API
	loginLimiter *ratelimit.KeyedRateLimiter
	logger       *slog.Logger
}

// NewServer creates the router, registers every operation and returns the
// server ready to be used as an http.Handler.
func NewServer(services *Services, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		services: services,
		opts:     opts,
		router:   chi.NewRouter(),
		logger:   log.With("component", "api"),
	}
	if opts.LoginRatePerMinute > 0 {
		s.loginLimiter = ratelimit.PerMinute(opts.LoginRatePerMinute)
	}

	s.setupMiddleware()

	s.api = humachi.New(s.router, NewHumaConfig())
	RegisterErrorHandler(s.logger)

	s.registerHealthRoutes()
	s.registerUserRoutes()
	s.registerBookRoutes()
	s.registerAdminRoutes()

	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics.Handler())
	}
	if opts.StaticDir != "" {
		s.router.NotFound(staticHandler(opts.StaticDir).ServeHTTP)
	}

	return s
}

// NewHumaConfig returns the Huma configuration shared by the server and tests.
func NewHumaConfig() huma.Config {
	config := huma.DefaultConfig("Books Manager API", Version)
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"token": {
			Type: "apiKey",
			In:   "header",
			Name: TokenHeader,
		},
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	config.Formats = map[string]huma.Format{
		"application/json": jsonFormat,
		"json":             jsonFormat,
	}
	config.Transformers = append(config.Transformers, EnvelopeTransformer)
	return config
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the Huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	if s.loginLimiter != nil {
		s.loginLimiter.Stop()
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	if s.opts.Metrics != nil {
		s.router.Use(s.opts.Metrics.Middleware)
	}
	if len(s.opts.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", TokenHeader},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	s.router.Use(clientIPMiddleware)
	s.router.Use(languageMiddleware)
	s.router.Use(authMiddleware(s.services.Users))
}

// secured marks an operation as requiring a token in the OpenAPI document.
var secured = []map[string][]string{{"token": {}}, {"bearer": {}}}
