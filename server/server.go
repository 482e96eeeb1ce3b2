// Package server exposes the session manager and the catalog operations to the
// console front end as a small JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-admin-console/auth"
	"github.com/jrsteele09/go-admin-console/catalog"
	"github.com/jrsteele09/go-admin-console/catalogmodel"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the part of the application configuration the facade reads.
type Config interface {
	config.EnvConfig
	config.CorsConfig
}

// Catalog is the read side of the REST backend plus the order operations that
// need no coordination. *api.Client satisfies it.
type Catalog interface {
	ListProducts(ctx context.Context, opts catalogmodel.ListOptions) (*catalogmodel.Page[catalogmodel.Product], error)
	ListOrders(ctx context.Context, opts catalogmodel.ListOptions) (*catalogmodel.Page[catalogmodel.Order], error)
	GetOrder(ctx context.Context, id int64) (*catalogmodel.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status catalogmodel.OrderStatus) (*catalogmodel.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	DashboardSummary(ctx context.Context) (*catalogmodel.DashboardSummary, error)
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      Config
	sessions    *auth.Manager
	coordinator *catalog.Coordinator
	catalog     Catalog
	logger      zerolog.Logger
	maxUpload   int64
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxUploadSize caps the size of a multipart product create request.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

const defaultMaxUpload = 32 << 20

func New(cfg Config, sessions *auth.Manager, coordinator *catalog.Coordinator, reads Catalog, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if sessions == nil {
		return nil, errors.New("[Server New] session manager is required")
	}
	if coordinator == nil {
		return nil, errors.New("[Server New] catalog coordinator is required")
	}
	if reads == nil {
		return nil, errors.New("[Server New] catalog backend is required")
	}

	s := &Server{
		env:         cfg.GetEnv(),
		mux:         http.NewServeMux(),
		config:      cfg,
		sessions:    sessions,
		coordinator: coordinator,
		catalog:     reads,
		logger:      log.Logger,
		maxUpload:   defaultMaxUpload,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered route patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Debug().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
