package server

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/Borislavv/notion-widget-cache/internal/gallery/api"
	"github.com/Borislavv/notion-widget-cache/internal/gallery/config"
	"github.com/Borislavv/notion-widget-cache/pkg/k8s/probe/liveness"
	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics"
	metricscontroller "github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics/controller"
	metricsmiddleware "github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics/middleware"
	"github.com/Borislavv/notion-widget-cache/pkg/rate"
	"github.com/Borislavv/notion-widget-cache/pkg/repository"
	httpserver "github.com/Borislavv/notion-widget-cache/pkg/server"
	"github.com/Borislavv/notion-widget-cache/pkg/server/controller"
	"github.com/Borislavv/notion-widget-cache/pkg/server/middleware"
	"github.com/Borislavv/notion-widget-cache/pkg/storage"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

var InitFailedErrorMessage = "[server] init. failed"

type Http interface {
	Start()
	IsAlive() bool
}

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Posts   api.Poster
	Cache   storage.Storage
	Limiter rate.Limiter
	Content repository.ContentSource
	Probe   liveness.Prober
	Meter   metrics.Meter
}

type HttpServer struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg           *config.Config
	deps          Deps
	server        *httpserver.HTTP
	isServerAlive *atomic.Bool
}

func New(ctx context.Context, cfg *config.Config, deps Deps) (*HttpServer, error) {
	ctx, cancel := context.WithCancel(ctx)

	srv := &HttpServer{
		ctx:           ctx,
		cancel:        cancel,
		cfg:           cfg,
		deps:          deps,
		isServerAlive: &atomic.Bool{},
	}

	server, err := httpserver.New(ctx, cfg, srv.controllers(), srv.middlewares())
	if err != nil {
		cancel()
		log.Err(err).Msg(InitFailedErrorMessage)
		return nil, errors.New(InitFailedErrorMessage)
	}
	srv.server = server

	return srv, nil
}

// Start serves until the context is canceled.
func (s *HttpServer) Start() {
	defer s.cancel()

	s.isServerAlive.Store(true)
	defer s.isServerAlive.Store(false)

	s.server.ListenAndServe()
}

func (s *HttpServer) IsAlive() bool {
	return s.isServerAlive.Load()
}

// Handler is the full handler chain, it serves in-memory requests in tests.
func (s *HttpServer) Handler() fasthttp.RequestHandler {
	return s.server.Handler()
}

func (s *HttpServer) controllers() []controller.HttpController {
	controllers := []controller.HttpController{
		liveness.NewController(s.deps.Probe),
		api.NewWidgetController(s.ctx, s.cfg, s.deps.Posts),
		api.NewStatusController(s.deps.Cache, s.deps.Limiter),
		api.NewAdminController(s.ctx, s.cfg.AdminToken, s.deps.Cache, s.deps.Content),
	}
	if s.cfg.IsPrometheusMetricsEnabled() {
		controllers = append(controllers, metricscontroller.NewPrometheusMetrics())
	}
	return controllers
}

// middlewares are executed in the slice order.
func (s *HttpServer) middlewares() []middleware.HttpMiddleware {
	middlewares := []middleware.HttpMiddleware{
		/** exec 1st. */ middleware.NewRequestID(),
		/** exec 2nd. */ middleware.NewWatermarkMiddleware(s.cfg),
		/** exec 3rd. */ middleware.NewDuration(),
	}
	if s.cfg.IsPrometheusMetricsEnabled() {
		middlewares = append(middlewares, metricsmiddleware.NewPrometheusMetrics(s.deps.Meter))
	}
	return middlewares
}
