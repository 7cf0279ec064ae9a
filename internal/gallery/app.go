package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/Borislavv/notion-widget-cache/internal/gallery/config"
	"github.com/Borislavv/notion-widget-cache/internal/gallery/server"
	"github.com/Borislavv/notion-widget-cache/pkg/clock"
	"github.com/Borislavv/notion-widget-cache/pkg/crypto"
	"github.com/Borislavv/notion-widget-cache/pkg/k8s/probe/liveness"
	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics"
	"github.com/Borislavv/notion-widget-cache/pkg/rate"
	"github.com/Borislavv/notion-widget-cache/pkg/repository"
	"github.com/Borislavv/notion-widget-cache/pkg/service"
	"github.com/Borislavv/notion-widget-cache/pkg/shutdown"
	"github.com/Borislavv/notion-widget-cache/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

type App interface {
	Start(gc shutdown.Gracefuller)
}

// Gallery owns the widget service lifecycle: stores, freshness pipeline, HTTP server and probe.
type Gallery struct {
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	probe  liveness.Prober
	server server.Http
	cache  storage.Storage
	mongo  *mongo.Client // nil with the in-memory widget repository
}

func NewApp(ctx context.Context, cfg *config.Config, probe liveness.Prober) (*Gallery, error) {
	ctx, cancel := context.WithCancel(ctx)

	app := &Gallery{cfg: cfg, ctx: ctx, cancel: cancel, probe: probe}
	if err := app.init(); err != nil {
		app.stop()
		return nil, err
	}
	return app, nil
}

func (g *Gallery) init() error {
	var meter metrics.Meter = metrics.Nop{}
	if g.cfg.IsPrometheusMetricsEnabled() {
		m, err := metrics.New(prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
		meter = m
	}

	codec, err := crypto.NewTokenCodec(g.cfg.TokenSecret)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	widgets, err := g.widgets()
	if err != nil {
		return err
	}

	clk := clock.New()
	cache := storage.New(g.cfg.Storage, clk, storage.Connect(g.ctx, g.cfg.Storage), meter)
	cache.Watch(g.ctx, storage.ReconnectInterval)
	g.cache = cache
	limiter := rate.NewLimiter(g.cfg.Rate, clk)
	content := repository.NewNotion(g.cfg.Upstream)
	freshness := service.NewFreshness(g.cfg.Upstream, widgets, g.cache, limiter, content, codec, meter)

	srv, err := server.New(g.ctx, g.cfg, server.Deps{
		Posts:   freshness,
		Cache:   g.cache,
		Limiter: limiter,
		Content: content,
		Probe:   g.probe,
		Meter:   meter,
	})
	if err != nil {
		return err
	}
	g.server = srv
	return nil
}

func (g *Gallery) widgets() (repository.WidgetRepository, error) {
	switch {
	case g.cfg.MongoURI != "":
		client, db, err := repository.ConnectMongo(g.ctx, g.cfg.Repository)
		if err != nil {
			return nil, err
		}
		g.mongo = client
		return repository.NewMongoWidgets(db), nil
	case g.cfg.WidgetsSeedFile != "":
		log.Info().Str("file", g.cfg.WidgetsSeedFile).Msg("[app] widgets are served from the seed file")
		return repository.LoadMemoryWidgets(g.cfg.WidgetsSeedFile)
	default:
		return nil, errors.New("neither MONGO_URI nor WIDGETS_SEED_FILE is configured")
	}
}

// Start runs the server and registers it in the liveness probe, gc.Done is called once everything is stopped.
func (g *Gallery) Start(gc shutdown.Gracefuller) {
	defer func() {
		g.stop()
		gc.Done()
	}()

	log.Info().Msg("[app] starting gallery app")

	waitCh := make(chan struct{})
	go func() {
		defer close(waitCh)
		g.probe.Watch(g)
		g.server.Start()
	}()

	log.Info().Msg("[app] gallery app has been started")

	<-waitCh
}

func (g *Gallery) stop() {
	log.Info().Msg("[app] stopping gallery app")
	g.cancel()

	if g.cache != nil {
		if err := g.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("[app] failed to close cache")
		}
	}
	if g.mongo != nil {
		if err := g.mongo.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("[app] failed to disconnect mongo")
		}
	}
	log.Info().Msg("[app] gallery app has been stopped")
}

// IsAlive is called by the liveness probe.
func (g *Gallery) IsAlive(_ context.Context) bool {
	if !g.server.IsAlive() {
		log.Info().Msg("[app] http server has gone away")
		return false
	}
	return true
}
