package main

import (
	"context"
	"errors"
	"io/fs"
	"runtime"
	"time"

	"github.com/Borislavv/notion-widget-cache/internal/gallery"
	"github.com/Borislavv/notion-widget-cache/internal/gallery/config"
	"github.com/Borislavv/notion-widget-cache/pkg/k8s/probe/liveness"
	"github.com/Borislavv/notion-widget-cache/pkg/shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
)

var envDefaults = map[string]any{
	"APP_ENV":                       "dev",
	"APP_DEBUG":                     false,
	"SERVER_NAME":                   "notion-widget-cache",
	"SERVER_PORT":                   ":8020",
	"SERVER_SHUTDOWN_TIMEOUT":       "5s",
	"SERVER_REQUEST_TIMEOUT":        "30s",
	"IS_PROMETHEUS_METRICS_ENABLED": true,
	"LIVENESS_PROBE_FAILED_TIMEOUT": "5s",
	"CACHE_ENABLED":                 true,
	"CACHE_TTL_SECONDS":             30,
	"LOCAL_CACHE_SHARD_LEN":         16,
	"REDIS_URL":                     "",
	"REDIS_ADDR":                    "",
	"REDIS_PASSWORD":                "",
	"REDIS_DB":                      0,
	"REDIS_DIAL_TIMEOUT":            "2s",
	"RATE_REGULAR_LIMIT":            3,
	"RATE_REGULAR_WINDOW":           "1s",
	"RATE_BURST_LIMIT":              10,
	"RATE_BURST_WINDOW":             "10s",
	"UPSTREAM_TIMEOUT":              "10s",
	"COALESCE_UPSTREAM":             false,
	"NOTION_API_URL":                "https://api.notion.com",
	"NOTION_API_VERSION":            "2022-06-28",
	"MONGO_URI":                     "",
	"MONGO_DATABASE":                "widgets",
	"WIDGETS_SEED_FILE":             "",
	"TOKEN_SECRET":                  "",
	"ADMIN_TOKEN":                   "",
}

// Loads .env files when present and binds every known key, so any value can be overridden by the environment.
func init() {
	for _, file := range []string{".env", ".env.local"} {
		if err := godotenv.Overload(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	viper.AutomaticEnv()
	for key, value := range envDefaults {
		_ = viper.BindEnv(key)
		viper.SetDefault(key, value)
	}
}

// setMaxProcs sets GOMAXPROCS according to the container CPU quota.
func setMaxProcs() {
	if _, err := maxprocs.Set(); err != nil {
		log.Err(err).Msg("[main] setting up GOMAXPROCS value failed")
		panic(err)
	}
	log.Info().Msgf("[main] optimized GOMAXPROCS=%d was set up", runtime.GOMAXPROCS(0))
}

func loadCfg() *config.Config {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		log.Err(err).Msg("[main] failed to unmarshal config from envs")
		panic(err)
	}
	return cfg
}

func setLogLevel(cfg *config.Config) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.IsDebugOn() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setMaxProcs()

	cfg := loadCfg()
	setLogLevel(cfg)

	gracefulShutdown := shutdown.NewGraceful(ctx, cancel)
	gracefulShutdown.SetGracefulTimeout(cfg.GetHttpServerShutDownTimeout() + 5*time.Second)

	probe := liveness.NewProbe(cfg.LivenessProbeTimeout)

	if app, err := gallery.NewApp(ctx, cfg, probe); err != nil {
		log.Err(err).Msg("[main] failed to init gallery app")
		cancel()
	} else {
		gracefulShutdown.Add(1)
		go app.Start(gracefulShutdown)
	}

	if err := gracefulShutdown.ListenCancelAndAwait(); err != nil {
		log.Err(err).Msg("[main] failed to gracefully shut down service")
	}
}
