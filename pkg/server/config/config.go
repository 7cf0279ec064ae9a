package config

import (
	"time"
)

type Configurator interface {
	GetHttpServerName() string
	GetHttpServerPort() string
	GetHttpServerShutDownTimeout() time.Duration
	GetHttpServerRequestTimeout() time.Duration
	IsPrometheusMetricsEnabled() bool
}

type HttpServer struct {
	// ServerName is a name of the server, it is sent back in X-Server-Name.
	ServerName string `mapstructure:"SERVER_NAME"`
	// ServerPort is an address for the server (widgets, admin api, probe and metrics).
	ServerPort string `mapstructure:"SERVER_PORT"`
	// ServerShutDownTimeout is a duration value before the server will be closed forcefully.
	ServerShutDownTimeout time.Duration `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
	// ServerRequestTimeout bounds reading a request and writing its response.
	ServerRequestTimeout time.Duration `mapstructure:"SERVER_REQUEST_TIMEOUT"`
	// IsEnabledPrometheusMetrics defines whether /metrics and the request instrumentation are enabled.
	IsEnabledPrometheusMetrics bool `mapstructure:"IS_PROMETHEUS_METRICS_ENABLED"`
}

func (c HttpServer) GetHttpServerName() string {
	return c.ServerName
}

func (c HttpServer) GetHttpServerPort() string {
	return c.ServerPort
}

func (c HttpServer) GetHttpServerShutDownTimeout() time.Duration {
	return c.ServerShutDownTimeout
}

func (c HttpServer) GetHttpServerRequestTimeout() time.Duration {
	return c.ServerRequestTimeout
}

func (c HttpServer) IsPrometheusMetricsEnabled() bool {
	return c.IsEnabledPrometheusMetrics
}
