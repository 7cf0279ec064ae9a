package config

import (
	"time"

	widgetconfig "github.com/Borislavv/notion-widget-cache/pkg/config"
	serverconfig "github.com/Borislavv/notion-widget-cache/pkg/server/config"
)

type Config struct {
	serverconfig.HttpServer `mapstructure:",squash"`
	widgetconfig.Config     `mapstructure:",squash"`

	LivenessProbeTimeout time.Duration `mapstructure:"LIVENESS_PROBE_FAILED_TIMEOUT"`
}
