package config

import "time"

type Upstream struct {
	// UpstreamTimeout bounds a single content API call, a timeout is handled as any other upstream failure.
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	// CoalesceUpstream makes concurrent cache misses for the same key share one upstream call.
	CoalesceUpstream bool   `mapstructure:"COALESCE_UPSTREAM"`
	NotionAPIURL     string `mapstructure:"NOTION_API_URL"`
	NotionAPIVersion string `mapstructure:"NOTION_API_VERSION"`
	TokenSecret      string `mapstructure:"TOKEN_SECRET"`
}
