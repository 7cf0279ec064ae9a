package config

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	AppDebug bool   `mapstructure:"APP_DEBUG"`
	// AdminToken guards cache invalidation and connection endpoints (empty disables them).
	AdminToken string `mapstructure:"ADMIN_TOKEN"`

	Storage    `mapstructure:",squash"`
	Rate       `mapstructure:",squash"`
	Upstream   `mapstructure:",squash"`
	Repository `mapstructure:",squash"`
}

func (c *Config) IsDebugOn() bool {
	return c.AppDebug
}
