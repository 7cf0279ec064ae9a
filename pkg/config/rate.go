package config

import "time"

// Rate describes the upstream quota as two sliding windows:
// a short one (RegularLimit per RegularWindow) and a longer burst one.
type Rate struct {
	RegularLimit  int           `mapstructure:"RATE_REGULAR_LIMIT"`
	RegularWindow time.Duration `mapstructure:"RATE_REGULAR_WINDOW"`
	BurstLimit    int           `mapstructure:"RATE_BURST_LIMIT"`
	BurstWindow   time.Duration `mapstructure:"RATE_BURST_WINDOW"`
}
