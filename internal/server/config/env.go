package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// parseEnv overlays SPARKLY_* variables. Unset variables leave the current
// value untouched; durations use time.ParseDuration syntax.
func parseEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
