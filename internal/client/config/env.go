package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name read by parseEnv.
const EnvPrefix = "STOREFRONT_"

// parseEnv overlays cfg with STOREFRONT_* variables. Unset variables leave
// the field untouched.
func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}
