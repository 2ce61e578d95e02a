package config

import (
	"fmt"
	"time"
)

// Storage backends for the local key-value store.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Profile backends.
const (
	ProfileBackendGRPC     = "grpc"
	ProfileBackendPostgres = "postgres"
)

// Config holds runtime settings for the storefront auth CLI.
//
// Durations are time.Duration values; the JSON loader accepts strings such
// as "1s" or integer nanoseconds, the environment uses Go duration syntax.
type Config struct {
	ServerEndpointAddr string `env:"SERVER_ADDR"`
	Namespace          string `env:"NAMESPACE"`

	StorageBackend string `env:"STORAGE"`
	SQLitePath     string `env:"SQLITE_PATH"`
	RedisAddr      string `env:"REDIS_ADDR"`
	// StorageSecret enables sealing of stored values when non-empty.
	StorageSecret string `env:"STORAGE_SECRET"`

	ProfileBackend string `env:"PROFILE_BACKEND"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	FallbackPollDelay time.Duration `env:"POLL_DELAY"`
	SignupGracePeriod time.Duration `env:"SIGNUP_GRACE"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"`
	ResendCooldown    time.Duration `env:"RESEND_COOLDOWN"`
	OTPTTL            time.Duration `env:"OTP_TTL"`
	ProfileCacheTTL   time.Duration `env:"PROFILE_CACHE_TTL"`

	SignupCodeLength int `env:"SIGNUP_CODE_LENGTH"`
	ResetCodeLength  int `env:"RESET_CODE_LENGTH"`
	ChangeCodeLength int `env:"CHANGE_CODE_LENGTH"`
	ModalCodeLength  int `env:"MODAL_CODE_LENGTH"`

	CallbackAddr string `env:"CALLBACK_ADDR"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.Namespace = "storefront"
	c.StorageBackend = StorageSQLite
	c.SQLitePath = "storefront-auth.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.ProfileBackend = ProfileBackendGRPC
	c.FallbackPollDelay = time.Second
	c.SignupGracePeriod = time.Second
	c.RequestTimeout = 10 * time.Second
	c.ResendCooldown = 60 * time.Second
	c.OTPTTL = 10 * time.Minute
	c.ProfileCacheTTL = 5 * time.Minute
	c.SignupCodeLength = 8
	c.ResetCodeLength = 8
	c.ChangeCodeLength = 8
	c.ModalCodeLength = 6
	c.CallbackAddr = "127.0.0.1:8765"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageSQLite, StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	switch c.ProfileBackend {
	case ProfileBackendGRPC:
	case ProfileBackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("profile backend %q requires a database DSN", c.ProfileBackend)
		}
	default:
		return fmt.Errorf("unknown profile backend %q", c.ProfileBackend)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	lengths := []struct {
		name string
		n    int
	}{
		{"signup", c.SignupCodeLength},
		{"reset", c.ResetCodeLength},
		{"change", c.ChangeCodeLength},
		{"modal", c.ModalCodeLength},
	}
	for _, l := range lengths {
		if l.n <= 0 {
			return fmt.Errorf("%s code length must be positive, got %d", l.name, l.n)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
