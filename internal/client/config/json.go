package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/flagx"
	"github.com/dmitrijs2005/storefront-auth/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Nil and zero values leave the
// current setting alone.
type JsonConfig struct {
	ServerEndpointAddr string `json:"server_endpoint_addr"`
	Namespace          string `json:"namespace"`
	StorageBackend     string `json:"storage"`
	SQLitePath         string `json:"sqlite_path"`
	RedisAddr          string `json:"redis_addr"`
	ProfileBackend     string `json:"profile_backend"`
	DatabaseDSN        string `json:"database_dsn"`

	FallbackPollDelay *timex.Duration `json:"fallback_poll_delay"`
	SignupGracePeriod *timex.Duration `json:"signup_grace_period"`
	RequestTimeout    *timex.Duration `json:"request_timeout"`
	ResendCooldown    *timex.Duration `json:"resend_cooldown"`
	OTPTTL            *timex.Duration `json:"otp_ttl"`
	ProfileCacheTTL   *timex.Duration `json:"profile_cache_ttl"`

	SignupCodeLength int `json:"signup_code_length"`
	ResetCodeLength  int `json:"reset_code_length"`
	ChangeCodeLength int `json:"change_code_length"`
	ModalCodeLength  int `json:"modal_code_length"`

	CallbackAddr string `json:"callback_addr"`
	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`
}

// parseJson overlays cfg with values loaded from the JSON file named by -c or
// -config in args. Without such a flag nothing happens. The storage secret is
// only taken from the environment.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.Namespace, jc.Namespace)
	setString(&cfg.StorageBackend, jc.StorageBackend)
	setString(&cfg.SQLitePath, jc.SQLitePath)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.ProfileBackend, jc.ProfileBackend)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.CallbackAddr, jc.CallbackAddr)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	setDuration(&cfg.FallbackPollDelay, jc.FallbackPollDelay)
	setDuration(&cfg.SignupGracePeriod, jc.SignupGracePeriod)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.ResendCooldown, jc.ResendCooldown)
	setDuration(&cfg.OTPTTL, jc.OTPTTL)
	setDuration(&cfg.ProfileCacheTTL, jc.ProfileCacheTTL)

	setInt(&cfg.SignupCodeLength, jc.SignupCodeLength)
	setInt(&cfg.ResetCodeLength, jc.ResetCodeLength)
	setInt(&cfg.ChangeCodeLength, jc.ChangeCodeLength)
	setInt(&cfg.ModalCodeLength, jc.ModalCodeLength)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
