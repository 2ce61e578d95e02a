package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/flagx"
)

var knownFlags = []string{"-a", "-n", "-s", "-f", "-r", "-b", "-d", "-t", "-cb", "-l"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the identity service
//	-n string   storage namespace
//	-s string   storage backend: sqlite, memory or redis
//	-f string   SQLite database file
//	-r string   Redis address
//	-b string   profile backend: grpc or postgres
//	-d string   Postgres DSN for the postgres profile backend
//	-t int      request timeout (in seconds)
//	-cb string  loopback address of the redirect callback server
//	-l string   log level
//
// Only the flags listed above are considered; args is filtered with
// flagx.FilterArgs so other components can share the command line.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("storefront-auth", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the identity service")
	fs.StringVar(&cfg.Namespace, "n", cfg.Namespace, "storage namespace")
	fs.StringVar(&cfg.StorageBackend, "s", cfg.StorageBackend, "storage backend (sqlite|memory|redis)")
	fs.StringVar(&cfg.SQLitePath, "f", cfg.SQLitePath, "SQLite database file")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "Redis address")
	fs.StringVar(&cfg.ProfileBackend, "b", cfg.ProfileBackend, "profile backend (grpc|postgres)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "Postgres DSN")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.CallbackAddr, "cb", cfg.CallbackAddr, "callback server address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("flags: %w", err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	return nil
}
