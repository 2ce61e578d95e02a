// Package config loads runtime configuration for the storefront auth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. STOREFRONT_* environment variables (caarlos0/env).
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the identity service
//	-n string   storage namespace (key prefix)
//	-s string   storage backend: sqlite, memory, redis
//	-f string   SQLite database file
//	-r string   Redis address
//	-b string   profile backend: grpc, postgres
//	-d string   Postgres DSN
//	-t int      request timeout (seconds)
//	-cb string  callback server address
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "namespace": "storefront",
//	  "fallback_poll_delay": "1s",
//	  "signup_grace_period": "1s",
//	  "request_timeout": "10s",
//	  "signup_code_length": 8
//	}
//
// The storage secret is read from STOREFRONT_STORAGE_SECRET only.
package config
