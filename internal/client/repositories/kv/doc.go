// Package kv provides the durable key-value store that survives restarts of
// the client: the session bundle, the pending sign-up and the auth-mode
// marker all live here.
//
// Get returns (nil, nil) for a missing key. Remove is idempotent.
// Backends: SQLite (default), in-process memory, Redis, and a Sealed wrapper
// that encrypts values of any other backend.
package kv
