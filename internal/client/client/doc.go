// Package client talks to the remote identity and data services.
//
// # Overview
//
// The package provides:
//  1. Transport-agnostic contracts: IdentityProvider (one-time codes, the
//     provider-held session, session events, credential updates),
//     ProfileStore (profile fetch and upsert) and Client, their union.
//  2. A gRPC implementation (see GRPCClient) that speaks
//     google.protobuf.Struct payloads over generic Invoke/NewStream calls,
//     injects the access token via an interceptor, transparently refreshes
//     expired tokens (publishing a token-refreshed event to subscribers),
//     and maps gRPC status codes to the sentinels in internal/common.
//
// Every unary call passes through go-grpc-middleware interceptors: a
// timeout bounding the whole call, call logging, and retries on Unavailable.
//
// # Error Handling
//
// Callers match errors with errors.Is against common.ErrUnavailable,
// common.ErrUnauthorized, common.ErrNotFound, common.ErrDuplicateAccount,
// common.ErrInvalidOrExpiredCode and common.ErrTokenExpired.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
