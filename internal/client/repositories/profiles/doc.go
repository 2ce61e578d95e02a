// Package profiles reads and upserts user profiles directly in Postgres.
// It is the alternative to fetching profiles over the identity service's
// gRPC data API and is selected with the "postgres" profile backend.
package profiles
