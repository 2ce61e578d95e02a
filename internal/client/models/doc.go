// Package models defines the client-side data model of the identity session:
// sessions, decoded claims, user profiles, pending sign-ups, one-time-code
// challenges and provider events.
package models
