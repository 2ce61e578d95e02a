package models

// EventKind is a session-change notification emitted by the identity provider.
type EventKind string

const (
	EventInitialSession EventKind = "initial-session"
	EventSignedIn       EventKind = "signed-in"
	EventTokenRefreshed EventKind = "token-refreshed"
	EventSignedOut      EventKind = "signed-out"
)

// Event carries an optional session with a provider notification.
type Event struct {
	Kind    EventKind
	Session *Session
}
