// Package session owns the client's identity session lifecycle.
//
// A Coordinator reconciles the current session from three overlapping
// sources: a redirect fragment (Bootstrapper), provider push events
// (Listener) and a one-shot fallback read (Poller). Bootstrap always
// finishes before the other two start; among those, the first one to report
// a session wins and later reports only fill gaps, except provider-confirmed
// signed-in, token-refreshed and signed-out events which always apply.
//
// All transitions go through one pure function (reduce) guarded by the
// coordinator mutex. Asynchronous work such as profile fetches is tagged
// with the coordinator epoch; results from an older epoch are dropped.
package session
