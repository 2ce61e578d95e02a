package session

import (
	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
)

// Phase is the coordinator's initialisation stage.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBootstrapping
	PhaseAwaitingProviderEvent
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseAwaitingProviderEvent:
		return "awaiting-provider-event"
	case PhaseResolved:
		return "resolved"
	}
	return "unknown"
}

type state struct {
	phase   Phase
	epoch   uint64
	session *models.Session
	profile *models.UserProfile
	authErr *models.AuthErrorState
	// resolving is the subject whose profile fetch is in flight.
	resolving string
}

// input is anything that can move the state machine.
type input interface{ isInput() }

type (
	bootstrapStarted struct{}
	bootstrapDone    struct{ session *models.Session }
	providerEvent    struct{ event models.Event }
	pollResult       struct {
		session *models.Session
		err     error
	}
	profileResolved struct {
		epoch   uint64
		subject string
		profile *models.UserProfile
	}
	signedInLocally  struct{ session *models.Session }
	signedOutLocally struct{}
	profileUpdated   struct{ profile *models.UserProfile }
	errorReported    struct{ err *models.AuthErrorState }
	disposed         struct{}
)

func (bootstrapStarted) isInput() {}
func (bootstrapDone) isInput()    {}
func (providerEvent) isInput()    {}
func (pollResult) isInput()       {}
func (profileResolved) isInput()  {}
func (signedInLocally) isInput()  {}
func (signedOutLocally) isInput() {}
func (profileUpdated) isInput()   {}
func (errorReported) isInput()    {}
func (disposed) isInput()         {}

// effect is work the coordinator performs after a transition, outside the
// state lock.
type effect interface{ isEffect() }

type (
	effResolveProfile struct {
		epoch   uint64
		subject string
		email   string
	}
	effStartListener  struct{}
	effStartPoller    struct{}
	effPersistSession struct{}
	// effClearStorage removes persisted keys; all covers pending sign-up and
	// auth mode as well as the session.
	effClearStorage  struct{ all bool }
	effPurgeProfiles struct{}
	effMarkReady     struct{}
	effNotify        struct{}
)

func (effResolveProfile) isEffect() {}
func (effStartListener) isEffect()  {}
func (effStartPoller) isEffect()    {}
func (effPersistSession) isEffect() {}
func (effClearStorage) isEffect()   {}
func (effPurgeProfiles) isEffect()  {}
func (effMarkReady) isEffect()      {}
func (effNotify) isEffect()         {}

// reduce is the single transition function. It never performs I/O.
func reduce(s state, in input) (state, []effect) {
	var fx []effect

	switch in := in.(type) {
	case bootstrapStarted:
		if s.phase != PhaseIdle {
			return s, nil
		}
		s.phase = PhaseBootstrapping
		return s, []effect{effNotify{}}

	case bootstrapDone:
		if s.phase != PhaseBootstrapping {
			return s, nil
		}
		fx = append(fx, effStartListener{})
		if in.session == nil {
			s.phase = PhaseAwaitingProviderEvent
			return s, append(fx, effStartPoller{}, effNotify{})
		}
		s, fx = setSession(s, in.session, fx)
		return resolved(s, fx)

	case providerEvent:
		return reduceEvent(s, in.event)

	case pollResult:
		if s.phase < PhaseAwaitingProviderEvent {
			return s, nil
		}
		if s.session != nil {
			s, fx = fillProfile(s, fx)
		} else if in.session != nil {
			s, fx = setSession(s, in.session, fx)
			fx = append(fx, effPersistSession{})
		}
		return resolved(s, fx)

	case profileResolved:
		if in.epoch != s.epoch || s.session == nil || s.session.SubjectID != in.subject || in.profile == nil {
			return s, nil
		}
		s.profile = in.profile
		s.resolving = ""
		return s, []effect{effNotify{}}

	case signedInLocally:
		if in.session == nil {
			return s, nil
		}
		s, fx = replaceSession(s, in.session, fx)
		fx = append(fx, effPersistSession{})
		return resolved(s, fx)

	case signedOutLocally:
		s = cleared(s)
		fx = append(fx, effClearStorage{all: true}, effPurgeProfiles{})
		return resolved(s, fx)

	case profileUpdated:
		if s.session == nil || in.profile == nil || in.profile.ID != s.session.SubjectID {
			return s, nil
		}
		s.profile = in.profile
		return s, []effect{effNotify{}}

	case errorReported:
		s.authErr = in.err
		return s, []effect{effNotify{}}

	case disposed:
		s.epoch++
		s.resolving = ""
		return s, nil
	}

	return s, nil
}

func reduceEvent(s state, ev models.Event) (state, []effect) {
	var fx []effect

	switch ev.Kind {
	case models.EventInitialSession:
		switch {
		case ev.Session == nil:
			// terminal "no session" signal; never clears an existing one
		case s.session == nil:
			s, fx = setSession(s, ev.Session, fx)
			fx = append(fx, effPersistSession{})
		default:
			s, fx = fillProfile(s, fx)
		}
		return resolved(s, fx)

	case models.EventSignedIn:
		if ev.Session == nil {
			return s, nil
		}
		s, fx = replaceSession(s, ev.Session, fx)
		fx = append(fx, effPersistSession{})
		return resolved(s, fx)

	case models.EventTokenRefreshed:
		if ev.Session == nil {
			return s, nil
		}
		if s.session.SameIdentity(ev.Session) {
			// profile untouched
			s.session = ev.Session
		} else {
			s, fx = replaceSession(s, ev.Session, fx)
		}
		fx = append(fx, effPersistSession{})
		return resolved(s, fx)

	case models.EventSignedOut:
		s = cleared(s)
		fx = append(fx, effClearStorage{}, effPurgeProfiles{})
		return resolved(s, fx)
	}

	return s, nil
}

// setSession installs a session where none exists and starts its profile.
func setSession(s state, sess *models.Session, fx []effect) (state, []effect) {
	s.session = sess
	s.profile = nil
	return startResolve(s, fx)
}

// replaceSession applies a provider-confirmed session. The profile survives
// only if the subject is unchanged.
func replaceSession(s state, sess *models.Session, fx []effect) (state, []effect) {
	if s.session.SameIdentity(sess) {
		s.session = sess
		return fillProfile(s, fx)
	}
	s.epoch++
	return setSession(s, sess, fx)
}

func fillProfile(s state, fx []effect) (state, []effect) {
	if s.profile != nil || s.resolving == s.session.SubjectID {
		return s, fx
	}
	return startResolve(s, fx)
}

func startResolve(s state, fx []effect) (state, []effect) {
	s.resolving = s.session.SubjectID
	return s, append(fx, effResolveProfile{epoch: s.epoch, subject: s.session.SubjectID, email: s.session.Email})
}

func cleared(s state) state {
	s.epoch++
	s.session = nil
	s.profile = nil
	s.authErr = nil
	s.resolving = ""
	return s
}

func resolved(s state, fx []effect) (state, []effect) {
	if s.phase != PhaseResolved {
		s.phase = PhaseResolved
		fx = append(fx, effMarkReady{})
	}
	return s, append(fx, effNotify{})
}
