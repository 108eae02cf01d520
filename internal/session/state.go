package session

import (
	"time"

	"github.com/stemsi/classroom-client/internal/model"
)

// State is the session lifecycle.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Expired
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	case LoggedOut:
		return "logged_out"
	default:
		return "anonymous"
	}
}

// Status is a copy of the session state handed to readers and listeners.
type Status struct {
	State State
	User  *model.User
	Token *model.SessionToken
}

// Authenticated reports whether the status claims an active session at now.
func (s Status) Authenticated(now time.Time) bool {
	return s.State == Authenticated && s.Token != nil && now.Before(s.Token.ExpiresAt)
}
