package model

import "time"

// SessionToken is a short-lived credential with an absolute expiry.
type SessionToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionSnapshot is the persisted subset of session state.
// It is either absent or fully consistent; see Valid.
type SessionSnapshot struct {
	User            *User         `json:"user"`
	IsAuthenticated bool          `json:"is_authenticated"`
	Token           *SessionToken `json:"session_token"`
}

// Valid reports whether all three fields are present and mutually consistent.
func (s *SessionSnapshot) Valid() bool {
	if s == nil || !s.IsAuthenticated || s.User == nil || s.Token == nil {
		return false
	}
	return s.User.ID != "" && s.Token.Value != "" && !s.Token.ExpiresAt.IsZero()
}

// Active reports whether the snapshot is valid and its token unexpired at now.
func (s *SessionSnapshot) Active(now time.Time) bool {
	return s.Valid() && now.Before(s.Token.ExpiresAt)
}
