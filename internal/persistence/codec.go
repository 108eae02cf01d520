package persistence

import (
	"encoding/json"
	"time"

	"github.com/stemsi/classroom-client/internal/model"
)

// envelopeVersion is bumped when the persisted shape changes incompatibly.
const envelopeVersion = 0

// envelope is the persisted-store shape: {"state":{...},"version":0}.
type envelope struct {
	State   wireState `json:"state"`
	Version int       `json:"version"`
}

type wireState struct {
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	SessionToken    *wireToken  `json:"sessionToken"`
}

// wireToken carries the expiry as unix milliseconds.
type wireToken struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Encode serializes the allow-listed snapshot fields.
func Encode(s *model.SessionSnapshot) ([]byte, error) {
	env := envelope{Version: envelopeVersion}
	env.State.User = s.User
	env.State.IsAuthenticated = s.IsAuthenticated
	if s.Token != nil {
		env.State.SessionToken = &wireToken{
			Value:     s.Token.Value,
			ExpiresAt: s.Token.ExpiresAt.UnixMilli(),
		}
	}
	return json.Marshal(env)
}

// Decode parses a persisted value. Malformed, partial or inconsistent values
// are reported as absent.
func Decode(raw []byte) (*model.SessionSnapshot, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Version != envelopeVersion {
		return nil, false
	}

	s := &model.SessionSnapshot{
		User:            env.State.User,
		IsAuthenticated: env.State.IsAuthenticated,
	}
	if t := env.State.SessionToken; t != nil && t.ExpiresAt > 0 {
		s.Token = &model.SessionToken{
			Value:     t.Value,
			ExpiresAt: time.UnixMilli(t.ExpiresAt).UTC(),
		}
	}
	if !s.Valid() {
		return nil, false
	}
	return s, true
}

// IsAuthenticated is the derived fact the edge gate reads: the raw value
// decodes to a consistent snapshot whose token is unexpired at now.
func IsAuthenticated(raw []byte, now time.Time) bool {
	s, ok := Decode(raw)
	return ok && s.Active(now)
}
