package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventPong      Event = "pong"
	EventSession   Event = "session"
	EventReadiness Event = "readiness"
)

// SessionEvent reports the session state. User is omitted when signed out.
type SessionEvent struct {
	Event     Event       `json:"event"`
	State     string      `json:"state"`
	User      interface{} `json:"user,omitempty"`
	ExpiresAt int64       `json:"expires_at,omitempty"` // unix ms
}

// ReadinessEvent reports the initialization state. Error is a code, never display text.
type ReadinessEvent struct {
	Event    Event  `json:"event"`
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
