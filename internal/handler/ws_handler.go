package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/bootstrap"
	"github.com/stemsi/classroom-client/internal/session"
	ws "github.com/stemsi/classroom-client/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SessionEvent converts a session status into its stream event.
func SessionEvent(st session.Status) ws.SessionEvent {
	ev := ws.SessionEvent{Event: ws.EventSession, State: st.State.String()}
	if st.User != nil {
		ev.User = st.User
	}
	if st.Token != nil {
		ev.ExpiresAt = st.Token.ExpiresAt.UnixMilli()
	}
	return ev
}

// ReadinessEvent converts a coordinator status into its stream event.
func ReadinessEvent(st bootstrap.Status) ws.ReadinessEvent {
	ev := ws.ReadinessEvent{Event: ws.EventReadiness, State: st.State.String(), Attempts: st.Attempts}
	if st.LastError != nil {
		ev.Error = string(apperr.CodeOf(st.LastError))
	}
	return ev
}

// WSHandler streams session and readiness changes.
type WSHandler struct {
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// StatusStream godoc
// WS /ws/v1/status
// Sends the current session and readiness state, then every change. Clients
// may send {"action":"ping"}.
func (h *WSHandler) StatusStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	replies := make(chan interface{}, 4)
	closed := make(chan struct{})
	go h.readLoop(conn, replies, closed)

	h.log.Debug().Msg("Status client connected")
	for {
		select {
		case <-closed:
			h.log.Debug().Msg("Status client disconnected")
			return
		case reply := <-replies:
			if err := ws.WriteTyped(conn, reply); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteTyped(conn, ev); err != nil {
				h.log.Debug().Err(err).Msg("Status write failed")
				return
			}
		}
	}
}

// readLoop owns all reads on conn. Writes stay with StatusStream.
func (h *WSHandler) readLoop(conn *websocket.Conn, replies chan<- interface{}, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		var reply interface{} = ws.PongResponse{Event: ws.EventPong}
		if msg.Action != ws.ActionPing {
			h.log.Debug().Str("action", string(msg.Action)).Msg("Unknown action")
			reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}
