package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/Ranaran315/campus-backend-sub000/internal/observability"
	"github.com/Ranaran315/campus-backend-sub000/internal/repositories"
	"github.com/Ranaran315/campus-backend-sub000/internal/token"
)

// SessionHandler owns the websocket session lifecycle: credential check,
// upgrade, registration, group room subscription, and teardown.
type SessionHandler struct {
	hub       *Hub
	groupRepo repositories.GroupRepository
	verifier  *token.Verifier
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(hub *Hub, groupRepo repositories.GroupRepository, verifier *token.Verifier) *SessionHandler {
	return &SessionHandler{hub: hub, groupRepo: groupRepo, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the session. The credential is
// verified before the upgrade so a bad token gets a plain 401 instead of a
// half-open socket.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("campus-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.verifier.Verify(sessionToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	groups, err := h.groupRepo.ListGroupsForUser(ctx, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		DeviceID:    meta.DeviceID,
		IP:          meta.ClientIP,
		RequestID:   meta.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	client := h.hub.Register(conn, info)
	for _, g := range groups {
		h.hub.JoinRoom(client, g.ID.Hex())
	}

	if err := h.hub.SendAck(client); err != nil {
		h.hub.Unregister(client)
		return
	}

	observability.IncWSEvent("session", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.sessions",
		observability.NewEnvelope("ws_events", "ws_connect", sessionEventPayload(info, "ws_connect", 0, "")),
		observability.EventHeaders(meta.RequestID, traceID))

	// Inbound frames are ignored; the read loop only detects closure.
	go func() {
		var closeReason string
		defer func() {
			h.hub.Unregister(client)
			observability.IncWSEvent("session", "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.sessions",
				observability.NewEnvelope("ws_events", "ws_disconnect",
					sessionEventPayload(info, "ws_disconnect", time.Since(info.ConnectedAt).Milliseconds(), closeReason)),
				observability.EventHeaders(meta.RequestID, traceID))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("session", "ws_error")
				}
				return
			}
		}
	}()
}

// sessionToken accepts the credential from the Authorization header or the
// token query parameter, since browser websocket clients cannot set headers.
func sessionToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return header
	}
	return c.Query("token")
}

func sessionEventPayload(info ConnInfo, event string, durationMs int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "session",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMs,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
