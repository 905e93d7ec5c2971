package ws

import (
	"github.com/google/uuid"
)

const (
	wsKind       = "karaoke"
	wsRoutingKey = "ws_events.karaoke"
)

func newConnID() string {
	return uuid.NewString()
}

func wsEventPayload(event string, sessionID string, info ConnInfo, durationMs int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        wsKind,
			"session_id":  sessionID,
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
