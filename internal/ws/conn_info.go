package ws

import (
	"time"

	"karaoke-service/internal/observability"
)

// ConnInfo describes one gateway connection for events and metrics.
type ConnInfo struct {
	observability.ClientMeta

	ConnID      string
	UserID      string
	TraceID     string
	ConnectedAt time.Time
}
