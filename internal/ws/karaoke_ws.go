package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"karaoke-service/internal/identity"
	"karaoke-service/internal/observability"
	"karaoke-service/internal/session"
)

const (
	writeWait    = 10 * time.Second
	leaveTimeout = 5 * time.Second
)

// Command types accepted from the client.
const (
	CmdCreateSession  = "create_session"
	CmdJoinSession    = "join_session"
	CmdLeaveSession   = "leave_session"
	CmdTogglePlayback = "toggle_playback"
	CmdChangeSong     = "change_song"
	CmdSendMessage    = "send_message"
)

// Frame types pushed to the client.
const (
	FrameState = "state"
	FrameError = "error"
)

// Command is one client request.
type Command struct {
	Type     string `json:"type"`
	SongID   string `json:"song_id,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Frame is one server push.
type Frame struct {
	Type  string        `json:"type"`
	State *session.View `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

var errUnknownCommand = errors.New("unknown command")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one gateway connection driving its own session coordinator.
type Client struct {
	conn  *websocket.Conn
	info  ConnInfo
	coord *session.Coordinator

	writeMu sync.Mutex
}

func (cl *Client) writeFrame(frame Frame) error {
	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.conn.WriteJSON(frame)
}

// KaraokeGateway serves GET /ws/karaoke.
type KaraokeGateway struct {
	hub      *Hub
	verifier identity.Verifier
	deps     session.Deps
}

// NewKaraokeGateway constructs the gateway. deps.Identity is replaced per connection.
func NewKaraokeGateway(hub *Hub, verifier identity.Verifier, deps session.Deps) *KaraokeGateway {
	return &KaraokeGateway{hub: hub, verifier: verifier, deps: deps}
}

// Handle authenticates, upgrades the connection and runs it until the client goes away.
func (g *KaraokeGateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("karaoke-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	me, err := g.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	info := ConnInfo{
		ClientMeta:  observability.ClientMetaFromRequest(c.Request),
		ConnID:      newConnID(),
		UserID:      me.UserID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	requestID := info.RequestID

	deps := g.deps
	deps.Identity = identity.Static(me)
	client := &Client{conn: conn, info: info, coord: session.NewCoordinator(deps)}

	observability.IncWSActive(wsKind)
	observability.IncWSEvent(wsKind, "ws_connect")
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.NewWSEvent("ws_connect",
		wsEventPayload("ws_connect", "", info, 0, "")), observability.BuildHeaders(requestID, traceID))

	done := make(chan struct{})
	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		g.push(client, done)
	}()
	_ = client.writeFrame(stateFrame(client.coord.Snapshot()))

	go func() {
		var closeReason string
		defer func() {
			leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			if err := client.coord.LeaveSession(leaveCtx); err != nil {
				log.Printf("websocket leave on close conn=%s failed: %v", info.ConnID, err)
			}
			cancel()
			close(done)
			<-pushed

			observability.DecWSActive(wsKind)
			observability.IncWSEvent(wsKind, "ws_disconnect")
			_ = observability.PublishEvent(context.Background(), wsRoutingKey, observability.NewWSEvent("ws_disconnect",
				wsEventPayload("ws_disconnect", "", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason)), observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					g.hub.publishWSError(client.coord.SessionID(), client, err)
				}
				return
			}
			if err := g.dispatch(context.Background(), client, cmd); err != nil {
				if werr := client.writeFrame(Frame{Type: FrameError, Error: session.UserMessage(err)}); werr != nil {
					log.Printf("websocket write error: %v", werr)
				}
			}
		}
	}()
}

func (g *KaraokeGateway) dispatch(ctx context.Context, client *Client, cmd Command) error {
	observability.IncWSEvent(wsKind, cmd.Type)
	coord := client.coord
	switch cmd.Type {
	case CmdCreateSession:
		return coord.CreateSession(ctx, cmd.SongID)
	case CmdJoinSession:
		return coord.JoinSession(ctx, cmd.RoomCode)
	case CmdLeaveSession:
		return coord.LeaveSession(ctx)
	case CmdTogglePlayback:
		return coord.TogglePlayback(ctx)
	case CmdChangeSong:
		return coord.ChangeSong(ctx, cmd.SongID)
	case CmdSendMessage:
		return coord.SendMessage(ctx, cmd.Text)
	default:
		return errUnknownCommand
	}
}

// push writes a state frame after every coordinator update and keeps the hub in step
// with the session the client is in.
func (g *KaraokeGateway) push(client *Client, done <-chan struct{}) {
	var attached string
	defer func() {
		if attached != "" {
			g.hub.Detach(attached, client)
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-client.coord.Updates():
		}

		view := client.coord.Snapshot()
		current := ""
		if view.Session != nil {
			current = view.Session.ID
		}
		if current != attached {
			if attached != "" {
				g.hub.Detach(attached, client)
			}
			if current != "" {
				g.hub.Attach(current, client)
			}
			attached = current
		}

		if err := client.writeFrame(stateFrame(view)); err != nil {
			log.Printf("websocket write error: %v", err)
			g.hub.publishWSError(attached, client, err)
			client.conn.Close()
			return
		}
	}
}

func stateFrame(view session.View) Frame {
	return Frame{Type: FrameState, State: &view}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
