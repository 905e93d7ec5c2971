// Package session runs one client's view of a karaoke room: playback clock, roster and
// chat, kept in sync with the store through row-change events.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"karaoke-service/internal/eventbus"
	"karaoke-service/internal/identity"
	"karaoke-service/internal/models"
	"karaoke-service/internal/observability"
	"karaoke-service/internal/repositories"
	"karaoke-service/internal/telemetry"
)

// DefaultTickPeriod drives the host's playback clock.
const DefaultTickPeriod = 100 * time.Millisecond

const eventTimeout = 5 * time.Second

var tracer = otel.Tracer("karaoke-service/session")

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateInSession
	StateLeaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateInSession:
		return "in_session"
	case StateLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateIdle, StateConnecting, StateInSession, StateLeaving} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

type Role int

const (
	RoleNone Role = iota
	RoleHost
	RoleParticipant
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleParticipant:
		return "participant"
	default:
		return "none"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	for _, candidate := range []Role{RoleNone, RoleHost, RoleParticipant} {
		if candidate.String() == string(text) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session role %q", text)
}

// Deps are the collaborators of a Coordinator. Audit is optional.
type Deps struct {
	Sessions     repositories.SessionRepository
	Participants repositories.ParticipantRepository
	Messages     repositories.ChatMessageRepository
	Songs        repositories.SongRepository
	Bus          eventbus.Bus
	Identity     identity.Provider
	Audit        *telemetry.AuditEmitter
	TickPeriod   time.Duration
}

// View is a point-in-time copy of the coordinator state.
type View struct {
	State        State                `json:"state"`
	Role         Role                 `json:"role"`
	Session      *models.Session      `json:"session,omitempty"`
	Song         *models.Song         `json:"song,omitempty"`
	Playback     PlaybackState        `json:"playback"`
	Participants []models.Participant `json:"participants"`
	Messages     []models.ChatMessage `json:"messages"`
	LastError    string               `json:"last_error,omitempty"`
}

type tickerHandle struct {
	stop chan struct{}
}

// Coordinator is one client's session context. Every entry point, including ticker
// callbacks and bus deliveries, runs under mu, so state is mutated by one caller at a time.
type Coordinator struct {
	deps    Deps
	updates chan struct{}

	mu        sync.Mutex
	state     State
	role      Role
	me        identity.Identity
	session   models.Session
	song      models.Song
	clock     *Clock
	roster    *Roster
	chat      *Chat
	sub       eventbus.Subscription
	gen       uint64
	ticker    *tickerHandle
	lastError string
	// role currently counted in the active sessions gauge
	metricRole Role
}

func NewCoordinator(deps Deps) *Coordinator {
	if deps.TickPeriod <= 0 {
		deps.TickPeriod = DefaultTickPeriod
	}
	return &Coordinator{
		deps:    deps,
		updates: make(chan struct{}, 1),
	}
}

// Updates signals after every state change. Signals coalesce; read Snapshot for the state.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.updates
}

// CreateSession opens a new room with the caller as host and songID loaded.
func (c *Coordinator) CreateSession(ctx context.Context, songID string) (err error) {
	ctx, span := tracer.Start(ctx, "session.create", trace.WithAttributes(attribute.String("song.id", songID)))
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify()

	me, err := c.resolveIdentity(ctx)
	if err != nil {
		return err
	}
	song, err := c.loadSong(ctx, songID)
	if err != nil {
		return c.fail(err)
	}
	c.leaveCurrentLocked(ctx)

	c.state = StateConnecting
	code, err := NewRoomCode()
	if err != nil {
		c.abortLocked()
		return c.fail(fmt.Errorf("generate room code: %w", err))
	}

	created, err := c.deps.Sessions.CreateSession(ctx, models.Session{
		RoomCode:      code,
		HostID:        me.UserID,
		CurrentSongID: song.ID,
	})
	if err != nil {
		c.abortLocked()
		return c.fail(storeFailure("create_session", err))
	}

	roster := NewRoster(c.deps.Participants, c.deps.Sessions)
	if _, err := roster.Join(ctx, created.ID, me.UserID, me.DisplayName, true); err != nil {
		// the session row stays behind, reachable only by its room code
		log.Printf("session: orphaned session id=%s room=%s after failed host join: %v", created.ID, created.RoomCode, err)
		c.abortLocked()
		return c.fail(err)
	}

	span.SetAttributes(attribute.String("session.id", created.ID), attribute.String("session.room_code", created.RoomCode))
	if err := c.enterLocked(ctx, me, created, song, RoleHost, roster); err != nil {
		return c.fail(err)
	}
	c.deps.Audit.EmitSession(ctx, created.ID, me.UserID, "session created room="+created.RoomCode)
	return nil
}

// JoinSession enters the room with roomCode. The caller rejoins as host if they created it.
func (c *Coordinator) JoinSession(ctx context.Context, roomCode string) (err error) {
	code := NormalizeRoomCode(roomCode)
	ctx, span := tracer.Start(ctx, "session.join", trace.WithAttributes(attribute.String("session.room_code", code)))
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify()

	me, err := c.resolveIdentity(ctx)
	if err != nil {
		return err
	}

	found, err := c.deps.Sessions.FindByRoomCode(ctx, code)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return c.fail(ErrRoomNotFound)
	}
	if err != nil {
		return c.fail(storeFailure("find_session", err))
	}
	if c.state == StateInSession && c.session.ID != found.ID {
		c.leaveCurrentLocked(ctx)
	}

	c.state = StateConnecting
	song, err := c.loadSong(ctx, found.CurrentSongID)
	if err != nil {
		c.abortLocked()
		return c.fail(err)
	}

	isHost := found.HostID == me.UserID
	roster := NewRoster(c.deps.Participants, c.deps.Sessions)
	if _, err := roster.Join(ctx, found.ID, me.UserID, me.DisplayName, isHost); err != nil {
		c.abortLocked()
		return c.fail(err)
	}

	role := RoleParticipant
	if isHost {
		role = RoleHost
	}
	span.SetAttributes(attribute.String("session.id", found.ID), attribute.String("session.role", role.String()))
	if err := c.enterLocked(ctx, me, found, song, role, roster); err != nil {
		return c.fail(err)
	}
	c.deps.Audit.EmitSession(ctx, found.ID, me.UserID, "joined as "+role.String())
	return nil
}

// LeaveSession stops the clock and the subscription, then removes the caller from the roster.
// A host leaving deletes the session. The coordinator ends Idle even when the store fails.
func (c *Coordinator) LeaveSession(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "session.leave")
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.notify()

	if c.state != StateInSession {
		return nil
	}
	session, me := c.session, c.me
	span.SetAttributes(attribute.String("session.id", session.ID))

	c.state = StateLeaving
	c.teardownLocked()
	leaveErr := c.roster.Leave(ctx, session, me.UserID)
	c.resetLocked()

	c.deps.Audit.EmitSession(ctx, session.ID, me.UserID, "left session")
	if leaveErr != nil {
		return c.fail(leaveErr)
	}
	return nil
}

// TogglePlayback plays or pauses. For a participant it does nothing.
func (c *Coordinator) TogglePlayback(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "session.toggle_playback")
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInSession {
		return ErrNotInSession
	}
	if err := c.clock.TogglePlayback(ctx); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil
		}
		defer c.notify()
		return c.fail(err)
	}
	if c.clock.IsPlaying() {
		c.startTickerLocked()
	} else {
		c.stopTickerLocked()
	}
	c.lastError = ""
	c.notify()
	return nil
}

// ChangeSong loads songID from the catalog and rewinds to its start, paused.
// For a participant it does nothing.
func (c *Coordinator) ChangeSong(ctx context.Context, songID string) (err error) {
	ctx, span := tracer.Start(ctx, "session.change_song", trace.WithAttributes(attribute.String("song.id", songID)))
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInSession {
		return ErrNotInSession
	}
	if c.role != RoleHost {
		return nil
	}
	defer c.notify()

	song, err := c.loadSong(ctx, songID)
	if err != nil {
		return c.fail(err)
	}
	c.stopTickerLocked()
	if err := c.clock.ChangeSong(ctx, song); err != nil {
		return c.fail(err)
	}
	c.song = song
	c.session.CurrentSongID = song.ID
	c.lastError = ""
	return nil
}

// SendMessage posts text to the room chat. The message shows up once the store echoes it back.
func (c *Coordinator) SendMessage(ctx context.Context, text string) (err error) {
	ctx, span := tracer.Start(ctx, "session.send_message")
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInSession {
		return ErrNotInSession
	}
	return c.chat.Send(ctx, c.session.ID, c.me.UserID, c.me.DisplayName, text)
}

// Tick advances the host clock by delta, exactly as the periodic ticker does.
func (c *Coordinator) Tick(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickLocked(delta)
}

// Snapshot copies the current state.
func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:        c.state,
		Role:         c.role,
		Participants: []models.Participant{},
		Messages:     []models.ChatMessage{},
		LastError:    c.lastError,
	}
	if c.state != StateInSession {
		return v
	}
	session := c.session
	song := c.song
	v.Session = &session
	v.Song = &song
	v.Playback = c.clock.State()
	v.Participants = c.roster.Participants()
	v.Messages = c.chat.Messages()
	return v
}

// SessionID returns the id of the active session, or "".
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInSession {
		return ""
	}
	return c.session.ID
}

func (c *Coordinator) resolveIdentity(ctx context.Context) (identity.Identity, error) {
	me, err := c.deps.Identity.Current(ctx)
	if err != nil {
		return identity.Identity{}, c.fail(fmt.Errorf("%w: %v", ErrUnauthorized, err))
	}
	if me.DisplayName == "" {
		me.DisplayName = identity.FallbackName(me.UserID, "", "")
	}
	return me, nil
}

func (c *Coordinator) loadSong(ctx context.Context, songID string) (models.Song, error) {
	song, err := c.deps.Songs.GetSong(ctx, songID)
	if errors.Is(err, repositories.ErrSongNotFound) {
		return models.Song{}, ErrSongNotFound
	}
	if err != nil {
		return models.Song{}, storeFailure("get_song", err)
	}
	return song, nil
}

// enterLocked replaces any previous subscription with one for session and loads the
// roster and recent chat.
func (c *Coordinator) enterLocked(ctx context.Context, me identity.Identity, session models.Session, song models.Song, role Role, roster *Roster) error {
	c.teardownLocked()
	c.gen++
	gen := c.gen

	sub, err := c.deps.Bus.Subscribe(context.Background(), session.ID, c.deliver(gen))
	if err != nil {
		c.resetLocked()
		return storeFailure("subscribe", err)
	}

	c.sub = sub
	c.me = me
	c.session = session
	c.song = song
	c.role = role
	c.roster = roster
	c.chat = NewChat(c.deps.Messages)
	c.clock = NewClock(c.deps.Sessions, session, song, role == RoleHost)
	c.state = StateInSession
	c.lastError = ""
	c.trackRole(role)

	if err := c.roster.Refresh(ctx, session.ID); err != nil {
		log.Printf("session: roster load session=%s failed: %v", session.ID, err)
		c.lastError = UserMessage(err)
	}
	if err := c.chat.Load(ctx, session.ID); err != nil {
		log.Printf("session: chat history load session=%s failed: %v", session.ID, err)
		c.lastError = UserMessage(err)
	}
	if role == RoleHost && c.clock.IsPlaying() {
		c.startTickerLocked()
	}
	log.Printf("session: entered session=%s room=%s user=%s role=%s", session.ID, session.RoomCode, me.UserID, role)
	return nil
}

// leaveCurrentLocked performs a best-effort leave before switching rooms.
func (c *Coordinator) leaveCurrentLocked(ctx context.Context) {
	if c.state != StateInSession {
		return
	}
	session, me := c.session, c.me
	c.teardownLocked()
	if err := c.roster.Leave(ctx, session, me.UserID); err != nil {
		log.Printf("session: leave session=%s before switching failed: %v", session.ID, err)
	}
	c.resetLocked()
}

// teardownLocked stops the ticker and the subscription. Neither waits for a callback in
// flight; the generation bump makes such a callback a no-op.
func (c *Coordinator) teardownLocked() {
	c.stopTickerLocked()
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	c.gen++
}

func (c *Coordinator) abortLocked() {
	c.teardownLocked()
	c.resetLocked()
}

func (c *Coordinator) resetLocked() {
	c.trackRole(RoleNone)
	c.state = StateIdle
	c.role = RoleNone
	c.session = models.Session{}
	c.song = models.Song{}
	c.clock = nil
	c.roster = nil
	c.chat = nil
}

func (c *Coordinator) trackRole(role Role) {
	if c.metricRole == role {
		return
	}
	if c.metricRole != RoleNone {
		observability.DecActiveSessions(c.metricRole.String())
	}
	if role != RoleNone {
		observability.IncActiveSessions(role.String())
	}
	c.metricRole = role
}

func (c *Coordinator) deliver(gen uint64) eventbus.Handler {
	return func(ev eventbus.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen || c.state != StateInSession {
			return
		}
		c.handleLocked(ev)
	}
}

func (c *Coordinator) handleLocked(ev eventbus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch e := ev.(type) {
	case eventbus.SessionChanged:
		// the host is the only writer of playback fields and already holds them
		if c.role == RoleHost {
			return
		}
		song := c.song
		if e.Session.CurrentSongID != song.ID {
			loaded, err := c.loadSong(ctx, e.Session.CurrentSongID)
			if err != nil {
				log.Printf("session: load song %s for session=%s failed: %v", e.Session.CurrentSongID, e.Session.ID, err)
				c.lastError = UserMessage(err)
				c.notify()
				return
			}
			song = loaded
		}
		if err := c.clock.ApplyRemoteState(e.Session, song); err != nil {
			return
		}
		c.song = song
		c.session = e.Session
	case eventbus.SessionEnded:
		if c.role == RoleHost {
			return
		}
		log.Printf("session: session=%s ended by host, user=%s returns to idle", e.ID, c.me.UserID)
		c.abortLocked()
		c.lastError = hostEndedMessage
	case eventbus.ParticipantsChanged:
		if err := c.roster.Refresh(ctx, e.ID); err != nil {
			log.Printf("session: roster refresh session=%s failed: %v", e.ID, err)
			c.lastError = UserMessage(err)
		}
	case eventbus.ChatInserted:
		if !c.chat.OnMessage(e.Message) {
			return
		}
	default:
		return
	}
	c.notify()
}

func (c *Coordinator) startTickerLocked() {
	if c.ticker != nil {
		return
	}
	h := &tickerHandle{stop: make(chan struct{})}
	c.ticker = h
	period := c.deps.TickPeriod

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-t.C:
				c.onTick(h, period)
			}
		}
	}()
}

func (c *Coordinator) stopTickerLocked() {
	if c.ticker == nil {
		return
	}
	close(c.ticker.stop)
	c.ticker = nil
}

func (c *Coordinator) onTick(h *tickerHandle, delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker != h {
		return
	}
	c.tickLocked(delta)
}

func (c *Coordinator) tickLocked(delta time.Duration) {
	if c.state != StateInSession || c.clock == nil {
		return
	}
	c.clock.Tick(delta)
	c.session.CurrentTimeMs = c.clock.elapsedMs()
	c.notify()
}

// fail records err as the user-facing error and returns it.
func (c *Coordinator) fail(err error) error {
	c.lastError = UserMessage(err)
	return err
}

func (c *Coordinator) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
