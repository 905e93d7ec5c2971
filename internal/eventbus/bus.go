package eventbus

import (
	"context"
	"errors"
	"strings"
	"sync"

	"karaoke-service/internal/observability"
)

// Handler receives events for one subscription, one at a time and in publish order.
type Handler func(Event)

// Subscription is a live registration returned by Subscribe.
type Subscription interface {
	Unsubscribe()
}

// Bus delivers events scoped to a session id.
type Bus interface {
	Subscribe(ctx context.Context, sessionID string, handler Handler) (Subscription, error)
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Memory is an in-process Bus and Publisher. Each subscription has its own
// unbounded queue drained by a dedicated goroutine, so Publish never blocks on handlers.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]map[*subscription]struct{}
}

// NewMemory creates an empty bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[*subscription]struct{})}
}

// Subscribe registers handler for events of sessionID. The subscription also ends when ctx is done.
func (m *Memory) Subscribe(ctx context.Context, sessionID string, handler Handler) (Subscription, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("subscribe: session id is required")
	}
	if handler == nil {
		return nil, errors.New("subscribe: handler is required")
	}

	sub := &subscription{
		bus:       m,
		sessionID: sessionID,
		handler:   handler,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	if _, ok := m.subs[sessionID]; !ok {
		m.subs[sessionID] = make(map[*subscription]struct{})
	}
	m.subs[sessionID][sub] = struct{}{}
	m.mu.Unlock()

	go sub.run()
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// Publish queues ev for every subscriber of its session.
func (m *Memory) Publish(ctx context.Context, ev Event) error {
	if ev == nil {
		return errors.New("publish: nil event")
	}
	m.mu.RLock()
	targets := make([]*subscription, 0, len(m.subs[ev.SessionID()]))
	for sub := range m.subs[ev.SessionID()] {
		targets = append(targets, sub)
	}
	m.mu.RUnlock()

	for _, sub := range targets {
		sub.push(ev)
	}
	observability.IncBusEvent(ev.Kind())
	return nil
}

// Subscribers returns the number of live subscriptions for a session.
func (m *Memory) Subscribers(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[sessionID])
}

func (m *Memory) remove(sub *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subs[sub.sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(m.subs, sub.sessionID)
		}
	}
}

type subscription struct {
	bus       *Memory
	sessionID string
	handler   Handler

	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) push(ev Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				select {
				case <-s.done:
					return
				default:
				}
				s.handler(ev)
			}
		}
	}
}

// Unsubscribe stops delivery. It does not wait for a handler call already in progress.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.bus.remove(s)
	})
}
