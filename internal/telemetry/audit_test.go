package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	event      any
	headers    map[string]string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	p.routingKey = routingKey
	p.event = event
	p.headers = headers
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestEmitBuildsEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.karaoke", "karaoke-service", "test")

	uid := "user-1"
	emitter.Emit(context.Background(), "info", "hello", "req-1", &uid)

	require.Equal(t, "audit.karaoke", pub.routingKey)
	env, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "karaoke-service", env.Service)
	assert.Equal(t, "req-1", env.RequestID)
	assert.Equal(t, "hello", env.Payload.Text)
	assert.Equal(t, map[string]string{"x-request-id": "req-1"}, pub.headers)
}

func TestEmitSessionCarriesSessionID(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.karaoke", "karaoke-service", "test")

	emitter.EmitSession(context.Background(), "s-1", "u-1", "session created")

	env := pub.event.(AuditEnvelope)
	assert.Equal(t, "s-1", env.SessionID)
	require.NotNil(t, env.UserID)
	assert.Equal(t, "u-1", *env.UserID)
	assert.Nil(t, pub.headers)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "info", "x", "", nil)
	emitter.EmitSession(context.Background(), "s", "u", "x")
}
