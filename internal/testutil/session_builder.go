package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/session"
)

// FixedClock returns a clock that starts at 2024-01-02T03:04:05Z and
// advances by step on every call.
func FixedClock(step time.Duration) func() time.Time {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * step)
	}
}

// TempSessionPath returns a session file path inside t.TempDir().
func TempSessionPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "session.db")
}

// SessionBuilder constructs sessions with fluent chaining for tests.
// Operations are applied in the order they were added.
//
//	sess := NewSessionBuilder("s-1").State("text", "hello").Artifact("a", data).Build(t)
type SessionBuilder struct {
	opts []func(o *session.Options)
	ops  []func(t *testing.T, s *session.Session)
}

// NewSessionBuilder creates a builder for a session with the given id and
// a deterministic clock.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{opts: []func(o *session.Options){
		session.WithID(id),
		session.WithClock(FixedClock(time.Millisecond)),
	}}
}

// Option adds a session option (chainable).
func (b *SessionBuilder) Option(fn func(o *session.Options)) *SessionBuilder {
	b.opts = append(b.opts, fn)
	return b
}

// MaxArtifactSize sets the artifact size limit (chainable).
func (b *SessionBuilder) MaxArtifactSize(n int64) *SessionBuilder {
	return b.Option(session.WithMaxArtifactSize(n))
}

// State sets a state key (chainable).
func (b *SessionBuilder) State(key string, value any) *SessionBuilder {
	b.ops = append(b.ops, func(t *testing.T, s *session.Session) {
		_, err := s.State().Set(key, value)
		require.NoError(t, err)
	})
	return b
}

// Artifact writes an artifact (chainable).
func (b *SessionBuilder) Artifact(name string, data []byte) *SessionBuilder {
	b.ops = append(b.ops, func(t *testing.T, s *session.Session) {
		require.NoError(t, s.Artifacts().Write(name, data))
	})
	return b
}

// Note appends a system_note entry (chainable).
func (b *SessionBuilder) Note(text string) *SessionBuilder {
	b.ops = append(b.ops, func(t *testing.T, s *session.Session) {
		_, err := s.Append(core.OriginUser, core.KindSystemNote, core.Payload{"text": text})
		require.NoError(t, err)
	})
	return b
}

// CompletedStep records a plan_step_completed entry as if an earlier
// dispatch had run step index (chainable).
func (b *SessionBuilder) CompletedStep(index int, capability string, success bool) *SessionBuilder {
	b.ops = append(b.ops, func(t *testing.T, s *session.Session) {
		_, err := s.Append(core.OriginDispatcher, core.KindPlanStepCompleted, core.Payload{
			"step_index":     index,
			"capability":     capability,
			"success":        success,
			"result_summary": "",
		})
		require.NoError(t, err)
	})
	return b
}

// Build creates the session and applies the recorded operations.
func (b *SessionBuilder) Build(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(b.opts...)
	require.NoError(t, err)
	for _, op := range b.ops {
		op(t, s)
	}
	return s
}
