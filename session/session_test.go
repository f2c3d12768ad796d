package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kaizen/core"
)

func fixedClock() func() time.Time {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * 1500 * time.Microsecond)
	}
}

func newTestSession(t *testing.T, optFns ...func(o *Options)) *Session {
	t.Helper()
	s, err := New(append([]func(o *Options){WithClock(fixedClock())}, optFns...)...)
	require.NoError(t, err)
	return s
}

func TestNew_RecordsCreation(t *testing.T) {
	s := newTestSession(t, WithID("s-1"), WithMaxArtifactSize(64))

	assert.Equal(t, "s-1", s.ID())
	assert.Equal(t, int64(64), s.MaxArtifactSize())
	require.Equal(t, 1, s.Trajectory().Len())

	e, _ := s.Trajectory().Last()
	assert.Equal(t, int64(1), e.Seq())
	assert.Equal(t, core.KindSessionCreated, e.Kind())
	assert.Equal(t, core.OriginSystem, e.OriginID())
	assert.Equal(t, core.Payload{
		"session_id":        "s-1",
		"max_artifact_size": int64(64),
		"schema_version":    int64(SchemaVersion),
	}, e.Payload())
}

func TestNew_GeneratesID(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	_, err := New(WithMaxArtifactSize(0))
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = New(WithCompression("lz4"))
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestState_VersionIncrementsPerWrite(t *testing.T) {
	s := newTestSession(t)
	st := s.State()

	for i := 1; i <= 10; i++ {
		v, err := st.Set("k", i)
		require.NoError(t, err)
		assert.Equal(t, int64(i), v)
	}
	assert.Equal(t, int64(10), st.Version())

	_ = st.Get("k", nil)
	_, _ = st.Lookup("missing")
	_ = st.All()
	assert.Equal(t, int64(10), st.Version())
}

func TestState_GetDefault(t *testing.T) {
	st := newTestSession(t).State()
	assert.Equal(t, "fallback", st.Get("missing", "fallback"))
	assert.Nil(t, st.Get("missing", nil))
}

func TestState_SetRecordsEntry(t *testing.T) {
	s := newTestSession(t)
	_, err := s.State().Set("count", 1)
	require.NoError(t, err)
	_, err = s.State().Set("count", 2)
	require.NoError(t, err)

	sets := s.Trajectory().OfKind(core.KindStateSet)
	require.Len(t, sets, 2)
	assert.Equal(t, core.Payload{"key": "count", "old_value": nil, "new_value": int64(1), "state_version": int64(1)}, sets[0].Payload())
	assert.Equal(t, core.Payload{"key": "count", "old_value": int64(1), "new_value": int64(2), "state_version": int64(2)}, sets[1].Payload())
}

func TestState_RejectsInvalidInput(t *testing.T) {
	s := newTestSession(t)
	before := s.Trajectory().Len()

	_, err := s.State().Set("", 1)
	assert.True(t, errors.Is(err, core.ErrInvalidKey))

	_, err = s.State().Set("fn", func() {})
	assert.True(t, errors.Is(err, core.ErrInvalidValue))

	assert.Equal(t, int64(0), s.State().Version())
	assert.Equal(t, before, s.Trajectory().Len())
}

func TestState_Isolation(t *testing.T) {
	st := newTestSession(t).State()

	in := map[string]any{"items": []any{"a", "b"}}
	_, err := st.Set("doc", in)
	require.NoError(t, err)

	in["items"].([]any)[0] = "mutated-input"
	got := st.Get("doc", nil).(map[string]any)
	assert.Equal(t, "a", got["items"].([]any)[0])

	got["items"].([]any)[1] = "mutated-output"
	got["extra"] = true
	again := st.Get("doc", nil).(map[string]any)
	assert.Equal(t, []any{"a", "b"}, again["items"])
	assert.NotContains(t, again, "extra")

	all := st.All()
	all["doc"] = "replaced"
	assert.IsType(t, map[string]any{}, st.Get("doc", nil))
}

func TestSession_AllAndVersion(t *testing.T) {
	s := newTestSession(t)
	_, err := s.State().Set("a", "x")
	require.NoError(t, err)
	_, err = s.State().Set("b", int64(2))
	require.NoError(t, err)

	assert.Equal(t, int64(2), s.Version())
	all := s.All()
	assert.Equal(t, map[string]any{"a": "x", "b": int64(2)}, all)

	delete(all, "a")
	assert.Len(t, s.All(), 2)
}

func TestArtifacts_WriteReadList(t *testing.T) {
	s := newTestSession(t)
	a := s.Artifacts()

	require.NoError(t, a.Write("b.txt", []byte("bee")))
	require.NoError(t, a.Write("a.txt", []byte("ay")))
	require.NoError(t, a.Write("b.txt", []byte("bzz!")))

	assert.Equal(t, []string{"a.txt", "b.txt"}, a.List())

	data, err := a.Read("b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("bzz!"), data)

	size, err := a.Size("a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)

	writes := s.Trajectory().OfKind(core.KindArtifactWritten)
	require.Len(t, writes, 3)
	first := writes[0].Payload()
	assert.Equal(t, false, first["is_update"])
	assert.Nil(t, first["old_size"])
	last := writes[2].Payload()
	assert.Equal(t, true, last["is_update"])
	assert.Equal(t, int64(3), last["old_size"])
	assert.Equal(t, int64(4), last["size"])
	assert.Equal(t, Digest([]byte("bzz!")), last["digest"])
}

func TestArtifacts_NotFound(t *testing.T) {
	a := newTestSession(t).Artifacts()

	_, err := a.Read("nope")
	assert.True(t, errors.Is(err, core.ErrArtifactNotFound))

	_, err = a.Size("nope")
	assert.True(t, errors.Is(err, core.ErrArtifactNotFound))
}

func TestArtifacts_SizeBoundary(t *testing.T) {
	s := newTestSession(t, WithMaxArtifactSize(8))
	a := s.Artifacts()

	require.NoError(t, a.Write("exact", make([]byte, 8)))

	before := s.Trajectory().Len()
	err := a.Write("over", make([]byte, 9))
	assert.True(t, errors.Is(err, core.ErrArtifactTooLarge))
	assert.False(t, a.Has("over"))
	assert.Equal(t, before, s.Trajectory().Len())

	err = a.Write("exact", make([]byte, 9))
	assert.True(t, errors.Is(err, core.ErrArtifactTooLarge))
	size, _ := a.Size("exact")
	assert.Equal(t, int64(8), size)
}

func TestArtifacts_LimitIsPerArtifact(t *testing.T) {
	a := newTestSession(t, WithMaxArtifactSize(4)).Artifacts()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, a.Write(name, []byte("1234")))
	}
	assert.Equal(t, 3, a.Len())
}

func TestArtifacts_InvalidName(t *testing.T) {
	err := newTestSession(t).Artifacts().Write("", []byte("x"))
	assert.True(t, errors.Is(err, core.ErrInvalidArtifactName))
}

func TestArtifacts_Isolation(t *testing.T) {
	a := newTestSession(t).Artifacts()
	buf := []byte("abc")
	require.NoError(t, a.Write("x", buf))

	buf[0] = 'z'
	got, _ := a.Read("x")
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, _ := a.Read("x")
	assert.Equal(t, []byte("abc"), again)

	names := a.List()
	names[0] = "changed"
	assert.Equal(t, []string{"x"}, a.List())
}

func TestTrajectory_SequenceIsContiguous(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 20; i++ {
		_, err := s.Append("tester", core.KindSystemNote, core.Payload{"i": i})
		require.NoError(t, err)
	}
	for i, e := range s.Trajectory().Entries() {
		assert.Equal(t, int64(i+1), e.Seq())
	}
}

func TestTrajectory_AppendValidation(t *testing.T) {
	s := newTestSession(t)
	before := s.Trajectory().Len()

	_, err := s.Append("", core.KindSystemNote, nil)
	assert.Error(t, err)

	_, err = s.Append("tester", core.KindSystemNote, core.Payload{"ch": make(chan int)})
	assert.True(t, errors.Is(err, core.ErrInvalidPayload))

	assert.Equal(t, before, s.Trajectory().Len())

	seq, err := s.Append("tester", core.KindUserInput, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(before+1), seq)
}

func TestTrajectory_Recent(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 5; i++ {
		_, err := s.Append("tester", core.KindSystemNote, core.Payload{"i": i})
		require.NoError(t, err)
	}
	tr := s.Trajectory()

	recent := tr.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(5), recent[0].Seq())
	assert.Equal(t, int64(6), recent[1].Seq())

	assert.Empty(t, tr.Recent(0))
	assert.Empty(t, tr.Recent(-1))
	assert.Len(t, tr.Recent(100), 6)
	assert.Len(t, tr.Entries(), 6)
}

func TestSnapshot_IsDetached(t *testing.T) {
	s := newTestSession(t, WithID("snap"))
	_, err := s.State().Set("cfg", map[string]any{"depth": 1})
	require.NoError(t, err)
	require.NoError(t, s.Artifacts().Write("out.bin", []byte{1, 2}))

	snap := s.Snapshot("observer", 2)
	assert.Equal(t, "snap", snap.SessionID)
	assert.Equal(t, "observer", snap.RequestedBy)
	assert.Equal(t, int64(1), snap.StateVersion)
	assert.Len(t, snap.Trajectory, 2)
	assert.Equal(t, 3, snap.TrajectoryTotalLength)
	assert.Equal(t, []string{"out.bin"}, snap.Artifacts)
	assert.NotEmpty(t, snap.SnapshotTime)

	snap.State["cfg"].(map[string]any)["depth"] = 99
	snap.State["new"] = true
	snap.Artifacts[0] = "changed"
	snap.Trajectory[0].Content["key"] = "changed"

	again := s.Snapshot("observer", 2)
	assert.Equal(t, map[string]any{"cfg": map[string]any{"depth": int64(1)}}, again.State)
	assert.Equal(t, []string{"out.bin"}, again.Artifacts)
	assert.Equal(t, "cfg", again.Trajectory[0].Content["key"])
	assert.Equal(t, 3, s.Trajectory().Len())
}

func TestSnapshot_ZeroDepth(t *testing.T) {
	snap := newTestSession(t).Snapshot("observer", 0)
	assert.Empty(t, snap.Trajectory)
	assert.Equal(t, 1, snap.TrajectoryTotalLength)
}
