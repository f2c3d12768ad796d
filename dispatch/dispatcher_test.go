package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kaizen/agent"
	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/internal/testutil"
	"github.com/hupe1980/kaizen/session"
)

func calls(caps ...string) []core.CapabilityCall {
	out := make([]core.CapabilityCall, len(caps))
	for i, c := range caps {
		out[i] = core.CapabilityCall{Capability: c, Params: core.Payload{}}
	}
	return out
}

func stepEntries(sess *session.Session, kind core.EntryKind) []core.Payload {
	var out []core.Payload
	for _, e := range sess.Trajectory().OfKind(kind) {
		out = append(out, e.Payload())
	}
	return out
}

func TestDispatcher_Registry(t *testing.T) {
	d := New()
	a := testutil.NewRecordingAgent("a", "x", "y")
	b := testutil.NewRecordingAgent("b", "y", "z")

	require.NoError(t, d.Register(a))
	require.NoError(t, d.Register(b))

	assert.Equal(t, []string{"x", "y", "z"}, d.Capabilities())
	got, ok := d.AgentFor("y")
	require.True(t, ok)
	assert.Equal(t, "b", got.Info().ID, "last registration wins")
	assert.True(t, d.Has("x"))
	assert.False(t, d.Has("w"))

	infos := d.Agents()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ID)
	assert.Equal(t, "b", infos[1].ID)

	// a no longer owns y, so unregistering a leaves y with b.
	assert.True(t, d.Unregister("a"))
	assert.Equal(t, []string{"y", "z"}, d.Capabilities())
	got, _ = d.AgentFor("y")
	assert.Equal(t, "b", got.Info().ID)

	assert.False(t, d.Unregister("a"))
	assert.False(t, d.Unregister("unknown"))
}

func TestDispatcher_RegisterInvalid(t *testing.T) {
	d := New()
	err := d.Register(testutil.NewRecordingAgent("empty"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.Empty(t, d.Capabilities())
}

func TestDispatch_ReverseThenUppercase(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(agent.NewReverseAgent()))
	require.NoError(t, d.Register(agent.NewUppercaseAgent()))
	sess := testutil.NewSessionBuilder("s").State("text", "hello world").Build(t)

	res := d.Dispatch(context.Background(), []core.CapabilityCall{
		{Capability: "reverse", Params: core.Payload{"key": "text"}},
		{Capability: "uppercase", Params: core.Payload{"key": "text"}},
	}, sess)

	require.True(t, res.Succeeded(), res.String())
	assert.Equal(t, 2, res.Executed())
	assert.Equal(t, []int{0, 1}, res.CompletedIndices())
	assert.Equal(t, "DLROW OLLEH", sess.State().Get("text", nil))

	completed := sess.Trajectory().OfKind(core.KindAgentCompleted)
	require.Len(t, completed, 2)
	assert.Equal(t, "reverse_agent_v1", completed[0].OriginID())
	assert.Equal(t, "uppercase_agent_v1", completed[1].OriginID())
	assert.Less(t, completed[0].Seq(), completed[1].Seq())

	started := stepEntries(sess, core.KindPlanStepStarted)
	require.Len(t, started, 2)
	assert.Equal(t, int64(0), started[0]["step_index"])
	assert.Equal(t, map[string]any{"key": "text"}, started[0]["params"])
}

func TestDispatch_FailFast(t *testing.T) {
	d := New()
	a := testutil.NewRecordingAgent("rec", "A", "B", "C")
	a.Fail["B"] = true
	require.NoError(t, d.Register(a))
	sess := testutil.NewSessionBuilder("s").Build(t)

	res := d.Dispatch(context.Background(), calls("A", "B", "C"), sess)

	require.False(t, res.Succeeded())
	idx, failed := res.FailedAt()
	require.True(t, failed)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 2, res.Executed())
	assert.Equal(t, core.CodeAgentInvocationFailed, res.Err().Code)

	assert.Equal(t, 1, a.Count("A"))
	assert.Equal(t, 1, a.Count("B"))
	assert.Equal(t, 0, a.Count("C"))
	assert.Equal(t, int64(1), sess.State().Get("rec.A", nil), "earlier mutations are kept")

	completed := stepEntries(sess, core.KindPlanStepCompleted)
	require.Len(t, completed, 2)
	assert.Equal(t, true, completed[0]["success"])
	assert.Equal(t, false, completed[1]["success"])
	assert.Contains(t, completed[1]["result_summary"], "agent_invocation_failed")
}

func TestDispatch_NoAgent(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(testutil.NewRecordingAgent("rec", "known")))
	sess := testutil.NewSessionBuilder("s").Build(t)

	res := d.Dispatch(context.Background(), calls("known", "missing", "known"), sess)

	idx, _ := res.FailedAt()
	assert.Equal(t, 1, idx)
	f := res.Err()
	require.NotNil(t, f)
	assert.Equal(t, core.CodeDispatchNoAgentForCapability, f.Code)
	assert.Equal(t, "No agent registered for capability 'missing'", f.Message)
	assert.Equal(t, []any{"known"}, f.Details["available_capabilities"])
	assert.Equal(t, int64(1), f.Details["step_index"])
	assert.Equal(t, OriginID, res.Results[1].AgentID)
	assert.Len(t, stepEntries(sess, core.KindPlanStepCompleted), 2)
}

func TestDispatch_PanicAndErrorAreContained(t *testing.T) {
	d := New()
	a := testutil.NewRecordingAgent("rec", "boom", "oops")
	a.Panic["boom"] = true
	a.Err["oops"] = errors.New("disk on fire")
	require.NoError(t, d.Register(a))
	sess := testutil.NewSessionBuilder("s").Build(t)

	r := d.DispatchSingle(context.Background(), "boom", sess, nil)
	f := r.Failure()
	require.NotNil(t, f)
	assert.Equal(t, core.CodeAgentInvocationFailed, f.Code)
	assert.Equal(t, "rec", r.AgentID)
	assert.Equal(t, "string", f.Details["exception_type"])
	assert.Equal(t, "recording agent: boom", f.Details["exception_message"])
	assert.True(t, strings.HasPrefix(f.Message, "Agent raised exception: string: "))

	r = d.DispatchSingle(context.Background(), "oops", sess, nil)
	f = r.Failure()
	require.NotNil(t, f)
	assert.Equal(t, "*errors.errorString", f.Details["exception_type"])
	assert.Equal(t, "disk on fire", f.Details["exception_message"])

	completed := stepEntries(sess, core.KindPlanStepCompleted)
	require.Len(t, completed, 2)
	assert.Equal(t, false, completed[1]["success"])
}

// fixedAgent returns the same result for every call.
type fixedAgent struct {
	capability string
	result     core.InvokeResult
}

func (a fixedAgent) Info() core.AgentInfo {
	return core.AgentInfo{ID: "fixed", Name: "Fixed", Version: "1.0.0", Capabilities: []string{a.capability}}
}

func (a fixedAgent) Invoke(context.Context, string, *session.Session, core.Payload) (core.InvokeResult, error) {
	return a.result, nil
}

func TestDispatch_PointerOutcomes(t *testing.T) {
	t.Run("nil failure", func(t *testing.T) {
		d := New()
		require.NoError(t, d.Register(fixedAgent{capability: "bad", result: core.InvokeResult{Outcome: (*core.Failure)(nil)}}))
		sess := testutil.NewSessionBuilder("s").Build(t)

		res := d.Dispatch(context.Background(), calls("bad", "never"), sess)
		i, failed := res.FailedAt()
		require.True(t, failed)
		assert.Equal(t, 0, i)
		require.NotNil(t, res.Err())
		assert.Equal(t, core.CodeAgentInvocationFailed, res.Err().Code)
		assert.Equal(t, "fixed", res.Results[0].AgentID)
		assert.NotPanics(t, func() { _ = res.String() })
	})

	t.Run("success pointer", func(t *testing.T) {
		d := New()
		require.NoError(t, d.Register(fixedAgent{capability: "ok", result: core.InvokeResult{Outcome: &core.Success{Value: 1}}}))
		sess := testutil.NewSessionBuilder("s").Build(t)

		res := d.Dispatch(context.Background(), calls("ok"), sess)
		require.True(t, res.Succeeded())
		assert.Equal(t, 1, res.Results[0].Value())
		assert.Equal(t, core.Success{Value: 1}, res.Results[0].Outcome)

		completed := stepEntries(sess, core.KindPlanStepCompleted)
		require.Len(t, completed, 1)
		assert.Equal(t, true, completed[0]["success"])
	})
}

func TestDispatch_SummaryTruncated(t *testing.T) {
	d := New()
	long := strings.Repeat("é", 500)
	require.NoError(t, d.Register(agent.NewFuncAgent("f", "F", map[string]agent.HandlerFunc{
		"long": func(context.Context, *session.Session, core.Payload) (any, error) { return long, nil },
	})))
	sess := testutil.NewSessionBuilder("s").Build(t)

	d.DispatchSingle(context.Background(), "long", sess, nil)

	completed := stepEntries(sess, core.KindPlanStepCompleted)
	require.Len(t, completed, 1)
	summary := completed[0]["result_summary"].(string)
	assert.Equal(t, DefaultSummaryLimit, len([]rune(summary)))
}

func TestResume_SkipsCompletedSteps(t *testing.T) {
	d := New()
	a := testutil.NewRecordingAgent("rec", "A", "B")
	a.Fail["B"] = true
	require.NoError(t, d.Register(a))
	sess := testutil.NewSessionBuilder("s").Build(t)

	first := d.Dispatch(context.Background(), calls("A", "B"), sess)
	require.False(t, first.Succeeded())

	a.Fail["B"] = false
	before := sess.Trajectory().Len()
	res := d.Resume(context.Background(), calls("A", "B"), sess)

	require.True(t, res.Succeeded())
	assert.Equal(t, 1, a.Count("A"), "A is not re-invoked")
	assert.Equal(t, 2, a.Count("B"))
	assert.Equal(t, []int{0}, res.ResumedIndices())
	assert.True(t, IsResumed(res.Results[0]))
	assert.Equal(t, map[string]any{"resumed": true, "step_index": int64(0)}, res.Results[0].Value())
	assert.Equal(t, OriginID, res.Results[0].AgentID)
	assert.False(t, IsResumed(res.Results[1]))

	// B's started, state_set and completed entries only
	assert.Equal(t, before+3, sess.Trajectory().Len())
}

func TestResume_MatchesIndexAndCapability(t *testing.T) {
	d := New()
	a := testutil.NewRecordingAgent("rec", "A", "B", "C")
	require.NoError(t, d.Register(a))
	sess := testutil.NewSessionBuilder("s").
		CompletedStep(0, "A", true).
		CompletedStep(1, "B", false).
		Build(t)

	res := d.Resume(context.Background(), calls("C", "B"), sess)

	require.True(t, res.Succeeded())
	assert.Empty(t, res.ResumedIndices(), "index 0 changed capability and index 1 had failed")
	assert.Equal(t, 1, a.Count("C"))
	assert.Equal(t, 1, a.Count("B"))
	assert.Equal(t, 0, a.Count("A"))
}

func TestResume_AllCompleted(t *testing.T) {
	d := New()
	a := testutil.NewRecordingAgent("rec", "A", "B")
	require.NoError(t, d.Register(a))
	sess := testutil.NewSessionBuilder("s").
		CompletedStep(0, "A", true).
		CompletedStep(1, "B", true).
		Build(t)
	before := sess.Trajectory().Len()

	res := d.Resume(context.Background(), calls("A", "B"), sess)

	assert.True(t, res.Succeeded())
	assert.Equal(t, []int{0, 1}, res.ResumedIndices())
	assert.Empty(t, a.Calls())
	assert.Equal(t, before, sess.Trajectory().Len())
}

func TestResume_AfterSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := testutil.TempSessionPath(t)
	d := New()
	a := testutil.NewRecordingAgent("rec", "A", "B")
	a.Fail["B"] = true
	require.NoError(t, d.Register(a))

	sess := testutil.NewSessionBuilder("s").Build(t)
	d.Dispatch(ctx, calls("A", "B"), sess)
	require.NoError(t, sess.Save(ctx, path))

	loaded, err := session.Load(ctx, path)
	require.NoError(t, err)
	a.Fail["B"] = false

	res := d.Resume(ctx, calls("A", "B"), loaded)
	require.True(t, res.Succeeded())
	assert.Equal(t, []int{0}, res.ResumedIndices())
	assert.Equal(t, 1, a.Count("A"))
}

func TestCallbacks(t *testing.T) {
	var lines []string
	var before []int
	d := New(
		WithCallback(NewProgressCallback(CallbackAfterStep, func(l string) { lines = append(lines, l) })),
		WithCallback(NewProgressCallback(CallbackOnResume, func(l string) { lines = append(lines, l) })),
		WithCallback(NewFunctionCallback(CallbackBeforeStep, func(_ context.Context, s *StepContext) error {
			before = append(before, s.Index)
			return errors.New("ignored")
		})),
	)
	a := testutil.NewRecordingAgent("rec", "A", "B")
	a.Fail["B"] = true
	require.NoError(t, d.Register(a))
	sess := testutil.NewSessionBuilder("s").CompletedStep(0, "A", true).Build(t)

	res := d.Resume(context.Background(), calls("A", "B"), sess)

	assert.False(t, res.Succeeded())
	assert.Equal(t, []int{1}, before)
	assert.Equal(t, []string{
		"[0] A resumed",
		"[1] B failed: agent_invocation_failed: B failed",
	}, lines)
}
