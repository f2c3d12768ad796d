package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/kaizen/agent"
	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/logging"
	"github.com/hupe1980/kaizen/session"
)

// OriginID is the trajectory origin of entries the dispatcher writes and
// the agent id of results it synthesizes.
const OriginID = core.OriginDispatcher

// DefaultSummaryLimit caps result_summary in plan_step_completed entries.
const DefaultSummaryLimit = 200

// Options configures a Dispatcher.
type Options struct {
	Logger       logging.Logger
	Callbacks    []Callback
	SummaryLimit int
}

// WithLogger sets the operator logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCallback adds a step callback.
func WithCallback(cb Callback) func(o *Options) {
	return func(o *Options) { o.Callbacks = append(o.Callbacks, cb) }
}

// Dispatcher maps capability names to agents and runs ordered call lists
// against a session, stopping at the first failure.
//
// The registry is safe for concurrent use. Dispatching is synchronous and
// inherits the session's single-caller rule.
type Dispatcher struct {
	mu           sync.RWMutex
	byCapability map[string]agent.Agent
	infos        map[string]core.AgentInfo

	callbacks    callbacks
	summaryLimit int
	logger       logging.Logger
}

// New creates an empty dispatcher.
func New(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		SummaryLimit: DefaultSummaryLimit,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	d := &Dispatcher{
		byCapability: make(map[string]agent.Agent),
		infos:        make(map[string]core.AgentInfo),
		callbacks:    make(callbacks),
		summaryLimit: opts.SummaryLimit,
		logger:       logging.WithComponent(opts.Logger, "dispatcher"),
	}
	for _, cb := range opts.Callbacks {
		d.callbacks.register(cb)
	}
	return d
}

// Register maps every capability a declares to a.
//
// A capability that is already mapped is silently reassigned to a: the last
// registration wins. Two agents declaring the same capability name is
// almost always a wiring mistake, so the reassignment is logged at debug
// level, but it is not an error.
func (d *Dispatcher) Register(a agent.Agent) error {
	info := a.Info()
	if err := info.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.infos[info.ID] = info
	for _, c := range info.Capabilities {
		if prev, ok := d.byCapability[c]; ok && prev.Info().ID != info.ID {
			d.logger.Debug("capability reassigned", "capability", c, "from", prev.Info().ID, "to", info.ID)
		}
		d.byCapability[c] = a
	}
	return nil
}

// Unregister removes the agent with agentID and those of its capability
// mappings that still point at it. It reports whether the agent was known.
func (d *Dispatcher) Unregister(agentID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.infos[agentID]
	if !ok {
		return false
	}
	for _, c := range info.Capabilities {
		if cur, ok := d.byCapability[c]; ok && cur.Info().ID == agentID {
			delete(d.byCapability, c)
		}
	}
	delete(d.infos, agentID)
	return true
}

// Capabilities returns the registered capability names, sorted.
func (d *Dispatcher) Capabilities() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.byCapability))
	for c := range d.byCapability {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// AgentFor returns the agent registered for capability.
func (d *Dispatcher) AgentFor(capability string) (agent.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byCapability[capability]
	return a, ok
}

// Has reports whether capability is registered.
func (d *Dispatcher) Has(capability string) bool {
	_, ok := d.AgentFor(capability)
	return ok
}

// Agents returns the info of every registered agent, sorted by id.
func (d *Dispatcher) Agents() []core.AgentInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]core.AgentInfo, 0, len(d.infos))
	for _, info := range d.infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dispatch runs calls in order against sess. Each call is bracketed by
// plan_step_started and plan_step_completed entries. Execution stops after
// the first failed call; state changes made by earlier calls are kept.
//
// ctx is passed to handlers. The dispatcher itself imposes no deadline.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []core.CapabilityCall, sess *session.Session) *Result {
	return d.run(ctx, calls, sess, nil)
}

// DispatchSingle runs one call and returns its result.
func (d *Dispatcher) DispatchSingle(ctx context.Context, capability string, sess *session.Session, params core.Payload) core.InvokeResult {
	if params == nil {
		params = core.Payload{}
	}
	res := d.Dispatch(ctx, []core.CapabilityCall{{Capability: capability, Params: params}}, sess)
	return res.Results[0]
}

// Resume re-runs calls against a session whose trajectory may record an
// earlier, interrupted dispatch. A call whose (index, capability) pair was
// recorded as successful is not executed again; it yields a synthetic
// success {"resumed": true, "step_index": i} and appends nothing. Every
// other call runs exactly as in Dispatch, with the same fail-fast rule.
func (d *Dispatcher) Resume(ctx context.Context, calls []core.CapabilityCall, sess *session.Session) *Result {
	return d.run(ctx, calls, sess, completedSteps(sess))
}

type stepKey struct {
	index      int64
	capability string
}

// completedSteps collects the (step_index, capability) pairs of successful
// plan_step_completed entries.
func completedSteps(sess *session.Session) map[stepKey]struct{} {
	done := make(map[stepKey]struct{})
	for _, e := range sess.Trajectory().OfKind(core.KindPlanStepCompleted) {
		p := e.Payload()
		if ok, _ := p["success"].(bool); !ok {
			continue
		}
		idx, ok := p["step_index"].(int64)
		if !ok {
			continue
		}
		capability, _ := p["capability"].(string)
		done[stepKey{index: idx, capability: capability}] = struct{}{}
	}
	return done
}

func (d *Dispatcher) run(ctx context.Context, calls []core.CapabilityCall, sess *session.Session, done map[stepKey]struct{}) *Result {
	res := &Result{Results: make([]core.InvokeResult, 0, len(calls))}
	for i, call := range calls {
		if _, ok := done[stepKey{index: int64(i), capability: call.Capability}]; ok {
			r := core.OK(OriginID, call.Capability, map[string]any{"resumed": true, "step_index": i})
			res.Results = append(res.Results, r)
			d.logger.Debug("step resumed", "capability", call.Capability, "step_index", i)
			d.fire(ctx, CallbackOnResume, sess, i, call, &r)
			continue
		}

		r := d.step(ctx, i, call, sess)
		res.Results = append(res.Results, r)
		if !r.Succeeded() {
			d.fire(ctx, CallbackOnFailure, sess, i, call, &r)
			break
		}
	}
	return res
}

func (d *Dispatcher) step(ctx context.Context, i int, call core.CapabilityCall, sess *session.Session) core.InvokeResult {
	start := time.Now()
	if _, err := sess.Append(OriginID, core.KindPlanStepStarted, core.Payload{
		"step_index": i,
		"capability": call.Capability,
		"params":     call.Params,
	}); err != nil {
		// Params that cannot be recorded cannot be replayed either.
		r := core.Fail(OriginID, call.Capability, core.CodeContentInvalidPayload, err.Error(),
			map[string]any{"step_index": i})
		logging.LogDispatchStep(d.logger, call.Capability, i, time.Since(start), false, err)
		return r
	}
	d.fire(ctx, CallbackBeforeStep, sess, i, call, nil)

	var r core.InvokeResult
	a, ok := d.AgentFor(call.Capability)
	if !ok {
		caps := d.Capabilities()
		available := make([]any, len(caps))
		for j, c := range caps {
			available[j] = c
		}
		r = core.Fail(OriginID, call.Capability, core.CodeDispatchNoAgentForCapability,
			fmt.Sprintf("No agent registered for capability '%s'", call.Capability),
			map[string]any{"available_capabilities": available, "step_index": i})
	} else {
		r = d.invoke(ctx, a, i, call, sess)
	}

	summary := r.Summary(d.summaryLimit)
	if _, err := sess.Append(OriginID, core.KindPlanStepCompleted, core.Payload{
		"step_index":     i,
		"capability":     call.Capability,
		"success":        r.Succeeded(),
		"result_summary": summary,
	}); err != nil {
		d.logger.Error("failed to record step completion", "capability", call.Capability, "step_index", i, "error", err.Error())
	}

	var stepErr error
	if f := r.Failure(); f != nil {
		stepErr = f
	}
	logging.LogDispatchStep(d.logger, call.Capability, i, time.Since(start), r.Succeeded(), stepErr)
	d.fire(ctx, CallbackAfterStep, sess, i, call, &r)
	return r
}

// invoke calls the handler, converting a returned error or a panic into an
// agent_invocation_failed result.
func (d *Dispatcher) invoke(ctx context.Context, a agent.Agent, i int, call core.CapabilityCall, sess *session.Session) (r core.InvokeResult) {
	var agentID string
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprint(rec)
			if err, ok := rec.(error); ok {
				msg = err.Error()
			}
			r = raised(agentID, call.Capability, i, fmt.Sprintf("%T", rec), msg)
		}
	}()
	agentID = a.Info().ID

	params := call.Params
	if params == nil {
		params = core.Payload{}
	}
	r, err := a.Invoke(ctx, call.Capability, sess, core.ClonePayload(params))
	if err != nil {
		return raised(agentID, call.Capability, i, fmt.Sprintf("%T", err), err.Error())
	}
	r = r.Normalize()
	if r.Outcome == nil {
		return core.Fail(agentID, call.Capability, core.CodeAgentInvocationFailed,
			"handler returned an empty result", map[string]any{"step_index": i})
	}
	if r.AgentID == "" {
		r.AgentID = agentID
	}
	if r.Capability == "" {
		r.Capability = call.Capability
	}
	return r
}

func raised(agentID, capability string, i int, typ, msg string) core.InvokeResult {
	return core.Fail(agentID, capability, core.CodeAgentInvocationFailed,
		fmt.Sprintf("Agent raised exception: %s: %s", typ, msg),
		map[string]any{"exception_type": typ, "exception_message": msg, "step_index": i})
}

func (d *Dispatcher) fire(ctx context.Context, typ CallbackType, sess *session.Session, i int, call core.CapabilityCall, r *core.InvokeResult) {
	cbs := d.callbacks[typ]
	if len(cbs) == 0 {
		return
	}
	step := &StepContext{Type: typ, Session: sess, Index: i, Call: call, Result: r}
	for _, cb := range cbs {
		if err := cb.Execute(ctx, step); err != nil {
			d.logger.Warn("step callback failed", "callback", string(typ), "step_index", i, "error", err.Error())
		}
	}
}
