// Package kaizen provides a high-level facade over the session substrate.
// Most applications interact with this package by:
//  1. Creating a Kaizen via New (optionally with a config file and a provider)
//  2. Registering agents beyond the built-in ones
//  3. Running requests or explicit call lists against session files
//
// The facade delegates to dispatch.Dispatcher, planner.Planner and
// runner.Runner. Sessions stay single-caller: hand one session to one
// goroutine at a time.
package kaizen

import (
	"context"

	"github.com/hupe1980/kaizen/agent"
	"github.com/hupe1980/kaizen/config"
	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/dispatch"
	"github.com/hupe1980/kaizen/logging"
	"github.com/hupe1980/kaizen/model"
	"github.com/hupe1980/kaizen/planner"
	"github.com/hupe1980/kaizen/runner"
	"github.com/hupe1980/kaizen/session"
)

// Options configures the Kaizen instance.
type Options struct {
	// Config supplies session limits, persistence and provider settings.
	// Defaults to config.Default().
	Config config.Config

	// Provider overrides the provider described by Config.Provider.
	Provider model.Provider

	// Agents are registered after the built-in agents, so they win on
	// capability name clashes.
	Agents []agent.Agent

	// Callbacks observe every dispatched step.
	Callbacks []dispatch.Callback

	// DisableBuiltins skips the reverse, uppercase, state and model agents.
	DisableBuiltins bool

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Kaizen aggregates a dispatcher, a planner and a runner that share one
// configuration.
type Kaizen struct {
	cfg        config.Config
	logger     logging.Logger
	provider   model.Provider
	dispatcher *dispatch.Dispatcher
	planner    *planner.Planner
	runner     *runner.Runner
}

// New creates a Kaizen instance. It fails when the configuration is
// invalid, the provider cannot be built or an agent has invalid info.
func New(optFns ...func(o *Options)) (*Kaizen, error) {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		p, err := opts.Config.NewProvider()
		if err != nil {
			return nil, err
		}
		provider = p
	}

	d := dispatch.New(func(o *dispatch.Options) {
		o.Logger = opts.Logger
		o.Callbacks = append(o.Callbacks, opts.Callbacks...)
	})

	var agents []agent.Agent
	if !opts.DisableBuiltins {
		agents = append(agents,
			agent.NewReverseAgent(),
			agent.NewUppercaseAgent(),
			agent.NewStateAgent(),
			agent.NewModelAgent(provider, func(o *agent.ModelAgentOptions) { o.Logger = opts.Logger }),
		)
	}
	agents = append(agents, opts.Agents...)
	for _, a := range agents {
		if err := d.Register(a); err != nil {
			return nil, err
		}
	}

	p := planner.New(provider, func(o *planner.Options) { o.Logger = opts.Logger })

	k := &Kaizen{
		cfg:        opts.Config,
		logger:     opts.Logger,
		provider:   provider,
		dispatcher: d,
		planner:    p,
	}
	k.runner = runner.New(d, func(o *runner.Options) {
		o.Planner = p
		o.Session = k.sessionOptions(nil)
		o.Logger = opts.Logger
	})
	return k, nil
}

// Register adds an agent to the dispatcher.
func (k *Kaizen) Register(a agent.Agent) error { return k.dispatcher.Register(a) }

// Config returns the effective configuration.
func (k *Kaizen) Config() config.Config { return k.cfg }

// Provider returns the completion provider shared by the planner and the
// model agent.
func (k *Kaizen) Provider() model.Provider { return k.provider }

// Dispatcher exposes the underlying dispatcher.
func (k *Kaizen) Dispatcher() *dispatch.Dispatcher { return k.dispatcher }

// Planner exposes the underlying planner. Its capability list is refreshed
// from the dispatcher before every Plan and Run.
func (k *Kaizen) Planner() *planner.Planner { return k.planner }

func (k *Kaizen) sessionOptions(extra []func(o *session.Options)) []func(o *session.Options) {
	opts := append(k.cfg.SessionOptions(), session.WithLogger(k.logger))
	return append(opts, extra...)
}

// NewSession creates an in-memory session using the configured limits.
// optFns are applied last.
func (k *Kaizen) NewSession(optFns ...func(o *session.Options)) (*session.Session, error) {
	return session.New(k.sessionOptions(optFns)...)
}

// Load reads a session file using the configured options.
func (k *Kaizen) Load(ctx context.Context, path string, optFns ...func(o *session.Options)) (*session.Session, error) {
	return session.Load(ctx, path, k.sessionOptions(optFns)...)
}

// Dispatch runs calls against sess.
func (k *Kaizen) Dispatch(ctx context.Context, calls []core.CapabilityCall, sess *session.Session) *dispatch.Result {
	return k.dispatcher.Dispatch(ctx, calls, sess)
}

// Resume re-runs calls against sess, skipping steps already recorded as
// successful.
func (k *Kaizen) Resume(ctx context.Context, calls []core.CapabilityCall, sess *session.Session) *dispatch.Result {
	return k.dispatcher.Resume(ctx, calls, sess)
}

// Plan turns request into calls without executing them. sess may be nil;
// otherwise a plan_created entry is recorded.
func (k *Kaizen) Plan(ctx context.Context, request string, sess *session.Session) (*planner.Plan, error) {
	k.refreshCapabilities()
	return k.planner.Plan(ctx, request, sess)
}

// Run plans request and dispatches the plan against the session file at
// path, creating the file when needed.
func (k *Kaizen) Run(ctx context.Context, path, request string) (*runner.Report, error) {
	k.refreshCapabilities()
	return k.runner.Run(ctx, path, request)
}

// Execute dispatches calls against the session file at path, creating the
// file when needed.
func (k *Kaizen) Execute(ctx context.Context, path string, calls []core.CapabilityCall) (*runner.Report, error) {
	return k.runner.Execute(ctx, path, calls)
}

// ResumeFile resumes calls against the existing session file at path.
func (k *Kaizen) ResumeFile(ctx context.Context, path string, calls []core.CapabilityCall) (*runner.Report, error) {
	return k.runner.Resume(ctx, path, calls)
}

func (k *Kaizen) refreshCapabilities() {
	k.planner.SetCapabilities(planner.FromDispatcher(k.dispatcher)...)
}
