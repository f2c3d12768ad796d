package runner

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/dispatch"
	"github.com/hupe1980/kaizen/logging"
	"github.com/hupe1980/kaizen/planner"
	"github.com/hupe1980/kaizen/session"
)

// Options holds overrides passed to New.
type Options struct {
	// Planner turns requests into calls. Run requires it.
	Planner *planner.Planner

	// Session options applied when a session file is created or loaded.
	Session []func(o *session.Options)

	Logger logging.Logger
}

// Report describes one run over a session file.
type Report struct {
	Path      string
	SessionID string

	// Created is true when the session file did not exist before the run.
	Created bool

	// Plan is set by Run.
	Plan *planner.Plan

	// Result is nil when planning failed.
	Result *dispatch.Result

	Duration time.Duration
}

// Runner executes call lists against a session file: it loads (or
// creates) the session, dispatches and saves. Dispatch failures are
// reported in Report.Result; only persistence and planning failures are
// returned as errors.
type Runner struct {
	dispatcher *dispatch.Dispatcher
	planner    *planner.Planner
	sessOpts   []func(o *session.Options)
	logger     logging.Logger
}

// New constructs a Runner around d.
func New(d *dispatch.Dispatcher, optFns ...func(o *Options)) *Runner {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		dispatcher: d,
		planner:    opts.Planner,
		sessOpts:   opts.Session,
		logger:     logging.WithComponent(opts.Logger, "runner"),
	}
}

// Open loads the session at path, or creates a new one when the file does
// not exist. The new session is not saved until the caller saves it.
func (r *Runner) Open(ctx context.Context, path string) (*session.Session, bool, error) {
	sess, err := session.Load(ctx, path, r.sessOpts...)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, core.ErrFileNotFound) {
		return nil, false, err
	}
	sess, err = session.New(r.sessOpts...)
	if err != nil {
		return nil, false, err
	}
	r.logger.Info("session created", "session_id", sess.ID(), "path", path)
	return sess, true, nil
}

// Run records request as user input, plans it, dispatches the plan and
// saves the session. A planning failure is saved too, so the user_input
// entry survives, and then returned.
func (r *Runner) Run(ctx context.Context, path, request string) (*Report, error) {
	if r.planner == nil {
		return nil, core.NewError(core.CodePlanGenerationFailed, "runner has no planner")
	}
	start := time.Now()
	sess, created, err := r.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	report := &Report{Path: path, SessionID: sess.ID(), Created: created}

	if _, err := sess.Append(core.OriginUser, core.KindUserInput, core.Payload{"text": request}); err != nil {
		return nil, err
	}
	plan, planErr := r.planner.Plan(ctx, request, sess)
	if planErr != nil {
		r.logger.Warn("planning failed", "session_id", sess.ID(), "error", planErr.Error())
		if err := sess.Save(ctx, path); err != nil {
			return nil, err
		}
		report.Duration = time.Since(start)
		return report, planErr
	}
	report.Plan = plan
	report.Result = r.dispatcher.Dispatch(ctx, plan.Calls, sess)

	if err := sess.Save(ctx, path); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

// Execute dispatches calls against the session at path and saves it.
func (r *Runner) Execute(ctx context.Context, path string, calls []core.CapabilityCall) (*Report, error) {
	return r.execute(ctx, path, calls, false)
}

// Resume loads the session at path, resumes calls and saves it. Unlike
// Execute it requires the file to exist.
func (r *Runner) Resume(ctx context.Context, path string, calls []core.CapabilityCall) (*Report, error) {
	return r.execute(ctx, path, calls, true)
}

func (r *Runner) execute(ctx context.Context, path string, calls []core.CapabilityCall, resume bool) (*Report, error) {
	for _, c := range calls {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	start := time.Now()

	var (
		sess    *session.Session
		created bool
		err     error
	)
	if resume {
		sess, err = session.Load(ctx, path, r.sessOpts...)
	} else {
		sess, created, err = r.Open(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	report := &Report{Path: path, SessionID: sess.ID(), Created: created}
	if resume {
		report.Result = r.dispatcher.Resume(ctx, calls, sess)
	} else {
		report.Result = r.dispatcher.Dispatch(ctx, calls, sess)
	}
	if err := sess.Save(ctx, path); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	r.logger.Info("run finished", "session_id", sess.ID(), "resume", resume,
		"executed", report.Result.Executed(), "success", report.Result.Succeeded())
	return report, nil
}
