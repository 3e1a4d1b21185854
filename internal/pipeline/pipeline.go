// Package pipeline sequences the release tasks: reset the build tree,
// fetch upstream, patch it, run the upstream build and finalize the
// artifacts. Each task can also run on its own.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"ideforge/internal/branding"
	"ideforge/internal/builder"
	"ideforge/internal/config"
	"ideforge/internal/fetch"
	"ideforge/internal/finalize"
	"ideforge/internal/logging"
)

// State is a pipeline run state.
type State string

const (
	StateReset      State = "reset"
	StateFetching   State = "fetching"
	StatePatching   State = "patching"
	StateBuilding   State = "building"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Run is the lifecycle record of one full build.
type Run struct {
	ID         uuid.UUID
	Platform   string
	Version    string
	State      State
	History    []State
	StartedAt  time.Time
	FinishedAt time.Time
	// FailedIn is the state that was active when the run failed.
	FailedIn State
	Err      error
}

// Recorder persists run transitions. Recording failures never fail a run.
type Recorder interface {
	Begin(ctx context.Context, id, platform, version, state string, at time.Time) error
	Transition(ctx context.Context, id, state string, at time.Time) error
	Finish(ctx context.Context, id, state, errMsg string, at time.Time) error
}

// Pipeline holds everything a task needs for one build configuration.
type Pipeline struct {
	cfg       *config.Config
	bc        *config.BuildConfiguration
	fetcher   fetch.Fetcher
	exec      builder.Executor
	finalizer finalize.Finalizer
	windows   *finalize.Windows
	recorder  Recorder
	rules     *branding.RuleSet
	out       io.Writer
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetcher replaces the HTTP archive fetcher.
func WithFetcher(f fetch.Fetcher) Option { return func(p *Pipeline) { p.fetcher = f } }

// WithExecutor replaces the subprocess executor used for the build script and signtool.
func WithExecutor(e builder.Executor) Option { return func(p *Pipeline) { p.exec = e } }

// WithFinalizer replaces the platform finalizer.
func WithFinalizer(f finalize.Finalizer) Option { return func(p *Pipeline) { p.finalizer = f } }

// WithRecorder records run transitions.
func WithRecorder(r Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithRules replaces the branding rule set. Rules are rendered against the
// build's branding values.
func WithRules(rs *branding.RuleSet) Option { return func(p *Pipeline) { p.rules = rs } }

// WithOutput sets where banners and subprocess output go.
func WithOutput(w io.Writer) Option { return func(p *Pipeline) { p.out = w } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New assembles a pipeline for bc.
func New(cfg *config.Config, bc *config.BuildConfiguration, opts ...Option) (*Pipeline, error) {
	if cfg == nil || bc == nil {
		return nil, fmt.Errorf("config and build configuration are required")
	}
	p := &Pipeline{cfg: cfg, bc: bc, out: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	if p.fetcher == nil {
		p.fetcher = fetch.NewHTTPFetcher(cfg.GetFetchTimeout())
	}
	if p.exec == nil {
		p.exec = builder.NewDirectExecutor(p.out)
	}

	rules := p.rules
	if rules == nil {
		var rulesPath string
		if cfg.Branding.Rules != "" {
			rulesPath = cfg.Path(bc.Workspace, cfg.Branding.Rules)
		}
		var err error
		if rules, err = branding.Load(rulesPath); err != nil {
			return nil, err
		}
	}
	rendered, err := rules.Render(bc.Branding)
	if err != nil {
		return nil, fmt.Errorf("failed to render branding rules: %w", err)
	}
	p.rules = rendered

	p.windows = finalize.NewWindows(p.exec, cfg.Windows)
	if p.finalizer == nil {
		if p.finalizer, err = finalize.For(bc.Platform, p.exec, cfg.Windows); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type step struct {
	state State
	task  string
	run   func(context.Context) error
}

// Build runs the full sequence. Failure in any step before finalize stops
// the run in StateFailed and leaves the build tree as it is. Finalize
// errors are logged and the run still completes.
func (p *Pipeline) Build(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.New(),
		Platform:  string(p.bc.Platform),
		Version:   p.bc.Version,
		StartedAt: p.now(),
	}
	timer := logging.StartTimer(logging.CategoryPipeline, "build")
	defer timer.StopWithInfo()

	logging.Pipeline("starting run %s: %s %s for %s", run.ID, p.bc.ProductName, p.bc.Version, p.bc.Platform)

	steps := []step{
		{StateReset, TaskReset, p.Reset},
		{StateFetching, TaskDownload, p.DownloadAtom},
		{StatePatching, TaskPrepBuild, p.PrepBuild},
		{StateBuilding, TaskBuildAtom, p.BuildAtom},
	}

	for i, s := range steps {
		if i == 0 {
			p.begin(run, s.state)
		} else {
			p.transition(run, s.state)
		}
		if err := ctx.Err(); err != nil {
			return p.fail(run, err)
		}
		p.banner(s.task)
		if err := s.run(ctx); err != nil {
			return p.fail(run, err)
		}
	}

	p.transition(run, StateFinalizing)
	p.banner(TaskCleanup)
	if err := p.Cleanup(ctx); err != nil {
		logging.PipelineError("cleanup: %v", err)
	}

	p.finish(run, StateDone, nil)
	return run, nil
}

func (p *Pipeline) begin(run *Run, s State) {
	run.State = s
	run.History = append(run.History, s)
	logging.PipelineDebug("run %s: %s", run.ID, s)
	p.record(func(rctx context.Context) error {
		return p.recorder.Begin(rctx, run.ID.String(), run.Platform, run.Version, string(s), run.StartedAt)
	})
}

func (p *Pipeline) transition(run *Run, s State) {
	run.State = s
	run.History = append(run.History, s)
	logging.PipelineDebug("run %s: %s", run.ID, s)
	at := p.now()
	p.record(func(rctx context.Context) error {
		return p.recorder.Transition(rctx, run.ID.String(), string(s), at)
	})
}

func (p *Pipeline) fail(run *Run, err error) (*Run, error) {
	run.FailedIn = run.State
	logging.PipelineError("run %s failed while %s: %v", run.ID, run.FailedIn, err)
	p.finish(run, StateFailed, err)
	return run, err
}

func (p *Pipeline) finish(run *Run, s State, err error) {
	run.State = s
	run.History = append(run.History, s)
	run.Err = err
	run.FinishedAt = p.now()
	var msg string
	if err != nil {
		msg = err.Error()
	}
	p.record(func(rctx context.Context) error {
		return p.recorder.Finish(rctx, run.ID.String(), string(s), msg, run.FinishedAt)
	})
	p.summary(run)
}

// record writes to the recorder on a context detached from cancellation so
// an interrupted run is still marked as failed.
func (p *Pipeline) record(fn func(context.Context) error) {
	if p.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(rctx); err != nil {
		logging.LedgerWarn("failed to record run transition: %v", err)
	}
}
