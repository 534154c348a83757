// Package pipeline sequences a full plan-generation run: intake
// normalization, metabolic targets, recipe generation raced against a
// cache warmer, the compliance gate and repair loop, nutrition
// compilation, quality scoring, and rendering. The orchestrator never
// panics and never returns a raw provider error to its caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nutriplan/internal/compile"
	"nutriplan/internal/compliance"
	"nutriplan/internal/intake"
	"nutriplan/internal/metrics"
	"nutriplan/internal/plan"
	"nutriplan/internal/qa"
	"nutriplan/internal/render"
	"nutriplan/internal/shared"
	"nutriplan/internal/storage"
)

// Status is the state carried by a progress event.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage indices of the progress stream. Index 0 is reserved for
// pipeline-level failures that cannot be attributed to a stage.
const (
	stageIndexPipeline = 0
	stageIndexProfile  = 1
	stageIndexTargets  = 2
	stageIndexGenerate = 3
	stageIndexCompile  = 4
	stageIndexQuality  = 5
	stageIndexRender   = 6
)

const (
	stageProfile  = "profile"
	stageTargets  = "targets"
	stageGenerate = "generation"
	stageCompile  = "compilation"
	stageQuality  = "quality"
	stageRender   = "rendering"
)

const defaultRepairRetries = 2

// Progress is one event of the append-only progress stream.
type Progress struct {
	Status     Status `json:"status"`
	StageIndex int    `json:"stage_index"`
	StageName  string `json:"stage_name"`
	Message    string `json:"message"`
	SubStep    string `json:"sub_step,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProgressFunc consumes progress events. It may be nil.
type ProgressFunc func(Progress)

// Result is the structured outcome of a run. Error is already sanitized;
// the unsanitized error only appears in logs.
type Result struct {
	Success      bool
	RunID        string
	Intake       *intake.ClientIntake
	Profile      *intake.MetabolicProfile
	Plan         *compile.CompiledPlan
	Report       qa.Report
	Deliverables *render.Deliverables
	Violations   []compliance.Violation
	Error        string
}

// Generator is the slice of the recipe-generation agent the pipeline
// needs.
type Generator interface {
	Generate(ctx context.Context, ci *intake.ClientIntake, mp *intake.MetabolicProfile) (*plan.MealPlanDraft, []shared.AgentMeta)
	RepairViolations(ctx context.Context, draft *plan.MealPlanDraft, violations []compliance.Violation, ci *intake.ClientIntake, maxRetries int) (*plan.MealPlanDraft, []compliance.Violation, []shared.AgentMeta)
}

// PlanCompiler totals a draft against the metabolic targets.
type PlanCompiler interface {
	Compile(ctx context.Context, draft *plan.MealPlanDraft, mp *intake.MetabolicProfile) *compile.CompiledPlan
}

// DeliverableRenderer produces the client-facing artifacts.
type DeliverableRenderer interface {
	Render(ci *intake.ClientIntake, cp *compile.CompiledPlan, report qa.Report) (*render.Deliverables, error)
}

// Pipeline is the orchestrator. Construct with New; zero value is not
// usable.
type Pipeline struct {
	gen      Generator
	compiler PlanCompiler
	renderer DeliverableRenderer
	targets  intake.TargetsCalculator
	warmer   *CacheWarmer
	store    *storage.DraftStore
	metrics  *metrics.Store
	logger   *zap.Logger

	profileTimeout    time.Duration
	generationTimeout time.Duration
	renderTimeout     time.Duration
	repairRetries     int
}

// Option tweaks Pipeline construction.
type Option func(*Pipeline)

// WithTargetsCalculator replaces the default Mifflin-St Jeor calculator.
func WithTargetsCalculator(tc intake.TargetsCalculator) Option {
	return func(p *Pipeline) { p.targets = tc }
}

// WithCacheWarmer enables the generation-stage cache warmer.
func WithCacheWarmer(w *CacheWarmer) Option {
	return func(p *Pipeline) { p.warmer = w }
}

// WithDraftStore enables persistence of finished plans and the fast path.
func WithDraftStore(s *storage.DraftStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithMetrics enables recording of agent usage and stage timings.
func WithMetrics(m *metrics.Store) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStageTimeouts sets per-stage deadlines. Zero disables a deadline.
func WithStageTimeouts(profile, generation, renderT time.Duration) Option {
	return func(p *Pipeline) {
		p.profileTimeout = profile
		p.generationTimeout = generation
		p.renderTimeout = renderT
	}
}

// WithRepairRetries bounds the compliance repair loop.
func WithRepairRetries(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.repairRetries = n
		}
	}
}

func New(gen Generator, compiler PlanCompiler, renderer DeliverableRenderer, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		gen:           gen,
		compiler:      compiler,
		renderer:      renderer,
		targets:       intake.MifflinCalculator{},
		logger:        logger,
		repairRetries: defaultRepairRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one full generation run. It always returns a Result; any
// panic or error is converted into a failed Result with a sanitized
// message.
func (p *Pipeline) Run(ctx context.Context, clientID string, form intake.RawIntakeForm, progress ProgressFunc) (res *Result) {
	runID := newRunID(clientID)
	res = &Result{RunID: runID}
	log := p.logger.With(zap.String("run_id", runID), zap.String("client_id", clientID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline panicked", zap.Any("panic", rec), zap.Stack("stack"))
			res = p.fail(progress, &Result{RunID: runID}, stageIndexPipeline, "pipeline",
				fmt.Errorf("internal error during plan generation"))
		}
	}()

	// Stage 1: profile and targets.
	ci, err := p.profileStage(ctx, runID, clientID, form, progress)
	if err != nil {
		log.Warn("profile stage failed", zap.Error(err))
		return p.fail(progress, res, stageIndexProfile, stageProfile, err)
	}
	res.Intake = ci

	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexTargets, StageName: stageTargets,
		Message: "computing metabolic targets"})
	mp := p.targets.Targets(ci)
	res.Profile = mp

	// Stage 2: generation raced with the cache warmer, then the
	// compliance gate and nutrition compilation.
	draft, residual, err := p.generationStage(ctx, runID, ci, mp, progress)
	if err != nil {
		log.Warn("generation stage failed", zap.Error(err))
		return p.fail(progress, res, stageIndexGenerate, stageGenerate, err)
	}
	res.Violations = residual

	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexCompile, StageName: stageCompile,
		Message: "compiling nutrition totals"})
	compileStart := time.Now()
	cp := p.compiler.Compile(ctx, draft, mp)
	res.Plan = cp
	p.recordStage(ctx, runID, stageCompile, time.Since(compileStart), true)

	// Stage 3: quality gate and rendering.
	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexQuality, StageName: stageQuality,
		Message: "scoring plan quality"})
	res.Report = qa.Score(cp, residual)

	if err := p.renderStage(ctx, runID, ci, res, progress); err != nil {
		log.Warn("render stage failed", zap.Error(err))
		return p.fail(progress, res, stageIndexRender, stageRender, err)
	}

	p.persist(log, clientID, cp)

	res.Success = true
	p.emit(progress, Progress{Status: StatusCompleted, StageIndex: stageIndexRender, StageName: stageRender,
		Message: "plan ready"})
	log.Info("pipeline completed",
		zap.String("verdict", string(res.Report.Verdict)),
		zap.Int("residual_violations", len(residual)))
	return res
}

// RunFastPath re-renders the client's stored plan with fresh targets. It
// skips recipe generation entirely and never emits a generation-stage
// event; constraints are still re-checked and the plan re-compiled,
// re-scored, and re-rendered.
func (p *Pipeline) RunFastPath(ctx context.Context, clientID string, form intake.RawIntakeForm, progress ProgressFunc) (res *Result) {
	runID := newRunID(clientID)
	res = &Result{RunID: runID}
	log := p.logger.With(zap.String("run_id", runID), zap.String("client_id", clientID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline panicked", zap.Any("panic", rec), zap.Stack("stack"))
			res = p.fail(progress, &Result{RunID: runID}, stageIndexPipeline, "pipeline",
				fmt.Errorf("internal error during plan generation"))
		}
	}()

	if p.store == nil {
		return p.fail(progress, res, stageIndexPipeline, "pipeline",
			errors.New("fast path unavailable: no draft store configured"))
	}
	stored, err := p.store.LoadLatest(clientID)
	if err != nil {
		return p.fail(progress, res, stageIndexPipeline, "pipeline", err)
	}

	ci, err := p.profileStage(ctx, runID, clientID, form, progress)
	if err != nil {
		log.Warn("profile stage failed", zap.Error(err))
		return p.fail(progress, res, stageIndexProfile, stageProfile, err)
	}
	res.Intake = ci

	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexTargets, StageName: stageTargets,
		Message: "computing metabolic targets"})
	mp := p.targets.Targets(ci)
	res.Profile = mp

	// Constraint gate on the stored draft; the stored plan may predate a
	// newly declared allergy.
	draft := stored.Plan.Draft
	residual := compliance.Scan(draft, ci)
	if len(residual) > 0 && p.gen != nil {
		var metas []shared.AgentMeta
		draft, residual, metas = p.gen.RepairViolations(ctx, draft, residual, ci, p.repairRetries)
		p.recordMetas(ctx, metas)
	}
	res.Violations = residual

	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexCompile, StageName: stageCompile,
		Message: "recompiling stored plan"})
	cp := p.compiler.Compile(ctx, draft, mp)
	res.Plan = cp

	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexQuality, StageName: stageQuality,
		Message: "scoring plan quality"})
	res.Report = qa.Score(cp, residual)

	if err := p.renderStage(ctx, runID, ci, res, progress); err != nil {
		log.Warn("render stage failed", zap.Error(err))
		return p.fail(progress, res, stageIndexRender, stageRender, err)
	}

	p.persist(log, clientID, cp)

	res.Success = true
	p.emit(progress, Progress{Status: StatusCompleted, StageIndex: stageIndexRender, StageName: stageRender,
		Message: "plan ready"})
	return res
}

func (p *Pipeline) profileStage(ctx context.Context, runID, clientID string, form intake.RawIntakeForm, progress ProgressFunc) (*intake.ClientIntake, error) {
	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexProfile, StageName: stageProfile,
		Message: "validating intake"})

	var ci *intake.ClientIntake
	err := p.runStage(ctx, runID, stageProfile, p.profileTimeout, func(sctx context.Context) error {
		normalized, err := intake.Normalize(clientID, form)
		if err != nil {
			return err
		}
		if err := intake.CheckCompatibility(normalized); err != nil {
			return err
		}
		ci = normalized
		return nil
	})
	return ci, err
}

func (p *Pipeline) generationStage(ctx context.Context, runID string, ci *intake.ClientIntake, mp *intake.MetabolicProfile, progress ProgressFunc) (*plan.MealPlanDraft, []compliance.Violation, error) {
	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexGenerate, StageName: stageGenerate,
		Message: "generating meal plan"})

	var draft *plan.MealPlanDraft
	var residual []compliance.Violation
	err := p.runStage(ctx, runID, stageGenerate, p.generationTimeout, func(sctx context.Context) error {
		if p.warmer != nil {
			// Fire-and-forget: cancelled the moment generation resolves,
			// never joined.
			wctx, wcancel := context.WithCancel(sctx)
			defer wcancel()
			go p.warmer.Warm(wctx, ci)
		}

		d, metas := p.gen.Generate(sctx, ci, mp)
		p.recordMetas(ctx, metas)
		if sctx.Err() != nil {
			return sctx.Err()
		}

		violations := compliance.Scan(d, ci)
		if len(violations) > 0 {
			p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexGenerate, StageName: stageGenerate,
				Message: "repairing constraint violations", SubStep: "repair"})
			var repairMetas []shared.AgentMeta
			d, violations, repairMetas = p.gen.RepairViolations(sctx, d, violations, ci, p.repairRetries)
			p.recordMetas(ctx, repairMetas)
			if sctx.Err() != nil {
				return sctx.Err()
			}
		}

		draft = d
		residual = violations
		return nil
	})
	return draft, residual, err
}

func (p *Pipeline) renderStage(ctx context.Context, runID string, ci *intake.ClientIntake, res *Result, progress ProgressFunc) error {
	p.emit(progress, Progress{Status: StatusRunning, StageIndex: stageIndexRender, StageName: stageRender,
		Message: "rendering deliverables"})

	return p.runStage(ctx, runID, stageRender, p.renderTimeout, func(sctx context.Context) error {
		deliverables, err := p.renderer.Render(ci, res.Plan, res.Report)
		if err != nil {
			return err
		}
		if sctx.Err() != nil {
			return sctx.Err()
		}
		res.Deliverables = deliverables
		return nil
	})
}

// runStage runs fn under an optional deadline and records its timing. A
// deadline expiry surfaces as an error naming the stage and the
// configured duration.
func (p *Pipeline) runStage(ctx context.Context, runID, name string, timeout time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	sctx := ctx
	cancel := func() {}
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	err := fn(sctx)
	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) && timeout > 0 {
		err = fmt.Errorf("stage %q timed out after %s", name, timeout)
	}
	p.recordStage(ctx, runID, name, time.Since(start), err == nil)
	return err
}

func (p *Pipeline) persist(log *zap.Logger, clientID string, cp *compile.CompiledPlan) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(clientID, cp); err != nil {
		// Persistence is best effort; the run already succeeded.
		log.Warn("saving plan for fast path failed", zap.Error(err))
	}
}

func (p *Pipeline) recordMetas(ctx context.Context, metas []shared.AgentMeta) {
	if p.metrics == nil {
		return
	}
	for _, m := range metas {
		if err := p.metrics.RecordMeta(ctx, m); err != nil {
			p.logger.Warn("recording agent metric failed", zap.Error(err))
		}
	}
}

func (p *Pipeline) recordStage(ctx context.Context, runID, name string, d time.Duration, ok bool) {
	if p.metrics == nil {
		return
	}
	err := p.metrics.RecordStage(ctx, metrics.StageTiming{
		RunID: runID, StageName: name, Duration: d, OK: ok,
	})
	if err != nil {
		p.logger.Warn("recording stage timing failed", zap.Error(err))
	}
}

func (p *Pipeline) fail(progress ProgressFunc, res *Result, stageIndex int, stageName string, err error) *Result {
	res.Success = false
	res.Error = sanitizeError(err)
	p.emit(progress, Progress{Status: StatusFailed, StageIndex: stageIndex, StageName: stageName, Error: res.Error})
	return res
}

func (p *Pipeline) emit(progress ProgressFunc, ev Progress) {
	if progress != nil {
		progress(ev)
	}
}

func newRunID(clientID string) string {
	return fmt.Sprintf("%s-%d", clientID, time.Now().UnixNano())
}
