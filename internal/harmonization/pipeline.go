package harmonization

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/code-harmonizer/internal/intentions"
	"github.com/bizmatters/code-harmonizer/internal/llm"
	"github.com/bizmatters/code-harmonizer/internal/metrics"
)

// DefaultStepTicks is the number of progress increments per step.
const DefaultStepTicks = 5

// Pipeline runs harmonizations against an injected adapter
type Pipeline struct {
	adapter   llm.Adapter
	catalog   *intentions.Catalog
	now       func() time.Time
	stepDelay time.Duration
	stepTicks int
	metrics   *metrics.RunMetrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCatalog sets the intention catalog. Defaults to intentions.Default().
func WithCatalog(c *intentions.Catalog) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.catalog = c
		}
	}
}

// WithClock sets the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithStepTiming sets the pause per progress tick and the ticks per step.
// A zero delay makes every step jump straight to completion.
func WithStepTiming(delay time.Duration, ticks int) Option {
	return func(p *Pipeline) {
		p.stepDelay = delay
		if ticks > 0 {
			p.stepTicks = ticks
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.RunMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline that completes prompts with adapter
func NewPipeline(adapter llm.Adapter, opts ...Option) *Pipeline {
	p := &Pipeline{
		adapter:   adapter,
		catalog:   intentions.Default(),
		now:       time.Now,
		stepTicks: DefaultStepTicks,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("harmonization-pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the catalog the pipeline resolves intentions against
func (p *Pipeline) Catalog() *intentions.Catalog {
	return p.catalog
}

// Readiness evaluates the entry guard for a prospective run
func (p *Pipeline) Readiness(sourceCode string, selection []string) Readiness {
	return CheckReadiness(p.catalog, sourceCode, dedupe(selection))
}

// Steps builds the pending step sequence for selection: analyze, validate,
// one step per intention in the given order, integrate, finalize.
func (p *Pipeline) Steps(selection []string) []Step {
	selection = dedupe(selection)
	steps := make([]Step, 0, len(selection)+4)
	steps = append(steps,
		Step{ID: "analyze", Name: "Code Analysis", Description: "Parsing and understanding code structure"},
		Step{ID: "validate", Name: "Validation", Description: "Checking syntax and detecting issues"},
	)
	for _, id := range selection {
		description := "Applying transformation"
		if it, ok := p.catalog.Lookup(id); ok {
			description = "Applying " + strings.ToLower(it.StepName)
		}
		steps = append(steps, Step{
			ID:          "intention-" + id,
			Name:        p.catalog.StepName(id),
			Description: description,
		})
	}
	steps = append(steps,
		Step{ID: "integrate", Name: "Integration", Description: "Combining all transformations harmoniously"},
		Step{ID: "finalize", Name: "Finalization", Description: "Final validation and cleanup"},
	)
	for i := range steps {
		steps[i].Status = StepPending
	}
	return steps
}

// Run executes one harmonization. It returns a *NotReadyError without
// starting when the guard fails; otherwise it always completes. Cancellation
// of ctx is ignored once the run has started, and adapter failures degrade
// to the unchanged source.
func (p *Pipeline) Run(ctx context.Context, sourceCode string, selection []string, observe ProgressFunc) (Result, error) {
	selection = dedupe(selection)
	readiness := CheckReadiness(p.catalog, sourceCode, selection)
	if !readiness.Ready {
		if p.metrics != nil {
			p.metrics.RecordRunRejected(ctx, readiness.Reason)
		}
		p.logger.Info("harmonization refused", zap.String("reason", readiness.Reason))
		return Result{}, &NotReadyError{Readiness: readiness}
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := p.tracer.Start(ctx, "harmonization.run")
	defer span.End()
	span.SetAttributes(
		attribute.StringSlice("intentions", selection),
		attribute.Int("source.length", len(sourceCode)),
	)

	started := p.now()
	if p.metrics != nil {
		p.metrics.RecordRunStarted(ctx, len(selection))
	}

	steps := p.Steps(selection)
	emit := func(current int, completed int) {
		if observe == nil {
			return
		}
		observe(Progress{
			Steps:   cloneSteps(steps),
			Current: current,
			Overall: overallProgress(completed, len(steps)),
		})
	}

	emit(0, 0)
	for i := range steps {
		p.runStep(ctx, steps, i, emit)
	}

	names := make([]string, len(selection))
	for i, id := range selection {
		names[i] = p.catalog.StepName(id)
	}
	prompt := llm.BuildPrompt(sourceCode, selection, names)

	harmonized, err := p.adapter.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(harmonized) == "" {
		p.logger.Warn("adapter returned no completion, keeping source",
			zap.Error(err),
			zap.Strings("intentions", selection),
		)
		harmonized = sourceCode
	}

	transformations := make([]Transformation, len(selection))
	for i, id := range selection {
		name := p.catalog.StepName(id)
		transformations[i] = Transformation{
			Intention: id,
			Name:      name,
			Applied:   true,
			Reasoning: "Applied " + strings.ToLower(name) + " to improve code quality",
		}
	}

	result := Result{
		HarmonizedCode: harmonized,
		NoOp:           llm.IsNoOp(sourceCode, harmonized),
		Audit: AuditRecord{
			Timestamp:          FormatTimestamp(p.now()),
			OriginalCode:       sourceCode,
			SelectedIntentions: append([]string(nil), selection...),
			Steps:              cloneSteps(steps),
			Transformations:    transformations,
		},
	}
	result.Duration = p.now().Sub(started)

	span.SetAttributes(attribute.Bool("noop", result.NoOp))
	if p.metrics != nil {
		p.metrics.RecordRunCompleted(ctx, result.NoOp, result.Duration)
	}
	p.logger.Info("harmonization completed",
		zap.Strings("intentions", selection),
		zap.Int("steps", len(steps)),
		zap.Bool("noop", result.NoOp),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// runStep drives steps[i] from pending to completed, emitting a snapshot on
// every change.
func (p *Pipeline) runStep(ctx context.Context, steps []Step, i int, emit func(current, completed int)) {
	_, span := p.tracer.Start(ctx, "harmonization.step")
	defer span.End()
	span.SetAttributes(attribute.String("step.id", steps[i].ID), attribute.Int("step.index", i))

	advance(&steps[i], StepProcessing, 0)
	emit(i, i)

	if p.stepDelay > 0 {
		for tick := 1; tick <= p.stepTicks; tick++ {
			time.Sleep(p.stepDelay)
			advance(&steps[i], StepProcessing, tick*100/p.stepTicks)
			emit(i, i)
		}
	}

	advance(&steps[i], StepCompleted, 100)
	current := i
	if i == len(steps)-1 {
		current = -1
	}
	emit(current, i+1)
}

// advance moves a step forward. Status and progress never regress.
func advance(s *Step, status StepStatus, progress int) {
	if status.rank() >= s.Status.rank() {
		s.Status = status
	}
	if progress > s.Progress {
		s.Progress = progress
	}
}

func overallProgress(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// dedupe keeps the first occurrence of each id, preserving order.
func dedupe(selection []string) []string {
	if len(selection) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(selection))
	out := make([]string, 0, len(selection))
	for _, id := range selection {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
