package engine

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	internal_errors "github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/executor"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/planner/optimizer"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

var (
	// ErrPlanningFailed is returned when a plan is invalid or cannot be
	// optimized.
	ErrPlanningFailed = errors.New("query planning failed")

	// ErrExecutionFailed is returned when a stream of the plan fails. The
	// cause is wrapped and can be inspected with [errors.Is].
	ErrExecutionFailed = errors.New("query execution failed")

	// ErrAmbiguousMatch is wrapped by [ErrExecutionFailed] when a single
	// join finds more than one matching row for an outer row.
	ErrAmbiguousMatch = internal_errors.ErrAmbiguousMatch
)

var tracer = otel.Tracer("pkg/engine")

type (
	// Plan is a logical operator tree.
	Plan = logical.Plan
	// Storage resolves the fragments of a plan into rows.
	Storage = executor.Storage
	// Header describes the fields of result rows.
	Header = rows.Header
	// Row is a single result row.
	Row = rows.Row
	// OptimizeResult describes the rule applications of a call to
	// [Engine.Optimize].
	OptimizeResult = optimizer.Result
)

// Config configures the engine.
type Config struct {
	Optimizer optimizer.Config `yaml:"optimizer"`
}

// RegisterFlags registers the flags of the engine.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("", f)
}

func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	cfg.Optimizer.RegisterFlagsWithPrefix(prefix, f)
}

// Params holds parameters for constructing a new [Engine].
type Params struct {
	Logger     log.Logger            // Logger for optional log messages.
	Registerer prometheus.Registerer // Registerer for optional metrics.

	Config  Config  // Config for the Engine.
	Storage Storage // Storage to read fragments from.
}

// validate validates p and applies defaults.
func (p *Params) validate() error {
	if p.Logger == nil {
		p.Logger = log.NewNopLogger()
	}
	if p.Registerer == nil {
		p.Registerer = prometheus.NewRegistry()
	}
	if p.Storage == nil {
		return errors.New("storage is required")
	}
	if p.Config.Optimizer.MaxIterations == 0 {
		p.Config.Optimizer.MaxIterations = 64
	}
	return nil
}

// Engine optimizes and executes logical plans.
type Engine struct {
	logger          log.Logger
	metrics         *metrics
	executorMetrics *executor.Metrics

	optimizer *optimizer.Optimizer
	storage   Storage
}

// New creates a new Engine.
func New(params Params) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	opt, err := optimizer.New(params.Config.Optimizer, optimizer.DefaultRules(), params.Logger, params.Registerer)
	if err != nil {
		return nil, fmt.Errorf("creating optimizer: %w", err)
	}

	return &Engine{
		logger:          params.Logger,
		metrics:         newMetrics(params.Registerer),
		executorMetrics: executor.NewMetrics(params.Registerer),

		optimizer: opt,
		storage:   params.Storage,
	}, nil
}

// Result is the outcome of a call to [Engine.Execute].
type Result struct {
	Header *Header
	Rows   []Row

	// Optimization describes how the plan was rewritten before execution.
	Optimization OptimizeResult
}

// Optimize rewrites plan in place with the rules of the engine.
func (e *Engine) Optimize(ctx context.Context, plan *Plan) (OptimizeResult, error) {
	_, span := tracer.Start(ctx, "Engine.Optimize")
	defer span.End()

	if plan == nil {
		span.SetStatus(codes.Error, "plan is nil")
		return OptimizeResult{}, fmt.Errorf("%w: plan is nil", ErrPlanningFailed)
	}

	timer := prometheus.NewTimer(e.metrics.optimization)
	res, err := e.optimizer.Optimize(plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to optimize plan")
		return res, fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}
	duration := timer.ObserveDuration()

	span.AddEvent("finished optimization",
		trace.WithAttributes(
			attribute.Int("applications", len(res.Applications)),
			attribute.Bool("converged", res.Converged),
			attribute.Stringer("duration", duration),
		),
	)
	return res, nil
}

// Execute optimizes plan in place and returns all rows it produces.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.Execute")
	defer span.End()

	startTime := time.Now()
	logger := log.With(e.logger, "engine", "polystore")
	level.Info(logger).Log("msg", "starting query", "nodes", planSize(plan))

	if plan == nil {
		e.metrics.queries.WithLabelValues(statusFailure).Inc()
		span.SetStatus(codes.Error, "plan is nil")
		return Result{}, fmt.Errorf("%w: plan is nil", ErrPlanningFailed)
	}

	opt, err := e.Optimize(ctx, plan)
	if err != nil {
		level.Warn(logger).Log("msg", "failed to optimize plan", "err", err)
		e.metrics.queries.WithLabelValues(statusFailure).Inc()
		span.SetStatus(codes.Error, "failed to optimize plan")
		return Result{}, err
	}
	level.Info(logger).Log(
		"msg", "finished optimization",
		"applications", len(opt.Applications),
		"converged", opt.Converged,
	)
	level.Debug(logger).Log("msg", "optimized plan", "plan", logical.PrintAsTree(plan))

	header, rs, duration, err := e.collectResult(ctx, logger, plan)
	if err != nil {
		level.Error(logger).Log("msg", "failed to execute query", "err", err)
		e.metrics.queries.WithLabelValues(statusFailure).Inc()
		span.SetStatus(codes.Error, "error during query execution")
		return Result{}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	e.metrics.queries.WithLabelValues(statusSuccess).Inc()
	level.Info(logger).Log(
		"msg", "finished query",
		"rows", len(rs),
		"duration_execution", duration.String(),
		"duration_full", time.Since(startTime).String(),
	)
	return Result{Header: header, Rows: rs, Optimization: opt}, nil
}

// collectResult runs plan and drains its root stream.
func (e *Engine) collectResult(ctx context.Context, logger log.Logger, plan *Plan) (*Header, []Row, time.Duration, error) {
	timer := prometheus.NewTimer(e.metrics.execution)

	stream := executor.Run(ctx, executor.Config{
		Storage: e.storage,
		Metrics: e.executorMetrics,
		Logger:  logger,
	}, plan)
	defer stream.Close()

	header, err := stream.Header()
	if err != nil {
		return nil, nil, 0, err
	}
	rs, err := executor.Collect(ctx, stream)
	if err != nil {
		return nil, nil, 0, err
	}

	duration := timer.ObserveDuration()
	e.metrics.rows.Observe(float64(len(rs)))
	return header, rs, duration, nil
}

func planSize(plan *Plan) int {
	if plan == nil {
		return 0
	}
	return plan.Len()
}

// PrintPlan renders plan as an indented tree, one operator per line.
func PrintPlan(plan *Plan) string {
	return logical.PrintAsTree(plan)
}
