package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
)

var tracer = otel.Tracer("pkg/engine/internal/executor")

type Config struct {
	Storage Storage
	Metrics *Metrics
	Logger  log.Logger
}

// Run instantiates the stream graph of plan. Errors during instantiation
// are reported by the returned stream.
func Run(ctx context.Context, cfg Config, plan *logical.Plan) RowStream {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := &Context{
		plan:    plan,
		storage: cfg.Storage,
		metrics: cfg.Metrics,
		logger:  logger,
	}
	if plan == nil {
		return errorStream(ctx, errors.New("plan is nil"))
	}
	if err := plan.Validate(); err != nil {
		return errorStream(ctx, err)
	}
	return c.execute(ctx, plan.Root())
}

// Context is the execution context
type Context struct {
	plan    *logical.Plan
	storage Storage
	metrics *Metrics
	logger  log.Logger
}

func (c *Context) execute(ctx context.Context, src logical.Source) RowStream {
	if src.IsFragment() {
		return c.executeFragment(ctx, src.Fragment)
	}

	op := c.plan.Node(src.Node)
	if op == nil {
		return errorStream(ctx, fmt.Errorf("unknown node #%d", src.Node))
	}

	sources := op.Sources()
	inputs := make([]RowStream, 0, len(sources))
	for _, child := range sources {
		inputs = append(inputs, c.execute(ctx, child))
	}

	var stream RowStream
	switch n := op.(type) {
	case *logical.Select:
		stream = NewSelectStream(n, inputs[0])
	case *logical.Project:
		stream = NewProjectStream(n, inputs[0])
	case *logical.Reorder:
		stream = NewReorderStream(n, inputs[0])
	case *logical.Sort:
		stream = NewSortStream(n, inputs[0])
	case *logical.SingleJoin:
		stream = NewSingleJoinStream(n, inputs[0], inputs[1])
	default:
		for _, input := range inputs {
			input.Close()
		}
		return errorStream(ctx, fmt.Errorf("invalid operator type: %T", op))
	}

	name := op.Kind().String()
	return countStream(c.metrics, name, traceStream("logical."+name, stream))
}

func (c *Context) executeFragment(ctx context.Context, f logical.Fragment) RowStream {
	ctx, span := tracer.Start(ctx, "Context.executeFragment", trace.WithAttributes(
		attribute.String("fragment", f.ID),
		attribute.String("prefix", f.Prefix),
	))
	defer span.End()

	if c.storage == nil {
		return errorStream(ctx, errors.New("no storage configured"))
	}

	stream, err := c.storage.Open(ctx, f)
	if err != nil {
		level.Warn(c.logger).Log("msg", "failed to open fragment", "fragment", f.ID, "err", err)
		return errorStream(ctx, fmt.Errorf("opening fragment %s: %w", f.ID, err))
	}
	return traceStream("logical.Fragment", stream)
}
