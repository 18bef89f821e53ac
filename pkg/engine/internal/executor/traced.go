package executor

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/codes"

	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

type tracedStream struct {
	name  string
	inner RowStream
}

var _ RowStream = (*tracedStream)(nil)

// traceStream wraps a [RowStream] to record each call to HasNext with a span.
func traceStream(name string, stream RowStream) *tracedStream {
	return &tracedStream{
		name:  name,
		inner: stream,
	}
}

func (s *tracedStream) Header() (*rows.Header, error) { return s.inner.Header() }

func (s *tracedStream) HasNext(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, s.name+".HasNext")
	defer span.End()

	ok, err := s.inner.HasNext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return ok, err
}

func (s *tracedStream) Next(ctx context.Context) (rows.Row, error) { return s.inner.Next(ctx) }

func (s *tracedStream) Close() { s.inner.Close() }

// Metrics holds the metrics of executed streams.
type Metrics struct {
	rowsEmitted *prometheus.CounterVec
}

// NewMetrics creates and registers the executor metrics with reg. A nil reg
// creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		rowsEmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "polystore_engine_executor_rows_emitted_total",
			Help: "Total number of rows emitted by operator streams, by operator kind",
		}, []string{"operator"}),
	}
}

type countingStream struct {
	inner   RowStream
	counter prometheus.Counter
}

var _ RowStream = (*countingStream)(nil)

// countStream wraps a [RowStream] to count the rows returned by Next.
func countStream(m *Metrics, operator string, stream RowStream) RowStream {
	if m == nil {
		return stream
	}
	return &countingStream{
		inner:   stream,
		counter: m.rowsEmitted.WithLabelValues(operator),
	}
}

func (s *countingStream) Header() (*rows.Header, error) { return s.inner.Header() }

func (s *countingStream) HasNext(ctx context.Context) (bool, error) { return s.inner.HasNext(ctx) }

func (s *countingStream) Next(ctx context.Context) (rows.Row, error) {
	row, err := s.inner.Next(ctx)
	if err == nil {
		s.counter.Inc()
	}
	return row, err
}

func (s *countingStream) Close() { s.inner.Close() }
