package executor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// RowStream is a forward-only, single-pass cursor over rows sharing one
// header. Streams are not safe for concurrent use.
type RowStream interface {
	// Header returns the header of all rows of the stream. The header is
	// computed on the first call and cached.
	Header() (*rows.Header, error)
	// HasNext reports whether another row is available. HasNext may pull
	// from inputs, but never advances past the row it reports; repeated
	// calls without Next in between return the same result.
	HasNext(ctx context.Context) (bool, error)
	// Next returns the next row and advances the stream. It fails with
	// [errors.ErrIllegalState] if no row is available.
	Next(ctx context.Context) (rows.Row, error)
	// Close releases the resources of the stream, including its inputs.
	// Close is idempotent.
	Close()
}

type headerFunc func() (*rows.Header, error)

// fetchFunc produces the next row of a stream. ok is false once the stream
// is exhausted.
type fetchFunc func(ctx context.Context, inputs []RowStream) (row rows.Row, ok bool, err error)

// GenericStream implements the peeking and error bookkeeping shared by
// simple streams. The actual work is done by a fetch function that is only
// invoked when no row is pending.
type GenericStream struct {
	inputs []RowStream
	header headerFunc
	fetch  fetchFunc

	headerDone bool
	hdr        *rows.Header
	hdrErr     error

	pending    rows.Row
	hasPending bool
	exhausted  bool
	err        error
	closed     bool
}

var _ RowStream = (*GenericStream)(nil)

func newGenericStream(header headerFunc, fetch fetchFunc, inputs ...RowStream) *GenericStream {
	return &GenericStream{
		inputs: inputs,
		header: header,
		fetch:  fetch,
	}
}

// Header implements [RowStream].
func (s *GenericStream) Header() (*rows.Header, error) {
	if !s.headerDone {
		s.hdr, s.hdrErr = s.header()
		s.headerDone = true
	}
	return s.hdr, s.hdrErr
}

// HasNext implements [RowStream].
func (s *GenericStream) HasNext(ctx context.Context) (bool, error) {
	switch {
	case s.err != nil:
		return false, s.err
	case s.hasPending:
		return true, nil
	case s.exhausted || s.closed:
		return false, nil
	}

	if _, err := s.Header(); err != nil {
		s.err = err
		return false, err
	}

	row, ok, err := s.fetch(ctx, s.inputs)
	if err != nil {
		s.err = err
		return false, err
	}
	if !ok {
		s.exhausted = true
		return false, nil
	}
	s.pending, s.hasPending = row, true
	return true, nil
}

// Next implements [RowStream].
func (s *GenericStream) Next(ctx context.Context) (rows.Row, error) {
	ok, err := s.HasNext(ctx)
	if err != nil {
		return rows.Row{}, err
	}
	if !ok {
		return rows.Row{}, fmt.Errorf("%w: next called on exhausted stream", errors.ErrIllegalState)
	}
	row := s.pending
	s.pending, s.hasPending = rows.Row{}, false
	return row, nil
}

// Close implements [RowStream].
func (s *GenericStream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.pending, s.hasPending = rows.Row{}, false
	for _, input := range s.inputs {
		input.Close()
	}
}

func errorStream(ctx context.Context, err error) RowStream {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	err = fmt.Errorf("failed to execute stream: %w", err)
	return newGenericStream(
		func() (*rows.Header, error) { return nil, err },
		func(context.Context, []RowStream) (rows.Row, bool, error) { return rows.Row{}, false, err },
	)
}

func emptyStream(header *rows.Header) RowStream {
	return newGenericStream(
		func() (*rows.Header, error) { return header, nil },
		func(context.Context, []RowStream) (rows.Row, bool, error) { return rows.Row{}, false, nil },
	)
}

// Collect drains s and returns all of its rows. Collect does not close s.
func Collect(ctx context.Context, s RowStream) ([]rows.Row, error) {
	var res []rows.Row
	for {
		ok, err := s.HasNext(ctx)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, nil
		}
		row, err := s.Next(ctx)
		if err != nil {
			return res, err
		}
		res = append(res, row)
	}
}
