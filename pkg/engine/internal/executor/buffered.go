package executor

import (
	"context"
	"fmt"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// BufferedStream is a stream over rows held in memory.
type BufferedStream struct {
	header *rows.Header
	rows   []rows.Row
	pos    int
}

var _ RowStream = (*BufferedStream)(nil)

// NewBufferedStream creates a stream that yields rs in order. All rows must
// be bound to header.
func NewBufferedStream(header *rows.Header, rs ...rows.Row) *BufferedStream {
	return &BufferedStream{
		header: header,
		rows:   rs,
	}
}

// Header implements [RowStream].
func (s *BufferedStream) Header() (*rows.Header, error) {
	if s.header == nil {
		return nil, fmt.Errorf("%w: buffered stream without header", errors.ErrIllegalState)
	}
	return s.header, nil
}

// HasNext implements [RowStream].
func (s *BufferedStream) HasNext(_ context.Context) (bool, error) {
	return s.pos < len(s.rows), nil
}

// Next implements [RowStream].
func (s *BufferedStream) Next(_ context.Context) (rows.Row, error) {
	if s.pos >= len(s.rows) {
		return rows.Row{}, fmt.Errorf("%w: next called on exhausted stream", errors.ErrIllegalState)
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// Close implements [RowStream].
func (s *BufferedStream) Close() {
	s.rows = nil
	s.pos = 0
}
