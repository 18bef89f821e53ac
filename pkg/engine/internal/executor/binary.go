package executor

import (
	"context"
	"fmt"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// binaryStream is embedded by streams that combine two inputs. It owns both
// inputs and computes the combined header once.
type binaryStream struct {
	left  RowStream
	right RowStream
	opts  rows.JoinOptions

	initialized bool
	header      *rows.Header
	rightHeader *rows.Header
	headerErr   error

	closed bool
}

func newBinaryStream(left, right RowStream, opts rows.JoinOptions) binaryStream {
	return binaryStream{
		left:  left,
		right: right,
		opts:  opts,
	}
}

// Header returns the header of the left input followed by the header of the
// right input.
func (b *binaryStream) Header() (*rows.Header, error) {
	if !b.initialized {
		b.header, b.headerErr = b.initHeader()
		b.initialized = true
	}
	return b.header, b.headerErr
}

func (b *binaryStream) initHeader() (*rows.Header, error) {
	left, err := b.left.Header()
	if err != nil {
		return nil, err
	}
	right, err := b.right.Header()
	if err != nil {
		return nil, err
	}

	header, err := rows.JoinHeader(left, right, b.opts)
	if err != nil {
		return nil, err
	}
	if header.Len() != left.Len()+right.Len() {
		return nil, fmt.Errorf("%w: joined header has %d fields, inputs have %d+%d", errors.ErrIndex, header.Len(), left.Len(), right.Len())
	}

	b.rightHeader = right
	return header, nil
}

// fetchLeft returns the next row of the left input. ok is false if the left
// input is exhausted.
func (b *binaryStream) fetchLeft(ctx context.Context) (row rows.Row, ok bool, err error) {
	return fetch(ctx, b.left)
}

// fetchRight returns the next row of the right input. ok is false if the
// right input is exhausted.
func (b *binaryStream) fetchRight(ctx context.Context) (row rows.Row, ok bool, err error) {
	return fetch(ctx, b.right)
}

func fetch(ctx context.Context, s RowStream) (rows.Row, bool, error) {
	ok, err := s.HasNext(ctx)
	if err != nil || !ok {
		return rows.Row{}, false, err
	}
	row, err := s.Next(ctx)
	if err != nil {
		return rows.Row{}, false, err
	}
	return row, true, nil
}

// Close closes both inputs.
func (b *binaryStream) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.left.Close()
	b.right.Close()
}
