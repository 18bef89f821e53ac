package executor

import (
	"context"
	"fmt"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

type joinState uint8

const (
	joinUninitialized joinState = iota // Header not computed yet.
	joinMatching                       // Nested loop over A x B.
	joinPadding                        // Emitting unmatched A rows.
	joinDone
)

func (s joinState) String() string {
	switch s {
	case joinUninitialized:
		return "uninitialized"
	case joinMatching:
		return "matching"
	case joinPadding:
		return "padding"
	case joinDone:
		return "done"
	}
	return fmt.Sprintf("joinState(%d)", s)
}

// matchingPhase is the working set of the nested loop.
type matchingPhase struct {
	// cache holds the rows of B pulled so far. B is replayed from cache for
	// every A row after the first.
	cache     []rows.Row
	rightDone bool

	// unmatched holds the A rows without a partner, in discovery order.
	unmatched []rows.Row
}

// paddingPhase is the working set after A is exhausted.
type paddingPhase struct {
	rows []rows.Row
	next int
}

// SingleJoinStream joins every row of the left input with at most one row
// of the right input satisfying the join filter. Left rows without a match
// are emitted after all matched rows, padded with NULLs. A left row with more
// than one match fails the stream with [errors.ErrAmbiguousMatch].
//
// The right input is pulled once; its rows are cached and replayed for every
// further left row.
type SingleJoinStream struct {
	binaryStream

	filter expr.Expression

	state    joinState
	matching matchingPhase
	padding  paddingPhase

	pending    rows.Row
	hasPending bool
	err        error
}

var _ RowStream = (*SingleJoinStream)(nil)

// NewSingleJoinStream creates a single join of left (outer) and right
// (subquery) for the given operator.
func NewSingleJoinStream(join *logical.SingleJoin, left, right RowStream) *SingleJoinStream {
	return &SingleJoinStream{
		binaryStream: newBinaryStream(left, right, rows.JoinOptions{AllowDuplicates: true}),
		filter:       join.Filter,
	}
}

// Header implements [RowStream].
func (j *SingleJoinStream) Header() (*rows.Header, error) {
	header, err := j.binaryStream.Header()
	if err == nil && j.state == joinUninitialized {
		j.state = joinMatching
	}
	return header, err
}

// HasNext implements [RowStream].
func (j *SingleJoinStream) HasNext(ctx context.Context) (bool, error) {
	if j.err != nil {
		return false, j.err
	}
	if j.hasPending {
		return true, nil
	}

	row, ok, err := j.advance(ctx)
	if err != nil {
		j.fail(err)
		return false, err
	}
	j.pending, j.hasPending = row, ok
	return ok, nil
}

// Next implements [RowStream]. Next must be preceded by a call to HasNext
// that returned true.
func (j *SingleJoinStream) Next(_ context.Context) (rows.Row, error) {
	if j.err != nil {
		return rows.Row{}, j.err
	}
	if !j.hasPending {
		return rows.Row{}, fmt.Errorf("%w: next called without a row available (state %s)", errors.ErrIllegalState, j.state)
	}
	row := j.pending
	j.pending, j.hasPending = rows.Row{}, false
	return row, nil
}

// Close implements [RowStream].
func (j *SingleJoinStream) Close() {
	j.binaryStream.Close()
	j.release()
	j.state = joinDone
}

func (j *SingleJoinStream) fail(err error) {
	j.err = err
	j.release()
	j.state = joinDone
}

func (j *SingleJoinStream) release() {
	j.matching = matchingPhase{}
	j.padding = paddingPhase{}
	j.pending, j.hasPending = rows.Row{}, false
}

// advance moves the state machine until it produces a row or is done.
func (j *SingleJoinStream) advance(ctx context.Context) (rows.Row, bool, error) {
	for {
		switch j.state {
		case joinUninitialized:
			if _, err := j.Header(); err != nil {
				return rows.Row{}, false, err
			}

		case joinMatching:
			row, ok, err := j.match(ctx)
			if err != nil || ok {
				return row, ok, err
			}
			if err := j.startPadding(); err != nil {
				return rows.Row{}, false, err
			}

		case joinPadding:
			if j.padding.next < len(j.padding.rows) {
				row := j.padding.rows[j.padding.next]
				j.padding.next++
				return row, true, nil
			}
			j.release()
			j.state = joinDone

		case joinDone:
			return rows.Row{}, false, nil
		}
	}
}

// match pulls left rows until one of them has exactly one partner. Left rows
// without a partner are buffered. ok is false once the left input is
// exhausted.
//
// Every left row is checked against all right rows before its joined row is
// returned, so an ambiguous match fails before anything is emitted for it.
func (j *SingleJoinStream) match(ctx context.Context) (rows.Row, bool, error) {
	for {
		a, ok, err := j.fetchLeft(ctx)
		if err != nil || !ok {
			return rows.Row{}, false, err
		}

		var (
			matched  rows.Row
			hasMatch bool
		)
		for cursor := 0; ; cursor++ {
			b, ok, err := j.rightAt(ctx, cursor)
			if err != nil {
				return rows.Row{}, false, err
			}
			if !ok {
				break
			}

			row, err := rows.JoinRow(j.header, a, b)
			if err != nil {
				return rows.Row{}, false, err
			}
			pass, err := expr.Validate(j.filter, row)
			if err != nil {
				return rows.Row{}, false, err
			}
			if !pass {
				continue
			}
			if hasMatch {
				return rows.Row{}, false, fmt.Errorf("%w: outer row %s", errors.ErrAmbiguousMatch, a)
			}
			matched, hasMatch = row, true
		}

		if hasMatch {
			return matched, true, nil
		}
		j.matching.unmatched = append(j.matching.unmatched, a)
	}
}

// rightAt returns the right row at position i, pulling it from the right
// input and appending it to the cache if it was not read yet.
func (j *SingleJoinStream) rightAt(ctx context.Context, i int) (rows.Row, bool, error) {
	if i < len(j.matching.cache) {
		return j.matching.cache[i], true, nil
	}
	if j.matching.rightDone {
		return rows.Row{}, false, nil
	}

	b, ok, err := j.fetchRight(ctx)
	if err != nil {
		return rows.Row{}, false, err
	}
	if !ok {
		j.matching.rightDone = true
		return rows.Row{}, false, nil
	}
	j.matching.cache = append(j.matching.cache, b)
	return b, true, nil
}

// startPadding builds the padded rows for all unmatched left rows and
// switches to the padding phase.
func (j *SingleJoinStream) startPadding() error {
	padded := make([]rows.Row, 0, len(j.matching.unmatched))
	for _, a := range j.matching.unmatched {
		row, err := rows.UnmatchedRow(j.header, a, j.rightHeader.Len())
		if err != nil {
			return err
		}
		padded = append(padded, row)
	}

	j.matching = matchingPhase{}
	j.padding = paddingPhase{rows: padded}
	j.state = joinPadding
	return nil
}
