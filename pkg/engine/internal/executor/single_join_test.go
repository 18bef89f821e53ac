package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

var (
	headerA = rows.MustNewHeader(
		rows.Field{Name: "id", Type: types.ValueTypeInt, Prefix: "a"},
		rows.Field{Name: "name", Type: types.ValueTypeStr, Prefix: "a"},
	)
	headerB = rows.MustNewHeader(
		rows.Field{Name: "id", Type: types.ValueTypeInt, Prefix: "b"},
		rows.Field{Name: "score", Type: types.ValueTypeFloat, Prefix: "b"},
	)

	joinOnID = expr.Binary(types.BinOpKindEq, expr.Column("a.id"), expr.Column("b.id"))
)

func rowsA(ids ...int64) []rows.Row {
	res := make([]rows.Row, len(ids))
	for i, id := range ids {
		res[i] = rows.MustNewRow(headerA, id, fmt.Sprintf("a%d", i+1))
	}
	return res
}

func rowsB(ids ...int64) []rows.Row {
	res := make([]rows.Row, len(ids))
	for i, id := range ids {
		res[i] = rows.MustNewRow(headerB, id, float64(i+1))
	}
	return res
}

// pullCountingStream counts the pulls and closes made by its consumer.
type pullCountingStream struct {
	RowStream

	nexts  int
	closed int
}

func newCountingStream(header *rows.Header, rs []rows.Row) *pullCountingStream {
	return &pullCountingStream{RowStream: NewBufferedStream(header, rs...)}
}

func (s *pullCountingStream) Next(ctx context.Context) (rows.Row, error) {
	s.nexts++
	return s.RowStream.Next(ctx)
}

func (s *pullCountingStream) Close() {
	s.closed++
	s.RowStream.Close()
}

func newTestJoin(filter expr.Expression, left, right RowStream) *SingleJoinStream {
	join := logical.NewSingleJoin(logical.FragmentSource(logical.Fragment{ID: "A", Prefix: "a"}),
		logical.FragmentSource(logical.Fragment{ID: "B", Prefix: "b"}), filter, "a", "b")
	return NewSingleJoinStream(join, left, right)
}

func TestSingleJoinStream_Header(t *testing.T) {
	j := newTestJoin(joinOnID, NewBufferedStream(headerA), NewBufferedStream(headerB))
	defer j.Close()

	h, err := j.Header()
	require.NoError(t, err)
	require.Equal(t, "[a.id:int, a.name:string, b.id:int, b.score:float]", h.String())

	again, err := j.Header()
	require.NoError(t, err)
	require.Same(t, h, again)
}

func TestSingleJoinStream_HeaderError(t *testing.T) {
	j := newTestJoin(joinOnID, NewBufferedStream(headerA), NewBufferedStream(nil))
	defer j.Close()

	_, err := j.Header()
	require.ErrorIs(t, err, errors.ErrIllegalState)

	_, err = j.HasNext(t.Context())
	require.ErrorIs(t, err, errors.ErrIllegalState)
}

func TestSingleJoinStream_Examples(t *testing.T) {
	t.Run("one match and one padded row", func(t *testing.T) {
		// Only (a1, b1) satisfies the filter.
		a := rowsA(1, 2)
		b := rowsB(1, 3)
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, a...), NewBufferedStream(headerB, b...))
		defer j.Close()

		res, err := Collect(t.Context(), j)
		require.NoError(t, err)
		require.Len(t, res, 2)
		require.Equal(t, []any{int64(1), "a1", int64(1), float64(1)}, res[0].Values())
		require.Equal(t, []any{int64(2), "a2", nil, nil}, res[1].Values())
	})

	t.Run("ambiguous match emits no row", func(t *testing.T) {
		a := rowsA(1)
		b := rowsB(1, 1)
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, a...), NewBufferedStream(headerB, b...))
		defer j.Close()

		ok, err := j.HasNext(t.Context())
		require.ErrorIs(t, err, errors.ErrAmbiguousMatch)
		require.False(t, ok)

		// The error is sticky.
		_, err = j.HasNext(t.Context())
		require.ErrorIs(t, err, errors.ErrAmbiguousMatch)
		_, err = j.Next(t.Context())
		require.ErrorIs(t, err, errors.ErrAmbiguousMatch)
	})

	t.Run("ambiguous match fails before the first joined row", func(t *testing.T) {
		// a1 matches both right rows. The error surfaces on the first pull,
		// before (a1, b1) could be returned.
		a := rowsA(1, 2)
		b := rowsB(1, 1)
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, a...), NewBufferedStream(headerB, b...))
		defer j.Close()

		var emitted []rows.Row
		for {
			ok, err := j.HasNext(t.Context())
			if err != nil {
				require.ErrorIs(t, err, errors.ErrAmbiguousMatch)
				break
			}
			require.True(t, ok, "stream ended without reporting the ambiguous match")
			row, err := j.Next(t.Context())
			require.NoError(t, err)
			emitted = append(emitted, row)
		}
		require.Empty(t, emitted)
	})
}

func TestSingleJoinStream_Order(t *testing.T) {
	j := newTestJoin(joinOnID,
		NewBufferedStream(headerA, rowsA(1, 2, 3, 4)...),
		NewBufferedStream(headerB, rowsB(4, 2)...),
	)
	defer j.Close()

	res, err := Collect(t.Context(), j)
	require.NoError(t, err)

	var got []string
	for _, r := range res {
		got = append(got, r.String())
	}
	require.Equal(t, []string{
		"(2, a2, 2, 2)",
		"(4, a4, 4, 1)",
		"(1, a1, null, null)",
		"(3, a3, null, null)",
	}, got)
}

func TestSingleJoinStream_EmptyInputs(t *testing.T) {
	t.Run("empty left", func(t *testing.T) {
		right := newCountingStream(headerB, rowsB(1, 2))
		j := newTestJoin(joinOnID, NewBufferedStream(headerA), right)
		defer j.Close()

		res, err := Collect(t.Context(), j)
		require.NoError(t, err)
		require.Empty(t, res)
		require.Zero(t, right.nexts)
	})

	t.Run("empty right", func(t *testing.T) {
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, rowsA(1, 2)...), NewBufferedStream(headerB))
		defer j.Close()

		res, err := Collect(t.Context(), j)
		require.NoError(t, err)
		require.Len(t, res, 2)
		for i, r := range res {
			require.Equal(t, []any{int64(i + 1), fmt.Sprintf("a%d", i+1), nil, nil}, r.Values())
		}
	})

	t.Run("nil filter matches every pair", func(t *testing.T) {
		j := newTestJoin(nil, NewBufferedStream(headerA, rowsA(1, 2)...), NewBufferedStream(headerB, rowsB(7)...))
		defer j.Close()

		res, err := Collect(t.Context(), j)
		require.NoError(t, err)
		require.Len(t, res, 2)
		require.Equal(t, []any{int64(2), "a2", int64(7), float64(1)}, res[1].Values())
	})
}

func TestSingleJoinStream_HasNextIsIdempotent(t *testing.T) {
	newJoin := func() *SingleJoinStream {
		return newTestJoin(joinOnID,
			NewBufferedStream(headerA, rowsA(1, 2, 3)...),
			NewBufferedStream(headerB, rowsB(3, 1)...),
		)
	}

	expect, err := Collect(t.Context(), newJoin())
	require.NoError(t, err)

	j := newJoin()
	defer j.Close()

	var got []rows.Row
	for {
		ok, err := j.HasNext(t.Context())
		require.NoError(t, err)
		for range 3 {
			again, err := j.HasNext(t.Context())
			require.NoError(t, err)
			require.Equal(t, ok, again)
		}
		if !ok {
			break
		}
		row, err := j.Next(t.Context())
		require.NoError(t, err)
		got = append(got, row)
	}
	require.Equal(t, expect, got)
}

func TestSingleJoinStream_IllegalState(t *testing.T) {
	t.Run("next without has next", func(t *testing.T) {
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, rowsA(1)...), NewBufferedStream(headerB, rowsB(1)...))
		defer j.Close()

		_, err := j.Next(t.Context())
		require.ErrorIs(t, err, errors.ErrIllegalState)

		// The misuse does not break the stream.
		res, err := Collect(t.Context(), j)
		require.NoError(t, err)
		require.Len(t, res, 1)
	})

	t.Run("next after exhaustion", func(t *testing.T) {
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, rowsA(1)...), NewBufferedStream(headerB))
		defer j.Close()

		_, err := Collect(t.Context(), j)
		require.NoError(t, err)

		ok, err := j.HasNext(t.Context())
		require.NoError(t, err)
		require.False(t, ok)

		_, err = j.Next(t.Context())
		require.ErrorIs(t, err, errors.ErrIllegalState)
	})

	t.Run("second next", func(t *testing.T) {
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, rowsA(1, 2)...), NewBufferedStream(headerB))
		defer j.Close()

		ok, err := j.HasNext(t.Context())
		require.NoError(t, err)
		require.True(t, ok)
		_, err = j.Next(t.Context())
		require.NoError(t, err)
		_, err = j.Next(t.Context())
		require.ErrorIs(t, err, errors.ErrIllegalState)
	})
}

func TestSingleJoinStream_RightIsPulledOnce(t *testing.T) {
	right := newCountingStream(headerB, rowsB(5, 1, 6, 2, 7))
	j := newTestJoin(joinOnID, NewBufferedStream(headerA, rowsA(1, 2, 3, 4)...), right)
	defer j.Close()

	res, err := Collect(t.Context(), j)
	require.NoError(t, err)
	require.Len(t, res, 4)
	require.Equal(t, 5, right.nexts)
}

func TestSingleJoinStream_Close(t *testing.T) {
	left := newCountingStream(headerA, rowsA(1, 2, 3))
	right := newCountingStream(headerB, rowsB(1, 2, 3))
	j := newTestJoin(joinOnID, left, right)

	ok, err := j.HasNext(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	j.Close()
	j.Close()
	require.Equal(t, 1, left.closed)
	require.Equal(t, 1, right.closed)

	ok, err = j.HasNext(t.Context())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSingleJoinStream_PropagatesChildErrors(t *testing.T) {
	errRight := fmt.Errorf("%w: right side", errors.ErrNotImplemented)

	t.Run("right pull", func(t *testing.T) {
		right := &failingStream{header: headerB, err: errRight}
		j := newTestJoin(joinOnID, NewBufferedStream(headerA, rowsA(1)...), right)
		defer j.Close()

		_, err := j.HasNext(t.Context())
		require.Equal(t, errRight, err)
	})

	t.Run("filter evaluation", func(t *testing.T) {
		filter := expr.Binary(types.BinOpKindEq, expr.Column("a.id"), expr.Column("b.missing"))
		j := newTestJoin(filter, NewBufferedStream(headerA, rowsA(1)...), NewBufferedStream(headerB, rowsB(1)...))
		defer j.Close()

		_, err := j.HasNext(t.Context())
		require.ErrorIs(t, err, errors.ErrKey)
	})

	t.Run("padding a nested join", func(t *testing.T) {
		headerC := rows.MustNewHeader(rows.Field{Name: "id", Type: types.ValueTypeInt, Prefix: "c"})
		inner := newTestJoin(joinOnID, NewBufferedStream(headerA, rowsA(1)...), NewBufferedStream(headerB, rowsB(1)...))

		outer := logical.NewSingleJoin(logical.FragmentSource(logical.Fragment{ID: "A", Prefix: "a"}),
			logical.FragmentSource(logical.Fragment{ID: "C", Prefix: "c"}),
			expr.Binary(types.BinOpKindEq, expr.Column("a.id"), expr.Column("c.id")), "a", "c")
		j := NewSingleJoinStream(outer, inner, NewBufferedStream(headerC))
		defer j.Close()

		res, err := Collect(t.Context(), j)
		require.NoError(t, err)
		require.Len(t, res, 1)
		require.Equal(t, []any{int64(1), "a1", int64(1), float64(1), nil}, res[0].Values())
	})
}

// failingStream has a header but fails on every pull.
type failingStream struct {
	header *rows.Header
	err    error
}

func (s *failingStream) Header() (*rows.Header, error) { return s.header, nil }
func (s *failingStream) HasNext(context.Context) (bool, error) { return false, s.err }
func (s *failingStream) Next(context.Context) (rows.Row, error) { return rows.Row{}, s.err }
func (s *failingStream) Close() {}

// TestSingleJoinStream_Properties checks the join against a brute force
// evaluation for all left and right id sequences of up to three rows.
func TestSingleJoinStream_Properties(t *testing.T) {
	var sequences [][]int64
	var gen func(prefix []int64)
	gen = func(prefix []int64) {
		sequences = append(sequences, append([]int64(nil), prefix...))
		if len(prefix) == 3 {
			return
		}
		for _, v := range []int64{1, 2, 3} {
			gen(append(prefix, v))
		}
	}
	gen(nil)

	for _, aIDs := range sequences {
		for _, bIDs := range sequences {
			t.Run(fmt.Sprintf("A=%v/B=%v", aIDs, bIDs), func(t *testing.T) {
				a, b := rowsA(aIDs...), rowsB(bIDs...)
				right := newCountingStream(headerB, b)
				j := newTestJoin(joinOnID, NewBufferedStream(headerA, a...), right)
				defer j.Close()

				var (
					matched, padded []rows.Row
					ambiguous       bool
				)
				header, err := j.Header()
				require.NoError(t, err)
				for _, ar := range a {
					var partners []rows.Row
					for _, br := range b {
						if ar.Value(0) == br.Value(0) {
							partners = append(partners, br)
						}
					}
					switch len(partners) {
					case 0:
						padded = append(padded, rows.MustNewRow(header, append(ar.Values(), nil, nil)...))
					case 1:
						matched = append(matched, rows.MustNewRow(header, append(ar.Values(), partners[0].Values()...)...))
					default:
						ambiguous = true
					}
				}

				res, err := Collect(t.Context(), j)
				require.LessOrEqual(t, right.nexts, len(b))
				if ambiguous {
					require.ErrorIs(t, err, errors.ErrAmbiguousMatch)
					return
				}
				require.NoError(t, err)
				require.Equal(t, append(matched, padded...), res)
				if len(a) > 0 {
					require.Equal(t, len(b), right.nexts)
				}
			})
		}
	}
}
