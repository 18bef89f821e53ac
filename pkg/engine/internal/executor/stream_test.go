package executor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

var fragment = logical.FragmentSource(logical.Fragment{ID: "A", Prefix: "a"})

func TestBufferedStream(t *testing.T) {
	s := NewBufferedStream(headerA, rowsA(1, 2)...)

	for range 2 {
		ok, err := s.HasNext(t.Context())
		require.NoError(t, err)
		require.True(t, ok)
		_, err = s.Next(t.Context())
		require.NoError(t, err)
	}

	ok, err := s.HasNext(t.Context())
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Next(t.Context())
	require.ErrorIs(t, err, errors.ErrIllegalState)
}

func TestErrorAndEmptyStream(t *testing.T) {
	cause := fmt.Errorf("%w: boom", errors.ErrNotImplemented)

	s := errorStream(t.Context(), cause)
	_, err := s.Header()
	require.ErrorIs(t, err, errors.ErrNotImplemented)
	_, err = s.HasNext(t.Context())
	require.ErrorIs(t, err, errors.ErrNotImplemented)
	_, err = s.Next(t.Context())
	require.ErrorIs(t, err, errors.ErrNotImplemented)

	s = emptyStream(headerA)
	h, err := s.Header()
	require.NoError(t, err)
	require.Same(t, headerA, h)
	res, err := Collect(t.Context(), s)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestSelectStream(t *testing.T) {
	tt := []struct {
		name   string
		filter expr.Expression
		expect []int64
	}{
		{
			name:   "nil filter keeps everything",
			filter: nil,
			expect: []int64{1, 2, 3, 4},
		},
		{
			name:   "comparison",
			filter: expr.Binary(types.BinOpKindGte, expr.Column("a.id"), expr.NewLiteral(3)),
			expect: []int64{3, 4},
		},
		{
			name:   "bare column name",
			filter: expr.Binary(types.BinOpKindEq, expr.Column("name"), expr.NewLiteral("a2")),
			expect: []int64{2},
		},
		{
			name:   "null drops rows",
			filter: expr.Binary(types.BinOpKindEq, expr.Column("a.id"), expr.NewLiteral(nil)),
			expect: nil,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			sel := logical.NewSelect(fragment, tc.filter)
			s := NewSelectStream(sel, NewBufferedStream(headerA, rowsA(1, 2, 3, 4)...))
			defer s.Close()

			res, err := Collect(t.Context(), s)
			require.NoError(t, err)

			var ids []int64
			for _, r := range res {
				ids = append(ids, r.Value(0).(int64))
			}
			require.Equal(t, tc.expect, ids)
		})
	}
}

func TestSelectStream_TypeError(t *testing.T) {
	sel := logical.NewSelect(fragment, expr.Column("a.id"))
	s := NewSelectStream(sel, NewBufferedStream(headerA, rowsA(1)...))
	defer s.Close()

	_, err := s.HasNext(t.Context())
	require.ErrorIs(t, err, errors.ErrType)

	// Errors are sticky.
	_, err = s.Next(t.Context())
	require.ErrorIs(t, err, errors.ErrType)
}

func TestGenericStream_Close(t *testing.T) {
	input := newCountingStream(headerA, rowsA(1, 2))
	s := NewSelectStream(logical.NewSelect(fragment, nil), input)

	ok, err := s.HasNext(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	s.Close()
	s.Close()
	require.Equal(t, 1, input.closed)

	ok, err = s.HasNext(t.Context())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProjectAndReorderStream(t *testing.T) {
	header := rows.MustNewHeader(
		rows.Field{Name: "id", Type: types.ValueTypeInt, Prefix: "a"},
		rows.Field{Name: "name", Type: types.ValueTypeStr, Prefix: "a"},
		rows.Field{Name: "id", Type: types.ValueTypeInt, Prefix: "b"},
		rows.Field{Name: "score", Type: types.ValueTypeFloat, Prefix: "b"},
	)
	input := func() RowStream {
		return NewBufferedStream(header, rows.MustNewRow(header, int64(1), "x", int64(2), 0.5))
	}

	tt := []struct {
		name         string
		stream       func() RowStream
		expectHeader string
		expectValues []any
	}{
		{
			name:         "project keeps input order",
			stream:       func() RowStream { return NewProjectStream(logical.NewProject(fragment, "b.score", "a.id"), input()) },
			expectHeader: "[a.id:int, b.score:float]",
			expectValues: []any{int64(1), 0.5},
		},
		{
			name:         "project with wildcard",
			stream:       func() RowStream { return NewProjectStream(logical.NewProject(fragment, "b.*"), input()) },
			expectHeader: "[b.id:int, b.score:float]",
			expectValues: []any{int64(2), 0.5},
		},
		{
			name:         "reorder follows pattern order",
			stream:       func() RowStream { return NewReorderStream(logical.NewReorder(fragment, "b.score", "a.*"), input()) },
			expectHeader: "[b.score:float, a.id:int, a.name:string]",
			expectValues: []any{0.5, int64(1), "x"},
		},
		{
			name:         "reorder does not repeat fields",
			stream:       func() RowStream { return NewReorderStream(logical.NewReorder(fragment, "name", "a.*"), input()) },
			expectHeader: "[a.name:string, a.id:int]",
			expectValues: []any{"x", int64(1)},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.stream()
			defer s.Close()

			h, err := s.Header()
			require.NoError(t, err)
			require.Equal(t, tc.expectHeader, h.String())

			res, err := Collect(t.Context(), s)
			require.NoError(t, err)
			require.Len(t, res, 1)
			require.Equal(t, tc.expectValues, res[0].Values())
		})
	}

	t.Run("unknown column", func(t *testing.T) {
		s := NewProjectStream(logical.NewProject(fragment, "c.id"), input())
		defer s.Close()

		_, err := s.Header()
		require.ErrorIs(t, err, errors.ErrKey)
		_, err = s.HasNext(t.Context())
		require.ErrorIs(t, err, errors.ErrKey)
	})
}

func TestSortStream(t *testing.T) {
	input := []rows.Row{
		rows.MustNewRow(headerA, int64(2), "b"),
		rows.MustNewRow(headerA, nil, "c"),
		rows.MustNewRow(headerA, int64(1), "d"),
		rows.MustNewRow(headerA, int64(2), "a"),
	}

	tt := []struct {
		name   string
		keys   []logical.SortKey
		expect []string
	}{
		{
			name:   "ascending is stable",
			keys:   []logical.SortKey{{Column: "a.id"}},
			expect: []string{"c", "d", "b", "a"},
		},
		{
			name:   "descending",
			keys:   []logical.SortKey{{Column: "a.id", Order: logical.DESC}},
			expect: []string{"b", "a", "d", "c"},
		},
		{
			name:   "multiple keys",
			keys:   []logical.SortKey{{Column: "a.id", Order: logical.DESC}, {Column: "a.name"}},
			expect: []string{"a", "b", "d", "c"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			sort := logical.NewSort(fragment, tc.keys...)
			s := NewSortStream(sort, NewBufferedStream(headerA, append([]rows.Row(nil), input...)...))
			defer s.Close()

			res, err := Collect(t.Context(), s)
			require.NoError(t, err)

			var names []string
			for _, r := range res {
				names = append(names, r.Value(1).(string))
			}
			require.Equal(t, tc.expect, names)
		})
	}

	t.Run("unknown key", func(t *testing.T) {
		sort := logical.NewSort(fragment, logical.SortKey{Column: "a.missing"})
		s := NewSortStream(sort, NewBufferedStream(headerA, input...))
		defer s.Close()

		_, err := Collect(t.Context(), s)
		require.ErrorIs(t, err, errors.ErrKey)
	})
}
