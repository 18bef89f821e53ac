package executor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

func testStorage(t *testing.T) *MemoryStorage {
	t.Helper()
	storage := NewMemoryStorage()
	t.Cleanup(storage.Close)
	require.NoError(t, storage.PutRows("A", headerA, rowsA(1, 2, 3)...))
	require.NoError(t, storage.PutRows("B", headerB, rowsB(3, 1)...))
	return storage
}

func TestRun(t *testing.T) {
	// Project(Sort(Select(SingleJoin(A, B)))) ordered by b.score.
	plan := &logical.Plan{}
	join := plan.Add(logical.NewSingleJoin(
		logical.FragmentSource(logical.Fragment{ID: "A", Prefix: "a"}),
		logical.FragmentSource(logical.Fragment{ID: "B", Prefix: "b"}),
		joinOnID, "a", "b",
	))
	sel := plan.Add(logical.NewSelect(logical.OperatorSource(join),
		expr.Binary(types.BinOpKindNeq, expr.Column("a.name"), expr.NewLiteral("a2"))))
	sort := plan.Add(logical.NewSort(logical.OperatorSource(sel), logical.SortKey{Column: "b.score"}))
	project := plan.Add(logical.NewProject(logical.OperatorSource(sort), "a.name", "b.score"))
	require.NoError(t, plan.SetRoot(logical.OperatorSource(project)))

	reg := prometheus.NewPedanticRegistry()
	metrics := NewMetrics(reg)

	s := Run(t.Context(), Config{Storage: testStorage(t), Metrics: metrics}, plan)
	defer s.Close()

	h, err := s.Header()
	require.NoError(t, err)
	require.Equal(t, "[a.name:string, b.score:float]", h.String())

	res, err := Collect(t.Context(), s)
	require.NoError(t, err)

	var got []string
	for _, r := range res {
		got = append(got, r.String())
	}
	require.Equal(t, []string{"(a3, 1)", "(a1, 2)"}, got)

	require.Equal(t, float64(3), testutil.ToFloat64(metrics.rowsEmitted.WithLabelValues("SingleJoin")))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.rowsEmitted.WithLabelValues("Project")))
}

func TestRun_Errors(t *testing.T) {
	t.Run("nil plan", func(t *testing.T) {
		s := Run(t.Context(), Config{}, nil)
		_, err := s.HasNext(t.Context())
		require.ErrorContains(t, err, "plan is nil")
	})

	t.Run("invalid plan", func(t *testing.T) {
		s := Run(t.Context(), Config{}, &logical.Plan{})
		_, err := s.Header()
		require.Error(t, err)
	})

	t.Run("missing storage", func(t *testing.T) {
		plan := &logical.Plan{}
		require.NoError(t, plan.SetRoot(logical.FragmentSource(logical.Fragment{ID: "A"})))
		s := Run(t.Context(), Config{}, plan)
		_, err := s.HasNext(t.Context())
		require.ErrorContains(t, err, "no storage configured")
	})

	t.Run("missing fragment", func(t *testing.T) {
		plan := &logical.Plan{}
		sel := plan.Add(logical.NewSelect(logical.FragmentSource(logical.Fragment{ID: "C", Prefix: "c"}), nil))
		require.NoError(t, plan.SetRoot(logical.OperatorSource(sel)))

		s := Run(t.Context(), Config{Storage: testStorage(t)}, plan)
		defer s.Close()
		_, err := s.HasNext(t.Context())
		require.ErrorIs(t, err, errors.ErrKey)
	})

	t.Run("ambiguous subquery", func(t *testing.T) {
		storage := testStorage(t)
		require.NoError(t, storage.PutRows("B", headerB, rowsB(1, 1)...))

		plan := &logical.Plan{}
		join := plan.Add(logical.NewSingleJoin(
			logical.FragmentSource(logical.Fragment{ID: "A", Prefix: "a"}),
			logical.FragmentSource(logical.Fragment{ID: "B", Prefix: "b"}),
			joinOnID, "a", "b",
		))
		require.NoError(t, plan.SetRoot(logical.OperatorSource(join)))

		s := Run(t.Context(), Config{Storage: storage}, plan)
		defer s.Close()
		res, err := Collect(t.Context(), s)
		require.ErrorIs(t, err, errors.ErrAmbiguousMatch)
		require.Empty(t, res)
	})
}
