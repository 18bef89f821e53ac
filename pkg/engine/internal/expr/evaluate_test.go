package expr

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

func testRow(t *testing.T) rows.Row {
	t.Helper()
	h := rows.MustNewHeader(
		rows.Field{Name: "id", Type: types.ValueTypeInt, Prefix: "a"},
		rows.Field{Name: "score", Type: types.ValueTypeFloat, Prefix: "a"},
		rows.Field{Name: "name", Type: types.ValueTypeStr, Prefix: "a"},
		rows.Field{Name: "ts", Type: types.ValueTypeTimestamp, Prefix: "a"},
		rows.Field{Name: "id", Type: types.ValueTypeInt, Prefix: "b"},
		rows.Field{Name: "flag", Type: types.ValueTypeBool, Prefix: "b"},
	)
	return rows.MustNewRow(h, int64(1), 2.5, "alice", time.Unix(100, 0), nil, true)
}

func TestValidate(t *testing.T) {
	row := testRow(t)

	tests := []struct {
		name string
		expr Expression
		want bool
	}{
		{name: "nil filter", expr: nil, want: true},
		{name: "eq int", expr: Binary(types.BinOpKindEq, Column("a.id"), NewLiteral(1)), want: true},
		{name: "int float promotion", expr: Binary(types.BinOpKindLt, Column("a.id"), Column("a.score")), want: true},
		{name: "null comparison", expr: Binary(types.BinOpKindEq, Column("b.id"), NewLiteral(1)), want: false},
		{name: "is null", expr: &UnaryExpr{Op: types.UnaryOpKindIsNull, Left: Column("b.id")}, want: true},
		{name: "not", expr: &UnaryExpr{Op: types.UnaryOpKindNot, Left: Column("b.flag")}, want: false},
		{name: "string gte", expr: Binary(types.BinOpKindGte, Column("name"), NewLiteral("alice")), want: true},
		{name: "timestamp", expr: Binary(types.BinOpKindGt, Column("ts"), NewLiteral(time.Unix(50, 0))), want: true},
		{name: "contains", expr: Binary(types.BinOpKindMatchStr, Column("name"), NewLiteral("lic")), want: true},
		{name: "not contains", expr: Binary(types.BinOpKindNotMatchStr, Column("name"), NewLiteral("bob")), want: true},
		{name: "regex", expr: Binary(types.BinOpKindMatchRe, Column("name"), NewLiteral("^a.*e$")), want: true},
		{name: "not regex", expr: Binary(types.BinOpKindNotMatchRe, Column("name"), NewLiteral("^b")), want: true},
		{name: "arithmetic", expr: Binary(types.BinOpKindEq, Binary(types.BinOpKindAdd, Column("a.id"), NewLiteral(2)), NewLiteral(3)), want: true},
		{name: "and with null is null", expr: And(Binary(types.BinOpKindEq, Column("b.id"), NewLiteral(1)), NewLiteral(true)), want: false},
		{name: "or with null and true", expr: Binary(types.BinOpKindOr, Binary(types.BinOpKindEq, Column("b.id"), NewLiteral(1)), NewLiteral(true)), want: true},
		{name: "and short circuit", expr: Binary(types.BinOpKindAnd, NewLiteral(false), Column("missing")), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.expr, row)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	row := testRow(t)

	tests := []struct {
		name    string
		expr    Expression
		wantErr error
	}{
		{name: "unknown column", expr: Binary(types.BinOpKindEq, Column("c.id"), NewLiteral(1)), wantErr: errors.ErrKey},
		{name: "ambiguous column", expr: Binary(types.BinOpKindEq, Column("id"), NewLiteral(1)), wantErr: errors.ErrKey},
		{name: "non-boolean result", expr: Column("a.id"), wantErr: errors.ErrType},
		{name: "incomparable", expr: Binary(types.BinOpKindEq, Column("a.id"), NewLiteral("1")), wantErr: errors.ErrType},
		{name: "invalid regex", expr: Binary(types.BinOpKindMatchRe, Column("name"), NewLiteral("(")), wantErr: errors.ErrType},
		{name: "not on int", expr: &UnaryExpr{Op: types.UnaryOpKindNot, Left: Column("a.id")}, wantErr: errors.ErrType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.expr, row)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEvaluate_Arithmetic(t *testing.T) {
	row := testRow(t)

	v, err := Evaluate(Binary(types.BinOpKindMul, Column("a.score"), NewLiteral(2)), row)
	require.NoError(t, err)
	require.Equal(t, 5.0, v)

	v, err = Evaluate(Binary(types.BinOpKindDiv, Column("a.id"), NewLiteral(0)), row)
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = Evaluate(Binary(types.BinOpKindMod, NewLiteral(7), NewLiteral(4)), row)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)
}

func TestEvaluate_NaN(t *testing.T) {
	row := testRow(t)
	nan := NewLiteral(math.NaN())

	tt := []struct {
		name  string
		expr  Expression
		value bool
	}{
		{name: "float equals NaN", expr: Binary(types.BinOpKindEq, Column("a.score"), nan), value: false},
		{name: "int equals NaN", expr: Binary(types.BinOpKindEq, Column("a.id"), nan), value: false},
		{name: "float differs from NaN", expr: Binary(types.BinOpKindNeq, Column("a.score"), nan), value: true},
		{name: "NaN equals NaN", expr: Binary(types.BinOpKindEq, nan, nan), value: true},
		{name: "NaN orders first", expr: Binary(types.BinOpKindLt, nan, Column("a.score")), value: true},
		{name: "number above NaN", expr: Binary(types.BinOpKindGt, Column("a.id"), nan), value: true},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Evaluate(tc.expr, row)
			require.NoError(t, err)
			require.Equal(t, tc.value, v)
		})
	}

	order, err := Compare(math.NaN(), 1.0)
	require.NoError(t, err)
	require.Equal(t, -1, order)
}

func TestColumnsAndString(t *testing.T) {
	e := And(
		Binary(types.BinOpKindEq, Column("a.id"), Column("b.id")),
		&UnaryExpr{Op: types.UnaryOpKindNot, Left: Column("b.flag")},
	)
	require.Equal(t, []string{"a.id", "b.id", "b.flag"}, Columns(e))
	require.Equal(t, "AND(EQ(a.id, b.id), NOT(b.flag))", e.String())

	require.True(t, IsTrue(NewLiteral(true)))
	require.False(t, IsTrue(NewLiteral("true")))
	require.Equal(t, `"x"`, NewLiteral("x").String())
}
