package expr

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/grafana/regexp"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

const regexCacheSize = 256

// regexCache holds compiled patterns of MATCH_RE expressions. Filters are
// evaluated once per candidate row, so the same pattern is compiled many
// times otherwise.
var regexCache = func() *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](regexCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}()

// Validate evaluates the predicate filter on row. A nil filter accepts every
// row and a NULL result rejects the row. Non-boolean results fail with
// [errors.ErrType].
func Validate(filter Expression, row rows.Row) (bool, error) {
	if filter == nil {
		return true, nil
	}
	v, err := Evaluate(filter, row)
	if err != nil {
		return false, err
	}
	switch v := v.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("%w: predicate %s returned %s", errors.ErrType, filter, types.TypeOf(v))
	}
}

// Evaluate computes the value of e for row. NULL is returned as nil.
func Evaluate(e Expression, row rows.Row) (any, error) {
	switch e := e.(type) {
	case *LiteralExpr:
		return e.Value, nil
	case *ColumnExpr:
		return row.ValueOf(e.Ref)
	case *UnaryExpr:
		return evalUnary(e, row)
	case *BinaryExpr:
		return evalBinary(e, row)
	case nil:
		return nil, fmt.Errorf("%w: nil expression", errors.ErrType)
	default:
		return nil, fmt.Errorf("%w: expression %T", errors.ErrNotImplemented, e)
	}
}

func evalUnary(e *UnaryExpr, row rows.Row) (any, error) {
	v, err := Evaluate(e.Left, row)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case types.UnaryOpKindIsNull:
		return v == nil, nil
	case types.UnaryOpKindNot:
		switch v := v.(type) {
		case nil:
			return nil, nil
		case bool:
			return !v, nil
		}
		return nil, fmt.Errorf("%w: %s on %s", errors.ErrType, e.Op, types.TypeOf(v))
	}
	return nil, fmt.Errorf("%w: unary operation %s", errors.ErrNotImplemented, e.Op)
}

func evalBinary(e *BinaryExpr, row rows.Row) (any, error) {
	left, err := Evaluate(e.Left, row)
	if err != nil {
		return nil, err
	}

	// AND/OR short-circuit on a decided left side.
	if e.Op.IsLogical() {
		lb, err := asBool(e.Op, left)
		if err != nil {
			return nil, err
		}
		if lb != nil && *lb == (e.Op == types.BinOpKindOr) {
			return *lb, nil
		}
		right, err := Evaluate(e.Right, row)
		if err != nil {
			return nil, err
		}
		rb, err := asBool(e.Op, right)
		if err != nil {
			return nil, err
		}
		return logical(e.Op, lb, rb), nil
	}

	right, err := Evaluate(e.Right, row)
	if err != nil {
		return nil, err
	}
	if left == nil || right == nil {
		return nil, nil
	}

	switch {
	case e.Op.IsComparison():
		order, err := compare(left, right)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e, err)
		}
		return compareResult(e.Op, order), nil
	case e.Op.IsArithmetic():
		return arithmetic(e.Op, left, right)
	}

	switch e.Op {
	case types.BinOpKindMatchStr, types.BinOpKindNotMatchStr:
		ls, rs, err := asStrings(e.Op, left, right)
		if err != nil {
			return nil, err
		}
		return strings.Contains(ls, rs) == (e.Op == types.BinOpKindMatchStr), nil
	case types.BinOpKindMatchRe, types.BinOpKindNotMatchRe:
		ls, rs, err := asStrings(e.Op, left, right)
		if err != nil {
			return nil, err
		}
		re, err := compileRegex(rs)
		if err != nil {
			return nil, err
		}
		return re.MatchString(ls) == (e.Op == types.BinOpKindMatchRe), nil
	}
	return nil, fmt.Errorf("%w: binary operation %s", errors.ErrNotImplemented, e.Op)
}

func asBool(op types.BinOpKind, v any) (*bool, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &v, nil
	}
	return nil, fmt.Errorf("%w: %s on %s", errors.ErrType, op, types.TypeOf(v))
}

// logical implements three-valued AND/OR. At least one of the operands is
// undecided or both operands did not short-circuit.
func logical(op types.BinOpKind, l, r *bool) any {
	if op == types.BinOpKindAnd {
		if (l != nil && !*l) || (r != nil && !*r) {
			return false
		}
		if l == nil || r == nil {
			return nil
		}
		return true
	}
	if (l != nil && *l) || (r != nil && *r) {
		return true
	}
	if l == nil || r == nil {
		return nil
	}
	return false
}

func asStrings(op types.BinOpKind, l, r any) (string, string, error) {
	ls, lok := l.(string)
	rs, rok := r.(string)
	if !lok || !rok {
		return "", "", fmt.Errorf("%w: %s on %s and %s", errors.ErrType, op, types.TypeOf(l), types.TypeOf(r))
	}
	return ls, rs, nil
}

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid regular expression %q: %w", errors.ErrType, pattern, err)
	}
	regexCache.Add(pattern, re)
	return re, nil
}

// Compare orders two non-null values of a row. It returns -1, 0 or 1.
// Integers and floats compare numerically; values of other types must be of
// the same type.
func Compare(l, r any) (int, error) {
	return compare(l, r)
}

// compare returns -1, 0 or 1. Integers and floats compare numerically. NaN
// equals only NaN and orders before every other number.
func compare(l, r any) (int, error) {
	if lf, lok := asFloat(l); lok {
		if rf, rok := asFloat(r); rok {
			if li, ok := l.(int64); ok {
				if ri, ok := r.(int64); ok {
					return cmp.Compare(li, ri), nil
				}
			}
			return cmp.Compare(lf, rf), nil
		}
	}

	switch lv := l.(type) {
	case string:
		if rv, ok := r.(string); ok {
			return strings.Compare(lv, rv), nil
		}
	case bool:
		if rv, ok := r.(bool); ok {
			switch {
			case lv == rv:
				return 0, nil
			case !lv:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case time.Time:
		if rv, ok := r.(time.Time); ok {
			return lv.Compare(rv), nil
		}
	case []byte:
		if rv, ok := r.([]byte); ok {
			return bytes.Compare(lv, rv), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %s with %s", errors.ErrType, types.TypeOf(l), types.TypeOf(r))
}

func compareResult(op types.BinOpKind, order int) bool {
	switch op {
	case types.BinOpKindEq:
		return order == 0
	case types.BinOpKindNeq:
		return order != 0
	case types.BinOpKindGt:
		return order > 0
	case types.BinOpKindGte:
		return order >= 0
	case types.BinOpKindLt:
		return order < 0
	case types.BinOpKindLte:
		return order <= 0
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func arithmetic(op types.BinOpKind, l, r any) (any, error) {
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		switch op {
		case types.BinOpKindAdd:
			return li + ri, nil
		case types.BinOpKindSub:
			return li - ri, nil
		case types.BinOpKindMul:
			return li * ri, nil
		case types.BinOpKindDiv, types.BinOpKindMod:
			if ri == 0 {
				return nil, nil
			}
			if op == types.BinOpKindDiv {
				return li / ri, nil
			}
			return li % ri, nil
		}
	}

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %s on %s and %s", errors.ErrType, op, types.TypeOf(l), types.TypeOf(r))
	}
	switch op {
	case types.BinOpKindAdd:
		return lf + rf, nil
	case types.BinOpKindSub:
		return lf - rf, nil
	case types.BinOpKindMul:
		return lf * rf, nil
	case types.BinOpKindDiv:
		return lf / rf, nil
	case types.BinOpKindMod:
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("%w: arithmetic operation %s", errors.ErrNotImplemented, op)
}
