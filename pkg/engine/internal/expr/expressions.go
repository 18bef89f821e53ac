// Package expr holds the predicate expressions attached to plan operators and
// evaluates them against rows.
package expr

import (
	"fmt"
	"strconv"
	"time"

	"github.com/polystore/polystore/pkg/engine/internal/types"
)

// ExpressionType represents the type of expression.
type ExpressionType uint32

const (
	// ExprTypeInvalid indicates an invalid expression type.
	ExprTypeInvalid ExpressionType = iota

	ExprTypeUnary   // Represents a unary operation (e.g., NOT).
	ExprTypeBinary  // Represents a binary operation (e.g., a.x == b.y).
	ExprTypeLiteral // Represents a constant value.
	ExprTypeColumn  // Represents a reference to a column of a row.
)

// String returns the string representation of the [ExpressionType].
func (t ExpressionType) String() string {
	switch t {
	case ExprTypeUnary:
		return "UnaryExpression"
	case ExprTypeBinary:
		return "BinaryExpression"
	case ExprTypeLiteral:
		return "LiteralExpression"
	case ExprTypeColumn:
		return "ColumnExpression"
	default:
		return "InvalidExpression"
	}
}

// Expression is the common interface for all expressions.
type Expression interface {
	fmt.Stringer
	Type() ExpressionType
	isExpr()
}

// UnaryExpr is an expression that applies an operation to a single input.
type UnaryExpr struct {
	Left Expression
	Op   types.UnaryOpKind
}

func (*UnaryExpr) isExpr() {}

// Type returns ExprTypeUnary.
func (*UnaryExpr) Type() ExpressionType { return ExprTypeUnary }

func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.Left)
}

// BinaryExpr is an expression that applies an operation to two inputs.
type BinaryExpr struct {
	Left, Right Expression
	Op          types.BinOpKind
}

func (*BinaryExpr) isExpr() {}

// Type returns ExprTypeBinary.
func (*BinaryExpr) Type() ExpressionType { return ExprTypeBinary }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s(%s, %s)", e.Op, e.Left, e.Right)
}

// LiteralExpr is a constant value. Value must be a valid row value (see
// [types.TypeOf]).
type LiteralExpr struct {
	Value any
}

// NewLiteral creates a literal expression. Go integer and float types are
// normalised to int64 and float64.
func NewLiteral(v any) *LiteralExpr {
	switch v := v.(type) {
	case int:
		return &LiteralExpr{Value: int64(v)}
	case int32:
		return &LiteralExpr{Value: int64(v)}
	case float32:
		return &LiteralExpr{Value: float64(v)}
	}
	return &LiteralExpr{Value: v}
}

func (*LiteralExpr) isExpr() {}

// Type returns ExprTypeLiteral.
func (*LiteralExpr) Type() ExpressionType { return ExprTypeLiteral }

func (e *LiteralExpr) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("0x%x", v)
	default:
		return fmt.Sprint(v)
	}
}

// ColumnExpr references a field of the evaluated row by its (qualified) name.
type ColumnExpr struct {
	Ref string
}

func (*ColumnExpr) isExpr() {}

// Type returns ExprTypeColumn.
func (*ColumnExpr) Type() ExpressionType { return ExprTypeColumn }

func (e *ColumnExpr) String() string { return e.Ref }

// Column is a shorthand for creating a [ColumnExpr].
func Column(ref string) *ColumnExpr { return &ColumnExpr{Ref: ref} }

// Binary is a shorthand for creating a [BinaryExpr].
func Binary(op types.BinOpKind, left, right Expression) *BinaryExpr {
	return &BinaryExpr{Left: left, Right: right, Op: op}
}

// And combines two predicates. A nil operand is treated as always true.
func And(left, right Expression) Expression {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return Binary(types.BinOpKindAnd, left, right)
}

// Columns returns the column references of e in depth-first order.
func Columns(e Expression) []string {
	var refs []string
	var walk func(Expression)
	walk = func(e Expression) {
		switch e := e.(type) {
		case *ColumnExpr:
			refs = append(refs, e.Ref)
		case *UnaryExpr:
			walk(e.Left)
		case *BinaryExpr:
			walk(e.Left)
			walk(e.Right)
		}
	}
	walk(e)
	return refs
}

// IsTrue reports whether e is the literal true.
func IsTrue(e Expression) bool {
	lit, ok := e.(*LiteralExpr)
	if !ok {
		return false
	}
	b, ok := lit.Value.(bool)
	return ok && b
}
