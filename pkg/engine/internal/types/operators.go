package types

import "fmt"

// UnaryOpKind denotes the kind of unary operation to perform.
type UnaryOpKind int

// Recognized values of [UnaryOpKind].
const (
	// UnaryOpKindInvalid indicates an invalid unary operation.
	UnaryOpKindInvalid UnaryOpKind = iota

	UnaryOpKindNot    // Logical NOT operation (!).
	UnaryOpKindIsNull // Null check.
)

var unaryOpKindStrings = map[UnaryOpKind]string{
	UnaryOpKindInvalid: "invalid",

	UnaryOpKindNot:    "NOT",
	UnaryOpKindIsNull: "IS_NULL",
}

// String returns the string representation of the UnaryOpKind.
func (k UnaryOpKind) String() string {
	if s, ok := unaryOpKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("UnaryOpKind(%d)", k)
}

// ParseUnaryOpKind returns the UnaryOpKind for its string representation.
func ParseUnaryOpKind(s string) (UnaryOpKind, error) {
	for k, v := range unaryOpKindStrings {
		if k != UnaryOpKindInvalid && v == s {
			return k, nil
		}
	}
	return UnaryOpKindInvalid, fmt.Errorf("unknown unary operation %q", s)
}

// BinOpKind denotes the kind of binary operation to perform.
type BinOpKind int

// Recognized values of [BinOpKind].
const (
	// BinOpKindInvalid indicates an invalid binary operation.
	BinOpKindInvalid BinOpKind = iota

	BinOpKindEq  // Equality comparison (==).
	BinOpKindNeq // Inequality comparison (!=).
	BinOpKindGt  // Greater than comparison (>).
	BinOpKindGte // Greater than or equal comparison (>=).
	BinOpKindLt  // Less than comparison (<).
	BinOpKindLte // Less than or equal comparison (<=).
	BinOpKindAnd // Logical AND operation (&&).
	BinOpKindOr  // Logical OR operation (||).

	BinOpKindAdd // Addition operation (+).
	BinOpKindSub // Subtraction operation (-).
	BinOpKindMul // Multiplication operation (*).
	BinOpKindDiv // Division operation (/).
	BinOpKindMod // Modulo operation (%).

	BinOpKindMatchStr    // String matching operation.
	BinOpKindNotMatchStr // String non-matching operation.
	BinOpKindMatchRe     // Regular expression matching operation.
	BinOpKindNotMatchRe  // Regular expression non-matching operation.
)

var binOpKindStrings = map[BinOpKind]string{
	BinOpKindInvalid: "invalid",

	BinOpKindEq:  "EQ",
	BinOpKindNeq: "NEQ",
	BinOpKindGt:  "GT",
	BinOpKindGte: "GTE",
	BinOpKindLt:  "LT",
	BinOpKindLte: "LTE",
	BinOpKindAnd: "AND",
	BinOpKindOr:  "OR",

	BinOpKindAdd: "ADD",
	BinOpKindSub: "SUB",
	BinOpKindMul: "MUL",
	BinOpKindDiv: "DIV",
	BinOpKindMod: "MOD",

	BinOpKindMatchStr:    "MATCH_STR",
	BinOpKindNotMatchStr: "NOT_MATCH_STR",
	BinOpKindMatchRe:     "MATCH_RE",
	BinOpKindNotMatchRe:  "NOT_MATCH_RE",
}

// String returns a human-readable representation of the binary operation kind.
func (k BinOpKind) String() string {
	if s, ok := binOpKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("BinOpKind(%d)", k)
}

// ParseBinOpKind returns the BinOpKind for its string representation.
func ParseBinOpKind(s string) (BinOpKind, error) {
	for k, v := range binOpKindStrings {
		if k != BinOpKindInvalid && v == s {
			return k, nil
		}
	}
	return BinOpKindInvalid, fmt.Errorf("unknown binary operation %q", s)
}

// IsComparison reports whether k compares its operands.
func (k BinOpKind) IsComparison() bool {
	switch k {
	case BinOpKindEq, BinOpKindNeq, BinOpKindGt, BinOpKindGte, BinOpKindLt, BinOpKindLte:
		return true
	}
	return false
}

// IsLogical reports whether k combines boolean operands.
func (k BinOpKind) IsLogical() bool {
	return k == BinOpKindAnd || k == BinOpKindOr
}

// IsArithmetic reports whether k is a numeric operation.
func (k BinOpKind) IsArithmetic() bool {
	switch k {
	case BinOpKindAdd, BinOpKindSub, BinOpKindMul, BinOpKindDiv, BinOpKindMod:
		return true
	}
	return false
}
