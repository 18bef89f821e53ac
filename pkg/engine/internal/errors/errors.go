package errors

import "errors"

var (
	ErrIndex          = errors.New("index error")
	ErrKey            = errors.New("key error")
	ErrType           = errors.New("type error")
	ErrNotImplemented = errors.New("not implemented")

	// ErrAmbiguousMatch is returned by a single join when an outer row has
	// more than one matching inner row, i.e. the scalar subquery returned
	// more than one row.
	ErrAmbiguousMatch = errors.New("the return value of sub-query has more than one rows")

	// ErrIllegalState is returned when a row stream is used in violation of
	// its contract, such as calling Next without a row being available.
	ErrIllegalState = errors.New("illegal state")
)
