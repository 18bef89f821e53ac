package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// NewProjectStream returns a stream keeping the fields of input matched by
// one of the patterns of proj, in input order.
func NewProjectStream(proj *logical.Project, input RowStream) *GenericStream {
	return newMappingStream(input, func(h *rows.Header) ([]int, error) {
		return projectIndices(h, proj.Columns)
	})
}

// NewReorderStream returns a stream rearranging the fields of input in the
// order of the patterns of reorder.
func NewReorderStream(reorder *logical.Reorder, input RowStream) *GenericStream {
	return newMappingStream(input, func(h *rows.Header) ([]int, error) {
		return reorderIndices(h, reorder.Columns)
	})
}

// newMappingStream returns a stream whose rows consist of the values of the
// input rows at the positions returned by mapping.
func newMappingStream(input RowStream, mapping func(*rows.Header) ([]int, error)) *GenericStream {
	var (
		header  *rows.Header
		indices []int
	)

	headerFn := func() (*rows.Header, error) {
		in, err := input.Header()
		if err != nil {
			return nil, err
		}
		indices, err = mapping(in)
		if err != nil {
			return nil, err
		}
		fields := make([]rows.Field, len(indices))
		for i, idx := range indices {
			fields[i] = in.Field(idx)
		}
		header, err = rows.NewHeader(fields...)
		return header, err
	}

	return newGenericStream(headerFn, func(ctx context.Context, inputs []RowStream) (rows.Row, bool, error) {
		row, ok, err := fetch(ctx, inputs[0])
		if err != nil || !ok {
			return rows.Row{}, false, err
		}
		values := make([]any, len(indices))
		for i, idx := range indices {
			values[i] = row.Value(idx)
		}
		out, err := rows.NewRow(header, values...)
		return out, err == nil, err
	}, input)
}

// matchPattern reports whether field f is selected by pattern. Patterns are
// compared against the qualified and the bare field name; a trailing "*"
// matches any suffix.
func matchPattern(pattern string, f rows.Field) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(f.QualifiedName(), prefix) || strings.HasPrefix(f.Name, prefix)
	}
	return f.QualifiedName() == pattern || f.Name == pattern
}

func projectIndices(h *rows.Header, patterns []string) ([]int, error) {
	var indices []int
	for i, f := range h.Fields() {
		for _, p := range patterns {
			if matchPattern(p, f) {
				indices = append(indices, i)
				break
			}
		}
	}
	if len(indices) == 0 && len(patterns) > 0 {
		return nil, fmt.Errorf("%w: no field of %s matches %v", errors.ErrKey, h, patterns)
	}
	return indices, nil
}

func reorderIndices(h *rows.Header, patterns []string) ([]int, error) {
	var (
		indices []int
		seen    = make(map[int]struct{}, h.Len())
	)
	for _, p := range patterns {
		for i, f := range h.Fields() {
			if _, ok := seen[i]; ok || !matchPattern(p, f) {
				continue
			}
			seen[i] = struct{}{}
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 && len(patterns) > 0 {
		return nil, fmt.Errorf("%w: no field of %s matches %v", errors.ErrKey, h, patterns)
	}
	return indices, nil
}
