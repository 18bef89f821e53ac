package rows

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/polystore/polystore/pkg/engine/internal/datatype"
	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

// metadataKeyPrefix is the Arrow field metadata key holding a field's table prefix.
const metadataKeyPrefix = "polystore.prefix"

// Field describes a single column of a [Header].
type Field struct {
	Name   string
	Type   types.ValueType
	Prefix string // Optional owning table alias.
}

// QualifiedName returns the name of the field including its table prefix.
func (f Field) QualifiedName() string {
	if f.Prefix == "" {
		return f.Name
	}
	return f.Prefix + "." + f.Name
}

// WithPrefix returns a copy of f that belongs to the table alias prefix.
func (f Field) WithPrefix(prefix string) Field {
	f.Prefix = prefix
	return f
}

func (f Field) String() string {
	return f.QualifiedName() + ":" + f.Type.String()
}

// Header is the ordered, immutable schema of a row stream.
type Header struct {
	fields []Field
}

// NewHeader returns a header for the given fields. Qualified names must be unique.
func NewHeader(fields ...Field) (*Header, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		name := f.QualifiedName()
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: duplicate field %q", errors.ErrKey, name)
		}
		seen[name] = struct{}{}
	}
	return newHeader(fields), nil
}

// MustNewHeader is like [NewHeader] but panics on error.
func MustNewHeader(fields ...Field) *Header {
	h, err := NewHeader(fields...)
	if err != nil {
		panic(err)
	}
	return h
}

func newHeader(fields []Field) *Header {
	return &Header{fields: append([]Field(nil), fields...)}
}

// Len returns the number of fields.
func (h *Header) Len() int { return len(h.fields) }

// Field returns the field at position i.
func (h *Header) Field(i int) Field { return h.fields[i] }

// Fields returns a copy of the fields of the header.
func (h *Header) Fields() []Field { return append([]Field(nil), h.fields...) }

// IndexOf returns the position of the field referenced by name. A qualified
// name match wins; otherwise name must match exactly one unqualified field
// name.
func (h *Header) IndexOf(name string) (int, error) {
	for i, f := range h.fields {
		if f.QualifiedName() == name {
			return i, nil
		}
	}

	idx := -1
	for i, f := range h.fields {
		if f.Name != name {
			continue
		}
		if idx >= 0 {
			return -1, fmt.Errorf("%w: ambiguous field %q", errors.ErrKey, name)
		}
		idx = i
	}
	if idx < 0 {
		return -1, fmt.Errorf("%w: field %q not found", errors.ErrKey, name)
	}
	return idx, nil
}

// Equal reports whether h and other describe the same fields in the same order.
func (h *Header) Equal(other *Header) bool {
	if h == nil || other == nil {
		return h == other
	}
	if len(h.fields) != len(other.fields) {
		return false
	}
	for i := range h.fields {
		if h.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

func (h *Header) String() string {
	parts := make([]string, len(h.fields))
	for i, f := range h.fields {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Schema converts the header into an Arrow schema. Table prefixes are kept
// in the field metadata.
func (h *Header) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(h.fields))
	for i, f := range h.fields {
		var md arrow.Metadata
		if f.Prefix != "" {
			md = arrow.NewMetadata([]string{metadataKeyPrefix}, []string{f.Prefix})
		}
		fields[i] = arrow.Field{
			Name:     f.Name,
			Type:     datatype.ToArrow[f.Type],
			Nullable: true,
			Metadata: md,
		}
	}
	return arrow.NewSchema(fields, nil)
}

// HeaderFromSchema converts an Arrow schema into a header. Fields without a
// prefix in their metadata are assigned prefix.
func HeaderFromSchema(schema *arrow.Schema, prefix string) (*Header, error) {
	fields := make([]Field, 0, schema.NumFields())
	for _, af := range schema.Fields() {
		vt, err := datatype.FromArrow(af.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", errors.ErrType, af.Name, err)
		}
		fieldPrefix := prefix
		if idx := af.Metadata.FindKey(metadataKeyPrefix); idx >= 0 {
			fieldPrefix = af.Metadata.Values()[idx]
		}
		fields = append(fields, Field{Name: af.Name, Type: vt, Prefix: fieldPrefix})
	}
	return NewHeader(fields...)
}
