package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/polystore/polystore/pkg/engine/internal/errors"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/rows"
)

// Storage resolves fragments into row streams.
type Storage interface {
	// Open returns a stream over the rows of fragment f. The fields of the
	// stream are qualified with the prefix of f.
	Open(ctx context.Context, f logical.Fragment) (RowStream, error)
}

type memoryFragment struct {
	schema  *arrow.Schema
	records []arrow.Record
}

// MemoryStorage is a [Storage] holding Arrow records in memory. It is safe
// for concurrent use.
type MemoryStorage struct {
	mtx       sync.RWMutex
	fragments map[string]*memoryFragment
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{fragments: make(map[string]*memoryFragment)}
}

// Put stores a fragment with the given schema and records under id,
// replacing any previous fragment with that id. The storage retains the
// records until the fragment is replaced or the storage is closed.
func (s *MemoryStorage) Put(id string, schema *arrow.Schema, records ...arrow.Record) error {
	for i, rec := range records {
		if !rec.Schema().Equal(schema) {
			return fmt.Errorf("%w: record %d of fragment %s has schema %s, expected %s", errors.ErrType, i, id, rec.Schema(), schema)
		}
	}
	for _, rec := range records {
		rec.Retain()
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if old, ok := s.fragments[id]; ok {
		old.release()
	}
	s.fragments[id] = &memoryFragment{schema: schema, records: records}
	return nil
}

// PutRows stores rs as a single record under id. All rows must be bound to
// header.
func (s *MemoryStorage) PutRows(id string, header *rows.Header, rs ...rows.Row) error {
	rec, err := NewRecord(memory.DefaultAllocator, header, rs...)
	if err != nil {
		return err
	}
	defer rec.Release()
	return s.Put(id, rec.Schema(), rec)
}

// Open implements [Storage].
func (s *MemoryStorage) Open(_ context.Context, f logical.Fragment) (RowStream, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	frag, ok := s.fragments[f.ID]
	if !ok {
		return nil, fmt.Errorf("%w: fragment %s not found", errors.ErrKey, f.ID)
	}
	if len(frag.records) == 0 {
		header, err := rows.HeaderFromSchema(frag.schema, f.Prefix)
		if err != nil {
			return nil, err
		}
		return emptyStream(header), nil
	}
	return NewRecordStream(frag.schema, f.Prefix, frag.records...)
}

// Close releases all stored records.
func (s *MemoryStorage) Close() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for id, frag := range s.fragments {
		frag.release()
		delete(s.fragments, id)
	}
}

func (f *memoryFragment) release() {
	for _, rec := range f.records {
		rec.Release()
	}
	f.records = nil
}

// NewRecord builds an Arrow record from rows bound to header.
func NewRecord(mem memory.Allocator, header *rows.Header, rs ...rows.Row) (arrow.Record, error) {
	builder := array.NewRecordBuilder(mem, header.Schema())
	defer builder.Release()

	for _, row := range rs {
		if !row.Header().Equal(header) {
			return nil, fmt.Errorf("%w: row of %s does not match %s", errors.ErrType, row.Header(), header)
		}
		for i := 0; i < row.Len(); i++ {
			if err := appendValue(builder.Field(i), row.Value(i)); err != nil {
				return nil, fmt.Errorf("field %s: %w", header.Field(i), err)
			}
		}
	}
	return builder.NewRecord(), nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.BooleanBuilder:
		if v, ok := v.(bool); ok {
			b.Append(v)
			return nil
		}
	case *array.Int64Builder:
		if v, ok := v.(int64); ok {
			b.Append(v)
			return nil
		}
	case *array.Float64Builder:
		if v, ok := v.(float64); ok {
			b.Append(v)
			return nil
		}
	case *array.StringBuilder:
		if v, ok := v.(string); ok {
			b.Append(v)
			return nil
		}
	case *array.BinaryBuilder:
		if v, ok := v.([]byte); ok {
			b.Append(v)
			return nil
		}
	case *array.TimestampBuilder:
		if v, ok := v.(time.Time); ok {
			b.Append(arrow.Timestamp(v.UnixNano()))
			return nil
		}
	}
	return fmt.Errorf("%w: cannot append %T to %s", errors.ErrType, v, b.Type())
}
