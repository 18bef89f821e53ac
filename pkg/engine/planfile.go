package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"gopkg.in/yaml.v3"

	"github.com/polystore/polystore/pkg/engine/internal/datatype"
	"github.com/polystore/polystore/pkg/engine/internal/executor"
	"github.com/polystore/polystore/pkg/engine/internal/expr"
	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
	"github.com/polystore/polystore/pkg/engine/internal/types"
)

// MemoryStorage holds fragments as Apache Arrow records in memory.
type MemoryStorage = executor.MemoryStorage

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage { return executor.NewMemoryStorage() }

// PlanFile is the YAML representation of a plan and the fragments it reads.
//
//	fragments:
//	  - id: users
//	    file: users.csv
//	    fields: [{name: id, type: int}, {name: name, type: string}]
//	plan:
//	  select:
//	    filter: {op: GT, left: {column: u.id}, right: {literal: 1}}
//	    input: {fragment: {id: users, prefix: u}}
type PlanFile struct {
	Fragments []FragmentFile `yaml:"fragments"`
	Plan      NodeFile       `yaml:"plan"`
}

// FragmentFile declares a fragment stored as CSV with a header line.
type FragmentFile struct {
	ID     string      `yaml:"id"`
	File   string      `yaml:"file"`
	Fields []FieldFile `yaml:"fields"`
}

type FieldFile struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// NodeFile is a source of the plan. Exactly one of its fields must be set.
type NodeFile struct {
	Fragment   *FragmentRefFile `yaml:"fragment,omitempty"`
	Select     *SelectFile      `yaml:"select,omitempty"`
	Project    *ColumnsFile     `yaml:"project,omitempty"`
	Reorder    *ColumnsFile     `yaml:"reorder,omitempty"`
	Sort       *SortFile        `yaml:"sort,omitempty"`
	SingleJoin *SingleJoinFile  `yaml:"single_join,omitempty"`
}

type FragmentRefFile struct {
	ID     string `yaml:"id"`
	Prefix string `yaml:"prefix"`
}

type SelectFile struct {
	Filter *ExprFile `yaml:"filter"`
	Input  NodeFile  `yaml:"input"`
}

type ColumnsFile struct {
	Columns []string `yaml:"columns"`
	Input   NodeFile `yaml:"input"`
}

type SortFile struct {
	Keys  []SortKeyFile `yaml:"keys"`
	Input NodeFile      `yaml:"input"`
}

type SortKeyFile struct {
	Column string `yaml:"column"`
	Desc   bool   `yaml:"desc"`
}

type SingleJoinFile struct {
	Filter  *ExprFile `yaml:"filter"`
	PrefixA string    `yaml:"prefix_a"`
	PrefixB string    `yaml:"prefix_b"`
	A       NodeFile  `yaml:"a"`
	B       NodeFile  `yaml:"b"`
}

// ExprFile is an expression. Op selects a unary or binary operation, Column
// a column reference. Otherwise the expression is the literal Literal,
// where an absent literal is NULL.
type ExprFile struct {
	Op      string    `yaml:"op"`
	Left    *ExprFile `yaml:"left"`
	Right   *ExprFile `yaml:"right"`
	Column  string    `yaml:"column"`
	Literal any       `yaml:"literal"`
}

// DecodePlanFile decodes a YAML plan file. Unknown keys are rejected.
func DecodePlanFile(r io.Reader) (*PlanFile, error) {
	var f PlanFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding plan file: %w", err)
	}
	return &f, nil
}

// BuildPlan converts the operator tree of f into a logical plan.
func (f *PlanFile) BuildPlan() (*Plan, error) {
	plan := &logical.Plan{}
	root, err := buildSource(plan, &f.Plan)
	if err != nil {
		return nil, err
	}
	if err := plan.SetRoot(root); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// LoadStorage reads the CSV files of all fragments of f into a new storage.
// Relative file names are resolved against dir. The caller must close the
// returned storage.
func (f *PlanFile) LoadStorage(mem memory.Allocator, dir string) (*MemoryStorage, error) {
	storage := executor.NewMemoryStorage()
	for _, frag := range f.Fragments {
		if err := loadFragment(storage, mem, dir, frag); err != nil {
			storage.Close()
			return nil, fmt.Errorf("loading fragment %s: %w", frag.ID, err)
		}
	}
	return storage, nil
}

func loadFragment(storage *MemoryStorage, mem memory.Allocator, dir string, frag FragmentFile) error {
	if frag.ID == "" {
		return errors.New("fragment without id")
	}
	schema, err := fragmentSchema(frag.Fields)
	if err != nil {
		return err
	}

	path := frag.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(
		file,
		schema,
		csv.WithAllocator(mem),
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
		csv.WithComma(','),
		csv.WithChunk(-1),
	)
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	if err := reader.Err(); err != nil {
		return err
	}
	return storage.Put(frag.ID, schema, records...)
}

func fragmentSchema(fields []FieldFile) (*arrow.Schema, error) {
	if len(fields) == 0 {
		return nil, errors.New("fragment without fields")
	}
	arrowFields := make([]arrow.Field, 0, len(fields))
	for _, f := range fields {
		dt, ok := datatype.ToArrow[types.ParseValueType(f.Type)]
		if !ok {
			return nil, fmt.Errorf("unsupported type %q of field %s", f.Type, f.Name)
		}
		arrowFields = append(arrowFields, arrow.Field{Name: f.Name, Type: dt, Nullable: true})
	}
	return arrow.NewSchema(arrowFields, nil), nil
}

func buildSource(plan *Plan, n *NodeFile) (logical.Source, error) {
	switch {
	case n.Fragment != nil:
		if n.Fragment.ID == "" {
			return logical.Source{}, errors.New("fragment reference without id")
		}
		return logical.FragmentSource(logical.Fragment{ID: n.Fragment.ID, Prefix: n.Fragment.Prefix}), nil

	case n.Select != nil:
		input, err := buildSource(plan, &n.Select.Input)
		if err != nil {
			return logical.Source{}, err
		}
		filter, err := buildExpr(n.Select.Filter)
		if err != nil {
			return logical.Source{}, err
		}
		return logical.OperatorSource(plan.Add(logical.NewSelect(input, filter))), nil

	case n.Project != nil:
		input, err := buildSource(plan, &n.Project.Input)
		if err != nil {
			return logical.Source{}, err
		}
		return logical.OperatorSource(plan.Add(logical.NewProject(input, n.Project.Columns...))), nil

	case n.Reorder != nil:
		input, err := buildSource(plan, &n.Reorder.Input)
		if err != nil {
			return logical.Source{}, err
		}
		return logical.OperatorSource(plan.Add(logical.NewReorder(input, n.Reorder.Columns...))), nil

	case n.Sort != nil:
		input, err := buildSource(plan, &n.Sort.Input)
		if err != nil {
			return logical.Source{}, err
		}
		keys := make([]logical.SortKey, len(n.Sort.Keys))
		for i, k := range n.Sort.Keys {
			keys[i] = logical.SortKey{Column: k.Column, Order: logical.ASC}
			if k.Desc {
				keys[i].Order = logical.DESC
			}
		}
		return logical.OperatorSource(plan.Add(logical.NewSort(input, keys...))), nil

	case n.SingleJoin != nil:
		a, err := buildSource(plan, &n.SingleJoin.A)
		if err != nil {
			return logical.Source{}, err
		}
		b, err := buildSource(plan, &n.SingleJoin.B)
		if err != nil {
			return logical.Source{}, err
		}
		filter, err := buildExpr(n.SingleJoin.Filter)
		if err != nil {
			return logical.Source{}, err
		}
		join := logical.NewSingleJoin(a, b, filter, n.SingleJoin.PrefixA, n.SingleJoin.PrefixB)
		return logical.OperatorSource(plan.Add(join)), nil
	}
	return logical.Source{}, errors.New("plan node without operator or fragment")
}

func buildExpr(e *ExprFile) (expr.Expression, error) {
	if e == nil {
		return nil, nil
	}
	switch {
	case e.Op != "" && e.Right == nil:
		op, err := types.ParseUnaryOpKind(e.Op)
		if err != nil {
			return nil, err
		}
		left, err := buildOperand(e.Left, e.Op)
		if err != nil {
			return nil, err
		}
		return &expr.UnaryExpr{Left: left, Op: op}, nil

	case e.Op != "":
		op, err := types.ParseBinOpKind(e.Op)
		if err != nil {
			return nil, err
		}
		left, err := buildOperand(e.Left, e.Op)
		if err != nil {
			return nil, err
		}
		right, err := buildOperand(e.Right, e.Op)
		if err != nil {
			return nil, err
		}
		return expr.Binary(op, left, right), nil

	case e.Column != "":
		return expr.Column(e.Column), nil
	}
	return expr.NewLiteral(e.Literal), nil
}

func buildOperand(e *ExprFile, op string) (expr.Expression, error) {
	if e == nil {
		return nil, fmt.Errorf("missing operand of %s", op)
	}
	return buildExpr(e)
}
