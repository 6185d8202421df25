package dataset

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/pkg/errors"
)

// Role records which side of the train/test split a table belongs to.
// Operations that must only ever touch training data check it before
// running.
type Role int

const (
	// RoleUnsplit is the role of a freshly loaded table.
	RoleUnsplit Role = iota
	// RoleTrain marks the training partition.
	RoleTrain
	// RoleTest marks the held-out evaluation partition.
	RoleTest
)

// String returns the lowercase name of the role.
func (r Role) String() string {
	switch r {
	case RoleTrain:
		return "train"
	case RoleTest:
		return "test"
	default:
		return "unsplit"
	}
}

// Table is a columnar view of the dataset: numeric columns as float slices,
// categorical columns as string slices, and the label mapped to 0/1.
type Table struct {
	schema *Schema
	role   Role

	numeric     map[string][]float64
	categorical map[string][]string
	labels      []int

	nRows int
}

// NRows returns the number of rows.
func (t *Table) NRows() int {
	return t.nRows
}

// Schema returns the table's schema. Subsets share the schema of the table
// they came from.
func (t *Table) Schema() *Schema {
	return t.schema
}

// Role returns which split partition this table is.
func (t *Table) Role() Role {
	return t.role
}

// Numeric returns a copy of the named numeric column.
func (t *Table) Numeric(name string) ([]float64, error) {
	col, ok := t.numeric[name]
	if !ok {
		return nil, errors.NewSchemaError(name, "no such numeric column", nil)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// Categorical returns a copy of the named categorical column.
func (t *Table) Categorical(name string) ([]string, error) {
	col, ok := t.categorical[name]
	if !ok {
		return nil, errors.NewSchemaError(name, "no such categorical column", nil)
	}
	out := make([]string, len(col))
	copy(out, col)
	return out, nil
}

// Levels returns the sorted unique levels of a categorical column.
func (t *Table) Levels(name string) ([]string, error) {
	col, ok := t.categorical[name]
	if !ok {
		return nil, errors.NewSchemaError(name, "no such categorical column", nil)
	}
	seen := make(map[string]struct{})
	var levels []string
	for _, v := range col {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			levels = append(levels, v)
		}
	}
	sort.Strings(levels)
	return levels, nil
}

// Labels returns a copy of the 0/1 class labels.
func (t *Table) Labels() []int {
	out := make([]int, len(t.labels))
	copy(out, t.labels)
	return out
}

// LabelVec returns the class labels as a column vector.
func (t *Table) LabelVec() *mat.VecDense {
	v := mat.NewVecDense(t.nRows, nil)
	for i, label := range t.labels {
		v.SetVec(i, float64(label))
	}
	return v
}

// ClassCounts returns the number of positive and negative rows.
func (t *Table) ClassCounts() (pos, neg int) {
	for _, label := range t.labels {
		if label == 1 {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

// PositiveRate returns the share of positive-class rows.
func (t *Table) PositiveRate() float64 {
	if t.nRows == 0 {
		return 0
	}
	pos, _ := t.ClassCounts()
	return float64(pos) / float64(t.nRows)
}

// Subset returns a new table holding the given rows in the given order.
// Indices may repeat, which is how upsampling duplicates rows. The result
// shares the schema and keeps the role of the source table.
func (t *Table) Subset(indices []int) (*Table, error) {
	if len(indices) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Subset")
	}

	for _, idx := range indices {
		if idx < 0 || idx >= t.nRows {
			return nil, errors.NewValueError("dataset.Subset",
				"row index out of range")
		}
	}

	sub := &Table{
		schema:      t.schema,
		role:        t.role,
		numeric:     make(map[string][]float64, len(t.numeric)),
		categorical: make(map[string][]string, len(t.categorical)),
		labels:      make([]int, len(indices)),
		nRows:       len(indices),
	}

	for name, col := range t.numeric {
		out := make([]float64, len(indices))
		for i, idx := range indices {
			out[i] = col[idx]
		}
		sub.numeric[name] = out
	}
	for name, col := range t.categorical {
		out := make([]string, len(indices))
		for i, idx := range indices {
			out[i] = col[idx]
		}
		sub.categorical[name] = out
	}
	for i, idx := range indices {
		sub.labels[i] = t.labels[idx]
	}

	return sub, nil
}

// withRole returns a shallow re-rolled copy used by the splitter.
func (t *Table) withRole(role Role) *Table {
	clone := *t
	clone.role = role
	return &clone
}
