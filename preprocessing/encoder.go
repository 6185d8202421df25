package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/dataset"
	"github.com/peoplemetrics/attrition/pkg/errors"
)

// OneHotEncoder expands the categorical columns of a table into indicator
// features. Each column produces one output column per level, named
// "column=level", with levels sorted lexicographically so the expansion is
// deterministic across runs.
type OneHotEncoder struct {
	model.BaseEstimator

	// Columns lists the categorical columns seen during fit, in schema order.
	Columns []string

	// Categories holds the sorted levels of each column in Columns.
	Categories [][]string

	featureNames []string
}

// NewOneHotEncoder creates an unfitted OneHotEncoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{}
}

// Fit learns the level set of every categorical column in t.
func (e *OneHotEncoder) Fit(t *dataset.Table) error {
	if t.NRows() == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	names := t.Schema().CategoricalNames()
	e.Columns = make([]string, 0, len(names))
	e.Categories = make([][]string, 0, len(names))
	e.featureNames = nil

	for _, name := range names {
		levels, err := t.Levels(name)
		if err != nil {
			return err
		}
		e.Columns = append(e.Columns, name)
		e.Categories = append(e.Categories, levels)
		for _, level := range levels {
			e.featureNames = append(e.featureNames, fmt.Sprintf("%s=%s", name, level))
		}
	}

	e.SetFitted()
	return nil
}

// Transform encodes the categorical columns of t into a dense 0/1 matrix.
// A level not seen during fit is a schema violation. When the fitted table
// had no categorical columns, Transform returns a nil matrix.
func (e *OneHotEncoder) Transform(t *dataset.Table) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(e.featureNames) == 0 {
		return nil, nil
	}

	n := t.NRows()
	result := mat.NewDense(n, len(e.featureNames), nil)

	offset := 0
	for ci, name := range e.Columns {
		values, err := t.Categorical(name)
		if err != nil {
			return nil, err
		}

		index := make(map[string]int, len(e.Categories[ci]))
		for li, level := range e.Categories[ci] {
			index[level] = li
		}

		for i, v := range values {
			li, ok := index[v]
			if !ok {
				return nil, errors.NewSchemaError(name, "level not seen during fit", v)
			}
			result.Set(i, offset+li, 1.0)
		}
		offset += len(e.Categories[ci])
	}

	return result, nil
}

// FitTransform fits the encoder on t and returns the encoded matrix.
func (e *OneHotEncoder) FitTransform(t *dataset.Table) (*mat.Dense, error) {
	if err := e.Fit(t); err != nil {
		return nil, err
	}
	return e.Transform(t)
}

// FeatureNames returns the generated feature names in output column order.
func (e *OneHotEncoder) FeatureNames() []string {
	out := make([]string, len(e.featureNames))
	copy(out, e.featureNames)
	return out
}

// NFeatures returns the number of output columns produced by Transform.
func (e *OneHotEncoder) NFeatures() int {
	return len(e.featureNames)
}
