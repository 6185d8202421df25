// Package preprocessing turns loaded tables into model-ready matrices.
//
// The Preprocessor standardizes numeric columns, one-hot encodes
// categorical columns, and keeps the label out of both transformations.
// All statistics are learned from the training partition; applying the
// fitted preprocessor to held-out data reuses those statistics unchanged.
package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/dataset"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// Preprocessor converts a dataset.Table into a feature matrix and label
// vector. Numeric columns come first in schema order, followed by the
// one-hot expansion of the categorical columns.
type Preprocessor struct {
	model.BaseEstimator

	scaler  *StandardScaler
	encoder *OneHotEncoder
	scale   bool

	numeric []string
	names   []string
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithScaling controls whether numeric columns are standardized
// (default true). Disabling it passes numeric values through unchanged,
// which keeps coefficients interpretable in original units.
func WithScaling(enabled bool) PreprocessorOption {
	return func(p *Preprocessor) {
		p.scale = enabled
	}
}

// NewPreprocessor creates a Preprocessor with standardization enabled.
func NewPreprocessor(opts ...PreprocessorOption) *Preprocessor {
	p := &Preprocessor{
		scaler:  NewStandardScalerDefault(),
		encoder: NewOneHotEncoder(),
		scale:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit learns scaling statistics and categorical level sets from t.
// Fitting on the held-out test partition is refused: statistics learned
// there would contaminate every later training step.
func (p *Preprocessor) Fit(t *dataset.Table) error {
	if t.Role() == dataset.RoleTest {
		return errors.NewDataLeakageError("Preprocessor.Fit",
			"fitting preprocessing statistics on the held-out test partition")
	}
	if t.NRows() == 0 {
		return errors.NewModelError("Preprocessor.Fit", "empty data", errors.ErrEmptyData)
	}

	p.numeric = t.Schema().NumericNames()

	if len(p.numeric) > 0 && p.scale {
		num, err := p.numericMatrix(t)
		if err != nil {
			return err
		}
		if err := p.scaler.Fit(num); err != nil {
			return err
		}
	}
	if err := p.encoder.Fit(t); err != nil {
		return err
	}

	p.names = make([]string, 0, len(p.numeric)+p.encoder.NFeatures())
	p.names = append(p.names, p.numeric...)
	p.names = append(p.names, p.encoder.FeatureNames()...)
	if len(p.names) == 0 {
		return errors.NewValueError("Preprocessor.Fit", "table has no feature columns")
	}

	logger := log.GetLoggerWithName("preprocessing")
	logger.Info("preprocessor fitted",
		log.SamplesKey, t.NRows(),
		log.FeaturesKey, len(p.names),
	)

	p.SetFitted()
	return nil
}

// Transform builds the feature matrix and label vector for t using the
// fitted statistics. The label column never enters the matrix; it is
// returned separately after all feature transformations are done.
func (p *Preprocessor) Transform(t *dataset.Table) (*mat.Dense, *mat.VecDense, error) {
	if !p.IsFitted() {
		return nil, nil, errors.NewNotFittedError("Preprocessor", "Transform")
	}
	if t.NRows() == 0 {
		return nil, nil, errors.NewModelError("Preprocessor.Transform", "empty data", errors.ErrEmptyData)
	}

	n := t.NRows()
	X := mat.NewDense(n, len(p.names), nil)

	if len(p.numeric) > 0 {
		num, err := p.numericMatrix(t)
		if err != nil {
			return nil, nil, err
		}
		if p.scale {
			scaled, err := p.scaler.Transform(num)
			if err != nil {
				return nil, nil, err
			}
			num = scaled.(*mat.Dense)
		}
		for j := range p.numeric {
			for i := 0; i < n; i++ {
				X.Set(i, j, num.At(i, j))
			}
		}
	}

	if p.encoder.NFeatures() > 0 {
		encoded, err := p.encoder.Transform(t)
		if err != nil {
			return nil, nil, err
		}
		offset := len(p.numeric)
		for j := 0; j < p.encoder.NFeatures(); j++ {
			for i := 0; i < n; i++ {
				X.Set(i, offset+j, encoded.At(i, j))
			}
		}
	}

	return X, t.LabelVec(), nil
}

// FitTransform fits on t and transforms it in one call.
func (p *Preprocessor) FitTransform(t *dataset.Table) (*mat.Dense, *mat.VecDense, error) {
	if err := p.Fit(t); err != nil {
		return nil, nil, err
	}
	return p.Transform(t)
}

// FeatureNames returns the output column names: numeric columns in schema
// order, then "column=level" indicator names.
func (p *Preprocessor) FeatureNames() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// NumericNames returns the numeric column names used by the preprocessor.
func (p *Preprocessor) NumericNames() []string {
	out := make([]string, len(p.numeric))
	copy(out, p.numeric)
	return out
}

// numericMatrix assembles the raw numeric columns of t in schema order.
func (p *Preprocessor) numericMatrix(t *dataset.Table) (*mat.Dense, error) {
	n := t.NRows()
	num := mat.NewDense(n, len(p.numeric), nil)
	for j, name := range p.numeric {
		col, err := t.Numeric(name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			num.Set(i, j, v)
		}
	}
	return num, nil
}
