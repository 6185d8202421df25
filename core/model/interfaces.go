// Package model provides the shared interfaces and state types that every
// estimator in this project builds on.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score. For
// classifiers the score is mean accuracy on the given data.
type Scorer interface {
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Classifier combines the interfaces every classification model implements.
// Predictions and labels travel as single-column matrices of class indices.
type Classifier interface {
	Estimator
	Predictor
	Scorer

	// PredictProba returns probability estimates, one column per class in
	// the order reported by Classes.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the unique classes seen during fitting.
	Classes() []int
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter
// modification before fitting.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}
