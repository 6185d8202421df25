package model

import "gonum.org/v1/gonum/mat"

// Transformer is the interface for data transformations. Fit learns the
// transformation parameters from training data only; Transform applies them
// to any data with the same columns.
type Transformer interface {
	// Fit learns the parameters required for the transformation.
	Fit(X mat.Matrix) error

	// Transform applies the transformation.
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform runs Fit then Transform on the same data.
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
