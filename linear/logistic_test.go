package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestLogisticRegressionFitPredict tests binary classification on
// linearly separable data.
func TestLogisticRegressionFitPredict(t *testing.T) {
	// Class 0 clusters around (1, 1), class 1 around (3, 3).
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(
		WithMaxIter(1000),
		WithTol(1e-4),
	)
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 6; i++ {
		if got, want := predictions.At(i, 0), y.At(i, 0); got != want {
			t.Errorf("sample %d: predicted %v, want %v", i, got, want)
		}
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0,
		3.0, 3.0,
	})
	testPreds, err := lr.Predict(XTest)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if testPreds.At(0, 0) != 0 {
		t.Errorf("point (1,1) predicted %v, want 0", testPreds.At(0, 0))
	}
	if testPreds.At(1, 0) != 1 {
		t.Errorf("point (3,3) predicted %v, want 1", testPreds.At(1, 0))
	}
}

// TestLogisticRegressionPredictProba tests probability outputs.
func TestLogisticRegressionPredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr := NewLogisticRegression(WithMaxIter(500))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	rows, cols := probas.Dims()
	if rows != 4 || cols != 2 {
		t.Fatalf("probas shape = (%d, %d), want (4, 2)", rows, cols)
	}

	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := probas.At(i, j)
			if p < 0 || p > 1 {
				t.Errorf("probability out of range at (%d, %d): %v", i, j, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("probabilities for sample %d sum to %v, want 1", i, sum)
		}
	}

	// The predicted class carries the larger probability.
	predictions, _ := lr.Predict(X)
	for i := 0; i < rows; i++ {
		pred := int(predictions.At(i, 0))
		p0, p1 := probas.At(i, 0), probas.At(i, 1)
		if pred == 0 && p0 < p1 {
			t.Errorf("sample %d: predicted 0 but P(0)=%v < P(1)=%v", i, p0, p1)
		}
		if pred == 1 && p1 < p0 {
			t.Errorf("sample %d: predicted 1 but P(1)=%v < P(0)=%v", i, p1, p0)
		}
	}
}

// TestLogisticRegressionScore tests accuracy on the training data.
func TestLogisticRegressionScore(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 0, 1,
		0, 1, 0,
		0, 1, 1,
		1, 0, 0,
		1, 0, 1,
		1, 1, 0,
		1, 1, 1,
	})
	// Class 1 when the feature sum exceeds 1.5.
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 1, 0, 1, 1, 1})

	lr := NewLogisticRegression(
		WithMaxIter(1000),
		WithC(10.0),
	)
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score < 0.75 {
		t.Errorf("Score() = %v, want at least 0.75", score)
	}

	XSimple := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
	})
	ySimple := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr2 := NewLogisticRegression(
		WithMaxIter(1000),
		WithC(10.0),
	)
	if err := lr2.Fit(XSimple, ySimple); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	scoreSimple, err := lr2.Score(XSimple, ySimple)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scoreSimple != 1.0 {
		t.Errorf("Score() on separable data = %v, want 1.0", scoreSimple)
	}
}

// TestLogisticRegressionRegularization tests that a smaller C shrinks
// the coefficients harder.
func TestLogisticRegressionRegularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	lrStrong := NewLogisticRegression(WithC(0.01), WithMaxIter(1000))
	if err := lrStrong.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	lrWeak := NewLogisticRegression(WithC(100.0), WithMaxIter(1000))
	if err := lrWeak.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	norm := func(coef []float64) float64 {
		s := 0.0
		for _, c := range coef {
			s += c * c
		}
		return math.Sqrt(s)
	}

	if strongNorm, weakNorm := norm(lrStrong.Coef()), norm(lrWeak.Coef()); strongNorm >= weakNorm {
		t.Errorf("strong regularization norm %v should be below weak norm %v", strongNorm, weakNorm)
	}
}

// TestLogisticRegressionDeterministic tests that identical seeds produce
// identical coefficients.
func TestLogisticRegressionDeterministic(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr1 := NewLogisticRegression(WithRandomState(7), WithMaxIter(50))
	lr2 := NewLogisticRegression(WithRandomState(7), WithMaxIter(50))
	if err := lr1.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if err := lr2.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	c1, c2 := lr1.Coef(), lr2.Coef()
	for j := range c1 {
		if c1[j] != c2[j] {
			t.Errorf("coef[%d] differs between identical seeds: %v vs %v", j, c1[j], c2[j])
		}
	}
	if lr1.Intercept() != lr2.Intercept() {
		t.Errorf("intercepts differ between identical seeds: %v vs %v", lr1.Intercept(), lr2.Intercept())
	}
}

// TestLogisticRegressionNonBinary tests that more than two classes are
// rejected.
func TestLogisticRegressionNonBinary(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{0, 1, 2})

	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err == nil {
		t.Error("Fit() with three classes expected error, got nil")
	}
}

// TestLogisticRegressionGetSetParams tests parameter management.
func TestLogisticRegressionGetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	params := lr.GetParams()
	if params["C"].(float64) != 1.0 {
		t.Errorf("default C = %v, want 1.0", params["C"])
	}
	if params["max_iter"].(int) != 200 {
		t.Errorf("default max_iter = %v, want 200", params["max_iter"])
	}

	err := lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": 300,
		"penalty":  "none",
		"tol":      1e-5,
	})
	if err != nil {
		t.Fatalf("SetParams() error = %v", err)
	}

	params = lr.GetParams()
	if params["C"].(float64) != 2.0 {
		t.Errorf("C = %v after SetParams, want 2.0", params["C"])
	}
	if params["max_iter"].(int) != 300 {
		t.Errorf("max_iter = %v after SetParams, want 300", params["max_iter"])
	}
	if params["penalty"].(string) != "none" {
		t.Errorf("penalty = %v after SetParams, want none", params["penalty"])
	}

	if err := lr.SetParams(map[string]interface{}{"bogus": 1}); err == nil {
		t.Error("SetParams() with unknown key expected error, got nil")
	}
}

// TestLogisticRegressionNotFitted tests errors before fitting.
func TestLogisticRegressionNotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	if _, err := lr.Predict(X); err == nil {
		t.Error("Predict() before Fit expected error, got nil")
	}
	if _, err := lr.PredictProba(X); err == nil {
		t.Error("PredictProba() before Fit expected error, got nil")
	}
	if _, err := lr.Score(X, mat.NewDense(2, 1, []float64{0, 1})); err == nil {
		t.Error("Score() before Fit expected error, got nil")
	}
}
