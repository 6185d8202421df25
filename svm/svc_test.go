package svm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// marginBlobs returns two jittered 2D clusters: class 0 near the origin
// and class 1 near (4, 4).
func marginBlobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		base := 0.0
		label := 0.0
		if i >= n/2 {
			base = 4.0
			label = 1.0
		}
		X.Set(i, 0, base+0.3*math.Sin(float64(3*i)))
		X.Set(i, 1, base+0.3*math.Cos(float64(5*i)))
		y.Set(i, 0, label)
	}
	return X, y
}

// xorCorners returns four corner clusters where opposite corners share a
// class, a layout no linear rule separates.
func xorCorners() (*mat.Dense, *mat.Dense) {
	corners := [][3]float64{
		{0, 0, 0}, {1, 1, 0},
		{0, 1, 1}, {1, 0, 1},
	}
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	row := 0
	for _, corner := range corners {
		for k := 0; k < 4; k++ {
			dx := 0.05 * float64(k%2)
			dy := 0.05 * float64(k/2)
			X.Set(row, 0, corner[0]+dx)
			X.Set(row, 1, corner[1]+dy)
			y.Set(row, 0, corner[2])
			row++
		}
	}
	return X, y
}

// TestSVCFitPredict tests classification of separated clusters.
func TestSVCFitPredict(t *testing.T) {
	X, y := marginBlobs(20)

	svc := NewSVC(WithC(4), WithGamma(0.5), WithRandomState(42))
	require.NoError(t, svc.Fit(X, y))
	assert.True(t, svc.IsFitted())
	assert.Equal(t, []int{0, 1}, svc.Classes())
	assert.Greater(t, svc.NSupport(), 0)
	assert.Greater(t, svc.NIter(), 0)

	predictions, err := svc.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.Equal(t, y.At(i, 0), predictions.At(i, 0), "sample %d", i)
	}

	score, err := svc.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

// TestSVCDecisionFunction tests the sign convention of the margin.
func TestSVCDecisionFunction(t *testing.T) {
	X, y := marginBlobs(20)

	svc := NewSVC(WithC(4), WithGamma(0.5))
	require.NoError(t, svc.Fit(X, y))

	query := mat.NewDense(2, 2, []float64{
		0, 0,
		4, 4,
	})
	decisions, err := svc.DecisionFunction(query)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Negative(t, decisions[0], "the class 0 centroid sits on the negative side")
	assert.Positive(t, decisions[1], "the class 1 centroid sits on the positive side")
}

// TestSVCNonlinearBoundary tests that the RBF kernel separates the XOR
// corner layout.
func TestSVCNonlinearBoundary(t *testing.T) {
	X, y := xorCorners()

	svc := NewSVC(WithC(10), WithGamma(1.0), WithRandomState(1))
	require.NoError(t, svc.Fit(X, y))

	score, err := svc.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score, "RBF must carve out opposite corners")
}

// TestSVCPredictProba tests that Platt-calibrated outputs form a valid
// distribution ordered by the decision value.
func TestSVCPredictProba(t *testing.T) {
	X, y := marginBlobs(24)

	svc := NewSVC(WithC(4), WithGamma(0.25))
	require.NoError(t, svc.Fit(X, y))

	query := mat.NewDense(3, 2, []float64{
		0, 0,
		2, 2,
		4, 4,
	})
	probas, err := svc.PredictProba(query)
	require.NoError(t, err)

	rows, cols := probas.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 2, cols)
	for i := 0; i < rows; i++ {
		sum := probas.At(i, 0) + probas.At(i, 1)
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
		assert.GreaterOrEqual(t, probas.At(i, 1), 0.0)
		assert.LessOrEqual(t, probas.At(i, 1), 1.0)
	}

	// Deeper into the class 1 side means a higher class 1 probability.
	assert.Less(t, probas.At(0, 1), probas.At(2, 1))
	assert.Greater(t, probas.At(0, 0), 0.5, "the class 0 centroid should lean class 0")
	assert.Greater(t, probas.At(2, 1), 0.5, "the class 1 centroid should lean class 1")
}

// TestSVCDeterministic tests that one seed gives one model.
func TestSVCDeterministic(t *testing.T) {
	X, y := marginBlobs(20)
	query := mat.NewDense(2, 2, []float64{1, 1, 3, 3})

	first := NewSVC(WithC(8), WithGamma(0.5), WithRandomState(9))
	require.NoError(t, first.Fit(X, y))
	pFirst, err := first.PredictProba(query)
	require.NoError(t, err)

	second := NewSVC(WithC(8), WithGamma(0.5), WithRandomState(9))
	require.NoError(t, second.Fit(X, y))
	pSecond, err := second.PredictProba(query)
	require.NoError(t, err)

	assert.Equal(t, first.NSupport(), second.NSupport())
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.Equal(t, pFirst.At(i, j), pSecond.At(i, j), "probability (%d,%d)", i, j)
		}
	}
}

// TestSVCValidation tests input validation and fitted-state gating.
func TestSVCValidation(t *testing.T) {
	X, y := marginBlobs(20)

	svc := NewSVC()
	_, err := svc.Predict(X)
	assert.Error(t, err, "Predict before Fit must fail")

	assert.Error(t, NewSVC(WithC(0)).Fit(X, y))
	assert.Error(t, NewSVC(WithGamma(-1)).Fit(X, y))
	assert.Error(t, NewSVC(WithTol(0)).Fit(X, y))
	assert.Error(t, NewSVC(WithMaxIter(0)).Fit(X, y))

	single := mat.NewDense(20, 1, nil)
	assert.Error(t, NewSVC().Fit(X, single), "single-class data must fail")

	three := mat.NewDense(20, 1, nil)
	for i := 0; i < 20; i++ {
		three.Set(i, 0, float64(i%3))
	}
	assert.Error(t, NewSVC().Fit(X, three), "three classes must fail")

	short := mat.NewDense(5, 1, []float64{0, 1, 0, 1, 0})
	assert.Error(t, svc.Fit(X, short), "row-count mismatch must fail")

	require.NoError(t, svc.Fit(X, y))
	wide := mat.NewDense(2, 5, nil)
	_, err = svc.Predict(wide)
	assert.Error(t, err, "feature-count mismatch must fail")
}

// TestSVCGetSetParams tests parameter management round-trips.
func TestSVCGetSetParams(t *testing.T) {
	svc := NewSVC()

	params := svc.GetParams()
	assert.Equal(t, 1.0, params["C"])
	assert.Equal(t, 0.5, params["gamma"])

	require.NoError(t, svc.SetParams(map[string]interface{}{
		"C":     16.0,
		"gamma": 0.125,
	}))
	assert.Equal(t, 16.0, svc.GetParams()["C"])
	assert.Equal(t, 0.125, svc.GetParams()["gamma"])

	assert.Error(t, svc.SetParams(map[string]interface{}{"kernel": "linear"}))
}
