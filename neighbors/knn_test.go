package neighbors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// clusterData returns two tight 2D clusters: class 0 near the origin and
// class 1 near (5, 5).
func clusterData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.1,
		0.2, 0.0,
		0.1, 0.3,
		0.3, 0.2,
		5.0, 5.1,
		5.2, 5.0,
		5.1, 5.3,
		4.9, 5.2,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

// TestKNeighborsFitPredict tests classification of well-separated
// clusters.
func TestKNeighborsFitPredict(t *testing.T) {
	X, y := clusterData()

	knn := NewKNeighborsClassifier(WithK(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.1, 0.1,
		5.0, 5.0,
	})
	predictions, err := knn.Predict(XTest)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if predictions.At(0, 0) != 0 {
		t.Errorf("point near origin predicted %v, want 0", predictions.At(0, 0))
	}
	if predictions.At(1, 0) != 1 {
		t.Errorf("point near (5,5) predicted %v, want 1", predictions.At(1, 0))
	}

	score, err := knn.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 1.0 {
		t.Errorf("Score() on training clusters = %v, want 1.0", score)
	}
}

// TestKNeighborsPredictProba tests vote-share outputs.
func TestKNeighborsPredictProba(t *testing.T) {
	X, y := clusterData()

	knn := NewKNeighborsClassifier(WithK(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := knn.PredictProba(mat.NewDense(1, 2, []float64{0.1, 0.1}))
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	r, c := probas.Dims()
	if r != 1 || c != 2 {
		t.Fatalf("probas shape = (%d, %d), want (1, 2)", r, c)
	}
	if sum := probas.At(0, 0) + probas.At(0, 1); math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}
	// All three nearest neighbors are class 0.
	if probas.At(0, 0) != 1.0 {
		t.Errorf("P(0) = %v, want 1.0", probas.At(0, 0))
	}
}

// TestKNeighborsOptimalWeights tests the rank weight sequence.
func TestKNeighborsOptimalWeights(t *testing.T) {
	X, y := clusterData()

	knn := NewKNeighborsClassifier(WithK(5))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	w := knn.rankWeights()
	if len(w) != 5 {
		t.Fatalf("rankWeights() length = %d, want 5", len(w))
	}

	sum := 0.0
	for i, wi := range w {
		if wi < 0 {
			t.Errorf("weight[%d] = %v, want non-negative", i, wi)
		}
		if i > 0 && wi > w[i-1] {
			t.Errorf("weight[%d] = %v exceeds weight[%d] = %v, ranks must not gain weight", i, wi, i-1, w[i-1])
		}
		sum += wi
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("weights sum to %v, want 1", sum)
	}

	// Closer ranks dominate: the first weight beats uniform.
	if w[0] <= 1.0/5.0 {
		t.Errorf("first weight %v should exceed the uniform share %v", w[0], 1.0/5.0)
	}
}

// TestKNeighborsUniformWeights tests the uniform weighting mode.
func TestKNeighborsUniformWeights(t *testing.T) {
	X, y := clusterData()

	knn := NewKNeighborsClassifier(WithK(4), WithWeights("uniform"))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	for i, w := range knn.rankWeights() {
		if w != 0.25 {
			t.Errorf("uniform weight[%d] = %v, want 0.25", i, w)
		}
	}
}

// TestKNeighborsDeterministic tests that repeated predictions agree,
// including under distance ties.
func TestKNeighborsDeterministic(t *testing.T) {
	// Four equidistant neighbors around the query point.
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		-1, 0,
		0, 1,
		0, -1,
	})
	y := mat.NewDense(4, 1, []float64{0, 1, 0, 1})

	knn := NewKNeighborsClassifier(WithK(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	query := mat.NewDense(1, 2, []float64{0, 0})
	first, err := knn.Predict(query)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for trial := 0; trial < 5; trial++ {
		again, err := knn.Predict(query)
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		if again.At(0, 0) != first.At(0, 0) {
			t.Errorf("tied-distance prediction changed between calls: %v vs %v", again.At(0, 0), first.At(0, 0))
		}
	}
}

// TestKNeighborsValidation tests parameter and input validation.
func TestKNeighborsValidation(t *testing.T) {
	X, y := clusterData()

	tests := []struct {
		name string
		knn  *KNeighborsClassifier
	}{
		{name: "K of zero", knn: NewKNeighborsClassifier(WithK(0))},
		{name: "K above sample count", knn: NewKNeighborsClassifier(WithK(100))},
		{name: "Unknown weights", knn: NewKNeighborsClassifier(WithWeights("cosine"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.knn.Fit(X, y); err == nil {
				t.Error("Fit() expected error, got nil")
			}
		})
	}

	knn := NewKNeighborsClassifier()
	if _, err := knn.Predict(X); err == nil {
		t.Error("Predict() before Fit expected error, got nil")
	}
}

// TestKNeighborsGetSetParams tests parameter management.
func TestKNeighborsGetSetParams(t *testing.T) {
	knn := NewKNeighborsClassifier()

	params := knn.GetParams()
	if params["n_neighbors"].(int) != 5 {
		t.Errorf("default n_neighbors = %v, want 5", params["n_neighbors"])
	}
	if params["weights"].(string) != "optimal" {
		t.Errorf("default weights = %v, want optimal", params["weights"])
	}

	if err := knn.SetParams(map[string]interface{}{"n_neighbors": 7}); err != nil {
		t.Fatalf("SetParams() error = %v", err)
	}
	if knn.GetParams()["n_neighbors"].(int) != 7 {
		t.Errorf("n_neighbors not updated")
	}

	if err := knn.SetParams(map[string]interface{}{"metric": "manhattan"}); err == nil {
		t.Error("SetParams() with unknown key expected error, got nil")
	}
}
