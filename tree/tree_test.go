package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// cornerData returns two separated 2D clusters.
func cornerData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

// pocketData returns a 1D problem whose main boundary sits at 7.5 with a
// lone class 1 sample at x = 2, so a perfect tree needs two more splits
// below the root.
func pocketData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(16, 1, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		if i >= 8 || i == 2 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

// TestDecisionTreeFitPredict tests classification of separated clusters.
func TestDecisionTreeFitPredict(t *testing.T) {
	X, y := cornerData()

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if !dt.IsFitted() {
		t.Fatal("IsFitted() = false after Fit")
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		3.5, 3.5,
	})
	predictions, err := dt.Predict(XTest)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if predictions.At(0, 0) != 0 {
		t.Errorf("point (0.5,0.5) predicted %v, want 0", predictions.At(0, 0))
	}
	if predictions.At(1, 0) != 1 {
		t.Errorf("point (3.5,3.5) predicted %v, want 1", predictions.At(1, 0))
	}

	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 1.0 {
		t.Errorf("Score() on separated clusters = %v, want 1.0", score)
	}

	classes := dt.Classes()
	if len(classes) != 2 || classes[0] != 0 || classes[1] != 1 {
		t.Errorf("Classes() = %v, want [0 1]", classes)
	}
}

// TestDecisionTreePredictProba tests leaf-frequency probabilities.
func TestDecisionTreePredictProba(t *testing.T) {
	X, y := cornerData()

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	probas, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}

	rows, cols := probas.Dims()
	if rows != 8 || cols != 2 {
		t.Fatalf("probas shape = (%d, %d), want (8, 2)", rows, cols)
	}
	for i := 0; i < rows; i++ {
		sum := probas.At(i, 0) + probas.At(i, 1)
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("row %d probabilities sum to %v, want 1", i, sum)
		}
		// Pure leaves on fully separated clusters.
		want := int(y.At(i, 0))
		if probas.At(i, want) != 1.0 {
			t.Errorf("row %d P(class %d) = %v, want 1.0", i, want, probas.At(i, want))
		}
	}
}

// TestDecisionTreeMaxDepth tests the depth limit.
func TestDecisionTreeMaxDepth(t *testing.T) {
	X, y := pocketData()

	dt := NewDecisionTreeClassifier(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if depth := dt.GetDepth(); depth != 1 {
		t.Errorf("GetDepth() = %d, want 1", depth)
	}
	if leaves := dt.GetNLeaves(); leaves != 2 {
		t.Errorf("GetNLeaves() = %d, want 2", leaves)
	}

	// The stump finds the main boundary but cannot fix the pocket.
	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if want := 15.0 / 16.0; score != want {
		t.Errorf("stump Score() = %v, want %v", score, want)
	}
}

// TestDecisionTreeComplexityGate tests that cp prunes weak splits the
// way cost-complexity pre-pruning does.
func TestDecisionTreeComplexityGate(t *testing.T) {
	X, y := pocketData()

	// Without the gate the tree isolates the pocket sample exactly.
	full := NewDecisionTreeClassifier()
	if err := full.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if score, _ := full.Score(X, y); score != 1.0 {
		t.Errorf("ungated Score() = %v, want 1.0", score)
	}
	if depth := full.GetDepth(); depth != 3 {
		t.Errorf("ungated GetDepth() = %d, want 3", depth)
	}
	if leaves := full.GetNLeaves(); leaves != 4 {
		t.Errorf("ungated GetNLeaves() = %d, want 4", leaves)
	}

	// cp = 0.08 keeps the main boundary and prunes the pocket splits,
	// whose scaled decrease is well below 0.08 of the root impurity.
	gated := NewDecisionTreeClassifier(WithComplexityParameter(0.08))
	if err := gated.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if depth := gated.GetDepth(); depth != 1 {
		t.Errorf("gated GetDepth() = %d, want 1", depth)
	}
	if score, _ := gated.Score(X, y); score != 15.0/16.0 {
		t.Errorf("gated Score() = %v, want %v", score, 15.0/16.0)
	}
}

// TestDecisionTreeMinSamplesLeaf tests that small leaves are not carved
// out.
func TestDecisionTreeMinSamplesLeaf(t *testing.T) {
	X, y := pocketData()

	dt := NewDecisionTreeClassifier(WithMinSamplesLeaf(2))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	// Isolating the pocket needs a single-sample leaf, so the gated tree
	// has to leave it misclassified.
	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score >= 1.0 {
		t.Errorf("Score() = %v, want below 1.0 with min_samples_leaf=2", score)
	}
}

// TestDecisionTreeFeatureSubsampling tests determinism of seeded
// max_features fits.
func TestDecisionTreeFeatureSubsampling(t *testing.T) {
	X, y := cornerData()
	probe := mat.NewDense(3, 2, []float64{0.2, 0.8, 2.0, 2.0, 3.8, 3.1})

	first := NewDecisionTreeClassifier(WithMaxFeatures(1), WithRandomState(5))
	if err := first.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	pFirst, err := first.Predict(probe)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	second := NewDecisionTreeClassifier(WithMaxFeatures(1), WithRandomState(5))
	if err := second.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	pSecond, err := second.Predict(probe)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if pFirst.At(i, 0) != pSecond.At(i, 0) {
			t.Errorf("row %d: identically seeded fits disagree: %v vs %v",
				i, pFirst.At(i, 0), pSecond.At(i, 0))
		}
	}
}

// TestDecisionTreeEntropy tests the entropy criterion.
func TestDecisionTreeEntropy(t *testing.T) {
	X, y := cornerData()

	dt := NewDecisionTreeClassifier(WithCriterion("entropy"))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 1.0 {
		t.Errorf("entropy Score() = %v, want 1.0", score)
	}
}

// TestDecisionTreeFeatureImportances tests that the split feature gets
// all the importance on cluster data.
func TestDecisionTreeFeatureImportances(t *testing.T) {
	// Feature 0 separates the classes, feature 1 is constant.
	X := mat.NewDense(8, 2, []float64{
		0, 1, 1, 1, 2, 1, 3, 1,
		10, 1, 11, 1, 12, 1, 13, 1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	imp := dt.GetFeatureImportances()
	if len(imp) != 2 {
		t.Fatalf("importances length = %d, want 2", len(imp))
	}
	if imp[0] != 1.0 {
		t.Errorf("importance of the split feature = %v, want 1.0", imp[0])
	}
	if imp[1] != 0.0 {
		t.Errorf("importance of the constant feature = %v, want 0", imp[1])
	}
}

// TestDecisionTreeValidation tests parameter and input validation.
func TestDecisionTreeValidation(t *testing.T) {
	X, y := cornerData()

	tests := []struct {
		name string
		dt   *DecisionTreeClassifier
	}{
		{name: "Unknown criterion", dt: NewDecisionTreeClassifier(WithCriterion("chi2"))},
		{name: "Split below two", dt: NewDecisionTreeClassifier(WithMinSamplesSplit(1))},
		{name: "Leaf below one", dt: NewDecisionTreeClassifier(WithMinSamplesLeaf(0))},
		{name: "Negative cp", dt: NewDecisionTreeClassifier(WithComplexityParameter(-0.1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.dt.Fit(X, y); err == nil {
				t.Error("Fit() expected error, got nil")
			}
		})
	}

	dt := NewDecisionTreeClassifier()
	if _, err := dt.Predict(X); err == nil {
		t.Error("Predict() before Fit expected error, got nil")
	}

	short := mat.NewDense(3, 1, []float64{0, 1, 0})
	if err := dt.Fit(X, short); err == nil {
		t.Error("Fit() with mismatched rows expected error, got nil")
	}

	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if _, err := dt.Predict(mat.NewDense(2, 5, nil)); err == nil {
		t.Error("Predict() with wrong feature count expected error, got nil")
	}
}

// TestDecisionTreeGetSetParams tests parameter management.
func TestDecisionTreeGetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	if params["criterion"].(string) != "gini" {
		t.Errorf("default criterion = %v, want gini", params["criterion"])
	}
	if params["cp"].(float64) != 0.0 {
		t.Errorf("default cp = %v, want 0", params["cp"])
	}

	if err := dt.SetParams(map[string]interface{}{"cp": 0.05, "max_depth": 4}); err != nil {
		t.Fatalf("SetParams() error = %v", err)
	}
	if dt.GetParams()["cp"].(float64) != 0.05 {
		t.Error("cp not updated")
	}
	if dt.GetParams()["max_depth"].(int) != 4 {
		t.Error("max_depth not updated")
	}

	if err := dt.SetParams(map[string]interface{}{"splitter": "best"}); err == nil {
		t.Error("SetParams() with unknown key expected error, got nil")
	}
}
