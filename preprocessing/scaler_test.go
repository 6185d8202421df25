package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const tol = 1e-10

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	r, c := scaled.Dims()
	if r != 4 || c != 2 {
		t.Fatalf("Dims() = (%d, %d), want (4, 2)", r, c)
	}

	// Each column of the transformed data has zero mean and unit variance.
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += scaled.At(i, j)
		}
		mean := sum / float64(r)
		if math.Abs(mean) > tol {
			t.Errorf("column %d mean = %v, want 0", j, mean)
		}

		sumSq := 0.0
		for i := 0; i < r; i++ {
			diff := scaled.At(i, j) - mean
			sumSq += diff * diff
		}
		std := math.Sqrt(sumSq / float64(r))
		if math.Abs(std-1) > tol {
			t.Errorf("column %d std = %v, want 1", j, std)
		}
	}
}

func TestStandardScalerUsesTrainStatistics(t *testing.T) {
	train := mat.NewDense(3, 1, []float64{0, 5, 10})
	test := mat.NewDense(2, 1, []float64{5, 15})

	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(train); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	scaled, err := scaler.Transform(test)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	// Train mean is 5 and train std is sqrt(50/3); the test values must be
	// shifted and scaled by those statistics, not their own.
	std := math.Sqrt(50.0 / 3.0)
	want := []float64{0, 10 / std}
	for i, w := range want {
		if got := scaled.At(i, 0); math.Abs(got-w) > tol {
			t.Errorf("Transform()[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestStandardScalerConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{7, 7, 7})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if got := scaled.At(i, 0); got != 0 {
			t.Errorf("constant column value = %v, want 0", got)
		}
	}
}

func TestStandardScalerInverseTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 100,
		2, 200,
		3, 300,
	})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > 1e-9 {
				t.Errorf("restored[%d,%d] = %v, want %v", i, j, restored.At(i, j), X.At(i, j))
			}
		}
	}
}

func TestStandardScalerNotFitted(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if _, err := scaler.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("Transform() before Fit expected error, got nil")
	}
}

func TestStandardScalerDimensionMismatch(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(mat.NewDense(2, 3, nil)); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if _, err := scaler.Transform(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("Transform() with wrong width expected error, got nil")
	}
}

func TestStandardScalerSwitches(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 4})

	tests := []struct {
		name     string
		withMean bool
		withStd  bool
		want     []float64
	}{
		{name: "Center only", withMean: true, withStd: false, want: []float64{-1, 1}},
		{name: "Scale only", withMean: false, withStd: true, want: []float64{2 / math.Sqrt(10), 4 / math.Sqrt(10)}},
		{name: "Neither", withMean: false, withStd: false, want: []float64{2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaler := NewStandardScaler(tt.withMean, tt.withStd)
			scaled, err := scaler.FitTransform(X)
			if err != nil {
				t.Fatalf("FitTransform() error = %v", err)
			}
			for i, w := range tt.want {
				if got := scaled.At(i, 0); math.Abs(got-w) > tol {
					t.Errorf("value[%d] = %v, want %v", i, got, w)
				}
			}
		})
	}
}
