// Package neighbors implements nearest-neighbor classification.
package neighbors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/core/parallel"
	"github.com/peoplemetrics/attrition/pkg/errors"
)

// KNeighborsClassifier classifies a point by a weighted vote among its k
// nearest training points under Euclidean distance.
//
// The default "optimal" weighting assigns rank-dependent weights
//
//	w_i = (1/k) * (1 + d/2 - d/(2*k^(2/d)) * (i^(1+2/d) - (i-1)^(1+2/d)))
//
// for the i-th closest neighbor in d dimensions, clipped at zero and
// renormalized. Far ranks can receive negative raw weights, which the
// clipping removes.
type KNeighborsClassifier struct {
	state *model.StateManager

	k       int
	weights string

	X_         *mat.Dense
	y_         []int
	classes_   []int
	nFeatures_ int
}

// KNeighborsOption configures a KNeighborsClassifier.
type KNeighborsOption func(*KNeighborsClassifier)

// WithK sets the number of neighbors (default 5).
func WithK(k int) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.k = k
	}
}

// WithWeights selects the vote weighting, "optimal" or "uniform".
func WithWeights(weights string) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.weights = weights
	}
}

// NewKNeighborsClassifier creates a classifier with k=5 and optimal
// weights.
func NewKNeighborsClassifier(opts ...KNeighborsOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:   model.NewStateManager(),
		k:       5,
		weights: "optimal",
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// Fit stores the training data; nearest-neighbor models defer all real
// work to prediction time.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("KNeighborsClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", 1, yCols, 1)
	}
	if knn.k < 1 {
		return errors.NewValidationError("k", "must be at least 1", knn.k)
	}
	if knn.k > nSamples {
		return errors.NewValidationError("k", "cannot exceed the number of samples", knn.k)
	}
	if knn.weights != "optimal" && knn.weights != "uniform" {
		return errors.NewValidationError("weights", "must be optimal or uniform", knn.weights)
	}

	knn.X_ = mat.DenseCopyOf(X)
	knn.y_ = make([]int, nSamples)
	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		knn.y_[i] = label
		seen[label] = true
	}

	knn.classes_ = make([]int, 0, len(seen))
	for class := range seen {
		knn.classes_ = append(knn.classes_, class)
	}
	sort.Ints(knn.classes_)
	knn.nFeatures_ = nFeatures

	knn.state.SetFitted()
	knn.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// Predict returns the majority-vote class for each row of X.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < len(knn.classes_); c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, float64(knn.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns per-class vote shares, one column per class in
// ascending label order. Rows are scored in parallel.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !knn.state.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighborsClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != knn.nFeatures_ {
		return nil, errors.NewDimensionError("KNeighborsClassifier.PredictProba", knn.nFeatures_, nFeatures, 1)
	}

	rankWeights := knn.rankWeights()
	classIndex := make(map[int]int, len(knn.classes_))
	for idx, class := range knn.classes_ {
		classIndex[class] = idx
	}

	nTrain, _ := knn.X_.Dims()
	probas := mat.NewDense(nSamples, len(knn.classes_), nil)

	parallel.Parallelize(nSamples, func(start, end int) {
		distances := make([]float64, nTrain)
		order := make([]int, nTrain)

		for i := start; i < end; i++ {
			for t := 0; t < nTrain; t++ {
				sum := 0.0
				for j := 0; j < nFeatures; j++ {
					diff := X.At(i, j) - knn.X_.At(t, j)
					sum += diff * diff
				}
				distances[t] = math.Sqrt(sum)
				order[t] = t
			}

			// Equal distances break by training index, keeping the vote
			// deterministic.
			sort.SliceStable(order, func(a, b int) bool {
				if distances[order[a]] != distances[order[b]] {
					return distances[order[a]] < distances[order[b]]
				}
				return order[a] < order[b]
			})

			votes := make([]float64, len(knn.classes_))
			for rank := 0; rank < knn.k; rank++ {
				neighbor := order[rank]
				votes[classIndex[knn.y_[neighbor]]] += rankWeights[rank]
			}
			for c, v := range votes {
				probas.Set(i, c, v)
			}
		}
	})

	return probas, nil
}

// rankWeights returns the vote weight of each neighbor rank, summing
// to one.
func (knn *KNeighborsClassifier) rankWeights() []float64 {
	w := make([]float64, knn.k)
	if knn.weights == "uniform" {
		for i := range w {
			w[i] = 1.0 / float64(knn.k)
		}
		return w
	}

	d := float64(knn.nFeatures_)
	k := float64(knn.k)
	alpha := 1.0 + 2.0/d
	scale := d / (2.0 * math.Pow(k, 2.0/d))

	sum := 0.0
	for i := 1; i <= knn.k; i++ {
		fi := float64(i)
		raw := (1.0 + d/2.0 - scale*(math.Pow(fi, alpha)-math.Pow(fi-1.0, alpha))) / k
		if raw < 0 {
			raw = 0
		}
		w[i-1] = raw
		sum += raw
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// Score returns the mean accuracy of the classifier on X against y.
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := knn.Predict(X)
	if err != nil {
		return 0, err
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the class labels in ascending order.
func (knn *KNeighborsClassifier) Classes() []int {
	out := make([]int, len(knn.classes_))
	copy(out, knn.classes_)
	return out
}

// IsFitted reports whether Fit has completed successfully.
func (knn *KNeighborsClassifier) IsFitted() bool {
	return knn.state.IsFitted()
}

// GetParams returns the model hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.k,
		"weights":     knn.weights,
	}
}

// SetParams sets the model hyperparameters.
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_neighbors":
			knn.k = value.(int)
		case "weights":
			knn.weights = value.(string)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}
