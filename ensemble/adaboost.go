package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
	"github.com/peoplemetrics/attrition/tree"
)

// AdaBoostClassifier boosts depth-one decision stumps with the discrete
// SAMME update. Each round fits a stump on a weight-proportional resample
// of the training data, measures its weighted error on the full set, and
// raises the weight of the rows it got wrong. Predictions are a stage
// vote: each stump votes for one class with its stage weight, and the
// per-class vote shares serve as probabilities.
type AdaBoostClassifier struct {
	state *model.StateManager

	nEstimators int
	randomState int64

	stumps_       []*tree.DecisionTreeClassifier
	stageWeights_ []float64
	stageErrors_  []float64
	classes_      []int
	nFeatures_    int
}

// AdaBoostOption configures an AdaBoostClassifier.
type AdaBoostOption func(*AdaBoostClassifier)

// WithRounds sets the number of boosting rounds (default 50).
func WithRounds(n int) AdaBoostOption {
	return func(ab *AdaBoostClassifier) {
		ab.nEstimators = n
	}
}

// WithSeed seeds the per-round resampling.
func WithSeed(seed int64) AdaBoostOption {
	return func(ab *AdaBoostClassifier) {
		ab.randomState = seed
	}
}

// NewAdaBoostClassifier creates a 50-round booster.
func NewAdaBoostClassifier(opts ...AdaBoostOption) *AdaBoostClassifier {
	ab := &AdaBoostClassifier{
		state:       model.NewStateManager(),
		nEstimators: 50,
		randomState: 42,
	}
	for _, opt := range opts {
		opt(ab)
	}
	return ab
}

// Fit runs the boosting rounds on X and the integer labels in y.
func (ab *AdaBoostClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("AdaBoostClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("AdaBoostClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("AdaBoostClassifier.Fit", 1, yCols, 1)
	}
	if ab.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", ab.nEstimators)
	}

	labels := make([]float64, nSamples)
	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		labels[i] = y.At(i, 0)
		seen[int(labels[i])] = true
	}
	ab.classes_ = make([]int, 0, len(seen))
	for class := range seen {
		ab.classes_ = append(ab.classes_, class)
	}
	sort.Ints(ab.classes_)
	ab.nFeatures_ = nFeatures

	nClasses := len(ab.classes_)
	if nClasses < 2 {
		return errors.NewValueError("AdaBoostClassifier.Fit", "training data holds a single class")
	}

	// SAMME stops accepting learners once their weighted error reaches
	// chance level for the class count.
	chance := 1.0 - 1.0/float64(nClasses)
	const minError = 1e-10

	weights := make([]float64, nSamples)
	for i := range weights {
		weights[i] = 1.0 / float64(nSamples)
	}

	r := rand.New(rand.NewPCG(uint64(ab.randomState), uint64(ab.randomState)))
	ab.stumps_ = ab.stumps_[:0]
	ab.stageWeights_ = ab.stageWeights_[:0]
	ab.stageErrors_ = ab.stageErrors_[:0]

	for round := 0; round < ab.nEstimators; round++ {
		sample := weightedDraw(weights, nSamples, r)
		stumpSeed := int64(r.Uint64() >> 1)

		roundX := mat.NewDense(nSamples, nFeatures, nil)
		roundY := mat.NewDense(nSamples, 1, nil)
		for i, idx := range sample {
			for j := 0; j < nFeatures; j++ {
				roundX.Set(i, j, X.At(idx, j))
			}
			roundY.Set(i, 0, labels[idx])
		}

		stump := tree.NewDecisionTreeClassifier(
			tree.WithMaxDepth(1),
			tree.WithRandomState(stumpSeed),
		)
		if err := stump.Fit(roundX, roundY); err != nil {
			return errors.Wrapf(err, "ensemble: boosting round %d", round)
		}

		// Weighted error over the full training set, not the resample.
		pred, err := stump.Predict(X)
		if err != nil {
			return errors.Wrapf(err, "ensemble: boosting round %d", round)
		}
		wrong := make([]bool, nSamples)
		errSum := 0.0
		for i := 0; i < nSamples; i++ {
			if pred.At(i, 0) != labels[i] {
				wrong[i] = true
				errSum += weights[i]
			}
		}

		if errSum >= chance {
			// A stump no better than chance would get a non-positive
			// stage weight; boosting has nothing more to extract.
			break
		}
		if errSum < minError {
			errSum = minError
		}

		alpha := math.Log((1-errSum)/errSum) + math.Log(float64(nClasses)-1)
		ab.stumps_ = append(ab.stumps_, stump)
		ab.stageWeights_ = append(ab.stageWeights_, alpha)
		ab.stageErrors_ = append(ab.stageErrors_, errSum)

		if errSum <= minError {
			// A perfect stump ends the run; further rounds would only
			// re-learn it.
			break
		}

		total := 0.0
		for i := range weights {
			if wrong[i] {
				weights[i] *= math.Exp(alpha)
			}
			total += weights[i]
		}
		for i := range weights {
			weights[i] /= total
		}
	}

	if len(ab.stumps_) == 0 {
		return errors.NewModelError("AdaBoostClassifier.Fit",
			"no stump performed better than chance", nil)
	}

	logger := log.GetLoggerWithName("ensemble")
	logger.Debug("boosting finished",
		log.ModelNameKey, "AdaBoostClassifier",
		log.SamplesKey, nSamples,
		"rounds", len(ab.stumps_),
		"final_error", ab.stageErrors_[len(ab.stageErrors_)-1],
	)

	ab.state.SetFitted()
	ab.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// Predict returns the stage-vote winner for each row of X.
func (ab *AdaBoostClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := ab.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < len(ab.classes_); c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, float64(ab.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns each class's share of the total stage-weighted
// vote, one column per class in ascending label order.
func (ab *AdaBoostClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !ab.state.IsFitted() {
		return nil, errors.NewNotFittedError("AdaBoostClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != ab.nFeatures_ {
		return nil, errors.NewDimensionError("AdaBoostClassifier.PredictProba", ab.nFeatures_, nFeatures, 1)
	}

	classIndex := make(map[int]int, len(ab.classes_))
	for idx, class := range ab.classes_ {
		classIndex[class] = idx
	}

	scores := mat.NewDense(nSamples, len(ab.classes_), nil)
	totalAlpha := 0.0
	for m, stump := range ab.stumps_ {
		pred, err := stump.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "ensemble: stump %d", m)
		}
		alpha := ab.stageWeights_[m]
		totalAlpha += alpha
		for i := 0; i < nSamples; i++ {
			col := classIndex[int(pred.At(i, 0))]
			scores.Set(i, col, scores.At(i, col)+alpha)
		}
	}

	scores.Scale(1/totalAlpha, scores)
	return scores, nil
}

// Score returns the mean accuracy of the classifier on X against y.
func (ab *AdaBoostClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := ab.Predict(X)
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
func (ab *AdaBoostClassifier) Classes() []int {
	out := make([]int, len(ab.classes_))
	copy(out, ab.classes_)
	return out
}

// GetFeatureImportances returns the stage-weighted mean importance of
// each feature across the stumps, normalized to sum to one.
func (ab *AdaBoostClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, ab.nFeatures_)
	for m, stump := range ab.stumps_ {
		for j, imp := range stump.GetFeatureImportances() {
			out[j] += ab.stageWeights_[m] * imp
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// NRounds returns the number of boosting rounds actually kept; early
// stopping can leave it below the configured round count.
func (ab *AdaBoostClassifier) NRounds() int {
	return len(ab.stumps_)
}

// StageErrors returns the weighted training error of each kept round.
func (ab *AdaBoostClassifier) StageErrors() []float64 {
	out := make([]float64, len(ab.stageErrors_))
	copy(out, ab.stageErrors_)
	return out
}

// IsFitted reports whether Fit has completed successfully.
func (ab *AdaBoostClassifier) IsFitted() bool {
	return ab.state.IsFitted()
}

// GetParams returns the model hyperparameters.
func (ab *AdaBoostClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators": ab.nEstimators,
		"random_state": ab.randomState,
	}
}

// SetParams sets the model hyperparameters.
func (ab *AdaBoostClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			ab.nEstimators = value.(int)
		case "random_state":
			ab.randomState = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

// weightedDraw samples n indices with replacement, each index drawn with
// probability proportional to its weight.
func weightedDraw(weights []float64, n int, r *rand.Rand) []int {
	cumulative := make([]float64, len(weights))
	sum := 0.0
	for i, w := range weights {
		sum += w
		cumulative[i] = sum
	}

	out := make([]int, n)
	for k := 0; k < n; k++ {
		u := r.Float64() * sum
		lo, hi := 0, len(cumulative)-1
		for lo < hi {
			mid := (lo + hi) / 2
			if cumulative[mid] < u {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		out[k] = lo
	}
	return out
}
