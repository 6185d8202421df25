// Package ensemble provides the tree ensembles of the model set: bagged
// random forests and adaptive boosting over decision stumps.
package ensemble

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/core/parallel"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/tree"
)

// RandomForestClassifier bags decision trees grown on bootstrap samples,
// each split drawn from a random feature subset, and averages their class
// probabilities. Bootstrap draws and per-tree seeds all derive from one
// seed, so forests with the same seed are identical regardless of how the
// tree fits are scheduled across cores.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators    int
	maxFeatures    int
	minSamplesLeaf int
	randomState    int64

	trees_              []*tree.DecisionTreeClassifier
	treeClasses_        [][]int
	classes_            []int
	nFeatures_          int
	featureImportances_ []float64
}

// RandomForestOption configures a RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// WithNEstimators sets the number of trees (default 500).
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithMaxFeatures sets how many features each split may consider; zero
// considers all of them.
func WithMaxFeatures(m int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = m
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf of
// every tree.
func WithMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithRandomState seeds bootstrap sampling and per-split feature
// subsampling.
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// NewRandomForestClassifier creates a forest of 500 trees.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:          model.NewStateManager(),
		nEstimators:    500,
		maxFeatures:    0,
		minSamplesLeaf: 1,
		randomState:    42,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit grows the forest on X and the integer labels in y.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("RandomForestClassifier.Fit", 1, yCols, 1)
	}
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	if rf.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", rf.maxFeatures)
	}
	// An oversized subsample width falls back to considering every
	// feature at each split.
	maxFeatures := rf.maxFeatures
	if maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		seen[int(y.At(i, 0))] = true
	}
	rf.classes_ = make([]int, 0, len(seen))
	for class := range seen {
		rf.classes_ = append(rf.classes_, class)
	}
	sort.Ints(rf.classes_)
	rf.nFeatures_ = nFeatures

	// Draw every tree's bootstrap sample and seed up front, in tree
	// order, so the fit is reproducible under any parallel schedule.
	r := rand.New(rand.NewPCG(uint64(rf.randomState), uint64(rf.randomState)))
	bootstraps := make([][]int, rf.nEstimators)
	seeds := make([]int64, rf.nEstimators)
	for b := 0; b < rf.nEstimators; b++ {
		sample := make([]int, nSamples)
		for i := range sample {
			sample[i] = r.IntN(nSamples)
		}
		bootstraps[b] = sample
		seeds[b] = int64(r.Uint64() >> 1)
	}

	rf.trees_ = make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	rf.treeClasses_ = make([][]int, rf.nEstimators)
	fitErrs := make([]error, rf.nEstimators)

	parallel.Parallelize(rf.nEstimators, func(start, end int) {
		for b := start; b < end; b++ {
			sample := bootstraps[b]
			bootX := mat.NewDense(nSamples, nFeatures, nil)
			bootY := mat.NewDense(nSamples, 1, nil)
			for i, idx := range sample {
				for j := 0; j < nFeatures; j++ {
					bootX.Set(i, j, X.At(idx, j))
				}
				bootY.Set(i, 0, y.At(idx, 0))
			}

			t := tree.NewDecisionTreeClassifier(
				tree.WithMaxFeatures(maxFeatures),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithRandomState(seeds[b]),
			)
			if err := t.Fit(bootX, bootY); err != nil {
				fitErrs[b] = err
				continue
			}
			rf.trees_[b] = t
			rf.treeClasses_[b] = t.Classes()
		}
	})

	for b, err := range fitErrs {
		if err != nil {
			return errors.Wrapf(err, "ensemble: tree %d", b)
		}
	}

	rf.featureImportances_ = make([]float64, nFeatures)
	for _, t := range rf.trees_ {
		for j, imp := range t.GetFeatureImportances() {
			rf.featureImportances_[j] += imp
		}
	}
	total := 0.0
	for _, v := range rf.featureImportances_ {
		total += v
	}
	if total > 0 {
		for j := range rf.featureImportances_ {
			rf.featureImportances_[j] /= total
		}
	}

	rf.state.SetFitted()
	rf.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// Predict returns the soft-vote majority class for each row of X.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < len(rf.classes_); c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, float64(rf.classes_[best]))
	}
	return predictions, nil
}

// PredictProba averages the class probabilities of all trees, one column
// per class in ascending label order. A bootstrap sample can miss a class
// entirely, so each tree's columns are realigned to the forest's classes
// before averaging.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != rf.nFeatures_ {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.nFeatures_, nFeatures, 1)
	}

	classIndex := make(map[int]int, len(rf.classes_))
	for idx, class := range rf.classes_ {
		classIndex[class] = idx
	}

	treeProbas := make([]mat.Matrix, len(rf.trees_))
	predErrs := make([]error, len(rf.trees_))
	parallel.Parallelize(len(rf.trees_), func(start, end int) {
		for b := start; b < end; b++ {
			treeProbas[b], predErrs[b] = rf.trees_[b].PredictProba(X)
		}
	})
	for b, err := range predErrs {
		if err != nil {
			return nil, errors.Wrapf(err, "ensemble: tree %d", b)
		}
	}

	probas := mat.NewDense(nSamples, len(rf.classes_), nil)
	for b, treeProba := range treeProbas {
		for c, class := range rf.treeClasses_[b] {
			col := classIndex[class]
			for i := 0; i < nSamples; i++ {
				probas.Set(i, col, probas.At(i, col)+treeProba.At(i, c))
			}
		}
	}
	probas.Scale(1/float64(len(rf.trees_)), probas)

	return probas, nil
}

// Score returns the mean accuracy of the classifier on X against y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) Classes() []int {
	out := make([]int, len(rf.classes_))
	copy(out, rf.classes_)
	return out
}

// GetFeatureImportances returns the mean normalized impurity-decrease
// importance of each feature across the forest.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, len(rf.featureImportances_))
	copy(out, rf.featureImportances_)
	return out
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestClassifier) NEstimators() int {
	return len(rf.trees_)
}

// IsFitted reports whether Fit has completed successfully.
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// GetParams returns the model hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.nEstimators,
		"max_features":     rf.maxFeatures,
		"min_samples_leaf": rf.minSamplesLeaf,
		"random_state":     rf.randomState,
	}
}

// SetParams sets the model hyperparameters.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			rf.nEstimators = value.(int)
		case "max_features":
			rf.maxFeatures = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf = value.(int)
		case "random_state":
			rf.randomState = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}
