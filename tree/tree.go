// Package tree implements decision tree classification with impurity
// based splitting.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/pkg/errors"
)

// DecisionTreeClassifier is a CART-style classifier. Nodes split on the
// feature and threshold with the largest impurity decrease; ties keep
// the first candidate encountered, so fits are deterministic.
//
// A non-zero complexity parameter gates splits the way cost-complexity
// pre-pruning does: a split survives only when its impurity decrease,
// scaled by the fraction of samples reaching the node, is at least
// cp times the impurity of the root.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	complexityParam float64
	maxFeatures     int
	randomState     int64

	root                *treeNode
	classes_            []int
	nClasses_           int
	nFeatures_          int
	nSamples_           int
	rootImpurity_       float64
	featureImportances_ []float64

	rng *rand.Rand
}

// treeNode is one node of the fitted tree. Leaves keep feature == -1.
type treeNode struct {
	feature     int
	threshold   float64
	left, right *treeNode
	classCounts []float64
	nSamples    int
	impurity    float64
}

// DecisionTreeOption configures a DecisionTreeClassifier.
type DecisionTreeOption func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth limits the tree depth; negative means unlimited.
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum node size eligible for splitting.
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithComplexityParameter sets the cost-complexity gate; zero disables
// it.
func WithComplexityParameter(cp float64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.complexityParam = cp
	}
}

// WithMaxFeatures restricts each split to a random subset of features;
// zero considers all of them. Random forests use this for decorrelation.
func WithMaxFeatures(m int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = m
	}
}

// WithRandomState seeds the feature subsampling.
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// NewDecisionTreeClassifier creates a tree with gini impurity and no
// depth limit.
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		complexityParam: 0,
		maxFeatures:     0,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(dt)
	}
	dt.rng = rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState)))
	return dt
}

// Fit grows the tree on X and the integer labels in y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	if dt.complexityParam < 0 {
		return errors.NewValidationError("cp", "must be non-negative", dt.complexityParam)
	}

	labels := make([]int, nSamples)
	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		labels[i] = int(y.At(i, 0))
		seen[labels[i]] = true
	}
	dt.classes_ = make([]int, 0, len(seen))
	for class := range seen {
		dt.classes_ = append(dt.classes_, class)
	}
	sort.Ints(dt.classes_)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures
	dt.nSamples_ = nSamples

	classIndex := make(map[int]int, dt.nClasses_)
	for idx, class := range dt.classes_ {
		classIndex[class] = idx
	}
	encoded := make([]int, nSamples)
	for i, label := range labels {
		encoded[i] = classIndex[label]
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	dt.featureImportances_ = make([]float64, nFeatures)
	rootCounts := countClasses(encoded, indices, dt.nClasses_)
	dt.rootImpurity_ = dt.impurity(rootCounts, nSamples)

	dt.root = dt.grow(X, encoded, indices, 0)
	normalize(dt.featureImportances_)

	dt.state.SetFitted()
	dt.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// grow recursively builds the subtree over the given sample indices.
func (dt *DecisionTreeClassifier) grow(X mat.Matrix, y []int, indices []int, depth int) *treeNode {
	counts := countClasses(y, indices, dt.nClasses_)
	node := &treeNode{
		feature:     -1,
		classCounts: counts,
		nSamples:    len(indices),
		impurity:    dt.impurity(counts, len(indices)),
	}

	if node.impurity == 0 ||
		len(indices) < dt.minSamplesSplit ||
		(dt.maxDepth >= 0 && depth >= dt.maxDepth) {
		return node
	}

	feature, threshold, decrease, ok := dt.bestSplit(X, y, indices, node.impurity)
	if !ok {
		return node
	}

	// Scale the decrease by the share of samples reaching this node, the
	// quantity both the cp gate and the importances are defined on.
	scaled := decrease * float64(len(indices)) / float64(dt.nSamples_)
	if dt.complexityParam > 0 && dt.rootImpurity_ > 0 &&
		scaled < dt.complexityParam*dt.rootImpurity_ {
		return node
	}

	var left, right []int
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	node.feature = feature
	node.threshold = threshold
	dt.featureImportances_[feature] += scaled
	node.left = dt.grow(X, y, left, depth+1)
	node.right = dt.grow(X, y, right, depth+1)
	return node
}

// bestSplit scans candidate features for the split with the largest
// impurity decrease. Ties keep the first candidate in feature order.
func (dt *DecisionTreeClassifier) bestSplit(X mat.Matrix, y []int, indices []int, nodeImpurity float64) (int, float64, float64, bool) {
	n := len(indices)
	features := dt.candidateFeatures()

	bestFeature := -1
	bestThreshold := 0.0
	bestDecrease := 0.0

	sorted := make([]int, n)
	leftCounts := make([]float64, dt.nClasses_)
	rightCounts := make([]float64, dt.nClasses_)

	for _, f := range features {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return X.At(sorted[a], f) < X.At(sorted[b], f)
		})

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = 0
		}
		for _, idx := range sorted {
			rightCounts[y[idx]]++
		}

		for pos := 1; pos < n; pos++ {
			moved := y[sorted[pos-1]]
			leftCounts[moved]++
			rightCounts[moved]--

			prev := X.At(sorted[pos-1], f)
			next := X.At(sorted[pos], f)
			if prev == next {
				continue
			}
			nL, nR := pos, n-pos
			if nL < dt.minSamplesLeaf || nR < dt.minSamplesLeaf {
				continue
			}

			impL := dt.impurity(leftCounts, nL)
			impR := dt.impurity(rightCounts, nR)
			decrease := nodeImpurity -
				float64(nL)/float64(n)*impL -
				float64(nR)/float64(n)*impR

			if decrease > bestDecrease+1e-12 {
				bestFeature = f
				bestThreshold = (prev + next) / 2
				bestDecrease = decrease
			}
		}
	}

	if bestFeature < 0 || bestDecrease <= 1e-12 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, bestDecrease, true
}

// candidateFeatures returns the features considered at one split: all of
// them in order, or a random subset when max_features is set.
func (dt *DecisionTreeClassifier) candidateFeatures() []int {
	all := make([]int, dt.nFeatures_)
	for i := range all {
		all[i] = i
	}
	if dt.maxFeatures <= 0 || dt.maxFeatures >= dt.nFeatures_ {
		return all
	}

	dt.rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	subset := all[:dt.maxFeatures]
	sort.Ints(subset)
	return subset
}

// impurity computes the configured criterion from class counts.
func (dt *DecisionTreeClassifier) impurity(counts []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	if dt.criterion == "entropy" {
		e := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / float64(n)
				e -= p * math.Log2(p)
			}
		}
		return e
	}

	g := 1.0
	for _, c := range counts {
		p := c / float64(n)
		g -= p * p
	}
	return g
}

// Predict returns the majority class of the leaf each row lands in.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < dt.nClasses_; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, float64(dt.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns leaf class frequencies, one column per class in
// ascending label order.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != dt.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.nFeatures_, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		node := dt.root
		for node.feature >= 0 {
			if X.At(i, node.feature) <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		for c := 0; c < dt.nClasses_; c++ {
			probas.Set(i, c, node.classCounts[c]/float64(node.nSamples))
		}
	}
	return probas, nil
}

// Score returns the mean accuracy of the classifier on X against y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []int {
	out := make([]int, len(dt.classes_))
	copy(out, dt.classes_)
	return out
}

// GetFeatureImportances returns the normalized impurity-decrease
// importance of each feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, len(dt.featureImportances_))
	copy(out, dt.featureImportances_)
	return out
}

// GetDepth returns the depth of the fitted tree; a root-only tree has
// depth zero.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return nodeDepth(dt.root)
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return countLeaves(dt.root)
}

// IsFitted reports whether Fit has completed successfully.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// GetParams returns the model hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"cp":                dt.complexityParam,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			dt.criterion = value.(string)
		case "max_depth":
			dt.maxDepth = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf = value.(int)
		case "cp":
			dt.complexityParam = value.(float64)
		case "max_features":
			dt.maxFeatures = value.(int)
		case "random_state":
			dt.randomState = value.(int64)
			dt.rng = rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState)))
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

func countClasses(y []int, indices []int, nClasses int) []float64 {
	counts := make([]float64, nClasses)
	for _, idx := range indices {
		counts[y[idx]]++
	}
	return counts
}

func normalize(values []float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range values {
		values[i] /= sum
	}
}

func nodeDepth(node *treeNode) int {
	if node == nil || node.feature < 0 {
		return 0
	}
	left := nodeDepth(node.left)
	right := nodeDepth(node.right)
	if left > right {
		return left + 1
	}
	return right + 1
}

func countLeaves(node *treeNode) int {
	if node == nil {
		return 0
	}
	if node.feature < 0 {
		return 1
	}
	return countLeaves(node.left) + countLeaves(node.right)
}
