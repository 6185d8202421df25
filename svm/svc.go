// Package svm provides a binary support vector classifier with a radial
// basis kernel, trained by sequential minimal optimization and calibrated
// with a Platt sigmoid for probability output.
package svm

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// stableSweeps is the number of consecutive full passes without a
// multiplier update that ends SMO training.
const stableSweeps = 3

// SVC is a C-support vector classifier with the kernel
// k(x, y) = exp(-gamma * ||x-y||^2). Training solves the dual problem
// with a randomized working-pair SMO sweep; Predict follows the sign of
// the decision function and PredictProba maps decision values through a
// Platt sigmoid fitted on the training set.
type SVC struct {
	state *model.StateManager

	c           float64
	gamma       float64
	tol         float64
	maxIter     int
	randomState int64

	classes_   []int
	supportX_  *mat.Dense
	dualCoef_  []float64
	intercept_ float64
	plattA_    float64
	plattB_    float64
	nFeatures_ int
	nIter_     int
}

// SVCOption configures an SVC.
type SVCOption func(*SVC)

// WithC sets the soft-margin cost (default 1).
func WithC(c float64) SVCOption {
	return func(s *SVC) {
		s.c = c
	}
}

// WithGamma sets the RBF width multiplier (default 0.5).
func WithGamma(gamma float64) SVCOption {
	return func(s *SVC) {
		s.gamma = gamma
	}
}

// WithTol sets the KKT violation tolerance (default 1e-3).
func WithTol(tol float64) SVCOption {
	return func(s *SVC) {
		s.tol = tol
	}
}

// WithMaxIter caps the number of full SMO sweeps (default 200).
func WithMaxIter(n int) SVCOption {
	return func(s *SVC) {
		s.maxIter = n
	}
}

// WithRandomState seeds the working-pair selection.
func WithRandomState(seed int64) SVCOption {
	return func(s *SVC) {
		s.randomState = seed
	}
}

// NewSVC creates a support vector classifier.
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:       model.NewStateManager(),
		c:           1.0,
		gamma:       0.5,
		tol:         1e-3,
		maxIter:     200,
		randomState: 42,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit solves the dual problem on X and the binary labels in y, then fits
// the Platt sigmoid on the resulting training decision values.
func (s *SVC) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("SVC.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("SVC.Fit", 1, yCols, 1)
	}
	if s.c <= 0 {
		return errors.NewValidationError("C", "must be positive", s.c)
	}
	if s.gamma <= 0 {
		return errors.NewValidationError("gamma", "must be positive", s.gamma)
	}
	if s.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", s.tol)
	}
	if s.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", s.maxIter)
	}

	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		seen[int(y.At(i, 0))] = true
	}
	classes := make([]int, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	if len(classes) != 2 {
		return errors.NewValueError("SVC.Fit", "exactly two classes are required")
	}
	s.classes_ = classes
	s.nFeatures_ = nFeatures

	// Signed targets: the lower class label is the negative side.
	signs := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		if int(y.At(i, 0)) == classes[1] {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}

	kernel := s.kernelMatrix(X)
	alpha := make([]float64, nSamples)
	b := 0.0

	decide := func(i int) float64 {
		sum := b
		for j := 0; j < nSamples; j++ {
			if alpha[j] > 0 {
				sum += alpha[j] * signs[j] * kernel[j*nSamples+i]
			}
		}
		return sum
	}

	r := rand.New(rand.NewPCG(uint64(s.randomState), uint64(s.randomState)))
	sweeps := 0
	stable := 0
	for sweeps < s.maxIter && stable < stableSweeps {
		changed := 0
		for i := 0; i < nSamples; i++ {
			errI := decide(i) - signs[i]
			violates := (signs[i]*errI < -s.tol && alpha[i] < s.c) ||
				(signs[i]*errI > s.tol && alpha[i] > 0)
			if !violates {
				continue
			}

			j := r.IntN(nSamples - 1)
			if j >= i {
				j++
			}
			errJ := decide(j) - signs[j]

			alphaI, alphaJ := alpha[i], alpha[j]
			var lo, hi float64
			if signs[i] != signs[j] {
				lo = math.Max(0, alphaJ-alphaI)
				hi = math.Min(s.c, s.c+alphaJ-alphaI)
			} else {
				lo = math.Max(0, alphaI+alphaJ-s.c)
				hi = math.Min(s.c, alphaI+alphaJ)
			}
			if lo == hi {
				continue
			}

			eta := 2*kernel[i*nSamples+j] - kernel[i*nSamples+i] - kernel[j*nSamples+j]
			if eta >= 0 {
				continue
			}

			next := alphaJ - signs[j]*(errI-errJ)/eta
			if next > hi {
				next = hi
			} else if next < lo {
				next = lo
			}
			if math.Abs(next-alphaJ) < 1e-7 {
				continue
			}
			alpha[j] = next
			alpha[i] = alphaI + signs[i]*signs[j]*(alphaJ-next)

			b1 := b - errI -
				signs[i]*(alpha[i]-alphaI)*kernel[i*nSamples+i] -
				signs[j]*(alpha[j]-alphaJ)*kernel[i*nSamples+j]
			b2 := b - errJ -
				signs[i]*(alpha[i]-alphaI)*kernel[i*nSamples+j] -
				signs[j]*(alpha[j]-alphaJ)*kernel[j*nSamples+j]
			switch {
			case alpha[i] > 0 && alpha[i] < s.c:
				b = b1
			case alpha[j] > 0 && alpha[j] < s.c:
				b = b2
			default:
				b = (b1 + b2) / 2
			}
			changed++
		}

		if changed == 0 {
			stable++
		} else {
			stable = 0
		}
		sweeps++
	}
	s.nIter_ = sweeps
	if stable < stableSweeps {
		errors.Warn(errors.NewConvergenceWarning("SMO", sweeps,
			"sweep cap reached before the multipliers stabilized"))
	}

	// Keep only the support vectors.
	var keep []int
	for i, a := range alpha {
		if a > 0 {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return errors.NewModelError("SVC.Fit", "no support vectors found", nil)
	}
	s.supportX_ = mat.NewDense(len(keep), nFeatures, nil)
	s.dualCoef_ = make([]float64, len(keep))
	for sv, idx := range keep {
		for f := 0; f < nFeatures; f++ {
			s.supportX_.Set(sv, f, X.At(idx, f))
		}
		s.dualCoef_[sv] = alpha[idx] * signs[idx]
	}
	s.intercept_ = b

	// Calibrate the sigmoid on the training decision values.
	decisions := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		decisions[i] = decide(i)
	}
	s.plattA_, s.plattB_ = fitPlattSigmoid(decisions, signs)

	logger := log.GetLoggerWithName("svm")
	logger.Debug("smo finished",
		log.ModelNameKey, "SVC",
		log.SamplesKey, nSamples,
		log.IterationKey, sweeps,
		"support_vectors", len(keep),
	)

	s.state.SetFitted()
	s.state.SetDimensions(nFeatures, nSamples)
	return nil
}

// DecisionFunction returns the signed distance surrogate for each row of
// X. Positive values fall on the higher class label's side.
func (s *SVC) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if !s.state.IsFitted() {
		return nil, errors.NewNotFittedError("SVC", "DecisionFunction")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != s.nFeatures_ {
		return nil, errors.NewDimensionError("SVC.DecisionFunction", s.nFeatures_, nFeatures, 1)
	}

	nSV, _ := s.supportX_.Dims()
	out := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		sum := s.intercept_
		for sv := 0; sv < nSV; sv++ {
			dist2 := 0.0
			for f := 0; f < nFeatures; f++ {
				d := X.At(i, f) - s.supportX_.At(sv, f)
				dist2 += d * d
			}
			sum += s.dualCoef_[sv] * math.Exp(-s.gamma*dist2)
		}
		out[i] = sum
	}
	return out, nil
}

// Predict returns the class on whose side of the margin each row falls.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	decisions, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	predictions := mat.NewDense(len(decisions), 1, nil)
	for i, d := range decisions {
		if d > 0 {
			predictions.Set(i, 0, float64(s.classes_[1]))
		} else {
			predictions.Set(i, 0, float64(s.classes_[0]))
		}
	}
	return predictions, nil
}

// PredictProba returns Platt-calibrated probabilities, one column per
// class in ascending label order.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	decisions, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	probas := mat.NewDense(len(decisions), 2, nil)
	for i, d := range decisions {
		pos := sigmoidPredict(d, s.plattA_, s.plattB_)
		probas.Set(i, 0, 1-pos)
		probas.Set(i, 1, pos)
	}
	return probas, nil
}

// Score returns the mean accuracy of the classifier on X against y.
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := s.Predict(X)
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

// Classes returns the two class labels in ascending order.
func (s *SVC) Classes() []int {
	out := make([]int, len(s.classes_))
	copy(out, s.classes_)
	return out
}

// NSupport returns the number of support vectors kept after training.
func (s *SVC) NSupport() int {
	if s.supportX_ == nil {
		return 0
	}
	n, _ := s.supportX_.Dims()
	return n
}

// NIter returns the number of SMO sweeps run during the last fit.
func (s *SVC) NIter() int {
	return s.nIter_
}

// IsFitted reports whether Fit has completed successfully.
func (s *SVC) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams returns the model hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            s.c,
		"gamma":        s.gamma,
		"tol":          s.tol,
		"max_iter":     s.maxIter,
		"random_state": s.randomState,
	}
}

// SetParams sets the model hyperparameters.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			s.c = value.(float64)
		case "gamma":
			s.gamma = value.(float64)
		case "tol":
			s.tol = value.(float64)
		case "max_iter":
			s.maxIter = value.(int)
		case "random_state":
			s.randomState = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

// kernelMatrix precomputes the full RBF gram matrix in row-major order.
func (s *SVC) kernelMatrix(X mat.Matrix) []float64 {
	n, nFeatures := X.Dims()
	kernel := make([]float64, n*n)
	for i := 0; i < n; i++ {
		kernel[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			dist2 := 0.0
			for f := 0; f < nFeatures; f++ {
				d := X.At(i, f) - X.At(j, f)
				dist2 += d * d
			}
			k := math.Exp(-s.gamma * dist2)
			kernel[i*n+j] = k
			kernel[j*n+i] = k
		}
	}
	return kernel
}

// fitPlattSigmoid fits P(class = +1 | f) = 1 / (1 + exp(A*f + B)) by
// Newton's method with backtracking on the regularized maximum-likelihood
// targets. signs holds the +-1 training labels.
func fitPlattSigmoid(decisions, signs []float64) (float64, float64) {
	n := len(decisions)
	posCount, negCount := 0.0, 0.0
	for _, s := range signs {
		if s > 0 {
			posCount++
		} else {
			negCount++
		}
	}

	hiTarget := (posCount + 1) / (posCount + 2)
	loTarget := 1 / (negCount + 2)
	targets := make([]float64, n)
	for i, s := range signs {
		if s > 0 {
			targets[i] = hiTarget
		} else {
			targets[i] = loTarget
		}
	}

	const (
		maxNewton = 100
		minStep   = 1e-10
		ridge     = 1e-12
		eps       = 1e-5
	)

	a := 0.0
	b := math.Log((negCount + 1) / (posCount + 1))
	fval := plattObjective(decisions, targets, a, b)

	for iter := 0; iter < maxNewton; iter++ {
		h11, h22 := ridge, ridge
		h21, g1, g2 := 0.0, 0.0, 0.0
		for i := 0; i < n; i++ {
			fApB := decisions[i]*a + b
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p = e / (1 + e)
				q = 1 / (1 + e)
			} else {
				e := math.Exp(fApB)
				p = 1 / (1 + e)
				q = e / (1 + e)
			}
			d2 := p * q
			h11 += decisions[i] * decisions[i] * d2
			h22 += d2
			h21 += decisions[i] * d2
			d1 := targets[i] - p
			g1 += decisions[i] * d1
			g2 += d1
		}

		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA := a + step*dA
			newB := b + step*dB
			newF := plattObjective(decisions, targets, newA, newB)
			if newF < fval+1e-4*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return a, b
}

// plattObjective is the cross-entropy of the sigmoid fit, written to
// avoid overflow for large |A*f + B|.
func plattObjective(decisions, targets []float64, a, b float64) float64 {
	obj := 0.0
	for i, f := range decisions {
		fApB := f*a + b
		if fApB >= 0 {
			obj += targets[i]*fApB + math.Log1p(math.Exp(-fApB))
		} else {
			obj += (targets[i]-1)*fApB + math.Log1p(math.Exp(fApB))
		}
	}
	return obj
}

// sigmoidPredict maps a decision value through the fitted sigmoid,
// returning P(class = +1).
func sigmoidPredict(decision, a, b float64) float64 {
	fApB := decision*a + b
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}
