package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/linear"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// VIFResult holds the variance inflation factor of one feature. A value
// of +Inf means the feature is an exact linear combination of the others.
type VIFResult struct {
	Feature string  `yaml:"feature"`
	VIF     float64 `yaml:"vif"`
}

// Checker computes variance inflation factors by regressing each feature
// on all remaining features and converting the fit quality to
// VIF = 1 / (1 - R^2).
type Checker struct {
	threshold float64
	strict    bool
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithVIFThreshold sets the value above which a feature counts as
// collinear (default 10).
func WithVIFThreshold(threshold float64) CheckerOption {
	return func(c *Checker) {
		c.threshold = threshold
	}
}

// WithStrict makes Check return a CollinearityError for the worst
// offending feature instead of just reporting it.
func WithStrict(strict bool) CheckerOption {
	return func(c *Checker) {
		c.strict = strict
	}
}

// NewChecker creates a Checker with a threshold of 10.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{threshold: 10.0}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured collinearity threshold.
func (c *Checker) Threshold() float64 {
	return c.threshold
}

// Check computes the variance inflation factor of every column of X.
// names labels the columns and must match the width of X. Results come
// back in column order.
func (c *Checker) Check(X mat.Matrix, names []string) ([]VIFResult, error) {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "stats: vif check")
	}
	if len(names) != p {
		return nil, errors.NewDimensionError("stats.Check", p, len(names), 1)
	}

	results := make([]VIFResult, p)
	for j := 0; j < p; j++ {
		vif, err := c.columnVIF(X, j)
		if err != nil {
			return nil, err
		}
		results[j] = VIFResult{Feature: names[j], VIF: vif}
	}

	logger := log.GetLoggerWithName("stats")
	flagged := 0
	for _, r := range results {
		if r.VIF > c.threshold {
			flagged++
		}
	}
	logger.Info("collinearity check finished",
		log.FeaturesKey, p,
		"flagged", flagged,
	)

	if c.strict {
		worst := -1
		for j, r := range results {
			if r.VIF > c.threshold && (worst < 0 || r.VIF > results[worst].VIF) {
				worst = j
			}
		}
		if worst >= 0 {
			return results, errors.NewCollinearityError(results[worst].Feature, results[worst].VIF)
		}
	}

	return results, nil
}

// columnVIF regresses column j on the remaining columns and converts the
// resulting R^2 to a variance inflation factor.
func (c *Checker) columnVIF(X mat.Matrix, j int) (float64, error) {
	n, p := X.Dims()

	// With a single feature there is nothing to regress on.
	if p == 1 {
		return 1.0, nil
	}

	y := mat.NewDense(n, 1, nil)
	others := mat.NewDense(n, p-1, nil)
	for i := 0; i < n; i++ {
		y.Set(i, 0, X.At(i, j))
		col := 0
		for k := 0; k < p; k++ {
			if k == j {
				continue
			}
			others.Set(i, col, X.At(i, k))
			col++
		}
	}

	lr := linear.NewLinearRegression()
	if err := lr.Fit(others, y); err != nil {
		// The remaining columns are themselves dependent, which happens
		// whenever a full indicator group is present. A lightly ridged
		// solve still yields a usable R^2 for this column.
		if errors.Is(err, errors.ErrSingularMatrix) {
			return ridgeVIF(others, y)
		}
		return 0, err
	}

	r2, err := lr.Score(others, y)
	if err != nil {
		// A constant column carries no variance of its own and is
		// explained entirely by the intercept.
		return math.Inf(1), nil
	}

	if r2 >= 1.0-1e-12 {
		return math.Inf(1), nil
	}
	if math.IsNaN(r2) {
		return math.Inf(1), nil
	}
	return 1.0 / (1.0 - r2), nil
}

// ridgeVIF solves the auxiliary regression with a small ridge penalty,
// (A^T A + eps I) w = A^T y, which stays solvable on rank-deficient
// designs, and converts the resulting R^2 to a VIF.
func ridgeVIF(others *mat.Dense, y *mat.Dense) (float64, error) {
	const eps = 1e-8

	n, p := others.Dims()
	A := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		A.Set(i, 0, 1.0)
		for j := 0; j < p; j++ {
			A.Set(i, j+1, others.At(i, j))
		}
	}

	var AT mat.Dense
	AT.CloneFrom(A.T())

	var ATA mat.Dense
	ATA.Mul(&AT, A)
	for j := 0; j <= p; j++ {
		ATA.Set(j, j, ATA.At(j, j)+eps)
	}

	var inv mat.Dense
	if err := inv.Inverse(&ATA); err != nil {
		return math.Inf(1), nil
	}

	yVec := mat.NewVecDense(n, nil)
	var yMean float64
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		yVec.SetVec(i, v)
		yMean += v
	}
	yMean /= float64(n)

	var ATy mat.VecDense
	ATy.MulVec(&AT, yVec)

	w := mat.NewVecDense(p+1, nil)
	w.MulVec(&inv, &ATy)

	var tss, rss float64
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j <= p; j++ {
			pred += A.At(i, j) * w.AtVec(j)
		}
		resid := y.At(i, 0) - pred
		rss += resid * resid
		dev := y.At(i, 0) - yMean
		tss += dev * dev
	}

	if tss == 0 {
		return math.Inf(1), nil
	}
	r2 := 1 - rss/tss
	if r2 >= 1.0-1e-12 || math.IsNaN(r2) {
		return math.Inf(1), nil
	}
	return 1.0 / (1.0 - r2), nil
}

// RemoveColumns returns a copy of X without the named columns, along
// with the surviving names, so a model can be refitted after dropping
// collinear features.
func RemoveColumns(X mat.Matrix, names []string, drop []string) (*mat.Dense, []string, error) {
	n, p := X.Dims()
	if len(names) != p {
		return nil, nil, errors.NewDimensionError("stats.RemoveColumns", p, len(names), 1)
	}

	dropSet := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}

	var keep []int
	var keptNames []string
	for j, name := range names {
		if !dropSet[name] {
			keep = append(keep, j)
			keptNames = append(keptNames, name)
		}
	}
	if len(keep) == 0 {
		return nil, nil, errors.NewValueError("stats.RemoveColumns", "removing all columns leaves no features")
	}
	if len(keep) == p {
		out := mat.DenseCopyOf(X)
		return out, keptNames, nil
	}

	out := mat.NewDense(n, len(keep), nil)
	for i := 0; i < n; i++ {
		for idx, j := range keep {
			out.Set(i, idx, X.At(i, j))
		}
	}
	return out, keptNames, nil
}
