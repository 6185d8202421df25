package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/pkg/errors"
)

// ROCPoint is one operating point of a ROC curve: the false and true
// positive rates obtained by predicting positive where score >= Threshold.
type ROCPoint struct {
	Threshold float64
	FPR       float64
	TPR       float64
}

// ROCCurve is a full threshold sweep over the unique predicted scores,
// from (0, 0) at threshold +Inf down to (1, 1) at the minimum score.
type ROCCurve struct {
	Points []ROCPoint
	AUC    float64
}

// NewROCCurve sweeps thresholds over the unique values of scores and
// records one point per threshold, plus the starting point at +Inf. The
// AUC field holds the trapezoidal area under the curve, which matches the
// rank-based AUC function on the same inputs.
//
// Unlike AUC, a single-class label vector is an error here: a curve with
// an undefined axis is not worth plotting.
func NewROCCurve(yTrue, scores *mat.VecDense) (*ROCCurve, error) {
	if yTrue == nil || scores == nil {
		return nil, errors.NewValueError("NewROCCurve", "nil input vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return nil, errors.NewValueError("NewROCCurve", "empty vector")
	}

	if scores.Len() != n {
		return nil, errors.NewDimensionError("NewROCCurve", n, scores.Len(), 0)
	}

	nPos := 0
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return nil, errors.NewValueError("NewROCCurve", "labels must be binary (0 or 1)")
		}
		if label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos

	if nPos == 0 || nNeg == 0 {
		return nil, errors.NewDegenerateMetricError(
			"roc_curve", "only one class present in yTrue")
	}

	// Walk scores in descending order, emitting one point per distinct
	// threshold once its whole tie group is consumed.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return scores.AtVec(idx[a]) > scores.AtVec(idx[b])
	})

	curve := &ROCCurve{
		Points: []ROCPoint{{Threshold: math.Inf(1), FPR: 0, TPR: 0}},
	}

	tp, fp := 0, 0
	for i := 0; i < n; {
		threshold := scores.AtVec(idx[i])
		j := i
		for j < n && scores.AtVec(idx[j]) == threshold {
			if yTrue.AtVec(idx[j]) == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		curve.Points = append(curve.Points, ROCPoint{
			Threshold: threshold,
			FPR:       float64(fp) / float64(nNeg),
			TPR:       float64(tp) / float64(nPos),
		})
		i = j
	}

	// Trapezoidal area under the sweep.
	var auc float64
	for i := 1; i < len(curve.Points); i++ {
		prev := curve.Points[i-1]
		cur := curve.Points[i]
		auc += (cur.FPR - prev.FPR) * (cur.TPR + prev.TPR) / 2
	}
	curve.AUC = auc

	return curve, nil
}
