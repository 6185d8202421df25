// Package metrics provides evaluation metrics for the models in this
// project: classification metrics built around a binary confusion matrix
// and ROC analysis, plus the regression metrics the collinearity checker
// needs for its auxiliary fits.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/pkg/errors"
)

// AUC computes the area under the ROC curve for binary labels using the
// Mann-Whitney statistic: the probability that a positive sample is ranked
// above a negative one, counting ties as half. Labels must be 0 or 1.
//
// When only one class is present the AUC is undefined; an
// UndefinedMetricWarning is raised and 0.5 is returned.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUC", "nil input vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("AUC", "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError("AUC", n, yPred.Len(), 0)
	}

	nPos := 0
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return 0, errors.NewValueError("AUC", "labels must be binary (0 or 1)")
		}
		if label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"roc_auc", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}

	// Rank-sum formulation with average ranks for tied scores.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avgRank := float64(i+j+2) / 2 // 1-based average rank of the tie group
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j + 1
	}

	var posRankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			posRankSum += ranks[i]
		}
	}

	auc := (posRankSum - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
	return auc, nil
}

// AUCMatrix computes AUC from matrix inputs, using the first column of each.
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil input matrix")
	}

	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 || rPred == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}

	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}

	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}

	return AUC(yTrueVec, yPredVec)
}

// BinaryLogLoss computes the binary cross-entropy between labels and
// predicted probabilities. Probabilities are clipped away from 0 and 1 to
// keep the logarithm finite.
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("BinaryLogLoss", "nil input vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("BinaryLogLoss", "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError("BinaryLogLoss", n, yPred.Len(), 0)
	}

	const eps = 1e-15

	var sum float64
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", "labels must be binary (0 or 1)")
		}

		p := yPred.AtVec(i)
		if p < eps {
			p = eps
		}
		if p > 1-eps {
			p = 1 - eps
		}

		if label == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}

	return sum / float64(n), nil
}

// ClassificationError computes the misclassification rate, 1 - accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// Accuracy computes the fraction of exactly matching labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("Accuracy", "nil input vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// RecallScore computes the recall of the positive class (label 1):
// the fraction of true positives among all actually positive samples.
// With no positive samples in yTrue the value is undefined; an
// UndefinedMetricWarning is raised and 0 is returned.
func RecallScore(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("RecallScore", "nil input vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("RecallScore", "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError("RecallScore", n, yPred.Len(), 0)
	}

	tp, fn := 0, 0
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		pred := yPred.AtVec(i)
		if (label != 0 && label != 1) || (pred != 0 && pred != 1) {
			return 0, errors.NewValueError("RecallScore", "labels must be binary (0 or 1)")
		}
		if label == 1 {
			if pred == 1 {
				tp++
			} else {
				fn++
			}
		}
	}

	if tp+fn == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"recall", "no true positive samples in yTrue", 0))
		return 0, nil
	}

	return float64(tp) / float64(tp+fn), nil
}

// ThresholdLabels converts positive-class probabilities to hard labels:
// 1 where the probability is strictly greater than threshold, 0 otherwise.
// A probability exactly equal to the threshold goes to the negative class.
func ThresholdLabels(probs *mat.VecDense, threshold float64) (*mat.VecDense, error) {
	if probs == nil {
		return nil, errors.NewValueError("ThresholdLabels", "nil input vector")
	}

	n := probs.Len()
	if n == 0 {
		return nil, errors.NewValueError("ThresholdLabels", "empty vector")
	}

	if threshold < 0 || threshold > 1 {
		return nil, errors.NewValidationError("threshold", "must be in [0, 1]", threshold)
	}

	labels := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if probs.AtVec(i) > threshold {
			labels.SetVec(i, 1)
		} else {
			labels.SetVec(i, 0)
		}
	}

	return labels, nil
}
