package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/pkg/errors"
)

// ConfusionMatrix holds the four cells of a binary confusion matrix. The
// caller chooses which class value counts as positive; all derived rates
// follow that choice.
type ConfusionMatrix struct {
	TP int
	FP int
	TN int
	FN int

	// Positive is the class value treated as positive.
	Positive int
}

// NewConfusionMatrix tallies predictions against true labels. Both vectors
// must hold binary labels (0 or 1), and positive selects which of the two
// is the positive class.
func NewConfusionMatrix(yTrue, yPred *mat.VecDense, positive int) (*ConfusionMatrix, error) {
	if yTrue == nil || yPred == nil {
		return nil, errors.NewValueError("NewConfusionMatrix", "nil input vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return nil, errors.NewValueError("NewConfusionMatrix", "empty vector")
	}

	if yPred.Len() != n {
		return nil, errors.NewDimensionError("NewConfusionMatrix", n, yPred.Len(), 0)
	}

	if positive != 0 && positive != 1 {
		return nil, errors.NewValidationError("positive", "must be 0 or 1", positive)
	}

	pos := float64(positive)
	cm := &ConfusionMatrix{Positive: positive}
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		if (t != 0 && t != 1) || (p != 0 && p != 1) {
			return nil, errors.NewValueError("NewConfusionMatrix", "labels must be binary (0 or 1)")
		}

		switch {
		case t == pos && p == pos:
			cm.TP++
		case t == pos && p != pos:
			cm.FN++
		case t != pos && p == pos:
			cm.FP++
		default:
			cm.TN++
		}
	}

	return cm, nil
}

// Total returns the number of samples tallied.
func (cm *ConfusionMatrix) Total() int {
	return cm.TP + cm.FP + cm.TN + cm.FN
}

// Accuracy returns the fraction of correct predictions.
func (cm *ConfusionMatrix) Accuracy() float64 {
	return float64(cm.TP+cm.TN) / float64(cm.Total())
}

// Precision returns TP / (TP + FP). With no predicted positives the value
// is undefined; an UndefinedMetricWarning is raised and 0 is returned.
func (cm *ConfusionMatrix) Precision() float64 {
	denom := cm.TP + cm.FP
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"precision", "no predicted positive samples", 0))
		return 0
	}
	return float64(cm.TP) / float64(denom)
}

// Recall returns TP / (TP + FN), the true positive rate.
func (cm *ConfusionMatrix) Recall() float64 {
	denom := cm.TP + cm.FN
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"recall", "no true positive samples in yTrue", 0))
		return 0
	}
	return float64(cm.TP) / float64(denom)
}

// Specificity returns TN / (TN + FP), the true negative rate.
func (cm *ConfusionMatrix) Specificity() float64 {
	denom := cm.TN + cm.FP
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"specificity", "no true negative samples in yTrue", 0))
		return 0
	}
	return float64(cm.TN) / float64(denom)
}

// BalancedAccuracy returns the mean of recall and specificity.
func (cm *ConfusionMatrix) BalancedAccuracy() float64 {
	return (cm.Recall() + cm.Specificity()) / 2
}

// F1 returns the harmonic mean of precision and recall. When both are zero
// the score is undefined: an UndefinedMetricWarning is raised and NaN is
// returned so reports can show the value as unavailable rather than a
// misleading zero.
func (cm *ConfusionMatrix) F1() float64 {
	p := cm.Precision()
	r := cm.Recall()
	if p+r == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"f1_score", "precision and recall are both zero", math.NaN()))
		return math.NaN()
	}
	return 2 * p * r / (p + r)
}

// Kappa returns Cohen's kappa, chance-corrected agreement between
// predictions and labels. NaN is returned when expected agreement is 1.
func (cm *ConfusionMatrix) Kappa() float64 {
	n := float64(cm.Total())
	po := float64(cm.TP+cm.TN) / n

	predPos := float64(cm.TP + cm.FP)
	predNeg := float64(cm.FN + cm.TN)
	truePos := float64(cm.TP + cm.FN)
	trueNeg := float64(cm.FP + cm.TN)

	pe := (predPos*truePos + predNeg*trueNeg) / (n * n)
	if pe == 1 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"kappa", "expected agreement is 1", math.NaN()))
		return math.NaN()
	}

	return (po - pe) / (1 - pe)
}
