package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/dataset"
	"github.com/peoplemetrics/attrition/linear"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// OddsRatio reports how one feature moves the odds of the positive
// outcome. Ratio is exp(Coefficient): values above 1 raise the odds per
// unit of the feature, values below 1 lower them.
type OddsRatio struct {
	Feature     string  `yaml:"feature"`
	Coefficient float64 `yaml:"coefficient"`
	Ratio       float64 `yaml:"odds_ratio"`
}

// ComputeOddsRatios fits an unpenalized logistic regression of the label
// on the named numeric features of t and returns exp(coefficient) per
// feature, sorted by descending ratio. Features enter unscaled so each
// ratio reads as odds change per original unit.
func ComputeOddsRatios(t *dataset.Table, features []string, seed int64) ([]OddsRatio, error) {
	if t.Role() == dataset.RoleTest {
		return nil, errors.NewDataLeakageError("ComputeOddsRatios",
			"fitting the auxiliary model on the held-out test partition")
	}
	if t.NRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "stats: odds ratios")
	}
	if len(features) == 0 {
		return nil, errors.NewValueError("stats.ComputeOddsRatios", "no features given")
	}

	n := t.NRows()
	X := mat.NewDense(n, len(features), nil)
	for j, name := range features {
		col, err := t.Numeric(name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			X.Set(i, j, v)
		}
	}

	y := mat.NewDense(n, 1, nil)
	for i, label := range t.Labels() {
		y.Set(i, 0, float64(label))
	}

	lr := linear.NewLogisticRegression(
		linear.WithPenalty("none"),
		linear.WithMaxIter(1000),
		linear.WithRandomState(seed),
	)
	if err := lr.Fit(X, y); err != nil {
		return nil, err
	}

	coef := lr.Coef()
	ratios := make([]OddsRatio, len(features))
	for j, name := range features {
		ratios[j] = OddsRatio{
			Feature:     name,
			Coefficient: coef[j],
			Ratio:       math.Exp(coef[j]),
		}
	}
	sort.Slice(ratios, func(i, j int) bool {
		return ratios[i].Ratio > ratios[j].Ratio
	})

	logger := log.GetLoggerWithName("stats")
	logger.Info("odds ratios computed",
		log.FeaturesKey, len(features),
		log.SamplesKey, n,
	)
	return ratios, nil
}
