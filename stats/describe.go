package stats

import (
	mstats "github.com/montanaflynn/stats"

	"github.com/peoplemetrics/attrition/dataset"
	"github.com/peoplemetrics/attrition/pkg/errors"
)

// ColumnSummary holds the descriptive statistics of one numeric column.
type ColumnSummary struct {
	Column string  `yaml:"column"`
	Count  int     `yaml:"count"`
	Mean   float64 `yaml:"mean"`
	Std    float64 `yaml:"std"`
	Min    float64 `yaml:"min"`
	Q1     float64 `yaml:"q1"`
	Median float64 `yaml:"median"`
	Q3     float64 `yaml:"q3"`
	Max    float64 `yaml:"max"`
}

// Describe summarizes every numeric column of t, in schema order.
func Describe(t *dataset.Table) ([]ColumnSummary, error) {
	if t.NRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "stats: describe")
	}

	names := t.Schema().NumericNames()
	summaries := make([]ColumnSummary, 0, len(names))
	for _, name := range names {
		values, err := t.Numeric(name)
		if err != nil {
			return nil, err
		}

		mean, err := mstats.Mean(values)
		if err != nil {
			return nil, errors.Wrapf(err, "stats: mean of %s", name)
		}
		sd, err := mstats.StandardDeviationSample(values)
		if err != nil {
			return nil, errors.Wrapf(err, "stats: standard deviation of %s", name)
		}
		minV, err := mstats.Min(values)
		if err != nil {
			return nil, errors.Wrapf(err, "stats: min of %s", name)
		}
		maxV, err := mstats.Max(values)
		if err != nil {
			return nil, errors.Wrapf(err, "stats: max of %s", name)
		}
		median, err := mstats.Median(values)
		if err != nil {
			return nil, errors.Wrapf(err, "stats: median of %s", name)
		}
		quartiles, err := mstats.Quartile(values)
		if err != nil {
			return nil, errors.Wrapf(err, "stats: quartiles of %s", name)
		}

		summaries = append(summaries, ColumnSummary{
			Column: name,
			Count:  len(values),
			Mean:   mean,
			Std:    sd,
			Min:    minV,
			Q1:     quartiles.Q1,
			Median: median,
			Q3:     quartiles.Q3,
			Max:    maxV,
		})
	}
	return summaries, nil
}
