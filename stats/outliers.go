// Package stats provides the screening statistics that run before and
// after model training: column summaries, outlier scans, odds ratios,
// and collinearity checks.
package stats

import (
	mstats "github.com/montanaflynn/stats"

	"github.com/peoplemetrics/attrition/dataset"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// ColumnOutliers reports the rows of one numeric column flagged by the
// interquartile-range fences or the z-score rule.
type ColumnOutliers struct {
	Column         string  `yaml:"column"`
	LowerFence     float64 `yaml:"lower_fence"`
	UpperFence     float64 `yaml:"upper_fence"`
	IQROutliers    []int   `yaml:"iqr_outliers,flow"`
	ZScoreOutliers []int   `yaml:"zscore_outliers,flow"`
}

// Scanner flags suspicious values in numeric columns. Scanning is purely
// advisory: the table is never modified, and scanning twice returns the
// same report.
type Scanner struct {
	iqrMultiplier float64
	zScoreLimit   float64
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithIQRMultiplier sets the fence width in interquartile ranges
// (default 4).
func WithIQRMultiplier(m float64) ScannerOption {
	return func(s *Scanner) {
		s.iqrMultiplier = m
	}
}

// WithZScoreLimit sets the absolute z-score above which a value is
// flagged (default 4).
func WithZScoreLimit(z float64) ScannerOption {
	return func(s *Scanner) {
		s.zScoreLimit = z
	}
}

// NewScanner creates a Scanner with wide default fences, so only extreme
// values are flagged.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		iqrMultiplier: 4.0,
		zScoreLimit:   4.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan inspects every numeric column of t and returns the columns with
// at least one flagged row.
func (s *Scanner) Scan(t *dataset.Table) ([]ColumnOutliers, error) {
	if t.NRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "stats: outlier scan")
	}

	var report []ColumnOutliers
	for _, name := range t.Schema().NumericNames() {
		values, err := t.Numeric(name)
		if err != nil {
			return nil, err
		}

		co, err := s.scanColumn(name, values)
		if err != nil {
			return nil, err
		}
		if len(co.IQROutliers) > 0 || len(co.ZScoreOutliers) > 0 {
			report = append(report, co)
		}
	}

	logger := log.GetLoggerWithName("stats")
	logger.Info("outlier scan finished",
		log.SamplesKey, t.NRows(),
		"columns_flagged", len(report),
	)
	return report, nil
}

func (s *Scanner) scanColumn(name string, values []float64) (ColumnOutliers, error) {
	co := ColumnOutliers{Column: name}

	quartiles, err := mstats.Quartile(values)
	if err != nil {
		return co, errors.Wrapf(err, "stats: quartiles of %s", name)
	}
	iqr := quartiles.Q3 - quartiles.Q1
	co.LowerFence = quartiles.Q1 - s.iqrMultiplier*iqr
	co.UpperFence = quartiles.Q3 + s.iqrMultiplier*iqr

	for i, v := range values {
		if v < co.LowerFence || v > co.UpperFence {
			co.IQROutliers = append(co.IQROutliers, i)
		}
	}

	mean, err := mstats.Mean(values)
	if err != nil {
		return co, errors.Wrapf(err, "stats: mean of %s", name)
	}
	sd, err := mstats.StandardDeviationSample(values)
	if err != nil {
		return co, errors.Wrapf(err, "stats: standard deviation of %s", name)
	}

	// A constant column has no spread, so the z-score rule cannot fire.
	if sd > 0 {
		for i, v := range values {
			z := (v - mean) / sd
			if z > s.zScoreLimit || z < -s.zScoreLimit {
				co.ZScoreOutliers = append(co.ZScoreOutliers, i)
			}
		}
	}

	return co, nil
}
