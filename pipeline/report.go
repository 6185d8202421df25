package pipeline

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/peoplemetrics/attrition/metrics"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/stats"
)

// MetricValue is a float64 that serializes NaN as the explicit "N/A"
// sentinel, so an undefined metric stays visible in reports instead of
// disappearing into a bare nan.
type MetricValue float64

// MarshalYAML implements yaml.Marshaler.
func (m MetricValue) MarshalYAML() (interface{}, error) {
	if math.IsNaN(float64(m)) {
		return "N/A", nil
	}
	return float64(m), nil
}

// String formats the value for text summaries.
func (m MetricValue) String() string {
	if math.IsNaN(float64(m)) {
		return "N/A"
	}
	return fmt.Sprintf("%.4f", float64(m))
}

// ClassBalance counts the rows per label value of one partition.
type ClassBalance struct {
	Positive     int     `yaml:"positive"`
	Negative     int     `yaml:"negative"`
	PositiveRate float64 `yaml:"positive_rate"`
}

// SplitSummary records the partition sizes and their label balance.
type SplitSummary struct {
	TrainRows int          `yaml:"train_rows"`
	TestRows  int          `yaml:"test_rows"`
	Train     ClassBalance `yaml:"train"`
	Test      ClassBalance `yaml:"test"`
}

// ResampleSummary records the training-set balance before and after
// minority upsampling.
type ResampleSummary struct {
	Before ClassBalance `yaml:"before"`
	After  ClassBalance `yaml:"after"`
}

// CollinearityReport summarizes the variance-inflation pass over the
// logistic design matrix: the initial per-feature factors and the
// columns removed as exact linear dependencies.
type CollinearityReport struct {
	Threshold float64           `yaml:"threshold"`
	Results   []stats.VIFResult `yaml:"results,omitempty"`
	Removed   []string          `yaml:"removed,omitempty"`
}

// CandidateReport is one grid candidate with its cross-validated mean
// and standard deviation.
type CandidateReport struct {
	Params map[string]interface{} `yaml:"params"`
	Mean   float64                `yaml:"mean"`
	Std    float64                `yaml:"std"`
}

// CVSummary reports the cross-validation behind one selected model.
type CVSummary struct {
	Scoring    string            `yaml:"scoring"`
	Folds      int               `yaml:"folds"`
	BestScore  float64           `yaml:"best_score"`
	BestStd    float64           `yaml:"best_std"`
	Candidates []CandidateReport `yaml:"candidates,omitempty"`
}

// ConfusionReport holds the four confusion-matrix cells.
type ConfusionReport struct {
	TP int `yaml:"tp"`
	FP int `yaml:"fp"`
	TN int `yaml:"tn"`
	FN int `yaml:"fn"`
}

// ModelMetrics holds the derived test-set metrics of one model.
type ModelMetrics struct {
	Accuracy         MetricValue `yaml:"accuracy"`
	BalancedAccuracy MetricValue `yaml:"balanced_accuracy"`
	Precision        MetricValue `yaml:"precision"`
	Recall           MetricValue `yaml:"recall"`
	Specificity      MetricValue `yaml:"specificity"`
	F1               MetricValue `yaml:"f1"`
	Kappa            MetricValue `yaml:"kappa"`
	AUC              MetricValue `yaml:"auc"`
}

// FeatureWeight pairs a feature name with its importance.
type FeatureWeight struct {
	Feature string  `yaml:"feature"`
	Weight  float64 `yaml:"weight"`
}

// ModelReport is the evaluation of one trained model on the held-out
// test partition. Threshold is the custom probability cut where one was
// applied; zero means the model's own decision rule.
type ModelReport struct {
	Family      string                 `yaml:"family"`
	TrainedOn   string                 `yaml:"trained_on"`
	Threshold   float64                `yaml:"threshold,omitempty"`
	BestParams  map[string]interface{} `yaml:"best_params,omitempty"`
	CV          *CVSummary             `yaml:"cv,omitempty"`
	Confusion   ConfusionReport        `yaml:"confusion"`
	Metrics     ModelMetrics           `yaml:"metrics"`
	TopFeatures []FeatureWeight        `yaml:"top_features,omitempty"`
	ROCPlot     string                 `yaml:"roc_plot,omitempty"`

	// ROC carries the full curve for plotting; the YAML summary keeps
	// only the area.
	ROC []metrics.ROCPoint `yaml:"-"`
}

// Report is the full outcome of one pipeline run.
type Report struct {
	RunID       string    `yaml:"run_id"`
	GeneratedAt time.Time `yaml:"generated_at"`
	DataPath    string    `yaml:"data_path"`
	Seed        int       `yaml:"seed"`
	Rows        int       `yaml:"rows"`
	Features    int       `yaml:"features"`

	Summary  []stats.ColumnSummary  `yaml:"summary,omitempty"`
	Outliers []stats.ColumnOutliers `yaml:"outliers,omitempty"`

	Split      SplitSummary      `yaml:"split"`
	OddsRatios []stats.OddsRatio `yaml:"odds_ratios,omitempty"`

	Collinearity CollinearityReport `yaml:"collinearity"`
	Models       []ModelReport      `yaml:"models"`
	Resampling   ResampleSummary    `yaml:"resampling"`

	Elapsed string `yaml:"elapsed"`
}

// WriteYAML serializes the report to path.
func (r *Report) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "pipeline: marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "pipeline: write report")
	}
	return nil
}

// Render writes the human-readable run summary.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "attrition pipeline run %s\n", r.RunID)
	fmt.Fprintf(w, "data: %s (%d rows, %d encoded features), seed %d\n",
		r.DataPath, r.Rows, r.Features, r.Seed)
	fmt.Fprintf(w, "split: %d train / %d test, positive rate %.3f / %.3f\n",
		r.Split.TrainRows, r.Split.TestRows,
		r.Split.Train.PositiveRate, r.Split.Test.PositiveRate)
	if len(r.Outliers) > 0 {
		names := make([]string, len(r.Outliers))
		for i, o := range r.Outliers {
			names[i] = o.Column
		}
		fmt.Fprintf(w, "outlier columns: %s\n", strings.Join(names, ", "))
	}

	if len(r.OddsRatios) > 0 {
		fmt.Fprintln(w, "odds ratios:")
		for _, or := range r.OddsRatios {
			fmt.Fprintf(w, "  %-24s %8.4f\n", or.Feature, or.Ratio)
		}
	}
	if len(r.Collinearity.Removed) > 0 {
		fmt.Fprintf(w, "collinear columns removed: %s\n",
			strings.Join(r.Collinearity.Removed, ", "))
	}
	fmt.Fprintf(w, "resampling: train %d/%d -> %d/%d (positive/negative)\n",
		r.Resampling.Before.Positive, r.Resampling.Before.Negative,
		r.Resampling.After.Positive, r.Resampling.After.Negative)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-20s %-16s %5s %9s %9s %9s %9s %9s\n",
		"model", "trained on", "thr", "accuracy", "precision", "recall", "f1", "auc")
	for _, m := range r.Models {
		thr := "-"
		if m.Threshold > 0 {
			thr = fmt.Sprintf("%.2f", m.Threshold)
		}
		fmt.Fprintf(w, "%-20s %-16s %5s %9s %9s %9s %9s %9s\n",
			m.Family, m.TrainedOn, thr,
			m.Metrics.Accuracy, m.Metrics.Precision, m.Metrics.Recall,
			m.Metrics.F1, m.Metrics.AUC)
	}

	fmt.Fprintln(w)
	for _, m := range r.Models {
		fmt.Fprintf(w, "%s [%s]: tp=%d fp=%d tn=%d fn=%d  balanced_accuracy=%s kappa=%s\n",
			m.Family, m.TrainedOn,
			m.Confusion.TP, m.Confusion.FP, m.Confusion.TN, m.Confusion.FN,
			m.Metrics.BalancedAccuracy, m.Metrics.Kappa)
		if len(m.TopFeatures) > 0 {
			parts := make([]string, len(m.TopFeatures))
			for i, fw := range m.TopFeatures {
				parts[i] = fmt.Sprintf("%s (%.3f)", fw.Feature, fw.Weight)
			}
			fmt.Fprintf(w, "  top features: %s\n", strings.Join(parts, ", "))
		}
	}
	fmt.Fprintf(w, "\nelapsed: %s\n", r.Elapsed)
}
