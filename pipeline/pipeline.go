// Package pipeline wires the attrition workflow end to end: loading,
// outlier screening, stratified splitting, preprocessing, model
// selection, collinearity checking, evaluation, and the recall-oriented
// resampling pass. Steps run strictly in order and share a single seed,
// so two runs with the same configuration produce the same report.
package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/dataset"
	"github.com/peoplemetrics/attrition/ensemble"
	"github.com/peoplemetrics/attrition/linear"
	"github.com/peoplemetrics/attrition/metrics"
	"github.com/peoplemetrics/attrition/neighbors"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
	"github.com/peoplemetrics/attrition/preprocessing"
	"github.com/peoplemetrics/attrition/selection"
	"github.com/peoplemetrics/attrition/stats"
	"github.com/peoplemetrics/attrition/svm"
	"github.com/peoplemetrics/attrition/tree"
)

// Family identifies one of the closed set of model families the
// pipeline trains.
type Family int

const (
	FamilyKNN Family = iota
	FamilyTree
	FamilyLogistic
	FamilyForest
	FamilySVM
	FamilyBoosting
)

// String returns the family name used in reports and plot file names.
func (f Family) String() string {
	switch f {
	case FamilyKNN:
		return "knn"
	case FamilyTree:
		return "decision_tree"
	case FamilyLogistic:
		return "logistic_regression"
	case FamilyForest:
		return "random_forest"
	case FamilySVM:
		return "svm"
	case FamilyBoosting:
		return "boosting"
	default:
		return "unknown"
	}
}

// Training partitions named in model reports.
const (
	trainedOnTrain     = "train"
	trainedOnUpsampled = "upsampled_train"
)

// vifRemovalLimit is the factor above which a predictor counts as an
// exact linear combination of the others and is removed before the
// logistic refit. Finite values below the limit are reported, not
// removed.
const vifRemovalLimit = 1e6

// familySpec binds a model family to its estimator factory and
// hyperparameter grid.
type familySpec struct {
	family  Family
	factory func() model.Classifier
	grid    *selection.ParamGrid
}

// logisticFactory builds the pipeline's standard logistic
// configuration. The family has no hyperparameter grid, so the same
// factory serves both the selection pass and the post-resampling refit.
func logisticFactory(seed int64) func() model.Classifier {
	return func() model.Classifier {
		return linear.NewLogisticRegression(
			linear.WithMaxIter(1000),
			linear.WithRandomState(seed),
		)
	}
}

// cvFamilies enumerates the families tuned by cross-validated grid
// search, in the order they are trained and reported. Grid values and
// enumeration order are fixed; a reordered grid would change which of
// several tied candidates wins.
func cvFamilies(cfg Config) []familySpec {
	seed := int64(cfg.Seed)
	return []familySpec{
		{
			family: FamilyKNN,
			factory: func() model.Classifier {
				return neighbors.NewKNeighborsClassifier()
			},
			grid: selection.NewParamGrid().
				Add("n_neighbors", 3, 5, 7, 9, 11, 13, 15, 17, 19, 21),
		},
		{
			family: FamilyTree,
			factory: func() model.Classifier {
				return tree.NewDecisionTreeClassifier(tree.WithRandomState(seed))
			},
			grid: selection.NewParamGrid().
				Add("cp", 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07, 0.08, 0.09, 0.10),
		},
		{
			family:  FamilyLogistic,
			factory: logisticFactory(seed),
			grid:    selection.NewParamGrid(),
		},
		{
			family: FamilyForest,
			factory: func() model.Classifier {
				return ensemble.NewRandomForestClassifier(
					ensemble.WithNEstimators(cfg.ForestTrees),
					ensemble.WithRandomState(seed),
				)
			},
			grid: selection.NewParamGrid().
				Add("max_features", 2, 4, 6, 8, 10),
		},
		{
			family: FamilySVM,
			factory: func() model.Classifier {
				return svm.NewSVC(svm.WithRandomState(seed))
			},
			grid: selection.NewParamGrid().
				Add("C", 4.0, 8.0, 16.0).
				Add("gamma", 0.5, 0.25, 0.125),
		},
	}
}

// Run executes the pipeline described by cfg and returns its report.
// Preprocessing and splitting failures abort the run; metric edge cases
// are carried through as explicit sentinels instead.
func Run(cfg Config) (report *Report, err error) {
	// Matrix kernels panic on shape mismatches rather than returning
	// errors, so the whole run is guarded once at the entry point.
	defer errors.Recover(&err, "pipeline.Run")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)
	started := time.Now()
	step := stepTimer(logger)

	logger.Info("run starting",
		log.RandomSeedKey, cfg.Seed,
		"data_path", cfg.DataPath,
	)

	outputDir := cfg.OutputDir
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			logger.Warn("output directory unavailable",
				"output_dir", outputDir, log.ErrAttr(err))
			outputDir = ""
		}
	}

	report = &Report{
		RunID:    runID,
		DataPath: cfg.DataPath,
		Seed:     cfg.Seed,
	}

	// Step 1: load.
	table, err := dataset.Load(cfg.DataPath,
		dataset.WithLabelColumn(cfg.LabelColumn),
		dataset.WithLabelLevels(cfg.PositiveLabel, cfg.NegativeLabel),
		dataset.WithDropColumns(cfg.DropColumns...),
	)
	if err != nil {
		return nil, err
	}
	report.Rows = table.NRows()
	step("load", log.SamplesKey, table.NRows())

	// Step 2: descriptive summary and advisory outlier scan on the raw,
	// unscaled columns.
	report.Summary, err = stats.Describe(table)
	if err != nil {
		return nil, err
	}
	report.Outliers, err = stats.NewScanner().Scan(table)
	if err != nil {
		return nil, err
	}
	step("outlier_scan", "columns_flagged", len(report.Outliers))

	// Step 3: stratified split. Splitting precedes preprocessing so every
	// fitted statistic comes from training rows only.
	train, test, err := dataset.TrainTestSplit(table, cfg.TestSize, cfg.Seed, true)
	if err != nil {
		return nil, err
	}
	report.Split = splitSummary(train, test)
	step("split", "train_rows", train.NRows(), "test_rows", test.NRows())

	// Step 4: preprocess.
	prep := preprocessing.NewPreprocessor()
	if err := prep.Fit(train); err != nil {
		return nil, err
	}
	XTrain, yTrain, err := prep.Transform(train)
	if err != nil {
		return nil, err
	}
	XTest, yTest, err := prep.Transform(test)
	if err != nil {
		return nil, err
	}
	featureNames := prep.FeatureNames()
	report.Features = len(featureNames)
	step("preprocess", log.FeaturesKey, len(featureNames))

	// Step 5: global odds ratios from the raw training columns. The
	// auxiliary fit runs on unscaled values so the ratios stay in
	// per-unit terms.
	report.OddsRatios, err = stats.ComputeOddsRatios(train, cfg.OddsRatioFeatures, int64(cfg.Seed))
	if err != nil {
		return nil, err
	}
	step("odds_ratios", log.FeaturesKey, len(report.OddsRatios))

	// Step 6: per-family grid search, every family on the same folds.
	type selected struct {
		spec      familySpec
		estimator model.Classifier
		params    map[string]interface{}
		cv        *CVSummary
	}
	var winners []selected
	for _, spec := range cvFamilies(cfg) {
		gs := selection.NewGridSearchCV(spec.factory, spec.grid,
			selection.WithCV(cfg.CVFolds, cfg.Seed),
			selection.WithScoring(selection.ScoreAccuracy),
		)
		if err := gs.Fit(XTrain, yTrain); err != nil {
			return nil, errors.Wrapf(err, "pipeline: %s selection", spec.family)
		}
		winners = append(winners, selected{
			spec:      spec,
			estimator: gs.BestEstimator(),
			params:    gs.BestParams(),
			cv:        cvSummary(gs, cfg.CVFolds, selection.ScoreAccuracy),
		})
		step("grid_search",
			log.ModelNameKey, spec.family.String(),
			log.HyperParamsKey, gs.BestParams(),
			"best_score", gs.BestScore(),
		)
	}

	// Step 7: collinearity check on the logistic design matrix. A full
	// indicator group makes each of its columns an exact combination of
	// the others, so dependencies are removed one at a time and the
	// logistic model refitted on the survivors.
	checker := stats.NewChecker()
	vifResults, err := checker.Check(XTrain, featureNames)
	if err != nil {
		return nil, err
	}
	report.Collinearity = CollinearityReport{
		Threshold: checker.Threshold(),
		Results:   vifResults,
	}

	XTestLog := XTest
	logNames := featureNames
	if cfg.RemoveCollinear {
		var XTrainLog *mat.Dense
		var removed []string
		XTrainLog, logNames, removed, err = removeExactCollinear(checker, XTrain, featureNames, vifResults)
		if err != nil {
			return nil, err
		}
		if len(removed) > 0 {
			XTestLog, _, err = stats.RemoveColumns(XTest, featureNames, removed)
			if err != nil {
				return nil, err
			}
			report.Collinearity.Removed = removed

			// The logistic winner was selected on the full matrix; refit
			// it on the reduced one before evaluation.
			for i := range winners {
				if winners[i].spec.family != FamilyLogistic {
					continue
				}
				refit := winners[i].spec.factory()
				if err := refit.Fit(XTrainLog, yTrain); err != nil {
					return nil, errors.Wrap(err, "pipeline: logistic refit")
				}
				winners[i].estimator = refit
			}
		}
	}
	step("collinearity",
		log.FeaturesKey, len(logNames),
		"removed", len(report.Collinearity.Removed),
	)

	// Step 8: evaluate every winner on the held-out test partition.
	for _, win := range winners {
		evalX := mat.Matrix(XTest)
		if win.spec.family == FamilyLogistic {
			evalX = XTestLog
		}
		mr, err := evaluateModel(logger, win.estimator, evalX, yTest, win.spec.family, trainedOnTrain, 0)
		if err != nil {
			return nil, err
		}
		mr.BestParams = win.params
		mr.CV = win.cv
		mr.TopFeatures = topFeatures(win.estimator, featureNames, cfg.TopFeatures)
		savePlot(logger, &mr, outputDir)
		report.Models = append(report.Models, mr)
	}
	step("evaluate", "models", len(winners))

	// Step 9: upsample the minority class in the training partition. The
	// test partition is never touched; its matrix above stays valid.
	upsampled, err := dataset.Upsample(train, cfg.Seed)
	if err != nil {
		return nil, err
	}
	report.Resampling = ResampleSummary{
		Before: classBalance(train),
		After:  classBalance(upsampled),
	}
	XUp, yUp, err := prep.Transform(upsampled)
	if err != nil {
		return nil, err
	}
	step("upsample",
		log.SamplesKey, upsampled.NRows(),
		log.PositiveRateKey, upsampled.PositiveRate(),
	)

	// Step 10: the recall pass. The logistic model retrains on the
	// upsampled partition, scored by cross-validated recall, and applies
	// a lowered probability cut; the boosting ensemble trains on the same
	// partition with its fixed round count.
	XUpLog := XUp
	if len(report.Collinearity.Removed) > 0 {
		XUpLog, _, err = stats.RemoveColumns(XUp, featureNames, report.Collinearity.Removed)
		if err != nil {
			return nil, err
		}
	}

	gsUp := selection.NewGridSearchCV(logisticFactory(int64(cfg.Seed)), selection.NewParamGrid(),
		selection.WithCV(cfg.CVFolds, cfg.Seed),
		selection.WithScoring(selection.ScoreRecall),
	)
	if err := gsUp.Fit(XUpLog, yUp); err != nil {
		return nil, errors.Wrap(err, "pipeline: recall pass selection")
	}
	thresholdReport, err := evaluateModel(logger, gsUp.BestEstimator(), XTestLog, yTest,
		FamilyLogistic, trainedOnUpsampled, cfg.DecisionThreshold)
	if err != nil {
		return nil, err
	}
	thresholdReport.CV = cvSummary(gsUp, cfg.CVFolds, selection.ScoreRecall)
	savePlot(logger, &thresholdReport, outputDir)
	report.Models = append(report.Models, thresholdReport)

	booster := ensemble.NewAdaBoostClassifier(
		ensemble.WithRounds(cfg.BoostRounds),
		ensemble.WithSeed(int64(cfg.Seed)),
	)
	if err := booster.Fit(XUp, yUp); err != nil {
		return nil, errors.Wrap(err, "pipeline: boosting fit")
	}
	boostReport, err := evaluateModel(logger, booster, XTest, yTest,
		FamilyBoosting, trainedOnUpsampled, 0)
	if err != nil {
		return nil, err
	}
	boostReport.BestParams = map[string]interface{}{"n_estimators": cfg.BoostRounds}
	boostReport.TopFeatures = topFeatures(booster, featureNames, cfg.TopFeatures)
	savePlot(logger, &boostReport, outputDir)
	report.Models = append(report.Models, boostReport)
	step("recall_pass",
		log.ThresholdKey, cfg.DecisionThreshold,
		"boost_rounds", booster.NRounds(),
	)

	report.GeneratedAt = time.Now()
	report.Elapsed = report.GeneratedAt.Sub(started).Round(time.Millisecond).String()
	logger.Info("run finished",
		"models", len(report.Models),
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return report, nil
}

// stepTimer returns a closure that logs each pipeline step with the
// time elapsed since the previous one.
func stepTimer(logger log.Logger) func(name string, attrs ...any) {
	last := time.Now()
	return func(name string, attrs ...any) {
		now := time.Now()
		fields := append([]any{
			log.StepKey, name,
			log.DurationMsKey, now.Sub(last).Milliseconds(),
		}, attrs...)
		logger.Info("step finished", fields...)
		last = now
	}
}

// classBalance snapshots the label counts of a table.
func classBalance(t *dataset.Table) ClassBalance {
	pos, neg := t.ClassCounts()
	return ClassBalance{Positive: pos, Negative: neg, PositiveRate: t.PositiveRate()}
}

// splitSummary records both partitions and their balance.
func splitSummary(train, test *dataset.Table) SplitSummary {
	return SplitSummary{
		TrainRows: train.NRows(),
		TestRows:  test.NRows(),
		Train:     classBalance(train),
		Test:      classBalance(test),
	}
}

// cvSummary condenses a finished grid search into its report form. The
// winner's fold spread is looked up by score, which lands on the same
// row the strict-greater comparison selected.
func cvSummary(gs *selection.GridSearchCV, folds int, scoring string) *CVSummary {
	summary := &CVSummary{
		Scoring:   scoring,
		Folds:     folds,
		BestScore: gs.BestScore(),
	}
	found := false
	for _, res := range gs.Results() {
		summary.Candidates = append(summary.Candidates, CandidateReport{
			Params: res.Params,
			Mean:   res.MeanScore,
			Std:    res.StdScore,
		})
		if !found && res.MeanScore == gs.BestScore() {
			summary.BestStd = res.StdScore
			found = true
		}
	}
	return summary
}

// removeExactCollinear drops perfectly dependent columns one at a time,
// rechecking after each removal, and returns the reduced matrix, the
// surviving names, and the removal list. A complete indicator group
// loses exactly one column this way; the rest become estimable.
func removeExactCollinear(checker *stats.Checker, X *mat.Dense, names []string,
	initial []stats.VIFResult) (*mat.Dense, []string, []string, error) {

	cur := X
	curNames := names
	results := initial
	var removed []string
	for {
		worst := -1
		for j, res := range results {
			if !exactlyCollinear(res.VIF) {
				continue
			}
			if worst < 0 || res.VIF > results[worst].VIF {
				worst = j
			}
		}
		if worst < 0 {
			return cur, curNames, removed, nil
		}

		name := results[worst].Feature
		reduced, keptNames, err := stats.RemoveColumns(cur, curNames, []string{name})
		if err != nil {
			return nil, nil, nil, err
		}
		removed = append(removed, name)
		cur, curNames = reduced, keptNames

		results, err = checker.Check(cur, curNames)
		if err != nil {
			return nil, nil, nil, err
		}
	}
}

// exactlyCollinear reports whether a VIF indicates an exact linear
// dependency rather than ordinary correlation.
func exactlyCollinear(vif float64) bool {
	return math.IsInf(vif, 1) || vif >= vifRemovalLimit
}

// evaluateModel runs one trained model over the test partition and
// fills its report entry. A positive threshold cuts the positive-class
// probability there instead of using the model's own decision rule. A
// degenerate ROC, possible only when the test labels hold one class,
// downgrades to a warning with the area reported as N/A.
func evaluateModel(logger log.Logger, est model.Classifier, X mat.Matrix, yTrue *mat.VecDense,
	family Family, trainedOn string, threshold float64) (ModelReport, error) {

	scores, err := scoreColumn(est, X)
	if err != nil {
		return ModelReport{}, errors.Wrapf(err, "pipeline: %s probabilities", family)
	}

	var yPred *mat.VecDense
	if threshold > 0 {
		yPred, err = metrics.ThresholdLabels(scores, threshold)
	} else {
		var pred mat.Matrix
		pred, err = est.Predict(X)
		if err == nil {
			yPred = matColumn(pred, 0)
		}
	}
	if err != nil {
		return ModelReport{}, errors.Wrapf(err, "pipeline: %s predictions", family)
	}

	cm, err := metrics.NewConfusionMatrix(yTrue, yPred, 1)
	if err != nil {
		return ModelReport{}, errors.Wrapf(err, "pipeline: %s confusion", family)
	}

	mr := ModelReport{
		Family:    family.String(),
		TrainedOn: trainedOn,
		Threshold: threshold,
		Confusion: ConfusionReport{TP: cm.TP, FP: cm.FP, TN: cm.TN, FN: cm.FN},
		Metrics: ModelMetrics{
			Accuracy:         MetricValue(cm.Accuracy()),
			BalancedAccuracy: MetricValue(cm.BalancedAccuracy()),
			Precision:        MetricValue(cm.Precision()),
			Recall:           MetricValue(cm.Recall()),
			Specificity:      MetricValue(cm.Specificity()),
			F1:               MetricValue(cm.F1()),
			Kappa:            MetricValue(cm.Kappa()),
			AUC:              MetricValue(math.NaN()),
		},
	}

	roc, err := metrics.NewROCCurve(yTrue, scores)
	if err != nil {
		logger.Warn("roc curve unavailable",
			log.ModelNameKey, family.String(),
			log.ErrAttr(err),
		)
	} else {
		mr.Metrics.AUC = MetricValue(roc.AUC)
		mr.ROC = roc.Points
	}

	logger.Info("model evaluated",
		log.ModelNameKey, family.String(),
		log.PhaseKey, log.PhaseTesting,
		log.AccuracyKey, float64(mr.Metrics.Accuracy),
		log.AUCKey, float64(mr.Metrics.AUC),
		"recall", float64(mr.Metrics.Recall),
	)
	return mr, nil
}

// scoreColumn extracts the positive-class probability column of a
// model's predictions.
func scoreColumn(est model.Classifier, X mat.Matrix) (*mat.VecDense, error) {
	proba, err := est.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, cols := proba.Dims()
	scores := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		scores.SetVec(i, proba.At(i, cols-1))
	}
	return scores, nil
}

// matColumn copies column j of m into a vector.
func matColumn(m mat.Matrix, j int) *mat.VecDense {
	rows, _ := m.Dims()
	v := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		v.SetVec(i, m.At(i, j))
	}
	return v
}

// topFeatures ranks features by importance and keeps the strongest n.
// Models without importances contribute no list.
func topFeatures(est model.Classifier, names []string, n int) []FeatureWeight {
	ranker, ok := est.(interface{ GetFeatureImportances() []float64 })
	if !ok {
		return nil
	}
	imps := ranker.GetFeatureImportances()
	if len(imps) != len(names) {
		return nil
	}
	weights := make([]FeatureWeight, len(names))
	for i, name := range names {
		weights[i] = FeatureWeight{Feature: name, Weight: imps[i]}
	}
	sort.SliceStable(weights, func(a, b int) bool {
		return weights[a].Weight > weights[b].Weight
	})
	if n < len(weights) {
		weights = weights[:n]
	}
	return weights
}

// savePlot renders the model's ROC curve under the output directory.
// Rendering problems are logged and skipped; plots are a convenience,
// not a pipeline product.
func savePlot(logger log.Logger, mr *ModelReport, outputDir string) {
	if outputDir == "" || len(mr.ROC) == 0 {
		return
	}
	path := filepath.Join(outputDir, mr.Family+"_"+mr.TrainedOn+"_roc.png")
	title := fmt.Sprintf("ROC %s (AUC %.3f)", mr.Family, float64(mr.Metrics.AUC))
	if err := SaveROCPlot(mr.ROC, title, path); err != nil {
		logger.Warn("roc plot not written",
			log.ModelNameKey, mr.Family,
			log.ErrAttr(err),
		)
		return
	}
	mr.ROCPlot = path
}
