// Package attrition implements an employee attrition analysis pipeline:
// it loads an HR dataset, screens it for outliers and collinear features,
// trains a panel of classifiers with cross-validated hyperparameter
// search, and reports which employees are at risk of leaving and why.
//
// The pipeline follows a fixed order so every run on the same data and
// seed reproduces the same report:
//
//  1. Load the CSV and summarize the numeric columns.
//  2. Scan for outliers (advisory only, nothing is dropped).
//  3. Split into stratified train and test partitions.
//  4. Standardize numeric features and one-hot encode categories,
//     fitting on the train partition only.
//  5. Estimate per-feature odds ratios from a logistic fit on raw values.
//  6. Grid-search five model families by cross-validated accuracy.
//  7. Check variance inflation factors and drop exact dependencies
//     before refitting the logistic model.
//  8. Evaluate every winner on the held-out test partition.
//  9. Upsample the minority class in the train partition.
//  10. Rerun the logistic model scored by recall with a lowered decision
//     threshold, and train a boosting ensemble, both on the upsampled
//     partition.
//
// # Quick Start
//
// The cmd/attrition binary drives the whole pipeline from a YAML config:
//
//	attrition config.yaml
//
// The same entry point is available as a library:
//
//	cfg := pipeline.DefaultConfig()
//	cfg.DataPath = "data/attrition.csv"
//	report, err := pipeline.Run(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report.Render(os.Stdout)
//
// # Packages
//
//   - pipeline: configuration, orchestration, and reporting
//   - dataset: CSV loading, stratified splitting, and upsampling
//   - preprocessing: standardization and one-hot encoding
//   - stats: descriptive statistics, outlier scan, odds ratios, VIF
//   - selection: k-fold splitting and grid search
//   - linear, tree, neighbors, svm, ensemble: the model families
//   - metrics: confusion matrices, classification metrics, ROC curves
//   - core/model: shared estimator interfaces and state
//   - core/parallel: chunked parallel execution helpers
//
// Every model exposes the same Fit, Predict, and PredictProba surface, so
// the grid search and evaluation code treat all families uniformly.
package attrition
