// Standard attribute keys for pipeline logging.
//
// Using these keys keeps log output consistent across packages so runs can
// be filtered and compared. Keys follow a hierarchical naming convention
// ("model.name", "data.samples") for structured log analysis.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "LogisticRegression", "RandomForest", "KNN"
	ModelNameKey = "model.name"

	// EstimatorIDKey provides a unique identifier for a model instance,
	// useful when the same family appears several times in one run.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "preprocessing", "selection", "metrics"
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	// Examples: "training", "validation", "testing", "preprocessing"
	PhaseKey = "ml.phase"
)

// Run and pipeline context.
const (
	// RunIDKey carries the unique id assigned to one pipeline execution.
	RunIDKey = "run.id"

	// StepKey names the pipeline step currently executing.
	// Examples: "load", "outlier_scan", "split", "grid_search"
	StepKey = "pipeline.step"

	// FoldKey records the cross-validation fold index.
	FoldKey = "cv.fold"
)

// Data shape and characteristics.
const (
	// SamplesKey indicates the number of samples (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ColumnKey names a single column under discussion, for example in
	// outlier or collinearity reports.
	ColumnKey = "data.column"

	// PositiveRateKey records the share of positive-class rows.
	PositiveRateKey = "data.positive_rate"
)

// Performance and metric values.
const (
	// DurationMsKey records execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy, range [0, 1].
	AccuracyKey = "metrics.accuracy"

	// AUCKey records the area under the ROC curve.
	AUCKey = "metrics.auc"

	// F1Key records the F1 score.
	F1Key = "metrics.f1"

	// LossKey records a loss value during training or evaluation.
	LossKey = "metrics.loss"

	// IterationKey records the iteration number of an iterative solver.
	IterationKey = "training.iteration"
)

// Prediction context.
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// ThresholdKey records the decision threshold applied to probabilities.
	ThresholdKey = "preds.threshold"
)

// Error and warning context.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	// Examples: "DIMENSION_MISMATCH", "NOT_FITTED", "SCHEMA_VIOLATION"
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the error type.
	// Examples: "SchemaError", "CollinearityError"
	ErrorTypeKey = "error.type"

	// SuggestionKey carries a human-readable remediation hint alongside
	// an error record.
	SuggestionKey = "error.suggestion"
)

// Configuration.
const (
	// HyperParamsKey carries model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed, essential for reproducing runs.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute value constants for common operations.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorSchemaViolation   = "SCHEMA_VIOLATION"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
)
