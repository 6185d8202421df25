package selection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/peoplemetrics/attrition/core/model"
	"github.com/peoplemetrics/attrition/metrics"
	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// Scoring names the metric cross-validation optimizes. Accuracy drives
// the first selection pass; recall and AUC drive the later passes that
// trade precision for catching more leavers.
const (
	ScoreAccuracy = "accuracy"
	ScoreRecall   = "recall"
	ScoreAUC      = "auc"
)

// ParamGrid is an ordered enumeration of hyperparameter candidates.
// Parameters enumerate in the order they were added, with the last-added
// parameter varying fastest, so the candidate order is stable across runs
// and the "first best wins" tie-break is reproducible.
type ParamGrid struct {
	names  []string
	values map[string][]interface{}
}

// NewParamGrid creates an empty grid. A grid with no parameters yields a
// single empty candidate, which turns grid search into plain
// cross-validation of the estimator's defaults.
func NewParamGrid() *ParamGrid {
	return &ParamGrid{values: make(map[string][]interface{})}
}

// Add appends a parameter and its candidate values, returning the grid
// for chaining. Adding the same name twice replaces its values but keeps
// its original position.
func (g *ParamGrid) Add(name string, values ...interface{}) *ParamGrid {
	if _, exists := g.values[name]; !exists {
		g.names = append(g.names, name)
	}
	g.values[name] = values
	return g
}

// Len returns the number of candidates the grid enumerates.
func (g *ParamGrid) Len() int {
	total := 1
	for _, name := range g.names {
		total *= len(g.values[name])
	}
	return total
}

// Candidates expands the grid into the full candidate list, in stable
// enumeration order.
func (g *ParamGrid) Candidates() []map[string]interface{} {
	candidates := []map[string]interface{}{{}}
	for _, name := range g.names {
		expanded := make([]map[string]interface{}, 0, len(candidates)*len(g.values[name]))
		for _, base := range candidates {
			for _, v := range g.values[name] {
				candidate := make(map[string]interface{}, len(base)+1)
				for k, bv := range base {
					candidate[k] = bv
				}
				candidate[name] = v
				expanded = append(expanded, candidate)
			}
		}
		candidates = expanded
	}
	return candidates
}

// CVResult holds the per-fold scores of one cross-validated configuration.
type CVResult struct {
	FoldScores []float64
}

// MeanScore returns the mean validation score across folds.
func (cv *CVResult) MeanScore() float64 {
	if len(cv.FoldScores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range cv.FoldScores {
		sum += s
	}
	return sum / float64(len(cv.FoldScores))
}

// StdScore returns the sample standard deviation of the fold scores.
func (cv *CVResult) StdScore() float64 {
	if len(cv.FoldScores) <= 1 {
		return 0
	}
	mean := cv.MeanScore()
	sumSq := 0.0
	for _, s := range cv.FoldScores {
		diff := s - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(cv.FoldScores)-1))
}

// CrossValidate scores a model configuration by k-fold cross-validation.
// newEstimator must return a fresh unfitted classifier per call; every
// fold fits its own instance so no state leaks between folds.
func CrossValidate(newEstimator func() model.Classifier, X, y mat.Matrix,
	splitter Splitter, scoring string) (*CVResult, error) {

	if newEstimator == nil {
		return nil, errors.NewValueError("selection.CrossValidate", "nil estimator factory")
	}
	if err := validateScoring(scoring); err != nil {
		return nil, err
	}
	if splitter == nil {
		splitter = NewStratifiedKFold(5, true, 0)
	}

	folds := splitter.Split(X, y)
	result := &CVResult{FoldScores: make([]float64, len(folds))}

	for i, fold := range folds {
		trainX, trainY := subset(X, y, fold.TrainIndices)
		valX, valY := subset(X, y, fold.TestIndices)

		estimator := newEstimator()
		if err := estimator.Fit(trainX, trainY); err != nil {
			return nil, errors.Wrapf(err, "selection: fold %d fit", i)
		}

		score, err := scoreEstimator(estimator, valX, valY, scoring)
		if err != nil {
			return nil, errors.Wrapf(err, "selection: fold %d score", i)
		}
		result.FoldScores[i] = score
	}

	return result, nil
}

// CandidateResult pairs one grid candidate with its cross-validation
// outcome.
type CandidateResult struct {
	Params    map[string]interface{}
	MeanScore float64
	StdScore  float64
}

// GridSearchCV selects the best hyperparameters of an estimator by k-fold
// cross-validation over an enumerated grid. Candidates are scored in grid
// order and compared with a strict greater-than, so of several equally
// good candidates the first-encountered one wins. After the search the
// winning configuration is refitted on the full training data.
type GridSearchCV struct {
	factory  func() model.Classifier
	grid     *ParamGrid
	splitter Splitter
	scoring  string
	refit    bool

	bestParams    map[string]interface{}
	bestScore     float64
	bestEstimator model.Classifier
	results       []CandidateResult
	fitted        bool
}

// GridSearchOption configures a GridSearchCV.
type GridSearchOption func(*GridSearchCV)

// WithScoring sets the optimization metric: accuracy (default), recall,
// or auc.
func WithScoring(scoring string) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.scoring = scoring
	}
}

// WithSplitter replaces the default splitter (stratified 5-fold, seed 0).
func WithSplitter(splitter Splitter) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.splitter = splitter
	}
}

// WithCV configures a stratified k-fold splitter with the given fold
// count and shuffle seed.
func WithCV(folds, seed int) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.splitter = NewStratifiedKFold(folds, true, seed)
	}
}

// WithRefit controls whether the winner is refitted on the full data
// after the search (default true).
func WithRefit(refit bool) GridSearchOption {
	return func(gs *GridSearchCV) {
		gs.refit = refit
	}
}

// NewGridSearchCV creates a grid search over the candidates of grid.
// factory must return a fresh unfitted classifier; the search applies
// each candidate through SetParams, so the estimator must implement
// model.ParameterSetter.
func NewGridSearchCV(factory func() model.Classifier, grid *ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		factory:  factory,
		grid:     grid,
		splitter: NewStratifiedKFold(5, true, 0),
		scoring:  ScoreAccuracy,
		refit:    true,
	}
	for _, opt := range opts {
		opt(gs)
	}
	return gs
}

// Fit runs the search on X and y.
func (gs *GridSearchCV) Fit(X, y mat.Matrix) error {
	if gs.factory == nil {
		return errors.NewValueError("GridSearchCV.Fit", "nil estimator factory")
	}
	if gs.grid == nil {
		return errors.NewValueError("GridSearchCV.Fit", "nil parameter grid")
	}
	if err := validateScoring(gs.scoring); err != nil {
		return err
	}

	candidates := gs.grid.Candidates()
	gs.results = make([]CandidateResult, 0, len(candidates))
	gs.bestScore = math.Inf(-1)
	gs.bestParams = nil

	logger := log.GetLoggerWithName("selection")

	for _, candidate := range candidates {
		cv, err := CrossValidate(func() model.Classifier {
			return gs.configured(candidate)
		}, X, y, gs.splitter, gs.scoring)
		if err != nil {
			return err
		}

		mean := cv.MeanScore()
		gs.results = append(gs.results, CandidateResult{
			Params:    candidate,
			MeanScore: mean,
			StdScore:  cv.StdScore(),
		})

		logger.Debug("candidate scored",
			log.StepKey, "grid_search",
			log.HyperParamsKey, candidate,
			"mean_score", mean,
			"std_score", cv.StdScore(),
		)

		// Strict comparison: ties go to the earlier candidate.
		if mean > gs.bestScore {
			gs.bestScore = mean
			gs.bestParams = candidate
		}
	}

	if gs.bestParams == nil {
		return errors.NewValueError("GridSearchCV.Fit", "grid produced no candidates")
	}

	if gs.refit {
		winner := gs.configured(gs.bestParams)
		if err := winner.Fit(X, y); err != nil {
			return errors.Wrap(err, "selection: refit winner")
		}
		gs.bestEstimator = winner
	}

	logger.Info("grid search finished",
		log.StepKey, "grid_search",
		log.HyperParamsKey, gs.bestParams,
		"scoring", gs.scoring,
		"best_score", gs.bestScore,
		"candidates", len(candidates),
	)

	gs.fitted = true
	return nil
}

// configured builds a fresh estimator with the candidate applied. A
// factory whose estimator rejects a grid key is a programming error
// surfaced at search time.
func (gs *GridSearchCV) configured(params map[string]interface{}) model.Classifier {
	estimator := gs.factory()
	if len(params) == 0 {
		return estimator
	}
	setter, ok := estimator.(model.ParameterSetter)
	if !ok {
		panic("selection: estimator does not implement model.ParameterSetter")
	}
	if err := setter.SetParams(params); err != nil {
		panic(err)
	}
	return estimator
}

// IsFitted reports whether the search has run.
func (gs *GridSearchCV) IsFitted() bool {
	return gs.fitted
}

// BestParams returns the winning candidate.
func (gs *GridSearchCV) BestParams() map[string]interface{} {
	return gs.bestParams
}

// BestScore returns the winning candidate's mean validation score.
func (gs *GridSearchCV) BestScore() float64 {
	return gs.bestScore
}

// BestEstimator returns the winner refitted on the full training data,
// or nil when refitting was disabled.
func (gs *GridSearchCV) BestEstimator() model.Classifier {
	return gs.bestEstimator
}

// Results returns the per-candidate mean and standard deviation table, in
// grid order.
func (gs *GridSearchCV) Results() []CandidateResult {
	out := make([]CandidateResult, len(gs.results))
	copy(out, gs.results)
	return out
}

// scoreEstimator evaluates a fitted classifier on held-out data with the
// named metric.
func scoreEstimator(c model.Classifier, X, y mat.Matrix, scoring string) (float64, error) {
	yVec := columnVec(y, 0)
	switch scoring {
	case ScoreAccuracy, ScoreRecall:
		pred, err := c.Predict(X)
		if err != nil {
			return 0, err
		}
		predVec := columnVec(pred, 0)
		if scoring == ScoreAccuracy {
			return metrics.Accuracy(yVec, predVec)
		}
		return metrics.RecallScore(yVec, predVec)
	case ScoreAUC:
		proba, err := c.PredictProba(X)
		if err != nil {
			return 0, err
		}
		_, cols := proba.Dims()
		return metrics.AUC(yVec, columnVec(proba, cols-1))
	default:
		return 0, errors.NewValidationError("scoring", "must be accuracy, recall, or auc", scoring)
	}
}

func validateScoring(scoring string) error {
	switch scoring {
	case ScoreAccuracy, ScoreRecall, ScoreAUC:
		return nil
	default:
		return errors.NewValidationError("scoring", "must be accuracy, recall, or auc", scoring)
	}
}

// subset copies the selected rows of X and y into fresh matrices. y comes
// back as a vector for the metric helpers.
func subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, cols := X.Dims()
	outX := mat.NewDense(len(indices), cols, nil)
	outY := mat.NewDense(len(indices), 1, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			outX.Set(i, j, X.At(idx, j))
		}
		outY.Set(i, 0, y.At(idx, 0))
	}
	return outX, outY
}

// columnVec copies column j of m into a vector.
func columnVec(m mat.Matrix, j int) *mat.VecDense {
	rows, _ := m.Dims()
	v := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		v.SetVec(i, m.At(i, j))
	}
	return v
}
