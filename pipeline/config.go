package pipeline

import (
	"github.com/spf13/viper"

	"github.com/peoplemetrics/attrition/dataset"
	"github.com/peoplemetrics/attrition/pkg/errors"
)

// Config holds every knob of one pipeline run. All fields load from a
// single YAML file; missing keys fall back to the defaults below. There
// are no flags and no environment overrides: the whole interface is one
// file path.
type Config struct {
	// DataPath is the CSV file the run reads.
	DataPath string `mapstructure:"data_path" yaml:"data_path"`

	// OutputDir receives the YAML report and ROC plots. Empty disables
	// file output.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	LabelColumn   string   `mapstructure:"label_column" yaml:"label_column"`
	PositiveLabel string   `mapstructure:"positive_label" yaml:"positive_label"`
	NegativeLabel string   `mapstructure:"negative_label" yaml:"negative_label"`
	DropColumns   []string `mapstructure:"drop_columns" yaml:"drop_columns"`

	// TestSize is the held-out fraction of the stratified split.
	TestSize float64 `mapstructure:"test_size" yaml:"test_size"`

	// Seed drives every stochastic step: the split, fold shuffling,
	// resampling draws, and model randomness.
	Seed    int `mapstructure:"seed" yaml:"seed"`
	CVFolds int `mapstructure:"cv_folds" yaml:"cv_folds"`

	// DecisionThreshold is the probability cut of the recall-oriented
	// logistic pass.
	DecisionThreshold float64 `mapstructure:"decision_threshold" yaml:"decision_threshold"`

	// OddsRatioFeatures names the numeric columns of the auxiliary
	// odds-ratio regression.
	OddsRatioFeatures []string `mapstructure:"odds_ratio_features" yaml:"odds_ratio_features"`

	ForestTrees int `mapstructure:"forest_trees" yaml:"forest_trees"`
	BoostRounds int `mapstructure:"boost_rounds" yaml:"boost_rounds"`

	// RemoveCollinear drops exactly dependent predictors before the
	// logistic refit instead of only reporting them.
	RemoveCollinear bool `mapstructure:"remove_collinear" yaml:"remove_collinear"`

	// TopFeatures caps the per-model feature-importance list.
	TopFeatures int `mapstructure:"top_features" yaml:"top_features"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the reference configuration: the canonical
// attrition workflow with its published hyperparameter budgets.
func DefaultConfig() Config {
	return Config{
		DataPath:          "data/attrition.csv",
		OutputDir:         "out",
		LabelColumn:       "Attrition",
		PositiveLabel:     "Yes",
		NegativeLabel:     "No",
		DropColumns:       append([]string(nil), dataset.DefaultDropColumns...),
		TestSize:          0.2,
		Seed:              42,
		CVFolds:           5,
		DecisionThreshold: 0.3,
		OddsRatioFeatures: []string{"Age", "MonthlyIncome", "DistanceFromHome", "YearsAtCompany"},
		ForestTrees:       500,
		BoostRounds:       50,
		RemoveCollinear:   true,
		TopFeatures:       10,
		LogLevel:          "info",
	}
}

// LoadConfig reads a YAML configuration from path, filling unset keys
// with defaults. An empty path skips the file entirely and returns the
// defaults. The result is validated before being handed back.
func LoadConfig(path string) (Config, error) {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetDefault("data_path", defaults.DataPath)
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("label_column", defaults.LabelColumn)
	v.SetDefault("positive_label", defaults.PositiveLabel)
	v.SetDefault("negative_label", defaults.NegativeLabel)
	v.SetDefault("drop_columns", defaults.DropColumns)
	v.SetDefault("test_size", defaults.TestSize)
	v.SetDefault("seed", defaults.Seed)
	v.SetDefault("cv_folds", defaults.CVFolds)
	v.SetDefault("decision_threshold", defaults.DecisionThreshold)
	v.SetDefault("odds_ratio_features", defaults.OddsRatioFeatures)
	v.SetDefault("forest_trees", defaults.ForestTrees)
	v.SetDefault("boost_rounds", defaults.BoostRounds)
	v.SetDefault("remove_collinear", defaults.RemoveCollinear)
	v.SetDefault("top_features", defaults.TopFeatures)
	v.SetDefault("log_level", defaults.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "pipeline: read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "pipeline: parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration before a run starts. The log level
// is included because the logging setup treats an unknown level as a
// programming error rather than a recoverable one.
func (c Config) Validate() error {
	if c.DataPath == "" {
		return errors.NewValueError("Config.Validate", "data_path must be set")
	}
	if c.LabelColumn == "" {
		return errors.NewValueError("Config.Validate", "label_column must be set")
	}
	if c.PositiveLabel == c.NegativeLabel {
		return errors.NewValidationError("positive_label",
			"must differ from negative_label", c.PositiveLabel)
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError("test_size", "must be in (0, 1)", c.TestSize)
	}
	if c.CVFolds < 2 {
		return errors.NewValidationError("cv_folds", "must be at least 2", c.CVFolds)
	}
	if c.DecisionThreshold <= 0 || c.DecisionThreshold >= 1 {
		return errors.NewValidationError("decision_threshold",
			"must be in (0, 1)", c.DecisionThreshold)
	}
	if c.ForestTrees < 1 {
		return errors.NewValidationError("forest_trees", "must be at least 1", c.ForestTrees)
	}
	if c.BoostRounds < 1 {
		return errors.NewValidationError("boost_rounds", "must be at least 1", c.BoostRounds)
	}
	if c.TopFeatures < 1 {
		return errors.NewValidationError("top_features", "must be at least 1", c.TopFeatures)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError("log_level",
			"must be debug, info, warn, or error", c.LogLevel)
	}
	return nil
}
