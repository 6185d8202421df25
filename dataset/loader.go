package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// DefaultDropColumns are the administrative columns removed at load time.
// They are constant across every employee or pure identifiers, so they
// carry no signal for the models downstream.
var DefaultDropColumns = []string{"EmployeeCount", "EmployeeNumber", "Over18", "StandardHours"}

type loadConfig struct {
	label    string
	positive string
	negative string
	drop     []string
}

// LoadOption configures Load and LoadReader.
type LoadOption func(*loadConfig)

// WithLabelColumn sets the target column name. Default "Attrition".
func WithLabelColumn(name string) LoadOption {
	return func(cfg *loadConfig) {
		cfg.label = name
	}
}

// WithLabelLevels sets the two label levels: positive maps to class 1,
// negative to class 0. Defaults "Yes" and "No".
func WithLabelLevels(positive, negative string) LoadOption {
	return func(cfg *loadConfig) {
		cfg.positive = positive
		cfg.negative = negative
	}
}

// WithDropColumns replaces the default drop list.
func WithDropColumns(names ...string) LoadOption {
	return func(cfg *loadConfig) {
		cfg.drop = names
	}
}

// Load reads a CSV file into a Table.
func Load(path string, opts ...LoadOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.Load: open %s", path)
	}
	defer f.Close()
	return LoadReader(f, opts...)
}

// LoadReader reads CSV data into a Table. Column kinds are inferred: a
// column whose every cell parses as a float is numeric, everything else is
// categorical. The label column is mapped to 0/1 classes; an unrecognized
// label level is a SchemaError.
func LoadReader(r io.Reader, opts ...LoadOption) (*Table, error) {
	cfg := loadConfig{
		label:    "Attrition",
		positive: "Yes",
		negative: "No",
		drop:     DefaultDropColumns,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "dataset.LoadReader")
	}

	// Header first: gocsv hands rows back as maps, so column order has to
	// come from the raw header line.
	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return nil, errors.Wrap(err, "dataset.LoadReader: read header")
	}

	present := make(map[string]bool, len(header))
	for _, name := range header {
		if present[name] {
			return nil, errors.NewSchemaError(name, "duplicate column in header", nil)
		}
		present[name] = true
	}

	if !present[cfg.label] {
		return nil, errors.NewSchemaError(cfg.label, "label column missing from header", nil)
	}

	dropSet := make(map[string]bool, len(cfg.drop))
	for _, name := range cfg.drop {
		if name == cfg.label {
			return nil, errors.NewValidationError("drop_columns",
				"label column cannot be dropped", name)
		}
		dropSet[name] = true
	}

	rows, err := gocsv.CSVToMaps(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "dataset.LoadReader: parse rows")
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.LoadReader")
	}

	t := &Table{
		schema: &Schema{
			Label:    cfg.label,
			Positive: cfg.positive,
			Negative: cfg.negative,
		},
		role:        RoleUnsplit,
		numeric:     make(map[string][]float64),
		categorical: make(map[string][]string),
		labels:      make([]int, len(rows)),
		nRows:       len(rows),
	}

	for _, name := range header {
		if dropSet[name] {
			continue
		}

		if name == cfg.label {
			t.schema.Columns = append(t.schema.Columns, Column{Name: name, Kind: Label})
			for i, row := range rows {
				switch row[name] {
				case cfg.positive:
					t.labels[i] = 1
				case cfg.negative:
					t.labels[i] = 0
				default:
					return nil, errors.NewSchemaError(name,
						"label level is neither the positive nor the negative level", row[name])
				}
			}
			continue
		}

		values := make([]float64, len(rows))
		raw := make([]string, len(rows))
		numericOK := true
		numericCells := 0
		for i, row := range rows {
			cell := strings.TrimSpace(row[name])
			raw[i] = cell
			if v, parseErr := strconv.ParseFloat(cell, 64); parseErr == nil {
				values[i] = v
				numericCells++
			} else {
				numericOK = false
			}
		}

		if numericOK {
			t.schema.Columns = append(t.schema.Columns, Column{Name: name, Kind: Numeric})
			t.numeric[name] = values
		} else {
			if numericCells > 0 {
				errors.Warn(errors.NewDataConversionWarning("numeric", "categorical",
					fmt.Sprintf("column %q mixes numeric and non-numeric cells", name)))
			}
			t.schema.Columns = append(t.schema.Columns, Column{Name: name, Kind: Categorical})
			t.categorical[name] = raw
		}
	}

	logger := log.GetLoggerWithName("dataset")
	logger.Info("dataset loaded",
		log.StepKey, "load",
		log.SamplesKey, t.nRows,
		log.FeaturesKey, len(t.schema.Columns)-1,
		log.PositiveRateKey, t.PositiveRate(),
	)

	return t, nil
}
