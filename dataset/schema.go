// Package dataset loads the employee attrition table from CSV and provides
// the row-level operations the pipeline runs before any model sees the
// data: schema inference, stratified train/test splitting, and minority
// upsampling.
package dataset

// ColumnKind classifies a column for preprocessing purposes.
type ColumnKind int

const (
	// Numeric columns parse as floats in every row and get standardized.
	Numeric ColumnKind = iota
	// Categorical columns hold string levels and get one-hot encoded.
	Categorical
	// Label marks the target column.
	Label
)

// String returns the lowercase name of the kind.
func (k ColumnKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Label:
		return "label"
	default:
		return "unknown"
	}
}

// Column is one named, typed column of the table.
type Column struct {
	Name string
	Kind ColumnKind
}

// Schema describes the columns of a loaded table in file order, including
// which column is the label and how its two levels map to classes.
type Schema struct {
	Columns []Column

	// Label is the name of the target column.
	Label string
	// Positive is the label level mapped to class 1.
	Positive string
	// Negative is the label level mapped to class 0.
	Negative string
}

// NumericNames returns the numeric column names in schema order.
func (s *Schema) NumericNames() []string {
	var names []string
	for _, c := range s.Columns {
		if c.Kind == Numeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// CategoricalNames returns the categorical column names in schema order.
func (s *Schema) CategoricalNames() []string {
	var names []string
	for _, c := range s.Columns {
		if c.Kind == Categorical {
			names = append(names, c.Name)
		}
	}
	return names
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
