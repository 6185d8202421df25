package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "attrition: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "attrition: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 7, 0)

	want := "attrition: Predict: dimension mismatch on axis 0 (rows). Expected 10, got 7"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 10 || dimErr.Got != 7 {
		t.Errorf("Expected/Got = %d/%d, want 10/7", dimErr.Expected, dimErr.Got)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LogisticRegression", "Predict")

	want := "attrition: LogisticRegression: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewSchemaError(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		reason  string
		value   interface{}
		wantMsg string
	}{
		{
			name:    "with offending value",
			column:  "MonthlyIncome",
			reason:  "cannot parse as numeric",
			value:   "high",
			wantMsg: "attrition: schema violation on column 'MonthlyIncome': cannot parse as numeric (got: high)",
		},
		{
			name:    "without value",
			column:  "Attrition",
			reason:  "required column missing",
			value:   nil,
			wantMsg: "attrition: schema violation on column 'Attrition': required column missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSchemaError(tt.column, tt.reason, tt.value)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			var schemaErr *SchemaError
			if !As(err, &schemaErr) {
				t.Error("Error should be castable to *SchemaError")
			}
		})
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("test_size", "must be in (0, 1)", 1.5)

	want := "attrition: validation failed for parameter 'test_size': must be in (0, 1) (got: 1.5)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValidationError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValidationError")
	}
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("ThresholdLabels", "threshold must be in [0, 1]")

	want := "attrition: ThresholdLabels: threshold must be in [0, 1]"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valueErr *ValueError
	if !As(err, &valueErr) {
		t.Error("Error should be castable to *ValueError")
	}
}

func TestNewDataLeakageError(t *testing.T) {
	err := NewDataLeakageError("Preprocessor.Fit", "fitting on the test partition")

	if !strings.Contains(err.Error(), "would leak evaluation data into training") {
		t.Errorf("unexpected message: %v", err)
	}

	var leakErr *DataLeakageError
	if !As(err, &leakErr) {
		t.Error("Error should be castable to *DataLeakageError")
	}
}

func TestNewDegenerateMetricError(t *testing.T) {
	err := NewDegenerateMetricError("roc_auc", "only one class present in labels")

	want := "attrition: metric 'roc_auc' is undefined: only one class present in labels"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var degErr *DegenerateMetricError
	if !As(err, &degErr) {
		t.Error("Error should be castable to *DegenerateMetricError")
	}
}

func TestNewCollinearityError(t *testing.T) {
	err := NewCollinearityError("OverTime=No", 1e9)

	if !strings.Contains(err.Error(), "OverTime=No") {
		t.Errorf("unexpected message: %v", err)
	}

	var colErr *CollinearityError
	if !As(err, &colErr) {
		t.Error("Error should be castable to *CollinearityError")
	}
	if colErr.VIF != 1e9 {
		t.Errorf("VIF = %v, want 1e9", colErr.VIF)
	}
}

func TestConvergenceWarningMessages(t *testing.T) {
	withMsg := NewConvergenceWarning("GradientDescent", 1000, "loss did not decrease")
	want := "GradientDescent failed to converge after 1000 iterations: loss did not decrease"
	if withMsg.Error() != want {
		t.Errorf("Error() = %v, want %v", withMsg.Error(), want)
	}

	withoutMsg := NewConvergenceWarning("SMO", 500, "")
	if !strings.Contains(withoutMsg.Error(), "failed to converge after 500 iterations") {
		t.Errorf("unexpected message: %v", withoutMsg)
	}
}

func TestUndefinedMetricWarningMessage(t *testing.T) {
	warn := NewUndefinedMetricWarning("precision", "no predicted positives", 0)

	if !strings.Contains(warn.Error(), "'precision' is ill-defined") {
		t.Errorf("unexpected message: %v", warn)
	}
}

func TestWarnHandlerPrecedence(t *testing.T) {
	defer SetWarningHandler(func(error) {})
	defer SetZerologWarnFunc(nil)

	var viaHandler, viaSink error
	SetWarningHandler(func(w error) { viaHandler = w })

	first := NewConvergenceWarning("KMeans", 10, "")
	Warn(first)
	if viaHandler != first {
		t.Error("Expected the plain handler to receive the warning")
	}

	// Once a zerolog sink is installed it takes over.
	SetZerologWarnFunc(func(w error) { viaSink = w })
	viaHandler = nil

	second := NewConvergenceWarning("KMeans", 20, "")
	Warn(second)
	if viaSink != second {
		t.Error("Expected the zerolog sink to receive the warning")
	}
	if viaHandler != nil {
		t.Error("Expected the plain handler to be bypassed")
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrSingularMatrix, "in LinearRegression.Fit")

	if !Is(wrapped, ErrSingularMatrix) {
		t.Error("Expected Is(wrapped, ErrSingularMatrix) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in LinearRegression.Fit") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows, got %d", "Fit", 10, 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Fit: expected 10 rows, got 0") {
		t.Error("Expected wrapped error to contain formatted message")
	}
}

func TestErrorChaining(t *testing.T) {
	base := fmt.Errorf("base error")
	once := Wrap(base, "wrapped once")
	top := NewModelError("Operation", "failed", once)

	if !strings.Contains(top.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", top)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}
