package errors

import (
	"errors"
	"strings"
	"testing"
)

// runStages mimics the pipeline guard: one Recover at the entry point
// covers every stage, and stages may raise warnings before one of them
// panics.
func runStages(stages ...func() error) (err error) {
	defer Recover(&err, "runStages")
	for _, stage := range stages {
		if err := stage(); err != nil {
			return err
		}
	}
	return nil
}

func TestRunGuardStopsAtPanickingStage(t *testing.T) {
	var order []string

	err := runStages(
		func() error {
			order = append(order, "load")
			return nil
		},
		func() error {
			order = append(order, "train")
			panic("alpha pair selection ran out of candidates")
		},
		func() error {
			order = append(order, "evaluate")
			return nil
		},
	)

	if err == nil {
		t.Fatal("expected the guarded run to fail, got nil")
	}
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("error %T is not a PanicError", err)
	}
	if panicErr.Operation != "runStages" {
		t.Errorf("Operation = %q, want runStages", panicErr.Operation)
	}
	if got := strings.Join(order, ","); got != "load,train" {
		t.Errorf("stage order = %q, the panic must stop the run at train", got)
	}
}

func TestRunGuardPassesStageErrorsThrough(t *testing.T) {
	leak := NewDataLeakageError("Preprocessor.Fit", "table has the test role")

	err := runStages(
		func() error { return nil },
		func() error { return leak },
	)

	// A regular stage failure is not a panic and must come back untouched.
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		t.Fatalf("stage error was converted to a PanicError: %v", err)
	}
	var leakErr *DataLeakageError
	if !errors.As(err, &leakErr) {
		t.Fatalf("error %v lost its DataLeakageError identity", err)
	}
}

func TestWarningsSurvivePanicRecovery(t *testing.T) {
	var warned []error
	SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer SetWarningHandler(nil)

	err := runStages(
		func() error {
			Warn(NewConvergenceWarning("GradientDescent", 200, ""))
			return nil
		},
		func() error {
			Warn(NewUndefinedMetricWarning("f1", "no predicted positives", 0))
			panic("probability matrix has zero columns")
		},
	)

	if err == nil {
		t.Fatal("expected the guarded run to fail, got nil")
	}

	// Both warnings reached the sink before the panic unwound the run.
	if len(warned) != 2 {
		t.Fatalf("captured %d warnings, want 2", len(warned))
	}
	var conv *ConvergenceWarning
	if !errors.As(warned[0], &conv) {
		t.Errorf("warning %v is not a ConvergenceWarning", warned[0])
	}
	var undef *UndefinedMetricWarning
	if !errors.As(warned[1], &undef) {
		t.Errorf("warning %v is not an UndefinedMetricWarning", warned[1])
	}
}

func TestNestedGuardsReportInnermostOperation(t *testing.T) {
	inner := func() error {
		return SafeExecute("svm.fit", func() error {
			panic("kernel cache overflow")
		})
	}

	err := runStages(inner)

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("error %T is not a PanicError", err)
	}
	// The inner guard converts the panic first, so the outer one never
	// fires and the operation names the fit.
	if panicErr.Operation != "svm.fit" {
		t.Errorf("Operation = %q, want svm.fit", panicErr.Operation)
	}
}
