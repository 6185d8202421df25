package stats

import (
	"fmt"
	"strings"
	"testing"

	"github.com/peoplemetrics/attrition/dataset"
)

func mustTable(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	table, err := dataset.LoadReader(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadReader() error = %v", err)
	}
	return table
}

// spikeTable builds a table whose Value column holds 1..20 plus one
// extreme value at row index 20.
func spikeTable(t *testing.T) *dataset.Table {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Value,Attrition\n")
	for i := 1; i <= 20; i++ {
		label := "No"
		if i%5 == 0 {
			label = "Yes"
		}
		fmt.Fprintf(&sb, "%d,%s\n", i, label)
	}
	sb.WriteString("1000,Yes\n")
	return mustTable(t, sb.String())
}

func TestScannerFlagsExtremeValue(t *testing.T) {
	table := spikeTable(t)

	scanner := NewScanner()
	report, err := scanner.Scan(table)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(report) != 1 {
		t.Fatalf("Scan() flagged %d columns, want 1", len(report))
	}
	co := report[0]
	if co.Column != "Value" {
		t.Errorf("flagged column = %q, want Value", co.Column)
	}
	if len(co.IQROutliers) != 1 || co.IQROutliers[0] != 20 {
		t.Errorf("IQROutliers = %v, want [20]", co.IQROutliers)
	}
	if len(co.ZScoreOutliers) != 1 || co.ZScoreOutliers[0] != 20 {
		t.Errorf("ZScoreOutliers = %v, want [20]", co.ZScoreOutliers)
	}
	if co.UpperFence >= 1000 {
		t.Errorf("UpperFence = %v, should be well below the spike", co.UpperFence)
	}
}

func TestScannerCleanData(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Value,Attrition\n")
	for i := 1; i <= 10; i++ {
		label := "No"
		if i%2 == 0 {
			label = "Yes"
		}
		fmt.Fprintf(&sb, "%d,%s\n", i, label)
	}
	table := mustTable(t, sb.String())

	scanner := NewScanner()
	report, err := scanner.Scan(table)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("Scan() on clean data flagged %d columns, want 0", len(report))
	}
}

func TestScannerIdempotent(t *testing.T) {
	table := spikeTable(t)
	before, _ := table.Numeric("Value")

	scanner := NewScanner()
	first, err := scanner.Scan(table)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	second, err := scanner.Scan(table)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("repeated scans disagree: %d vs %d flagged columns", len(first), len(second))
	}
	for i := range first {
		if first[i].Column != second[i].Column ||
			len(first[i].IQROutliers) != len(second[i].IQROutliers) ||
			len(first[i].ZScoreOutliers) != len(second[i].ZScoreOutliers) {
			t.Errorf("repeated scans disagree on column %q", first[i].Column)
		}
	}

	// Scanning never modifies the table.
	after, _ := table.Numeric("Value")
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("row %d changed from %v to %v after scanning", i, before[i], after[i])
		}
	}
}

func TestScannerConstantColumn(t *testing.T) {
	table := mustTable(t, "Value,Attrition\n5,No\n5,Yes\n5,No\n5,Yes\n")

	scanner := NewScanner()
	report, err := scanner.Scan(table)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("Scan() on constant column flagged %d columns, want 0", len(report))
	}
}

func TestScannerTighterFences(t *testing.T) {
	table := spikeTable(t)

	loose := NewScanner()
	tight := NewScanner(WithIQRMultiplier(0.5), WithZScoreLimit(1.5))

	looseReport, err := loose.Scan(table)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	tightReport, err := tight.Scan(table)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	looseFlags := len(looseReport[0].IQROutliers)
	tightFlags := len(tightReport[0].IQROutliers)
	if tightFlags < looseFlags {
		t.Errorf("tighter fences flagged %d rows, loose fences %d", tightFlags, looseFlags)
	}
}
