package pipeline

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplemetrics/attrition/metrics"
)

func TestSaveROCPlot(t *testing.T) {
	points := []metrics.ROCPoint{
		{Threshold: math.Inf(1), FPR: 0, TPR: 0},
		{Threshold: 0.9, FPR: 0, TPR: 0.5},
		{Threshold: 0.6, FPR: 0.25, TPR: 0.75},
		{Threshold: 0.2, FPR: 1, TPR: 1},
	}
	path := filepath.Join(t.TempDir(), "roc.png")
	require.NoError(t, SaveROCPlot(points, "ROC logistic_regression", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSaveROCPlotEmpty(t *testing.T) {
	err := SaveROCPlot(nil, "ROC", filepath.Join(t.TempDir(), "roc.png"))
	assert.Error(t, err)
}
