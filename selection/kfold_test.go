package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKFold(t *testing.T) {
	t.Run("Folds are disjoint and exhaustive", func(t *testing.T) {
		n := 100
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, float64(i))
			y.Set(i, 0, float64(i%2))
		}

		kf := NewKFold(5, false, 42)
		assert.Equal(t, 5, kf.GetNSplits())

		folds := kf.Split(X, y)
		require.Len(t, folds, 5)

		covered := make(map[int]int)
		for i, fold := range folds {
			assert.Equal(t, 80, len(fold.TrainIndices), "fold %d train size", i)
			assert.Equal(t, 20, len(fold.TestIndices), "fold %d test size", i)

			inTest := make(map[int]bool)
			for _, idx := range fold.TestIndices {
				inTest[idx] = true
				covered[idx]++
			}
			for _, idx := range fold.TrainIndices {
				assert.False(t, inTest[idx], "train index %d also in test", idx)
			}
		}

		// Every row is validated exactly once across the folds.
		for i := 0; i < n; i++ {
			assert.Equal(t, 1, covered[i], "index %d coverage", i)
		}
	})

	t.Run("Uneven sizes differ by at most one", func(t *testing.T) {
		X := mat.NewDense(23, 1, nil)
		y := mat.NewDense(23, 1, nil)

		folds := NewKFold(5, false, 0).Split(X, y)
		total := 0
		for _, fold := range folds {
			size := len(fold.TestIndices)
			assert.True(t, size == 4 || size == 5, "fold size %d", size)
			total += size
		}
		assert.Equal(t, 23, total)
	})

	t.Run("Shuffle is deterministic per seed", func(t *testing.T) {
		X := mat.NewDense(50, 1, nil)
		y := mat.NewDense(50, 1, nil)

		a := NewKFold(5, true, 7).Split(X, y)
		b := NewKFold(5, true, 7).Split(X, y)
		c := NewKFold(5, true, 8).Split(X, y)

		assert.Equal(t, a, b, "identical seeds must produce identical folds")
		assert.NotEqual(t, a, c, "different seeds should reorder the folds")
	})

	t.Run("Too few splits falls back to five", func(t *testing.T) {
		assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
	})
}

func TestStratifiedKFold(t *testing.T) {
	t.Run("Every fold holds minority rows", func(t *testing.T) {
		// 100 rows, only 20 positive. Plain splitting could starve a fold
		// of positives; stratification must not.
		n := 100
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, float64(i))
			if i < 20 {
				y.Set(i, 0, 1)
			}
		}

		folds := NewStratifiedKFold(5, true, 42).Split(X, y)
		require.Len(t, folds, 5)

		for i, fold := range folds {
			pos := 0
			for _, idx := range fold.TestIndices {
				if y.At(idx, 0) == 1 {
					pos++
				}
			}
			assert.Equal(t, 4, pos, "fold %d positive count", i)
			assert.Equal(t, 20, len(fold.TestIndices), "fold %d size", i)
		}
	})

	t.Run("Folds are disjoint and exhaustive", func(t *testing.T) {
		n := 60
		X := mat.NewDense(n, 1, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			y.Set(i, 0, float64(i%3))
		}

		folds := NewStratifiedKFold(4, true, 3).Split(X, y)

		covered := make(map[int]int)
		for _, fold := range folds {
			inTest := make(map[int]bool)
			for _, idx := range fold.TestIndices {
				inTest[idx] = true
				covered[idx]++
			}
			for _, idx := range fold.TrainIndices {
				assert.False(t, inTest[idx])
			}
			assert.Equal(t, n, len(fold.TrainIndices)+len(fold.TestIndices))
		}
		assert.Len(t, covered, n)
	})

	t.Run("Deterministic per seed", func(t *testing.T) {
		n := 40
		X := mat.NewDense(n, 1, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			y.Set(i, 0, float64(i%2))
		}

		a := NewStratifiedKFold(5, true, 11).Split(X, y)
		b := NewStratifiedKFold(5, true, 11).Split(X, y)
		assert.Equal(t, a, b)
	})
}
