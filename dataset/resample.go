package dataset

import (
	"math/rand/v2"

	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// Upsample balances the classes by sampling minority-class rows with
// replacement until both classes have the same count. The input table is
// left untouched; the returned table holds the original rows in their
// original order followed by the duplicated draws.
//
// Upsampling the held-out test partition would fabricate evaluation rows,
// so a table with RoleTest is rejected with a DataLeakageError.
func Upsample(t *Table, seed int) (*Table, error) {
	if t == nil || t.NRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Upsample")
	}

	if t.Role() == RoleTest {
		return nil, errors.NewDataLeakageError("Upsample",
			"refusing to resample the held-out test partition")
	}

	var posIdx, negIdx []int
	for i, label := range t.labels {
		if label == 1 {
			posIdx = append(posIdx, i)
		} else {
			negIdx = append(negIdx, i)
		}
	}

	if len(posIdx) == 0 || len(negIdx) == 0 {
		return nil, errors.NewValueError("dataset.Upsample",
			"both classes must be present")
	}

	minority := posIdx
	if len(negIdx) < len(posIdx) {
		minority = negIdx
	}
	deficit := len(posIdx) + len(negIdx) - 2*len(minority)

	indices := make([]int, t.NRows(), t.NRows()+deficit)
	for i := range indices {
		indices[i] = i
	}

	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	for i := 0; i < deficit; i++ {
		indices = append(indices, minority[r.IntN(len(minority))])
	}

	balanced, err := t.Subset(indices)
	if err != nil {
		return nil, err
	}

	pos, neg := balanced.ClassCounts()
	logger := log.GetLoggerWithName("dataset")
	logger.Info("minority class upsampled",
		log.StepKey, "resample",
		log.RandomSeedKey, seed,
		log.SamplesKey, balanced.NRows(),
		"positive_rows", pos,
		"negative_rows", neg,
	)

	return balanced, nil
}
