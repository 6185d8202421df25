package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/peoplemetrics/attrition/pkg/errors"
	"github.com/peoplemetrics/attrition/pkg/log"
)

// TrainTestSplit partitions a table into train and test tables. With
// stratify true the class proportions of the label are preserved: each
// class contributes round(classCount * testSize) rows to the test set,
// at least one row when the class has two or more, and never its entire
// membership. The same seed always produces the same partition, and
// within each partition rows keep their original order.
func TrainTestSplit(t *Table, testSize float64, seed int, stratify bool) (train, test *Table, err error) {
	if t == nil || t.NRows() == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "dataset.TrainTestSplit")
	}

	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size",
			"must be strictly between 0 and 1", testSize)
	}

	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))

	var trainIdx, testIdx []int
	if stratify {
		// Bucket row indices by class, shuffle each bucket, then move the
		// rounded share of each class into the test set.
		classIndices := make(map[int][]int)
		for i, label := range t.labels {
			classIndices[label] = append(classIndices[label], i)
		}

		// Deterministic class order: the map iteration order must not
		// leak into the shuffle sequence.
		classes := make([]int, 0, len(classIndices))
		for class := range classIndices {
			classes = append(classes, class)
		}
		sort.Ints(classes)

		for _, class := range classes {
			indices := classIndices[class]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})

			nTest := int(math.Round(float64(len(indices)) * testSize))
			// A small minority class must not round out of the test
			// partition: both partitions see every class that has at
			// least two rows.
			if nTest == 0 && len(indices) > 1 {
				nTest = 1
			}
			if nTest >= len(indices) {
				nTest = len(indices) - 1
			}

			testIdx = append(testIdx, indices[:nTest]...)
			trainIdx = append(trainIdx, indices[nTest:]...)
		}
	} else {
		indices := make([]int, t.NRows())
		for i := range indices {
			indices[i] = i
		}
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nTest := int(math.Round(float64(len(indices)) * testSize))
		if nTest >= len(indices) {
			nTest = len(indices) - 1
		}
		if nTest == 0 {
			return nil, nil, errors.NewValueError("dataset.TrainTestSplit",
				"test partition would be empty")
		}

		testIdx = append(testIdx, indices[:nTest]...)
		trainIdx = append(trainIdx, indices[nTest:]...)
	}

	if len(testIdx) == 0 {
		return nil, nil, errors.NewValueError("dataset.TrainTestSplit",
			"test partition would be empty")
	}

	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	train, err = t.Subset(trainIdx)
	if err != nil {
		return nil, nil, err
	}
	test, err = t.Subset(testIdx)
	if err != nil {
		return nil, nil, err
	}

	train = train.withRole(RoleTrain)
	test = test.withRole(RoleTest)

	logger := log.GetLoggerWithName("dataset")
	logger.Info("train/test split",
		log.StepKey, "split",
		log.RandomSeedKey, seed,
		"train_rows", train.NRows(),
		"test_rows", test.NRows(),
		"train_positive_rate", train.PositiveRate(),
		"test_positive_rate", test.PositiveRate(),
	)

	return train, test, nil
}
