package churn

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Veraticus/customer-lifecycle/internal/common"
)

const testFraction = 0.25

// trainTestSplit partitions row indices 75/25, stratified by label
// when every class is large enough to land in both partitions. When
// stratification is infeasible it falls back to a plain shuffled
// split rather than erroring, and reports which strategy was used.
func trainTestSplit(labels []float64, seed int64) (train, test []int, stratified bool) {
	n := len(labels)

	byClass := make(map[float64][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}

	// Iterate classes in a fixed order for determinism.
	classes := make([]float64, 0, len(byClass))
	for y := range byClass {
		classes = append(classes, y)
	}
	sort.Float64s(classes)

	if counts, feasible := allocateTestCounts(byClass, classes); feasible {
		rng := rand.New(rand.NewSource(seed))
		for _, y := range classes {
			members := byClass[y]
			shuffled := make([]int, len(members))
			copy(shuffled, members)
			rng.Shuffle(len(shuffled), func(a, b int) {
				shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
			})
			testCount := counts[y]
			test = append(test, shuffled[:testCount]...)
			train = append(train, shuffled[testCount:]...)
		}
		return train, test, true
	}

	common.LogWarn("stratified split infeasible, using plain split", common.Fields{"rows": n})
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	testCount := int(math.Round(testFraction * float64(n)))
	if testCount == 0 && n > 1 {
		testCount = 1
	}
	return perm[testCount:], perm[:testCount], false
}

// allocateTestCounts sizes each class's test share so the total equals
// round(testFraction*n): floor per class, then the remainder goes to
// the classes with the largest fractional parts. Rounding per class
// independently would inflate the test partition. Infeasible when any
// class would land entirely in one partition.
func allocateTestCounts(byClass map[float64][]int, classes []float64) (map[float64]int, bool) {
	n := 0
	for _, members := range byClass {
		n += len(members)
	}
	total := int(math.Round(testFraction * float64(n)))

	type share struct {
		class float64
		frac  float64
	}
	counts := make(map[float64]int, len(classes))
	shares := make([]share, 0, len(classes))
	allocated := 0
	for _, y := range classes {
		exact := testFraction * float64(len(byClass[y]))
		whole := int(math.Floor(exact))
		counts[y] = whole
		allocated += whole
		shares = append(shares, share{class: y, frac: exact - float64(whole)})
	}
	sort.SliceStable(shares, func(a, b int) bool { return shares[a].frac > shares[b].frac })
	for i := 0; allocated < total && i < len(shares); i++ {
		counts[shares[i].class]++
		allocated++
	}

	for _, y := range classes {
		size := len(byClass[y])
		if size < 2 || counts[y] == 0 || counts[y] == size {
			return nil, false
		}
	}
	return counts, true
}
