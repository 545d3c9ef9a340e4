package segment

import (
	"math"
	"math/rand"
)

// KMeans is a seeded partitioning clusterer. Identical input, k and
// seed reproduce identical centroids and assignments.
type KMeans struct {
	Centroids [][]float64
	K         int
	MaxIter   int
	Seed      int64
}

// Fit clusters x into K groups and returns the per-row cluster index.
// Inputs with fewer distinct points than K still produce a valid
// clustering; the surplus clusters simply end up empty.
func (km *KMeans) Fit(x [][]float64) []int {
	if len(x) == 0 {
		return nil
	}
	if km.MaxIter <= 0 {
		km.MaxIter = 100
	}

	rng := rand.New(rand.NewSource(km.Seed))
	km.Centroids = seedCentroids(x, km.K, rng)

	assignments := make([]int, len(x))
	for iter := 0; iter < km.MaxIter; iter++ {
		changed := false
		for i, row := range x {
			c := nearestCentroid(row, km.Centroids)
			if c != assignments[i] {
				assignments[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids; empty clusters keep their previous
		// position rather than collapsing.
		dims := len(x[0])
		sums := make([][]float64, km.K)
		counts := make([]int, km.K)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range x {
			c := assignments[i]
			counts[c]++
			for j, v := range row {
				sums[c][j] += v
			}
		}
		for c := 0; c < km.K; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := 0; j < dims; j++ {
				km.Centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	return assignments
}

// Predict returns the nearest-centroid index for each row.
func (km *KMeans) Predict(x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		out[i] = nearestCentroid(row, km.Centroids)
	}
	return out
}

// seedCentroids picks initial centroids k-means++ style: the first
// uniformly, the rest weighted by squared distance to the nearest
// chosen centroid. Entirely driven by the supplied source.
func seedCentroids(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := x[rng.Intn(len(x))]
	centroids = append(centroids, cloneRow(first))

	dists := make([]float64, len(x))
	for len(centroids) < k {
		total := 0.0
		for i, row := range x {
			d := squaredDistance(row, centroids[nearestCentroid(row, centroids)])
			dists[i] = d
			total += d
		}
		if total == 0 {
			// All points coincide with existing centroids; duplicate one.
			centroids = append(centroids, cloneRow(x[rng.Intn(len(x))]))
			continue
		}
		target := rng.Float64() * total
		acc := 0.0
		pick := len(x) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, cloneRow(x[pick]))
	}
	return centroids
}

// nearestCentroid breaks distance ties toward the lower index so
// assignment order is stable.
func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(row, centroid); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cloneRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
