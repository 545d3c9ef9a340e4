package churn

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// BoostedTrees is a gradient-boosted regression-tree classifier on
// logistic loss. Depth-limited trees are fitted to gradient/hessian
// statistics with Newton leaf values. Fitting is deterministic under
// a fixed seed.
type BoostedTrees struct {
	trees []*treeNode
	prior float64

	// Zero values take the defaults noted per field.
	Rounds       int     // 300
	MaxDepth     int     // 4
	LearningRate float64 // 0.05
	Subsample    float64 // 0.9
	Lambda       float64 // 1.0
	Seed         int64
}

// Kind reports the model implementation.
func (b *BoostedTrees) Kind() Kind { return KindBoosted }

// Fit trains the ensemble.
func (b *BoostedTrees) Fit(x *mat.Dense, y []float64) error {
	rows, _ := x.Dims()
	if rows == 0 || rows != len(y) {
		return fmt.Errorf("boosted fit: %d rows, %d labels", rows, len(y))
	}
	b.applyDefaults()

	// Log-odds prior, clamped away from degenerate all-one/all-zero.
	pos := 0.0
	for _, v := range y {
		pos += v
	}
	p := pos / float64(rows)
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	b.prior = math.Log(p / (1 - p))

	rng := rand.New(rand.NewSource(b.Seed))
	scores := make([]float64, rows)
	for i := range scores {
		scores[i] = b.prior
	}

	grads := make([]float64, rows)
	hess := make([]float64, rows)
	b.trees = make([]*treeNode, 0, b.Rounds)
	for round := 0; round < b.Rounds; round++ {
		for i := 0; i < rows; i++ {
			pred := sigmoid(scores[i])
			grads[i] = pred - y[i]
			hess[i] = pred * (1 - pred)
		}

		sample := b.sampleRows(rows, rng)
		tree := buildTree(x, grads, hess, sample, b.MaxDepth, b.Lambda)
		b.trees = append(b.trees, tree)

		for i := 0; i < rows; i++ {
			scores[i] += b.LearningRate * tree.eval(x.RawRowView(i))
		}
	}
	return nil
}

// PredictProba returns per-row churn probabilities.
func (b *BoostedTrees) PredictProba(x *mat.Dense) []float64 {
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		score := b.prior
		row := x.RawRowView(i)
		for _, tree := range b.trees {
			score += b.LearningRate * tree.eval(row)
		}
		out[i] = sigmoid(score)
	}
	return out
}

func (b *BoostedTrees) applyDefaults() {
	if b.Rounds <= 0 {
		b.Rounds = 300
	}
	if b.MaxDepth <= 0 {
		b.MaxDepth = 4
	}
	if b.LearningRate <= 0 {
		b.LearningRate = 0.05
	}
	if b.Subsample <= 0 || b.Subsample > 1 {
		b.Subsample = 0.9
	}
	if b.Lambda <= 0 {
		b.Lambda = 1.0
	}
}

// sampleRows draws a subsample of row indices without replacement,
// sorted so tree construction order is stable.
func (b *BoostedTrees) sampleRows(rows int, rng *rand.Rand) []int {
	count := int(math.Ceil(b.Subsample * float64(rows)))
	if count >= rows {
		all := make([]int, rows)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := rng.Perm(rows)
	sample := perm[:count]
	sort.Ints(sample)
	return sample
}

// treeNode is a node of a regression tree. Leaves carry the Newton
// step value; internal nodes route on feature <= threshold.
type treeNode struct {
	left      *treeNode
	right     *treeNode
	threshold float64
	value     float64
	feature   int
	leaf      bool
}

func (n *treeNode) eval(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// buildTree grows a depth-limited tree over the sampled rows using
// the standard second-order gain criterion.
func buildTree(x *mat.Dense, grads, hess []float64, sample []int, depth int, lambda float64) *treeNode {
	sumG, sumH := 0.0, 0.0
	for _, i := range sample {
		sumG += grads[i]
		sumH += hess[i]
	}

	leaf := &treeNode{leaf: true, value: -sumG / (sumH + lambda)}
	if depth == 0 || len(sample) < 2 {
		return leaf
	}

	feature, threshold, gain := bestSplit(x, grads, hess, sample, sumG, sumH, lambda)
	if gain <= 0 {
		return leaf
	}

	var left, right []int
	for _, i := range sample {
		if x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(x, grads, hess, left, depth-1, lambda),
		right:     buildTree(x, grads, hess, right, depth-1, lambda),
	}
}

func bestSplit(x *mat.Dense, grads, hess []float64, sample []int, sumG, sumH, lambda float64) (feature int, threshold, gain float64) {
	_, cols := x.Dims()
	rootScore := sumG * sumG / (sumH + lambda)
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, len(sample))
	for j := 0; j < cols; j++ {
		copy(order, sample)
		sort.Slice(order, func(a, b int) bool {
			if x.At(order[a], j) != x.At(order[b], j) {
				return x.At(order[a], j) < x.At(order[b], j)
			}
			return order[a] < order[b]
		})

		leftG, leftH := 0.0, 0.0
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			leftG += grads[i]
			leftH += hess[i]

			cur, next := x.At(i, j), x.At(order[k+1], j)
			if cur == next {
				continue
			}
			rightG := sumG - leftG
			rightH := sumH - leftH
			g := leftG*leftG/(leftH+lambda) + rightG*rightG/(rightH+lambda) - rootScore
			if g > bestGain {
				bestGain = g
				bestFeature = j
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, 0
	}
	return bestFeature, bestThreshold, bestGain
}
