package churn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// explainSampleCap bounds the rows the explainer evaluates. Pure cost
// control for large datasets.
const explainSampleCap = 500

// Attribution is the global importance assigned to one feature.
type Attribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Explanation holds model-agnostic global feature attributions
// computed over a test partition.
type Explanation struct {
	Global     []Attribution `json:"global"`
	SampleSize int           `json:"sample_size"`
}

// Explain computes permutation-based global attributions: each
// feature column is shuffled in turn and the attribution is the mean
// absolute change in predicted probability. Failures never escape
// this boundary as panics; callers receive an error and downgrade to
// "explanations unavailable".
func Explain(clf Classifier, x *mat.Dense, seed int64) (expl *Explanation, err error) {
	defer func() {
		if r := recover(); r != nil {
			expl = nil
			err = fmt.Errorf("explainer failed: %v", r)
		}
	}()

	if clf == nil {
		return nil, fmt.Errorf("no model to explain")
	}
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, fmt.Errorf("no rows to explain")
	}

	rng := rand.New(rand.NewSource(seed))
	sample := x
	if rows > explainSampleCap {
		picked := rng.Perm(rows)[:explainSampleCap]
		sample = mat.NewDense(explainSampleCap, cols, nil)
		for k, i := range picked {
			sample.SetRow(k, x.RawRowView(i))
		}
		rows = explainSampleCap
	}

	baseline := clf.PredictProba(sample)
	names := FeatureNames()
	attributions := make([]Attribution, cols)

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = sample.At(i, j)
		}
		perm := rng.Perm(rows)

		shuffled := mat.DenseCopyOf(sample)
		for i := 0; i < rows; i++ {
			shuffled.Set(i, j, col[perm[i]])
		}

		permuted := clf.PredictProba(shuffled)
		total := 0.0
		for i := range permuted {
			total += math.Abs(permuted[i] - baseline[i])
		}
		attributions[j] = Attribution{
			Feature: names[j],
			Value:   total / float64(rows),
		}
	}

	return &Explanation{Global: attributions, SampleSize: rows}, nil
}
