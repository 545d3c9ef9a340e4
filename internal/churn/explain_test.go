package churn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// stubClassifier scores rows by their first feature only.
type stubClassifier struct{}

func (stubClassifier) Fit(_ *mat.Dense, _ []float64) error { return nil }
func (stubClassifier) Kind() Kind                          { return KindLogistic }
func (stubClassifier) PredictProba(x *mat.Dense) []float64 {
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = sigmoid(x.At(i, 0))
	}
	return out
}

func TestExplain_AttributesInfluentialFeature(t *testing.T) {
	rows := 50
	cols := len(FeatureNames())
	x := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		x.Set(i, 0, float64(i%2)*4-2) // only feature 0 varies meaningfully
		x.Set(i, 1, 1)
	}

	expl, err := Explain(stubClassifier{}, x, 42)
	require.NoError(t, err)
	require.Len(t, expl.Global, cols)

	assert.Positive(t, expl.Global[0].Value, "the feature the model uses should get attribution")
	for _, attr := range expl.Global[1:] {
		assert.Zero(t, attr.Value, "constant features the model ignores get none")
	}
}

func TestExplain_CapsSampleSize(t *testing.T) {
	rows := explainSampleCap + 100
	x := mat.NewDense(rows, len(FeatureNames()), nil)
	for i := 0; i < rows; i++ {
		x.Set(i, 0, float64(i))
	}

	expl, err := Explain(stubClassifier{}, x, 42)
	require.NoError(t, err)
	assert.Equal(t, explainSampleCap, expl.SampleSize)
}

func TestExplain_FailuresStayInsideBoundary(t *testing.T) {
	_, err := Explain(stubClassifier{}, mat.NewDense(1, len(FeatureNames()), nil), 42)
	assert.NoError(t, err, "single row still explainable")

	_, err = Explain(nil, mat.NewDense(1, len(FeatureNames()), nil), 42)
	assert.Error(t, err, "nil model degrades to an error, not a panic")
}
