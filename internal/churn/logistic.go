package churn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Veraticus/customer-lifecycle/internal/common"
)

// Classifier is the contract shared by all churn models.
type Classifier interface {
	// Fit trains the model on the design matrix x and binary labels y.
	Fit(x *mat.Dense, y []float64) error
	// PredictProba returns the churn probability for each row of x,
	// always in [0, 1].
	PredictProba(x *mat.Dense) []float64
	// Kind reports the model implementation.
	Kind() Kind
}

// Logistic is a binary logistic-regression classifier fitted by
// full-batch gradient descent. Features are standardized internally
// so the fixed learning rate behaves across scales. Fitting is fully
// deterministic.
type Logistic struct {
	mean    []float64
	std     []float64
	weights []float64
	bias    float64

	// Epochs and LearningRate default to 200 and 0.1 when zero.
	Epochs       int
	LearningRate float64
}

// Kind reports the model implementation.
func (l *Logistic) Kind() Kind { return KindLogistic }

// Fit trains the classifier.
func (l *Logistic) Fit(x *mat.Dense, y []float64) error {
	rows, cols := x.Dims()
	if rows == 0 || rows != len(y) {
		return fmt.Errorf("logistic fit: %d rows, %d labels", rows, len(y))
	}
	if l.Epochs <= 0 {
		l.Epochs = 200
	}
	if l.LearningRate <= 0 {
		l.LearningRate = 0.1
	}

	l.fitScaling(x)
	scaled := l.scale(x)

	l.weights = make([]float64, cols)
	l.bias = 0

	grad := make([]float64, cols)
	for epoch := 0; epoch < l.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		biasGrad := 0.0
		for i := 0; i < rows; i++ {
			row := scaled.RawRowView(i)
			err := sigmoid(dot(row, l.weights)+l.bias) - y[i]
			for j, v := range row {
				grad[j] += err * v
			}
			biasGrad += err
		}
		n := float64(rows)
		for j := range l.weights {
			l.weights[j] -= l.LearningRate * grad[j] / n
		}
		l.bias -= l.LearningRate * biasGrad / n
	}
	return nil
}

// PredictProba returns per-row churn probabilities.
func (l *Logistic) PredictProba(x *mat.Dense) []float64 {
	scaled := l.scale(x)
	rows, _ := scaled.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = sigmoid(dot(scaled.RawRowView(i), l.weights) + l.bias)
	}
	return out
}

func (l *Logistic) fitScaling(x *mat.Dense) {
	rows, cols := x.Dims()
	l.mean = make([]float64, cols)
	l.std = make([]float64, cols)
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += x.At(i, j)
		}
		mean := sum / float64(rows)
		varSum := 0.0
		for i := 0; i < rows; i++ {
			d := x.At(i, j) - mean
			varSum += d * d
		}
		std := math.Sqrt(common.SafeDiv(varSum, float64(rows)))
		if std == 0 {
			std = 1
		}
		l.mean[j] = mean
		l.std[j] = std
	}
}

func (l *Logistic) scale(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (x.At(i, j)-l.mean[j])/l.std[j])
		}
	}
	return out
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
