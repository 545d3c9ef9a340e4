// Package segment clusters customers on their recency, frequency and
// monetary features and assigns stable, ranked semantic labels.
package segment

import "gonum.org/v1/gonum/stat"

// Scaler standardizes features to zero mean and unit variance. The
// three RFM features have incomparable scales, so clustering runs on
// standardized values.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-feature mean and standard deviation over the
// input set. Zero-variance features keep a unit scale so transformed
// values stay finite.
func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}
	dims := len(x[0])
	s := &Scaler{
		Mean: make([]float64, dims),
		Std:  make([]float64, dims),
	}
	col := make([]float64, len(x))
	for j := 0; j < dims; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || len(x) < 2 {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s
}

// Transform standardizes rows using the fitted parameters.
func (s *Scaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out
}
