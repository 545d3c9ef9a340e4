// Package churn trains, evaluates and explains binary churn
// classifiers over engineered customer features.
package churn

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/Veraticus/customer-lifecycle/internal/common"
	"github.com/Veraticus/customer-lifecycle/internal/model"
)

// FeatureNames is the fixed feature set every model trains and
// predicts on, in column order.
func FeatureNames() []string {
	return []string{"Recency", "Frequency", "Monetary", "Tenure", "ActivityGap", "ARPU", "CLTV"}
}

// DefaultWeakLabelRecencyDays is the fallback churn threshold used
// when no ground-truth label exists: customers with no purchase for
// this many days are weak-labeled as churned. It is a heuristic, not
// churn semantics, and is configurable for that reason.
const DefaultWeakLabelRecencyDays = 180

// featureMatrix builds the fixed design matrix. Non-finite values are
// collapsed to 0 before fitting or predicting.
func featureMatrix(customers []model.Customer) *mat.Dense {
	rows := len(customers)
	cols := len(FeatureNames())
	x := mat.NewDense(rows, cols, nil)
	for i, c := range customers {
		x.SetRow(i, []float64{
			common.Sanitize(c.Recency),
			common.Sanitize(c.Frequency),
			common.Sanitize(c.Monetary),
			common.Sanitize(c.Tenure),
			common.Sanitize(c.ActivityGap),
			common.Sanitize(c.ARPU),
			common.Sanitize(c.CLTV),
		})
	}
	return x
}

// labelVector extracts the outcome labels. When the label column is
// absent from the dataset it derives weak labels from recency and
// reports that it did so.
func labelVector(customers []model.Customer, labelColumn string, weakThresholdDays float64) (labels []float64, weak bool) {
	if weakThresholdDays <= 0 {
		weakThresholdDays = DefaultWeakLabelRecencyDays
	}

	labels = make([]float64, len(customers))
	if hasLabelColumn(customers, labelColumn) {
		for i, c := range customers {
			labels[i] = explicitLabel(c, labelColumn)
		}
		return labels, false
	}

	for i, c := range customers {
		if c.Recency >= weakThresholdDays {
			labels[i] = 1
		}
	}
	return labels, true
}

func hasLabelColumn(customers []model.Customer, labelColumn string) bool {
	for _, c := range customers {
		if labelColumn == "Churn" && c.Churn != nil {
			return true
		}
		if _, ok := c.Extra[labelColumn]; ok {
			return true
		}
	}
	return false
}

// explicitLabel reads a record's label, defaulting missing values to 0.
func explicitLabel(c model.Customer, labelColumn string) float64 {
	if labelColumn == "Churn" && c.Churn != nil {
		if *c.Churn != 0 {
			return 1
		}
		return 0
	}
	raw, ok := c.Extra[labelColumn]
	if !ok {
		return 0
	}
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "yes") {
		return 1
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0.5 {
		return 1
	}
	return 0
}

func distinctClasses(labels []float64) int {
	seen := make(map[float64]struct{}, 2)
	for _, y := range labels {
		seen[y] = struct{}{}
	}
	return len(seen)
}
