package churn

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ConfusionMatrix is the 2x2 outcome table at the 0.5 threshold.
type ConfusionMatrix struct {
	TrueNegatives  int `json:"true_negatives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	TruePositives  int `json:"true_positives"`
}

// Metrics is the evaluation record for a trained model on its
// held-out test partition.
type Metrics struct {
	ModelKind Kind            `json:"model_type"`
	Features  []string        `json:"features"`
	AUC       float64         `json:"auc"`
	Accuracy  float64         `json:"accuracy"`
	Confusion ConfusionMatrix `json:"confusion_matrix"`
}

// evaluate computes AUC, accuracy at the 0.5 probability threshold
// and the confusion matrix. A single-class test partition has no
// defined AUC; it reports 0.
func evaluate(labels, proba []float64) (auc, accuracy float64, cm ConfusionMatrix) {
	n := len(labels)
	if n == 0 {
		return 0, 0, cm
	}

	correct := 0
	for i, y := range labels {
		predicted := proba[i] >= 0.5
		actual := y >= 0.5
		switch {
		case actual && predicted:
			cm.TruePositives++
		case actual && !predicted:
			cm.FalseNegatives++
		case !actual && predicted:
			cm.FalsePositives++
		default:
			cm.TrueNegatives++
		}
		if predicted == actual {
			correct++
		}
	}
	accuracy = float64(correct) / float64(n)

	return rocAUC(labels, proba), accuracy, cm
}

// rocAUC computes the area under the ROC curve via gonum's ROC
// helper, which requires scores sorted ascending.
func rocAUC(labels, proba []float64) float64 {
	positives, negatives := 0, 0
	for _, y := range labels {
		if y >= 0.5 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0
	}

	idx := make([]int, len(labels))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return proba[idx[a]] < proba[idx[b]] })

	scores := make([]float64, len(idx))
	classes := make([]bool, len(idx))
	for k, i := range idx {
		scores[k] = proba[i]
		classes[k] = labels[i] >= 0.5
	}

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
