package churn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Veraticus/customer-lifecycle/internal/common"
	"github.com/Veraticus/customer-lifecycle/internal/model"
)

// ValidationError reports training inputs that cannot produce a valid
// model, e.g. a single outcome class. These are fatal: the caller
// should retry with different input, not different options.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("training validation failed: %s", e.Reason)
}

// TrainConfig controls a training run.
type TrainConfig struct {
	// Capabilities overrides the probed backend availability; nil
	// means DetectCapabilities().
	Capabilities *Capabilities
	// LabelColumn names the outcome column; default "Churn".
	LabelColumn string
	// Model selects the classifier; default KindAuto.
	Model Kind
	// WeakLabelRecencyDays is the recency threshold for weak labeling
	// when no outcome column exists; default 180.
	WeakLabelRecencyDays float64
	Seed                 int64
}

// Bundle is the artifact of one training invocation. It is owned by
// the caller and never mutated after return.
type Bundle struct {
	Model       Classifier
	Explanation *Explanation // nil when the explainer is unavailable
	Metrics     Metrics
	// Held-out test partition with labels and predicted probabilities.
	TestCustomers     []model.Customer
	TestLabels        []float64
	TestProbabilities []float64
	// UsedWeakLabels reports that the outcome column was absent and
	// labels were derived heuristically from recency.
	UsedWeakLabels bool
	// Stratified reports whether the split preserved class balance.
	Stratified bool
}

// Train splits the dataset, fits the selected classifier, evaluates
// it on the held-out partition and attaches best-effort explanations.
func Train(customers []model.Customer, cfg TrainConfig) (*Bundle, error) {
	if len(customers) < 2 {
		return nil, &ValidationError{Reason: fmt.Sprintf("need at least 2 records, got %d", len(customers))}
	}
	if cfg.LabelColumn == "" {
		cfg.LabelColumn = "Churn"
	}
	if cfg.Model == "" {
		cfg.Model = KindAuto
	}
	caps := DetectCapabilities()
	if cfg.Capabilities != nil {
		caps = *cfg.Capabilities
	}

	labels, weak := labelVector(customers, cfg.LabelColumn, cfg.WeakLabelRecencyDays)
	if weak {
		common.LogInfo("no outcome column found, deriving weak labels from recency",
			common.Fields{"label_column": cfg.LabelColumn})
	}
	if distinctClasses(labels) < 2 {
		return nil, &ValidationError{Reason: "need at least 2 outcome classes for classification, found 1"}
	}

	trainIdx, testIdx, stratified := trainTestSplit(labels, cfg.Seed)

	x := featureMatrix(customers)
	trainX, trainY := subset(x, labels, trainIdx)
	testX, testY := subset(x, labels, testIdx)

	kind := cfg.Model.resolve(caps)
	clf := newClassifier(kind, cfg.Seed)
	if err := clf.Fit(trainX, trainY); err != nil {
		return nil, fmt.Errorf("failed to fit %s model: %w", kind, err)
	}

	proba := clampProbabilities(clf.PredictProba(testX))
	auc, accuracy, cm := evaluate(testY, proba)

	bundle := &Bundle{
		Model: clf,
		Metrics: Metrics{
			ModelKind: kind,
			Features:  FeatureNames(),
			AUC:       auc,
			Accuracy:  accuracy,
			Confusion: cm,
		},
		TestCustomers:     cloneSubset(customers, testIdx),
		TestLabels:        testY,
		TestProbabilities: proba,
		UsedWeakLabels:    weak,
		Stratified:        stratified,
	}

	if !caps.Explainer {
		common.LogWarn("explainer unavailable, skipping attributions", nil)
		return bundle, nil
	}
	explanation, err := Explain(clf, testX, cfg.Seed)
	if err != nil {
		// Soft degradation: metrics stay valid without explanations.
		common.LogWarn("explanation skipped", common.Fields{"reason": err.Error()})
		return bundle, nil
	}
	bundle.Explanation = explanation
	return bundle, nil
}

// Predict scores any record set with a trained model, appending a
// churn probability in [0, 1] per record. The input is cloned, never
// mutated.
func Predict(clf Classifier, customers []model.Customer) []model.ScoredCustomer {
	proba := clampProbabilities(clf.PredictProba(featureMatrix(customers)))
	out := make([]model.ScoredCustomer, len(customers))
	for i, c := range customers {
		out[i] = model.ScoredCustomer{
			Customer:         c.Clone(),
			ChurnProbability: proba[i],
		}
	}
	return out
}

func newClassifier(kind Kind, seed int64) Classifier {
	if kind == KindBoosted {
		return &BoostedTrees{Seed: seed}
	}
	return &Logistic{}
}

func subset(x *mat.Dense, labels []float64, idx []int) (*mat.Dense, []float64) {
	_, cols := x.Dims()
	subX := mat.NewDense(len(idx), cols, nil)
	subY := make([]float64, len(idx))
	for k, i := range idx {
		subX.SetRow(k, x.RawRowView(i))
		subY[k] = labels[i]
	}
	return subX, subY
}

func cloneSubset(customers []model.Customer, idx []int) []model.Customer {
	out := make([]model.Customer, len(idx))
	for k, i := range idx {
		out[k] = customers[i].Clone()
	}
	return out
}

func clampProbabilities(proba []float64) []float64 {
	for i, p := range proba {
		switch {
		case p != p || p < 0: // NaN or negative
			proba[i] = 0
		case p > 1:
			proba[i] = 1
		}
	}
	return proba
}
