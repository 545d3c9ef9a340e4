package churn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/customer-lifecycle/internal/model"
)

func intPtr(v int) *int { return &v }

// separableCustomers builds a labeled dataset where churners and
// active customers are cleanly separated in feature space.
func separableCustomers(n int) []model.Customer {
	customers := make([]model.Customer, 0, n)
	for i := 0; i < n/2; i++ {
		customers = append(customers, model.Customer{
			ID:          fmt.Sprintf("churned-%d", i),
			Recency:     float64(250 + i),
			Frequency:   float64(1 + i%3),
			Monetary:    float64(40 + i),
			Tenure:      500,
			ActivityGap: float64(200 + i),
			ARPU:        2.5,
			CLTV:        30,
			Churn:       intPtr(1),
		})
	}
	for i := 0; i < n-n/2; i++ {
		customers = append(customers, model.Customer{
			ID:          fmt.Sprintf("active-%d", i),
			Recency:     float64(2 + i%10),
			Frequency:   float64(40 + i),
			Monetary:    float64(4000 + 20*i),
			Tenure:      500,
			ActivityGap: float64(1 + i%5),
			ARPU:        240,
			CLTV:        2800,
			Churn:       intPtr(0),
		})
	}
	return customers
}

func TestTrain_LogisticOnSeparableData(t *testing.T) {
	bundle, err := Train(separableCustomers(40), TrainConfig{Model: KindLogistic, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, KindLogistic, bundle.Metrics.ModelKind)
	assert.Equal(t, FeatureNames(), bundle.Metrics.Features)
	assert.False(t, bundle.UsedWeakLabels)
	assert.True(t, bundle.Stratified)

	assert.GreaterOrEqual(t, bundle.Metrics.AUC, 0.9, "separable data should score near-perfect AUC")
	assert.GreaterOrEqual(t, bundle.Metrics.Accuracy, 0.9)

	cm := bundle.Metrics.Confusion
	total := cm.TruePositives + cm.TrueNegatives + cm.FalsePositives + cm.FalseNegatives
	assert.Equal(t, len(bundle.TestCustomers), total, "confusion matrix should cover the test partition")

	for _, p := range bundle.TestProbabilities {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestTrain_BoostedOnSeparableData(t *testing.T) {
	bundle, err := Train(separableCustomers(40), TrainConfig{Model: KindBoosted, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, KindBoosted, bundle.Metrics.ModelKind)
	assert.GreaterOrEqual(t, bundle.Metrics.AUC, 0.9)
}

func TestTrain_AutoResolution(t *testing.T) {
	customers := separableCustomers(24)

	bundle, err := Train(customers, TrainConfig{Model: KindAuto, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, KindBoosted, bundle.Metrics.ModelKind, "auto should prefer boosted trees when available")

	bundle, err = Train(customers, TrainConfig{
		Model:        KindAuto,
		Seed:         42,
		Capabilities: &Capabilities{BoostedTrees: false, Explainer: true},
	})
	require.NoError(t, err)
	assert.Equal(t, KindLogistic, bundle.Metrics.ModelKind, "auto should fall back to logistic when boosted trees are unavailable")
}

func TestTrain_WeakLabelsSingleClassFails(t *testing.T) {
	// Every customer is recently active and unlabeled: weak labeling
	// produces a single class.
	var customers []model.Customer
	for i := 0; i < 10; i++ {
		customers = append(customers, model.Customer{
			ID:      fmt.Sprintf("c-%d", i),
			Recency: float64(i * 10), // all < 180
		})
	}

	_, err := Train(customers, TrainConfig{Seed: 42})
	require.Error(t, err)

	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr), "want *ValidationError, got %T", err)
}

func TestTrain_WeakLabelsAreDerivedFromRecency(t *testing.T) {
	var customers []model.Customer
	for i := 0; i < 20; i++ {
		recency := float64(10)
		if i%2 == 0 {
			recency = 400
		}
		customers = append(customers, model.Customer{
			ID:        fmt.Sprintf("c-%d", i),
			Recency:   recency,
			Frequency: float64(i),
			Monetary:  float64(i * 10),
		})
	}

	bundle, err := Train(customers, TrainConfig{Model: KindLogistic, Seed: 42})
	require.NoError(t, err)
	assert.True(t, bundle.UsedWeakLabels)
}

func TestTrain_WeakLabelThresholdConfigurable(t *testing.T) {
	var customers []model.Customer
	for i := 0; i < 12; i++ {
		customers = append(customers, model.Customer{
			ID:      fmt.Sprintf("c-%d", i),
			Recency: float64(30 + i), // 30..41 days
		})
	}

	// Default threshold (180): single class, fails.
	_, err := Train(customers, TrainConfig{Model: KindLogistic, Seed: 42})
	require.Error(t, err)

	// Lower threshold splits the same data into two classes.
	_, err = Train(customers, TrainConfig{Model: KindLogistic, Seed: 42, WeakLabelRecencyDays: 36})
	require.NoError(t, err)
}

func TestTrain_Deterministic(t *testing.T) {
	customers := separableCustomers(30)

	first, err := Train(customers, TrainConfig{Model: KindBoosted, Seed: 42})
	require.NoError(t, err)
	second, err := Train(customers, TrainConfig{Model: KindBoosted, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.TestProbabilities, second.TestProbabilities)
}

func TestTrain_ExplainerDisabledDegradesSoftly(t *testing.T) {
	bundle, err := Train(separableCustomers(24), TrainConfig{
		Model:        KindLogistic,
		Seed:         42,
		Capabilities: &Capabilities{BoostedTrees: true, Explainer: false},
	})
	require.NoError(t, err)

	assert.Nil(t, bundle.Explanation)
	assert.NotZero(t, bundle.Metrics.Accuracy, "metrics stay valid without explanations")
}

func TestTrain_ExplanationCoversAllFeatures(t *testing.T) {
	bundle, err := Train(separableCustomers(40), TrainConfig{Model: KindLogistic, Seed: 42})
	require.NoError(t, err)

	require.NotNil(t, bundle.Explanation)
	require.Len(t, bundle.Explanation.Global, len(FeatureNames()))
	for i, attr := range bundle.Explanation.Global {
		assert.Equal(t, FeatureNames()[i], attr.Feature)
		assert.GreaterOrEqual(t, attr.Value, 0.0)
	}
}

func TestPredict_RangeAndImmutability(t *testing.T) {
	customers := separableCustomers(30)
	bundle, err := Train(customers, TrainConfig{Model: KindLogistic, Seed: 42})
	require.NoError(t, err)

	scored := Predict(bundle.Model, customers)
	require.Len(t, scored, len(customers))
	for i, s := range scored {
		assert.GreaterOrEqual(t, s.ChurnProbability, 0.0)
		assert.LessOrEqual(t, s.ChurnProbability, 1.0)
		assert.Equal(t, customers[i].ID, s.ID)
	}

	// Input records keep their zero-value segment fields: Predict
	// works on clones.
	for _, c := range customers {
		assert.Empty(t, c.Segment)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{input: "logistic", want: KindLogistic},
		{input: "boosted", want: KindBoosted},
		{input: "gradient-boosted-tree", want: KindBoosted},
		{input: "auto", want: KindAuto},
		{input: "", want: KindAuto},
		{input: "perceptron", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
