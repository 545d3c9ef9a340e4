package segment

import (
	"fmt"
	"sort"

	"github.com/Veraticus/customer-lifecycle/internal/common"
	"github.com/Veraticus/customer-lifecycle/internal/model"
)

// DefaultLabels is the built-in segment vocabulary, ordered best to
// worst. Callers may supply their own ordered vocabulary via Config.
func DefaultLabels() []string {
	return []string{"Champions", "Loyal", "At Risk", "Hibernating"}
}

// Config controls a segmentation run.
type Config struct {
	// Labels is the ordered vocabulary (best-to-worst) assigned by
	// cluster quality rank. Nil means DefaultLabels.
	Labels []string
	K      int
	Seed   int64
}

// Result bundles the labeled customers with the fitted scaler and
// clusterer state so callers can reuse them.
type Result struct {
	Scaler    *Scaler
	Clusterer *KMeans
	Customers []model.Customer
}

// Segment standardizes the RFM features, clusters customers into K
// groups and assigns ranked semantic labels. The input slice is never
// mutated.
func Segment(customers []model.Customer, cfg Config) (*Result, error) {
	if len(customers) == 0 {
		return nil, common.ErrEmptyDataset
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", common.ErrInvalidConfig, cfg.K)
	}
	labels := cfg.Labels
	if labels == nil {
		labels = DefaultLabels()
	}

	x := make([][]float64, len(customers))
	for i, c := range customers {
		x[i] = []float64{c.Recency, c.Frequency, c.Monetary}
	}

	scaler := FitScaler(x)
	scaled := scaler.Transform(x)

	km := &KMeans{K: cfg.K, Seed: cfg.Seed}
	assignments := km.Fit(scaled)

	labelByCluster := rankLabels(km.Centroids, labels)

	out := make([]model.Customer, len(customers))
	for i, c := range customers {
		clone := c.Clone()
		clone.SegmentID = assignments[i]
		clone.Segment = labelByCluster[assignments[i]]
		out[i] = clone
	}

	return &Result{
		Customers: out,
		Scaler:    scaler,
		Clusterer: km,
	}, nil
}

// rankLabels scores each centroid in scaled RFM space (lower recency
// and higher frequency/monetary means a more valuable cluster), ranks
// descending and assigns vocabulary labels by rank. Ranks past the
// vocabulary get synthesized names. Score ties break toward the lower
// cluster index so the mapping is stable.
func rankLabels(centroids [][]float64, labels []string) map[int]string {
	type scored struct {
		cluster int
		score   float64
	}
	ranking := make([]scored, len(centroids))
	for c, centroid := range centroids {
		ranking[c] = scored{
			cluster: c,
			score:   -centroid[0] + centroid[1] + centroid[2],
		}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].score > ranking[j].score
	})

	out := make(map[int]string, len(centroids))
	for rank, s := range ranking {
		if rank < len(labels) {
			out[s.cluster] = labels[rank]
		} else {
			out[s.cluster] = fmt.Sprintf("Segment-%d", rank)
		}
	}
	return out
}
