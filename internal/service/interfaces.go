// Package service orchestrates the analytics pipeline and defines the
// interfaces its collaborators implement.
package service

import (
	"context"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
)

// Store is the orchestration-layer artifact cache. The analytics core
// never touches it; the pipeline uses it to memoize enriched
// snapshots and keep a training-run ledger.
type Store interface {
	SaveSnapshot(ctx context.Context, datasetHash, options string, payload []byte) (string, error)
	GetSnapshot(ctx context.Context, datasetHash, options string) ([]byte, error)
	SaveTrainingRun(ctx context.Context, datasetHash string, metrics churn.Metrics) (string, error)
	GetLatestTrainingRun(ctx context.Context, datasetHash string, kind churn.Kind) (*churn.Metrics, error)
	Close() error
}
