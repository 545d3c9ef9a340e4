package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
	"github.com/Veraticus/customer-lifecycle/internal/segment"
	"github.com/Veraticus/customer-lifecycle/internal/service"
	"github.com/Veraticus/customer-lifecycle/internal/storage"
)

func writeTestCSV(t *testing.T) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("CustomerID,SignupDate,LastPurchaseDate,LastLoginDate,NumTransactions,TotalSpend,Churn\n")
	for i := 0; i < 20; i++ {
		// Ten long-gone churners, ten active customers. Half the
		// churners never purchased past their signup month.
		if i < 5 {
			sb.WriteString(fmt.Sprintf("churn-%d,2023-01-%02d,2023-01-15,2023-01-15,%d,%d,1\n", i, i+1, 1+i%3, 50+i))
		} else if i < 10 {
			sb.WriteString(fmt.Sprintf("churn-%d,2023-01-%02d,2023-03-01,2023-03-01,%d,%d,1\n", i, i+1, 1+i%3, 50+i))
		} else {
			sb.WriteString(fmt.Sprintf("active-%d,2023-01-%02d,2024-05-%02d,2024-05-20,%d,%d,0\n", i, i-9, i-9, 30+i, 4000+10*i))
		}
	}

	path := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0600))
	return path
}

func newPipelineWithStore(t *testing.T) (*service.Pipeline, service.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return service.New(store), store
}

func TestPipeline_EnrichFileCachesSnapshot(t *testing.T) {
	pipeline, _ := newPipelineWithStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ds, err := pipeline.EnrichFile(ctx, writeTestCSV(t), now)
	require.NoError(t, err)
	require.Len(t, ds.Customers, 20)
	assert.NotEmpty(t, ds.Hash)

	payload := pipeline.CachedSnapshot(ctx, ds.Hash, now)
	require.NotNil(t, payload, "enriched artifact should be cached")
	assert.Contains(t, string(payload), "CustomerID")
	assert.Contains(t, string(payload), "CLTV")
}

func TestPipeline_TrainRecordsRun(t *testing.T) {
	pipeline, _ := newPipelineWithStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ds, err := pipeline.EnrichFile(ctx, writeTestCSV(t), now)
	require.NoError(t, err)

	assert.Nil(t, pipeline.LastTrainingRun(ctx, ds, churn.KindLogistic), "no run recorded yet")

	bundle, err := pipeline.Train(ctx, ds, churn.TrainConfig{Model: churn.KindLogistic, Seed: 42})
	require.NoError(t, err)

	recorded := pipeline.LastTrainingRun(ctx, ds, churn.KindLogistic)
	require.NotNil(t, recorded)
	assert.Equal(t, bundle.Metrics.AUC, recorded.AUC)
	assert.Equal(t, bundle.Metrics.ModelKind, recorded.ModelKind)
}

func TestPipeline_WorksWithoutStore(t *testing.T) {
	pipeline := service.New(nil)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ds, err := pipeline.EnrichFile(ctx, writeTestCSV(t), now)
	require.NoError(t, err)

	assert.Nil(t, pipeline.CachedSnapshot(ctx, ds.Hash, now))

	result, err := pipeline.Segment(ds, segment.Config{K: 4, Seed: 42})
	require.NoError(t, err)
	assert.Len(t, result.Customers, 20)

	matrix := pipeline.Retention(ds)
	assert.NotEmpty(t, matrix.Rows)
}

func TestPipeline_UnreadableFile(t *testing.T) {
	pipeline := service.New(nil)

	_, err := pipeline.EnrichFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), time.Now())
	assert.Error(t, err)
}

func TestPipeline_EndToEnd(t *testing.T) {
	pipeline, _ := newPipelineWithStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ds, err := pipeline.EnrichFile(ctx, writeTestCSV(t), now)
	require.NoError(t, err)

	segmented, err := pipeline.Segment(ds, segment.Config{K: 3, Seed: 42})
	require.NoError(t, err)

	bundle, err := pipeline.Train(ctx, ds, churn.TrainConfig{Model: churn.KindAuto, Seed: 42})
	require.NoError(t, err)

	scored := churn.Predict(bundle.Model, segmented.Customers)
	require.Len(t, scored, 20)
	for _, s := range scored {
		assert.GreaterOrEqual(t, s.ChurnProbability, 0.0)
		assert.LessOrEqual(t, s.ChurnProbability, 1.0)
		assert.NotEmpty(t, s.Segment)
	}

	matrix := pipeline.Retention(ds)
	for _, row := range matrix.Rows {
		if row.Size > 0 {
			assert.Equal(t, 1.0, row.Retention[0], "cohort %v", row.Month)
		}
	}
}
