package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
	"github.com/Veraticus/customer-lifecycle/internal/common"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "lifecycle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := []byte("CustomerID,Recency\nC1,10\n")
	id, err := store.SaveSnapshot(ctx, "hash-1", "now=2024-01-01", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := store.GetSnapshot(ctx, "hash-1", "now=2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSQLiteStore_SnapshotReplacedOnSameKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveSnapshot(ctx, "hash-1", "opts", []byte("old"))
	require.NoError(t, err)
	_, err = store.SaveSnapshot(ctx, "hash-1", "opts", []byte("new"))
	require.NoError(t, err)

	got, err := store.GetSnapshot(ctx, "hash-1", "opts")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestSQLiteStore_SnapshotNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSnapshot(context.Background(), "missing", "opts")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSQLiteStore_TrainingRunLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := churn.Metrics{
		ModelKind: churn.KindLogistic,
		Features:  churn.FeatureNames(),
		AUC:       0.81,
		Accuracy:  0.77,
	}
	second := first
	second.AUC = 0.85

	_, err := store.SaveTrainingRun(ctx, "hash-1", first)
	require.NoError(t, err)
	_, err = store.SaveTrainingRun(ctx, "hash-1", second)
	require.NoError(t, err)

	got, err := store.GetLatestTrainingRun(ctx, "hash-1", churn.KindLogistic)
	require.NoError(t, err)
	assert.Equal(t, 0.85, got.AUC, "latest run wins")

	_, err = store.GetLatestTrainingRun(ctx, "hash-1", churn.KindBoosted)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestNewSQLiteStore_EmptyPathFails(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}
