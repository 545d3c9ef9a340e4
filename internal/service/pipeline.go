package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
	"github.com/Veraticus/customer-lifecycle/internal/cohort"
	"github.com/Veraticus/customer-lifecycle/internal/common"
	"github.com/Veraticus/customer-lifecycle/internal/etl"
	"github.com/Veraticus/customer-lifecycle/internal/model"
	"github.com/Veraticus/customer-lifecycle/internal/segment"
)

// Pipeline ties the pipeline stages together. Every stage is a pure
// transformation; the pipeline adds dataset identity, artifact
// caching and logging around them.
type Pipeline struct {
	store Store
}

// New creates a pipeline. A nil store disables caching.
func New(store Store) *Pipeline {
	return &Pipeline{store: store}
}

// Dataset is a loaded and enriched dataset together with its content
// identity, which keys all cached artifacts derived from it.
type Dataset struct {
	Hash      string
	Customers []model.Customer
	// ExtraColumns preserves unrecognized source columns in input
	// order for export.
	ExtraColumns []string
}

// EnrichFile loads a raw CSV, enriches it, and caches the enriched
// artifact when a store is configured. Repeated calls on identical
// file content and evaluation instant are served from the cache.
func (p *Pipeline) EnrichFile(ctx context.Context, path string, now time.Time) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnreadableSource, err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(raw))

	table, err := etl.ReadCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	customers, err := etl.Enrich(table, etl.Options{Now: now})
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Hash:         hash,
		Customers:    customers,
		ExtraColumns: table.ExtraColumns(),
	}
	common.LogInfo("dataset enriched", common.Fields{
		"path": path,
		"rows": len(customers),
		"hash": hash[:12],
	})

	if p.store != nil {
		options := "now=" + now.UTC().Format("2006-01-02")
		var buf bytes.Buffer
		if err := etl.WriteCSV(&buf, customers, ds.ExtraColumns); err != nil {
			return nil, fmt.Errorf("failed to encode snapshot: %w", err)
		}
		if _, err := p.store.SaveSnapshot(ctx, hash, options, buf.Bytes()); err != nil {
			// Caching is best-effort; the enriched dataset is valid.
			common.LogWarn("snapshot not cached", common.Fields{"reason": err.Error()})
		}
	}
	return ds, nil
}

// CachedSnapshot returns the cached enriched artifact for a dataset,
// or nil when caching is disabled or nothing is cached.
func (p *Pipeline) CachedSnapshot(ctx context.Context, hash string, now time.Time) []byte {
	if p.store == nil {
		return nil
	}
	payload, err := p.store.GetSnapshot(ctx, hash, "now="+now.UTC().Format("2006-01-02"))
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			common.LogWarn("snapshot lookup failed", common.Fields{"reason": err.Error()})
		}
		return nil
	}
	return payload
}

// Segment clusters the dataset's customers.
func (p *Pipeline) Segment(ds *Dataset, cfg segment.Config) (*segment.Result, error) {
	result, err := segment.Segment(ds.Customers, cfg)
	if err != nil {
		return nil, err
	}
	common.LogInfo("customers segmented", common.Fields{
		"k":    cfg.K,
		"seed": cfg.Seed,
		"rows": len(result.Customers),
	})
	return result, nil
}

// Train fits a churn model on the dataset and records the run in the
// ledger when a store is configured.
func (p *Pipeline) Train(ctx context.Context, ds *Dataset, cfg churn.TrainConfig) (*churn.Bundle, error) {
	bundle, err := churn.Train(ds.Customers, cfg)
	if err != nil {
		return nil, err
	}
	common.LogInfo("churn model trained", common.Fields{
		"model":    string(bundle.Metrics.ModelKind),
		"auc":      bundle.Metrics.AUC,
		"accuracy": bundle.Metrics.Accuracy,
	})

	if p.store != nil {
		if _, err := p.store.SaveTrainingRun(ctx, ds.Hash, bundle.Metrics); err != nil {
			common.LogWarn("training run not recorded", common.Fields{"reason": err.Error()})
		}
	}
	return bundle, nil
}

// LastTrainingRun returns the most recent recorded metrics for this
// dataset and model kind, or nil when there is none.
func (p *Pipeline) LastTrainingRun(ctx context.Context, ds *Dataset, kind churn.Kind) *churn.Metrics {
	if p.store == nil {
		return nil
	}
	metrics, err := p.store.GetLatestTrainingRun(ctx, ds.Hash, kind)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			common.LogWarn("training run lookup failed", common.Fields{"reason": err.Error()})
		}
		return nil
	}
	return metrics
}

// Retention computes the dataset's cohort retention matrix.
func (p *Pipeline) Retention(ds *Dataset) *cohort.Matrix {
	matrix := cohort.Retention(ds.Customers)
	common.LogInfo("retention computed", common.Fields{
		"cohorts": len(matrix.Rows),
		"periods": matrix.Periods,
	})
	return matrix
}
