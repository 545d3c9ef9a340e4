package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
	"github.com/Veraticus/customer-lifecycle/internal/common"
	"github.com/Veraticus/customer-lifecycle/internal/config"
	"github.com/Veraticus/customer-lifecycle/internal/service"
	"github.com/Veraticus/customer-lifecycle/internal/storage"
)

// buildPipeline wires the orchestrator with the artifact cache unless
// caching is disabled. The returned cleanup is always safe to call.
func buildPipeline() (*service.Pipeline, func(), error) {
	if viper.GetBool("cache.disabled") {
		return service.New(nil), func() {}, nil
	}

	dbPath := viper.GetString("cache.db_path")
	if dbPath == "" {
		dbPath = config.DefaultCachePath()
	}
	store, err := storage.NewSQLiteStore(config.ExpandPath(dbPath))
	if err != nil {
		// A broken cache should not block the analytics; degrade.
		common.LogWarn("artifact cache unavailable, continuing without it", common.Fields{"reason": err.Error()})
		return service.New(nil), func() {}, nil
	}
	return service.New(store), func() { _ = store.Close() }, nil
}

// evaluationInstant resolves the "today" all temporal features are
// computed against, from the given command's namespaced config key.
// An empty setting means the current UTC time.
func evaluationInstant(prefix string) (time.Time, error) {
	raw := viper.GetString(prefix + ".eval_date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid evaluation date %q (want 2006-01-02): %w", raw, err)
	}
	return t.UTC(), nil
}

// trainConfigFromFlags assembles the training options shared by the
// train and predict commands, read from the command's namespace.
func trainConfigFromFlags(prefix string) (churn.TrainConfig, error) {
	kind, err := churn.ParseKind(viper.GetString(prefix + ".model"))
	if err != nil {
		return churn.TrainConfig{}, err
	}

	caps := churn.DetectCapabilities()
	if viper.GetBool(prefix + ".no_boosted") {
		caps.BoostedTrees = false
	}
	if viper.GetBool(prefix + ".no_explainer") {
		caps.Explainer = false
	}

	return churn.TrainConfig{
		Model:                kind,
		LabelColumn:          viper.GetString(prefix + ".label_column"),
		Seed:                 viper.GetInt64(prefix + ".seed"),
		WeakLabelRecencyDays: viper.GetFloat64(prefix + ".weak_label_days"),
		Capabilities:         &caps,
	}, nil
}

// openOutput returns the writer for an --output flag, stdout when the
// flag is empty.
func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
