package main

import (
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
	"github.com/Veraticus/customer-lifecycle/internal/etl"
	"github.com/Veraticus/customer-lifecycle/internal/model"
)

// scoreBatchSize bounds how many rows are scored per progress tick.
const scoreBatchSize = 500

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score every customer with a churn probability",
		Long: `Train a churn model on the dataset and append a Churn_Probability
column to every record.`,
		RunE: runPredict,
	}

	cmd.Flags().StringP("input", "i", "", "raw customer CSV (required)")
	cmd.Flags().StringP("output", "o", "", "write scored CSV here (default: stdout)")
	cmd.Flags().String("eval-date", "", "evaluation instant for temporal features (format: 2006-01-02)")
	cmd.Flags().StringP("model", "m", "auto", "model kind (logistic, boosted, auto)")
	cmd.Flags().String("label-column", "Churn", "outcome column name")
	cmd.Flags().Int64("seed", 42, "training random seed")
	_ = cmd.MarkFlagRequired("input")

	_ = viper.BindPFlag("predict.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("predict.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("predict.eval_date", cmd.Flags().Lookup("eval-date"))
	_ = viper.BindPFlag("predict.model", cmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("predict.label_column", cmd.Flags().Lookup("label-column"))
	_ = viper.BindPFlag("predict.seed", cmd.Flags().Lookup("seed"))

	return cmd
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	now, err := evaluationInstant("predict")
	if err != nil {
		return err
	}
	cfg, err := trainConfigFromFlags("predict")
	if err != nil {
		return err
	}

	pipeline, cleanup, err := buildPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ds, err := pipeline.EnrichFile(ctx, viper.GetString("predict.input"), now)
	if err != nil {
		return err
	}

	bundle, err := pipeline.Train(ctx, ds, cfg)
	if err != nil {
		return err
	}

	scored := scoreInBatches(bundle.Model, ds.Customers)

	out, closeOut, err := openOutput(viper.GetString("predict.output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if err := etl.WriteScoredCSV(out, scored, ds.ExtraColumns); err != nil {
		return fmt.Errorf("failed to write scored CSV: %w", err)
	}

	slog.Info("scoring complete", "rows", len(scored), "model", string(bundle.Metrics.ModelKind))
	return nil
}

func scoreInBatches(clf churn.Classifier, customers []model.Customer) []model.ScoredCustomer {
	bar := progressbar.Default(int64(len(customers)), "scoring")
	scored := make([]model.ScoredCustomer, 0, len(customers))
	for start := 0; start < len(customers); start += scoreBatchSize {
		end := start + scoreBatchSize
		if end > len(customers) {
			end = len(customers)
		}
		scored = append(scored, churn.Predict(clf, customers[start:end])...)
		_ = bar.Add(end - start)
	}
	return scored
}
