package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/customer-lifecycle/internal/churn"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and evaluate a churn model",
		Long: `Train a churn classifier on the enriched dataset, evaluate it on a
held-out partition and report per-feature attributions.

When the dataset has no outcome column, weak labels are derived from
recency: customers inactive past the threshold count as churned. That
is a heuristic fallback, not ground truth.`,
		RunE: runTrain,
	}

	cmd.Flags().StringP("input", "i", "", "raw customer CSV (required)")
	cmd.Flags().String("eval-date", "", "evaluation instant for temporal features (format: 2006-01-02)")
	cmd.Flags().StringP("model", "m", "auto", "model kind (logistic, boosted, auto)")
	cmd.Flags().String("label-column", "Churn", "outcome column name")
	cmd.Flags().Int64("seed", 42, "training random seed")
	cmd.Flags().Float64("weak-label-days", churn.DefaultWeakLabelRecencyDays, "recency threshold for weak labeling, in days")
	cmd.Flags().Bool("no-boosted", false, "treat the boosted-tree backend as unavailable")
	cmd.Flags().Bool("no-explainer", false, "treat the explainer backend as unavailable")
	_ = cmd.MarkFlagRequired("input")

	_ = viper.BindPFlag("train.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("train.eval_date", cmd.Flags().Lookup("eval-date"))
	_ = viper.BindPFlag("train.model", cmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("train.label_column", cmd.Flags().Lookup("label-column"))
	_ = viper.BindPFlag("train.seed", cmd.Flags().Lookup("seed"))
	_ = viper.BindPFlag("train.weak_label_days", cmd.Flags().Lookup("weak-label-days"))
	_ = viper.BindPFlag("train.no_boosted", cmd.Flags().Lookup("no-boosted"))
	_ = viper.BindPFlag("train.no_explainer", cmd.Flags().Lookup("no-explainer"))

	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	now, err := evaluationInstant("train")
	if err != nil {
		return err
	}
	cfg, err := trainConfigFromFlags("train")
	if err != nil {
		return err
	}

	pipeline, cleanup, err := buildPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ds, err := pipeline.EnrichFile(ctx, viper.GetString("train.input"), now)
	if err != nil {
		return err
	}

	if previous := pipeline.LastTrainingRun(ctx, ds, cfg.Model); previous != nil {
		fmt.Printf("previous run on this dataset: model=%s auc=%.3f accuracy=%.3f\n\n",
			previous.ModelKind, previous.AUC, previous.Accuracy)
	}

	bundle, err := pipeline.Train(ctx, ds, cfg)
	if err != nil {
		return err
	}

	printMetrics(bundle)
	return nil
}

func printMetrics(bundle *churn.Bundle) {
	m := bundle.Metrics
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Model\t%s\n", m.ModelKind)
	fmt.Fprintf(w, "AUC\t%.4f\n", m.AUC)
	fmt.Fprintf(w, "Accuracy\t%.4f\n", m.Accuracy)
	fmt.Fprintf(w, "Test rows\t%d\n", len(bundle.TestCustomers))
	if bundle.UsedWeakLabels {
		fmt.Fprintln(w, "Labels\tweak (derived from recency)")
	} else {
		fmt.Fprintln(w, "Labels\tground truth")
	}
	_ = w.Flush()

	cm := m.Confusion
	fmt.Printf("\nConfusion matrix (threshold 0.5):\n")
	fmt.Printf("              predicted 0   predicted 1\n")
	fmt.Printf("  actual 0    %-12d  %d\n", cm.TrueNegatives, cm.FalsePositives)
	fmt.Printf("  actual 1    %-12d  %d\n", cm.FalseNegatives, cm.TruePositives)

	if bundle.Explanation == nil {
		fmt.Println("\nExplanations unavailable.")
		return
	}
	fmt.Printf("\nGlobal feature attributions (%d test rows):\n", bundle.Explanation.SampleSize)
	ew := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, attr := range bundle.Explanation.Global {
		fmt.Fprintf(ew, "  %s\t%.4f\n", attr.Feature, attr.Value)
	}
	_ = ew.Flush()
}
