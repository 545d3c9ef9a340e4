package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/customer-lifecycle/internal/etl"
)

func enrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Normalize a raw customer CSV and compute behavioral features",
		Long: `Load a raw customer CSV, detect its schema variant, normalize it to
the canonical column set and derive the recency/frequency/monetary,
tenure, activity-gap, ARPU and CLTV features.

Unrecognized input columns pass through unchanged after the canonical
columns.`,
		RunE: runEnrich,
	}

	cmd.Flags().StringP("input", "i", "", "raw customer CSV to enrich (required)")
	cmd.Flags().StringP("output", "o", "", "write enriched CSV here (default: stdout)")
	cmd.Flags().String("eval-date", "", "evaluation instant for temporal features (format: 2006-01-02, default: today)")
	_ = cmd.MarkFlagRequired("input")

	_ = viper.BindPFlag("enrich.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("enrich.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("enrich.eval_date", cmd.Flags().Lookup("eval-date"))

	return cmd
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	now, err := evaluationInstant("enrich")
	if err != nil {
		return err
	}

	pipeline, cleanup, err := buildPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ds, err := pipeline.EnrichFile(ctx, viper.GetString("enrich.input"), now)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(viper.GetString("enrich.output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if err := etl.WriteCSV(out, ds.Customers, ds.ExtraColumns); err != nil {
		return fmt.Errorf("failed to write enriched CSV: %w", err)
	}

	slog.Info("enrichment complete", "rows", len(ds.Customers), "dataset", ds.Hash[:12])
	return nil
}
