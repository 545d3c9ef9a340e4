package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/customer-lifecycle/internal/cohort"
)

func retentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Compute monthly cohort retention",
		Long: `Group customers into signup-month cohorts and report the fraction of
each cohort still active in every subsequent month.`,
		RunE: runRetention,
	}

	cmd.Flags().StringP("input", "i", "", "raw customer CSV (required)")
	cmd.Flags().String("eval-date", "", "evaluation instant for temporal features (format: 2006-01-02)")
	_ = cmd.MarkFlagRequired("input")

	_ = viper.BindPFlag("retention.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("retention.eval_date", cmd.Flags().Lookup("eval-date"))

	return cmd
}

func runRetention(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	now, err := evaluationInstant("retention")
	if err != nil {
		return err
	}

	pipeline, cleanup, err := buildPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ds, err := pipeline.EnrichFile(ctx, viper.GetString("retention.input"), now)
	if err != nil {
		return err
	}

	printRetention(pipeline.Retention(ds))
	return nil
}

func printRetention(matrix *cohort.Matrix) {
	if len(matrix.Rows) == 0 {
		fmt.Println("No cohorts found (no signup dates in dataset).")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "COHORT\tSIZE\t%s\n", strings.Join(matrix.PeriodLabels(), "\t"))
	for _, row := range matrix.Rows {
		cells := make([]string, len(row.Retention))
		for p, v := range row.Retention {
			cells[p] = fmt.Sprintf("%.3f", v)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", row.Month.Format("2006-01"), row.Size, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
}
