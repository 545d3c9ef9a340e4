package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Veraticus/customer-lifecycle/internal/model"
)

// canonicalOrder is the column layout of enriched exports: identity,
// dates and derived features up front, raw counters after.
var canonicalOrder = []string{
	colCustomerID, colSignupDate, colLastPurchaseDate, colLastLoginDate,
	"Tenure", "Recency", "ActivityGap", "Frequency", "Monetary",
	colAvgTransactionValue, "ARPU", "CLTV", colNumTransactions, colTotalSpend,
}

// WriteCSV writes enriched customers as CSV with canonical column
// ordering. Unrecognized source columns given in extraCols are
// appended after the canonical set, preserving their input order.
func WriteCSV(w io.Writer, customers []model.Customer, extraCols []string) error {
	scored := make([]model.ScoredCustomer, len(customers))
	for i, c := range customers {
		scored[i] = model.ScoredCustomer{Customer: c, ChurnProbability: -1}
	}
	return writeCSV(w, scored, extraCols, false)
}

// WriteScoredCSV writes scored customers as CSV, appending the
// Churn_Probability column after the canonical set.
func WriteScoredCSV(w io.Writer, scored []model.ScoredCustomer, extraCols []string) error {
	return writeCSV(w, scored, extraCols, true)
}

func writeCSV(w io.Writer, scored []model.ScoredCustomer, extraCols []string, withProbability bool) error {
	hasLabel := false
	hasSegment := false
	for _, s := range scored {
		if s.Churn != nil {
			hasLabel = true
		}
		if s.SegmentID >= 0 {
			hasSegment = true
		}
	}

	header := append([]string{}, canonicalOrder...)
	if hasLabel {
		header = append(header, colChurn)
	}
	if hasSegment {
		header = append(header, "SegmentID", "Segment")
	}
	if withProbability {
		header = append(header, "Churn_Probability")
	}
	header = append(header, extraCols...)

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, s := range scored {
		row := []string{
			s.ID,
			formatDate(s.SignupDate),
			formatDate(s.LastPurchaseDate),
			formatDate(s.LastLoginDate),
			formatFloat(s.Tenure),
			formatFloat(s.Recency),
			formatFloat(s.ActivityGap),
			formatFloat(s.Frequency),
			formatFloat(s.Monetary),
			formatFloat(s.AvgTransactionValue),
			formatFloat(s.ARPU),
			formatFloat(s.CLTV),
			formatFloat(s.NumTransactions),
			formatFloat(s.TotalSpend),
		}
		if hasLabel {
			if s.Churn != nil {
				row = append(row, strconv.Itoa(*s.Churn))
			} else {
				row = append(row, "")
			}
		}
		if hasSegment {
			row = append(row, strconv.Itoa(s.SegmentID), s.Segment)
		}
		if withProbability {
			row = append(row, formatFloat(s.ChurnProbability))
		}
		for _, c := range extraCols {
			row = append(row, s.Extra[c])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
