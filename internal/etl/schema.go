package etl

import (
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/customer-lifecycle/internal/common"
)

// schemaKind identifies the layout of a raw input table. Detection
// happens once per table; each kind decodes to the same canonical
// intermediate record so feature engineering stays branch-free.
type schemaKind int

const (
	schemaGeneric schemaKind = iota
	schemaSubscription
)

// Canonical column names after normalization.
const (
	colCustomerID          = "CustomerID"
	colSignupDate          = "SignupDate"
	colLastPurchaseDate    = "LastPurchaseDate"
	colLastLoginDate       = "LastLoginDate"
	colNumTransactions     = "NumTransactions"
	colTotalSpend          = "TotalSpend"
	colAvgTransactionValue = "AvgTransactionValue"
	colChurn               = "Churn"
)

// Alternate spellings harmonized by the generic path.
var altNames = map[string]string{
	"customer_id":   colCustomerID,
	"avg_txn_value": colAvgTransactionValue,
}

// rawRecord is the canonical intermediate representation every schema
// variant decodes into before feature engineering.
type rawRecord struct {
	signup       *time.Time
	lastPurchase *time.Time
	lastLogin    *time.Time
	atv          *float64
	churn        *int
	id           string
	extra        map[string]string
	numTx        float64
	totalSpend   float64
}

// detectSchema classifies the table layout. An identifier plus a
// tenure-in-months column is the signature of a generic
// subscription-billing export (e.g. the IBM Telco churn dataset).
func detectSchema(t *Table) schemaKind {
	if t != nil && t.HasColumn("customerID") && t.HasColumn("tenure") {
		return schemaSubscription
	}
	return schemaGeneric
}

func recognizedColumns(kind schemaKind) map[string]struct{} {
	cols := map[string]struct{}{
		colCustomerID:          {},
		colSignupDate:          {},
		colLastPurchaseDate:    {},
		colLastLoginDate:       {},
		colNumTransactions:     {},
		colTotalSpend:          {},
		colAvgTransactionValue: {},
		colChurn:               {},
	}
	for alt := range altNames {
		cols[alt] = struct{}{}
	}
	if kind == schemaSubscription {
		cols["customerID"] = struct{}{}
		cols["tenure"] = struct{}{}
		cols["TotalCharges"] = struct{}{}
		cols["MonthlyCharges"] = struct{}{}
	}
	return cols
}

// decodeGeneric maps a canonically named (or harmonized) table into
// intermediate records. Absent numeric columns default to 0, absent
// date columns to missing.
func decodeGeneric(t *Table) ([]rawRecord, error) {
	idCol := ""
	for _, c := range t.Columns {
		name := c
		if canon, ok := altNames[c]; ok {
			name = canon
		}
		if name == colCustomerID {
			idCol = c
			break
		}
	}
	if idCol == "" {
		return nil, common.ErrMissingIdentifier
	}

	extras := t.ExtraColumns()
	records := make([]rawRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := rawRecord{
			id:           row[idCol],
			signup:       parseDate(lookup(row, t, colSignupDate)),
			lastPurchase: parseDate(lookup(row, t, colLastPurchaseDate)),
			lastLogin:    parseDate(lookup(row, t, colLastLoginDate)),
			numTx:        parseNumber(lookup(row, t, colNumTransactions)),
			totalSpend:   parseNumber(lookup(row, t, colTotalSpend)),
			churn:        parseLabel(lookup(row, t, colChurn)),
			extra:        copyExtras(row, extras),
		}
		if v, ok := parseOptionalNumber(lookupAlt(row, t, colAvgTransactionValue, "avg_txn_value")); ok {
			rec.atv = &v
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeSubscription translates a subscription-billing export into
// intermediate records: currency coercion, Yes/No label mapping and
// date synthesis from tenure months (approximated as 30 days).
func decodeSubscription(t *Table, now time.Time) []rawRecord {
	anchor := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	hasChurn := t.HasColumn(colChurn)
	hasMonthly := t.HasColumn("MonthlyCharges")
	extras := t.ExtraColumns()

	records := make([]rawRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		tenureMonths := parseNumber(row["tenure"])
		if tenureMonths < 0 {
			tenureMonths = 0
		}
		totalSpend := parseCurrency(row["TotalCharges"])

		churn := 0
		var churnLabel *int
		if hasChurn {
			churn = mapYesNo(row[colChurn])
			churnLabel = &churn
		}

		// Multiply before truncating so fractional tenure keeps its
		// partial month's worth of days.
		signup := anchor.AddDate(0, 0, -int(tenureMonths*daysPerMonth))
		lastPurchase := anchor
		if churn == 1 {
			months := tenureMonths - 1
			if months < 0 {
				months = 0
			}
			lastPurchase = signup.AddDate(0, 0, int(months*daysPerMonth))
		}
		lastLogin := lastPurchase

		numTx := tenureMonths
		var atv float64
		if hasMonthly {
			atv = parseCurrency(row["MonthlyCharges"])
		} else {
			atv = common.SafeDiv(totalSpend, numTx)
		}

		records = append(records, rawRecord{
			id:           row["customerID"],
			signup:       &signup,
			lastPurchase: &lastPurchase,
			lastLogin:    &lastLogin,
			numTx:        numTx,
			totalSpend:   totalSpend,
			atv:          &atv,
			churn:        churnLabel,
			extra:        copyExtras(row, extras),
		})
	}
	return records
}

func lookup(row map[string]string, t *Table, col string) string {
	if t.HasColumn(col) {
		return row[col]
	}
	return ""
}

func lookupAlt(row map[string]string, t *Table, col, alt string) string {
	if t.HasColumn(col) {
		return row[col]
	}
	if t.HasColumn(alt) {
		return row[alt]
	}
	return ""
}

func copyExtras(row map[string]string, extras []string) map[string]string {
	if len(extras) == 0 {
		return nil
	}
	out := make(map[string]string, len(extras))
	for _, c := range extras {
		out[c] = row[c]
	}
	return out
}

// dateLayouts are tried in order when parsing date columns.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			d = d.UTC()
			return &d
		}
	}
	return nil
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseOptionalNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseCurrency coerces currency-like values ("$1,234.50", " 600 ")
// to numbers, treating anything non-parseable as 0.
func parseCurrency(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return parseNumber(s)
}

func mapYesNo(s string) int {
	if strings.EqualFold(strings.TrimSpace(s), "yes") {
		return 1
	}
	return 0
}

// parseLabel interprets an outcome column value as a binary label.
// Unparseable or empty values yield no label.
func parseLabel(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.EqualFold(s, "yes") {
		v := 1
		return &v
	}
	if strings.EqualFold(s, "no") {
		v := 0
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := 0
	if f >= 0.5 {
		v = 1
	}
	return &v
}
