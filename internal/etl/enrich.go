package etl

import (
	"time"

	"github.com/Veraticus/customer-lifecycle/internal/common"
	"github.com/Veraticus/customer-lifecycle/internal/model"
)

// RecencyCeiling is the finite sentinel for customers with no recorded
// purchase: effectively infinite recency, clamped so downstream math
// stays finite.
const RecencyCeiling = 9999

// daysPerMonth approximates one calendar month when converting tenure
// between days and months.
const daysPerMonth = 30

// Options configures an enrichment pass.
type Options struct {
	// Now is the evaluation instant all temporal features are computed
	// against. Zero value means the current UTC time.
	Now time.Time
}

// Enrich normalizes a raw table to the canonical schema and computes
// the derived features. Every returned record has Recency, Frequency,
// Monetary, Tenure, ActivityGap, ARPU and CLTV present, finite and
// non-negative.
func Enrich(t *Table, opts Options) ([]model.Customer, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, common.ErrEmptyDataset
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var records []rawRecord
	var err error
	switch detectSchema(t) {
	case schemaSubscription:
		records = decodeSubscription(t, now)
	default:
		records, err = decodeGeneric(t)
		if err != nil {
			return nil, err
		}
	}

	return engineerFeatures(records, now), nil
}

// engineerFeatures derives the behavioral feature set from canonical
// intermediate records.
func engineerFeatures(records []rawRecord, now time.Time) []model.Customer {
	customers := make([]model.Customer, 0, len(records))

	// First pass: everything except the ActivityGap backfill, which
	// needs the maximum observed gap across the dataset.
	maxGap := 0.0
	sawGap := false
	gaps := make([]*float64, len(records))
	for i, rec := range records {
		if rec.lastLogin != nil {
			g := clampNonNegative(daysBetween(*rec.lastLogin, now))
			gaps[i] = &g
			if !sawGap || g > maxGap {
				maxGap = g
				sawGap = true
			}
		}
	}

	for i, rec := range records {
		c := model.Customer{
			ID:                  rec.id,
			SignupDate:          rec.signup,
			LastPurchaseDate:    rec.lastPurchase,
			LastLoginDate:       rec.lastLogin,
			Churn:               rec.churn,
			Extra:               rec.extra,
			NumTransactions:     clampNonNegative(rec.numTx),
			TotalSpend:          clampNonNegative(rec.totalSpend),
			AvgTransactionValue: 0,
			SegmentID:           -1,
		}
		if rec.atv != nil {
			c.AvgTransactionValue = clampNonNegative(*rec.atv)
		}

		// Recency: missing purchase date means effectively infinite.
		if rec.lastPurchase != nil {
			c.Recency = clampNonNegative(daysBetween(*rec.lastPurchase, now))
		} else {
			c.Recency = RecencyCeiling
		}

		c.Frequency = c.NumTransactions
		c.Monetary = c.TotalSpend

		if rec.signup != nil {
			c.Tenure = clampNonNegative(daysBetween(*rec.signup, now))
		}

		// ActivityGap: missing logins fall back to the maximum observed
		// gap, then to 0 when no login data exists at all.
		if gaps[i] != nil {
			c.ActivityGap = *gaps[i]
		} else if sawGap {
			c.ActivityGap = maxGap
		}

		// Active months of tenure, floored at one to guard division.
		months := common.SafeDiv(c.Tenure, daysPerMonth)
		if months < 1 {
			months = 1
		}

		c.ARPU = common.Sanitize(common.SafeDiv(c.Monetary, months))

		atv := c.AvgTransactionValue
		if rec.atv == nil {
			atv = common.SafeDiv(c.Monetary, c.Frequency)
		}
		expectedRate := common.SafeDiv(c.Frequency, months)
		c.CLTV = common.Sanitize(expectedRate * 12 * atv)

		customers = append(customers, c)
	}
	return customers
}

func daysBetween(from, to time.Time) float64 {
	return float64(int(to.Sub(from) / (24 * time.Hour)))
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
