// Package model defines the core domain models used throughout the application.
package model

import "time"

// Customer represents a single customer after schema normalization and
// feature engineering. Date fields are nil when the source did not
// carry them; derived features are always present, finite and
// non-negative.
type Customer struct {
	SignupDate       *time.Time
	LastPurchaseDate *time.Time
	LastLoginDate    *time.Time

	// Churn is the ground-truth outcome label when the source carried
	// one (1 = churned), nil otherwise.
	Churn *int

	ID string

	// Segment is the human label assigned by the segmentation engine,
	// empty until segmentation runs.
	Segment string

	// Extra preserves unrecognized source columns verbatim, keyed by
	// their original column names.
	Extra map[string]string

	// Raw activity counters.
	NumTransactions     float64
	TotalSpend          float64
	AvgTransactionValue float64

	// Derived features.
	Recency     float64
	Frequency   float64
	Monetary    float64
	Tenure      float64
	ActivityGap float64
	ARPU        float64
	CLTV        float64

	// SegmentID is the raw cluster index, -1 until segmentation runs.
	SegmentID int
}

// Clone returns a deep copy of the customer. Pipeline stages that
// annotate records operate on clones so callers never see their
// inputs mutated.
func (c Customer) Clone() Customer {
	out := c
	out.SignupDate = cloneTime(c.SignupDate)
	out.LastPurchaseDate = cloneTime(c.LastPurchaseDate)
	out.LastLoginDate = cloneTime(c.LastLoginDate)
	if c.Churn != nil {
		v := *c.Churn
		out.Churn = &v
	}
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ScoredCustomer pairs a customer with a churn probability produced by
// a trained model.
type ScoredCustomer struct {
	Customer
	ChurnProbability float64
}
