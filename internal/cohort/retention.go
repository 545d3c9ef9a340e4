// Package cohort aggregates signup and activity dates into
// month-indexed retention matrices.
package cohort

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/Veraticus/customer-lifecycle/internal/model"
)

// Row is one cohort's retention curve. Retention[p] is the fraction
// of the cohort's original size still active p months after signup,
// rounded to 3 decimal places.
type Row struct {
	Month     time.Time
	Retention []float64
	Size      int
}

// Matrix is a month-indexed retention table. Rows are sorted by
// cohort month; every row's retention slice spans period 0 through
// the matrix-wide maximum period.
type Matrix struct {
	Rows []Row
	// Periods is the number of retention columns (max period + 1).
	Periods int
}

// PeriodLabels returns the column labels "Month0".."MonthN".
func (m *Matrix) PeriodLabels() []string {
	labels := make([]string, m.Periods)
	for p := range labels {
		labels[p] = "Month" + strconv.Itoa(p)
	}
	return labels
}

// Retention computes the monthly cohort retention matrix. Each
// customer joins the cohort of their signup month and counts as
// active in the month of their last purchase. Customers without a
// signup date are excluded; activity before signup is data noise and
// is skipped, not crashed on.
func Retention(customers []model.Customer) *Matrix {
	type cohortKey struct{ year, month int }
	counts := make(map[cohortKey]map[int]int)
	maxPeriod := 0

	for _, c := range customers {
		if c.SignupDate == nil {
			continue
		}
		cohortMonth := monthStart(*c.SignupDate)
		key := cohortKey{cohortMonth.Year(), int(cohortMonth.Month())}
		if counts[key] == nil {
			counts[key] = make(map[int]int)
		}

		if c.LastPurchaseDate == nil {
			continue
		}
		activeMonth := monthStart(*c.LastPurchaseDate)
		period := monthsBetween(cohortMonth, activeMonth)
		if period < 0 {
			continue
		}
		counts[key][period]++
		if period > maxPeriod {
			maxPeriod = period
		}
	}

	matrix := &Matrix{Periods: maxPeriod + 1}
	for key, periods := range counts {
		month := time.Date(key.year, time.Month(key.month), 1, 0, 0, 0, 0, time.UTC)
		row := Row{
			Month:     month,
			Size:      periods[0],
			Retention: make([]float64, maxPeriod+1),
		}
		if row.Size > 0 {
			for p, n := range periods {
				row.Retention[p] = round3(float64(n) / float64(row.Size))
			}
		}
		matrix.Rows = append(matrix.Rows, row)
	}

	sort.Slice(matrix.Rows, func(i, j int) bool {
		return matrix.Rows[i].Month.Before(matrix.Rows[j].Month)
	})
	return matrix
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
