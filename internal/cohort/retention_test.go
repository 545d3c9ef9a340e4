package cohort

import (
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/customer-lifecycle/internal/model"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestRetention_BasicCurve(t *testing.T) {
	// Cohort of 10 signups in January: all active at signup, 4 with a
	// last purchase the following month.
	var customers []model.Customer
	for i := 0; i < 6; i++ {
		customers = append(customers, model.Customer{
			ID:               fmt.Sprintf("jan-stay-%d", i),
			SignupDate:       datePtr(2024, time.January, 3+i),
			LastPurchaseDate: datePtr(2024, time.January, 20),
		})
	}
	for i := 0; i < 4; i++ {
		customers = append(customers, model.Customer{
			ID:               fmt.Sprintf("jan-next-%d", i),
			SignupDate:       datePtr(2024, time.January, 10),
			LastPurchaseDate: datePtr(2024, time.February, 5+i),
		})
	}

	matrix := Retention(customers)

	if len(matrix.Rows) != 1 {
		t.Fatalf("got %d cohorts, want 1", len(matrix.Rows))
	}
	row := matrix.Rows[0]
	if !row.Month.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("cohort month = %v, want 2024-01-01", row.Month)
	}
	if row.Size != 6 {
		t.Errorf("cohort size = %d, want 6 (active in signup month)", row.Size)
	}
	if row.Retention[0] != 1.0 {
		t.Errorf("period 0 = %v, want 1.0", row.Retention[0])
	}
	// 4 of the 6-strong period-0 cohort active in month 1: 4/6 = 0.667.
	if row.Retention[1] != 0.667 {
		t.Errorf("period 1 = %v, want 0.667 (rounded to 3 places)", row.Retention[1])
	}
}

func TestRetention_PeriodZeroIsOneForNonzeroCohorts(t *testing.T) {
	customers := []model.Customer{
		{ID: "a", SignupDate: datePtr(2024, time.March, 1), LastPurchaseDate: datePtr(2024, time.March, 15)},
		{ID: "b", SignupDate: datePtr(2024, time.March, 2), LastPurchaseDate: datePtr(2024, time.May, 1)},
		{ID: "c", SignupDate: datePtr(2024, time.April, 5), LastPurchaseDate: datePtr(2024, time.April, 20)},
	}

	matrix := Retention(customers)
	for _, row := range matrix.Rows {
		if row.Size == 0 {
			continue
		}
		if row.Retention[0] != 1.0 {
			t.Errorf("cohort %v: period 0 = %v, want 1.0", row.Month, row.Retention[0])
		}
	}
}

func TestRetention_ValuesWithinUnitInterval(t *testing.T) {
	customers := []model.Customer{
		{ID: "a", SignupDate: datePtr(2023, time.June, 1), LastPurchaseDate: datePtr(2023, time.June, 2)},
		{ID: "b", SignupDate: datePtr(2023, time.June, 1), LastPurchaseDate: datePtr(2023, time.December, 25)},
		{ID: "c", SignupDate: datePtr(2023, time.July, 1), LastPurchaseDate: datePtr(2023, time.July, 1)},
		{ID: "d", SignupDate: datePtr(2023, time.July, 9), LastPurchaseDate: datePtr(2024, time.January, 2)},
	}

	matrix := Retention(customers)
	for _, row := range matrix.Rows {
		for p, v := range row.Retention {
			if v < 0 || v > 1 {
				t.Errorf("cohort %v period %d: retention = %v, want [0,1]", row.Month, p, v)
			}
		}
	}
}

func TestRetention_ZeroSizeCohort(t *testing.T) {
	// Signup in May but last purchase in July: nobody counts as
	// active in the signup month, so the cohort has zero size and all
	// periods stay 0 instead of dividing by zero.
	customers := []model.Customer{
		{ID: "a", SignupDate: datePtr(2024, time.May, 1), LastPurchaseDate: datePtr(2024, time.July, 1)},
	}

	matrix := Retention(customers)
	if len(matrix.Rows) != 1 {
		t.Fatalf("got %d cohorts, want 1", len(matrix.Rows))
	}
	for p, v := range matrix.Rows[0].Retention {
		if v != 0 {
			t.Errorf("period %d = %v, want 0 for zero-size cohort", p, v)
		}
	}
}

func TestRetention_NoiseAndMissingDates(t *testing.T) {
	customers := []model.Customer{
		// Purchase before signup: inconsistent input, skipped.
		{ID: "noise", SignupDate: datePtr(2024, time.June, 1), LastPurchaseDate: datePtr(2024, time.February, 1)},
		// No signup date: excluded entirely.
		{ID: "nodate", LastPurchaseDate: datePtr(2024, time.June, 1)},
		{ID: "ok", SignupDate: datePtr(2024, time.June, 1), LastPurchaseDate: datePtr(2024, time.June, 10)},
	}

	matrix := Retention(customers)
	if len(matrix.Rows) != 1 {
		t.Fatalf("got %d cohorts, want 1 (noise tolerated, not crashed on)", len(matrix.Rows))
	}
	if matrix.Rows[0].Size != 1 {
		t.Errorf("cohort size = %d, want 1", matrix.Rows[0].Size)
	}
}

func TestMatrix_PeriodLabels(t *testing.T) {
	m := &Matrix{Periods: 3}
	labels := m.PeriodLabels()
	want := []string{"Month0", "Month1", "Month2"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}
