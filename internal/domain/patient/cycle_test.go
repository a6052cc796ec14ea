package patient

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pharmalife/blister/internal/domain/schedule"
)

func TestCycle(t *testing.T) {
	at := time.Date(2024, 1, 29, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		cadence      schedule.Cadence
		billing      string
		override     *schedule.Date
		wantBilling  string
		wantNext     string
		wantPrevious string
	}{
		{"monthly", schedule.Monthly, "2024-01-01", nil, "2024-01-29", "2024-02-26", "2024-01-01"},
		{"monthly override", schedule.Monthly, "2024-01-01", ptr(d("2024-02-01")), "2024-02-01", "2024-02-29", "2024-01-01"},
		{"weekly", schedule.Weekly, "2024-12-30", nil, "2025-01-06", "2025-01-13", "2024-12-30"},
		{"bi-weekly", schedule.BiWeekly, "2024-02-15", nil, "2024-02-29", "2024-03-14", "2024-02-15"},
		{"custom uses fallback", schedule.Custom, "2024-01-01", nil, "2024-01-29", "2024-02-26", "2024-01-01"},
		{"override in the past", schedule.Weekly, "2024-03-01", ptr(d("2024-01-01")), "2024-01-01", "2024-01-08", "2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billing := d(tt.billing)
			p := Patient{
				ID:               uuid.New(),
				Name:             "Ann Example",
				Cadence:          tt.cadence,
				BillingDate:      billing,
				NextScheduleDate: schedule.NextDue(billing, tt.cadence),
				Delivery:         ptr("pickup"),
			}

			updated, rec := Cycle(p, tt.override, at)

			assert.Equal(t, tt.wantBilling, updated.BillingDate.String())
			assert.Equal(t, tt.wantNext, updated.NextScheduleDate.String())
			assert.Equal(t, tt.wantPrevious, rec.PreviousBillingDate.String())
			assert.Equal(t, tt.wantBilling, rec.NewBillingDate.String())
			assert.Equal(t, tt.wantNext, rec.NewNextScheduleDate.String())
			assert.Equal(t, p.ID, rec.PatientID)
			assert.Equal(t, "Ann Example", rec.PatientName)
			assert.Equal(t, at, rec.CycledAt)
			assert.NotEqual(t, uuid.Nil, rec.ID)

			// everything but the dates is carried over
			assert.Equal(t, p.ID, updated.ID)
			assert.Equal(t, p.Delivery, updated.Delivery)
			assert.Equal(t, p.Cadence, updated.Cadence)
		})
	}
}

func TestCycle_DoesNotMutateInput(t *testing.T) {
	billing := d("2024-01-01")
	p := Patient{ID: uuid.New(), Name: "Ann", Cadence: schedule.Monthly, BillingDate: billing, NextScheduleDate: schedule.NextDue(billing, schedule.Monthly)}

	Cycle(p, nil, time.Now())

	assert.Equal(t, "2024-01-01", p.BillingDate.String())
	assert.Equal(t, "2024-01-29", p.NextScheduleDate.String())
}

func TestCycle_IgnoresDueness(t *testing.T) {
	// billing far in the future still cycles
	billing := d("2030-06-01")
	p := Patient{ID: uuid.New(), Name: "Ann", Cadence: schedule.Weekly, BillingDate: billing, NextScheduleDate: schedule.NextDue(billing, schedule.Weekly)}

	updated, _ := Cycle(p, nil, time.Now())
	assert.Equal(t, "2030-06-08", updated.BillingDate.String())
}

func TestPatient_IsDue(t *testing.T) {
	p := Patient{BillingDate: d("2024-01-10")}
	assert.True(t, p.IsDue(d("2024-01-10")))
	assert.True(t, p.IsDue(d("2024-02-01")))
	assert.False(t, p.IsDue(d("2024-01-09")))
}
