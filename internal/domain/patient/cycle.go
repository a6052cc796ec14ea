package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmalife/blister/internal/domain/schedule"
)

// Cycle advances p by one period. The new billing date is override when
// given, else p's next schedule date; the new next date is derived from it
// and p's cadence. It returns the updated patient and the history record to
// append. Cycle does not look at whether p is due.
func Cycle(p Patient, override *schedule.Date, at time.Time) (Patient, CycleRecord) {
	newBilling := p.NextScheduleDate
	if override != nil {
		newBilling = *override
	}
	newNext := schedule.NextDue(newBilling, p.Cadence)

	rec := CycleRecord{
		ID:                  uuid.New(),
		PatientID:           p.ID,
		PatientName:         p.Name,
		PreviousBillingDate: p.BillingDate,
		NewBillingDate:      newBilling,
		NewNextScheduleDate: newNext,
		CycledAt:            at,
	}

	updated := p
	updated.BillingDate = newBilling
	updated.NextScheduleDate = newNext
	return updated, rec
}
