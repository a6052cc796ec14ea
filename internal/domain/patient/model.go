package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmalife/blister/internal/domain/schedule"
)

// MaxCost is the largest value the NUMERIC(10,2) cost column holds.
const MaxCost = 99999999.99

// Patient maps to the patients table. NextScheduleDate is always derived
// from BillingDate and Cadence.
type Patient struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	Name             string           `db:"name" json:"name"`
	Delivery         *string          `db:"delivery" json:"delivery,omitempty"`
	Insurance        *string          `db:"insurance" json:"insurance,omitempty"`
	Cost             *float64         `db:"cost" json:"cost,omitempty"`
	Cadence          schedule.Cadence `db:"blister_schedule" json:"blister_schedule,omitempty"`
	BillingDate      schedule.Date    `db:"billing_date" json:"billing_date"`
	NextScheduleDate schedule.Date    `db:"next_schedule_date" json:"next_schedule_date"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// IsDue reports whether the patient's billing date has arrived.
func (p *Patient) IsDue(today schedule.Date) bool {
	return !p.BillingDate.After(today)
}

// CycleRecord maps to the schedule_records table. Rows are append-only.
type CycleRecord struct {
	ID                  uuid.UUID     `db:"id" json:"id"`
	PatientID           uuid.UUID     `db:"patient_id" json:"patient_id"`
	PatientName         string        `db:"patient_name" json:"patient_name"`
	PreviousBillingDate schedule.Date `db:"previous_billing_date" json:"previous_billing_date"`
	NewBillingDate      schedule.Date `db:"new_billing_date" json:"new_billing_date"`
	NewNextScheduleDate schedule.Date `db:"new_next_schedule_date" json:"new_next_schedule_date"`
	CycledAt            time.Time     `db:"cycled_at" json:"cycled_at"`
}

// ListFilter narrows ListPatients.
type ListFilter struct {
	Name    string
	Cadence schedule.Cadence
}

// Stats are the patient-table figures of the dashboard.
type Stats struct {
	TotalPatients   int      `json:"total_patients"`
	DueCount        int      `json:"due_count"`
	UpcomingCount   int      `json:"upcoming_count"`
	ActiveSchedules int      `json:"active_schedules"`
	AverageCost     *float64 `json:"average_cost,omitempty"`
}

// Dashboard is the scheduler landing page.
type Dashboard struct {
	Today       schedule.Date  `json:"today"`
	Stats       Stats          `json:"stats"`
	TotalCycles int            `json:"total_cycles"`
	Recent      []*CycleRecord `json:"recent_activity"`
}

// CalendarEntry is one patient on a calendar day.
type CalendarEntry struct {
	ID      uuid.UUID        `json:"id"`
	Name    string           `json:"name"`
	Cadence schedule.Cadence `json:"blister_schedule,omitempty"`
}

type CalendarDay struct {
	Date     schedule.Date   `json:"date"`
	Patients []CalendarEntry `json:"patients"`
}

// CalendarMonth lists every day of a month with the patients whose next
// schedule date falls on it.
type CalendarMonth struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
}
