package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/pharmalife/blister/internal/domain/schedule"
)

// PatientRepository defines persistence for patients. Implementations join
// the transaction carried by ctx, if any.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetForUpdate reads the patient and locks the row until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// UpdateSchedule writes only the billing and next schedule dates.
	UpdateSchedule(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error)
	ListDue(ctx context.Context, today schedule.Date, limit, offset int) ([]*Patient, int, error)
	ListUpcoming(ctx context.Context, today schedule.Date, limit, offset int) ([]*Patient, int, error)
	ListScheduledBetween(ctx context.Context, from, to schedule.Date) ([]*Patient, error)
	Stats(ctx context.Context, today schedule.Date) (*Stats, error)
}

// HistoryRepository defines persistence for cycle history.
type HistoryRepository interface {
	Create(ctx context.Context, rec *CycleRecord) error
	List(ctx context.Context, limit, offset int) ([]*CycleRecord, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CycleRecord, int, error)
	// All returns every record, newest first, optionally for one patient.
	All(ctx context.Context, patientID *uuid.UUID) ([]*CycleRecord, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int, error)
}

// Transactor runs fn in a database transaction carried by fn's ctx.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
