package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmalife/blister/internal/domain/schedule"
)

var (
	ErrPatientNotFound        = errors.New("patient not found")
	ErrConcurrentModification = errors.New("patient was modified concurrently")
	ErrInvalidInput           = errors.New("invalid input")
	// ErrStorage wraps any failure of the underlying store.
	ErrStorage = errors.New("storage error")
)

const recentActivityLimit = 10

// CycleRecorder receives cycle outcomes. *metrics.Metrics satisfies it.
type CycleRecorder interface {
	CycleCompleted(override bool)
	CycleFailed(reason string)
}

type noopRecorder struct{}

func (noopRecorder) CycleCompleted(bool) {}
func (noopRecorder) CycleFailed(string)  {}

// CycleOptions control a single cycle. Override replaces the computed
// billing date. ExpectedBillingDate, when set, must equal the patient's
// current billing date or the cycle is refused.
type CycleOptions struct {
	Override            *schedule.Date
	ExpectedBillingDate *schedule.Date
}

type Service struct {
	patients PatientRepository
	history  HistoryRepository
	tx       Transactor
	recorder CycleRecorder
	now      func() time.Time
	loc      *time.Location
}

func NewService(patients PatientRepository, history HistoryRepository, tx Transactor) *Service {
	return &Service{
		patients: patients,
		history:  history,
		tx:       tx,
		recorder: noopRecorder{},
		now:      time.Now,
		loc:      time.UTC,
	}
}

// SetRecorder sets the cycle outcome sink.
func (s *Service) SetRecorder(r CycleRecorder) {
	if r == nil {
		r = noopRecorder{}
	}
	s.recorder = r
}

// SetClock replaces the wall clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetLocation sets the zone that decides which calendar day "today" is.
func (s *Service) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	s.loc = loc
}

// Today is the current calendar date in the service's location.
func (s *Service) Today() schedule.Date {
	return schedule.DateOf(s.now().In(s.loc))
}

func storageErr(err error) error {
	if err == nil || errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func (s *Service) normalize(p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("name is required")
	}
	if p.BillingDate.IsZero() {
		return invalid("billing_date is required")
	}
	if p.Cost != nil && *p.Cost < 0 {
		return invalid("cost must not be negative")
	}
	if p.Cost != nil && *p.Cost > MaxCost {
		return invalid("cost exceeds 99999999.99")
	}
	p.Cadence = schedule.Cadence(strings.TrimSpace(string(p.Cadence)))
	p.NextScheduleDate = schedule.NextDue(p.BillingDate, p.Cadence)
	return nil
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.normalize(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return storageErr(err)
	}
	zerolog.Ctx(ctx).Info().
		Str("patient_id", p.ID.String()).
		Str("next_schedule_date", p.NextScheduleDate.String()).
		Msg("patient created")
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return p, nil
}

// UpdatePatient replaces the editable fields and re-derives the next
// schedule date.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.normalize(p); err != nil {
		return err
	}
	return storageErr(s.patients.Update(ctx, p))
}

// DeletePatient removes the patient and its history together.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	var removed int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.history.DeleteByPatient(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return s.patients.Delete(ctx, id)
	})
	if err != nil {
		return storageErr(err)
	}
	zerolog.Ctx(ctx).Info().
		Str("patient_id", id.String()).
		Int64("history_removed", removed).
		Msg("patient deleted")
	return nil
}

func (s *Service) ListPatients(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.patients.List(ctx, f, limit, offset)
	return items, total, storageErr(err)
}

// -- Scheduling --

func (s *Service) ListDue(ctx context.Context, today schedule.Date, limit, offset int) ([]*Patient, int, error) {
	if today.IsZero() {
		today = s.Today()
	}
	items, total, err := s.patients.ListDue(ctx, today, limit, offset)
	return items, total, storageErr(err)
}

func (s *Service) ListUpcoming(ctx context.Context, today schedule.Date, limit, offset int) ([]*Patient, int, error) {
	if today.IsZero() {
		today = s.Today()
	}
	items, total, err := s.patients.ListUpcoming(ctx, today, limit, offset)
	return items, total, storageErr(err)
}

// CyclePatient advances one patient inside a single transaction. The
// patient row stays locked from the read until the history record and the
// new dates are written, so concurrent cycles of the same patient apply one
// after the other.
func (s *Service) CyclePatient(ctx context.Context, id uuid.UUID, opts CycleOptions) (*Patient, *CycleRecord, error) {
	var (
		updated Patient
		rec     CycleRecord
	)
	err := validCycleDates(opts)
	if err == nil {
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			current, err := s.patients.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if opts.ExpectedBillingDate != nil && !opts.ExpectedBillingDate.Equal(current.BillingDate) {
				return fmt.Errorf("%w: billing date is %s, expected %s",
					ErrConcurrentModification, current.BillingDate, *opts.ExpectedBillingDate)
			}
			if opts.Override == nil && current.NextScheduleDate.IsZero() {
				return fmt.Errorf("%w: patient has no next schedule date", schedule.ErrInvalidDate)
			}

			updated, rec = Cycle(*current, opts.Override, s.now().UTC())
			if err := s.history.Create(ctx, &rec); err != nil {
				return err
			}
			return s.patients.UpdateSchedule(ctx, &updated)
		})
	}

	logger := zerolog.Ctx(ctx)
	if err != nil {
		reason := "storage"
		switch {
		case errors.Is(err, ErrPatientNotFound):
			reason = "not_found"
		case errors.Is(err, ErrConcurrentModification):
			reason = "conflict"
		case errors.Is(err, schedule.ErrInvalidDate):
			reason = "invalid"
		default:
			err = storageErr(err)
		}
		s.recorder.CycleFailed(reason)
		logger.Warn().Err(err).Str("patient_id", id.String()).Str("reason", reason).Msg("cycle failed")
		return nil, nil, err
	}

	s.recorder.CycleCompleted(opts.Override != nil)
	logger.Info().
		Str("patient_id", id.String()).
		Str("previous_billing_date", rec.PreviousBillingDate.String()).
		Str("new_billing_date", rec.NewBillingDate.String()).
		Str("new_next_schedule_date", rec.NewNextScheduleDate.String()).
		Bool("override", opts.Override != nil).
		Msg("patient cycled")
	return &updated, &rec, nil
}

// validCycleDates rejects dates that decoded from an empty string.
func validCycleDates(opts CycleOptions) error {
	if opts.Override != nil && opts.Override.IsZero() {
		return fmt.Errorf("%w: billing_date must be YYYY-MM-DD", schedule.ErrInvalidDate)
	}
	if opts.ExpectedBillingDate != nil && opts.ExpectedBillingDate.IsZero() {
		return fmt.Errorf("%w: expected_billing_date must be YYYY-MM-DD", schedule.ErrInvalidDate)
	}
	return nil
}

func (s *Service) Dashboard(ctx context.Context, today schedule.Date) (*Dashboard, error) {
	if today.IsZero() {
		today = s.Today()
	}
	stats, err := s.patients.Stats(ctx, today)
	if err != nil {
		return nil, storageErr(err)
	}
	total, err := s.history.Count(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	recent, _, err := s.history.List(ctx, recentActivityLimit, 0)
	if err != nil {
		return nil, storageErr(err)
	}
	if recent == nil {
		recent = []*CycleRecord{}
	}
	return &Dashboard{
		Today:       today,
		Stats:       *stats,
		TotalCycles: total,
		Recent:      recent,
	}, nil
}

// Calendar returns every day of the month, each with the patients whose
// next schedule date falls on it.
func (s *Service) Calendar(ctx context.Context, year int, month time.Month) (*CalendarMonth, error) {
	if month < time.January || month > time.December {
		return nil, invalid("month must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return nil, invalid("year must be between 1 and 9999")
	}

	first := schedule.NewDate(year, month, 1)
	last := schedule.NewDate(year, month+1, 0)

	patients, err := s.patients.ListScheduledBetween(ctx, first, last)
	if err != nil {
		return nil, storageErr(err)
	}

	byDay := make(map[int][]CalendarEntry)
	for _, p := range patients {
		d := p.NextScheduleDate
		if d.Before(first) || d.After(last) {
			continue
		}
		byDay[d.Day()] = append(byDay[d.Day()], CalendarEntry{ID: p.ID, Name: p.Name, Cadence: p.Cadence})
	}

	cal := &CalendarMonth{Year: year, Month: int(month), Days: make([]CalendarDay, 0, last.Day())}
	for day := 1; day <= last.Day(); day++ {
		entries := byDay[day]
		if entries == nil {
			entries = []CalendarEntry{}
		}
		cal.Days = append(cal.Days, CalendarDay{Date: schedule.NewDate(year, month, day), Patients: entries})
	}
	return cal, nil
}

// -- History --

func (s *Service) ListHistory(ctx context.Context, limit, offset int) ([]*CycleRecord, int, error) {
	items, total, err := s.history.List(ctx, limit, offset)
	return items, total, storageErr(err)
}

// ListPatientHistory returns ErrPatientNotFound for an unknown patient
// rather than an empty page.
func (s *Service) ListPatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CycleRecord, int, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, 0, storageErr(err)
	}
	items, total, err := s.history.ListByPatient(ctx, patientID, limit, offset)
	return items, total, storageErr(err)
}
