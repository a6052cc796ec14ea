package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalife/blister/internal/domain/schedule"
	"github.com/pharmalife/blister/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientColumns = `id, name, delivery, insurance, cost, blister_schedule,
	billing_date, next_schedule_date, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Delivery, &p.Insurance, &p.Cost, &p.Cadence,
		&p.BillingDate, &p.NextScheduleDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, name, delivery, insurance, cost, blister_schedule,
			billing_date, next_schedule_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Delivery, p.Insurance, p.Cost, p.Cadence,
		p.BillingDate, p.NextScheduleDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1 FOR UPDATE`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			name = $2, delivery = $3, insurance = $4, cost = $5,
			blister_schedule = $6, billing_date = $7, next_schedule_date = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Delivery, p.Insurance, p.Cost,
		p.Cadence, p.BillingDate, p.NextScheduleDate,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPatientNotFound
	}
	return err
}

func (r *patientRepoPG) UpdateSchedule(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET billing_date = $2, next_schedule_date = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.BillingDate, p.NextScheduleDate,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPatientNotFound
	}
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if name := strings.TrimSpace(f.Name); name != "" {
		where += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+name+"%")
		idx++
	}
	if f.Cadence != "" {
		where += fmt.Sprintf(` AND blister_schedule = $%d`, idx)
		args = append(args, string(f.Cadence))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + patientColumns + ` FROM patients` + where +
		fmt.Sprintf(` ORDER BY next_schedule_date ASC, name ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.query(ctx, query, args...)
	return items, total, err
}

func (r *patientRepoPG) ListDue(ctx context.Context, today schedule.Date, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE billing_date <= $1`, today).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+patientColumns+` FROM patients
		WHERE billing_date <= $1
		ORDER BY billing_date ASC, name ASC LIMIT $2 OFFSET $3`, today, limit, offset)
	return items, total, err
}

func (r *patientRepoPG) ListUpcoming(ctx context.Context, today schedule.Date, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE next_schedule_date > $1`, today).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+patientColumns+` FROM patients
		WHERE next_schedule_date > $1
		ORDER BY next_schedule_date ASC, name ASC LIMIT $2 OFFSET $3`, today, limit, offset)
	return items, total, err
}

func (r *patientRepoPG) ListScheduledBetween(ctx context.Context, from, to schedule.Date) ([]*Patient, error) {
	return r.query(ctx, `SELECT `+patientColumns+` FROM patients
		WHERE next_schedule_date >= $1 AND next_schedule_date <= $2
		ORDER BY next_schedule_date ASC, name ASC`, from, to)
}

func (r *patientRepoPG) Stats(ctx context.Context, today schedule.Date) (*Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE billing_date <= $1),
			COUNT(*) FILTER (WHERE next_schedule_date > $1),
			COUNT(*) FILTER (WHERE blister_schedule IS NOT NULL AND blister_schedule <> ''),
			AVG(cost)::float8
		FROM patients`, today,
	).Scan(&s.TotalPatients, &s.DueCount, &s.UpcomingCount, &s.ActiveSchedules, &s.AverageCost)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *patientRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// -- History Repository --

type historyRepoPG struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const historyColumns = `id, patient_id, patient_name, previous_billing_date,
	new_billing_date, new_next_schedule_date, cycled_at`

func (r *historyRepoPG) Create(ctx context.Context, rec *CycleRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO schedule_records (
			id, patient_id, patient_name, previous_billing_date,
			new_billing_date, new_next_schedule_date, cycled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.PatientID, rec.PatientName, rec.PreviousBillingDate,
		rec.NewBillingDate, rec.NewNextScheduleDate, rec.CycledAt,
	)
	return err
}

func (r *historyRepoPG) List(ctx context.Context, limit, offset int) ([]*CycleRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM schedule_records`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+historyColumns+` FROM schedule_records
		ORDER BY cycled_at DESC, seq DESC LIMIT $1 OFFSET $2`, limit, offset)
	return items, total, err
}

func (r *historyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CycleRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM schedule_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+historyColumns+` FROM schedule_records
		WHERE patient_id = $1
		ORDER BY cycled_at DESC, seq DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	return items, total, err
}

func (r *historyRepoPG) All(ctx context.Context, patientID *uuid.UUID) ([]*CycleRecord, error) {
	if patientID != nil {
		return r.query(ctx, `SELECT `+historyColumns+` FROM schedule_records
			WHERE patient_id = $1 ORDER BY cycled_at DESC, seq DESC`, *patientID)
	}
	return r.query(ctx, `SELECT `+historyColumns+` FROM schedule_records
		ORDER BY cycled_at DESC, seq DESC`)
}

func (r *historyRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_records WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *historyRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM schedule_records`).Scan(&n)
	return n, err
}

func (r *historyRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*CycleRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*CycleRecord
	for rows.Next() {
		var rec CycleRecord
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.PatientName, &rec.PreviousBillingDate,
			&rec.NewBillingDate, &rec.NewNextScheduleDate, &rec.CycledAt); err != nil {
			return nil, err
		}
		items = append(items, &rec)
	}
	return items, rows.Err()
}
