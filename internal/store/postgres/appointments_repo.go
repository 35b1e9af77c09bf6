package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/store"
)

const referenceUniqueConstraint = "appointments_reference_number_key"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type scheduleTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientID string) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("patient_id = ?", patientID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListOnDate(ctx context.Context, date time.Time) ([]domain.Appointment, error) {
	start, end := domain.DayRange(date)
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("appointment_date >= ?", start).
		Where("appointment_date < ?", end).
		OrderExpr("reference_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListAll(ctx context.Context) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) FindByReference(ctx context.Context, ref string) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("reference_number = ?", ref).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) UpdateByReference(ctx context.Context, ref string, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	m.ReferenceNumber = ref
	res, err := r.db.NewUpdate().
		Model(&m).
		Column(
			"patient_id", "first_name", "last_name", "date_of_birth",
			"gender", "marital_state", "phone_number", "alternative_phone_number",
			"email", "address", "appointment_date", "payment_status", "updated_at",
		).
		Where("reference_number = ?", ref).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return r.FindByReference(ctx, ref)
}

func (r *AppointmentRepo) UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) (domain.Appointment, error) {
	m := domain.Appointment{ID: id, AppointmentDate: domain.NormalizeDate(date)}
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("appointment_date", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}

	var appt domain.Appointment
	err = r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) DeleteByReference(ctx context.Context, ref string) error {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("reference_number = ?", ref).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepo) DeleteAllOnDate(ctx context.Context, date time.Time) (int, error) {
	start, end := domain.DayRange(date)
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("appointment_date >= ?", start).
		Where("appointment_date < ?", end).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *AppointmentRepo) InDayTransaction(ctx context.Context, date time.Time, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDay(ctx, tx, date); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

// lockDay serializes reference allocation for one calendar day without
// blocking writes for unrelated days.
func lockDay(ctx context.Context, tx bun.Tx, date time.Time) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", dayLockKey(date)).Exec(ctx)
	return err
}

func dayLockKey(date time.Time) string {
	return "appointments:" + domain.NormalizeDate(date).Format(time.DateOnly)
}

func (t scheduleTx) CountOnDate(ctx context.Context, date time.Time) (int, error) {
	return countOnDate(ctx, t.tx, date)
}

// MaxIssuedSequence scans by reference prefix rather than by
// appointment_date, so a booking rescheduled to another day still pins
// the sequence of the day its reference was issued for. The suffix
// starts after the six character DDMMYY prefix and is compared
// numerically so a widened suffix beats "9999".
func (t scheduleTx) MaxIssuedSequence(ctx context.Context, date time.Time) (int, error) {
	var max int
	err := t.tx.NewSelect().
		Model((*domain.Appointment)(nil)).
		ColumnExpr("COALESCE(MAX(CAST(SUBSTRING(reference_number FROM 7) AS INTEGER)), 0)").
		Where("reference_number LIKE ?", domain.ReferencePrefix(date)+"%").
		Scan(ctx, &max)
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (t scheduleTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	m.AppointmentDate = domain.NormalizeDate(appt.AppointmentDate)

	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapInsertError(err)
	}
	return m, nil
}

func countOnDate(ctx context.Context, db bun.IDB, date time.Time) (int, error) {
	start, end := domain.DayRange(date)
	return db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("appointment_date >= ?", start).
		Where("appointment_date < ?", end).
		Count(ctx)
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == referenceUniqueConstraint {
		return store.ErrDuplicateReference
	}
	return err
}
