package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"clinicdesk/internal/domain"
)

type AppointmentRepository interface {
	ListByPatient(ctx context.Context, patientID string) ([]domain.Appointment, error)
	ListOnDate(ctx context.Context, date time.Time) ([]domain.Appointment, error)
	ListAll(ctx context.Context) ([]domain.Appointment, error)
	FindByReference(ctx context.Context, ref string) (domain.Appointment, error)
	UpdateByReference(ctx context.Context, ref string, appt domain.Appointment) (domain.Appointment, error)
	UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) (domain.Appointment, error)
	DeleteByReference(ctx context.Context, ref string) error
	DeleteAllOnDate(ctx context.Context, date time.Time) (int, error)

	// InDayTransaction runs fn inside a transaction that holds the
	// advisory lock for the calendar day of date, serializing the
	// read-then-insert reference allocation for that day. Allocation
	// reads are only reachable through the ScheduleTx handed to fn, so
	// they cannot run outside the lock.
	InDayTransaction(ctx context.Context, date time.Time, fn func(ctx context.Context, tx ScheduleTx) error) error
}

// ReferenceCounter exposes the two reads the allocator needs for a day:
// how many bookings currently sit on it, and the highest sequence ever
// issued under its DDMMYY reference prefix. The latter covers references
// whose booking has since been deleted or moved to another day.
type ReferenceCounter interface {
	CountOnDate(ctx context.Context, date time.Time) (int, error)
	MaxIssuedSequence(ctx context.Context, date time.Time) (int, error)
}
