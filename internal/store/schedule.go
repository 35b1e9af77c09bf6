package store

import (
	"context"

	"clinicdesk/internal/domain"
)

// ScheduleTx is the slice of the store visible inside a day-locked
// transaction: enough to count the day's bookings and insert a new one.
type ScheduleTx interface {
	ReferenceCounter
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
