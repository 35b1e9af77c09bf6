package appointments

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func validationError(msg string) error {
	return NewValidationError(msg)
}

var (
	// ErrSchedulingConflict is returned when reference allocation keeps
	// colliding after the bounded retries; the caller should try again.
	ErrSchedulingConflict = errors.New("scheduling conflict")

	// ErrNoVitalsAccess marks an appointment that exists but carries no
	// patient link, so it grants no access to medical vitals. This is a
	// normal outcome for staff-entered walk-in bookings.
	ErrNoVitalsAccess = errors.New("no vitals access")
)

const maxAllocationAttempts = 5

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type Service struct {
	repo store.AppointmentRepository
}

func NewService(repo store.AppointmentRepository) *Service {
	return &Service{repo: repo}
}

type CreatePatientInput struct {
	PatientID              string
	FirstName              string
	LastName               string
	DateOfBirth            time.Time
	Gender                 string
	MaritalState           string
	PhoneNumber            string
	AlternativePhoneNumber string
	Email                  string
	Address                string
	AppointmentDate        time.Time
	PaymentStatus          string
}

type CreateStaffInput struct {
	FirstName       string
	PhoneNumber     string
	AppointmentDate time.Time
}

// CreateByPatient books an appointment from the patient-facing flow. The
// optional PatientID links the booking to a patient identity and gates
// later vitals access.
func (s *Service) CreateByPatient(ctx context.Context, in CreatePatientInput) (domain.Appointment, error) {
	appt, err := patientAppointment(in, true)
	if err != nil {
		return domain.Appointment{}, err
	}
	return s.createWithReference(ctx, appt)
}

// CreateByStaff books a walk-in or phone appointment. It never carries a
// patient link, so the resulting record grants no vitals access.
func (s *Service) CreateByStaff(ctx context.Context, in CreateStaffInput) (domain.Appointment, error) {
	firstName := strings.TrimSpace(in.FirstName)
	if firstName == "" {
		return domain.Appointment{}, validationError("firstName is required")
	}
	phone, err := validPhoneNumber(in.PhoneNumber)
	if err != nil {
		return domain.Appointment{}, err
	}
	if in.AppointmentDate.IsZero() {
		return domain.Appointment{}, validationError("appointmentDate is required")
	}

	appt := domain.Appointment{
		FirstName:       firstName,
		PhoneNumber:     phone,
		AppointmentDate: domain.NormalizeDate(in.AppointmentDate),
		PaymentStatus:   domain.PaymentStatusPayLater,
	}
	return s.createWithReference(ctx, appt)
}

// createWithReference allocates a reference number and inserts, both inside
// a transaction that holds the day's advisory lock. The lock serializes the
// count-then-insert sequence; the bounded retry on ErrDuplicateReference is
// the fallback for anything the lock does not cover, with the store's
// unique constraint as the hard backstop.
func (s *Service) createWithReference(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		err := s.repo.InDayTransaction(ctx, appt.AppointmentDate, func(ctx context.Context, tx store.ScheduleTx) error {
			ref, err := AllocateReference(ctx, tx, appt.AppointmentDate)
			if err != nil {
				return err
			}
			appt.ReferenceNumber = ref
			created, err := tx.CreateAppointment(ctx, appt)
			if err != nil {
				return err
			}
			out = created
			return nil
		})
		if errors.Is(err, store.ErrDuplicateReference) {
			continue
		}
		if err != nil {
			return domain.Appointment{}, err
		}
		return out, nil
	}
	return domain.Appointment{}, ErrSchedulingConflict
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]domain.Appointment, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, validationError("patientId is required")
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]domain.Appointment, error) {
	if date.IsZero() {
		return nil, validationError("date is required")
	}
	return s.repo.ListOnDate(ctx, date)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Appointment, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) FindByReference(ctx context.Context, ref string) (domain.Appointment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Appointment{}, validationError("refNo is required")
	}
	return s.repo.FindByReference(ctx, ref)
}

// PatientIDByReference is the vitals-access gate: it returns the patient id
// linked to a reference-numbered visit, ErrNoVitalsAccess when the booking
// has no patient link, or store.ErrNotFound for an unknown reference.
func (s *Service) PatientIDByReference(ctx context.Context, ref string) (string, error) {
	appt, err := s.FindByReference(ctx, ref)
	if err != nil {
		return "", err
	}
	if appt.PatientID == "" {
		return "", ErrNoVitalsAccess
	}
	return appt.PatientID, nil
}

// RescheduleByReference replaces the mutable fields of an appointment,
// including its (normalized) date. The reference number is deliberately
// left unchanged so printed receipts stay valid. Unlike the create path
// the date of birth is optional here, so staff-entered bookings (which
// never carry one) can still be rescheduled.
func (s *Service) RescheduleByReference(ctx context.Context, ref string, in CreatePatientInput) (domain.Appointment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Appointment{}, validationError("refNo is required")
	}
	appt, err := patientAppointment(in, false)
	if err != nil {
		return domain.Appointment{}, err
	}
	return s.repo.UpdateByReference(ctx, ref, appt)
}

// RescheduleByID moves an appointment to a new date by internal id, leaving
// demographics and the reference number untouched.
func (s *Service) RescheduleByID(ctx context.Context, id uuid.UUID, date time.Time) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	if date.IsZero() {
		return domain.Appointment{}, validationError("appointmentDate is required")
	}
	return s.repo.UpdateDate(ctx, id, date)
}

func (s *Service) DeleteByReference(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return validationError("refNo is required")
	}
	return s.repo.DeleteByReference(ctx, ref)
}

// DeleteAllByDate removes every appointment on the calendar day of date and
// reports how many went. This is the end-of-day sweep; there is no soft
// delete behind it.
func (s *Service) DeleteAllByDate(ctx context.Context, date time.Time) (int, error) {
	if date.IsZero() {
		return 0, validationError("date is required")
	}
	return s.repo.DeleteAllOnDate(ctx, date)
}

func patientAppointment(in CreatePatientInput, requireDOB bool) (domain.Appointment, error) {
	firstName := strings.TrimSpace(in.FirstName)
	if firstName == "" {
		return domain.Appointment{}, validationError("firstName is required")
	}
	phone, err := validPhoneNumber(in.PhoneNumber)
	if err != nil {
		return domain.Appointment{}, err
	}
	if requireDOB && in.DateOfBirth.IsZero() {
		return domain.Appointment{}, validationError("dateOfBirth is required")
	}
	if in.AppointmentDate.IsZero() {
		return domain.Appointment{}, validationError("appointmentDate is required")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" && !emailPattern.MatchString(email) {
		return domain.Appointment{}, validationError("invalid email address")
	}

	address := strings.TrimSpace(in.Address)
	if address != "" && len(address) < 5 {
		return domain.Appointment{}, validationError("address must be at least 5 characters")
	}

	gender := domain.Gender(strings.TrimSpace(in.Gender))
	if gender != "" && !gender.Valid() {
		return domain.Appointment{}, validationError("invalid gender")
	}

	marital := domain.MaritalState(strings.TrimSpace(in.MaritalState))
	if marital != "" && !marital.Valid() {
		return domain.Appointment{}, validationError("invalid maritalState")
	}

	payment := domain.PaymentStatus(strings.TrimSpace(in.PaymentStatus))
	if payment == "" {
		payment = domain.PaymentStatusPayLater
	} else if !payment.Valid() {
		return domain.Appointment{}, validationError("invalid paymentStatus")
	}

	var dob *time.Time
	if !in.DateOfBirth.IsZero() {
		d := in.DateOfBirth.UTC()
		dob = &d
	}

	return domain.Appointment{
		PatientID:              strings.TrimSpace(in.PatientID),
		FirstName:              firstName,
		LastName:               strings.TrimSpace(in.LastName),
		DateOfBirth:            dob,
		Gender:                 gender,
		MaritalState:           marital,
		PhoneNumber:            phone,
		AlternativePhoneNumber: strings.TrimSpace(in.AlternativePhoneNumber),
		Email:                  email,
		Address:                address,
		AppointmentDate:        domain.NormalizeDate(in.AppointmentDate),
		PaymentStatus:          payment,
	}, nil
}

func validPhoneNumber(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return "", validationError("phoneNumber is required")
	}
	if len(phone) < 10 {
		return "", validationError("phoneNumber must be at least 10 characters")
	}
	return phone, nil
}
