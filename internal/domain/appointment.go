package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type MaritalState string

const (
	MaritalStateMarried MaritalState = "married"
	MaritalStateSingle  MaritalState = "single"
	MaritalStateWidowed MaritalState = "widowed"
)

type PaymentStatus string

const (
	PaymentStatusPayNow   PaymentStatus = "pay-now"
	PaymentStatusPayLater PaymentStatus = "pay-later"
)

// Appointment is a single clinic visit booking. PatientID is empty for
// staff-entered walk-in bookings, which carry no vitals access.
// AppointmentDate is always a UTC midnight instant (see NormalizeDate).
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                     uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	ReferenceNumber        string        `bun:"reference_number,notnull" json:"referenceNumber"`
	PatientID              string        `bun:"patient_id" json:"patientId,omitempty"`
	FirstName              string        `bun:"first_name,notnull" json:"firstName"`
	LastName               string        `bun:"last_name" json:"lastName,omitempty"`
	DateOfBirth            *time.Time    `bun:"date_of_birth" json:"dateOfBirth,omitempty"`
	Gender                 Gender        `bun:"gender" json:"gender,omitempty"`
	MaritalState           MaritalState  `bun:"marital_state" json:"maritalState,omitempty"`
	PhoneNumber            string        `bun:"phone_number,notnull" json:"phoneNumber"`
	AlternativePhoneNumber string        `bun:"alternative_phone_number" json:"alternativePhoneNumber,omitempty"`
	Email                  string        `bun:"email" json:"email,omitempty"`
	Address                string        `bun:"address" json:"address,omitempty"`
	AppointmentDate        time.Time     `bun:"appointment_date,notnull" json:"appointmentDate"`
	PaymentStatus          PaymentStatus `bun:"payment_status,notnull" json:"paymentStatus"`
	CreatedAt              time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt              time.Time     `bun:"updated_at,notnull" json:"updatedAt"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

func (m MaritalState) Valid() bool {
	switch m {
	case MaritalStateMarried, MaritalStateSingle, MaritalStateWidowed:
		return true
	}
	return false
}

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentStatusPayNow, PaymentStatusPayLater:
		return true
	}
	return false
}
