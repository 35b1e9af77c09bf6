package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/service/appointments"
	"clinicdesk/internal/store"
)

type appointmentsService interface {
	CreateByPatient(ctx context.Context, in appointments.CreatePatientInput) (domain.Appointment, error)
	CreateByStaff(ctx context.Context, in appointments.CreateStaffInput) (domain.Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.Appointment, error)
	ListByDate(ctx context.Context, date time.Time) ([]domain.Appointment, error)
	ListAll(ctx context.Context) ([]domain.Appointment, error)
	FindByReference(ctx context.Context, ref string) (domain.Appointment, error)
	PatientIDByReference(ctx context.Context, ref string) (string, error)
	RescheduleByReference(ctx context.Context, ref string, in appointments.CreatePatientInput) (domain.Appointment, error)
	RescheduleByID(ctx context.Context, id uuid.UUID, date time.Time) (domain.Appointment, error)
	DeleteByReference(ctx context.Context, ref string) error
	DeleteAllByDate(ctx context.Context, date time.Time) (int, error)
}

type AppointmentsHandler struct {
	svc    appointmentsService
	logger *slog.Logger
}

func NewAppointmentsHandler(svc appointmentsService, logger *slog.Logger) *AppointmentsHandler {
	return &AppointmentsHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "http.appointments")),
	}
}

type patientAppointmentRequest struct {
	PatientID              string `json:"patientId"`
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	DateOfBirth            string `json:"dateOfBirth"`
	Gender                 string `json:"gender"`
	MaritalState           string `json:"maritalState"`
	PhoneNumber            string `json:"phoneNumber"`
	AlternativePhoneNumber string `json:"alternativePhoneNumber"`
	Email                  string `json:"email"`
	Address                string `json:"address"`
	AppointmentDate        string `json:"appointmentDate"`
	PaymentStatus          string `json:"paymentStatus"`
}

type staffAppointmentRequest struct {
	FirstName       string `json:"firstName"`
	PhoneNumber     string `json:"phoneNumber"`
	AppointmentDate string `json:"appointmentDate"`
}

type rescheduleRequest struct {
	AppointmentDate string `json:"appointmentDate"`
}

func (r patientAppointmentRequest) toInput() (appointments.CreatePatientInput, error) {
	dob, err := parseOptionalDate(r.DateOfBirth, "dateOfBirth")
	if err != nil {
		return appointments.CreatePatientInput{}, err
	}
	date, err := parseOptionalDate(r.AppointmentDate, "appointmentDate")
	if err != nil {
		return appointments.CreatePatientInput{}, err
	}
	return appointments.CreatePatientInput{
		PatientID:              r.PatientID,
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		DateOfBirth:            dob,
		Gender:                 r.Gender,
		MaritalState:           r.MaritalState,
		PhoneNumber:            r.PhoneNumber,
		AlternativePhoneNumber: r.AlternativePhoneNumber,
		Email:                  r.Email,
		Address:                r.Address,
		AppointmentDate:        date,
		PaymentStatus:          r.PaymentStatus,
	}, nil
}

func (h *AppointmentsHandler) CreateByPatient(c *gin.Context) {
	var req patientAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	appt, err := h.svc.CreateByPatient(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "appointment": appt})
}

func (h *AppointmentsHandler) CreateByStaff(c *gin.Context) {
	var req staffAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	date, err := parseOptionalDate(req.AppointmentDate, "appointmentDate")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	appt, err := h.svc.CreateByStaff(c.Request.Context(), appointments.CreateStaffInput{
		FirstName:       req.FirstName,
		PhoneNumber:     req.PhoneNumber,
		AppointmentDate: date,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "appointment": appt})
}

func (h *AppointmentsHandler) ListAll(c *gin.Context) {
	appts, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": emptyAsSlice(appts)})
}

func (h *AppointmentsHandler) ListByPatient(c *gin.Context) {
	appts, err := h.svc.ListByPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": emptyAsSlice(appts)})
}

func (h *AppointmentsHandler) ListByDate(c *gin.Context) {
	date, err := parseDate(c.Param("date"), "date")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	appts, err := h.svc.ListByDate(c.Request.Context(), date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": emptyAsSlice(appts)})
}

func (h *AppointmentsHandler) DeleteAllByDate(c *gin.Context) {
	date, err := parseDate(c.Param("date"), "date")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	deleted, err := h.svc.DeleteAllByDate(c.Request.Context(), date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%d appointments deleted", deleted),
	})
}

func (h *AppointmentsHandler) FindByReference(c *gin.Context) {
	appt, err := h.svc.FindByReference(c.Request.Context(), c.Param("refNo"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointment": appt})
}

func (h *AppointmentsHandler) DeleteByReference(c *gin.Context) {
	if err := h.svc.DeleteByReference(c.Request.Context(), c.Param("refNo")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "appointment deleted"})
}

func (h *AppointmentsHandler) RescheduleByReference(c *gin.Context) {
	var req patientAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	appt, err := h.svc.RescheduleByReference(c.Request.Context(), c.Param("refNo"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointment": appt})
}

func (h *AppointmentsHandler) PatientIDByReference(c *gin.Context) {
	patientID, err := h.svc.PatientIDByReference(c.Request.Context(), c.Param("refNo"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patientId": patientID})
}

func (h *AppointmentsHandler) RescheduleByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid appointment id")
		return
	}
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	date, err := parseDate(req.AppointmentDate, "appointmentDate")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	appt, err := h.svc.RescheduleByID(c.Request.Context(), id, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointment": appt})
}

func (h *AppointmentsHandler) writeError(c *gin.Context, err error) {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		badRequest(c, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "appointment not found"})
	case errors.Is(err, appointments.ErrNoVitalsAccess):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "No access to vitals."})
	case errors.Is(err, appointments.ErrSchedulingConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "scheduling conflict, try again"})
	default:
		h.logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp; callers
// downstream normalize to the UTC day either way.
func parseDate(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s, expected YYYY-MM-DD or RFC 3339", field)
}

func parseOptionalDate(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return parseDate(raw, field)
}

func emptyAsSlice(appts []domain.Appointment) []domain.Appointment {
	if appts == nil {
		return []domain.Appointment{}
	}
	return appts
}
