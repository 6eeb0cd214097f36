package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harentsoaR/tabib-api/internal/models"
)

const defaultReason = "Consultation"

type BookingRequest struct {
	DoctorID string `json:"doctorId" binding:"required"`
	Date     string `json:"date" binding:"required"`
	Time     string `json:"time" binding:"required"`
	Reason   string `json:"reason"`
}

// BookAppointment stores a pending appointment for userID. Slots are not
// checked against working hours or other bookings.
func (s *Service) BookAppointment(ctx context.Context, userID string, req BookingRequest) (string, error) {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return "", fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return "", fmt.Errorf("%w: time must be HH:MM", ErrInvalidInput)
	}
	doctor, err := s.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return "", err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultReason
	}
	ts := s.millis()
	appt := models.Appointment{
		UserID:     userID,
		DoctorID:   doctor.ID,
		DoctorName: doctor.Name,
		Date:       req.Date,
		Time:       req.Time,
		Reason:     reason,
		Status:     models.StatusPending,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	id, err := s.db.Push(ctx, appointmentsPath, appt)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("appointment", id).Str("doctor", doctor.ID).Msg("appointment booked")
	return id, nil
}

// DaySlots is the booking sheet of a doctor for one day.
type DaySlots struct {
	Date      string          `json:"date"`
	Available bool            `json:"available"`
	Hours     models.DayHours `json:"hours"`
	Slots     []string        `json:"slots"`
}

// Slots returns the bookable time slots of a doctor on date.
func (s *Service) Slots(ctx context.Context, doctorID, date string) (*DaySlots, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	doctor, err := s.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	hours := doctor.WorkingHours.On(day)
	return &DaySlots{
		Date:      date,
		Available: doctor.WorkingHours.Available(),
		Hours:     hours,
		Slots:     append([]string(nil), models.TimeSlots...),
	}, nil
}
