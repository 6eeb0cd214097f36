package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/harentsoaR/tabib-api/internal/models"
)

// Patient is a user who booked with a doctor at least once.
type Patient struct {
	models.User
	AppointmentsCount int    `json:"appointmentsCount"`
	LastAppointment   string `json:"lastAppointment,omitempty"`
}

// DoctorPatients builds the roster of a doctor from their appointments.
// Patients whose profile was deleted are left out.
func (s *Service) DoctorPatients(ctx context.Context, doctorID string) ([]Patient, error) {
	appts, err := s.DoctorAppointments(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.Roster(ctx, appts)
}

// Roster groups chronologically sorted appointments by patient, in order of
// each patient's first appointment.
func (s *Service) Roster(ctx context.Context, appts []models.Appointment) ([]Patient, error) {
	var ids []string
	byPatient := make(map[string][]models.Appointment)
	for _, a := range appts {
		if a.UserID == "" {
			continue
		}
		if _, ok := byPatient[a.UserID]; !ok {
			ids = append(ids, a.UserID)
		}
		byPatient[a.UserID] = append(byPatient[a.UserID], a)
	}

	users := make([]*models.User, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, uid := range ids {
		g.Go(func() error {
			u, err := s.GetUser(gctx, uid)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			users[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Patient, 0, len(ids))
	for i, u := range users {
		if u == nil {
			continue
		}
		list := byPatient[ids[i]]
		out = append(out, Patient{
			User:              *u,
			AppointmentsCount: len(list),
			LastAppointment:   list[len(list)-1].Date,
		})
	}
	return out, nil
}
