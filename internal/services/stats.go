package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

type Stats struct {
	TotalUsers        int `json:"totalUsers"`
	TotalAdmins       int `json:"totalAdmins"`
	TotalDoctors      int `json:"totalDoctors"`
	TotalAppointments int `json:"totalAppointments"`
	Pending           int `json:"pendingAppointments"`
	Confirmed         int `json:"confirmedAppointments"`
	Cancelled         int `json:"cancelledAppointments"`
	Completed         int `json:"completedAppointments"`
}

// AdminStats counts users, doctors and appointments by status.
func (s *Service) AdminStats(ctx context.Context) (*Stats, error) {
	var users []models.User
	var doctors, appts []store.Entry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.db.Read(gctx, usersPath)
		users = decodeEntries[models.User](s, usersPath, store.Entries(v))
		return err
	})
	g.Go(func() error {
		v, err := s.db.Read(gctx, doctorsPath)
		doctors = store.Entries(v)
		return err
	})
	g.Go(func() error {
		v, err := s.db.Read(gctx, appointmentsPath)
		appts = store.Entries(v)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := &Stats{
		TotalUsers:        len(users),
		TotalDoctors:      len(doctors),
		TotalAppointments: len(appts),
	}
	for _, u := range users {
		if u.Role == models.RoleAdmin {
			st.TotalAdmins++
		}
	}
	counts := StatusCounts(decodeEntries[models.Appointment](s, appointmentsPath, appts))
	st.Pending = counts[models.StatusPending]
	st.Confirmed = counts[models.StatusConfirmed]
	st.Cancelled = counts[models.StatusCancelled]
	st.Completed = counts[models.StatusCompleted]
	return st, nil
}

// StatusCounts counts appointments per status. Every known status is
// present in the result.
func StatusCounts(list []models.Appointment) map[models.Status]int {
	out := make(map[models.Status]int, len(models.Statuses))
	for _, st := range models.Statuses {
		out[st] = 0
	}
	for _, a := range list {
		out[a.Status]++
	}
	return out
}

type Dashboard struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Today     int `json:"today"`
}

// DoctorDashboard summarises a doctor's appointments. "Today" is the
// current UTC date.
func (s *Service) DoctorDashboard(ctx context.Context, doctorID string) (*Dashboard, error) {
	appts, err := s.DoctorAppointments(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.dashboard(appts), nil
}

func (s *Service) dashboard(appts []models.Appointment) *Dashboard {
	today := s.now().UTC().Format("2006-01-02")
	counts := StatusCounts(appts)
	d := &Dashboard{
		Total:     len(appts),
		Pending:   counts[models.StatusPending],
		Confirmed: counts[models.StatusConfirmed],
	}
	for _, a := range appts {
		if a.Date == today {
			d.Today++
		}
	}
	return d
}
