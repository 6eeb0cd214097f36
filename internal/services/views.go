package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// Fallback names shown when a referenced record is gone.
const (
	unknownDoctor  = "Médecin inconnu"
	unknownPatient = "Patient inconnu"
	unknownUser    = "Utilisateur inconnu"
)

// fanOut bounds the concurrent reads issued while building a view.
const fanOut = 8

// AppointmentView is an appointment with the names and conversation state
// the lists display next to it.
type AppointmentView struct {
	models.Appointment
	UserName        string `json:"userName,omitempty"`
	UserPhone       string `json:"userPhone,omitempty"`
	UserEmail       string `json:"userEmail,omitempty"`
	DoctorPhoto     string `json:"doctorPhoto,omitempty"`
	DoctorSpecialty string `json:"doctorSpecialty,omitempty"`
	HasMessages     bool   `json:"hasMessages"`
	LastMessageTime int64  `json:"lastMessageTime,omitempty"`
}

// related holds the records referenced by a set of appointments, read once
// per distinct id.
type related struct {
	mu       sync.Mutex
	users    map[string]*models.User
	doctors  map[string]*models.Doctor
	messages map[string][]models.Message
}

type lookup struct {
	users, doctors, messages bool
}

func (s *Service) loadRelated(ctx context.Context, list []models.Appointment, want lookup) (*related, error) {
	r := &related{
		users:    make(map[string]*models.User),
		doctors:  make(map[string]*models.Doctor),
		messages: make(map[string][]models.Message),
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)

	seen := make(map[string]bool)
	once := func(key string) bool {
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}

	for _, a := range list {
		if want.users && a.UserID != "" && once("u/"+a.UserID) {
			uid := a.UserID
			g.Go(func() error {
				u, err := s.GetUser(ctx, uid)
				if err != nil && !errors.Is(err, ErrNotFound) {
					s.log.Warn().Err(err).Str("uid", uid).Msg("failed to read patient")
				}
				r.mu.Lock()
				r.users[uid] = u
				r.mu.Unlock()
				return ctx.Err()
			})
		}
		if want.doctors && a.DoctorID != "" && once("d/"+a.DoctorID) {
			id := a.DoctorID
			g.Go(func() error {
				d, err := s.GetDoctorByID(ctx, id)
				if err != nil && !errors.Is(err, ErrNotFound) {
					s.log.Warn().Err(err).Str("doctor", id).Msg("failed to read doctor")
				}
				r.mu.Lock()
				r.doctors[id] = d
				r.mu.Unlock()
				return ctx.Err()
			})
		}
		if want.messages && once("m/"+a.ID) {
			id := a.ID
			g.Go(func() error {
				msgs, err := s.AppointmentMessages(ctx, id)
				if err != nil {
					s.log.Warn().Err(err).Str("appointment", id).Msg("failed to read messages")
				}
				r.mu.Lock()
				r.messages[id] = msgs
				r.mu.Unlock()
				return ctx.Err()
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

// PatientViews shapes a patient's appointments: doctor details and
// conversation state, newest first.
func (s *Service) PatientViews(ctx context.Context, list []models.Appointment) ([]AppointmentView, error) {
	r, err := s.loadRelated(ctx, list, lookup{doctors: true, messages: true})
	if err != nil {
		return nil, err
	}
	out := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		v := AppointmentView{Appointment: a}
		v.DoctorName = unknownDoctor
		if d := r.doctors[a.DoctorID]; d != nil {
			if d.Name != "" {
				v.DoctorName = d.Name
			}
			v.DoctorPhoto = d.Photo
			v.DoctorSpecialty = d.Specialty
		}
		if msgs := r.messages[a.ID]; len(msgs) > 0 {
			v.HasMessages = true
			v.LastMessageTime = msgs[len(msgs)-1].Timestamp
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].When() > out[j].When()
	})
	return out, nil
}

// DoctorViews shapes a doctor's appointments with patient contact details,
// keeping their order.
func (s *Service) DoctorViews(ctx context.Context, list []models.Appointment) ([]AppointmentView, error) {
	r, err := s.loadRelated(ctx, list, lookup{users: true})
	if err != nil {
		return nil, err
	}
	out := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		v := AppointmentView{Appointment: a, UserName: unknownPatient}
		if u := r.users[a.UserID]; u != nil {
			v.UserName = displayName(u, unknownPatient)
			v.UserPhone = u.Phone
			v.UserEmail = u.Email
		}
		out = append(out, v)
	}
	return out, nil
}

// AdminViews names both parties of every appointment.
func (s *Service) AdminViews(ctx context.Context, list []models.Appointment) ([]AppointmentView, error) {
	r, err := s.loadRelated(ctx, list, lookup{users: true, doctors: true})
	if err != nil {
		return nil, err
	}
	out := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		v := AppointmentView{Appointment: a, UserName: unknownUser}
		v.DoctorName = unknownDoctor
		if u := r.users[a.UserID]; u != nil {
			v.UserName = displayName(u, unknownUser)
		}
		if d := r.doctors[a.DoctorID]; d != nil && d.Name != "" {
			v.DoctorName = d.Name
		}
		out = append(out, v)
	}
	return out, nil
}

func displayName(u *models.User, fallback string) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return fallback
}

// UserAppointments reads and shapes the appointments of a patient.
func (s *Service) UserAppointments(ctx context.Context, userID string) ([]AppointmentView, error) {
	es, err := s.db.Query(ctx, appointmentsPath, store.Query{OrderBy: "userId", EqualTo: userID})
	if err != nil {
		return nil, err
	}
	return s.PatientViews(ctx, decodeEntries[models.Appointment](s, appointmentsPath, es))
}

// DoctorAppointments reads the appointments of a doctor, oldest first.
func (s *Service) DoctorAppointments(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	es, err := s.db.Query(ctx, appointmentsPath, store.Query{OrderBy: "doctorId", EqualTo: doctorID})
	if err != nil {
		return nil, err
	}
	list := decodeEntries[models.Appointment](s, appointmentsPath, es)
	sortChronological(list)
	return list, nil
}

func (s *Service) AllAppointments(ctx context.Context) ([]models.Appointment, error) {
	v, err := s.db.Read(ctx, appointmentsPath)
	if err != nil {
		return nil, err
	}
	return decodeEntries[models.Appointment](s, appointmentsPath, store.Entries(v)), nil
}

// FilterAppointments keeps the views with the given status ("" or "all"
// keeps every status) that mention q in a name, the date or the time.
func FilterAppointments(views []AppointmentView, status, q string) []AppointmentView {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]AppointmentView, 0, len(views))
	for _, v := range views {
		if status != "" && status != "all" && string(v.Status) != status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(v.UserName), q) &&
			!strings.Contains(strings.ToLower(v.DoctorName), q) &&
			!strings.Contains(v.Date, q) &&
			!strings.Contains(v.Time, q) {
			continue
		}
		out = append(out, v)
	}
	return out
}
