package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/harentsoaR/tabib-api/internal/auth"
	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// IsAdmin reports whether the session email is on the admin allow-list or
// the stored profile has role "admin". A nil session is never an admin.
func (s *Service) IsAdmin(ctx context.Context, sess *auth.Session) bool {
	if sess == nil {
		return false
	}
	if slices.Contains(s.adminEmails, sess.Email) {
		return true
	}
	u, err := s.GetUser(ctx, sess.UID)
	if err != nil {
		return false
	}
	return u.Role == models.RoleAdmin
}

// IsDoctor reports whether a doctor record carries the session email or the
// stored profile has role "doctor".
func (s *Service) IsDoctor(ctx context.Context, sess *auth.Session) bool {
	if sess == nil || sess.Email == "" {
		return false
	}
	if _, err := s.GetDoctorByEmail(ctx, sess.Email); err == nil {
		return true
	}
	u, err := s.GetUser(ctx, sess.UID)
	if err != nil {
		return false
	}
	return u.Role == models.RoleDoctor
}

// GetDoctorByEmail finds the doctor whose email matches, ignoring case and
// surrounding spaces. When several match, the first in key order wins. The
// match reads the raw email field; a matching record that does not decode is
// returned with its identity fields only.
func (s *Service) GetDoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: no email provided", ErrInvalidInput)
	}
	v, err := s.db.Read(ctx, doctorsPath)
	if err != nil {
		return nil, err
	}
	for _, e := range store.Entries(v) {
		fields, ok := e.Value.(map[string]any)
		if !ok {
			continue
		}
		raw, _ := fields["email"].(string)
		if strings.ToLower(strings.TrimSpace(raw)) != email {
			continue
		}
		d, err := models.DecodeOne[models.Doctor](e.Key, fields)
		if err != nil {
			s.log.Warn().Err(err).Str("doctor", e.Key).Msg("doctor record does not decode, using its identity fields")
			return partialDoctor(e.Key, fields), nil
		}
		return d, nil
	}
	return nil, fmt.Errorf("doctor %s: %w", email, ErrNotFound)
}

// partialDoctor keeps the string identity fields of a record that failed to
// decode.
func partialDoctor(id string, fields map[string]any) *models.Doctor {
	str := func(k string) string {
		v, _ := fields[k].(string)
		return v
	}
	return &models.Doctor{
		ID:        id,
		Name:      str("name"),
		Specialty: str("specialty"),
		Email:     str("email"),
		Phone:     str("phone"),
		City:      str("city"),
	}
}

func (s *Service) GetDoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	v, err := s.db.Read(ctx, doctorPath(id))
	if err != nil {
		return nil, err
	}
	d, err := models.DecodeOne[models.Doctor](id, v)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("doctor %s: %w", id, ErrNotFound)
	}
	return d, nil
}

func (s *Service) GetUser(ctx context.Context, uid string) (*models.User, error) {
	v, err := s.db.Read(ctx, userPath(uid))
	if err != nil {
		return nil, err
	}
	u, err := models.DecodeOne[models.User](uid, v)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	return u, nil
}

// Roles is the role summary of a session. Doctor is the matching doctor
// record, if any.
type Roles struct {
	Admin  bool           `json:"isAdmin"`
	Doctor bool           `json:"isDoctor"`
	Record *models.Doctor `json:"doctor,omitempty"`
}

func (s *Service) RolesOf(ctx context.Context, sess *auth.Session) Roles {
	r := Roles{Admin: s.IsAdmin(ctx, sess), Doctor: s.IsDoctor(ctx, sess)}
	if r.Doctor {
		if d, err := s.GetDoctorByEmail(ctx, sess.Email); err == nil {
			r.Record = d
		}
	}
	return r
}

// CanAccessAppointment reports whether the session is the patient of appt,
// its doctor, or an admin.
func (s *Service) CanAccessAppointment(ctx context.Context, sess *auth.Session, appt *models.Appointment) bool {
	if sess == nil || appt == nil {
		return false
	}
	if appt.UserID == sess.UID {
		return true
	}
	if d, err := s.GetDoctorByEmail(ctx, sess.Email); err == nil && d.ID == appt.DoctorID {
		return true
	}
	return s.IsAdmin(ctx, sess)
}
