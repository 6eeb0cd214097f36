package services

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// AddDoctor stores a new doctor under a push id and returns the id.
func (s *Service) AddDoctor(ctx context.Context, d models.Doctor) (string, error) {
	if d.Name == "" || d.Specialty == "" {
		return "", fmt.Errorf("%w: name and specialty are required", ErrInvalidInput)
	}
	ts := s.millis()
	d.ID = ""
	d.CreatedAt = ts
	d.UpdatedAt = ts
	if len(d.WorkingHours) == 0 {
		d.WorkingHours = models.DefaultWorkingHours()
	} else {
		d.WorkingHours = d.WorkingHours.Normalize()
	}
	return s.db.Push(ctx, doctorsPath, d)
}

// UpdateDoctor applies updates to doctors/{id}. The merged record must still
// decode as a doctor; a stored record that no longer decodes can be repaired
// by an update that fixes it.
func (s *Service) UpdateDoctor(ctx context.Context, id string, updates map[string]any) error {
	fields := s.stamp(updates)
	if err := s.checkMerged(ctx, doctorPath(id), fields, func(m map[string]any) error {
		_, err := models.DecodeOne[models.Doctor](id, m)
		return err
	}); err != nil {
		return err
	}
	return s.db.Update(ctx, doctorPath(id), fields)
}

func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	return s.db.Delete(ctx, doctorPath(id))
}

// AllUsers reads the user profiles once.
func (s *Service) AllUsers(ctx context.Context) ([]models.User, error) {
	v, err := s.db.Read(ctx, usersPath)
	if err != nil {
		return nil, err
	}
	return decodeEntries[models.User](s, usersPath, store.Entries(v)), nil
}

func (s *Service) UpdateUser(ctx context.Context, uid string, updates map[string]any) error {
	fields := s.stamp(updates)
	if err := s.checkMerged(ctx, userPath(uid), fields, func(m map[string]any) error {
		_, err := models.DecodeOne[models.User](uid, m)
		return err
	}); err != nil {
		return err
	}
	return s.db.Update(ctx, userPath(uid), fields)
}

// checkMerged reads the record at path, applies fields to a copy the way
// Update would and runs check on the result. A missing record is
// ErrNotFound; a result check rejects is ErrInvalidInput.
func (s *Service) checkMerged(ctx context.Context, path string, fields map[string]any, check func(map[string]any) error) error {
	v, err := s.db.Read(ctx, path)
	if err != nil {
		return err
	}
	current, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	merged, err := applyFields(current, fields)
	if err != nil {
		return err
	}
	if err := check(merged); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// applyFields returns base with each slash path key of fields set to its
// value. Nil values remove the key. base is not modified.
func applyFields(base, fields map[string]any) (map[string]any, error) {
	out := maps.Clone(base)
	for k, v := range fields {
		segs, err := store.Split(k)
		if err != nil {
			return nil, err
		}
		if len(segs) == 0 {
			return nil, store.ErrInvalidPath
		}
		setField(out, segs, v)
	}
	return out, nil
}

func setField(m map[string]any, segs []string, v any) {
	if len(segs) == 1 {
		if v == nil {
			delete(m, segs[0])
		} else {
			m[segs[0]] = v
		}
		return
	}
	child, ok := m[segs[0]].(map[string]any)
	if !ok {
		if v == nil {
			return
		}
		child = make(map[string]any)
	} else {
		child = maps.Clone(child)
	}
	m[segs[0]] = child
	setField(child, segs[1:], v)
}

// DeleteUser removes the users/{uid} record. The login account is kept.
func (s *Service) DeleteUser(ctx context.Context, uid string) error {
	return s.db.Delete(ctx, userPath(uid))
}

func (s *Service) SetUserAsAdmin(ctx context.Context, uid string) error {
	if _, err := s.GetUser(ctx, uid); err != nil {
		return err
	}
	return s.db.Update(ctx, userPath(uid), map[string]any{
		"role":      models.RoleAdmin,
		"updatedAt": s.millis(),
	})
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	v, err := s.db.Read(ctx, appointmentPath(id))
	if err != nil {
		return nil, err
	}
	a, err := models.DecodeOne[models.Appointment](id, v)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// UpdateAppointmentStatus moves an appointment to status. Unknown statuses
// and moves outside pending->confirmed|cancelled and confirmed->completed
// are rejected; writing the current status again only refreshes updatedAt.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id string, status models.Status) error {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if err := models.CheckTransition(appt.Status, status); err != nil {
		return err
	}
	err = s.db.Update(ctx, appointmentPath(id), map[string]any{
		"status":    string(status),
		"updatedAt": s.millis(),
	})
	if err != nil {
		return err
	}

	if appt.UserID != "" && status != appt.Status && (status == models.StatusConfirmed || status == models.StatusCancelled) {
		appt.Status = status
		go s.notifyPatient(*appt)
	}
	return nil
}

func (s *Service) notifyPatient(appt models.Appointment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	patient, err := s.GetUser(ctx, appt.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment", appt.ID).Msg("no patient to notify")
		return
	}
	s.notifier.AppointmentStatusChanged(ctx, patient, &appt)
}

// stamp copies updates, drops fields callers may not set and adds
// updatedAt.
func (s *Service) stamp(updates map[string]any) map[string]any {
	out := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		switch k {
		case "id", "uid", "createdAt":
			continue
		}
		out[k] = v
	}
	out["updatedAt"] = s.millis()
	return out
}
