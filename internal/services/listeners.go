package services

import (
	"sort"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// The listeners below deliver the whole collection on every change, as a
// slice that is empty rather than nil when nothing is stored. The order is
// the store's key order unless stated otherwise.

func (s *Service) GetAllUsers(fn func([]models.User)) store.Unsubscribe {
	return s.db.Listen(usersPath, func(v any) {
		fn(decodeEntries[models.User](s, usersPath, store.Entries(v)))
	})
}

func (s *Service) GetAllDoctors(fn func([]models.Doctor)) store.Unsubscribe {
	return s.db.Listen(doctorsPath, func(v any) {
		fn(decodeEntries[models.Doctor](s, doctorsPath, store.Entries(v)))
	})
}

func (s *Service) GetDoctorsBySpecialty(specialty string, fn func([]models.Doctor)) store.Unsubscribe {
	q := store.Query{OrderBy: "specialty", EqualTo: specialty}
	return s.db.ListenQuery(doctorsPath, q, func(es []store.Entry) {
		fn(decodeEntries[models.Doctor](s, doctorsPath, es))
	})
}

func (s *Service) GetAllAppointments(fn func([]models.Appointment)) store.Unsubscribe {
	return s.db.Listen(appointmentsPath, func(v any) {
		fn(decodeEntries[models.Appointment](s, appointmentsPath, store.Entries(v)))
	})
}

// GetDoctorAppointments delivers the doctor's appointments sorted by date
// and time, oldest first. Only appointments of that doctor are read.
func (s *Service) GetDoctorAppointments(doctorID string, fn func([]models.Appointment)) store.Unsubscribe {
	q := store.Query{OrderBy: "doctorId", EqualTo: doctorID}
	return s.db.ListenQuery(appointmentsPath, q, func(es []store.Entry) {
		list := decodeEntries[models.Appointment](s, appointmentsPath, es)
		sortChronological(list)
		fn(list)
	})
}

// GetUserAppointments delivers the appointments booked by a patient in
// booking order.
func (s *Service) GetUserAppointments(userID string, fn func([]models.Appointment)) store.Unsubscribe {
	q := store.Query{OrderBy: "userId", EqualTo: userID}
	return s.db.ListenQuery(appointmentsPath, q, func(es []store.Entry) {
		fn(decodeEntries[models.Appointment](s, appointmentsPath, es))
	})
}

func sortChronological(list []models.Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].When() < list[j].When()
	})
}
