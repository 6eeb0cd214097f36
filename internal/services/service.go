// Package services holds the access services: role checks, live collection
// listeners, mutations and the derived views the app screens show.
package services

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Collection paths.
const (
	usersPath        = "users"
	doctorsPath      = "doctors"
	appointmentsPath = "appointments"
)

type Service struct {
	db          store.Gateway
	notifier    Notifier
	adminEmails []string
	log         zerolog.Logger
	now         func() time.Time
}

func New(db store.Gateway, notifier Notifier, adminEmails []string, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		db:          db,
		notifier:    notifier,
		adminEmails: adminEmails,
		log:         log.With().Str("component", "services").Logger(),
		now:         time.Now,
	}
}

func (s *Service) millis() int64 {
	return s.now().UnixMilli()
}

func userPath(uid string) string { return store.Join(usersPath, uid) }
func doctorPath(id string) string { return store.Join(doctorsPath, id) }
func appointmentPath(id string) string { return store.Join(appointmentsPath, id) }
func messagesPath(apptID string) string { return store.Join(appointmentsPath, apptID, "messages") }

// decodeEntries decodes a collection and logs the entries it had to skip.
func decodeEntries[T any, PT interface {
	*T
	SetID(string)
}](s *Service, path string, entries []store.Entry) []T {
	list, err := models.DecodeList[T, PT](entries)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("skipped undecodable entries")
	}
	return list
}
