package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// SendMessage appends a message to an appointment's conversation. The
// timestamp comes from the server clock.
func (s *Service) SendMessage(ctx context.Context, appointmentID, senderID, senderName, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	if _, err := s.GetAppointment(ctx, appointmentID); err != nil {
		return "", err
	}
	ts := s.millis()
	return s.db.Push(ctx, messagesPath(appointmentID), models.Message{
		SenderID:   senderID,
		SenderName: senderName,
		Message:    text,
		Timestamp:  ts,
		CreatedAt:  ts,
	})
}

// GetAppointmentMessages delivers the conversation of an appointment,
// oldest first, on every change.
func (s *Service) GetAppointmentMessages(appointmentID string, fn func([]models.Message)) store.Unsubscribe {
	path := messagesPath(appointmentID)
	return s.db.Listen(path, func(v any) {
		fn(s.messages(path, v))
	})
}

// AppointmentMessages reads the conversation once.
func (s *Service) AppointmentMessages(ctx context.Context, appointmentID string) ([]models.Message, error) {
	path := messagesPath(appointmentID)
	v, err := s.db.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.messages(path, v), nil
}

func (s *Service) messages(path string, v any) []models.Message {
	list := decodeEntries[models.Message](s, path, store.Entries(v))
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp < list[j].Timestamp
		}
		return list[i].ID < list[j].ID
	})
	return list
}
