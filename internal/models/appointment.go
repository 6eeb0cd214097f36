package models

import (
	"errors"
	"fmt"
	"slices"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

var (
	ErrInvalidStatus     = errors.New("invalid appointment status")
	ErrInvalidTransition = errors.New("appointment status transition not allowed")
)

// transitions lists the moves a doctor can make. Writing the current status
// again is always allowed.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted},
}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// CheckTransition reports whether an appointment in state from may be moved
// to state to. Records with a missing or unknown status are treated as
// pending.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if !from.Valid() {
		from = StatusPending
	}
	if from == to || slices.Contains(transitions[from], to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

type Appointment struct {
	ID         string `json:"id,omitempty"`
	UserID     string `json:"userId"`
	DoctorID   string `json:"doctorId"`
	DoctorName string `json:"doctorName"`
	Date       string `json:"date"` // YYYY-MM-DD
	Time       string `json:"time"` // HH:MM
	Reason     string `json:"reason"`
	Status     Status `json:"status"`
	CreatedAt  int64  `json:"createdAt,omitempty"`
	UpdatedAt  int64  `json:"updatedAt,omitempty"`
}

func (a *Appointment) SetID(id string) { a.ID = id }

// When is the sortable date+time key of the appointment.
func (a *Appointment) When() string {
	t := a.Time
	if t == "" {
		t = "00:00"
	}
	return a.Date + "T" + t
}

// Message is one chat line under appointments/{id}/messages.
type Message struct {
	ID         string `json:"id,omitempty"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
	CreatedAt  int64  `json:"createdAt"`
}

func (m *Message) SetID(id string) { m.ID = id }
