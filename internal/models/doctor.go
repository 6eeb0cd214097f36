package models

import "time"

// Weekdays in display order; they are also the keys of WorkingHours.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// TimeSlots offered on the booking sheet.
var TimeSlots = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

type DayHours struct {
	Enabled bool   `json:"enabled"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// WorkingHours maps a weekday name to its opening hours.
type WorkingHours map[string]DayHours

// DefaultWorkingHours is every day closed, 09:00 to 17:00.
func DefaultWorkingHours() WorkingHours {
	wh := make(WorkingHours, len(Weekdays))
	for _, d := range Weekdays {
		wh[d] = DayHours{From: "09:00", To: "17:00"}
	}
	return wh
}

// Normalize returns a full week: stored days override the defaults and
// unknown keys are dropped.
func (wh WorkingHours) Normalize() WorkingHours {
	out := DefaultWorkingHours()
	for _, d := range Weekdays {
		h, ok := wh[d]
		if !ok {
			continue
		}
		if h.From == "" {
			h.From = out[d].From
		}
		if h.To == "" {
			h.To = out[d].To
		}
		out[d] = h
	}
	return out
}

// Available reports whether the doctor works at least one day a week.
func (wh WorkingHours) Available() bool {
	for _, h := range wh {
		if h.Enabled {
			return true
		}
	}
	return false
}

// On returns the hours for the weekday of t.
func (wh WorkingHours) On(t time.Time) DayHours {
	// time.Weekday starts on Sunday.
	idx := (int(t.Weekday()) + 6) % 7
	return wh.Normalize()[Weekdays[idx]]
}

type Doctor struct {
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name"`
	Specialty    string       `json:"specialty"`
	Experience   string       `json:"experience,omitempty"`
	Address      string       `json:"address,omitempty"`
	City         string       `json:"city,omitempty"`
	Price        string       `json:"price,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Email        string       `json:"email,omitempty"`
	Description  string       `json:"description,omitempty"`
	Photo        string       `json:"photo,omitempty"`
	WorkingHours WorkingHours `json:"workingHours,omitempty"`
	Latitude     *float64     `json:"latitude,omitempty"`
	Longitude    *float64     `json:"longitude,omitempty"`
	Rating       float64      `json:"rating,omitempty"`
	Reviews      int          `json:"reviews,omitempty"`
	CreatedAt    int64        `json:"createdAt,omitempty"`
	UpdatedAt    int64        `json:"updatedAt,omitempty"`
}

func (d *Doctor) SetID(id string) { d.ID = id }
