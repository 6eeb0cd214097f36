package models

import (
	"errors"
	"testing"
	"time"

	"github.com/harentsoaR/tabib-api/internal/store"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		wantErr  error
	}{
		{StatusPending, StatusConfirmed, nil},
		{StatusPending, StatusCancelled, nil},
		{StatusConfirmed, StatusCompleted, nil},
		{StatusConfirmed, StatusConfirmed, nil},
		{StatusCompleted, StatusCompleted, nil},
		{"", StatusConfirmed, nil},
		{"unknown", StatusCancelled, nil},
		{StatusPending, StatusCompleted, ErrInvalidTransition},
		{StatusCompleted, StatusPending, ErrInvalidTransition},
		{StatusCancelled, StatusConfirmed, ErrInvalidTransition},
		{StatusConfirmed, StatusCancelled, ErrInvalidTransition},
		{StatusPending, "done", ErrInvalidStatus},
		{StatusPending, "", ErrInvalidStatus},
	}
	for _, tt := range tests {
		err := CheckTransition(tt.from, tt.to)
		if tt.wantErr == nil && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.wantErr, err)
		}
	}
}

func TestWorkingHoursNormalize(t *testing.T) {
	wh := WorkingHours{
		"monday": {Enabled: true, From: "08:00"},
		"funday": {Enabled: true},
	}.Normalize()

	if len(wh) != 7 {
		t.Fatalf("expected 7 days, got %d", len(wh))
	}
	if _, ok := wh["funday"]; ok {
		t.Fatal("unknown day should be dropped")
	}
	mon := wh["monday"]
	if !mon.Enabled || mon.From != "08:00" || mon.To != "17:00" {
		t.Fatalf("unexpected monday %+v", mon)
	}
	if wh["sunday"].Enabled {
		t.Fatal("default days should be disabled")
	}
	if !wh.Available() {
		t.Fatal("expected available with monday enabled")
	}
	if DefaultWorkingHours().Available() {
		t.Fatal("default week should not be available")
	}
}

func TestWorkingHoursOn(t *testing.T) {
	wh := WorkingHours{"monday": {Enabled: true, From: "10:00", To: "12:00"}}
	mon := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if h := wh.On(mon); !h.Enabled || h.From != "10:00" {
		t.Fatalf("unexpected hours for monday: %+v", h)
	}
	if h := wh.On(mon.AddDate(0, 0, 6)); h.Enabled {
		t.Fatalf("sunday should be closed: %+v", h)
	}
}

func TestDecodeDoctorLooseTypes(t *testing.T) {
	var d Doctor
	err := Decode(map[string]any{
		"name":         "Dr Alaoui",
		"price":        float64(300),
		"latitude":     "33.57",
		"longitude":    float64(-7.59),
		"rating":       "4.5",
		"reviews":      float64(12),
		"workingHours": "",
		"createdAt":    float64(1700000000000),
	}, &d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Price != "300" {
		t.Errorf("expected price 300, got %q", d.Price)
	}
	if d.Latitude == nil || *d.Latitude != 33.57 {
		t.Errorf("unexpected latitude %v", d.Latitude)
	}
	if d.Rating != 4.5 || d.Reviews != 12 || d.CreatedAt != 1700000000000 {
		t.Errorf("unexpected decoded doctor %+v", d)
	}
	if len(d.WorkingHours) != 0 {
		t.Errorf("string working hours should decode empty, got %v", d.WorkingHours)
	}
}

func TestDecodeList(t *testing.T) {
	entries := []store.Entry{
		{Key: "a1", Value: map[string]any{"doctorId": "D1", "status": "pending"}},
		{Key: "bad", Value: "oops"},
		{Key: "a2", Value: map[string]any{"doctorId": "D2", "messages": map[string]any{"m1": map[string]any{}}}},
	}
	list, err := DecodeList[Appointment](entries)
	if err == nil {
		t.Fatal("expected error for the undecodable entry")
	}
	if len(list) != 2 || list[0].ID != "a1" || list[1].ID != "a2" {
		t.Fatalf("unexpected list %+v", list)
	}

	empty, err := DecodeList[User](nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v, %v", empty, err)
	}
}

func TestUserSetIDFillsUID(t *testing.T) {
	u, err := DecodeOne[User]("u1", map[string]any{"email": "a@b.c"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID != "u1" || u.UID != "u1" {
		t.Fatalf("expected id and uid u1, got %+v", u)
	}
	if u, _ := DecodeOne[User]("u2", nil); u != nil {
		t.Fatal("nil value should decode to nil")
	}
}
