package services

import (
	"context"
	"testing"

	"github.com/harentsoaR/tabib-api/internal/models"
)

func seedClinic(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	env.db.Write(ctx, "doctors/D1", map[string]any{"name": "Dr Idrissi", "specialty": "Dentiste", "photo": "https://x/p.png"})
	env.db.Write(ctx, "doctors/D2", map[string]any{"name": "Dr Tazi", "specialty": "Cardiologue"})
	env.putUser(t, "p1", map[string]any{"name": "Amina", "email": "amina@tabib.com", "phone": "+212600000001"})
	env.putUser(t, "p2", map[string]any{"email": "karim@tabib.com"})
	env.putUser(t, "admin1", map[string]any{"email": "a@tabib.com", "role": "admin"})
	env.db.Write(ctx, "appointments", map[string]any{
		"a1": map[string]any{"userId": "p1", "doctorId": "D1", "date": "2025-03-10", "time": "09:00", "status": "pending"},
		"a2": map[string]any{"userId": "p2", "doctorId": "D1", "date": "2025-03-12", "time": "10:00", "status": "confirmed"},
		"a3": map[string]any{"userId": "p1", "doctorId": "D1", "date": "2025-03-14", "time": "11:00", "status": "cancelled"},
		"a4": map[string]any{"userId": "p1", "doctorId": "gone", "date": "2025-03-11", "time": "15:00", "status": "completed"},
		"a5": map[string]any{"userId": "deleted", "doctorId": "D1", "date": "2025-03-10", "time": "16:00", "status": "pending"},
	})
	env.db.Write(ctx, "appointments/a1/messages", map[string]any{
		"m1": map[string]any{"message": "Bonjour", "timestamp": 100},
		"m2": map[string]any{"message": "Merci", "timestamp": 200},
	})
}

func TestUserAppointments(t *testing.T) {
	env := newTestEnv(t)
	seedClinic(t, env)

	views, err := env.svc.UserAppointments(context.Background(), "p1")
	if err != nil {
		t.Fatalf("user appointments: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 appointments, got %d", len(views))
	}
	if views[0].ID != "a3" || views[1].ID != "a4" || views[2].ID != "a1" {
		t.Fatalf("expected newest first, got %s %s %s", views[0].ID, views[1].ID, views[2].ID)
	}
	if views[1].DoctorName != "Médecin inconnu" {
		t.Errorf("expected fallback doctor name, got %q", views[1].DoctorName)
	}
	a1 := views[2]
	if a1.DoctorName != "Dr Idrissi" || a1.DoctorPhoto == "" || a1.DoctorSpecialty != "Dentiste" {
		t.Errorf("unexpected doctor details %+v", a1)
	}
	if !a1.HasMessages || a1.LastMessageTime != 200 {
		t.Errorf("expected message state, got %+v", a1)
	}
	if views[0].HasMessages {
		t.Error("a3 has no messages")
	}
}

func TestDoctorViewsAndFilter(t *testing.T) {
	env := newTestEnv(t)
	seedClinic(t, env)
	ctx := context.Background()

	appts, err := env.svc.DoctorAppointments(ctx, "D1")
	if err != nil {
		t.Fatalf("doctor appointments: %v", err)
	}
	views, err := env.svc.DoctorViews(ctx, appts)
	if err != nil {
		t.Fatalf("doctor views: %v", err)
	}
	if len(views) != 4 || views[0].ID != "a1" || views[0].UserName != "Amina" || views[0].UserPhone == "" {
		t.Fatalf("unexpected doctor views %+v", views)
	}
	names := map[string]string{}
	for _, v := range views {
		names[v.ID] = v.UserName
	}
	if names["a2"] != "karim@tabib.com" || names["a5"] != "Patient inconnu" {
		t.Fatalf("unexpected patient names %v", names)
	}

	if got := FilterAppointments(views, "pending", ""); len(got) != 2 {
		t.Errorf("expected 2 pending, got %d", len(got))
	}
	if got := FilterAppointments(views, "all", "amina"); len(got) != 2 {
		t.Errorf("expected 2 for amina, got %d", len(got))
	}
	if got := FilterAppointments(views, "", "2025-03-12"); len(got) != 1 || got[0].ID != "a2" {
		t.Errorf("unexpected date search %+v", got)
	}
}

func TestAdminViews(t *testing.T) {
	env := newTestEnv(t)
	seedClinic(t, env)
	ctx := context.Background()

	all, _ := env.svc.AllAppointments(ctx)
	views, err := env.svc.AdminViews(ctx, all)
	if err != nil {
		t.Fatalf("admin views: %v", err)
	}
	byID := map[string]AppointmentView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	if byID["a4"].DoctorName != "Médecin inconnu" || byID["a5"].UserName != "Utilisateur inconnu" {
		t.Fatalf("unexpected fallbacks %+v %+v", byID["a4"], byID["a5"])
	}
	if got := FilterAppointments(views, "all", "tazi"); len(got) != 0 {
		t.Errorf("Dr Tazi has no appointments, got %d", len(got))
	}
}

func TestDoctorPatients(t *testing.T) {
	env := newTestEnv(t)
	seedClinic(t, env)

	patients, err := env.svc.DoctorPatients(context.Background(), "D1")
	if err != nil {
		t.Fatalf("patients: %v", err)
	}
	if len(patients) != 2 {
		t.Fatalf("expected 2 patients, got %+v", patients)
	}
	if patients[0].UID != "p1" || patients[0].AppointmentsCount != 2 || patients[0].LastAppointment != "2025-03-14" {
		t.Errorf("unexpected first patient %+v", patients[0])
	}
	if patients[1].UID != "p2" || patients[1].AppointmentsCount != 1 {
		t.Errorf("unexpected second patient %+v", patients[1])
	}

	none, err := env.svc.DoctorPatients(context.Background(), "D2")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty roster, got %#v, %v", none, err)
	}
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	seedClinic(t, env)

	st, err := env.svc.AdminStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{
		TotalUsers: 3, TotalAdmins: 1, TotalDoctors: 2, TotalAppointments: 5,
		Pending: 2, Confirmed: 1, Cancelled: 1, Completed: 1,
	}
	if *st != want {
		t.Fatalf("got %+v, want %+v", *st, want)
	}
}

func TestDoctorDashboard(t *testing.T) {
	env := newTestEnv(t)
	seedClinic(t, env)

	d, err := env.svc.DoctorDashboard(context.Background(), "D1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Total != 4 || d.Pending != 2 || d.Confirmed != 1 || d.Today != 2 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestStatusCountsHasEveryStatus(t *testing.T) {
	counts := StatusCounts(nil)
	for _, st := range models.Statuses {
		if _, ok := counts[st]; !ok {
			t.Errorf("missing %s", st)
		}
	}
}

func TestSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.db.Write(ctx, "doctors/D1", map[string]any{
		"name":         "Dr A",
		"workingHours": map[string]any{"monday": map[string]any{"enabled": true, "from": "08:00", "to": "12:00"}},
	})

	day, err := env.svc.Slots(ctx, "D1", "2025-03-10")
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if !day.Available || !day.Hours.Enabled || day.Hours.From != "08:00" || len(day.Slots) != len(models.TimeSlots) {
		t.Fatalf("unexpected slots %+v", day)
	}
	day, _ = env.svc.Slots(ctx, "D1", "2025-03-11")
	if day.Hours.Enabled {
		t.Fatal("tuesday should be closed")
	}
}
