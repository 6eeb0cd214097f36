package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(zerolog.Nop())
	t.Cleanup(func() { m.Close() })
	return m
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func expectNone[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected snapshot: %v", v)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		path    string
		want    int
		wantErr bool
	}{
		{"users/u1", 2, false},
		{"/users//u1/", 2, false},
		{"", 0, false},
		{"appointments/a1/messages", 3, false},
		{"users/u.1", 0, true},
		{"users/$x", 0, true},
		{"doctors/[0]", 0, true},
	}
	for _, tt := range tests {
		segs, err := Split(tt.path)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Split(%q): expected ErrInvalidPath, got %v", tt.path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Split(%q): unexpected error %v", tt.path, err)
			continue
		}
		if len(segs) != tt.want {
			t.Errorf("Split(%q): expected %d segments, got %d", tt.path, tt.want, len(segs))
		}
	}
}

func TestRelated(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"appointments", "appointments/a1/status", true},
		{"appointments/a1/messages", "appointments/a1", true},
		{"appointments/a1/messages", "appointments/a2", false},
		{"appointments", "appointmentsX", false},
		{"doctors", "users/u1", false},
		{"", "users", true},
	}
	for _, tt := range tests {
		if got := related(tt.a, tt.b); got != tt.want {
			t.Errorf("related(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMemory_WriteAndRead(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	err := m.Write(ctx, "users/u1", map[string]any{"name": "Amina", "phone": "0600000000"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	v, err := m.Read(ctx, "users/u1/name")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != "Amina" {
		t.Fatalf("expected Amina, got %v", v)
	}

	v, err = m.Read(ctx, "users/missing")
	if err != nil || v != nil {
		t.Fatalf("expected nil for missing path, got %v, %v", v, err)
	}
}

func TestMemory_WriteOverwrites(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	m.Write(ctx, "doctors/d1", map[string]any{"name": "Dr A", "city": "Rabat"})
	m.Write(ctx, "doctors/d1", map[string]any{"name": "Dr B"})

	v, _ := m.Read(ctx, "doctors/d1")
	doc := v.(map[string]any)
	if _, ok := doc["city"]; ok {
		t.Fatal("write should replace the whole node")
	}
	if doc["name"] != "Dr B" {
		t.Fatalf("expected Dr B, got %v", doc["name"])
	}
}

func TestMemory_UpdateMerges(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	m.Write(ctx, "appointments/a1", map[string]any{"status": "pending", "doctorId": "D1"})
	if err := m.Update(ctx, "appointments/a1", map[string]any{"status": "confirmed", "updatedAt": 10}); err != nil {
		t.Fatalf("update: %v", err)
	}

	v, _ := m.Read(ctx, "appointments/a1")
	doc := v.(map[string]any)
	if doc["status"] != "confirmed" || doc["doctorId"] != "D1" || doc["updatedAt"] != float64(10) {
		t.Fatalf("unexpected merged document: %v", doc)
	}

	if err := m.Update(ctx, "appointments/a1", map[string]any{"doctorId": nil}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if v, _ := m.Read(ctx, "appointments/a1/doctorId"); v != nil {
		t.Fatalf("nil field should delete, got %v", v)
	}
}

func TestMemory_DeletePrunesEmptyParents(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	m.Write(ctx, "appointments/a1/messages/m1", map[string]any{"message": "hi"})
	if err := m.Delete(ctx, "appointments/a1/messages/m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v, _ := m.Read(ctx, "appointments"); v != nil {
		t.Fatalf("expected empty collection to read as nil, got %v", v)
	}
}

func TestMemory_RootMutationRejected(t *testing.T) {
	m := newTestMemory(t)
	if err := m.Write(context.Background(), "/", map[string]any{"a": 1}); !errors.Is(err, ErrRootWrite) {
		t.Fatalf("expected ErrRootWrite, got %v", err)
	}
	if err := m.Delete(context.Background(), ""); !errors.Is(err, ErrRootWrite) {
		t.Fatalf("expected ErrRootWrite, got %v", err)
	}
}

func TestMemory_PushKeysAreOrdered(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	var keys []string
	for i := 0; i < 5; i++ {
		k, err := m.Push(ctx, "appointments/a1/messages", map[string]any{"n": i})
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("push ids not increasing: %q then %q", keys[i-1], keys[i])
		}
	}
	v, _ := m.Read(ctx, "appointments/a1/messages")
	if es := Entries(v); len(es) != 5 || es[0].Key != keys[0] {
		t.Fatalf("unexpected entries: %v", es)
	}
}

func TestMemory_WriteNormalizesStructs(t *testing.T) {
	m := newTestMemory(t)
	type doc struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Photo string  `json:"photo,omitempty"`
	}
	m.Write(context.Background(), "doctors/d1", doc{Name: "Dr A", Price: 300})

	v, _ := m.Read(context.Background(), "doctors/d1")
	got := v.(map[string]any)
	if got["name"] != "Dr A" || got["price"] != float64(300) {
		t.Fatalf("unexpected stored value %v", got)
	}
	if _, ok := got["photo"]; ok {
		t.Fatal("omitted field should not be stored")
	}
}

func TestMemory_Query(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	m.Write(ctx, "appointments", map[string]any{
		"a1": map[string]any{"doctorId": "D1", "date": "2025-03-11"},
		"a2": map[string]any{"doctorId": "D2", "date": "2025-03-09"},
		"a3": map[string]any{"doctorId": "D1", "date": "2025-03-10"},
	})

	es, err := m.Query(ctx, "appointments", Query{OrderBy: "doctorId", EqualTo: "D1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(es) != 2 || es[0].Key != "a1" || es[1].Key != "a3" {
		t.Fatalf("unexpected filter result: %v", es)
	}

	es, _ = m.Query(ctx, "appointments", Query{OrderBy: "date", Limit: 2})
	if len(es) != 2 || es[0].Key != "a2" || es[1].Key != "a3" {
		t.Fatalf("unexpected ordered result: %v", es)
	}

	es, _ = m.Query(ctx, "doctors", Query{OrderBy: "specialty", EqualTo: "Cardiologue"})
	if es == nil || len(es) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", es)
	}
}

func TestMemory_ListenDeliversInitialAndChanges(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	m.Write(ctx, "doctors/d1", map[string]any{"name": "Dr A"})

	ch := make(chan any, 8)
	unsub := m.Listen("doctors", func(v any) { ch <- v })
	defer unsub()

	first := recv(t, ch).(map[string]any)
	if len(first) != 1 {
		t.Fatalf("expected one doctor in initial snapshot, got %v", first)
	}

	m.Write(ctx, "doctors/d2", map[string]any{"name": "Dr B"})
	second := recv(t, ch).(map[string]any)
	if len(second) != 2 {
		t.Fatalf("expected two doctors after write, got %v", second)
	}

	m.Update(ctx, "doctors/d2", map[string]any{"name": "Dr B"})
	expectNone(t, ch)

	m.Write(ctx, "users/u1", map[string]any{"name": "x"})
	expectNone(t, ch)
}

func TestMemory_ListenEmptyPathDeliversNil(t *testing.T) {
	m := newTestMemory(t)
	ch := make(chan any, 1)
	unsub := m.Listen("users", func(v any) { ch <- v })
	defer unsub()
	if v := recv(t, ch); v != nil {
		t.Fatalf("expected nil snapshot, got %v", v)
	}
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	ch := make(chan any, 8)
	unsub := m.Listen("appointments", func(v any) { ch <- v })
	recv(t, ch)

	unsub()
	unsub()
	m.Write(ctx, "appointments/a1", map[string]any{"status": "pending"})
	expectNone(t, ch)

	if n := m.hub.count(); n != 0 {
		t.Fatalf("expected no listeners, got %d", n)
	}
}

func TestMemory_ListenQuery(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	ch := make(chan []Entry, 8)
	unsub := m.ListenQuery("appointments", Query{OrderBy: "doctorId", EqualTo: "D1"}, func(es []Entry) { ch <- es })
	defer unsub()

	if es := recv(t, ch); es == nil || len(es) != 0 {
		t.Fatalf("expected empty initial result, got %#v", es)
	}

	m.Write(ctx, "appointments/a1", map[string]any{"doctorId": "D2"})
	expectNone(t, ch)

	m.Write(ctx, "appointments/a2", map[string]any{"doctorId": "D1"})
	es := recv(t, ch)
	if len(es) != 1 || es[0].Key != "a2" {
		t.Fatalf("unexpected entries %v", es)
	}
}

func TestMemory_NestedListenerSeesParentWrites(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	ch := make(chan any, 8)
	unsub := m.Listen("appointments/a1/messages", func(v any) { ch <- v })
	defer unsub()
	recv(t, ch)

	m.Write(ctx, "appointments/a1", map[string]any{
		"status":   "pending",
		"messages": map[string]any{"m1": map[string]any{"message": "Bonjour"}},
	})
	v := recv(t, ch).(map[string]any)
	if len(v) != 1 {
		t.Fatalf("expected one message, got %v", v)
	}

	m.Delete(ctx, "appointments/a1")
	if v := recv(t, ch); v != nil {
		t.Fatalf("expected nil after delete, got %v", v)
	}
}

func TestMemory_ListenerPanicIsContained(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	calls := make(chan struct{}, 4)
	unsub := m.Listen("doctors", func(any) {
		calls <- struct{}{}
		panic("boom")
	})
	defer unsub()
	recv(t, calls)

	m.Write(ctx, "doctors/d1", map[string]any{"name": "Dr A"})
	recv(t, calls)
}
