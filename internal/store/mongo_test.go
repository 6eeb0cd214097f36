package store

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newTestMongo connects to MONGO_URI and returns a store over a throwaway
// database, dropped when the test ends.
func newTestMongo(t *testing.T) *Mongo {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
	db := client.Database("tabib_test_" + uuid.NewString()[:8])
	m := NewMongo(db, zerolog.Nop())
	t.Cleanup(func() {
		m.Close()
		db.Drop(context.Background())
		client.Disconnect(context.Background())
	})
	return m
}

func TestMongoNestedUpdateAndUnset(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()

	err := m.Write(ctx, "doctors/D1", map[string]any{
		"name":         "Dr A",
		"workingHours": map[string]any{"monday": map[string]any{"enabled": false, "from": "09:00"}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	err = m.Update(ctx, "doctors/D1", map[string]any{
		"workingHours/monday/enabled": true,
		"city":                        "Rabat",
		"name":                        nil,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	v, err := m.Read(ctx, "doctors/D1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := map[string]any{
		"city":         "Rabat",
		"workingHours": map[string]any{"monday": map[string]any{"enabled": true, "from": "09:00"}},
	}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("read %v, want %v", v, want)
	}
	if v, _ := m.Read(ctx, "doctors/D1/workingHours/monday/from"); v != "09:00" {
		t.Fatalf("nested read %v", v)
	}

	if err := m.Update(ctx, "doctors/D1", map[string]any{"city": nil, "workingHours": nil}); err != nil {
		t.Fatalf("unset all: %v", err)
	}
	if v, _ := m.Read(ctx, "doctors/D1"); v != nil {
		t.Fatalf("expected the emptied document to be gone, got %v", v)
	}
}

func TestMongoCollectionWrite(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()

	m.Write(ctx, "users/u1", map[string]any{"name": "Old"})
	err := m.Write(ctx, "users", map[string]any{
		"u2": map[string]any{"name": "Amina"},
		"u3": map[string]any{"name": "Karim"},
	})
	if err != nil {
		t.Fatalf("write collection: %v", err)
	}
	v, _ := m.Read(ctx, "users")
	keys := make([]string, 0)
	for _, e := range Entries(v) {
		keys = append(keys, e.Key)
	}
	if !reflect.DeepEqual(keys, []string{"u2", "u3"}) {
		t.Fatalf("expected the collection to be replaced, got %v", keys)
	}

	if err := m.Write(ctx, "users/u2", "scalar"); err == nil {
		t.Fatal("expected a scalar document to be refused")
	}
	if _, err := m.Read(ctx, "_accounts"); err == nil {
		t.Fatal("expected reserved collections to be refused")
	}
	if err := m.Write(ctx, "", map[string]any{}); !errors.Is(err, ErrRootWrite) {
		t.Fatalf("expected ErrRootWrite, got %v", err)
	}
}

func TestMongoQueryMatchesEvalQuery(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()

	appts := map[string]any{
		"a1": map[string]any{"doctorId": "D1", "date": "2025-03-12"},
		"a2": map[string]any{"doctorId": "D2", "date": "2025-03-10"},
		"a3": map[string]any{"doctorId": "D1", "date": "2025-03-11"},
		"a4": map[string]any{"doctorId": "D1", "date": "2025-03-11"},
		"a5": map[string]any{"date": "2025-03-09"},
	}
	if err := m.Write(ctx, "appointments", appts); err != nil {
		t.Fatalf("write: %v", err)
	}
	local, err := normalize(appts)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	tests := []struct {
		name string
		q    Query
	}{
		{"by key", Query{}},
		{"ordered", Query{OrderBy: "date"}},
		{"ordered with limit", Query{OrderBy: "date", Limit: 3}},
		{"equal to", Query{OrderBy: "doctorId", EqualTo: "D1"}},
		{"equal to with limit", Query{OrderBy: "doctorId", EqualTo: "D1", Limit: 2}},
		{"no match", Query{OrderBy: "doctorId", EqualTo: "D9"}},
	}
	for _, tt := range tests {
		got, err := m.Query(ctx, "appointments", tt.q)
		if err != nil {
			t.Fatalf("%s: query: %v", tt.name, err)
		}
		want, err := evalQuery(local, tt.q)
		if err != nil {
			t.Fatalf("%s: eval: %v", tt.name, err)
		}
		if !reflect.DeepEqual(entryKeys(got), entryKeys(want)) {
			t.Errorf("%s: mongo %v, memory %v", tt.name, entryKeys(got), entryKeys(want))
		}
	}
}

func entryKeys(es []Entry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Key)
	}
	return out
}
