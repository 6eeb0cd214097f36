package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func offer(ch chan string) func(string) {
	return func(p string) {
		select {
		case ch <- p:
		default:
		}
	}
}

func TestRedisFeedBetweenInstances(t *testing.T) {
	rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewRedisFeed(rdb, zerolog.Nop())
	b := NewRedisFeed(rdb, zerolog.Nop())
	seenByA := make(chan string, 4)
	seenByB := make(chan string, 4)
	go a.Run(ctx, offer(seenByA))
	go b.Run(ctx, offer(seenByB))

	// Subscriptions are asynchronous; publish until b hears it.
	deadline := time.After(5 * time.Second)
	for got := ""; got != "doctors/D1"; {
		if err := a.Publish(ctx, "doctors/D1"); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case got = <-seenByB:
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for the remote notification")
		}
	}
	expectNone(t, seenByA)
}

func TestRedisFeedWakesRemoteListeners(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	writer := NewRedisFeed(rdb, zerolog.Nop())
	reader := NewMemory(zerolog.Nop(), WithFeed(NewRedisFeed(rdb, zerolog.Nop())))
	t.Cleanup(func() { reader.Close() })

	ch := make(chan any, 8)
	unsub := reader.Listen("doctors", func(v any) { ch <- v })
	defer unsub()
	if v := recv(t, ch); v != nil {
		t.Fatalf("expected an empty first snapshot, got %v", v)
	}

	// The reader holds its own tree; writing there directly and announcing
	// it from another origin must refresh the listener.
	reader.mu.Lock()
	reader.root["doctors"] = map[string]any{"D1": map[string]any{"name": "Dr A"}}
	reader.mu.Unlock()

	deadline := time.After(5 * time.Second)
	for {
		if err := writer.Publish(ctx, "doctors/D1"); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case v := <-ch:
			if v == nil {
				t.Fatal("expected the refreshed snapshot")
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for the listener")
		}
	}
}
