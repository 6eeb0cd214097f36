// Package store is the path addressed JSON document store behind Tabib.
//
// Every location in the tree is named by a slash separated path such as
// "appointments/<id>/messages". Values are plain JSON trees. Listeners
// attached to a path receive the complete value at that path each time
// anything at, above or below it changes.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrRootWrite   = errors.New("cannot mutate the root of the store")
	ErrNotObject   = errors.New("value at path is not an object")
	ErrClosed      = errors.New("store is closed")
)

// Unsubscribe detaches a listener. Calling it more than once is harmless.
type Unsubscribe func()

// Entry is one child of a collection: its key and its value.
type Entry struct {
	Key   string
	Value any
}

// Query selects children of a path, as orderByChild/equalTo/limitToFirst do
// on a hosted realtime database.
type Query struct {
	OrderBy string
	EqualTo any
	Limit   int
}

// Gateway is the set of primitives the access services are written against.
type Gateway interface {
	Read(ctx context.Context, path string) (any, error)
	Write(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Push(ctx context.Context, path string, value any) (string, error)
	Query(ctx context.Context, path string, q Query) ([]Entry, error)
	Listen(path string, fn func(value any)) Unsubscribe
	ListenQuery(path string, q Query, fn func(entries []Entry)) Unsubscribe
	Close() error
}

// Entries turns an object-of-objects snapshot into a key ordered slice. Any
// non object value yields an empty, non-nil slice.
func Entries(value any) []Entry {
	m, ok := value.(map[string]any)
	if !ok {
		return []Entry{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: m[k]})
	}
	return out
}

// normalize converts any Go value into the plain JSON tree representation
// used by the backends and prunes empty objects.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case string, bool, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return prune(out), nil
}

// prune removes empty objects recursively. An absent node and an empty node
// are indistinguishable to readers.
func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, c := range t {
			c = prune(c)
			if c == nil {
				delete(t, k)
				continue
			}
			t[k] = c
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		for i := range t {
			t[i] = prune(t[i])
		}
		return t
	default:
		return v
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = deepCopy(c)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = deepCopy(c)
		}
		return out
	default:
		return v
	}
}

func child(v any, segs []string) any {
	for _, s := range segs {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[s]
	}
	return v
}

// evalQuery applies q to the children of value.
func evalQuery(value any, q Query) ([]Entry, error) {
	eq, err := normalize(q.EqualTo)
	if err != nil {
		return nil, err
	}
	entries := Entries(value)
	if q.OrderBy == "" {
		return limit(entries, q.Limit), nil
	}
	filtered := entries[:0]
	for _, e := range entries {
		f := child(e.Value, []string{q.OrderBy})
		if q.EqualTo != nil && compare(f, eq) != 0 {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		c := compare(child(filtered[i].Value, []string{q.OrderBy}), child(filtered[j].Value, []string{q.OrderBy}))
		if c != 0 {
			return c < 0
		}
		return filtered[i].Key < filtered[j].Key
	})
	return limit(filtered, q.Limit), nil
}

func limit(entries []Entry, n int) []Entry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}

// rank orders value kinds: null < false < true < numbers < strings < objects.
func rank(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 2
		}
		return 1
	case float64, int, int32, int64:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 3:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 4:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	case 5:
		ba, _ := json.Marshal(a)
		bb, _ := json.Marshal(b)
		return bytes.Compare(ba, bb)
	}
	return 0
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}
