package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Memory keeps the whole tree in process. It backs tests and single
// instance development servers.
type Memory struct {
	mu   sync.RWMutex
	root map[string]any
	*notifier
}

var _ Gateway = (*Memory)(nil)

func NewMemory(log zerolog.Logger, opts ...Option) *Memory {
	return &Memory{
		root:     make(map[string]any),
		notifier: newNotifier("memory", log, opts),
	}
}

func (m *Memory) Read(_ context.Context, path string) (v any, err error) {
	defer func() { observe("memory", "read", err) }()
	_, segs, err := clean(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(segs) == 0 {
		if len(m.root) == 0 {
			return nil, nil
		}
		return deepCopy(m.root), nil
	}
	return deepCopy(child(m.root, segs)), nil
}

func (m *Memory) Write(ctx context.Context, path string, value any) (err error) {
	defer func() { observe("memory", "write", err) }()
	p, segs, err := clean(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return ErrRootWrite
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	setPath(m.root, segs, v)
	m.mu.Unlock()
	m.changed(ctx, p)
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) (err error) {
	defer func() { observe("memory", "update", err) }()
	p, segs, err := clean(path)
	if err != nil {
		return err
	}
	type change struct {
		segs []string
		v    any
	}
	changes := make([]change, 0, len(fields))
	for k, raw := range fields {
		ks, err := Split(k)
		if err != nil {
			return err
		}
		if len(ks) == 0 {
			return ErrInvalidPath
		}
		v, err := normalize(raw)
		if err != nil {
			return err
		}
		full := append(append([]string{}, segs...), ks...)
		changes = append(changes, change{segs: full, v: v})
	}
	if len(changes) == 0 {
		return nil
	}
	m.mu.Lock()
	for _, c := range changes {
		setPath(m.root, c.segs, c.v)
	}
	m.mu.Unlock()
	m.changed(ctx, p)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) (err error) {
	defer func() { observe("memory", "delete", err) }()
	p, segs, err := clean(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return ErrRootWrite
	}
	m.mu.Lock()
	deletePath(m.root, segs)
	m.mu.Unlock()
	m.changed(ctx, p)
	return nil
}

func (m *Memory) Push(ctx context.Context, path string, value any) (string, error) {
	key := NewPushID()
	if err := m.Write(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Query(ctx context.Context, path string, q Query) ([]Entry, error) {
	v, err := m.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return evalQuery(v, q)
}

func (m *Memory) Listen(path string, fn func(any)) Unsubscribe {
	p, _, err := clean(path)
	if err != nil {
		m.log.Error().Err(err).Str("path", path).Msg("listen rejected")
		fn(nil)
		return func() {}
	}
	return m.hub.add(p, func(ctx context.Context) (any, error) {
		return m.Read(ctx, p)
	}, fn)
}

func (m *Memory) ListenQuery(path string, q Query, fn func([]Entry)) Unsubscribe {
	p, _, err := clean(path)
	if err != nil {
		m.log.Error().Err(err).Str("path", path).Msg("listen rejected")
		fn([]Entry{})
		return func() {}
	}
	return m.hub.add(p, func(ctx context.Context) (any, error) {
		return m.Query(ctx, p, q)
	}, entriesCallback(fn))
}

func (m *Memory) Close() error {
	return m.close()
}

func entriesCallback(fn func([]Entry)) func(any) {
	return func(v any) {
		es, _ := v.([]Entry)
		if es == nil {
			es = []Entry{}
		}
		fn(es)
	}
}

func setPath(root map[string]any, segs []string, v any) {
	if v == nil {
		deletePath(root, segs)
		return
	}
	cur := root
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[s] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// deletePath removes the node at segs and any ancestors left empty.
func deletePath(cur map[string]any, segs []string) {
	if len(segs) == 1 {
		delete(cur, segs[0])
		return
	}
	next, ok := cur[segs[0]].(map[string]any)
	if !ok {
		return
	}
	deletePath(next, segs[1:])
	if len(next) == 0 {
		delete(cur, segs[0])
	}
}
