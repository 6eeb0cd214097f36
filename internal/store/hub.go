package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const listenerReadTimeout = 10 * time.Second

// listener owns one subscription. Wake-ups are coalesced through a channel
// of capacity one, so a burst of writes costs at most one extra read.
type listener struct {
	path    string
	read    func(ctx context.Context) (any, error)
	deliver func(any)
	wake    chan struct{}
	cancel  context.CancelFunc

	last      []byte
	delivered bool
}

// hub tracks live listeners for a backend and re-reads their path whenever a
// related path changes.
type hub struct {
	backend string
	log     zerolog.Logger

	mu        sync.RWMutex
	listeners map[*listener]struct{}
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newHub(backend string, log zerolog.Logger) *hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &hub{
		backend:   backend,
		log:       log.With().Str("component", "store.hub").Logger(),
		listeners: make(map[*listener]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (h *hub) add(path string, read func(ctx context.Context) (any, error), deliver func(any)) Unsubscribe {
	ctx, cancel := context.WithCancel(h.ctx)
	l := &listener{
		path:    path,
		read:    read,
		deliver: deliver,
		wake:    make(chan struct{}, 1),
		cancel:  cancel,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return func() {}
	}
	h.listeners[l] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	activeListeners.WithLabelValues(h.backend).Inc()
	l.wake <- struct{}{}
	go h.run(ctx, l)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, l)
			h.mu.Unlock()
			cancel()
		})
	}
}

func (h *hub) run(ctx context.Context, l *listener) {
	defer func() {
		activeListeners.WithLabelValues(h.backend).Dec()
		h.wg.Done()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		rctx, cancel := context.WithTimeout(ctx, listenerReadTimeout)
		v, err := l.read(rctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			h.log.Error().Err(err).Str("path", l.path).Msg("listener read failed")
			v = nil
		}

		b, err := json.Marshal(v)
		if err != nil {
			h.log.Error().Err(err).Str("path", l.path).Msg("listener snapshot not encodable")
			continue
		}
		if l.delivered && bytes.Equal(b, l.last) {
			continue
		}
		l.last, l.delivered = b, true
		h.safeDeliver(l, v)
	}
}

func (h *hub) safeDeliver(l *listener, v any) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("path", l.path).Msg("listener callback panicked")
		}
	}()
	snapshotsDelivered.WithLabelValues(h.backend).Inc()
	l.deliver(v)
}

// notify wakes every listener whose value may have changed because of a
// mutation at path.
func (h *hub) notify(path string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for l := range h.listeners {
		if !related(l.path, path) {
			continue
		}
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.listeners = make(map[*listener]struct{})
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}
