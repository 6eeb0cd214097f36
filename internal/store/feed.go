package store

import (
	"context"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feed carries change notifications between processes sharing one backend.
// Publish announces a local mutation; Run delivers remote ones until ctx is
// cancelled.
type Feed interface {
	Publish(ctx context.Context, path string) error
	Run(ctx context.Context, notify func(path string)) error
	Close() error
}

// Option configures a backend.
type Option func(*backendOptions)

type backendOptions struct {
	feed Feed
}

// WithFeed attaches a change feed to a backend.
func WithFeed(f Feed) Option {
	return func(o *backendOptions) { o.feed = f }
}

// NewPushID returns a unique, time ordered key. ObjectID hex strings start
// with a big-endian timestamp, so they sort chronologically.
func NewPushID() string {
	return primitive.NewObjectID().Hex()
}

// notifier fans a mutation out to the local hub and to the feed, if any.
type notifier struct {
	hub  *hub
	feed Feed
	log  zerolog.Logger
}

func newNotifier(backend string, log zerolog.Logger, opts []Option) *notifier {
	var o backendOptions
	for _, fn := range opts {
		fn(&o)
	}
	n := &notifier{hub: newHub(backend, log), feed: o.feed, log: log}
	if n.feed != nil {
		go func() {
			if err := n.feed.Run(n.hub.ctx, n.hub.notify); err != nil && n.hub.ctx.Err() == nil {
				n.log.Error().Err(err).Msg("change feed stopped")
			}
		}()
	}
	return n
}

func (n *notifier) changed(ctx context.Context, path string) {
	n.hub.notify(path)
	if n.feed == nil {
		return
	}
	if err := n.feed.Publish(ctx, path); err != nil {
		n.log.Warn().Err(err).Str("path", path).Msg("change feed publish failed")
	}
}

func (n *notifier) close() error {
	n.hub.close()
	if n.feed != nil {
		return n.feed.Close()
	}
	return nil
}
