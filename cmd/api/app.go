package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/tabib-api/internal/auth"
	"github.com/harentsoaR/tabib-api/internal/config"
	"github.com/harentsoaR/tabib-api/internal/services"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// app is the wired set of backends and services.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	db   store.Gateway
	auth *auth.Service
	svc  *services.Service

	mongo *mongo.Client
	redis *redis.Client
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	}

	var accounts auth.AccountStore
	switch cfg.StoreBackend {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		a.mongo = client
		if err := client.Ping(connectCtx, nil); err != nil {
			return nil, fmt.Errorf("ping mongodb: %w", err)
		}
		mdb := client.Database(cfg.MongoDatabase)
		log.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongodb")

		var opts []store.Option
		switch cfg.ChangeFeed {
		case "mongo":
			opts = append(opts, store.WithFeed(store.NewChangeStreamFeed(mdb, log)))
		case "redis":
			opts = append(opts, store.WithFeed(store.NewRedisFeed(a.redis, log)))
		}
		a.db = store.NewMongo(mdb, log, opts...)

		if accounts, err = auth.NewMongoAccounts(ctx, mdb); err != nil {
			return nil, err
		}
	default:
		var opts []store.Option
		if cfg.ChangeFeed == "redis" {
			opts = append(opts, store.WithFeed(store.NewRedisFeed(a.redis, log)))
		}
		a.db = store.NewMemory(log, opts...)
		accounts = auth.NewMemoryAccounts()
		log.Warn().Msg("using the in-memory store, data is lost on restart")
	}

	var sessions auth.SessionStore = auth.NewMemorySessions()
	if a.redis != nil {
		sessions = auth.NewRedisSessions(a.redis)
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL())
	if err != nil {
		return nil, err
	}
	a.auth = auth.NewService(a.db, accounts, sessions, tokens, auth.Options{
		PhoneRegion:      cfg.PhoneRegion,
		MaxLoginAttempts: cfg.MaxLoginTries,
		SessionTTL:       cfg.SessionTTL(),
	}, log)

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.SMSEnabled {
		notifier = services.NewSMSNotifier(cfg.TextbeltAPIKey, log)
	}
	a.svc = services.New(a.db, notifier, cfg.AdminEmailList(), log)

	ok = true
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close store")
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.log.Warn().Err(err).Msg("disconnect mongodb")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
}
