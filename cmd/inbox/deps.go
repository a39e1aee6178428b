package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/wa-inbox/internal/broadcast"
	"github.com/LeventeLantos/wa-inbox/internal/cache"
	"github.com/LeventeLantos/wa-inbox/internal/config"
	"github.com/LeventeLantos/wa-inbox/internal/repo"
	"github.com/LeventeLantos/wa-inbox/internal/service"
)

const connectTimeout = 10 * time.Second

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.Level()}

	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// deps holds the process-wide connections. Optional services are nil when
// not configured or unreachable at startup.
type deps struct {
	store repo.MessageRepository
	rdb   *redis.Client
	cache cache.ConversationCache
	relay *broadcast.RedisRelay
	amqp  *broadcast.AMQPPublisher
}

func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	store, err := repo.Open(cctx, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d := &deps{store: store}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(cctx).Err(); err != nil {
			slog.Warn("redis unreachable, continuing without cache and relay", "addr", cfg.Redis.Address, "err", err)
			_ = rdb.Close()
		} else {
			d.rdb = rdb
			d.cache = cache.NewRedisCache(rdb, cfg.Redis.TTL())
			d.relay = broadcast.NewRedisRelay(rdb)
		}
	}

	if cfg.Broker.URL != "" {
		pub, err := broadcast.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			slog.Warn("amqp unreachable, events stay local", "exchange", cfg.Broker.Exchange, "err", err)
		} else {
			d.amqp = pub
		}
	}

	slog.Info("dependencies ready",
		"store", fmt.Sprintf("%T", store),
		"redis", d.rdb != nil,
		"amqp", d.amqp != nil,
	)
	return d, nil
}

// sinks picks where published events go. With the Redis relay every
// instance, this one included, delivers to its local clients from the
// subscription, so local is only used directly without Redis.
func (d *deps) sinks(local broadcast.Sink) []broadcast.Sink {
	var out []broadcast.Sink
	switch {
	case d.relay != nil:
		out = append(out, d.relay)
	case local != nil:
		out = append(out, local)
	}
	if d.amqp != nil {
		out = append(out, d.amqp)
	}
	return out
}

// writeHooks returns the hooks every write runs: cache invalidation when a
// cache is configured, then publishing when pub is set.
func (d *deps) writeHooks(pub service.Publisher) []service.StoredHook {
	var hooks []service.StoredHook
	if d.cache != nil {
		hooks = append(hooks, service.InvalidateHook(d.cache))
	}
	if pub != nil {
		hooks = append(hooks, service.BroadcastHook(pub))
	}
	return hooks
}

func (d *deps) Close() {
	if d.amqp != nil {
		_ = d.amqp.Close()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if err := d.store.Close(); err != nil {
		slog.Warn("store close failed", "err", err)
	}
}
