package main

import (
	"context"
	"log"

	"docsearch/internal/config"
	"docsearch/internal/events"
	"docsearch/internal/notify"
	"docsearch/internal/redis"
	"docsearch/internal/search"
	"docsearch/internal/service/archive"
	"docsearch/internal/tracker"
	"docsearch/internal/transport"
)

// app holds the coordinators shared by every command.
type app struct {
	cfg      *config.Config
	client   *transport.Client
	bus      *events.Bus
	tracker  *tracker.Tracker
	feed     *notify.Synchronizer
	search   *search.Coordinator
	archive  *archive.Service
	rdb      *redis.Client
	detach   func()
	cancelFn context.CancelFunc
}

func loadConfig(path, apiOverride string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if apiOverride != "" {
		cfg.APIBaseURL = apiOverride
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) *app {
	ctx, cancel := context.WithCancel(ctx)
	client := transport.New(cfg.APIBaseURL, cfg.RequestTimeout())
	bus := events.NewBus(cfg.EventHistory)
	jobs := tracker.New(client, bus, tracker.Config{
		Interval:    cfg.PollInterval(),
		MaxAttempts: cfg.MaxPollAttempts,
	})

	a := &app{
		cfg:      cfg,
		client:   client,
		bus:      bus,
		tracker:  jobs,
		feed:     notify.New(client, bus, cfg.NotificationInterval(), nil),
		search:   search.NewCoordinator(client, bus, cfg.QueryMinimum()),
		archive:  archive.New(client, jobs, bus),
		cancelFn: cancel,
	}
	if cfg.RedisEnabled() {
		a.startRelay(ctx)
	}
	return a
}

// startRelay mirrors bus events through redis. A broker that cannot be
// reached only disables the relay.
func (a *app) startRelay(ctx context.Context) {
	rdb, err := redis.NewRedisClient(a.cfg)
	if err != nil {
		log.Printf("event relay disabled: %v", err)
		return
	}
	channel := a.cfg.Redis.Channel
	if channel == "" {
		channel = config.DefaultRedisEventTopic
	}
	relay := events.NewRelay(rdb, channel)
	if err := relay.Listen(ctx, a.bus); err != nil {
		log.Printf("event relay disabled: %v", err)
		rdb.Close()
		return
	}
	a.rdb = rdb
	a.detach = relay.Attach(a.bus)
	log.Printf("event relay on %s as %s", channel, relay.Origin())
}

func (a *app) close() {
	a.feed.Stop()
	a.tracker.Stop()
	a.archive.Close()
	if a.detach != nil {
		a.detach()
	}
	a.cancelFn()
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
}
