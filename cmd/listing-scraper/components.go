package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
	"github.com/Sriram-PR/listing-scraper/pkg/fetch"
	"github.com/Sriram-PR/listing-scraper/pkg/jobs"
	"github.com/Sriram-PR/listing-scraper/pkg/queue"
	"github.com/Sriram-PR/listing-scraper/pkg/scraper"
	"github.com/Sriram-PR/listing-scraper/pkg/storage"
)

// openStore opens the configured backend. Postgres schemas are migrated on open.
func openStore(ctx context.Context, cfg config.StorageConfig, log *logrus.Entry) (storage.Store, error) {
	if cfg.Backend == config.BackendPostgres {
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}
	return storage.NewBadgerStore(cfg.StateDir, log)
}

// startGC runs Badger value-log GC until ctx ends; other backends need none
func startGC(ctx context.Context, store storage.Store, interval time.Duration) {
	if bs, ok := store.(*storage.BadgerStore); ok {
		go bs.RunGC(ctx, interval)
	}
}

// buildFetcher returns the page fetcher for the configured fetch mode and a
// func releasing its resources.
func buildFetcher(cfg *config.AppConfig, log *logrus.Entry) (fetch.PageFetcher, func()) {
	sc := cfg.Scraper
	headers := config.GetEffectiveHeaders(sc)
	userAgent := headers["User-Agent"]

	if sc.FetchMode == config.FetchModeBrowser {
		if sc.RespectRobots {
			log.Warn("respect_robots is not applied in browser fetch mode")
		}
		bf := fetch.NewBrowserFetcher(config.GetEffectiveHeadless(sc), userAgent, sc.FetchTimeout, log)
		return bf, bf.Close
	}

	client := fetch.NewClient(cfg.HTTPClientSettings, log)
	hf := fetch.NewHTTPFetcher(client, headers, sc.FetchTimeout, log)
	if sc.RespectRobots {
		hf = hf.WithRobots(fetch.NewRobotsChecker(client, userAgent, log))
	}
	return hf, func() {}
}

// openQueue connects to Redis when dispatch is redis; otherwise it returns nil
func openQueue(ctx context.Context, cfg *config.AppConfig, log *logrus.Entry) (queue.JobQueue, error) {
	if cfg.Jobs.Dispatch != config.DispatchRedis {
		return nil, nil
	}
	q, err := queue.NewRedisQueue(ctx, cfg.Queue, log)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// runtimeDeps is everything a job-running command needs
type runtimeDeps struct {
	store   storage.Store
	driver  *scraper.Driver
	queue   queue.JobQueue
	manager *jobs.Manager
	closers []func()
}

// buildRuntime wires store, fetcher, driver, queue and manager from cfg
func buildRuntime(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) (*runtimeDeps, error) {
	deps := &runtimeDeps{}

	store, err := openStore(ctx, cfg.Storage, log.WithField("component", "storage"))
	if err != nil {
		return nil, err
	}
	deps.store = store
	deps.closers = append(deps.closers, func() { store.Close() })

	fetcher, closeFetcher := buildFetcher(cfg, log.WithField("component", "fetch"))
	deps.closers = append(deps.closers, closeFetcher)
	deps.driver = scraper.NewDriver(cfg.Scraper, fetcher, store, log.WithField("component", "driver"))

	q, err := openQueue(ctx, cfg, log.WithField("component", "queue"))
	if err != nil {
		deps.close()
		return nil, err
	}
	if q != nil {
		deps.queue = q
		deps.closers = append(deps.closers, func() { q.Close() })
	}

	deps.manager = jobs.NewManager(store, deps.driver, deps.queue, cfg.Jobs.MaxConcurrent, log.WithField("component", "jobs"))
	return deps, nil
}

// close releases resources in reverse order of acquisition
func (d *runtimeDeps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
