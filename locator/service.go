// Package locator answers device location and assistance requests through a shared
// resolution cache, calling the third-party API at most once per cache key.
package locator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"encore.dev/rlog"
	"encore.dev/storage/sqldb"

	"encore.app/locator/queue"
	"encore.app/locator/resolution"
	"encore.app/locator/resolver"
	"encore.app/locator/resolver/nrfcloud"
	"encore.app/locator/store"
	resolutionwf "encore.app/locator/workflow"
)

var locatorDB = sqldb.NewDatabase("locator", sqldb.DatabaseConfig{
	Migrations: "./db/migrations",
})

var secrets struct {
	NRFCloudTeamID     string
	NRFCloudServiceKey string
}

var validate = validator.New()

//encore:service
type Service struct {
	queue      queue.Enqueuer
	cache      store.Cache
	dispatcher *resolution.Dispatcher
	cfg        resolution.Config
	now        func() time.Time

	// background loops started by initService; stopped by Shutdown
	stop     context.CancelFunc
	closers  []func()
	temporal client.Client
}

func initService() (*Service, error) {
	engineCfg := cfg.engineConfig()
	pool := sqldb.Driver(locatorDB)

	api, err := nrfcloud.NewClient(nrfcloud.Config{
		BaseURL:           cfg.APIBaseURL,
		TeamID:            secrets.NRFCloudTeamID,
		ServiceKey:        secrets.NRFCloudServiceKey,
		RequestsPerSecond: float64(cfg.APIRequestsPerSecond),
	})
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}
	engines := resolver.NewRegistry(api.Engines()...)

	ctx, stop := context.WithCancel(context.Background())
	s := &Service{cfg: engineCfg, now: time.Now, stop: stop}

	s.cache, err = s.newCache(ctx, pool)
	if err != nil {
		s.Shutdown(ctx)
		return nil, err
	}

	starter, err := s.newStarter(engines)
	if err != nil {
		s.Shutdown(ctx)
		return nil, err
	}
	s.dispatcher = resolution.NewDispatcher(s.cache, engines, starter, topicNotifier{topic: DeviceResponses}, engineCfg)

	switch cfg.QueueBackend {
	case "postgres":
		q := queue.NewPostgres(pool, cfg.requeueDelay(), cfg.queueRetention())
		s.queue = q
		w := resolution.NewWorker(q, s.dispatcher, 0, 0)
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				rlog.Error("queue worker stopped", "error", err)
			}
		}()
	default:
		s.queue = queue.NewTopic(DeviceRequests)
	}

	rlog.Info("locator service initialized",
		"cache", cfg.CacheBackend, "queue", cfg.QueueBackend, "orchestrator", cfg.Orchestrator, "bin_width", engineCfg.BinWidth)
	return s, nil
}

func (s *Service) newCache(ctx context.Context, pool *pgxpool.Pool) (store.Cache, error) {
	var shared store.Cache
	switch cfg.CacheBackend {
	case "redis":
		shared = store.NewKeyspaceStore(store.StructEntries{Keyspace: store.ResolutionEntries})
	default:
		pg := store.NewPostgres(pool)
		shared = pg
		go purgeLoop(ctx, pg, time.Hour)
	}

	if !cfg.L1CacheEnabled {
		return shared, nil
	}
	tiered, err := store.NewTiered(ctx, shared, s.cfg.ResolvedTTL, cfg.L1CacheMaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("init l1 cache: %w", err)
	}
	s.closers = append(s.closers, func() {
		if err := tiered.Close(); err != nil {
			rlog.Warn("failed to close l1 cache", "error", err)
		}
	})
	return tiered, nil
}

func (s *Service) newStarter(engines *resolver.Registry) (resolution.Starter, error) {
	if cfg.Orchestrator != "temporal" {
		local := resolution.NewLocalStarter(resolution.NewWorkflow(s.cache, engines, s.cfg))
		s.closers = append(s.closers, local.Close)
		return local, nil
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("create temporal client: %w", err)
	}
	s.temporal = c

	resolutionwf.SetActivityDependencies(s.cache, engines, s.cfg)
	w := worker.New(c, resolutionwf.TaskQueue, worker.Options{})
	w.RegisterWorkflow(resolutionwf.Resolution)
	w.RegisterActivity(resolutionwf.FetchCacheActivity)
	w.RegisterActivity(resolutionwf.ClaimActivity)
	w.RegisterActivity(resolutionwf.ResolveActivity)
	w.RegisterActivity(resolutionwf.PersistResolvedActivity)
	w.RegisterActivity(resolutionwf.PersistUnresolvedActivity)
	if err := w.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("start temporal worker: %w", err)
	}
	s.closers = append(s.closers, w.Stop)

	return resolutionwf.NewTemporalStarter(c, resolutionwf.TaskQueue, s.cfg.WorkflowTimeout), nil
}

// purgeLoop deletes expired rows so the resolution table does not grow without bound.
func purgeLoop(ctx context.Context, pg *store.Postgres, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.PurgeExpired(ctx)
			if err != nil {
				rlog.Warn("failed to purge expired resolutions", "error", err)
				continue
			}
			rlog.Debug("purged expired resolutions", "count", n)
		}
	}
}

// Shutdown stops everything initService started.
func (s *Service) Shutdown(force context.Context) {
	if s.stop != nil {
		s.stop()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	if s.temporal != nil {
		s.temporal.Close()
	}
}
