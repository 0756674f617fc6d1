// Package app wires the configuration into a running dispatch service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apiallocation "github.com/kilianp07/fleetdispatch/api/allocation"
	apifleet "github.com/kilianp07/fleetdispatch/api/fleet"
	apihistory "github.com/kilianp07/fleetdispatch/api/history"
	"github.com/kilianp07/fleetdispatch/config"
	coreallocation "github.com/kilianp07/fleetdispatch/core/allocation"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	corestore "github.com/kilianp07/fleetdispatch/core/store"
	"github.com/kilianp07/fleetdispatch/infra/history"
	"github.com/kilianp07/fleetdispatch/infra/ingest"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/metrics"
	"github.com/kilianp07/fleetdispatch/infra/notify"
	"github.com/kilianp07/fleetdispatch/infra/store"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
	rootmetrics "github.com/kilianp07/fleetdispatch/metrics"
)

// Service orchestrates the allocation engine and its transport surfaces.
type Service struct {
	Engine *coreallocation.Engine
	Fleet  corestore.FleetStore
	Runs   corestore.HistoryStore

	cfg *config.Config
	bus eventbus.EventBus
	log logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	fleet, err := newFleetStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("fleet store: %w", err)
	}
	runs, err := newHistoryStore(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	engine, err := coreallocation.NewEngine(fleet, runs, sink, bus, logger.New("allocation"))
	if err != nil {
		return nil, fmt.Errorf("allocation engine: %w", err)
	}
	if cfg.MQTT.Enabled {
		notifier, err := notify.NewMQTTNotifier(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		engine.SetNotifier(notifier)
	}

	if cfg.Ingest.LoadOnStart {
		if err := ingest.NewLoader(fleet).LoadAll(context.Background(), cfg.Ingest.Dir); err != nil {
			return nil, fmt.Errorf("csv ingest: %w", err)
		}
		logg.Infof("loaded CSV exports from %s", cfg.Ingest.Dir)
	}

	return &Service{Engine: engine, Fleet: fleet, Runs: runs, cfg: cfg, bus: bus, log: logg}, nil
}

func newFleetStore(cfg config.StoreConfig) (corestore.FleetStore, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Path)
	case "postgres":
		return store.NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown backend %s", cfg.Backend)
	}
}

func newHistoryStore(cfg config.HistoryConfig) (corestore.HistoryStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return history.NewSQLiteStore(cfg.Path)
	case "jsonl":
		if cfg.MaxSizeMB > 0 {
			return history.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return history.NewJSONLStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown backend %s", cfg.Backend)
	}
}

// Mux returns the API routing table.
func (s *Service) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/assign_orders", apiallocation.NewAssignHandler(s.Engine))
	mux.Handle("/api/optimized_schedule", apiallocation.NewScheduleHandler(s.Engine))
	mux.Handle("/api/simulation_history", apihistory.NewHandler(s.Runs, s.cfg.HTTP.APIToken))
	mux.Handle("/api/fleet/", apifleet.NewHandler(s.Fleet))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run starts the HTTP surfaces and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.logEvents(ctx)
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := rootmetrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Mux()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// logEvents mirrors engine events onto the service log until ctx ends.
func (s *Service) logEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.log.Debugw("allocation event", map[string]any{"event": fmt.Sprintf("%T", ev), "detail": ev})
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	err := s.Engine.Close()
	if cerr := s.Fleet.Close(); err == nil {
		err = cerr
	}
	if cerr := s.Runs.Close(); err == nil {
		err = cerr
	}
	return err
}
