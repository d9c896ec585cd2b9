// Package daemon wires the tide pool components together and manages
// their lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/tidepool/internal/admin"
	"git.home.luguber.info/inful/tidepool/internal/config"
	"git.home.luguber.info/inful/tidepool/internal/detector"
	"git.home.luguber.info/inful/tidepool/internal/metrics"
	"git.home.luguber.info/inful/tidepool/internal/milestone"
	"git.home.luguber.info/inful/tidepool/internal/notify"
	"git.home.luguber.info/inful/tidepool/internal/pool"
	"git.home.luguber.info/inful/tidepool/internal/server/handlers"
	"git.home.luguber.info/inful/tidepool/internal/server/httpserver"
	"git.home.luguber.info/inful/tidepool/internal/state"
	"git.home.luguber.info/inful/tidepool/internal/store"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Daemon owns all long-lived components of the tide pool service.
type Daemon struct {
	config         *config.Config
	configFilePath string
	logger         *slog.Logger
	status         atomic.Value // Status
	startTime      time.Time
	mu             sync.Mutex

	store         *store.SQLiteStore
	repo          *state.Repository
	dispatcher    *notify.Dispatcher
	natsSink      *notify.NATSSink
	limiter       *pool.AttemptLimiter
	gate          *pool.Gate
	processor     *admin.Processor
	detector      *detector.Detector
	httpServer    *httpserver.Server
	configWatcher *config.Watcher
	recorder      *metrics.PrometheusRecorder
	registry      *prometheus.Registry
}

// New creates a daemon from configuration. Nothing starts until Start.
func New(cfg *config.Config, configFilePath string, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		config:         cfg,
		configFilePath: configFilePath,
		logger:         logger,
	}
	d.status.Store(StatusStopped)

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	d.store = st
	d.repo = state.NewRepository(st, cfg.Pool.DefaultTarget)

	d.registry = prometheus.NewRegistry()
	d.recorder = metrics.NewPrometheusRecorder(d.registry)

	sink, err := d.buildSink()
	if err != nil {
		st.Close()
		return nil, err
	}
	d.dispatcher = notify.NewDispatcher(sink, logger)

	evaluator := milestone.NewEvaluator(d.repo, d.dispatcher, logger)
	d.limiter = pool.NewAttemptLimiter(pool.ClickWindow)
	d.gate = pool.NewGate(d.repo, st, evaluator, d.limiter, d.recorder, logger)

	d.processor = admin.NewProcessor(cfg.Operator.ChatID, d.repo, st, d.dispatcher, d.limiter, d.recorder, logger)

	det, err := detector.New(d.repo, st, d.dispatcher, d.recorder, logger, cfg.Detector.PeriodDuration())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create stall detector: %w", err)
	}
	d.detector = det

	api := handlers.NewAPIHandlers(d.repo, st)
	d.httpServer = httpserver.New(cfg.Server.Addr, httpserver.Handlers{
		API:        api,
		Ping:       api,
		Click:      handlers.NewClickHandlers(d.gate),
		Webhook:    handlers.NewWebhookHandlers(d.processor, logger),
		StatusPage: handlers.NewStatusPageHandlers(d.repo, logger),
	}, logger,
		httpserver.WithMaxConns(cfg.Server.MaxConns),
		httpserver.WithMetricsRegistry(d.registry),
	)

	if configFilePath != "" {
		watcher, err := config.NewWatcher(configFilePath, d, logger)
		if err != nil {
			logger.Error("failed to create config watcher", "error", err)
		} else {
			d.configWatcher = watcher
		}
	}

	return d, nil
}

// buildSink assembles the notification sink chain from configuration.
func (d *Daemon) buildSink() (notify.Sink, error) {
	telegram := notify.NewTelegramSink(d.config.Telegram.Token, d.config.Telegram.ChatID, d.config.Telegram.APIBaseURL)
	if !d.config.NATS.Enabled {
		return telegram, nil
	}

	nats, err := notify.NewNATSSink(d.config.NATS.URL, d.config.NATS.Subject)
	if err != nil {
		// The pool must keep counting even when the mirror is down.
		d.logger.Error("failed to connect NATS sink, continuing without it", "error", err)
		return telegram, nil
	}
	d.natsSink = nats
	return notify.MultiSink{telegram, nats}, nil
}

// Start brings up all components. It does not block.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.GetStatus() != StatusStopped {
		return fmt.Errorf("daemon is not in stopped state: %s", d.GetStatus())
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	d.logger.Info("starting tidepool daemon")

	if err := d.repo.Bootstrap(ctx); err != nil {
		d.status.Store(StatusError)
		return fmt.Errorf("failed to bootstrap state: %w", err)
	}

	if err := d.detector.Start(); err != nil {
		d.status.Store(StatusError)
		return fmt.Errorf("failed to start stall detector: %w", err)
	}

	if err := d.httpServer.Start(ctx); err != nil {
		d.status.Store(StatusError)
		_ = d.detector.Stop()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if d.configWatcher != nil {
		if err := d.configWatcher.Start(ctx); err != nil {
			d.logger.Error("failed to start config watcher", "error", err)
		}
	}

	d.status.Store(StatusRunning)
	d.logger.Info("tidepool daemon started",
		"addr", d.config.Server.Addr,
		"store_path", d.config.Store.Path,
		"detector_period", d.config.Detector.Period)
	return nil
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.GetStatus()
	if current == StatusStopped || current == StatusStopping {
		return nil
	}
	d.status.Store(StatusStopping)
	d.logger.Info("stopping tidepool daemon")

	if d.configWatcher != nil {
		d.configWatcher.Stop()
	}

	if err := d.httpServer.Stop(ctx); err != nil {
		d.logger.Error("failed to stop HTTP server", "error", err)
	}

	if err := d.detector.Stop(); err != nil {
		d.logger.Error("failed to stop stall detector", "error", err)
	}

	// Drain queued notifications before closing downstream connections.
	d.dispatcher.Stop()
	if d.natsSink != nil {
		d.natsSink.Close()
	}

	if err := d.store.Close(); err != nil {
		d.logger.Error("failed to close store", "error", err)
	}

	d.status.Store(StatusStopped)
	d.logger.Info("tidepool daemon stopped", "uptime", time.Since(d.startTime))
	return nil
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// ReloadConfig applies a new configuration. Fields that require a
// restart (listener address, store path, detector period) are reported
// and left unchanged.
func (d *Daemon) ReloadConfig(_ context.Context, newCfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.config
	if newCfg.Server.Addr != old.Server.Addr {
		d.logger.Warn("server.addr change requires restart", "current", old.Server.Addr, "new", newCfg.Server.Addr)
	}
	if newCfg.Store.Path != old.Store.Path {
		d.logger.Warn("store.path change requires restart", "current", old.Store.Path, "new", newCfg.Store.Path)
	}
	if newCfg.Detector.Period != old.Detector.Period {
		d.logger.Warn("detector.period change requires restart", "current", old.Detector.Period, "new", newCfg.Detector.Period)
	}

	if newCfg.Operator.ChatID != old.Operator.ChatID {
		d.processor.SetOperator(newCfg.Operator.ChatID)
		d.logger.Info("operator chat updated")
	}

	d.config = newCfg
	return nil
}
