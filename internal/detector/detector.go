// Package detector runs the idle-stall check: a recurring background job
// that notifies the operator when no clicks landed in the trailing window
// before launch. Observe-and-notify only; it never mutates state, and a
// transient store outage never crashes the loop.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/tidepool/internal/logfields"
	"git.home.luguber.info/inful/tidepool/internal/metrics"
	"git.home.luguber.info/inful/tidepool/internal/notify"
	"git.home.luguber.info/inful/tidepool/internal/state"
	"git.home.luguber.info/inful/tidepool/internal/store"
)

const (
	// DefaultPeriod is how often the check runs; the stall window matches it.
	DefaultPeriod = 3 * time.Hour

	checkTimeout = 10 * time.Second
)

// Detector wraps a gocron scheduler around the stall check.
type Detector struct {
	scheduler gocron.Scheduler
	repo      *state.Repository
	store     store.Store
	notifier  notify.Notifier
	recorder  metrics.Recorder
	logger    *slog.Logger
	printer   *message.Printer
	period    time.Duration
}

// New creates a detector instance. period <= 0 means DefaultPeriod.
func New(repo *state.Repository, st store.Store, notifier notify.Notifier, recorder metrics.Recorder, logger *slog.Logger, period time.Duration) (*Detector, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		scheduler: s,
		repo:      repo,
		store:     st,
		notifier:  notifier,
		recorder:  recorder,
		logger:    logger,
		printer:   message.NewPrinter(language.English),
		period:    period,
	}, nil
}

// Start schedules the periodic check and begins the scheduler.
func (d *Detector) Start() error {
	_, err := d.scheduler.NewJob(
		gocron.DurationJob(d.period),
		gocron.NewTask(d.runCheck),
		gocron.WithName("idle-stall-check"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stall check job: %w", err)
	}

	d.logger.Info("Starting idle-stall detector", slog.Duration("period", d.period))
	d.scheduler.Start()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (d *Detector) Stop() error {
	d.logger.Info("Stopping idle-stall detector")
	return d.scheduler.Shutdown()
}

// runCheck is the gocron task. Every failure is swallowed after logging so
// the next cycle still runs.
func (d *Detector) runCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	d.Check(ctx)
}

// Check performs one stall evaluation. Exported for direct use in tests.
func (d *Detector) Check(ctx context.Context) {
	launched, err := d.repo.Launched(ctx)
	if err != nil {
		d.logger.Warn("stall check: read launched failed", logfields.Error(err))
		return
	}
	if launched {
		return
	}

	clicks, err := d.store.CountClicksSince(ctx, d.period)
	if err != nil {
		d.logger.Warn("stall check: count clicks failed", logfields.Error(err))
		return
	}
	if clicks > 0 {
		d.recorder.IncStallCheck(false)
		return
	}

	d.recorder.IncStallCheck(true)

	count, err := d.repo.Count(ctx)
	if err != nil {
		d.logger.Warn("stall check: read count failed", logfields.Error(err))
		return
	}
	target, err := d.repo.Target(ctx)
	if err != nil {
		d.logger.Warn("stall check: read target failed", logfields.Error(err))
		return
	}

	d.logger.Info("tide pool stalled", logfields.Count(count), logfields.Target(target))
	d.notifier.Notify(d.printer.Sprintf(
		"The tide pool has stalled: no clicks in the last %v. Sitting at %d of %d.",
		d.period, count, target))
}
