// Package pool implements the click gate: the entry point for public
// increment requests. Anti-spam checks are advisory and may race; the
// counter increment itself is atomic at the store and never loses updates.
package pool

import (
	"context"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/tidepool/internal/foundation/errors"
	"git.home.luguber.info/inful/tidepool/internal/logfields"
	"git.home.luguber.info/inful/tidepool/internal/metrics"
	"git.home.luguber.info/inful/tidepool/internal/milestone"
	"git.home.luguber.info/inful/tidepool/internal/state"
	"git.home.luguber.info/inful/tidepool/internal/store"
)

// ClickWindow is the rolling window for the one-click-per-identity rule.
const ClickWindow = 24 * time.Hour

// ClickResult is the public /click response payload.
type ClickResult struct {
	Count    int64 `json:"count"`
	Target   int64 `json:"target"`
	Launched bool  `json:"launched"`
}

// Gate processes public click requests.
type Gate struct {
	repo       *state.Repository
	store      store.Store
	milestones *milestone.Evaluator
	limiter    *AttemptLimiter
	recorder   metrics.Recorder
	logger     *slog.Logger
}

// NewGate assembles a click gate. recorder may be nil.
func NewGate(repo *state.Repository, st store.Store, ev *milestone.Evaluator, limiter *AttemptLimiter, recorder metrics.Recorder, logger *slog.Logger) *Gate {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		repo:       repo,
		store:      st,
		milestones: ev,
		limiter:    limiter,
		recorder:   recorder,
		logger:     logger,
	}
}

// Limiter exposes the outer attempt limiter so the admin reset flow can
// clear it alongside the click records.
func (g *Gate) Limiter() *AttemptLimiter { return g.limiter }

// Click runs the full gate sequence for one identity. Errors carry the
// classified category that determines the wire response (429/423/503).
func (g *Gate) Click(ctx context.Context, identity string) (ClickResult, error) {
	start := time.Now()
	res, err := g.click(ctx, identity)
	g.recorder.ObserveClickDuration(time.Since(start))
	return res, err
}

func (g *Gate) click(ctx context.Context, identity string) (ClickResult, error) {
	// Outer hard cap on attempts, purely to bound load. Same wire
	// contract as the store-backed duplicate check below.
	if !g.limiter.Allow(identity) {
		g.recorder.IncClick(metrics.OutcomeAlreadyClicked)
		return ClickResult{}, ferrors.AlreadyClickedError("attempt cap reached for identity").
			WithContext("identity", identity).Build()
	}

	// Advisory duplicate check. Two near-simultaneous requests from the
	// same identity can both pass; each still increments for real, so the
	// suppression is best-effort, not a mutual-exclusion lock.
	clicked, err := g.store.HasClickRecord(ctx, identity, ClickWindow)
	if err != nil {
		g.recorder.IncClick(metrics.OutcomeError)
		return ClickResult{}, ferrors.WrapError(err, ferrors.CategoryStore, "duplicate check failed").Build()
	}
	if clicked {
		g.recorder.IncClick(metrics.OutcomeAlreadyClicked)
		return ClickResult{}, ferrors.AlreadyClickedError("identity already clicked within window").
			WithContext("identity", identity).Build()
	}

	locked, err := g.repo.Locked(ctx)
	if err != nil {
		g.recorder.IncClick(metrics.OutcomeError)
		return ClickResult{}, ferrors.WrapError(err, ferrors.CategoryStore, "lock check failed").Build()
	}
	if locked {
		msg, err := g.repo.LockMsg(ctx)
		if err != nil {
			g.logger.Error("read lock_msg failed", logfields.Error(err))
		}
		g.recorder.IncClick(metrics.OutcomeLocked)
		return ClickResult{}, ferrors.LockedError(msg).Build()
	}

	// The one mutation that must be atomic: a lost update here is a
	// correctness bug, not an accepted race.
	n, err := g.repo.IncrementCount(ctx)
	if err != nil {
		g.recorder.IncClick(metrics.OutcomeError)
		return ClickResult{}, ferrors.WrapError(err, ferrors.CategoryStore, "counter increment failed").Build()
	}

	// The increment already counted; record/log failures downstream are
	// logged but never surfaced to the clicker.
	if err := g.store.InsertClickRecord(ctx, identity); err != nil {
		g.logger.Error("insert click record failed", logfields.Identity(identity), logfields.Error(err))
	}
	if err := g.store.AppendLog(ctx, "click", identity); err != nil {
		g.logger.Error("append click log failed", logfields.Error(err))
	}

	g.milestones.Evaluate(ctx, n)

	target, err := g.repo.Target(ctx)
	if err != nil {
		g.logger.Error("read target failed", logfields.Error(err))
		target = state.DefaultTarget
	}

	g.recorder.IncClick(metrics.OutcomeAccepted)
	g.logger.Info("click accepted",
		logfields.Identity(identity),
		logfields.Count(n),
		logfields.Target(target))

	return ClickResult{Count: n, Target: target, Launched: n >= target}, nil
}
