// Package milestone derives notifications from a post-increment counter
// value: every-tenth progress reports with percentage, the operator-blessed
// click index, and the one-way launch transition. Rules are evaluated
// independently; a single click can fire more than one.
package milestone

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/tidepool/internal/logfields"
	"git.home.luguber.info/inful/tidepool/internal/notify"
	"git.home.luguber.info/inful/tidepool/internal/state"
)

// Evaluator turns accepted clicks into milestone notifications.
type Evaluator struct {
	repo     *state.Repository
	notifier notify.Notifier
	printer  *message.Printer
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator over the given repository and channel.
func NewEvaluator(repo *state.Repository, notifier notify.Notifier, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		repo:     repo,
		notifier: notifier,
		printer:  message.NewPrinter(language.English),
		logger:   logger,
	}
}

// Evaluate runs all milestone rules for click n. Store read failures are
// logged and skip the affected rule; a milestone miss never fails the click
// that triggered it.
func (e *Evaluator) Evaluate(ctx context.Context, n int64) {
	target, err := e.repo.Target(ctx)
	if err != nil {
		e.logger.Error("milestone: read target failed", logfields.Error(err))
		return
	}

	// Progress fires on every tenth click and on the exact half,
	// three-quarter, and ten-remaining marks (those are not always
	// multiples of ten, e.g. 75 of 100).
	if n%10 == 0 || supplemental(n, target) != "" {
		e.notifier.Notify(e.progressText(n, target))
	}

	if blessed, ok, err := e.repo.Blessed(ctx); err != nil {
		e.logger.Error("milestone: read blessed failed", logfields.Error(err))
	} else if ok && blessed == n {
		e.notifier.Notify(e.printer.Sprintf("Blessed click! Click #%d just landed in the tide pool.", n))
	}

	if n >= target {
		won, err := e.repo.Launch(ctx)
		if err != nil {
			e.logger.Error("milestone: launch transition failed", logfields.Error(err))
			return
		}
		// Only the conditional-update winner announces the launch, so
		// concurrent clicks crossing the target emit exactly one.
		if won {
			e.notifier.Notify(e.printer.Sprintf("LAUNCH! The tide pool hit %d of %d. We are live.", n, target))
		}
	}
}

// progressText renders the progress report, with supplemental text at the
// half, three-quarter, and ten-remaining marks. Each mark is an exact
// equality on a monotone counter, so each fires at most once.
func (e *Evaluator) progressText(n, target int64) string {
	pct := int64(math.Round(float64(n) * 100 / float64(target)))
	return e.printer.Sprintf("Tide check: %d of %d clicks (%d%%).", n, target, pct) + supplemental(n, target)
}

func supplemental(n, target int64) string {
	switch {
	case n == target/2:
		return " Halfway to launch."
	case n == target*3/4:
		return " Three quarters of the way there."
	case n == target-10:
		return " Only ten clicks to go."
	default:
		return ""
	}
}
