// Package admin processes operator-originated text commands arriving over
// the webhook channel. It enforces the single fixed operator identity, runs
// a two-phase confirm/expire protocol for destructive commands, and mutates
// the state repository. Pending confirmations live in process memory only;
// a restart drops them and the operator re-issues the command.
package admin

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/tidepool/internal/logfields"
	"git.home.luguber.info/inful/tidepool/internal/metrics"
	"git.home.luguber.info/inful/tidepool/internal/notify"
	"git.home.luguber.info/inful/tidepool/internal/pool"
	"git.home.luguber.info/inful/tidepool/internal/state"
	"git.home.luguber.info/inful/tidepool/internal/store"
)

const (
	// ConfirmToken is the literal reply that executes a pending destructive command.
	ConfirmToken = "CONFIRM"
	// ConfirmTTL is how long a pending confirmation stays valid.
	ConfirmTTL = 60 * time.Second
)

// Update is one inbound message from the admin channel.
type Update struct {
	ChatID string
	Text   string
}

// pendingConfirmation is a transient, in-memory record keyed by chat identity.
type pendingConfirmation struct {
	command   string
	expiresAt time.Time
}

// Processor is the admin command state machine.
type Processor struct {
	operatorMu     sync.RWMutex
	operatorChatID string

	repo     *state.Repository
	store    store.Store
	notifier notify.Notifier
	limiter  *pool.AttemptLimiter
	recorder metrics.Recorder
	logger   *slog.Logger
	printer  *message.Printer

	mu      sync.Mutex
	pending map[string]pendingConfirmation

	// now is injectable for confirmation-expiry tests.
	now func() time.Time
}

// NewProcessor assembles the admin command processor. limiter and recorder may be nil.
func NewProcessor(operatorChatID string, repo *state.Repository, st store.Store, notifier notify.Notifier, limiter *pool.AttemptLimiter, recorder metrics.Recorder, logger *slog.Logger) *Processor {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		operatorChatID: operatorChatID,
		repo:           repo,
		store:          st,
		notifier:       notifier,
		limiter:        limiter,
		recorder:       recorder,
		logger:         logger,
		printer:        message.NewPrinter(language.English),
		pending:        make(map[string]pendingConfirmation),
		now:            time.Now,
	}
}

// SetOperator replaces the operator chat identity. Used on config reload.
func (p *Processor) SetOperator(chatID string) {
	p.operatorMu.Lock()
	p.operatorChatID = chatID
	p.operatorMu.Unlock()
}

func (p *Processor) operator() string {
	p.operatorMu.RLock()
	defer p.operatorMu.RUnlock()
	return p.operatorChatID
}

// HandleUpdate processes one inbound admin message. Non-operator senders
// are logged and dropped without any response or state change.
func (p *Processor) HandleUpdate(ctx context.Context, u Update) {
	if u.ChatID != p.operator() {
		p.logger.Warn("dropping message from non-operator sender", logfields.ChatID(u.ChatID))
		if err := p.store.AppendLog(ctx, "unauthorized", u.ChatID); err != nil {
			p.logger.Error("append unauthorized log failed", logfields.Error(err))
		}
		return
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		return
	}

	if text == ConfirmToken {
		p.handleConfirm(ctx, u.ChatID)
		return
	}

	command, argument := parseCommand(text)
	p.recorder.IncCommand(command)
	if err := p.store.AppendLog(ctx, "command", text); err != nil {
		p.logger.Error("append command log failed", logfields.Error(err))
	}
	p.logger.Info("admin command", logfields.ChatID(u.ChatID), logfields.Command(command))

	p.dispatch(ctx, u.ChatID, command, argument)
}

// parseCommand splits a message into its case-insensitive command token and
// trimmed argument remainder.
func parseCommand(text string) (command, argument string) {
	parts := strings.SplitN(text, " ", 2)
	command = strings.ToLower(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		argument = strings.TrimSpace(parts[1])
	}
	return command, argument
}

// handleConfirm consumes a pending confirmation for the chat, if any.
func (p *Processor) handleConfirm(ctx context.Context, chatID string) {
	p.mu.Lock()
	pc, ok := p.pending[chatID]
	if ok {
		delete(p.pending, chatID)
	}
	now := p.now()
	p.mu.Unlock()

	if !ok {
		p.reply("Nothing pending to confirm.")
		return
	}
	if now.After(pc.expiresAt) {
		p.logger.Info("confirmation expired", logfields.ChatID(chatID), logfields.Command(pc.command))
		p.reply("Confirmation expired. Re-issue the command if you still want it.")
		return
	}

	p.executeDestructive(ctx, pc.command)
}

// requestConfirmation arms the two-phase protocol for a destructive command.
// A newer pending confirmation for the same chat overwrites the old one.
func (p *Processor) requestConfirmation(chatID, command, prompt string) {
	p.mu.Lock()
	p.pending[chatID] = pendingConfirmation{
		command:   command,
		expiresAt: p.now().Add(ConfirmTTL),
	}
	p.mu.Unlock()

	p.reply(prompt)
}

// executeDestructive runs a confirmed destructive command.
func (p *Processor) executeDestructive(ctx context.Context, command string) {
	switch command {
	case "reset":
		if err := p.repo.Reset(ctx); err != nil {
			p.logger.Error("reset failed", logfields.Error(err))
			p.reply("Reset failed. Check the logs.")
			return
		}
		if p.limiter != nil {
			p.limiter.Reset()
		}
		if err := p.store.AppendLog(ctx, "reset", "pool reset by operator"); err != nil {
			p.logger.Error("append reset log failed", logfields.Error(err))
		}
		p.reply("The tide pool has been reset. Count zeroed, clicks cleared.")
	default:
		p.logger.Error("unknown destructive command", logfields.Command(command))
	}
}

func (p *Processor) reply(text string) {
	p.notifier.Notify(text)
}
