package admin

import (
	"context"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/tidepool/internal/logfields"
)

const defaultLockMsg = "The tide pool is locked. Come back later."

// dispatch routes a parsed command. Malformed arguments get a usage reply
// and never mutate state; store failures get a generic failure reply and a
// log entry.
func (p *Processor) dispatch(ctx context.Context, chatID, command, argument string) {
	switch command {
	case "/ping":
		p.cmdPing(ctx)
	case "/count":
		p.cmdCount(ctx)
	case "/status":
		p.cmdStatus(ctx)
	case "/setca":
		p.cmdSetCA(ctx, argument)
	case "/decree":
		p.cmdDecree(ctx, argument)
	case "/cleardecree":
		p.cmdClearDecree(ctx)
	case "/bless":
		p.cmdBless(ctx, argument)
	case "/lockdown":
		p.cmdLockdown(ctx, argument)
	case "/unlock":
		p.cmdUnlock(ctx)
	case "/settarget":
		p.cmdSetTarget(ctx, argument)
	case "/today":
		p.cmdToday(ctx)
	case "/velocity":
		p.cmdVelocity(ctx)
	case "/tidewarning":
		p.cmdTideWarning(ctx, argument)
	case "/cleartidewarning":
		p.cmdClearTideWarning(ctx)
	case "/logs":
		p.cmdLogs(ctx)
	case "/reset":
		p.requestConfirmation(chatID, "reset",
			"This zeroes the count, clears CA, blessed, decree and tide warning, and deletes all click records. Reply CONFIRM within 60 seconds to proceed.")
	case "/help":
		p.cmdHelp()
	default:
		p.reply("Command not recognized. Try /help.")
	}
}

func (p *Processor) storeFailed(what string, err error) {
	p.logger.Error(what+" failed", logfields.Error(err))
	p.reply("That didn't work, the store is unhappy. Try again in a bit.")
}

func (p *Processor) cmdPing(ctx context.Context) {
	if err := p.store.Ping(ctx); err != nil {
		p.reply("pong, but the store is unreachable: " + err.Error())
		return
	}
	p.reply("pong")
}

func (p *Processor) cmdCount(ctx context.Context) {
	count, err := p.repo.Count(ctx)
	if err != nil {
		p.storeFailed("read count", err)
		return
	}
	target, err := p.repo.Target(ctx)
	if err != nil {
		p.storeFailed("read target", err)
		return
	}
	p.reply(p.printer.Sprintf("%d of %d clicks.", count, target))
}

func (p *Processor) cmdStatus(ctx context.Context) {
	snap, err := p.repo.Snapshot(ctx)
	if err != nil {
		p.storeFailed("read snapshot", err)
		return
	}

	var b strings.Builder
	b.WriteString(p.printer.Sprintf("Count: %d / %d\n", snap.Count, snap.Target))
	b.WriteString("Launched: " + strconv.FormatBool(snap.Launched) + "\n")
	b.WriteString("Locked: " + strconv.FormatBool(snap.Locked) + "\n")
	if snap.CA != "" {
		b.WriteString("CA: " + snap.CA + "\n")
	}
	if snap.Blessed != "" {
		b.WriteString("Blessed: " + snap.Blessed + "\n")
	}
	if snap.Decree != "" {
		b.WriteString("Decree: " + snap.Decree + "\n")
	}
	if snap.TideWarning != "" {
		b.WriteString("Tide warning: " + snap.TideWarning + "\n")
	}
	p.reply(strings.TrimRight(b.String(), "\n"))
}

func (p *Processor) cmdSetCA(ctx context.Context, argument string) {
	if argument == "" {
		p.reply("Usage: /setca <address>")
		return
	}
	if err := p.repo.SetCA(ctx, argument); err != nil {
		p.storeFailed("set ca", err)
		return
	}
	p.reply("CA set to " + argument)
}

func (p *Processor) cmdDecree(ctx context.Context, argument string) {
	if argument == "" {
		p.reply("Usage: /decree <message>")
		return
	}
	if err := p.repo.SetDecree(ctx, argument); err != nil {
		p.storeFailed("set decree", err)
		return
	}
	p.reply("Decree posted.")
}

func (p *Processor) cmdClearDecree(ctx context.Context) {
	if err := p.repo.SetDecree(ctx, ""); err != nil {
		p.storeFailed("clear decree", err)
		return
	}
	p.reply("Decree cleared.")
}

func (p *Processor) cmdBless(ctx context.Context, argument string) {
	n, err := strconv.ParseInt(argument, 10, 64)
	if err != nil || n <= 0 {
		p.reply("Usage: /bless <positive click number>")
		return
	}
	if err := p.repo.SetBlessed(ctx, n); err != nil {
		p.storeFailed("set blessed", err)
		return
	}
	p.reply(p.printer.Sprintf("Click #%d is now blessed.", n))
}

func (p *Processor) cmdLockdown(ctx context.Context, argument string) {
	msg := argument
	if msg == "" {
		msg = defaultLockMsg
	}
	if err := p.repo.SetLockdown(ctx, msg); err != nil {
		p.storeFailed("lockdown", err)
		return
	}
	p.reply("Lockdown active: " + msg)
}

func (p *Processor) cmdUnlock(ctx context.Context) {
	if err := p.repo.Unlock(ctx); err != nil {
		p.storeFailed("unlock", err)
		return
	}
	p.reply("Lockdown lifted.")
}

func (p *Processor) cmdSetTarget(ctx context.Context, argument string) {
	n, err := strconv.ParseInt(argument, 10, 64)
	if err != nil || n <= 0 {
		p.reply("Usage: /settarget <positive integer>")
		return
	}
	if err := p.repo.SetTarget(ctx, n); err != nil {
		p.storeFailed("set target", err)
		return
	}
	p.reply(p.printer.Sprintf("Target set to %d.", n))
}

func (p *Processor) cmdToday(ctx context.Context) {
	n, err := p.store.CountClicksSince(ctx, 24*time.Hour)
	if err != nil {
		p.storeFailed("count today", err)
		return
	}
	p.reply(p.printer.Sprintf("%d clicks in the last 24 hours.", n))
}

func (p *Processor) cmdVelocity(ctx context.Context) {
	n, err := p.store.CountClicksSince(ctx, 24*time.Hour)
	if err != nil {
		p.storeFailed("count velocity", err)
		return
	}
	p.reply(p.printer.Sprintf("%d clicks in 24h, about %.1f per hour.", n, float64(n)/24))
}

func (p *Processor) cmdTideWarning(ctx context.Context, argument string) {
	if argument == "" {
		// With no argument, show the current warning instead of setting one.
		current, err := p.repo.TideWarning(ctx)
		if err != nil {
			p.storeFailed("read tide warning", err)
			return
		}
		if current == "" {
			p.reply("No tide warning set. Usage: /tidewarning <message>")
			return
		}
		p.reply("Current tide warning: " + current)
		return
	}
	if err := p.repo.SetTideWarning(ctx, argument); err != nil {
		p.storeFailed("set tide warning", err)
		return
	}
	p.reply("Tide warning posted.")
}

func (p *Processor) cmdClearTideWarning(ctx context.Context) {
	if err := p.repo.SetTideWarning(ctx, ""); err != nil {
		p.storeFailed("clear tide warning", err)
		return
	}
	p.reply("Tide warning cleared.")
}

func (p *Processor) cmdLogs(ctx context.Context) {
	entries, err := p.store.RecentLogs(ctx, 10)
	if err != nil {
		p.storeFailed("read logs", err)
		return
	}
	if len(entries) == 0 {
		p.reply("No log entries yet.")
		return
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Timestamp.UTC().Format("01-02 15:04"))
		b.WriteString(" ")
		b.WriteString(e.Event)
		if e.Detail != "" {
			b.WriteString(": ")
			b.WriteString(e.Detail)
		}
		b.WriteString("\n")
	}
	p.reply(strings.TrimRight(b.String(), "\n"))
}

func (p *Processor) cmdHelp() {
	p.reply(strings.Join([]string{
		"/ping - store liveness",
		"/count - current count and target",
		"/status - full pool state",
		"/setca <addr> - set contract address",
		"/decree <msg> - post a decree",
		"/cleardecree - clear the decree",
		"/bless <n> - bless a click number",
		"/lockdown [msg] - lock the pool",
		"/unlock - lift the lockdown",
		"/settarget <n> - set the target",
		"/today - clicks in the last 24h",
		"/velocity - click rate over 24h",
		"/tidewarning [msg] - show or set the tide warning",
		"/cleartidewarning - clear the tide warning",
		"/logs - recent audit log",
		"/reset - zero the pool (asks for CONFIRM)",
	}, "\n"))
}
