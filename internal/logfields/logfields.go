package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyIdentity   = "identity"
	KeyChatID     = "chat_id"
	KeyCommand    = "command"
	KeyCount      = "count"
	KeyTarget     = "target"
	KeyEvent      = "event"
	KeyOutcome    = "outcome"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyUserAgent  = "user_agent"
	KeyRequestID  = "request_id"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Identity(id string) slog.Attr     { return slog.String(KeyIdentity, id) }
func ChatID(id string) slog.Attr       { return slog.String(KeyChatID, id) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func Count(n int64) slog.Attr          { return slog.Int64(KeyCount, n) }
func Target(n int64) slog.Attr         { return slog.Int64(KeyTarget, n) }
func Event(e string) slog.Attr         { return slog.String(KeyEvent, e) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
