package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and is reserved for wire-level
// payloads: full prompts sent to LLM providers, checkout preferences and
// bridge requests. It renders as "TRACE".
const LevelTrace = slog.Level(-8)

// phoneKeys are log attribute keys whose values carry a guest's phone
// number.
var phoneKeys = map[string]bool{"jid": true, "phone": true}

// ParseLogLevel converts a case-insensitive string to an [slog.Level].
//
// Accepted values are trace, debug, info (or empty), warn/warning and
// error. Surrounding whitespace is ignored.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// MaskPhone hides the middle digits of a phone number or WhatsApp jid,
// keeping the country and area code and the last two digits:
// "5531999999999@s.whatsapp.net" becomes "5531*******99@s.whatsapp.net".
// Anything after "@" is kept as is.
func MaskPhone(s string) string {
	local, domain, hasDomain := strings.Cut(s, "@")
	b := []byte(local)
	var digits []int
	for i, c := range b {
		if c >= '0' && c <= '9' {
			digits = append(digits, i)
		}
	}
	keepHead, keepTail := 4, 2
	if len(digits) < keepHead+keepTail+2 {
		keepHead, keepTail = 0, 0
	}
	for _, i := range digits[keepHead : len(digits)-keepTail] {
		b[i] = '*'
	}
	if hasDomain {
		return string(b) + "@" + domain
	}
	return string(b)
}

// LogOptions tune the process logger.
type LogOptions struct {
	Level  slog.Level
	Format string // "text" or "json"; anything else is text
	// ShowPhones disables phone masking on jid and phone attributes.
	ShowPhones bool
}

// NewLogger builds the process logger writing to w.
func NewLogger(w io.Writer, opts LogOptions) *slog.Logger {
	hopts := &slog.HandlerOptions{
		Level: opts.Level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
				return a
			}
			if !opts.ShowPhones && phoneKeys[a.Key] && a.Value.Kind() == slog.KindString {
				a.Value = slog.StringValue(MaskPhone(a.Value.String()))
			}
			return a
		},
	}
	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
