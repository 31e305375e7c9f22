// Package logging configures structured JSON logging with optional
// redaction of credential-bearing attributes.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// sensitiveKeys are substrings that mark an attribute as secret-bearing.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"passphrase",
	"auth",
}

// SanitizingHandler wraps a slog.Handler and redacts attributes whose
// key looks like it carries a secret.
type SanitizingHandler struct {
	handler  slog.Handler
	sanitize bool
}

// NewSanitizingHandler wraps handler. When sanitize is false records
// pass through untouched.
func NewSanitizingHandler(handler slog.Handler, sanitize bool) *SanitizingHandler {
	return &SanitizingHandler{handler: handler, sanitize: sanitize}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.sanitize {
		return h.handler.Handle(ctx, r)
	}
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.sanitize {
		clean := make([]slog.Attr, len(attrs))
		for i, a := range attrs {
			clean[i] = h.sanitizeAttr(a)
		}
		attrs = clean
	}
	return &SanitizingHandler{handler: h.handler.WithAttrs(attrs), sanitize: h.sanitize}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{handler: h.handler.WithGroup(name), sanitize: h.sanitize}
}

func (h *SanitizingHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			clean[i] = h.sanitizeAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}
	return a
}

// Setup installs the default slog logger: JSON on stderr at the given
// level, sanitized when sanitize is true. Unknown levels fall back to
// info.
func Setup(level string, sanitize bool) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(NewSanitizingHandler(jsonHandler, sanitize)))
}

// truncateForLog caps s at maxLen bytes for log attributes, appending
// "..." when anything was cut.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// hexDump renders up to maxBytes of data as space-separated hex pairs.
// Used at debug level to show raw terminal output.
func hexDump(data []byte, maxBytes int) string {
	if len(data) > maxBytes {
		data = data[:maxBytes]
	}
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(hexChar(c >> 4))
		b.WriteByte(hexChar(c & 0x0f))
	}
	return b.String()
}

func hexChar(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + n - 10
}

// TruncateForLog is the exported form used by callers that log chunks
// of stream output.
func TruncateForLog(s string, maxLen int) string {
	return truncateForLog(s, maxLen)
}

// HexDump is the exported form of hexDump.
func HexDump(data []byte, maxBytes int) string {
	return hexDump(data, maxBytes)
}
