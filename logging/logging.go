// Package logging builds the slog loggers used across wallspider. Request
// paths carry the Graph API access token in their query string, so every
// record passes through a handler that masks it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

const Mask = "REDACTED"

var tokenParam = regexp.MustCompile(`(access_token=)[^&\s"]*`)

// RedactToken masks the value of any access_token query parameter in s.
func RedactToken(s string) string {
	if !strings.Contains(s, "access_token=") {
		return s
	}
	return tokenParam.ReplaceAllString(s, "${1}"+Mask)
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "token") || strings.Contains(key, "secret")
}

type redactingHandler struct {
	next slog.Handler
}

// NewHandler wraps next so attribute values never expose an access token.
func NewHandler(next slog.Handler) slog.Handler {
	return &redactingHandler{next: next}
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, RedactToken(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(clean)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, ga := range group {
			clean[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	case slog.KindString:
		if sensitiveKey(a.Key) && a.Value.String() != "" {
			return slog.String(a.Key, Mask)
		}
		return slog.String(a.Key, RedactToken(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, RedactToken(err.Error()))
		}
	}
	return a
}

// New returns a text logger writing to w. Verbose enables debug output,
// otherwise only warnings and errors are written.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(NewHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
