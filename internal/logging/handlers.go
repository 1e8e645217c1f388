package logging

import (
	"context"
	"errors"
	"log/slog"
)

// SessionAttrs reports the attributes of the current poll session, such as
// the telemetry source and whether it is connected.
type SessionAttrs func() []slog.Attr

// SessionHandler stamps each record with the current SessionAttrs. A key the
// caller already logged is left alone.
type SessionHandler struct {
	inner slog.Handler
	attrs SessionAttrs
}

func NewSessionHandler(inner slog.Handler, attrs SessionAttrs) *SessionHandler {
	return &SessionHandler{inner: inner, attrs: attrs}
}

func (h *SessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *SessionHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.attrs == nil {
		return h.inner.Handle(ctx, r)
	}
	extra := h.attrs()
	if len(extra) == 0 {
		return h.inner.Handle(ctx, r)
	}

	logged := make(map[string]struct{}, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		logged[a.Key] = struct{}{}
		return true
	})
	for _, a := range extra {
		if a.Key == "" {
			continue
		}
		if _, ok := logged[a.Key]; !ok {
			r.AddAttrs(a)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SessionHandler{inner: h.inner.WithAttrs(attrs), attrs: h.attrs}
}

func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SessionHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}

// FanoutHandler writes every record to each destination that accepts its
// level: console, log file, Graylog and the OTel bridge. A failing
// destination does not stop the others; Handle joins their errors.
type FanoutHandler struct {
	sinks []slog.Handler
}

// NewFanoutHandler drops nil destinations.
func NewFanoutHandler(sinks ...slog.Handler) *FanoutHandler {
	out := make([]slog.Handler, 0, len(sinks))
	for _, h := range sinks {
		if h != nil {
			out = append(out, h)
		}
	}
	return &FanoutHandler{sinks: out}
}

func (f *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *FanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *FanoutHandler) each(fn func(slog.Handler) slog.Handler) *FanoutHandler {
	sinks := make([]slog.Handler, len(f.sinks))
	for i, h := range f.sinks {
		sinks[i] = fn(h)
	}
	return &FanoutHandler{sinks: sinks}
}
