// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
)

// SlogHandler lets sutureslog and watermill log through zerolog. Attributes
// added with WithAttrs are folded into a child logger once, so Handle only
// pays for the record's own attributes.
type SlogHandler struct {
	logger zerolog.Logger
	prefix string // dotted group path, "" or ending in "."
}

// NewSlogHandler returns a handler writing to logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogHandler(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// Enabled implements slog.Handler.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= slogToZerologLevel(level)
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerologLevel(record.Level))
	if event == nil {
		return nil
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = appendEvent(event, h.prefix, attr)
		return true
	})
	event.Msg(record.Message)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	ctx := h.logger.With()
	for _, attr := range attrs {
		ctx = appendContext(ctx, h.prefix, attr)
	}
	return &SlogHandler{logger: ctx.Logger(), prefix: h.prefix}
}

// WithGroup implements slog.Handler.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

// fieldWriter is implemented by both *zerolog.Event and zerolog.Context.
type fieldWriter[T any] interface {
	Str(key, val string) T
	Int64(key string, i int64) T
	Uint64(key string, i uint64) T
	Float64(key string, f float64) T
	Bool(key string, b bool) T
	Dur(key string, d time.Duration) T
	Time(key string, t time.Time) T
	Interface(key string, i any) T
}

func appendEvent(e *zerolog.Event, prefix string, attr slog.Attr) *zerolog.Event {
	return appendField(e, prefix, attr)
}

func appendContext(c zerolog.Context, prefix string, attr slog.Attr) zerolog.Context {
	return appendField(c, prefix, attr)
}

// appendField writes attr under prefix. Groups flatten to dotted keys.
func appendField[T fieldWriter[T]](w T, prefix string, attr slog.Attr) T {
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		sub := prefix
		if attr.Key != "" {
			sub = prefix + attr.Key + "."
		}
		for _, ga := range v.Group() {
			w = appendField(w, sub, ga)
		}
		return w
	}
	if attr.Key == "" {
		return w
	}

	key := prefix + attr.Key
	switch v.Kind() {
	case slog.KindString:
		return w.Str(key, v.String())
	case slog.KindInt64:
		return w.Int64(key, v.Int64())
	case slog.KindUint64:
		return w.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return w.Float64(key, v.Float64())
	case slog.KindBool:
		return w.Bool(key, v.Bool())
	case slog.KindDuration:
		return w.Dur(key, v.Duration())
	case slog.KindTime:
		return w.Time(key, v.Time())
	default:
		// Errors marshal to {} through Interface.
		if err, ok := v.Any().(error); ok {
			return w.Str(key, err.Error())
		}
		return w.Interface(key, v.Any())
	}
}

func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// NewSlogLogger creates an slog.Logger backed by the global zerolog logger.
//
//	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandler(Logger()))
}
