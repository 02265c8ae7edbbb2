package common

import (
	"context"
	"log/slog"

	"golang.org/x/exp/constraints"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// AlignUp rounds v up to the next multiple of a. An alignment of zero returns v unchanged.
//
// Parameters:
//   - v: the value to align
//   - a: the alignment, any positive value
//
// Returns:
//   - T: the smallest multiple of a that is >= v
func AlignUp[T constraints.Unsigned](v, a T) T {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

// nopHandler is an slog.Handler that drops every record.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

// NopLogger returns a logger that discards all output. Components that accept an optional
// logger fall back to this so a nil check is never needed at the call site.
//
// Returns:
//   - *slog.Logger: a logger backed by a no-op handler
func NopLogger() *slog.Logger {
	return slog.New(nopHandler{})
}
