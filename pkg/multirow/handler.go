// Package multirow validates and persists master/detail submissions: one
// parent record edited together with rows of child records.
//
// Validate checks posted field sets without touching storage. Save writes
// the parent and reconciles each child group inside one transaction,
// pairing submitted rows with existing children by position. Delete removes
// a parent and its children inside one transaction.
//
// Row 0 of every submitted sequence is the hidden template row rendered by
// package rows and is never validated or saved.
package multirow

import "github.com/mesh-intelligence/multirow/pkg/types"

// Handler runs validate, save and delete against a record type registry.
// A Handler holds no request state and may be shared.
type Handler struct {
	reg  types.Registry
	sink Sink
}

// Option configures a Handler.
type Option func(*Handler)

// WithSink sets the diagnostic sink. The default logs to slog.Default().
func WithSink(s Sink) Option {
	return func(h *Handler) {
		if s != nil {
			h.sink = s
		}
	}
}

// New returns a Handler resolving record types through reg.
func New(reg types.Registry, opts ...Option) *Handler {
	h := &Handler{reg: reg, sink: NewSlogSink(nil)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
