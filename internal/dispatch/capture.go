// Package dispatch binds the tokenizer kernel's events to registered
// selectors: it runs the selector VM and tree-builder simulator against
// every tag the kernel reports, decides whether the kernel needs to be in
// eager-scanner or full-lexer mode for what comes next, and hands
// complete events to a Sink (the public rewriter package implements
// Sink, translating these into the mutation-bearing token types user
// handlers see).
package dispatch

// CaptureFlags records what a registration (a document handler set or one
// matched element) needs observed. Grounded on spec.md 4.7's capture-flag
// bitmask (DOCTYPES/COMMENTS/TEXT/NEXT_START_TAG/NEXT_END_TAG); this
// implementation folds NEXT_START_TAG/NEXT_END_TAG into the broader
// per-tag mode decision (see Dispatcher.nextMode) rather than tracking
// them as separate one-shot flags, since this dispatcher always knows
// synchronously, at every tag boundary, whether the next tag needs
// attributes — it never needs to request "just the next one" the way a
// push-based event consumer would.
type CaptureFlags uint8

const (
	CaptureDoctypes CaptureFlags = 1 << iota
	CaptureComments
	CaptureText
)

func (f CaptureFlags) has(bit CaptureFlags) bool { return f&bit != 0 }
