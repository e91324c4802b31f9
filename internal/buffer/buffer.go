// Package buffer holds the sliding byte window the tokenizer reads from.
//
// The rewriter never materializes the whole document: every write() call
// appends to this buffer, the tokenizer consumes from it, and the consumed
// prefix is discarded once nothing refers to it anymore. Every Range and
// cursor that survives a shift must be realigned against the shift amount.
package buffer

import "fmt"

// Realignable is implemented by every type that holds a byte offset into
// a Buffer's window and must survive a shift_front.
type Realignable interface {
	// Realign subtracts shift from all offsets held by the receiver.
	// shift is always <= the offset of the oldest live reference; callers
	// never shift past data still in use.
	Realign(shift int)
}

// Range is a half-open [Start, End) span into a Buffer's current window.
type Range struct {
	Start int
	End   int
}

// Len reports the number of bytes the range covers.
func (r Range) Len() int { return r.End - r.Start }

// Empty reports whether the range covers zero bytes.
func (r Range) Empty() bool { return r.Start == r.End }

// Slice returns the bytes the range covers in buf's current window.
func (r Range) Slice(buf []byte) []byte { return buf[r.Start:r.End] }

// Realign implements Realignable.
func (r *Range) Realign(shift int) {
	r.Start -= shift
	r.End -= shift
}

// Buffer is an amortized, append-only byte window with a discardable
// consumed prefix and an enforced memory ceiling.
type Buffer struct {
	data    []byte
	limiter *Limiter
}

// New creates a Buffer that charges all growth against limiter.
// limiter may be nil, in which case the buffer is unbounded (used by
// tests that don't exercise the memory-cap invariant).
func New(limiter *Limiter) *Buffer {
	return &Buffer{limiter: limiter}
}

// NewSized is New plus an up-front capacity reservation, so the first
// several Append calls don't force Go's append to repeatedly grow and
// copy the backing array. The reservation itself is not charged against
// limiter; only bytes actually appended are.
func NewSized(limiter *Limiter, capacity int) *Buffer {
	if capacity <= 0 {
		return New(limiter)
	}
	return &Buffer{limiter: limiter, data: make([]byte, 0, capacity)}
}

// Append adds bytes to the end of the window. It fails with
// ErrCapacityExceeded (wrapped) if doing so would exceed the configured
// memory ceiling; the buffer is left unchanged on failure.
func (b *Buffer) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if b.limiter != nil {
		if err := b.limiter.Grow(len(p)); err != nil {
			return fmt.Errorf("appending %d bytes to buffer: %w", len(p), err)
		}
	}
	b.data = append(b.data, p...)
	return nil
}

// View returns the current window. The slice is only valid until the next
// Append or ShiftFront call.
func (b *Buffer) View() []byte { return b.data }

// Len reports the current window length.
func (b *Buffer) Len() int { return len(b.data) }

// ShiftFront discards the first n bytes of the window, realigning every
// Realignable passed in (cursors, retained Ranges, etc). It is the only
// place offsets become invalid without an explicit Realign call; every
// caller holding a stale offset across a ShiftFront is a bug.
func (b *Buffer) ShiftFront(n int, live ...Realignable) {
	if n <= 0 {
		return
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	copy(b.data, b.data[n:])
	b.data = b.data[:len(b.data)-n]
	if b.limiter != nil {
		b.limiter.Shrink(n)
	}
	for _, r := range live {
		r.Realign(n)
	}
}
