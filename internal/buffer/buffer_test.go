package buffer

import (
	"errors"
	"testing"
)

func TestBufferAppendAndView(t *testing.T) {
	b := New(nil)
	if err := b.Append([]byte("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Append([]byte(" world")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := string(b.View()); got != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestBufferShiftFrontRealignsRanges(t *testing.T) {
	b := New(nil)
	_ = b.Append([]byte("0123456789"))

	r := Range{Start: 4, End: 7}
	b.ShiftFront(3, &r)

	if got := string(b.View()); got != "3456789" {
		t.Errorf("got %q, want %q", got, "3456789")
	}
	if r.Start != 1 || r.End != 4 {
		t.Errorf("got range [%d,%d), want [1,4)", r.Start, r.End)
	}
	if got := string(r.Slice(b.View())); got != "456" {
		t.Errorf("got %q, want %q", got, "456")
	}
}

func TestBufferCapacityExceeded(t *testing.T) {
	lim := NewLimiter(5)
	b := New(lim)
	if err := b.Append([]byte("12345")); err != nil {
		t.Fatalf("append within cap: %v", err)
	}
	err := b.Append([]byte("6"))
	if err == nil {
		t.Fatal("expected capacity error")
	}
	var capErr *ErrCapacityExceeded
	if !errors.As(err, &capErr) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
	if got := string(b.View()); got != "12345" {
		t.Errorf("buffer mutated on failed append: got %q", got)
	}
}
