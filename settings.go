package rewriter

// MemorySettings bounds the Rewriter's working set. MaxAllowedMemoryUsage
// charges the input buffer's growth, per spec.md section 5's "one global
// counter" — the selector VM's own per-element jump-table growth isn't
// metered against it, since internal/selector has no limiter hook (it
// reuses small fixed-shape slices per open element rather than growing
// unboundedly), so there was nothing there to wire it into.
type MemorySettings struct {
	PreallocatedParsingBufferSize int // capacity reserved for the input window up front (buffer.NewSized)
	MaxAllowedMemoryUsage         int // hard ceiling on buffer growth; 0 means unbounded
}

// ElementContentHandlers binds one CSS selector to up to three callbacks.
// Element fires once per matched start tag; it does not fire again at the
// end tag, where only a callback it registered with StartTag.OnEndTag runs.
// Comments and Text fire for every comment/text run inside a matched
// element's subtree, including inside nested unmatched elements.
type ElementContentHandlers struct {
	Selector string
	Element  func(*StartTag) error
	Comments func(*Comment) error
	Text     func(*TextChunk) error
}

// DocumentContentHandlers register document-scoped callbacks that fire
// regardless of any element selector: every doctype/comment/text run in
// the document, plus an end-of-document append point.
type DocumentContentHandlers struct {
	Doctype func(*Doctype) error
	Comments func(*Comment) error
	Text     func(*TextChunk) error
	End      func(*DocumentEnd) error
}

// Settings configures a Rewriter, mirroring spec.md section 6's
// Rewriter::new(settings, sink) contract.
type Settings struct {
	ElementContentHandlers  []ElementContentHandlers
	DocumentContentHandlers []DocumentContentHandlers

	// Encoding must be an ASCII-compatible label recognized by the
	// htmlindex registry; see encoding.go.
	Encoding string

	MemorySettings MemorySettings

	// Strict makes parsing ambiguity (e.g. <select><textarea>) a
	// terminating error. When false, the rewriter bails out to verbatim
	// passthrough for the remainder of the document instead.
	Strict bool

	// AdjustCharsetOnMetaTag enables the one-shot <meta charset> switch
	// described in spec.md section 6/9.
	AdjustCharsetOnMetaTag bool
}
