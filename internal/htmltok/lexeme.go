package htmltok

import "github.com/streamhtml/rewriter/internal/buffer"

// Kind discriminates a Lexeme's payload.
type Kind uint8

const (
	KindText Kind = iota
	KindComment
	KindDoctype
	KindStartTag
	KindEndTag
	KindEOF
)

// Attr is one attribute of a start tag: Name and Value index the name and
// the value bytes (inside any quotes) exactly as written in the source,
// with no character-reference decoding; Raw spans the whole attribute as
// written.
type Attr struct {
	Name  buffer.Range
	Value buffer.Range
	Raw   buffer.Range
}

// Realign implements buffer.Realignable.
func (a *Attr) Realign(shift int) {
	a.Name.Realign(shift)
	a.Value.Realign(shift)
	a.Raw.Realign(shift)
}

// Doctype holds the optional sub-ranges of a DOCTYPE lexeme; a zero Range
// (Start==End==0 and present=false) means the field was absent.
type Doctype struct {
	Name        buffer.Range
	HasName     bool
	PublicID    buffer.Range
	HasPublicID bool
	SystemID    buffer.Range
	HasSystemID bool
	ForceQuirks bool
}

// Lexeme is a borrowed view over the tokenizer's current buffer window
// plus a discriminated outline of what was scanned. Lexemes (and the
// Tokens built from them) must not be retained past the end of the
// Feed/handler call that produced them, since their Ranges are only valid
// against that window.
type Lexeme struct {
	Kind Kind
	Full buffer.Range // the lexeme's full source span, for fast-path serialization

	TextType TextType // valid when Kind == KindText
	// TextEndsNode is only ever true on the zero-length sentinel Lexeme
	// that closes a text node once it's known to truly end (tag boundary
	// or EOF), and only when that node had content fed for it; every
	// content-bearing text Lexeme always reports false, even the last one
	// before such a boundary. A Write call running out mid text-node ends
	// the run without emitting a sentinel, so the next Feed call continues
	// the same node. Valid when Kind == KindText.
	TextEndsNode bool

	NameHash    uint64
	NameHashOK  bool
	Name        buffer.Range // valid for KindStartTag/KindEndTag
	Attrs       []Attr       // valid for KindStartTag
	SelfClosing bool         // valid for KindStartTag
	Namespace   Namespace    // not set by the kernel (always HTML); the dispatcher takes namespaces from its TreeBuilderSim

	Doctype Doctype // valid for KindDoctype
}

// Realign implements buffer.Realignable.
func (l *Lexeme) Realign(shift int) {
	l.Full.Realign(shift)
	l.Name.Realign(shift)
	for i := range l.Attrs {
		l.Attrs[i].Realign(shift)
	}
	if l.Doctype.HasName {
		l.Doctype.Name.Realign(shift)
	}
	if l.Doctype.HasPublicID {
		l.Doctype.PublicID.Realign(shift)
	}
	if l.Doctype.HasSystemID {
		l.Doctype.SystemID.Realign(shift)
	}
}

// TagHint is the lightweight event the tag scanner emits: enough to drive
// selector matching and the open-element stack without materializing
// attributes.
type TagHint struct {
	IsEnd       bool
	Name        buffer.Range
	NameHash    uint64
	NameHashOK  bool
	Full        buffer.Range
	SelfClosing bool
}

// Realign implements buffer.Realignable.
func (h *TagHint) Realign(shift int) {
	h.Name.Realign(shift)
	h.Full.Realign(shift)
}
