package dispatch

import (
	"github.com/streamhtml/rewriter/internal/buffer"
	"github.com/streamhtml/rewriter/internal/htmltok"
	"github.com/streamhtml/rewriter/internal/selector"
)

// DoctypeEvent, CommentEvent and TextEvent wrap a borrowed Lexeme exactly
// as the kernel produced it; Buf lets the Sink slice out the bytes it
// needs (or, for an unmutated token, serialize the Full range verbatim).
type DoctypeEvent struct {
	Buf    *buffer.Buffer
	Lexeme htmltok.Lexeme
}

type CommentEvent struct {
	Buf    *buffer.Buffer
	Lexeme htmltok.Lexeme
}

type TextEvent struct {
	Buf            *buffer.Buffer
	Lexeme         htmltok.Lexeme
	LastInTextNode bool
}

// StartTagEvent is delivered once per start tag, matched or not. Payloads
// lists every selector registration this element satisfied, each once, in
// registration order; it is empty for an unmatched element.
type StartTagEvent struct {
	Buf      *buffer.Buffer
	Lexeme   htmltok.Lexeme
	NameLower string
	Namespace htmltok.Namespace
	Payloads []selector.MatchPayload
}

// EndTagEvent closes a StartTagEvent, real or synthesized (void elements
// and self-closing foreign elements never get a real end tag in the
// source, but every matched start tag still gets a paired close so an
// end-tag handler registered during the start-tag callback always runs).
// UserData is whatever the Sink returned from the paired HandleStartTag
// call, round-tripped unexamined — this is how the rewriter package
// threads a per-element end-tag-handler closure through without the
// dispatcher knowing anything about handler types.
type EndTagEvent struct {
	Buf         *buffer.Buffer
	Lexeme      htmltok.Lexeme // zero Full range when Synthesized
	NameLower   string
	Synthesized bool
	Payloads    []selector.MatchPayload
	UserData    interface{}
}

// Sink receives fully-resolved events. HandleStartTag's returned value is
// stashed per open element and handed back unchanged in the matching
// EndTagEvent.
type Sink interface {
	HandleDoctype(*DoctypeEvent) error
	HandleComment(*CommentEvent) error
	HandleText(*TextEvent) error
	HandleStartTag(*StartTagEvent) (userData interface{}, err error)
	HandleEndTag(*EndTagEvent) error
	HandleDocumentEnd(buf *buffer.Buffer) error
}
