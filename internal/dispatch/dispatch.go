package dispatch

import (
	"strings"

	"github.com/streamhtml/rewriter/internal/buffer"
	"github.com/streamhtml/rewriter/internal/htmltok"
	"github.com/streamhtml/rewriter/internal/selector"
)

// openElement is the dispatcher's own stack frame, parallel to the
// selector VM's internal stack: it remembers which registrations matched
// this element and what the Sink returned from HandleStartTag, so the
// paired HandleEndTag call (real or synthesized) gets the right data.
type openElement struct {
	nameLower string
	payloads  []selector.MatchPayload
	flags     CaptureFlags // accumulated: this element's own registrations' flags | parent's accumulated flags
	userData  interface{}
}

// Dispatcher implements htmltok.Controller and drives a selector.VM and
// htmltok.TreeBuilderSim from the kernel's tag/lexeme stream, handing
// complete events to a Sink. Grounded on htmlrewriter.go's rewriteHTML
// dispatch loop (matchStack / shouldSkipContent) generalized from a
// single-shot string rewrite into the chunked Feed-driven contract here.
type Dispatcher struct {
	buf  *buffer.Buffer
	tb   *htmltok.TreeBuilderSim
	vm   *selector.VM
	sink Sink

	regFlags    []CaptureFlags
	anyAttrs    bool
	docFlags    CaptureFlags
	strict      bool

	open []openElement
	err  error
}

func newDispatcher(prog selector.Program, regFlags []CaptureFlags, anyAttrs bool, docFlags CaptureFlags, sink Sink, strict bool) *Dispatcher {
	return &Dispatcher{
		tb:       htmltok.NewTreeBuilderSim(),
		vm:       selector.NewVM(prog),
		sink:     sink,
		regFlags: regFlags,
		anyAttrs: anyAttrs,
		docFlags: docFlags,
		strict:   strict,
	}
}

// Bind attaches the buffer the tokenizer reads from; events reference it
// so the Sink can slice out bytes without a copy.
func (d *Dispatcher) Bind(buf *buffer.Buffer) { d.buf = buf }

// Err reports the first unrecoverable error a handler or the tree-builder
// simulator raised, if any.
func (d *Dispatcher) Err() error { return d.err }

func (d *Dispatcher) flagsForPayloads(payloads []selector.MatchPayload) CaptureFlags {
	var f CaptureFlags
	for _, p := range payloads {
		if int(p) < len(d.regFlags) {
			f |= d.regFlags[p]
		}
	}
	return f
}

func (d *Dispatcher) topFlags() CaptureFlags {
	if len(d.open) == 0 {
		return 0
	}
	return d.open[len(d.open)-1].flags
}

// nextMode decides whether the kernel should run as the eager scanner or
// the full lexer for whatever comes after the tag just processed.
func (d *Dispatcher) nextMode() htmltok.ParserDirective {
	required := d.docFlags | d.topFlags()
	needLexer := d.anyAttrs || required.has(CaptureDoctypes) || required.has(CaptureComments) || required.has(CaptureText)
	if needLexer {
		return htmltok.DirectiveSwitchToLexer
	}
	return htmltok.DirectiveSwitchToScanner
}

func (d *Dispatcher) nameLower(r buffer.Range) string {
	return strings.ToLower(string(r.Slice(d.buf.View())))
}

// ---- htmltok.Controller ------------------------------------------------

func (d *Dispatcher) OnTagHint(hint htmltok.TagHint) htmltok.ParserDirective {
	nameLower := d.nameLower(hint.Name)
	if hint.IsEnd {
		d.closeElement(nameLower, htmltok.Lexeme{Kind: htmltok.KindEndTag, Full: hint.Full}, false)
		return d.nextMode()
	}
	el := selector.Element{
		TagLower:    nameLower,
		TagHash:     hint.NameHash,
		TagHashOK:   hint.NameHashOK,
		SelfClosing: hint.SelfClosing,
		IsForeign:   d.tb.CurrentNamespace() != htmltok.HTML,
	}
	d.openElementHint(el, hint)
	return d.nextMode()
}

func (d *Dispatcher) OnLexeme(lex htmltok.Lexeme) htmltok.ParserDirective {
	switch lex.Kind {
	case htmltok.KindDoctype:
		if d.docFlags.has(CaptureDoctypes) {
			if err := d.sink.HandleDoctype(&DoctypeEvent{Buf: d.buf, Lexeme: lex}); err != nil {
				d.err = err
			}
		}
		return htmltok.DirectiveContinue
	case htmltok.KindComment:
		if (d.docFlags | d.topFlags()).has(CaptureComments) {
			if err := d.sink.HandleComment(&CommentEvent{Buf: d.buf, Lexeme: lex}); err != nil {
				d.err = err
			}
		}
		return htmltok.DirectiveContinue
	case htmltok.KindText:
		if (d.docFlags | d.topFlags()).has(CaptureText) {
			if err := d.sink.HandleText(&TextEvent{Buf: d.buf, Lexeme: lex, LastInTextNode: lex.TextEndsNode}); err != nil {
				d.err = err
			}
		}
		return htmltok.DirectiveContinue
	case htmltok.KindEOF:
		return htmltok.DirectiveContinue
	case htmltok.KindEndTag:
		nameLower := d.nameLower(lex.Name)
		d.closeElement(nameLower, lex, false)
		return d.nextMode()
	case htmltok.KindStartTag:
		nameLower := d.nameLower(lex.Name)
		el := selector.Element{
			TagLower:    nameLower,
			TagHash:     lex.NameHash,
			TagHashOK:   lex.NameHashOK,
			SelfClosing: lex.SelfClosing,
			IsForeign:   d.tb.CurrentNamespace() != htmltok.HTML,
			Attrs:       attrsMap(d.buf, lex),
		}
		d.openElementLexeme(el, lex)
		return d.nextMode()
	default:
		return htmltok.DirectiveContinue
	}
}

func attrsMap(buf *buffer.Buffer, lex htmltok.Lexeme) map[string]string {
	if len(lex.Attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(lex.Attrs))
	view := buf.View()
	for _, a := range lex.Attrs {
		name := strings.ToLower(string(a.Name.Slice(view)))
		m[name] = string(a.Value.Slice(view))
	}
	return m
}

// TextTypeAfterStartTag delegates to the tree-builder simulator. The
// encoding-attribute-sensitive annotation-xml HTML-integration-point rule
// is not evaluated here (the Controller interface only carries the tag
// name), a documented limitation narrow to that one MathML edge case.
// The kernel calls this exactly once per start tag, before reporting the
// tag, so this is the one place the simulator advances past a start tag.
func (d *Dispatcher) TextTypeAfterStartTag(nameLower string, selfClosing bool) (htmltok.TextType, bool, bool) {
	tt, changed, ambiguous, _ := d.tb.OnStartTag(nameLower, selfClosing, "")
	return tt, changed, ambiguous
}

func (d *Dispatcher) CDataAllowed() bool { return d.tb.CDataAllowed() }

// ---- open/close bookkeeping --------------------------------------------

func (d *Dispatcher) openElementHint(el selector.Element, hint htmltok.TagHint) {
	payloads := d.vm.OpenStartTag(el)
	d.dispatchOpen(el, htmltok.Lexeme{Kind: htmltok.KindStartTag, Full: hint.Full, SelfClosing: hint.SelfClosing}, payloads)
}

func (d *Dispatcher) openElementLexeme(el selector.Element, lex htmltok.Lexeme) {
	payloads := d.vm.OpenStartTag(el)
	d.dispatchOpen(el, lex, payloads)
}

func (d *Dispatcher) dispatchOpen(el selector.Element, lex htmltok.Lexeme, payloads []selector.MatchPayload) {
	// HandleStartTag always fires, matched or not: the Sink needs the
	// tag's own byte range even for an unmatched element, to flush it as
	// verbatim passthrough — dispatch has no separate "raw bytes" event,
	// so every structural boundary doubles as the passthrough signal.
	ev := &StartTagEvent{Buf: d.buf, Lexeme: lex, NameLower: el.TagLower, Namespace: d.tb.CurrentNamespace(), Payloads: payloads}
	userData, err := d.sink.HandleStartTag(ev)
	if err != nil {
		d.err = err
	}

	var pushed bool
	if el.IsForeign {
		pushed = !el.SelfClosing
	} else {
		pushed = !selector.IsVoidElement(el.TagLower)
	}

	if pushed {
		flags := d.topFlags() | d.flagsForPayloads(payloads)
		d.open = append(d.open, openElement{nameLower: el.TagLower, payloads: payloads, flags: flags, userData: userData})
		return
	}

	// Void element or self-closing foreign element: never pushed, so
	// synthesize the paired close immediately.
	if err := d.sink.HandleEndTag(&EndTagEvent{Buf: d.buf, NameLower: el.TagLower, Synthesized: true, Payloads: payloads, UserData: userData}); err != nil {
		d.err = err
	}
}

func (d *Dispatcher) closeElement(nameLower string, lex htmltok.Lexeme, synthesized bool) {
	d.tb.OnEndTag(nameLower)
	d.vm.CloseEndTag(nameLower)

	idx := -1
	for i := len(d.open) - 1; i >= 0; i-- {
		if d.open[i].nameLower == nameLower {
			idx = i
			break
		}
	}

	if idx == -1 {
		// Stray end tag: no open frame matched (spec.md 4.5 — ignored for
		// stack purposes but still emitted). HandleEndTag still fires so
		// the Sink can flush its raw bytes through the passthrough path.
		if err := d.sink.HandleEndTag(&EndTagEvent{Buf: d.buf, Lexeme: lex, NameLower: nameLower, Synthesized: synthesized}); err != nil {
			d.err = err
		}
		return
	}

	// Anything still open above idx (e.g. "<div><span></div>") never gets
	// its own end tag in the source; the Sink still needs a paired close
	// for every start tag it saw, so synthesize one for each, innermost
	// first, before closing the element the real tag named.
	for i := len(d.open) - 1; i > idx; i-- {
		el := d.open[i]
		d.open = d.open[:i]
		if err := d.sink.HandleEndTag(&EndTagEvent{Buf: d.buf, NameLower: el.nameLower, Synthesized: true, Payloads: el.payloads, UserData: el.userData}); err != nil {
			d.err = err
		}
	}

	closed := d.open[idx]
	d.open = d.open[:idx]
	if err := d.sink.HandleEndTag(&EndTagEvent{Buf: d.buf, Lexeme: lex, NameLower: nameLower, Synthesized: synthesized, Payloads: closed.payloads, UserData: closed.userData}); err != nil {
		d.err = err
	}
}

// DocumentEnd must be called once, after the kernel reports EOF, to flush
// a document-end event to the Sink.
func (d *Dispatcher) DocumentEnd() error {
	return d.sink.HandleDocumentEnd(d.buf)
}
