package rewriter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/streamhtml/rewriter/internal/buffer"
	"github.com/streamhtml/rewriter/internal/dispatch"
	"github.com/streamhtml/rewriter/internal/htmltok"
)

// openFrame is the Rewriter's own open-element stack, kept strictly
// parallel to the dispatcher's: every HandleStartTag call pushes exactly
// one frame and every matching HandleEndTag call (real or synthesized)
// pops it, in the same order the dispatcher pairs them. Unlike
// dispatch's openElement, this frame carries the mutation state a closing
// tag needs to finish rendering (OnEndTag closure, append/after chunks,
// whether this element suppresses its own descendants).
type openFrame struct {
	nameLower string

	// placeholder frames stand in for elements no selector matched (or,
	// inside a suppressed subtree, for elements no handler ever saw at
	// all) — there's no StartTag token and nothing to render at close.
	placeholder      bool
	suppressedAtPush bool // true if an ancestor was already suppressing when this was pushed

	newName      string
	removal      removalMode
	innerSet     bool
	afterChunks  []mutationChunk
	appendChunks []mutationChunk
	onEndTag     func(*EndTag) error

	commentFns []func(*Comment) error
	textFns    []func(*TextChunk) error

	// suppressOrigin marks the frame whose Remove() or SetInnerContent()
	// call is the reason descendants are being dropped; only that frame's
	// own close clears Rewriter.suppressFrom.
	suppressOrigin bool
}

// Rewriter drives one streaming rewrite: bytes in via Write, transformed
// bytes out via the sink function passed to NewRewriter. It implements
// dispatch.Sink, translating the dispatcher's structural events into the
// mutation-bearing token types (StartTag, Comment, TextChunk, ...) that
// user handlers see, and is itself the single place that decides what
// raw bytes pass through untouched.
//
// A Rewriter is not safe for concurrent use; Write/End calls must be
// serialized by the caller, matching spec.md 6's single-writer contract.
type Rewriter struct {
	out func([]byte) error

	limiter *buffer.Limiter
	buf     *buffer.Buffer
	tok     *htmltok.Tokenizer
	disp    *dispatch.Dispatcher

	elementHandlers []ElementContentHandlers
	docDoctypeFns   []func(*Doctype) error
	docCommentFns   []func(*Comment) error
	docTextFns      []func(*TextChunk) error
	docEndFns       []func(*DocumentEnd) error

	enc           *encodingOracle
	adjustCharset bool
	strict        bool

	// cursor is how far into buf.View() has already reached the sink,
	// whether as raw passthrough or as a handler's serialized output. It
	// never exceeds the tokenizer's own position, so shifting the buffer
	// up to cursor (see compact) never cuts into the kernel's live state.
	cursor int

	openStack    []*openFrame
	suppressFrom int // index into openStack where suppression began; -1 = none

	poisonErr     error
	bailedOut     bool
	bailoutReason string
	ended         bool

	// rawPassthrough is set once a non-strict bailout fires: the tokenizer
	// is abandoned for good (no further matching, no more handler calls)
	// and every remaining byte, from whichever Write call carries it, is
	// copied straight to the sink untouched.
	rawPassthrough bool
}

// NewRewriter builds a Rewriter from settings, writing transformed output
// through sink. Construction fails synchronously if Settings.Encoding
// isn't a recognized ASCII-compatible label or any selector fails to
// parse — both checked before a single byte is accepted, per spec.md 6.
func NewRewriter(settings Settings, sink func([]byte) error) (*Rewriter, error) {
	if sink == nil {
		return nil, fmt.Errorf("html rewriter: output sink must not be nil")
	}

	label := settings.Encoding
	if label == "" {
		label = "utf-8"
	}
	enc, err := newEncodingOracle(label)
	if err != nil {
		return nil, err
	}

	limiter := buffer.NewLimiter(settings.MemorySettings.MaxAllowedMemoryUsage)
	buf := buffer.NewSized(limiter, settings.MemorySettings.PreallocatedParsingBufferSize)

	builder := dispatch.NewBuilder()
	elementHandlers := settings.ElementContentHandlers
	for i := range elementHandlers {
		h := elementHandlers[i]
		var flags dispatch.CaptureFlags
		if h.Comments != nil {
			flags |= dispatch.CaptureComments
		}
		if h.Text != nil {
			flags |= dispatch.CaptureText
		}
		payload, err := builder.Register(h.Selector, flags)
		if err != nil {
			return nil, wrapSelectorError(h.Selector, err)
		}
		if int(payload) != i {
			return nil, fmt.Errorf("html rewriter: internal error: payload %d for registration %d", payload, i)
		}
		if h.Element != nil {
			builder.RequireAttrs()
		}
	}

	var docFlags dispatch.CaptureFlags
	var docDoctypeFns []func(*Doctype) error
	var docCommentFns []func(*Comment) error
	var docTextFns []func(*TextChunk) error
	var docEndFns []func(*DocumentEnd) error
	for _, h := range settings.DocumentContentHandlers {
		if h.Doctype != nil {
			docFlags |= dispatch.CaptureDoctypes
			docDoctypeFns = append(docDoctypeFns, h.Doctype)
		}
		if h.Comments != nil {
			docFlags |= dispatch.CaptureComments
			docCommentFns = append(docCommentFns, h.Comments)
		}
		if h.Text != nil {
			docFlags |= dispatch.CaptureText
			docTextFns = append(docTextFns, h.Text)
		}
		if h.End != nil {
			docEndFns = append(docEndFns, h.End)
		}
	}

	if settings.AdjustCharsetOnMetaTag {
		// The dispatcher's mode decision is per-tag but not tag-name
		// aware, so there's no way to ask for attributes on <meta>
		// alone; this forces lexer mode for the whole document instead.
		builder.RequireAttrs()
	}

	r := &Rewriter{
		out:             sink,
		limiter:         limiter,
		buf:             buf,
		elementHandlers: elementHandlers,
		docDoctypeFns:   docDoctypeFns,
		docCommentFns:   docCommentFns,
		docTextFns:      docTextFns,
		docEndFns:       docEndFns,
		enc:             enc,
		adjustCharset:   settings.AdjustCharsetOnMetaTag,
		strict:          settings.Strict,
		suppressFrom:    -1,
	}

	disp, err := builder.Build(docFlags, r, settings.Strict)
	if err != nil {
		return nil, err
	}
	disp.Bind(buf)
	r.disp = disp
	r.tok = htmltok.New(buf, disp)

	return r, nil
}

// Encoding reports the currently active encoding label, which may have
// moved since construction if AdjustCharsetOnMetaTag observed a <meta>
// retarget.
func (r *Rewriter) Encoding() string { return r.enc.Label() }

// Bailout reports whether the rewriter gave up strict parsing and, if
// so, why. Only meaningful when Settings.Strict is false: in strict mode
// a parsing ambiguity is always a terminating error instead.
func (r *Rewriter) Bailout() (reason string, bailedOut bool) {
	return r.bailoutReason, r.bailedOut
}

// Write feeds one more chunk of input HTML. Transformed output reaches
// the sink synchronously from within this call.
func (r *Rewriter) Write(chunk []byte) error {
	if err := r.checkPoisoned(); err != nil {
		return err
	}
	if r.ended {
		return r.poison(fmt.Errorf("html rewriter: Write called after End"))
	}

	if err := r.buf.Append(chunk); err != nil {
		var cap *buffer.ErrCapacityExceeded
		if errors.As(err, &cap) {
			return r.poison(&MemoryLimitExceededError{Current: cap.Current, Max: cap.Max})
		}
		return r.poison(err)
	}

	if r.rawPassthrough {
		return r.flushRawPassthrough()
	}

	if err := r.tok.Feed(false); err != nil {
		if err := r.handleTokenizerError(err); err != nil {
			return err
		}
		return r.flushRawPassthrough()
	}
	if r.disp.Err() != nil {
		return r.poison(r.disp.Err())
	}
	r.compact()
	return nil
}

// flushRawPassthrough copies every buffered byte the tokenizer hasn't
// already accounted for straight to the sink, with no further matching.
// Used once rawPassthrough is set, and from the Write/End call that sets
// it to carry through whatever arrived in the same call.
func (r *Rewriter) flushRawPassthrough() error {
	if err := r.flushTo(r.buf, r.buf.Len()); err != nil {
		return err
	}
	r.compact()
	return nil
}

// End signals the final chunk has been written, flushing any trailing
// text and running the document-end handlers. A Rewriter must not be
// written to again afterward.
func (r *Rewriter) End() error {
	if err := r.checkPoisoned(); err != nil {
		return err
	}
	if r.ended {
		return r.poison(fmt.Errorf("html rewriter: End called twice"))
	}
	r.ended = true

	if r.rawPassthrough {
		return r.flushRawPassthrough()
	}

	if err := r.tok.Feed(true); err != nil {
		if err := r.handleTokenizerError(err); err != nil {
			return err
		}
		return r.flushRawPassthrough()
	}
	if r.disp.Err() != nil {
		return r.poison(r.disp.Err())
	}
	if err := r.flushTo(r.buf, r.buf.Len()); err != nil {
		return err
	}
	if err := r.disp.DocumentEnd(); err != nil {
		return r.poison(err)
	}
	return nil
}

// handleTokenizerError implements the strict/non-strict split spec.md 7
// describes for a parsing ambiguity: strict mode surfaces it as a
// terminating ParsingAmbiguityError; non-strict mode degrades silently
// instead — the kernel is told to drop its poisoned state (Recover) and
// the caller switches to rawPassthrough, so every remaining byte reaches
// the sink untouched and unmatched rather than the rewriter halting.
// A nil return means the caller already has everything it needs to keep
// going (rawPassthrough is set); a non-nil return is the terminating
// poison error for every other failure class, ambiguity-in-strict-mode
// included.
func (r *Rewriter) handleTokenizerError(err error) error {
	var ambiguity *htmltok.ErrParsingAmbiguity
	if errors.As(err, &ambiguity) {
		mapped := &ParsingAmbiguityError{NameLower: ambiguity.NameLower}
		if !r.strict {
			r.bailedOut = true
			r.bailoutReason = mapped.Error()
			r.rawPassthrough = true
			r.tok.Recover()
			return nil
		}
		return r.poison(mapped)
	}
	return r.poison(err)
}

// poison records err as the terminating cause if none is recorded yet,
// and always returns that first cause — a handler or sink error that
// arrives after the rewriter is already poisoned doesn't displace the
// original reason.
func (r *Rewriter) poison(err error) error {
	if r.poisonErr == nil {
		r.poisonErr = err
	}
	return r.poisonErr
}

func (r *Rewriter) checkPoisoned() error {
	if r.poisonErr != nil {
		return &errPoisoned{cause: r.poisonErr}
	}
	return nil
}

// compact discards everything already reported to the sink. cursor is a
// buffer offset, so it restarts at 0 after the shift; openStack frames
// hold no buffer offsets, so nothing there needs realigning.
func (r *Rewriter) compact() {
	if r.cursor <= 0 {
		return
	}
	r.buf.ShiftFront(r.cursor, r.tok)
	r.cursor = 0
}

func (r *Rewriter) suppressed() bool {
	return r.suppressFrom >= 0 && len(r.openStack) > r.suppressFrom
}

// emit writes already-rendered output (mutation chunks, reconstructed tag
// text). flushTo is the other half: it copies a verbatim byte range
// straight out of the buffer without building a string first.
func (r *Rewriter) emit(s string) {
	if s == "" || r.poisonErr != nil {
		return
	}
	if err := r.out([]byte(s)); err != nil {
		r.poison(err)
	}
}

// flushTo writes buf's bytes from the cursor up to pos, verbatim, and
// advances the cursor. The sink must not retain the slice past the call,
// the same contract the kernel's own Lexemes carry.
func (r *Rewriter) flushTo(buf *buffer.Buffer, pos int) error {
	if r.poisonErr != nil {
		return r.poisonErr
	}
	if pos <= r.cursor {
		return nil
	}
	if err := r.out(buf.View()[r.cursor:pos]); err != nil {
		return r.poison(err)
	}
	r.cursor = pos
	return nil
}

func attrsMapFromLexeme(buf *buffer.Buffer, lex htmltok.Lexeme) map[string]string {
	if len(lex.Attrs) == 0 {
		return nil
	}
	view := buf.View()
	m := make(map[string]string, len(lex.Attrs))
	for _, a := range lex.Attrs {
		m[strings.ToLower(string(a.Name.Slice(view)))] = string(a.Value.Slice(view))
	}
	return m
}

func (r *Rewriter) scopedCommentFns() []func(*Comment) error {
	var fns []func(*Comment) error
	for _, f := range r.openStack {
		if f.placeholder {
			continue
		}
		fns = append(fns, f.commentFns...)
	}
	return fns
}

func (r *Rewriter) scopedTextFns() []func(*TextChunk) error {
	var fns []func(*TextChunk) error
	for _, f := range r.openStack {
		if f.placeholder {
			continue
		}
		fns = append(fns, f.textFns...)
	}
	return fns
}

func (r *Rewriter) emitStartTagOpen(tag *StartTag, ev *dispatch.StartTagEvent) {
	r.emit(renderChunks(tag.beforeChunks))
	if tag.removal == removalNone {
		if tag.newName == "" && tag.attrsUnchanged(ev.Lexeme.Attrs) {
			r.emit(string(ev.Lexeme.Full.Slice(ev.Buf.View())))
		} else {
			r.emit(tag.serializeOpenTag())
		}
	}
	r.emit(renderChunks(tag.prependChunks))
	if tag.innerSet {
		r.emit(renderChunks(tag.innerChunks))
	}
}

// ---- dispatch.Sink ------------------------------------------------------

func (r *Rewriter) HandleStartTag(ev *dispatch.StartTagEvent) (interface{}, error) {
	if err := r.checkPoisoned(); err != nil {
		return nil, err
	}

	if r.adjustCharset && ev.NameLower == "meta" {
		if cs := metaCharsetFromAttrs(attrsMapFromLexeme(ev.Buf, ev.Lexeme)); cs != "" {
			if r.enc.AdjustFromMetaTag(cs) == nil {
				r.adjustCharset = false
			}
		}
	}

	if r.suppressed() {
		r.openStack = append(r.openStack, &openFrame{nameLower: ev.NameLower, placeholder: true, suppressedAtPush: true})
		return nil, nil
	}

	if len(ev.Payloads) == 0 {
		if err := r.flushTo(ev.Buf, ev.Lexeme.Full.End); err != nil {
			return nil, err
		}
		r.openStack = append(r.openStack, &openFrame{nameLower: ev.NameLower, placeholder: true})
		return nil, nil
	}

	if err := r.flushTo(ev.Buf, ev.Lexeme.Full.Start); err != nil {
		return nil, err
	}

	tag := newStartTag(ev.Buf, ev.Lexeme, ev.NameLower, ev.Namespace)
	var commentFns []func(*Comment) error
	var textFns []func(*TextChunk) error
	for _, p := range ev.Payloads {
		if int(p) >= len(r.elementHandlers) {
			continue
		}
		h := r.elementHandlers[p]
		if h.Element != nil {
			if err := h.Element(tag); err != nil {
				tag.invalidate()
				return nil, r.poison(err)
			}
		}
		if h.Comments != nil {
			commentFns = append(commentFns, h.Comments)
		}
		if h.Text != nil {
			textFns = append(textFns, h.Text)
		}
	}

	r.emitStartTagOpen(tag, ev)

	frame := &openFrame{
		nameLower:    ev.NameLower,
		newName:      tag.newName,
		removal:      tag.removal,
		innerSet:     tag.innerSet,
		afterChunks:  tag.afterChunks,
		appendChunks: tag.appendChunks,
		onEndTag:     tag.onEndTag,
		commentFns:   commentFns,
		textFns:      textFns,
	}
	if tag.removal == removalFull || tag.innerSet {
		frame.suppressOrigin = true
		r.suppressFrom = len(r.openStack)
	}
	r.openStack = append(r.openStack, frame)
	tag.invalidate()
	r.cursor = ev.Lexeme.Full.End
	return nil, nil
}

func (r *Rewriter) HandleEndTag(ev *dispatch.EndTagEvent) error {
	if err := r.checkPoisoned(); err != nil {
		return err
	}

	var frame *openFrame
	if n := len(r.openStack); n > 0 && r.openStack[n-1].nameLower == ev.NameLower {
		frame = r.openStack[n-1]
		r.openStack = r.openStack[:n-1]
	}

	if frame == nil {
		if r.suppressed() {
			return nil
		}
		if !ev.Synthesized {
			if err := r.flushTo(ev.Buf, ev.Lexeme.Full.End); err != nil {
				return err
			}
		}
		return nil
	}

	if frame.placeholder {
		if frame.suppressedAtPush {
			return nil
		}
		if !ev.Synthesized {
			if err := r.flushTo(ev.Buf, ev.Lexeme.Full.End); err != nil {
				return err
			}
		}
		return nil
	}

	if !ev.Synthesized {
		if frame.suppressOrigin {
			// Descendant bytes were never flushed on the way in (every
			// nested Handle* call returned early under suppressed()), so
			// the gap back to this end tag's start is the suppressed
			// subtree's raw bytes. Advance past it without emitting —
			// flushing here would leak exactly the content Remove() or
			// SetInnerContent() was supposed to drop.
			r.cursor = ev.Lexeme.Full.Start
		} else if err := r.flushTo(ev.Buf, ev.Lexeme.Full.Start); err != nil {
			return err
		}
	}

	endTag := newEndTag(ev.NameLower, ev.Synthesized)
	if frame.onEndTag != nil {
		if err := frame.onEndTag(endTag); err != nil {
			endTag.invalidate()
			return r.poison(err)
		}
	}
	if frame.suppressOrigin {
		r.suppressFrom = -1
	}

	r.emit(renderChunks(frame.appendChunks))
	r.emit(renderChunks(endTag.beforeChunks))
	if frame.removal == removalNone && !ev.Synthesized && !endTag.removed {
		name := endTag.newName
		if name == "" {
			name = frame.newName
		}
		if name == "" {
			name = frame.nameLower
		}
		r.emit("</" + name + ">")
	}
	r.emit(renderChunks(endTag.afterChunks))
	r.emit(renderChunks(frame.afterChunks))
	endTag.invalidate()

	if !ev.Synthesized {
		r.cursor = ev.Lexeme.Full.End
	}
	return nil
}

func (r *Rewriter) HandleComment(ev *dispatch.CommentEvent) error {
	if err := r.checkPoisoned(); err != nil {
		return err
	}
	if r.suppressed() {
		return nil
	}
	if err := r.flushTo(ev.Buf, ev.Lexeme.Full.Start); err != nil {
		return err
	}

	c := newComment(ev.Buf, ev.Lexeme)
	for _, fn := range r.scopedCommentFns() {
		if err := fn(c); err != nil {
			c.invalidate()
			return r.poison(err)
		}
	}
	for _, fn := range r.docCommentFns {
		if err := fn(c); err != nil {
			c.invalidate()
			return r.poison(err)
		}
	}

	r.emit(renderChunks(c.beforeChunks))
	switch {
	case c.removed:
	case c.replaced:
		r.emit(renderChunks(c.replacement))
	default:
		r.emit("<!--" + c.text + "-->")
	}
	r.emit(renderChunks(c.afterChunks))
	c.invalidate()
	r.cursor = ev.Lexeme.Full.End
	return nil
}

func (r *Rewriter) HandleText(ev *dispatch.TextEvent) error {
	if err := r.checkPoisoned(); err != nil {
		return err
	}
	if r.suppressed() {
		return nil
	}
	if err := r.flushTo(ev.Buf, ev.Lexeme.Full.Start); err != nil {
		return err
	}

	text := string(ev.Lexeme.Full.Slice(ev.Buf.View()))
	chunk := newTextChunk(text, ev.Lexeme.TextType, ev.LastInTextNode)
	for _, fn := range r.scopedTextFns() {
		if err := fn(chunk); err != nil {
			chunk.invalidate()
			return r.poison(err)
		}
	}
	for _, fn := range r.docTextFns {
		if err := fn(chunk); err != nil {
			chunk.invalidate()
			return r.poison(err)
		}
	}

	r.emit(renderChunks(chunk.beforeChunks))
	switch {
	case chunk.removed:
	case chunk.replaced:
		r.emit(renderChunks(chunk.replacement))
	default:
		r.emit(chunk.text)
	}
	r.emit(renderChunks(chunk.afterChunks))
	chunk.invalidate()
	r.cursor = ev.Lexeme.Full.End
	return nil
}

func (r *Rewriter) HandleDoctype(ev *dispatch.DoctypeEvent) error {
	if err := r.checkPoisoned(); err != nil {
		return err
	}
	if r.suppressed() {
		return nil
	}
	if err := r.flushTo(ev.Buf, ev.Lexeme.Full.Start); err != nil {
		return err
	}

	dt := newDoctype(ev.Buf, ev.Lexeme.Doctype)
	for _, fn := range r.docDoctypeFns {
		if err := fn(dt); err != nil {
			dt.invalidate()
			return r.poison(err)
		}
	}

	if !dt.removed {
		r.emit(string(ev.Lexeme.Full.Slice(ev.Buf.View())))
	}
	dt.invalidate()
	r.cursor = ev.Lexeme.Full.End
	return nil
}

func (r *Rewriter) HandleDocumentEnd(buf *buffer.Buffer) error {
	de := newDocumentEnd()
	for _, fn := range r.docEndFns {
		if err := fn(de); err != nil {
			de.invalidate()
			return r.poison(err)
		}
	}
	r.emit(renderChunks(de.appendChunks))
	de.invalidate()
	return nil
}
