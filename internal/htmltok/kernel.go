// Package htmltok implements the two-tier HTML tokenizer: a table-less,
// function-per-state machine shared by an eager tag scanner and a full
// lexer, plus the local-name hash, text-type and namespace bookkeeping the
// tree-builder simulator needs to disambiguate text-parsing context.
//
// States are function values (the classic Go lexer idiom, e.g.
// text/template/parse's stateFn) rather than a table, exactly per spec.md
// 4.2: each state consumes one input byte and returns the next state, or
// the same state to keep waiting for more bytes.
package htmltok

import (
	"fmt"

	"github.com/streamhtml/rewriter/internal/buffer"
)

// Mode selects which actor the kernel currently behaves as. Both modes
// run through the same state functions; Mode only gates whether
// attribute/comment/doctype substructure is materialized and whether full
// Lexemes (vs bare TagHints) are emitted — this is the kernel's
// "Actions + Conditions" split made concrete as a single flag rather than
// two monomorphized implementations, a pragmatic simplification over the
// original's generic-actor design (see DESIGN.md).
type Mode uint8

const (
	ModeScan Mode = iota
	ModeFull
)

type stateFn func(t *Tokenizer, c byte, ok bool) stateFn

// Tokenizer drives the shared kernel across Feed calls. A single
// Tokenizer instance is reused across both actor modes so the cursor,
// last-start-tag-name-hash and current text-type survive a mode switch.
type Tokenizer struct {
	buf  *buffer.Buffer
	ctrl Controller
	mode Mode

	state stateFn
	pos   int // cursor into buf.View(), absolute within the current window

	// Boundaries of the lexeme currently being assembled.
	tokenStart int

	nameStart      int
	nameHash       uint64
	nameHashValid  bool
	nameHashBroken bool // true once a byte outside the packed grammar was seen
	isEndTag       bool
	selfClosing    bool

	attrs          []Attr
	curNameStart   int
	curValueStart  int
	curRawStart    int
	closingQuote   byte

	doctype Doctype

	textType  TextType
	textStart int
	// textNodeActive is true once some content has been reported for the
	// text node currently being accumulated, so the closing sentinel
	// (TextEndsNode true, zero-length) only fires for nodes that actually
	// had something fed through — mirrors text_decoder.rs's
	// pending_text_streaming_decoder.is_some() guard on flush_pending.
	textNodeActive bool

	// ambigFrom is the position of a '<' seen while scanning raw/RCDATA/
	// script text that might still turn out to be the appropriate end tag
	// (-1 when no such "</" is currently pending). It guards the
	// Write-call suspend flush in maybeFlushSuspended: those bytes aren't
	// confirmed text yet, so a suspend must leave them buffered rather
	// than reporting them as a chunk.
	ambigFrom int

	lastStartTagHash   uint64
	lastStartTagHashOK bool

	declMatch []byte // accumulates bytes after "<!" until the declaration kind is known

	// EOF handling: once the caller signals the last chunk and the state
	// machine reaches a point where it would otherwise suspend, Feed
	// drives one final synthetic EOF byte through the state function so
	// any pending text/comment/doctype/tag closes.
	eofDelivered bool

	poisoned error
}

// New creates a Tokenizer over buf, starting in ModeFull at the Data
// state. buf must be shared with whatever owns chunk appends and shifts;
// the Tokenizer must be passed to buf's ShiftFront calls as a
// buffer.Realignable.
func New(buf *buffer.Buffer, ctrl Controller) *Tokenizer {
	t := &Tokenizer{buf: buf, ctrl: ctrl, mode: ModeFull, ambigFrom: -1}
	t.state = stData
	return t
}

// Mode reports the actor the kernel currently runs as.
func (t *Tokenizer) Mode() Mode { return t.mode }

// SetMode switches actors. Per spec.md 4.2 this only happens at a tag
// boundary, enforced by callers (the dispatcher) issuing the switch from
// inside OnTagHint/OnLexeme.
func (t *Tokenizer) SetMode(m Mode) { t.mode = m }

// LastStartTagNameHash exposes the is_appropriate_end_tag condition's
// dependency: the hash of the most recently started tag.
func (t *Tokenizer) LastStartTagNameHash() (uint64, bool) {
	return t.lastStartTagHash, t.lastStartTagHashOK
}

// SetTextType forces the current text-parsing context, used when the
// controller's tree-builder simulator detects a text-type change after a
// start tag (script/style/title/textarea/... or a direct call from the
// dispatcher resuming after an excursion).
func (t *Tokenizer) SetTextType(tt TextType) { t.textType = tt }

// Pos reports the tokenizer's absolute cursor in the buffer's window,
// mainly for tests.
func (t *Tokenizer) Pos() int { return t.pos }

// Realign implements buffer.Realignable: every retained offset the
// tokenizer holds across a buffer shift must move with it.
func (t *Tokenizer) Realign(shift int) {
	t.pos -= shift
	t.tokenStart -= shift
	t.nameStart -= shift
	t.curNameStart -= shift
	t.curValueStart -= shift
	t.curRawStart -= shift
	t.textStart -= shift
	if t.ambigFrom >= 0 {
		t.ambigFrom -= shift
	}
	if t.doctype.HasName {
		t.doctype.Name.Realign(shift)
	}
	if t.doctype.HasPublicID {
		t.doctype.PublicID.Realign(shift)
	}
	if t.doctype.HasSystemID {
		t.doctype.SystemID.Realign(shift)
	}
	for i := range t.attrs {
		t.attrs[i].Realign(shift)
	}
}

// Feed drives the state machine over whatever bytes are currently
// available in buf's window starting at the tokenizer's cursor. It
// returns once the cursor has caught up with the window (more input
// needed) or a terminal error occurred. isLast forces any pending
// textual/comment/doctype lexeme to close once the window is drained.
func (t *Tokenizer) Feed(isLast bool) error {
	if t.poisoned != nil {
		return t.poisoned
	}
	view := t.buf.View()
	for {
		if t.pos >= len(view) {
			if !isLast {
				t.maybeFlushSuspended()
				return nil
			}
			if t.eofDelivered {
				return nil
			}
			t.eofDelivered = true
			t.state = t.state(t, 0, false)
			view = t.buf.View()
			continue
		}
		c := view[t.pos]
		t.pos++
		next := t.state(t, c, true)
		if t.poisoned != nil {
			return t.poisoned
		}
		t.state = next
		view = t.buf.View()
	}
}

// maybeFlushSuspended reports a partial text run to the controller when a
// Write call's bytes run out mid text-node, so a chunk-at-a-time Sink sees
// every intermediate piece (TextEndsNode false) instead of only the whole
// run once a tag boundary or EOF eventually closes it. It only reports
// bytes already certain to be text: a '<' still being evaluated as a
// possible tag (tokenStart != textStart) or a raw-text "</" that might
// still resolve to the appropriate end tag (ambigFrom set) must stay
// buffered for the next Feed call to resolve instead.
func (t *Tokenizer) maybeFlushSuspended() {
	if t.mode != ModeFull {
		t.textStart = t.pos
		return
	}
	switch t.textType {
	case Data:
		if t.tokenStart != t.textStart {
			return
		}
	case RawText, RCData, ScriptData:
		if t.ambigFrom != -1 {
			return
		}
	}
	if t.textStart >= t.pos {
		return
	}
	t.ctrl.OnLexeme(Lexeme{Kind: KindText, Full: buffer.Range{Start: t.textStart, End: t.pos}, TextType: t.textType})
	t.textNodeActive = true
	t.textStart = t.pos
	if t.textType == Data {
		t.tokenStart = t.pos
	}
}

func (t *Tokenizer) fail(err error) stateFn {
	t.poisoned = err
	return t.state
}

// Recover clears a poisoned Feed so the caller can abandon tokenizing
// for good without every later call just returning the same stale error.
// Meant for a non-strict silent-degradation bailout: the caller takes
// over emitting raw bytes directly and must not call Feed again.
func (t *Tokenizer) Recover() {
	t.poisoned = nil
}

func (t *Tokenizer) lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// ---- Data state -----------------------------------------------------

func stData(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.emitEOF()
	}
	switch t.textType {
	case PlainText:
		return stPlainTextRun(t, c, ok)
	case RawText, RCData, ScriptData:
		return stRawLikeRun(t, c, ok)
	}
	if c == '<' {
		t.flushText()
		t.tokenStart = t.pos - 1
		return stTagOpen
	}
	return stData
}

// flushText closes out a text node at a tag boundary. Grounded on
// text_decoder.rs's feed_text/flush_pending split: every content-bearing
// call reports TextEndsNode false, and once the node is known to truly end
// here a separate, always-empty sentinel lexeme carries TextEndsNode true
// — emitted only if some content call actually fired for this node
// (flush_pending is a no-op when its decoder was never fed), which is
// exactly what spec.md 8 scenario 5's ("he",false),("llo",false),("",true)
// sequence requires across a chunk-split text node.
func (t *Tokenizer) flushText() {
	if t.mode != ModeFull {
		t.textStart = t.pos
		return
	}
	end := t.pos - 1
	if end > t.textStart {
		t.ctrl.OnLexeme(Lexeme{Kind: KindText, Full: buffer.Range{Start: t.textStart, End: end}, TextType: t.textType})
		t.textNodeActive = true
	}
	t.textStart = t.pos
	t.emitTextNodeEnd(end)
}

// emitTextNodeEnd fires the zero-length, TextEndsNode-true sentinel that
// closes out the current text node at pos, if any content was reported
// for it.
func (t *Tokenizer) emitTextNodeEnd(pos int) {
	if !t.textNodeActive {
		return
	}
	t.ctrl.OnLexeme(Lexeme{Kind: KindText, Full: buffer.Range{Start: pos, End: pos}, TextType: t.textType, TextEndsNode: true})
	t.textNodeActive = false
}

func (t *Tokenizer) emitEOF() stateFn {
	if t.textStart < t.pos && t.mode == ModeFull {
		t.ctrl.OnLexeme(Lexeme{Kind: KindText, Full: buffer.Range{Start: t.textStart, End: t.pos}, TextType: t.textType})
		t.textNodeActive = true
	}
	t.textStart = t.pos
	t.ambigFrom = -1
	if t.mode == ModeFull {
		t.emitTextNodeEnd(t.pos)
		t.ctrl.OnLexeme(Lexeme{Kind: KindEOF, Full: buffer.Range{Start: t.pos, End: t.pos}})
	}
	return stData
}

// ---- Raw/RCData/ScriptData text runs ---------------------------------
//
// These three text types share one end-condition shape: the run continues
// until "</" followed by an appropriate end tag name (spec.md's
// is_appropriate_end_tag condition), or EOF. They differ only in whether
// character references are later decoded when the text is materialized
// (AllowsEntities), which happens in the rewritable-unit layer, not here.

func stRawLikeRun(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.emitEOF()
	}
	if c == '<' {
		t.ambigFrom = t.pos - 1
		return stRawLikeLT
	}
	return stData
}

func stRawLikeLT(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.emitEOF()
	}
	if c != '/' {
		t.ambigFrom = -1
		return stData
	}
	t.nameStart = t.pos
	t.nameHash = 0
	t.nameHashBroken = false
	return stRawLikeEndTagName
}

func stRawLikeEndTagName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.emitEOF()
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '>' || c == '/':
		name := t.buf.View()[t.nameStart : t.pos-1]
		hash, okh := NameHash(name)
		last, lastOK := t.LastStartTagNameHash()
		appropriate := okh && lastOK && hash == last
		if appropriate {
			t.flushTextUpTo(t.tokenStartForEndTag())
			return stEndTagName(t, c, ok)
		}
		t.ambigFrom = -1
		return stData
	default:
		return stRawLikeEndTagName
	}
}

// tokenStartForEndTag locates where "</" began for the end tag we just
// confirmed is appropriate, so the preceding text run can be flushed right
// up to it.
func (t *Tokenizer) tokenStartForEndTag() int {
	return t.nameStart - 2
}

func (t *Tokenizer) flushTextUpTo(pos int) {
	t.ambigFrom = -1
	if t.mode != ModeFull {
		t.textStart = pos
		t.tokenStart = pos
		return
	}
	if pos > t.textStart {
		t.ctrl.OnLexeme(Lexeme{Kind: KindText, Full: buffer.Range{Start: t.textStart, End: pos}, TextType: t.textType})
		t.textNodeActive = true
	}
	t.textStart = pos
	t.tokenStart = pos
	t.emitTextNodeEnd(pos)
}

func stPlainTextRun(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.emitEOF()
	}
	return stData
}

// ---- Tag open ---------------------------------------------------------

func stTagOpen(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in tag open state"))
	}
	switch {
	case c == '!':
		return stMarkupDeclOpen
	case c == '/':
		return stEndTagOpen
	case isASCIIAlpha(c):
		t.isEndTag = false
		t.nameStart = t.pos - 1
		t.nameHash = 0
		t.nameHashBroken = false
		t.attrs = t.attrs[:0]
		t.selfClosing = false
		return stTagName(t, c, ok)
	default:
		// Not a tag; '<' was literal text. Resume the data run.
		t.textStart = t.tokenStart
		return stData
	}
}

func stEndTagOpen(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input after </"))
	}
	if isASCIIAlpha(c) {
		t.isEndTag = true
		t.nameStart = t.pos - 1
		t.nameHash = 0
		t.nameHashBroken = false
		return stTagName(t, c, ok)
	}
	if c == '>' {
		// "</>" — treated as a stray end tag, ignored entirely. Both
		// textStart and tokenStart must land back together here, or a
		// later suspend flush would see them mismatched and wrongly think
		// a tag scan is still pending.
		t.textStart = t.pos
		t.tokenStart = t.pos
		return stData
	}
	return stBogusComment(t, c, ok)
}

func isASCIIAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func (t *Tokenizer) accumulateNameHash(c byte) {
	if t.nameHashBroken {
		return
	}
	v, valid := packedValue(c)
	if !valid {
		t.nameHashBroken = true
		return
	}
	if t.nameHash>>(64-5) != 0 {
		t.nameHashBroken = true
		return
	}
	t.nameHash = t.nameHash<<5 | uint64(v)
}

func stTagName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in tag name"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		return stBeforeAttrName
	case c == '/':
		return stSelfClosingStartTag
	case c == '>':
		return t.finishStartTagName()
	default:
		t.accumulateNameHash(c)
		return stTagName
	}
}

func (t *Tokenizer) finishStartTagName() stateFn {
	// The name ends at the first byte that ended it in stTagName; any
	// attributes between it and the closing '>' are not part of it.
	view := t.buf.View()
	end := t.nameStart
	for end < t.pos-1 {
		if c := view[end]; c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '/' || c == '>' {
			break
		}
		end++
	}
	name := buffer.Range{Start: t.nameStart, End: end}
	if t.isEndTag {
		return t.finishEndTag(name)
	}
	return t.finishStartTag(name, false)
}

func stEndTagName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in end tag name"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		return stBogusEndTagAttrs
	case c == '/':
		return stBogusEndTagAttrs
	case c == '>':
		name := buffer.Range{Start: t.nameStart, End: t.pos - 1}
		return t.finishEndTag(name)
	default:
		t.accumulateNameHash(c)
		return stEndTagName
	}
}

// stBogusEndTagAttrs discards any attribute-like junk inside an end tag
// (HTML permits </div  class="x"> syntactically, attributes are ignored).
func stBogusEndTagAttrs(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in end tag"))
	}
	if c == '>' {
		name := buffer.Range{Start: t.nameStart, End: t.nameEndForBogus()}
		return t.finishEndTag(name)
	}
	return stBogusEndTagAttrs
}

func (t *Tokenizer) nameEndForBogus() int {
	// The name ended wherever whitespace/'/' was first seen; we don't
	// track that separately here, so recompute from nameHash length isn't
	// reliable — callers only need Name for byte-compare fallback when
	// the hash is broken, and for hashed names the hash already stopped
	// accumulating at the boundary. Re-deriving the exact end is done by
	// scanning back from the current position to the last non-whitespace
	// run start, which nameStart already anchors via the hash accumulation
	// loop; in bogus-attrs mode we conservatively use nameStart's own
	// accumulated length.
	return t.nameStart + hashedLen(t.nameHash, t.nameHashBroken)
}

func hashedLen(h uint64, broken bool) int {
	if broken {
		return 0
	}
	n := 0
	for x := h; x != 0; x >>= 5 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

func (t *Tokenizer) finishEndTag(name buffer.Range) stateFn {
	hash, hok := NameHash(t.buf.View()[name.Start:name.End])
	// Closing the element that switched us into a non-Data text type
	// always returns to Data: RawText/RCData/ScriptData/PlainText
	// elements never nest, so there is no outer context to restore.
	t.textType = Data
	t.textStart = t.pos
	t.tokenStart = t.pos
	full := buffer.Range{Start: t.tokenStartSaved(), End: t.pos}
	if t.mode == ModeScan {
		hint := TagHint{IsEnd: true, Name: name, NameHash: hash, NameHashOK: hok, Full: full}
		dir := t.ctrl.OnTagHint(hint)
		t.applyDirective(dir)
		return stData
	}
	lex := Lexeme{Kind: KindEndTag, Full: full, Name: name, NameHash: hash, NameHashOK: hok}
	dir := t.ctrl.OnLexeme(lex)
	t.applyDirective(dir)
	return stData
}

func (t *Tokenizer) tokenStartSaved() int { return t.tokenStart }

func (t *Tokenizer) applyDirective(dir ParserDirective) {
	switch dir {
	case DirectiveSwitchToScanner:
		t.mode = ModeScan
	case DirectiveSwitchToLexer:
		t.mode = ModeFull
	}
}

func (t *Tokenizer) finishStartTag(name buffer.Range, selfClosing bool) stateFn {
	nameBytes := t.buf.View()[name.Start:name.End]
	hash, hok := NameHash(nameBytes)
	if hok {
		t.lastStartTagHash, t.lastStartTagHashOK = hash, true
	} else {
		t.lastStartTagHashOK = false
	}

	full := buffer.Range{Start: t.tokenStartSaved(), End: t.pos}
	t.textStart = t.pos
	t.tokenStart = t.pos

	nameLower := asciiLower(string(nameBytes))
	tt, changed, ambiguous := t.ctrl.TextTypeAfterStartTag(nameLower, selfClosing || t.selfClosing)
	if ambiguous {
		return t.fail(&ErrParsingAmbiguity{NameLower: nameLower})
	}
	if changed && !selfClosing && !t.selfClosing {
		t.textType = tt
	} else if !changed {
		t.textType = Data
	}

	if t.mode == ModeScan {
		hint := TagHint{Name: name, NameHash: hash, NameHashOK: hok, Full: full, SelfClosing: selfClosing || t.selfClosing}
		dir := t.ctrl.OnTagHint(hint)
		t.applyDirective(dir)
		return stData
	}
	lex := Lexeme{
		Kind: KindStartTag, Full: full, Name: name, NameHash: hash, NameHashOK: hok,
		Attrs: append([]Attr(nil), t.attrs...), SelfClosing: selfClosing || t.selfClosing,
	}
	dir := t.ctrl.OnLexeme(lex)
	t.applyDirective(dir)
	return stData
}

// ---- Attributes (only materialized in ModeFull; structurally parsed in
// both modes so state transitions stay correct, per spec.md 4.2) --------

func stBeforeAttrName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input before attribute name"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		return stBeforeAttrName
	case c == '/':
		return stSelfClosingStartTag
	case c == '>':
		return t.finishStartTagName()
	default:
		t.curNameStart = t.pos - 1
		t.curRawStart = t.curNameStart
		return stAttrName
	}
}

func stAttrName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in attribute name"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		t.recordBareAttr()
		return stAfterAttrName
	case c == '/':
		t.recordBareAttr()
		return stSelfClosingStartTag
	case c == '=':
		return stBeforeAttrValue
	case c == '>':
		t.recordBareAttr()
		return t.finishStartTagName()
	default:
		return stAttrName
	}
}

func (t *Tokenizer) recordBareAttr() {
	if t.mode != ModeFull {
		return
	}
	name := buffer.Range{Start: t.curNameStart, End: t.pos - 1}
	raw := buffer.Range{Start: t.curRawStart, End: t.pos - 1}
	t.attrs = append(t.attrs, Attr{Name: name, Value: buffer.Range{Start: t.pos - 1, End: t.pos - 1}, Raw: raw})
}

func stAfterAttrName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input after attribute name"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		return stAfterAttrName
	case c == '/':
		return stSelfClosingStartTag
	case c == '=':
		// The bare attribute recorded in stAttrName's caller is actually
		// going to get a value; drop it and re-record with a value once
		// the value closes (handled in stBeforeAttrValue's finishers).
		if t.mode == ModeFull && len(t.attrs) > 0 {
			t.attrs = t.attrs[:len(t.attrs)-1]
		}
		return stBeforeAttrValue
	case c == '>':
		return t.finishStartTagName()
	default:
		t.curNameStart = t.pos - 1
		t.curRawStart = t.curNameStart
		return stAttrName
	}
}

func stBeforeAttrValue(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input before attribute value"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		return stBeforeAttrValue
	case c == '"' || c == '\'':
		t.closingQuote = c
		t.curValueStart = t.pos
		return stAttrValueQuoted
	case c == '>':
		return t.finishStartTagName()
	default:
		t.curValueStart = t.pos - 1
		return stAttrValueUnquoted
	}
}

func stAttrValueQuoted(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in quoted attribute value"))
	}
	if c == t.closingQuote {
		t.recordQuotedAttr()
		return stAfterAttrValueQuoted
	}
	return stAttrValueQuoted
}

func (t *Tokenizer) recordQuotedAttr() {
	if t.mode != ModeFull {
		return
	}
	name := buffer.Range{Start: t.curNameStart, End: t.curValueStart - 2}
	value := buffer.Range{Start: t.curValueStart, End: t.pos - 1}
	raw := buffer.Range{Start: t.curRawStart, End: t.pos}
	t.attrs = append(t.attrs, Attr{Name: name, Value: value, Raw: raw})
}

func stAfterAttrValueQuoted(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input after quoted attribute value"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		return stBeforeAttrName
	case c == '/':
		return stSelfClosingStartTag
	case c == '>':
		return t.finishStartTagName()
	default:
		return stBeforeAttrName(t, c, ok)
	}
}

func stAttrValueUnquoted(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in unquoted attribute value"))
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		t.recordUnquotedAttr(t.pos - 1)
		return stBeforeAttrName
	case c == '>':
		t.recordUnquotedAttr(t.pos - 1)
		return t.finishStartTagName()
	default:
		return stAttrValueUnquoted
	}
}

func (t *Tokenizer) recordUnquotedAttr(end int) {
	if t.mode != ModeFull {
		return
	}
	name := buffer.Range{Start: t.curNameStart, End: t.curValueStart - 1}
	value := buffer.Range{Start: t.curValueStart, End: end}
	raw := buffer.Range{Start: t.curRawStart, End: end}
	t.attrs = append(t.attrs, Attr{Name: name, Value: value, Raw: raw})
}

func stSelfClosingStartTag(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input after /"))
	}
	if c == '>' {
		return t.finishStartTag(buffer.Range{Start: t.nameStart, End: t.selfClosingNameEnd()}, true)
	}
	return stBeforeAttrName(t, c, ok)
}

func (t *Tokenizer) selfClosingNameEnd() int {
	// Name range is fixed once we leave stTagName; recovering it exactly
	// at the self-closing slash only matters for the byte-compare
	// fallback path, so reuse the hashed length when available.
	if t.nameHashBroken {
		return t.nameStart
	}
	n := hashedLen(t.nameHash, false)
	return t.nameStart + n
}

// ---- Markup declarations: comments and doctype ------------------------

func stMarkupDeclOpen(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input after <!"))
	}
	t.declMatch = []byte{c}
	return stMarkupDeclSniff
}

func stMarkupDeclSniff(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input in markup declaration"))
	}
	t.declMatch = append(t.declMatch, c)
	switch {
	case bytesEqualFold(t.declMatch, []byte("--")):
		t.tokenStart = t.pos - len(t.declMatch) - 2
		return stCommentStart
	case len(t.declMatch) <= 7 && bytesHasPrefixFold(t.declMatch, []byte("DOCTYPE")):
		if len(t.declMatch) == 7 {
			t.tokenStart = t.pos - 9
			return stBeforeDoctypeName
		}
		return stMarkupDeclSniff
	case len(t.declMatch) <= 7 && bytesHasPrefixFold(t.declMatch, []byte("[CDATA[")) && t.ctrl.CDataAllowed():
		if len(t.declMatch) == 7 {
			t.textType = CDataSection
			t.textStart = t.pos
			return stData
		}
		return stMarkupDeclSniff
	default:
		return stBogusComment(t, c, ok)
	}
}

func bytesEqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if asciiLowerByte(a[i]) != asciiLowerByte(b[i]) {
			return false
		}
	}
	return true
}

func bytesHasPrefixFold(a, prefix []byte) bool {
	if len(a) > len(prefix) {
		return false
	}
	for i := range a {
		if asciiLowerByte(a[i]) != asciiLowerByte(prefix[i]) {
			return false
		}
	}
	return true
}

func asciiLowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func stBogusComment(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.finishComment(t.pos)
	}
	if c == '>' {
		return t.finishComment(t.pos - 1)
	}
	return stBogusComment
}

func stCommentStart(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input at comment start"))
	}
	t.textStart = t.pos - 1
	if c == '-' {
		return stCommentStartDash
	}
	if c == '>' {
		return t.finishComment(t.pos - 1)
	}
	return stComment(t, c, ok)
}

func stCommentStartDash(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.fail(fmt.Errorf("unexpected end of input at comment start dash"))
	}
	if c == '>' {
		return t.finishComment(t.pos - 2)
	}
	return stComment(t, c, ok)
}

func stComment(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.finishComment(t.pos)
	}
	if c == '-' {
		return stCommentEndDash
	}
	return stComment
}

func stCommentEndDash(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.finishComment(t.pos)
	}
	if c == '-' {
		return stCommentEnd
	}
	return stComment(t, c, ok)
}

func stCommentEnd(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		return t.finishComment(t.pos)
	}
	switch c {
	case '>':
		return t.finishComment(t.pos - 3)
	case '-':
		return stCommentEnd
	default:
		return stComment(t, c, ok)
	}
}

func (t *Tokenizer) finishComment(contentEnd int) stateFn {
	full := buffer.Range{Start: t.tokenStart, End: t.pos}
	content := buffer.Range{Start: t.textStart, End: contentEnd}
	if content.End < content.Start {
		content.End = content.Start
	}
	t.textStart = t.pos
	t.tokenStart = t.pos
	if t.mode == ModeFull {
		t.ctrl.OnLexeme(Lexeme{Kind: KindComment, Full: full, Name: content})
	}
	return stData
}

// ---- Doctype (simplified: public/system identifiers are recognized
// structurally but only their presence/absence plus raw span matters for
// rewriting; this is a DOCTYPE token, never a rewrite target beyond
// remove()/inspection per spec.md 4.6). ---------------------------------

func stBeforeDoctypeName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		t.doctype.ForceQuirks = true
		return t.finishDoctype(t.pos)
	}
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\f':
		return stBeforeDoctypeName
	case c == '>':
		t.doctype.ForceQuirks = true
		return t.finishDoctype(t.pos - 1)
	default:
		t.doctype.HasName = true
		t.doctype.Name.Start = t.pos - 1
		return stDoctypeName
	}
}

func stDoctypeName(t *Tokenizer, c byte, ok bool) stateFn {
	if !ok {
		t.doctype.Name.End = t.pos
		return t.finishDoctype(t.pos)
	}
	if c == '>' {
		t.doctype.Name.End = t.pos - 1
		return t.finishDoctype(t.pos - 1)
	}
	return stDoctypeName
}

func (t *Tokenizer) finishDoctype(end int) stateFn {
	full := buffer.Range{Start: t.tokenStart, End: t.pos}
	t.textStart = t.pos
	t.tokenStart = t.pos
	if t.mode == ModeFull {
		t.ctrl.OnLexeme(Lexeme{Kind: KindDoctype, Full: full, Doctype: t.doctype})
	}
	t.doctype = Doctype{}
	return stData
}
