package rewriter

import (
	"html"
	"strings"

	"github.com/streamhtml/rewriter/internal/buffer"
	"github.com/streamhtml/rewriter/internal/htmltok"
)

// ContentType selects how a string passed to a mutation method is escaped
// before being written to the output, per spec.md 4.6.
type ContentType uint8

const (
	// Html content is emitted verbatim.
	Html ContentType = iota
	// Text content is escaped (&, <, >, ", ') before being emitted.
	Text
)

// mutationChunk is one piece of an ordered content_before/content_after/
// replacement list.
type mutationChunk struct {
	content string
	ct      ContentType
}

func (c mutationChunk) render() string {
	if c.ct == Text {
		return html.EscapeString(c.content)
	}
	return c.content
}

func renderChunks(chunks []mutationChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.render())
	}
	return b.String()
}

// removalMode distinguishes StartTag.Remove (tags and content both
// dropped) from StartTag.RemoveAndKeepContent (only the tag bytes
// dropped, descendants still flow through).
type removalMode uint8

const (
	removalNone removalMode = iota
	removalFull
	removalKeepContent
)

func validTagName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch c := name[i]; {
		case c == ' ', c == '\t', c == '\n', c == '\r', c == '\f',
			c == '"', c == '\'', c == '>', c == '/', c == '=', c == '<':
			return false
		}
	}
	return true
}

func validAttrName(name string) bool {
	return validTagName(name)
}

// --- StartTag ---------------------------------------------------------

// StartTag wraps a matched start-tag lexeme. It is valid only for the
// duration of the handler call it was passed to: any reference retained
// past that call panics on first use, the sentinel-invalidation approach
// spec.md 4.6/9 calls for in place of a borrow checker.
type StartTag struct {
	buf       *buffer.Buffer
	lex       htmltok.Lexeme
	nameLower string
	namespace htmltok.Namespace

	attrNames  []string // lowercased, in original document order
	attrValues []string // parallel to attrNames
	newName    string

	beforeChunks  []mutationChunk
	afterChunks   []mutationChunk
	prependChunks []mutationChunk
	appendChunks  []mutationChunk
	innerChunks   []mutationChunk
	innerSet      bool
	removal       removalMode

	onEndTag func(*EndTag) error

	valid bool
}

func newStartTag(buf *buffer.Buffer, lex htmltok.Lexeme, nameLower string, ns htmltok.Namespace) *StartTag {
	t := &StartTag{buf: buf, lex: lex, nameLower: nameLower, namespace: ns, valid: true}
	view := buf.View()
	for _, a := range lex.Attrs {
		t.attrNames = append(t.attrNames, strings.ToLower(string(a.Name.Slice(view))))
		t.attrValues = append(t.attrValues, string(a.Value.Slice(view)))
	}
	return t
}

func (t *StartTag) checkValid() {
	if !t.valid {
		panic("html rewriter: start tag token used after its handler returned")
	}
}

func (t *StartTag) invalidate() { t.valid = false }

// Name reports the element's tag name as written in the source (lowercased).
func (t *StartTag) Name() string { t.checkValid(); return t.nameLower }

// SetName renames the element's start (and, via its paired end tag,
// closing) tag.
func (t *StartTag) SetName(name string) error {
	t.checkValid()
	if !validTagName(name) {
		return &ContentMutationError{Kind: InvalidTagName, Value: name}
	}
	t.newName = name
	return nil
}

// SelfClosing reports whether the source used self-closing (`/>`) syntax.
func (t *StartTag) SelfClosing() bool { t.checkValid(); return t.lex.SelfClosing }

// Namespace reports the element's namespace (HTML, SVG or MathML).
func (t *StartTag) Namespace() htmltok.Namespace { t.checkValid(); return t.namespace }

// GetAttribute returns an attribute's value and whether it was present.
func (t *StartTag) GetAttribute(name string) (string, bool) {
	t.checkValid()
	name = strings.ToLower(name)
	for i, n := range t.attrNames {
		if n == name {
			return t.attrValues[i], true
		}
	}
	return "", false
}

// HasAttribute reports whether the attribute is present.
func (t *StartTag) HasAttribute(name string) bool {
	_, ok := t.GetAttribute(name)
	return ok
}

// SetAttribute adds the attribute if absent, or updates its value.
func (t *StartTag) SetAttribute(name, value string) error {
	t.checkValid()
	lname := strings.ToLower(name)
	if !validAttrName(lname) {
		return &ContentMutationError{Kind: InvalidAttributeName, Value: name}
	}
	for i, n := range t.attrNames {
		if n == lname {
			t.attrValues[i] = value
			return nil
		}
	}
	t.attrNames = append(t.attrNames, lname)
	t.attrValues = append(t.attrValues, value)
	return nil
}

// RemoveAttribute deletes the attribute if present.
func (t *StartTag) RemoveAttribute(name string) {
	t.checkValid()
	name = strings.ToLower(name)
	for i, n := range t.attrNames {
		if n == name {
			t.attrNames = append(t.attrNames[:i], t.attrNames[i+1:]...)
			t.attrValues = append(t.attrValues[:i], t.attrValues[i+1:]...)
			return
		}
	}
}

// Before inserts content immediately before this element.
func (t *StartTag) Before(content string, ct ContentType) {
	t.checkValid()
	t.beforeChunks = append(t.beforeChunks, mutationChunk{content, ct})
}

// After inserts content immediately after this element's closing tag (or,
// for a void/self-closing element, immediately after the tag itself).
func (t *StartTag) After(content string, ct ContentType) {
	t.checkValid()
	t.afterChunks = append(t.afterChunks, mutationChunk{content, ct})
}

// Prepend inserts content as the first thing inside this element.
func (t *StartTag) Prepend(content string, ct ContentType) {
	t.checkValid()
	t.prependChunks = append(t.prependChunks, mutationChunk{content, ct})
}

// Append inserts content as the last thing inside this element, before
// its closing tag.
func (t *StartTag) Append(content string, ct ContentType) {
	t.checkValid()
	t.appendChunks = append(t.appendChunks, mutationChunk{content, ct})
}

// SetInnerContent replaces everything between this element's start and
// end tags.
func (t *StartTag) SetInnerContent(content string, ct ContentType) {
	t.checkValid()
	t.innerChunks = []mutationChunk{{content, ct}}
	t.innerSet = true
}

// Remove drops the element entirely: start tag, end tag and all content.
func (t *StartTag) Remove() { t.checkValid(); t.removal = removalFull }

// RemoveAndKeepContent drops only the start and end tag bytes; descendant
// content is left in place (and still visible to other handlers).
func (t *StartTag) RemoveAndKeepContent() { t.checkValid(); t.removal = removalKeepContent }

// OnEndTag registers a callback for this element's paired end tag (real
// or synthesized, for void/self-closing elements). At most one callback
// may be registered; a later call overwrites an earlier one.
func (t *StartTag) OnEndTag(fn func(*EndTag) error) {
	t.checkValid()
	t.onEndTag = fn
}

func (t *StartTag) serializeOpenTag() string {
	name := t.nameLower
	if t.newName != "" {
		name = t.newName
	}
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(name)
	for i, n := range t.attrNames {
		b.WriteByte(' ')
		b.WriteString(n)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(t.attrValues[i]))
		b.WriteByte('"')
	}
	if t.lex.SelfClosing {
		b.WriteString(" />")
	} else {
		b.WriteByte('>')
	}
	return b.String()
}

func (t *StartTag) attrsUnchanged(original []htmltok.Attr) bool {
	if len(original) != len(t.attrNames) {
		return false
	}
	view := t.buf.View()
	for i, a := range original {
		if strings.ToLower(string(a.Name.Slice(view))) != t.attrNames[i] {
			return false
		}
		if string(a.Value.Slice(view)) != t.attrValues[i] {
			return false
		}
	}
	return true
}

// --- EndTag -------------------------------------------------------------

// EndTag wraps a matched (real or synthesized) end tag. Valid only for
// the duration of the OnEndTag callback it was passed to.
type EndTag struct {
	nameLower   string
	newName     string
	synthesized bool

	beforeChunks []mutationChunk
	afterChunks  []mutationChunk
	removed      bool

	valid bool
}

func newEndTag(nameLower string, synthesized bool) *EndTag {
	return &EndTag{nameLower: nameLower, synthesized: synthesized, valid: true}
}

func (t *EndTag) checkValid() {
	if !t.valid {
		panic("html rewriter: end tag token used after its handler returned")
	}
}

func (t *EndTag) invalidate() { t.valid = false }

// Name reports the closing tag's name.
func (t *EndTag) Name() string { t.checkValid(); return t.nameLower }

// SetName renames the closing tag.
func (t *EndTag) SetName(name string) error {
	t.checkValid()
	if !validTagName(name) {
		return &ContentMutationError{Kind: InvalidTagName, Value: name}
	}
	t.newName = name
	return nil
}

// Synthesized reports whether this close was synthesized (void element,
// self-closing foreign element) rather than a literal end tag in the
// source.
func (t *EndTag) Synthesized() bool { t.checkValid(); return t.synthesized }

// Before inserts content immediately before this end tag.
func (t *EndTag) Before(content string, ct ContentType) {
	t.checkValid()
	t.beforeChunks = append(t.beforeChunks, mutationChunk{content, ct})
}

// After inserts content immediately after this end tag.
func (t *EndTag) After(content string, ct ContentType) {
	t.checkValid()
	t.afterChunks = append(t.afterChunks, mutationChunk{content, ct})
}

// Remove drops just this end tag's bytes.
func (t *EndTag) Remove() { t.checkValid(); t.removed = true }

// --- Comment --------------------------------------------------------------

// Comment wraps a matched comment lexeme.
type Comment struct {
	buf  *buffer.Buffer
	lex  htmltok.Lexeme
	text string

	beforeChunks []mutationChunk
	afterChunks  []mutationChunk
	replacement  []mutationChunk
	replaced     bool
	removed      bool

	valid bool
}

func newComment(buf *buffer.Buffer, lex htmltok.Lexeme) *Comment {
	// The kernel reuses Lexeme.Name to carry a comment's inner content
	// range (Full spans the whole "<!--...-->").
	return &Comment{buf: buf, lex: lex, text: string(lex.Name.Slice(buf.View())), valid: true}
}

func (c *Comment) checkValid() {
	if !c.valid {
		panic("html rewriter: comment token used after its handler returned")
	}
}

func (c *Comment) invalidate() { c.valid = false }

// Text returns the comment's text (the bytes between `<!--` and `-->`).
func (c *Comment) Text() string { c.checkValid(); return c.text }

// SetText replaces the comment's text. It fails with a ContentMutationError
// if text contains the sequence "-->", which would prematurely close the
// comment in the output.
func (c *Comment) SetText(text string) error {
	c.checkValid()
	if strings.Contains(text, "-->") {
		return &ContentMutationError{Kind: CommentClosingSequence, Value: text}
	}
	c.text = text
	return nil
}

// Before inserts content immediately before this comment.
func (c *Comment) Before(content string, ct ContentType) {
	c.checkValid()
	c.beforeChunks = append(c.beforeChunks, mutationChunk{content, ct})
}

// After inserts content immediately after this comment.
func (c *Comment) After(content string, ct ContentType) {
	c.checkValid()
	c.afterChunks = append(c.afterChunks, mutationChunk{content, ct})
}

// Replace substitutes the entire comment (markers included) with content.
func (c *Comment) Replace(content string, ct ContentType) {
	c.checkValid()
	c.replacement = []mutationChunk{{content, ct}}
	c.replaced = true
}

// Remove drops the comment entirely.
func (c *Comment) Remove() { c.checkValid(); c.removed = true }

// --- TextChunk --------------------------------------------------------

// TextChunk wraps one decoded run of a text node. Text nodes are delivered
// as a sequence of chunks; the final chunk has LastInTextNode true and may
// be empty (spec.md 4.6, 8).
type TextChunk struct {
	text           string
	textType       htmltok.TextType
	lastInTextNode bool

	beforeChunks []mutationChunk
	afterChunks  []mutationChunk
	replacement  []mutationChunk
	replaced     bool
	removed      bool

	valid bool
}

func newTextChunk(text string, tt htmltok.TextType, last bool) *TextChunk {
	return &TextChunk{text: text, textType: tt, lastInTextNode: last, valid: true}
}

func (c *TextChunk) checkValid() {
	if !c.valid {
		panic("html rewriter: text chunk token used after its handler returned")
	}
}

func (c *TextChunk) invalidate() { c.valid = false }

// AsStr returns the chunk's decoded text.
func (c *TextChunk) AsStr() string { c.checkValid(); return c.text }

// TextType reports the lexical context (Data, RCData, RawText, ScriptData,
// PlainText or CDataSection) this chunk was produced under.
func (c *TextChunk) TextType() htmltok.TextType { c.checkValid(); return c.textType }

// LastInTextNode reports whether this is the final chunk of its text node.
func (c *TextChunk) LastInTextNode() bool { c.checkValid(); return c.lastInTextNode }

// Before inserts content immediately before this chunk.
func (c *TextChunk) Before(content string, ct ContentType) {
	c.checkValid()
	c.beforeChunks = append(c.beforeChunks, mutationChunk{content, ct})
}

// After inserts content immediately after this chunk.
func (c *TextChunk) After(content string, ct ContentType) {
	c.checkValid()
	c.afterChunks = append(c.afterChunks, mutationChunk{content, ct})
}

// Replace substitutes this chunk's text with content.
func (c *TextChunk) Replace(content string, ct ContentType) {
	c.checkValid()
	c.replacement = []mutationChunk{{content, ct}}
	c.replaced = true
}

// Remove drops this chunk's text (surrounding Before/After inserts still
// apply).
func (c *TextChunk) Remove() { c.checkValid(); c.removed = true }

// --- Doctype ------------------------------------------------------------

// Doctype wraps a matched doctype lexeme.
type Doctype struct {
	name        string
	publicID    string
	hasPublicID bool
	systemID    string
	hasSystemID bool
	forceQuirks bool
	removed     bool

	valid bool
}

func newDoctype(buf *buffer.Buffer, d htmltok.Doctype) *Doctype {
	view := buf.View()
	dt := &Doctype{
		hasPublicID: d.HasPublicID,
		hasSystemID: d.HasSystemID,
		forceQuirks: d.ForceQuirks,
		valid:       true,
	}
	if d.HasName {
		dt.name = string(d.Name.Slice(view))
	}
	if d.HasPublicID {
		dt.publicID = string(d.PublicID.Slice(view))
	}
	if d.HasSystemID {
		dt.systemID = string(d.SystemID.Slice(view))
	}
	return dt
}

func (d *Doctype) checkValid() {
	if !d.valid {
		panic("html rewriter: doctype token used after its handler returned")
	}
}

func (d *Doctype) invalidate() { d.valid = false }

// Name reports the doctype's name (usually "html").
func (d *Doctype) Name() string { d.checkValid(); return d.name }

// PublicID reports the doctype's public identifier, if any.
func (d *Doctype) PublicID() (string, bool) { d.checkValid(); return d.publicID, d.hasPublicID }

// SystemID reports the doctype's system identifier, if any.
func (d *Doctype) SystemID() (string, bool) { d.checkValid(); return d.systemID, d.hasSystemID }

// ForceQuirks reports whether the tokenizer flagged this doctype as
// forcing quirks mode.
func (d *Doctype) ForceQuirks() bool { d.checkValid(); return d.forceQuirks }

// Remove drops the doctype declaration entirely.
func (d *Doctype) Remove() { d.checkValid(); d.removed = true }

// --- DocumentEnd --------------------------------------------------------

// DocumentEnd is passed to the document-end handler after the final
// chunk has been fully processed.
type DocumentEnd struct {
	appendChunks []mutationChunk
	valid        bool
}

func newDocumentEnd() *DocumentEnd { return &DocumentEnd{valid: true} }

func (d *DocumentEnd) checkValid() {
	if !d.valid {
		panic("html rewriter: document-end token used after its handler returned")
	}
}

func (d *DocumentEnd) invalidate() { d.valid = false }

// Append writes content to the output sink after the document's final
// byte.
func (d *DocumentEnd) Append(content string, ct ContentType) {
	d.checkValid()
	d.appendChunks = append(d.appendChunks, mutationChunk{content, ct})
}
