package htmltok

// ParserDirective tells the kernel which actor to re-enter with after a
// tag boundary: stay in the current mode, or switch actors. Switching
// always happens at a tag boundary so the cursor and text-type survive
// the handoff untouched.
type ParserDirective uint8

const (
	DirectiveContinue ParserDirective = iota
	DirectiveSwitchToScanner
	DirectiveSwitchToLexer
)

// Controller is implemented by the dispatcher. It is consulted at every
// tag boundary (in scanner mode via OnTagHint, in lexer mode via OnLexeme
// for start/end tags) to decide whether the kernel should keep running in
// its current actor or hand off to the other one, and it stands in for
// the tree-builder simulator's two decisions from spec.md 4.3.
type Controller interface {
	// OnTagHint is called once per tag boundary while the kernel is in
	// scanner mode.
	OnTagHint(hint TagHint) ParserDirective
	// OnLexeme is called once per lexeme while the kernel is in lexer
	// mode. For Kind other than StartTag/EndTag the return value is
	// ignored: only a tag boundary switches actors.
	OnLexeme(lex Lexeme) ParserDirective
	// TextTypeAfterStartTag asks the tree-builder simulator whether
	// nameLower (already lowercased) changes the current text-parsing
	// context, and returns the ambiguity decision alongside it.
	TextTypeAfterStartTag(nameLower string, selfClosing bool) (tt TextType, changed bool, ambiguous bool)
	// CDataAllowed reports whether the tokenizer is currently inside a
	// foreign-content subtree (SVG/MathML) where CDATA sections and
	// self-closing syntax are recognized.
	CDataAllowed() bool
}
