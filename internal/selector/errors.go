package selector

import "fmt"

// Error is the selector-grammar error taxonomy, grounded on
// selectors_vm/error.rs's SelectorError enum.
type Error struct {
	Kind ErrorKind
	// Detail carries the one piece of context a handful of kinds need
	// (e.g. the unsupported combinator rune), mirroring
	// UnsupportedCombinator(char) from the original enum.
	Detail string
}

type ErrorKind uint8

const (
	ErrUnexpectedToken ErrorKind = iota
	ErrUnexpectedEnd
	ErrMissingAttributeName
	ErrEmptySelector
	ErrDanglingCombinator
	ErrUnexpectedTokenInAttributeSelector
	ErrUnsupportedPseudoClassOrElement
	ErrUnexpectedIdent
	ErrNamespacedSelector
	ErrInvalidClassName
	ErrEmptyNegation
	ErrUnsupportedCombinator
	ErrUnsupportedNamespacedAttributeSelector
	ErrUnsupportedSyntax
)

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnexpectedToken:
		return "unexpected token in the selector"
	case ErrUnexpectedEnd:
		return "unexpected end of the selector"
	case ErrMissingAttributeName:
		return "missing attribute name in the attribute selector"
	case ErrEmptySelector:
		return "the selector is empty"
	case ErrDanglingCombinator:
		return "dangling combinator in the selector"
	case ErrUnexpectedTokenInAttributeSelector:
		return "unexpected token in the attribute selector"
	case ErrUnsupportedPseudoClassOrElement:
		return "pseudo classes and elements are unsupported in selectors"
	case ErrUnexpectedIdent:
		return "unexpected identifier in the selector"
	case ErrNamespacedSelector:
		return "selector with explicit namespaces are not supported"
	case ErrInvalidClassName:
		return "invalid or unescaped class name in the selector"
	case ErrEmptyNegation:
		return "empty negation in the selector"
	case ErrUnsupportedCombinator:
		return fmt.Sprintf("unsupported combinator %q in the selector", e.Detail)
	case ErrUnsupportedNamespacedAttributeSelector:
		return "unsupported namespaced attribute selector"
	default:
		return "unsupported syntax in the selector"
	}
}

func newErr(kind ErrorKind) *Error { return &Error{Kind: kind} }
