package rewriter

import (
	"fmt"

	"github.com/streamhtml/rewriter/internal/selector"
)

// MemoryLimitExceededError reports that a growth would have pushed total
// usage past the configured ceiling. The rewriter is poisoned after this.
type MemoryLimitExceededError struct {
	Current int
	Max     int
}

func (e *MemoryLimitExceededError) Error() string {
	return fmt.Sprintf("html rewriter: memory limit exceeded (current=%d, max=%d)", e.Current, e.Max)
}

// ParsingAmbiguityError is returned in strict mode when the tree-builder
// simulator hits a construct (e.g. <select><textarea>) whose correct
// handling would require a real tree. The rewriter is poisoned after this.
type ParsingAmbiguityError struct {
	NameLower string
}

func (e *ParsingAmbiguityError) Error() string {
	return fmt.Sprintf("html rewriter: ambiguous text-parsing context at <%s>", e.NameLower)
}

// EncodingErrorKind distinguishes the two ways an encoding label can be
// rejected at Rewriter construction time.
type EncodingErrorKind uint8

const (
	NonAsciiCompatibleEncoding EncodingErrorKind = iota
	UnknownEncoding
)

func (k EncodingErrorKind) String() string {
	switch k {
	case NonAsciiCompatibleEncoding:
		return "NonAsciiCompatibleEncoding"
	case UnknownEncoding:
		return "UnknownEncoding"
	default:
		return "UnknownEncodingErrorKind"
	}
}

// EncodingError reports that Settings.Encoding could not be honored.
type EncodingError struct {
	Kind  EncodingErrorKind
	Label string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("html rewriter: encoding %q rejected: %s", e.Label, e.Kind)
}

// SelectorError wraps internal/selector's parse-time error taxonomy so
// callers constructing a Rewriter see it without importing an internal
// package. Error() reports the selector string followed by the
// underlying selector error's message.
type SelectorError struct {
	Selector string
	inner    *selector.Error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("html rewriter: selector %q: %s", e.Selector, e.inner.Error())
}

// Unwrap exposes the underlying selector error for errors.As callers that
// want the internal kind without re-deriving it from the string.
func (e *SelectorError) Unwrap() error { return e.inner }

func wrapSelectorError(sel string, err error) error {
	if err == nil {
		return nil
	}
	se, ok := err.(*selector.Error)
	if !ok {
		return fmt.Errorf("html rewriter: selector %q: %w", sel, err)
	}
	return &SelectorError{Selector: sel, inner: se}
}

// ContentMutationErrorKind enumerates the recoverable mutation failures a
// handler can trigger. These never poison the rewriter: the handler gets
// the error back synchronously and the mutation is simply not applied.
type ContentMutationErrorKind uint8

const (
	CommentClosingSequence ContentMutationErrorKind = iota
	UnencodableCharacter
	InvalidAttributeName
	InvalidTagName
)

func (k ContentMutationErrorKind) String() string {
	switch k {
	case CommentClosingSequence:
		return "CommentClosingSequence"
	case UnencodableCharacter:
		return "UnencodableCharacter"
	case InvalidAttributeName:
		return "InvalidAttributeName"
	case InvalidTagName:
		return "InvalidTagName"
	default:
		return "UnknownContentMutationErrorKind"
	}
}

// ContentMutationError is returned synchronously from a mutation method
// (e.g. Comment.SetText, StartTag.SetAttribute) when the requested content
// can't be represented in the output. The rewriter keeps running; the
// mutation that failed is simply not recorded.
type ContentMutationError struct {
	Kind  ContentMutationErrorKind
	Value string
}

func (e *ContentMutationError) Error() string {
	return fmt.Sprintf("html rewriter: content mutation rejected (%s): %q", e.Kind, e.Value)
}

// errPoisoned is returned by every Rewriter method once a terminating
// error (memory, ambiguity, encoding, sink, or handler error) has fired.
type errPoisoned struct {
	cause error
}

func (e *errPoisoned) Error() string {
	return fmt.Sprintf("html rewriter: unusable after prior error: %v", e.cause)
}

func (e *errPoisoned) Unwrap() error { return e.cause }
