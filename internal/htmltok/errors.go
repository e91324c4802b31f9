package htmltok

import "fmt"

// ErrParsingAmbiguity is returned by Feed when the tree-builder simulator
// cannot determine the text-parsing context after a start tag (spec.md
// 4.3's unresolvable-ambiguity case, e.g. <select><textarea>). Exported
// so a caller (the rewriter package) can recognize it with errors.As and
// map it to its own public error type without this package needing to
// know anything about that mapping.
type ErrParsingAmbiguity struct {
	NameLower string
}

func (e *ErrParsingAmbiguity) Error() string {
	return fmt.Sprintf("ambiguous text-parsing context at <%s>", e.NameLower)
}
