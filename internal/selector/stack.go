package selector

// voidElements mirrors selectors_vm/stack.rs's is_void_element: these
// HTML elements are never pushed onto the open-element stack because
// they can never have matchable descendants.
var voidElements = map[string]bool{
	"area": true, "base": true, "basefont": true, "bgsound": true,
	"br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "keygen": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoidElement reports whether tagLower (already lowercased) is a void
// HTML element.
func IsVoidElement(tagLower string) bool {
	return voidElements[tagLower]
}

// StackDirective mirrors selectors_vm/stack.rs's StackDirective: whether
// an opened element should be pushed, pushed conditionally (foreign
// content depends on the self-closing flag, which the eager scanner
// doesn't always know up front), or popped immediately. VM.OpenStartTag
// computes this directly from Element.IsForeign/IsVoidElement.
type StackDirective uint8

const (
	DirectivePush StackDirective = iota
	DirectivePushIfNotSelfClosing
	DirectivePopImmediately
)

// stackItem is one open element's matching state.
type stackItem struct {
	tagLower string
	jumps    []AddressRange // active only for this element's immediate children

	childCount      int
	childCountByTag map[string]int
}

// Stack is the open-element matching stack: program-address bookkeeping
// plus the forward-computable nth-child/nth-of-type counters.
type Stack struct {
	items []stackItem
	// activeHereditary accumulates every hereditary jump scheduled by any
	// still-open ancestor, tagged with the stack depth it was scheduled
	// at so it can be dropped once that ancestor closes. This flattens
	// selectors_vm/stack.rs's has_ancestor_with_hereditary_jumps
	// propagation into one list instead of re-walking the stack.
	activeHereditary []scheduledJump
	// root counts the children of the implicit document root: elements
	// opened while no element is on the stack.
	root stackItem
}

type scheduledJump struct {
	depth int
	addrs AddressRange
}

// NewStack returns an empty matching stack.
func NewStack() *Stack { return &Stack{} }

// Depth reports the number of currently open elements.
func (s *Stack) Depth() int { return len(s.items) }

// childOrdinals increments and returns the (childIndex, childIndexOfType)
// 1-based ordinals for a new child of the current top element (or of the
// implicit document root if the stack is empty).
func (s *Stack) childOrdinals(tagLower string) (childIndex, childIndexOfType int) {
	top := &s.root
	if len(s.items) > 0 {
		top = &s.items[len(s.items)-1]
	}
	top.childCount++
	if top.childCountByTag == nil {
		top.childCountByTag = make(map[string]int)
	}
	top.childCountByTag[tagLower]++
	return top.childCount, top.childCountByTag[tagLower]
}

// activeAddrsForOpen returns every instruction address range that should
// be tested against an element opening right now: the program's entry
// addresses, the current top's one-shot child jumps, and every still-live
// hereditary jump.
func (s *Stack) activeAddrsForOpen(entry []AddressRange) []AddressRange {
	addrs := append([]AddressRange(nil), entry...)
	if len(s.items) > 0 {
		addrs = append(addrs, s.items[len(s.items)-1].jumps...)
	}
	for _, hj := range s.activeHereditary {
		addrs = append(addrs, hj.addrs)
	}
	return addrs
}

// push opens a new element. jumps/hereditaryJumps are what this element's
// own matching instructions scheduled for its descendants.
func (s *Stack) push(tagLower string, jumps, hereditaryJumps []AddressRange) {
	depth := len(s.items)
	s.items = append(s.items, stackItem{tagLower: tagLower, jumps: jumps})
	for _, hj := range hereditaryJumps {
		s.activeHereditary = append(s.activeHereditary, scheduledJump{depth: depth, addrs: hj})
	}
}

// popUpTo closes elements down to and including the most recent one named
// tagLower, mirroring OpenElementStack::pop_up_to's last-matching-name
// search. If none match, the stack is left untouched (a stray/mismatched
// end tag).
func (s *Stack) popUpTo(tagLower string) {
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].tagLower == tagLower {
			s.items = s.items[:i]
			kept := s.activeHereditary[:0]
			for _, hj := range s.activeHereditary {
				if hj.depth < i {
					kept = append(kept, hj)
				}
			}
			s.activeHereditary = kept
			return
		}
	}
}
