package selector

import (
	"slices"
	"strings"
)

// VM executes a compiled Program against a stream of start/end tag events
// driven by an open-element stack, per spec.md 4.4. It never builds a
// tree: an element is "matched" the instant its start tag satisfies some
// instruction reachable from the program's current active address set,
// and bookkeeping for descendant/child scoping lives entirely in the
// Stack's jump lists.
type VM struct {
	prog  Program
	stack *Stack
}

// NewVM returns a VM ready to match elements against prog.
func NewVM(prog Program) *VM {
	return &VM{prog: prog, stack: NewStack()}
}

// Element is the element-level data a compound selector is tested
// against. Attrs keys are expected lowercased; Classes need not be
// pre-split (OpenStartTag splits the class attribute itself if Classes is
// nil and Attrs["class"] is present), and an empty ID is taken from
// Attrs["id"].
type Element struct {
	TagLower string
	// TagHash/TagHashOK are the packed local-name hash of TagLower (see
	// htmltok.NameHash), reused here as a fast rejection before falling
	// back to the case-insensitive string compare; the hash folds case
	// itself so it is valid regardless of the tag's source casing.
	TagHash   uint64
	TagHashOK bool
	ID        string
	Classes   []string
	Attrs     map[string]string
	// IsForeign marks SVG/MathML elements, which IsVoidElement never
	// applies to (foreign elements use the self-closing flag instead).
	IsForeign   bool
	SelfClosing bool
}

// OpenStartTag advances the VM past a start tag, returning every
// MatchPayload that completed. The caller (the dispatcher) is
// responsible for later calling CloseEndTag with the same tag name when
// the corresponding end tag (real or synthesized for a void/self-closing
// element) is seen.
func (vm *VM) OpenStartTag(el Element) []MatchPayload {
	childIdx, childIdxOfType := vm.stack.childOrdinals(el.TagLower)
	classes := el.Classes
	if classes == nil {
		if c, ok := el.Attrs["class"]; ok {
			classes = strings.Fields(c)
		}
	}
	if el.ID == "" {
		el.ID = el.Attrs["id"]
	}
	ctx := matchContext{el: el, classes: classes, childIndex: childIdx, childIndexOfType: childIdxOfType}

	var payloads []MatchPayload
	var jumps, hereditaryJumps []AddressRange
	seen := make(map[int]bool)

	active := vm.stack.activeAddrsForOpen(vm.prog.EntryAddrs)
	for _, r := range active {
		for addr := r.Start; addr < r.End; addr++ {
			if seen[addr] {
				continue
			}
			seen[addr] = true
			instr := vm.prog.Instructions[addr]
			if !matchCompound(&instr.Compound, &ctx) {
				continue
			}
			payloads = append(payloads, instr.Payloads...)
			if instr.HasNext {
				if instr.Hereditary {
					hereditaryJumps = append(hereditaryJumps, instr.NextAddrs)
				} else {
					jumps = append(jumps, instr.NextAddrs)
				}
			}
		}
	}

	var directive StackDirective
	if el.IsForeign {
		directive = DirectivePushIfNotSelfClosing
	} else if IsVoidElement(el.TagLower) {
		directive = DirectivePopImmediately
	} else {
		directive = DirectivePush
	}

	switch directive {
	case DirectivePopImmediately:
		// Never pushed: no descendants to scope jumps over.
	case DirectivePushIfNotSelfClosing:
		if !el.SelfClosing {
			vm.stack.push(el.TagLower, jumps, hereditaryJumps)
		}
	default:
		vm.stack.push(el.TagLower, jumps, hereditaryJumps)
	}

	// Report each payload once, in ascending order, whatever order the
	// active address ranges were visited in.
	slices.Sort(payloads)
	return slices.Compact(payloads)
}

// CloseEndTag closes the most recently opened element named tagLower.
func (vm *VM) CloseEndTag(tagLower string) {
	vm.stack.popUpTo(tagLower)
}

// Depth reports the number of elements the VM currently considers open.
func (vm *VM) Depth() int { return vm.stack.Depth() }

type matchContext struct {
	el               Element
	classes          []string
	childIndex       int
	childIndexOfType int
}

func matchCompound(c *Compound, ctx *matchContext) bool {
	if c.Tag != "" && c.Tag != "*" {
		if c.TagHashOK && ctx.el.TagHashOK {
			if c.TagHash != ctx.el.TagHash {
				return false
			}
		} else if !strings.EqualFold(c.Tag, ctx.el.TagLower) {
			return false
		}
	}
	if c.ID != "" && c.ID != ctx.el.ID {
		return false
	}
	for _, want := range c.Classes {
		if !containsClass(ctx.classes, want) {
			return false
		}
	}
	for _, am := range c.Attrs {
		if !matchAttr(am, ctx.el.Attrs) {
			return false
		}
	}
	for _, p := range c.Pseudos {
		if !matchPseudo(p, ctx) {
			return false
		}
	}
	return true
}

func containsClass(classes []string, want string) bool {
	for _, c := range classes {
		if c == want {
			return true
		}
	}
	return false
}

func matchAttr(am AttrMatcher, attrs map[string]string) bool {
	val, ok := attrs[strings.ToLower(am.Name)]
	if !ok {
		return false
	}
	if am.Op == AttrExists {
		return true
	}
	want, have := am.Value, val
	if am.CaseInsensitive {
		want, have = strings.ToLower(want), strings.ToLower(have)
	}
	switch am.Op {
	case AttrEquals:
		return have == want
	case AttrIncludesWord:
		for _, w := range strings.Fields(have) {
			if w == want {
				return true
			}
		}
		return false
	case AttrStartsWith:
		return strings.HasPrefix(have, want)
	case AttrEndsWith:
		return strings.HasSuffix(have, want)
	case AttrContains:
		return strings.Contains(have, want)
	default:
		return false
	}
}

func matchPseudo(p Pseudo, ctx *matchContext) bool {
	switch p.Kind {
	case PseudoFirstChild:
		return ctx.childIndex == 1
	case PseudoFirstOfType:
		return ctx.childIndexOfType == 1
	case PseudoNthChild:
		return p.Nth.Matches(ctx.childIndex)
	case PseudoNthOfType:
		return p.Nth.Matches(ctx.childIndexOfType)
	case PseudoLastChild, PseudoOnlyChild:
		// Named in the accepted selector subset, but their truth depends
		// on the total sibling count, only known once the parent closes;
		// a single forward streaming pass can't produce that without
		// buffering the whole subtree, which the memory-bounded design
		// forbids. Accepted syntactically (the parser must take them),
		// never matched — a documented limitation (DESIGN.md), not a
		// crash. last-of-type/only-of-type/nth-last-* aren't in the
		// accepted subset at all and are rejected at parse time instead.
		return false
	case PseudoLastOfType, PseudoOnlyOfType, PseudoNthLastChild, PseudoNthLastOfType:
		// Unreachable: parser.go rejects these at compile time.
		return false
	case PseudoNot:
		for _, chain := range p.Args.Chains {
			if matchCompound(chain.Subject(), ctx) {
				return false
			}
		}
		return true
	case PseudoIs, PseudoWhere:
		for _, chain := range p.Args.Chains {
			if matchCompound(chain.Subject(), ctx) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
