package dispatch

import (
	"github.com/streamhtml/rewriter/internal/selector"
)

// Builder accumulates selector registrations before a rewrite begins.
// Each call to Register gets its own MatchPayload even when its selector
// string is itself a comma-separated list (every comma-branch shares that
// one payload, matching CSS "div, p { ... }" semantics: one handler,
// multiple selectors).
type Builder struct {
	chains       []selector.Chain
	chainPayload []selector.MatchPayload
	regFlags     []CaptureFlags
	anyAttrs     bool
	err          error
}

// NewBuilder returns an empty registration builder.
func NewBuilder() *Builder { return &Builder{} }

// Register parses sel and assigns it a fresh MatchPayload. flags records
// what this registration needs observed inside any element it matches
// (comments/text) so the dispatcher knows when lexer mode is required for
// that element's subtree.
func (b *Builder) Register(sel string, flags CaptureFlags) (selector.MatchPayload, error) {
	if b.err != nil {
		return 0, b.err
	}
	list, err := selector.Parse(sel)
	if err != nil {
		return 0, err
	}
	payload := selector.MatchPayload(len(b.regFlags))
	for _, chain := range list.Chains {
		if compoundNeedsAttrs(chain.Subject()) {
			b.anyAttrs = true
		}
		for i := range chain.Links {
			if compoundNeedsAttrs(&chain.Links[i].Compound) {
				b.anyAttrs = true
			}
		}
		b.chains = append(b.chains, chain)
		b.chainPayload = append(b.chainPayload, payload)
	}
	b.regFlags = append(b.regFlags, flags)
	return payload, nil
}

// RequireAttrs forces lexer mode globally, independent of what the
// selector grammar itself needs. The rewriter package calls this whenever
// a registration's handler body might read attributes (an Element
// callback is present at all) — the dispatcher has no way to see inside
// that closure, so it conservatively assumes it wants attributes rather
// than silently handing it an empty Attrs map.
func (b *Builder) RequireAttrs() { b.anyAttrs = true }

func compoundNeedsAttrs(c *selector.Compound) bool {
	if c.ID != "" || len(c.Classes) > 0 || len(c.Attrs) > 0 {
		return true
	}
	for _, p := range c.Pseudos {
		for _, chain := range p.Args.Chains {
			if compoundNeedsAttrs(chain.Subject()) {
				return true
			}
		}
	}
	return false
}

// Build compiles every registered selector into one flat program and
// returns a Dispatcher ready to drive a tokenizer.
func (b *Builder) Build(docFlags CaptureFlags, sink Sink, strict bool) (*Dispatcher, error) {
	if b.err != nil {
		return nil, b.err
	}
	list := selector.SelectorList{Chains: b.chains}
	var prog selector.Program
	if len(list.Chains) > 0 {
		prog = selector.Compile(list, func(ci int) selector.MatchPayload { return b.chainPayload[ci] })
	}
	return newDispatcher(prog, b.regFlags, b.anyAttrs, docFlags, sink, strict), nil
}
