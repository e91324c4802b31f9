package selector

// Compile turns a SelectorList into a flat Program. Each chain compiles
// to its own straight-line run of instructions (no address sharing across
// chains with a common prefix) — a deliberate simplification against the
// original selectors_vm crate's shared/deduplicated program, traded for a
// compiler simple enough to hand-write and verify without the crate's own
// AST source (not present in the retrieved original_source capture). See
// DESIGN.md.
func Compile(list SelectorList, payloadFor func(chainIndex int) MatchPayload) Program {
	var prog Program
	for ci, chain := range list.Chains {
		base := len(prog.Instructions)
		for li, link := range chain.Links {
			instr := Instruction{Compound: link.Compound}
			isLast := li == len(chain.Links)-1
			if isLast {
				instr.Payloads = append(instr.Payloads, payloadFor(ci))
			} else {
				instr.HasNext = true
				instr.Hereditary = link.Combinator == CombinatorDescendant
				nextAddr := base + li + 1
				instr.NextAddrs = AddressRange{Start: nextAddr, End: nextAddr + 1}
			}
			prog.Instructions = append(prog.Instructions, instr)
		}
		prog.EntryAddrs = append(prog.EntryAddrs, AddressRange{Start: base, End: base + 1})
	}
	return prog
}
