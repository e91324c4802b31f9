package selector

// MatchPayload identifies which registered selector/handler completed
// when an instruction matches; the dispatcher uses it as an index into
// its own handler table (the Go analogue of lol-html's
// ElementContentHandlersLocator).
type MatchPayload int

// AddressRange is a contiguous run of instruction addresses scheduled to
// become active together, mirroring selectors_vm/stack.rs's
// AddressRange used for both `jumps` and `hereditary_jumps`.
type AddressRange struct {
	Start, End int
}

// Instruction tests one compound selector against a newly opened element.
// On a match it reports any MatchPayloads completed at that point and, if
// there is a next link in the chain, schedules NextAddrs either as a
// one-generation jump (child combinator) or a hereditary jump (descendant
// combinator, stays active for the whole subtree).
type Instruction struct {
	Compound    Compound
	Payloads    []MatchPayload
	HasNext     bool
	Hereditary  bool
	NextAddrs   AddressRange
}

// Program is the flat, compiled form of a SelectorList: one straight-line
// run of Instructions per chain. EntryAddrs covers every chain's first
// compound, which (having no ancestor requirement) is tested against
// every element regardless of depth.
type Program struct {
	Instructions []Instruction
	EntryAddrs   []AddressRange
}

func (p *Program) addrs(r AddressRange) []Instruction {
	return p.Instructions[r.Start:r.End]
}
