package selector

import "testing"

func TestParseCompoundTagIDClass(t *testing.T) {
	list, err := Parse("div#main.active")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(list.Chains) != 1 {
		t.Fatalf("Chains = %d, want 1", len(list.Chains))
	}
	c := list.Chains[0].Subject()
	if c.Tag != "div" || c.ID != "main" {
		t.Errorf("Tag/ID = %q/%q", c.Tag, c.ID)
	}
	if len(c.Classes) != 1 || c.Classes[0] != "active" {
		t.Errorf("Classes = %v", c.Classes)
	}
}

func TestParseAttrMatcherOps(t *testing.T) {
	cases := []struct {
		sel  string
		op   AttrOp
		val  string
	}{
		{"[href]", AttrExists, ""},
		{`[type="text"]`, AttrEquals, "text"},
		{`[class~="foo"]`, AttrIncludesWord, "foo"},
		{`[data-x^="a"]`, AttrStartsWith, "a"},
		{`[data-x$="z"]`, AttrEndsWith, "z"},
		{`[data-x*="mid"]`, AttrContains, "mid"},
	}
	for _, c := range cases {
		list, err := Parse(c.sel)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.sel, err)
		}
		attrs := list.Chains[0].Subject().Attrs
		if len(attrs) != 1 {
			t.Fatalf("%q: Attrs = %v", c.sel, attrs)
		}
		if attrs[0].Op != c.op || attrs[0].Value != c.val {
			t.Errorf("%q: got op=%v val=%q", c.sel, attrs[0].Op, attrs[0].Value)
		}
	}
}

func TestParseRejectsSiblingCombinators(t *testing.T) {
	for _, sel := range []string{"a + b", "a ~ b"} {
		if _, err := Parse(sel); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", sel)
		}
	}
}

func TestParseRejectsNamespacedSelector(t *testing.T) {
	if _, err := Parse("svg|rect"); err == nil {
		t.Errorf("expected NamespacedSelector error")
	}
}

func TestParseRejectsBacktrackingPseudoClassesNotInAcceptedSubset(t *testing.T) {
	for _, sel := range []string{"li:last-of-type", "li:only-of-type", "li:nth-last-child(2)", "li:nth-last-of-type(2)"} {
		if _, err := Parse(sel); err == nil {
			t.Errorf("Parse(%q): expected UnsupportedPseudoClassOrElement, got nil", sel)
		}
	}
}

func TestParseAcceptsLastChildAndOnlyChildButNeverMatches(t *testing.T) {
	for _, sel := range []string{"li:last-child", "li:only-child"} {
		if _, err := Parse(sel); err != nil {
			t.Errorf("Parse(%q): %v", sel, err)
		}
	}
}

func TestParseChildAndDescendantCombinators(t *testing.T) {
	list, err := Parse("nav > a.link")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	links := list.Chains[0].Links
	if len(links) != 2 {
		t.Fatalf("Links = %d, want 2", len(links))
	}
	if links[0].Combinator != CombinatorChild {
		t.Errorf("Combinator = %v, want Child", links[0].Combinator)
	}

	list2, err := Parse("nav a.link")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if list2.Chains[0].Links[0].Combinator != CombinatorDescendant {
		t.Errorf("expected descendant combinator")
	}
}

func TestParseNth(t *testing.T) {
	cases := map[string]NthExpr{
		"odd":    {A: 2, B: 1},
		"even":   {A: 2, B: 0},
		"2n+1":   {A: 2, B: 1},
		"2n":     {A: 2, B: 0},
		"-n+3":   {A: -1, B: 3},
		"3":      {A: 0, B: 3},
	}
	for in, want := range cases {
		got, err := parseNth(in)
		if err != nil {
			t.Fatalf("parseNth(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseNth(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestParseNthRejectsUnsupportedSyntax(t *testing.T) {
	for _, in := range []string{"foo", "2n+1+1", "n n"} {
		if _, err := parseNth(in); err == nil {
			t.Errorf("parseNth(%q): expected error", in)
		}
	}
}

func TestNthExprMatches(t *testing.T) {
	e := NthExpr{A: 2, B: 1} // odd: 1, 3, 5, ...
	for i := 1; i <= 6; i++ {
		want := i%2 == 1
		if got := e.Matches(i); got != want {
			t.Errorf("Matches(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestCompileAndVMSingleSelector(t *testing.T) {
	list, err := Parse("p.intro")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog := Compile(list, func(int) MatchPayload { return MatchPayload(0) })
	vm := NewVM(prog)

	payloads := vm.OpenStartTag(Element{TagLower: "p", Classes: []string{"intro"}})
	if len(payloads) != 1 {
		t.Fatalf("payloads = %v, want 1 match", payloads)
	}

	payloads = vm.OpenStartTag(Element{TagLower: "p", Classes: []string{"other"}})
	if len(payloads) != 0 {
		t.Errorf("unexpected match: %v", payloads)
	}
}

func TestVMDescendantCombinator(t *testing.T) {
	list, err := Parse("article p")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog := Compile(list, func(int) MatchPayload { return MatchPayload(1) })
	vm := NewVM(prog)

	if got := vm.OpenStartTag(Element{TagLower: "article"}); len(got) != 0 {
		t.Fatalf("article matched standalone: %v", got)
	}
	if got := vm.OpenStartTag(Element{TagLower: "div"}); len(got) != 0 {
		t.Fatalf("intervening div matched: %v", got)
	}
	got := vm.OpenStartTag(Element{TagLower: "p"})
	if len(got) != 1 || got[0] != MatchPayload(1) {
		t.Fatalf("p inside article didn't match via descendant jump: %v", got)
	}

	vm.CloseEndTag("div")
	vm.CloseEndTag("article")
	if got := vm.OpenStartTag(Element{TagLower: "p"}); len(got) != 0 {
		t.Fatalf("p matched after article closed: %v", got)
	}
}

func TestVMChildCombinatorOnlyAppliesOneGeneration(t *testing.T) {
	list, err := Parse("ul > li")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog := Compile(list, func(int) MatchPayload { return MatchPayload(0) })
	vm := NewVM(prog)

	vm.OpenStartTag(Element{TagLower: "ul"})
	vm.OpenStartTag(Element{TagLower: "div"})
	got := vm.OpenStartTag(Element{TagLower: "li"})
	if len(got) != 0 {
		t.Fatalf("li matched through a grandchild via child combinator: %v", got)
	}
}

func TestVMNthChild(t *testing.T) {
	list, err := Parse("li:nth-child(2)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog := Compile(list, func(int) MatchPayload { return MatchPayload(0) })
	vm := NewVM(prog)

	vm.OpenStartTag(Element{TagLower: "ul"})
	first := vm.OpenStartTag(Element{TagLower: "li"})
	vm.CloseEndTag("li")
	second := vm.OpenStartTag(Element{TagLower: "li"})
	vm.CloseEndTag("li")

	if len(first) != 0 {
		t.Errorf("first li matched :nth-child(2): %v", first)
	}
	if len(second) != 1 {
		t.Errorf("second li didn't match :nth-child(2): %v", second)
	}
}

func TestVMVoidElementNeverPushed(t *testing.T) {
	list, err := Parse("div img")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog := Compile(list, func(int) MatchPayload { return MatchPayload(0) })
	vm := NewVM(prog)

	vm.OpenStartTag(Element{TagLower: "div"})
	got := vm.OpenStartTag(Element{TagLower: "img"})
	if len(got) != 1 {
		t.Fatalf("img inside div should match: %v", got)
	}
	if vm.Depth() != 1 {
		t.Errorf("Depth = %d, want 1 (img must not be pushed)", vm.Depth())
	}
}

func TestMatchNotIsWhere(t *testing.T) {
	list, err := Parse("p:not(.skip)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog := Compile(list, func(int) MatchPayload { return MatchPayload(0) })
	vm := NewVM(prog)

	if got := vm.OpenStartTag(Element{TagLower: "p", Classes: []string{"skip"}}); len(got) != 0 {
		t.Errorf(":not(.skip) matched a .skip element: %v", got)
	}
	vm2 := NewVM(prog)
	if got := vm2.OpenStartTag(Element{TagLower: "p", Classes: []string{"keep"}}); len(got) != 1 {
		t.Errorf(":not(.skip) failed to match a non-.skip element: %v", got)
	}
}
