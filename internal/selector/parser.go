package selector

import (
	"strings"

	"github.com/streamhtml/rewriter/internal/htmltok"
)

// Parse parses a selector string into a SelectorList. The accepted
// grammar is the teacher's restricted CSS subset (tag, #id, .class,
// [attr], [attr op value], descendant/child combinators) extended per
// SPEC_FULL.md with :first-child/:last-child/:only-child,
// :first-of-type, :nth-child()/:nth-of-type(), :not()/:is()/:where(), and
// the `i`/`s` attribute case-sensitivity flags. :last-of-type,
// :only-of-type, :nth-last-child() and :nth-last-of-type() are rejected
// with ErrUnsupportedPseudoClassOrElement. Sibling
// combinators ('+', '~') and namespaced selectors are rejected: the
// open-element stack this compiles against tracks ancestry, not
// siblings (selectors_vm/open_element_stack.rs has no sibling list).
func Parse(selector string) (SelectorList, error) {
	var list SelectorList
	for _, part := range splitTopLevelComma(selector) {
		chain, err := parseChain(part)
		if err != nil {
			return SelectorList{}, err
		}
		list.Chains = append(list.Chains, chain)
	}
	if len(list.Chains) == 0 {
		return SelectorList{}, newErr(ErrEmptySelector)
	}
	return list, nil
}

func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseChain(s string) (Chain, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chain{}, newErr(ErrEmptySelector)
	}

	tokens, err := tokenizeChain(s)
	if err != nil {
		return Chain{}, err
	}
	if len(tokens) == 0 {
		return Chain{}, newErr(ErrEmptySelector)
	}

	var links []Link
	i := 0
	for i < len(tokens) {
		if isCombinatorToken(tokens[i]) {
			return Chain{}, newErr(ErrDanglingCombinator)
		}
		cmp, err := parseCompound(tokens[i])
		if err != nil {
			return Chain{}, err
		}
		i++
		comb := CombinatorDescendant
		if i < len(tokens) {
			switch tokens[i] {
			case ">":
				comb = CombinatorChild
			case " ":
				comb = CombinatorDescendant
			case "+", "~":
				return Chain{}, &Error{Kind: ErrUnsupportedCombinator, Detail: tokens[i]}
			default:
				return Chain{}, newErr(ErrUnexpectedToken)
			}
			i++
			if i >= len(tokens) {
				return Chain{}, newErr(ErrDanglingCombinator)
			}
		}
		links = append(links, Link{Compound: cmp, Combinator: comb})
	}
	return Chain{Links: links}, nil
}

func isCombinatorToken(tok string) bool {
	return tok == ">" || tok == "+" || tok == "~" || tok == " "
}

// tokenizeChain splits a single (comma-free) selector into alternating
// compound-selector and combinator tokens, grounded on the teacher's
// tokenizeSelectorParts but aware of pseudo-class parens so whitespace
// inside "(...)" isn't mistaken for a descendant combinator.
func tokenizeChain(s string) ([]string, error) {
	var tokens []string
	n := len(s)
	i := 0

	for i < n {
		wsStart := i
		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= n {
			break
		}

		if s[i] == '>' || s[i] == '+' || s[i] == '~' {
			tokens = append(tokens, string(s[i]))
			i++
			for i < n && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			continue
		}

		if wsStart < i && len(tokens) > 0 && !isCombinatorToken(tokens[len(tokens)-1]) {
			tokens = append(tokens, " ")
		}

		start := i
		depth := 0
		for i < n {
			c := s[i]
			if depth == 0 && (c == ' ' || c == '\t' || c == '>' || c == '+' || c == '~') {
				break
			}
			switch c {
			case '[', '(':
				depth++
			case ']', ')':
				if depth > 0 {
					depth--
				}
			}
			i++
		}
		if i == start {
			return nil, newErr(ErrUnexpectedToken)
		}
		tokens = append(tokens, s[start:i])
	}
	return tokens, nil
}

func parseCompound(s string) (Compound, error) {
	var c Compound
	i := 0
	n := len(s)

	if strings.ContainsRune(s, '|') {
		return Compound{}, newErr(ErrNamespacedSelector)
	}

	start := i
	for i < n && s[i] != '#' && s[i] != '.' && s[i] != '[' && s[i] != ':' {
		i++
	}
	if i > start {
		c.Tag = s[start:i]
		if c.Tag != "*" {
			if h, ok := htmltok.NameHash([]byte(strings.ToLower(c.Tag))); ok {
				c.TagHash, c.TagHashOK = h, true
			}
		}
	}

	for i < n {
		switch s[i] {
		case '#':
			i++
			start = i
			for i < n && s[i] != '#' && s[i] != '.' && s[i] != '[' && s[i] != ':' {
				i++
			}
			if i == start {
				return Compound{}, newErr(ErrUnexpectedToken)
			}
			c.ID = s[start:i]

		case '.':
			i++
			start = i
			for i < n && s[i] != '#' && s[i] != '.' && s[i] != '[' && s[i] != ':' {
				i++
			}
			if i == start {
				return Compound{}, newErr(ErrInvalidClassName)
			}
			c.Classes = append(c.Classes, s[start:i])

		case '[':
			i++
			start = i
			depth := 1
			for i < n && depth > 0 {
				if s[i] == '[' {
					depth++
				} else if s[i] == ']' {
					depth--
					if depth == 0 {
						break
					}
				}
				i++
			}
			if i >= n {
				return Compound{}, newErr(ErrUnexpectedEnd)
			}
			attrStr := s[start:i]
			i++ // skip ]
			am, err := parseAttrMatcher(attrStr)
			if err != nil {
				return Compound{}, err
			}
			c.Attrs = append(c.Attrs, am)

		case ':':
			i++
			start = i
			for i < n && s[i] != '#' && s[i] != '.' && s[i] != '[' && s[i] != ':' && s[i] != '(' {
				i++
			}
			name := strings.ToLower(s[start:i])
			var args string
			hasArgs := false
			if i < n && s[i] == '(' {
				i++
				argStart := i
				depth := 1
				for i < n && depth > 0 {
					if s[i] == '(' {
						depth++
					} else if s[i] == ')' {
						depth--
						if depth == 0 {
							break
						}
					}
					i++
				}
				if i >= n {
					return Compound{}, newErr(ErrUnexpectedEnd)
				}
				args = s[argStart:i]
				i++ // skip )
				hasArgs = true
			}
			p, err := parsePseudo(name, args, hasArgs)
			if err != nil {
				return Compound{}, err
			}
			c.Pseudos = append(c.Pseudos, p)

		default:
			return Compound{}, newErr(ErrUnexpectedToken)
		}
	}

	return c, nil
}

func parsePseudo(name, args string, hasArgs bool) (Pseudo, error) {
	switch name {
	case "first-child":
		return Pseudo{Kind: PseudoFirstChild}, nil
	case "last-child":
		return Pseudo{Kind: PseudoLastChild}, nil
	case "only-child":
		return Pseudo{Kind: PseudoOnlyChild}, nil
	case "first-of-type":
		return Pseudo{Kind: PseudoFirstOfType}, nil
	case "last-of-type", "only-of-type", "nth-last-child", "nth-last-of-type":
		// Not in the accepted subset: unlike :last-child/:only-child these
		// aren't named there, and they share nth-last-child's need to know
		// the total sibling count, which a single forward streaming pass
		// can't produce. Rejected at compile time rather than accepted and
		// silently never matching.
		return Pseudo{}, newErr(ErrUnsupportedPseudoClassOrElement)
	case "nth-child", "nth-of-type":
		if !hasArgs {
			return Pseudo{}, newErr(ErrUnexpectedEnd)
		}
		nth, err := parseNth(args)
		if err != nil {
			return Pseudo{}, err
		}
		kind := map[string]PseudoKind{
			"nth-child":   PseudoNthChild,
			"nth-of-type": PseudoNthOfType,
		}[name]
		return Pseudo{Kind: kind, Nth: nth}, nil
	case "not", "is", "where":
		if !hasArgs || strings.TrimSpace(args) == "" {
			return Pseudo{}, newErr(ErrEmptyNegation)
		}
		list, err := Parse(args)
		if err != nil {
			return Pseudo{}, err
		}
		kind := map[string]PseudoKind{"not": PseudoNot, "is": PseudoIs, "where": PseudoWhere}[name]
		return Pseudo{Kind: kind, Args: list}, nil
	default:
		return Pseudo{}, newErr(ErrUnsupportedPseudoClassOrElement)
	}
}

func parseAttrMatcher(s string) (AttrMatcher, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AttrMatcher{}, newErr(ErrMissingAttributeName)
	}
	if strings.ContainsRune(s, '|') {
		return AttrMatcher{}, newErr(ErrUnsupportedNamespacedAttributeSelector)
	}

	caseFlag := byte(0)
	trimmed := s
	if n := len(trimmed); n >= 2 && trimmed[n-2] == ' ' && (trimmed[n-1] == 'i' || trimmed[n-1] == 'I' || trimmed[n-1] == 's' || trimmed[n-1] == 'S') {
		caseFlag = asciiLowerByte(trimmed[n-1])
		trimmed = strings.TrimSpace(trimmed[:n-2])
	}

	ops := []struct {
		tok string
		op  AttrOp
	}{
		{"~=", AttrIncludesWord},
		{"^=", AttrStartsWith},
		{"$=", AttrEndsWith},
		{"*=", AttrContains},
		{"=", AttrEquals},
	}
	for _, o := range ops {
		if idx := strings.Index(trimmed, o.tok); idx != -1 {
			name := strings.TrimSpace(trimmed[:idx])
			if name == "" {
				return AttrMatcher{}, newErr(ErrMissingAttributeName)
			}
			value := strings.TrimSpace(trimmed[idx+len(o.tok):])
			value = strings.Trim(value, `"'`)
			return AttrMatcher{Name: name, Op: o.op, Value: value, CaseInsensitive: caseFlag == 'i'}, nil
		}
	}
	name := strings.TrimSpace(trimmed)
	if name == "" {
		return AttrMatcher{}, newErr(ErrMissingAttributeName)
	}
	return AttrMatcher{Name: name, Op: AttrExists}, nil
}

func asciiLowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
