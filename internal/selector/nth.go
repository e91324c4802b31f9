package selector

import "strings"

// parseNth parses the argument of an :nth-* pseudo-class. Per the Open
// Question decision recorded in DESIGN.md, only the `an+b` grammar (with
// optionally signed a/b and the `odd`/`even` keywords) is accepted;
// anything else is ErrUnsupportedSyntax.
func parseNth(s string) (NthExpr, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "odd":
		return NthExpr{A: 2, B: 1}, nil
	case "even":
		return NthExpr{A: 2, B: 0}, nil
	case "":
		return NthExpr{}, newErr(ErrUnexpectedEnd)
	}

	i := 0
	n := len(s)
	readSignedInt := func() (int, bool) {
		start := i
		if i < n && (s[i] == '+' || s[i] == '-') {
			i++
		}
		digitsStart := i
		for i < n && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == digitsStart {
			i = start
			return 0, false
		}
		v := 0
		neg := false
		for j := start; j < i; j++ {
			switch s[j] {
			case '-':
				neg = true
			case '+':
			default:
				v = v*10 + int(s[j]-'0')
			}
		}
		if neg {
			v = -v
		}
		return v, true
	}

	skipSpace := func() {
		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
	}

	var a int
	hasA := false
	// Optional leading sign with no digits before 'n' means a = +-1.
	signStart := i
	sign := 1
	if i < n && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			sign = -1
		}
		i++
	}
	digitsStart := i
	for i < n && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > digitsStart {
		v := 0
		for j := digitsStart; j < i; j++ {
			v = v*10 + int(s[j]-'0')
		}
		a = sign * v
		hasA = true
	} else if i >= n || (s[i] != 'n' && s[i] != 'N') {
		i = signStart
	}

	if i < n && (s[i] == 'n' || s[i] == 'N') {
		i++
		if !hasA {
			a = sign
		}
		hasA = true
		skipSpace()
		if i >= n {
			return NthExpr{A: a, B: 0}, nil
		}
		b, ok := readSignedInt()
		if !ok {
			return NthExpr{}, newErr(ErrUnsupportedSyntax)
		}
		skipSpace()
		if i != n {
			return NthExpr{}, newErr(ErrUnsupportedSyntax)
		}
		return NthExpr{A: a, B: b}, nil
	}

	// No 'n': a bare integer means a=0, b=that integer.
	if !hasA {
		return NthExpr{}, newErr(ErrUnsupportedSyntax)
	}
	skipSpace()
	if i != n {
		return NthExpr{}, newErr(ErrUnsupportedSyntax)
	}
	return NthExpr{A: 0, B: a}, nil
}

// Matches reports whether 1-based index idx satisfies an+b for some
// integer n >= 0.
func (e NthExpr) Matches(idx int) bool {
	d := idx - e.B
	if e.A == 0 {
		return d == 0
	}
	if d%e.A != 0 {
		return false
	}
	return d/e.A >= 0
}
