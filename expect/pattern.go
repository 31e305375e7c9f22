package expect

import "regexp"

// Pattern is one candidate matcher in an Expect call: a regular expression
// anchored at the start of the scanned prefix, a literal prefix, or the
// reserved EOF sentinel that makes end-of-stream a valid outcome instead of
// an error.
type Pattern struct {
	re      *regexp.Regexp
	literal string
	isLit   bool
	isEOF   bool
}

// EOF is the sentinel pattern representing "the stream ended". Mixing it into
// a pattern list makes Expect return its index on end of stream rather than
// failing with ErrUnexpectedEOF.
var EOF = Pattern{isEOF: true}

// Prompt matches a typical interactive shell prompt, including virtualenv
// style "(env) " prefixes, e.g. "[user@host ~]$ ".
var Prompt = MustRegex(`(\(.*\)\s+)?\[.*\][\$\#]\s+`)

// Exact returns a pattern matching any prefix that starts with text.
func Exact(text string) Pattern {
	return Pattern{literal: text, isLit: true}
}

// Regex compiles expr into a pattern. The expression is matched against line
// prefixes anchored at the start, like Python's re.match.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{re: re}, nil
}

// MustRegex is Regex but panics on a bad expression. For package-level
// pattern variables.
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Compiled wraps a pre-compiled regular expression.
func Compiled(re *regexp.Regexp) Pattern {
	return Pattern{re: re}
}

// IsEOF reports whether p is the end-of-stream sentinel.
func (p Pattern) IsEOF() bool {
	return p.isEOF
}

// match tests p against a line prefix. The match must start at offset zero;
// it need not cover the whole prefix. Returns capture group texts on success.
func (p Pattern) match(prefix string) ([]string, bool) {
	if p.isEOF {
		return nil, false
	}
	if p.isLit {
		if len(prefix) >= len(p.literal) && prefix[:len(p.literal)] == p.literal {
			return nil, true
		}
		return nil, false
	}
	if p.re == nil {
		return nil, false
	}

	loc := p.re.FindStringSubmatchIndex(prefix)
	if loc == nil || loc[0] != 0 {
		return nil, false
	}

	n := len(loc)/2 - 1
	if n == 0 {
		return nil, true
	}
	groups := make([]string, n)
	for i := 1; i <= n; i++ {
		start, end := loc[2*i], loc[2*i+1]
		if start >= 0 {
			groups[i-1] = prefix[start:end]
		}
	}
	return groups, true
}
