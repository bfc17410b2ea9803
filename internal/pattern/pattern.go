// Package pattern finds placeholder tokens in a markup string.
//
// A Pattern wraps a regular expression with at least one capture group. The
// group holding the value name is chosen once at compile time: a group named
// "name" wins, otherwise the second group when there are two or more (the
// default pattern wraps the whole token in group one), otherwise the first.
package pattern

import (
	"iter"
	"regexp"
	"strings"

	"github.com/conneroisu/slotter/internal/errors"
)

// DefaultExpr matches brace tokens such as {title} or {$user_1}.
const DefaultExpr = `(\{([$\w]+)\})`

var defaultPattern = MustCompile(DefaultExpr)

// Pattern is a compiled placeholder pattern. It is safe for concurrent use.
type Pattern struct {
	re        *regexp.Regexp
	nameGroup int
}

// Match is one placeholder occurrence.
type Match struct {
	Full  string
	Name  string
	Start int
	End   int
}

// Default returns the pattern for DefaultExpr.
func Default() *Pattern {
	return defaultPattern
}

// Compile compiles expr as a placeholder pattern. Every match in a string is
// used, as with a global JavaScript RegExp.
func Compile(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidPattern, "invalid value pattern: "+expr).
			WithContext("cause", err.Error())
	}
	return FromRegexp(re)
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// FromRegexp wraps an already compiled expression.
func FromRegexp(re *regexp.Regexp) (*Pattern, error) {
	group := nameGroup(re)
	if group == 0 {
		return nil, errors.ErrPatternGroups(re.String())
	}
	return &Pattern{re: re, nameGroup: group}, nil
}

func nameGroup(re *regexp.Regexp) int {
	if idx := re.SubexpIndex("name"); idx > 0 {
		return idx
	}
	switch n := re.NumSubexp(); {
	case n >= 2:
		return 2
	case n == 1:
		return 1
	default:
		return 0
	}
}

// String returns the source text of the pattern.
func (p *Pattern) String() string {
	return p.re.String()
}

// Matches yields the placeholders of s from left to right. Stopping the
// iteration early skips the remaining occurrences.
func (p *Pattern) Matches(s string) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for _, loc := range p.re.FindAllStringSubmatchIndex(s, -1) {
			m := Match{Full: s[loc[0]:loc[1]], Start: loc[0], End: loc[1]}
			if start, end := loc[2*p.nameGroup], loc[2*p.nameGroup+1]; start >= 0 {
				m.Name = s[start:end]
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Replace returns a copy of s with every placeholder replaced by fn's result.
// Text between placeholders is copied verbatim.
func (p *Pattern) Replace(s string, fn func(Match) string) string {
	var b strings.Builder
	last, matched := 0, false
	for m := range p.Matches(s) {
		b.WriteString(s[last:m.Start])
		b.WriteString(fn(m))
		last, matched = m.End, true
	}
	if !matched {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}
