package pattern

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/slotter/internal/errors"
)

func collect(p *Pattern, s string) []Match {
	var out []Match
	for m := range p.Matches(s) {
		out = append(out, m)
	}
	return out
}

func TestDefaultPatternMatches(t *testing.T) {
	matches := collect(Default(), "<h1>{title}</h1> {$user_1} {not valid} {}")

	require.Len(t, matches, 2)
	assert.Equal(t, Match{Full: "{title}", Name: "title", Start: 4, End: 11}, matches[0])
	assert.Equal(t, "$user_1", matches[1].Name)
}

func TestStringPatternUsesSecondGroup(t *testing.T) {
	p, err := Compile(`(<% *(\w+) *%>)`)
	require.NoError(t, err)

	matches := collect(p, "Hey! <% title %> and <%name%>")
	require.Len(t, matches, 2)
	assert.Equal(t, "title", matches[0].Name)
	assert.Equal(t, "<% title %>", matches[0].Full)
	assert.Equal(t, "name", matches[1].Name)
}

func TestSingleGroupPattern(t *testing.T) {
	p, err := Compile(`\[\[(\w+)\]\]`)
	require.NoError(t, err)

	matches := collect(p, "[[a]] [[b]]")
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Name)
	assert.Equal(t, "b", matches[1].Name)
}

func TestNamedGroupWins(t *testing.T) {
	p, err := FromRegexp(regexp.MustCompile(`(\$)\{(?P<name>\w+)(:(\w+))?\}`))
	require.NoError(t, err)

	matches := collect(p, "${greeting:upper}")
	require.Len(t, matches, 1)
	assert.Equal(t, "greeting", matches[0].Name)
}

func TestPatternWithoutGroupsIsRejected(t *testing.T) {
	_, err := Compile(`\{\w+\}`)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	var se *errors.SlotterError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodePatternGroups, se.Code)
}

func TestInvalidExpression(t *testing.T) {
	_, err := Compile(`(\{`)
	require.Error(t, err)

	var se *errors.SlotterError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeInvalidPattern, se.Code)
}

func TestMatchesStopsEarly(t *testing.T) {
	seen := 0
	for range Default().Matches("{a}{b}{c}") {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestReplace(t *testing.T) {
	p := Default()

	out := p.Replace("Hello {who}, {who}!", func(m Match) string {
		return "<" + m.Name + ">"
	})
	assert.Equal(t, "Hello <who>, <who>!", out)

	plain := "no placeholders at all"
	assert.Equal(t, plain, p.Replace(plain, func(Match) string { return "x" }))
}

func TestReplaceAgreesWithRegexp(t *testing.T) {
	inputs := []string{"", "{a}", "x{a}y{b}z", "{{a}}", "{a}{a}{a}"}
	re := regexp.MustCompile(DefaultExpr)

	for _, in := range inputs {
		want := re.ReplaceAllStringFunc(in, func(s string) string { return "#" })
		got := Default().Replace(in, func(Match) string { return "#" })
		assert.Equal(t, want, got, "input %q", in)
	}
}
