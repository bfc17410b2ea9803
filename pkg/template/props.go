package template

import (
	"regexp"
	"sync"

	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/pattern"
	"github.com/conneroisu/slotter/internal/renderer"
)

// Default prop values.
const (
	DefaultAs       = "div"
	DefaultValueTag = renderer.DefaultTag
)

// Props are the inputs of one render pass.
type Props struct {
	// String is the template markup.
	String string
	// Values maps placeholder names to values. See renderer.From for how
	// each value is treated.
	Values map[string]any
	// ValueTags overrides the element tag wrapping individual renderable
	// values.
	ValueTags map[string]string
	// DefaultValueTag wraps renderable values without an override.
	DefaultValueTag string
	// ValuePattern is a regular expression source for placeholders. The
	// second capture group, or a group named "name", holds the value name.
	ValuePattern string
	// ValueRegexp takes precedence over ValuePattern.
	ValueRegexp *regexp.Regexp
	// DisableEscape writes literal values without escaping.
	DisableEscape bool
	// As is the container tag.
	As string
	// Attrs are passed through to the container.
	Attrs map[string]string
}

var (
	validTag = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

	voidTags = map[string]bool{
		"area": true, "base": true, "br": true, "col": true, "embed": true,
		"hr": true, "img": true, "input": true, "keygen": true, "link": true,
		"meta": true, "param": true, "source": true, "track": true, "wbr": true,
	}
)

func checkTag(tag string) *errors.SlotterError {
	if tag == "" {
		return nil
	}
	if !validTag.MatchString(tag) || voidTags[tag] {
		return errors.ErrInvalidTag(tag)
	}
	return nil
}

// Validate checks the tags and the value pattern.
func (p Props) Validate() error {
	if err := checkTag(p.As); err != nil {
		return err.WithContext("prop", "as")
	}
	if err := checkTag(p.DefaultValueTag); err != nil {
		return err.WithContext("prop", "defaultValueTag")
	}
	for name, tag := range p.ValueTags {
		if err := checkTag(tag); err != nil {
			return err.WithContext("prop", "valueTags").WithContext("value", name)
		}
	}
	_, err := p.pattern()
	return err
}

func (p Props) as() string {
	if p.As == "" {
		return DefaultAs
	}
	return p.As
}

func (p Props) rendererOptions() renderer.Options {
	return renderer.Options{
		Escape:     !p.DisableEscape,
		DefaultTag: p.DefaultValueTag,
		Tags:       p.ValueTags,
	}
}

var patterns sync.Map

func (p Props) pattern() (*pattern.Pattern, error) {
	if p.ValueRegexp != nil {
		return pattern.FromRegexp(p.ValueRegexp)
	}
	if p.ValuePattern == "" {
		return pattern.Default(), nil
	}
	if cached, ok := patterns.Load(p.ValuePattern); ok {
		return cached.(*pattern.Pattern), nil
	}
	compiled, err := pattern.Compile(p.ValuePattern)
	if err != nil {
		return nil, err
	}
	patterns.Store(p.ValuePattern, compiled)
	return compiled, nil
}
