package registry

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/slotter/internal/portal"
	"github.com/conneroisu/slotter/pkg/template"
)

// NewDefaultRegistry returns a registry with the built-in components.
func NewDefaultRegistry() *ComponentRegistry {
	r := NewComponentRegistry()
	for _, c := range Builtins() {
		// Built-in names and factories are always valid.
		_ = r.Register(c)
	}
	return r
}

// Builtins returns the built-in components.
func Builtins() []*ComponentInfo {
	return []*ComponentInfo{
		{
			Name:        "text",
			Description: "Escaped text",
			Parameters:  []ParameterInfo{{Name: "text", Type: "string"}},
			Factory:     newText,
		},
		{
			Name:        "badge",
			Description: "Title-cased label with a variant class",
			Parameters: []ParameterInfo{
				{Name: "label", Type: "string"},
				{Name: "variant", Type: "string", Optional: true, Default: "default"},
			},
			Factory: newBadge,
		},
		{
			Name:        "list",
			Description: "Items as an ordered or unordered list",
			Parameters: []ParameterInfo{
				{Name: "items", Type: "[]any"},
				{Name: "ordered", Type: "bool", Optional: true, Default: false},
			},
			Factory: newList,
		},
		{
			Name:        "counter",
			Description: "Button counting click events",
			Parameters: []ParameterInfo{
				{Name: "label", Type: "string", Optional: true, Default: "Count"},
				{Name: "start", Type: "int", Optional: true, Default: 0},
			},
			Stateful: true,
			Factory:  newCounter,
		},
		{
			Name:        "template",
			Description: "Nested template",
			Parameters: []ParameterInfo{
				{Name: "string", Type: "string"},
				{Name: "values", Type: "map[string]any", Optional: true},
				{Name: "value_tags", Type: "map[string]string", Optional: true},
				{Name: "default_value_tag", Type: "string", Optional: true, Default: template.DefaultValueTag},
				{Name: "value_pattern", Type: "string", Optional: true},
				{Name: "escape_values", Type: "bool", Optional: true, Default: true},
				{Name: "as", Type: "string", Optional: true, Default: template.DefaultAs},
				{Name: "attrs", Type: "map[string]string", Optional: true},
			},
			Factory: newTemplate,
		},
	}
}

func newText(props map[string]any) (templ.Component, error) {
	text, err := stringProp(props, "text", "")
	if err != nil {
		return nil, err
	}
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(text))
		return err
	}), nil
}

func newBadge(props map[string]any) (templ.Component, error) {
	label, err := stringProp(props, "label", "")
	if err != nil {
		return nil, err
	}
	variant, err := stringProp(props, "variant", "default")
	if err != nil {
		return nil, err
	}
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<span class="badge badge-%s">%s</span>`,
			templ.EscapeString(variant), templ.EscapeString(cases.Title(language.English).String(label)))
		return err
	}), nil
}

func newList(props map[string]any) (templ.Component, error) {
	ordered, err := boolProp(props, "ordered", false)
	if err != nil {
		return nil, err
	}
	var items []any
	switch v := props["items"].(type) {
	case nil:
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("items: expected a list, got %T", v)
	}

	tag := "ul"
	if ordered {
		tag = "ol"
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<"+tag+">"); err != nil {
			return err
		}
		for _, item := range items {
			if _, err := io.WriteString(w, "<li>"); err != nil {
				return err
			}
			if c, ok := item.(templ.Component); ok {
				if err := c.Render(ctx, w); err != nil {
					return err
				}
			} else if _, err := io.WriteString(w, templ.EscapeString(fmt.Sprint(item))); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "</li>"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</"+tag+">")
		return err
	}), nil
}

// Counter is a stateful button. Its count lives in the portal mount, so it
// survives re-projection as long as the mount point is recycled.
type Counter struct {
	Label string
	Start int
}

var _ portal.Handler = Counter{}

func newCounter(props map[string]any) (templ.Component, error) {
	label, err := stringProp(props, "label", "Count")
	if err != nil {
		return nil, err
	}
	start, err := intProp(props, "start", 0)
	if err != nil {
		return nil, err
	}
	return Counter{Label: label, Start: start}, nil
}

// Count returns the current count for the mount in ctx, or Start.
func (c Counter) Count(ctx context.Context) int {
	if m, ok := portal.FromContext(ctx); ok {
		if n, ok := m.State["count"].(int); ok {
			return n
		}
	}
	return c.Start
}

// Render implements templ.Component.
func (c Counter) Render(ctx context.Context, w io.Writer) error {
	_, err := fmt.Fprintf(w, `<button type="button">%s: %d</button>`, templ.EscapeString(c.Label), c.Count(ctx))
	return err
}

// Handle implements portal.Handler for click, decrement and reset.
func (c Counter) Handle(ctx context.Context, m *portal.Mount, event string) error {
	n := c.Count(ctx)
	switch event {
	case "click", "increment":
		n++
	case "decrement":
		n--
	case "reset":
		n = c.Start
	default:
		return fmt.Errorf("counter: unknown event %q", event)
	}
	m.State["count"] = n
	return nil
}

func newTemplate(props map[string]any) (templ.Component, error) {
	p, err := TemplateProps(props)
	if err != nil {
		return nil, err
	}
	return template.Component(p), nil
}

// TemplateProps converts document-style props into template props. Values
// are used as given and must already be resolved.
func TemplateProps(props map[string]any) (template.Props, error) {
	var p template.Props
	var err error

	if p.String, err = stringProp(props, "string", ""); err != nil {
		return p, err
	}
	if p.DefaultValueTag, err = stringProp(props, "default_value_tag", ""); err != nil {
		return p, err
	}
	if p.ValuePattern, err = stringProp(props, "value_pattern", ""); err != nil {
		return p, err
	}
	if p.As, err = stringProp(props, "as", ""); err != nil {
		return p, err
	}
	escape, err := boolProp(props, "escape_values", true)
	if err != nil {
		return p, err
	}
	p.DisableEscape = !escape

	if p.ValueTags, err = stringMapProp(props, "value_tags"); err != nil {
		return p, err
	}
	if p.Attrs, err = stringMapProp(props, "attrs"); err != nil {
		return p, err
	}

	switch v := props["values"].(type) {
	case nil:
	case map[string]any:
		p.Values = v
	default:
		return p, fmt.Errorf("values: expected a mapping, got %T", v)
	}
	return p, p.Validate()
}

func stringProp(props map[string]any, key, def string) (string, error) {
	switch v := props[key].(type) {
	case nil:
		return def, nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%s: expected a string, got %T", key, v)
	}
}

func intProp(props map[string]any, key string, def int) (int, error) {
	switch v := props[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
}

func boolProp(props map[string]any, key string, def bool) (bool, error) {
	switch v := props[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%s: expected a boolean, got %T", key, v)
	}
}

func stringMapProp(props map[string]any, key string) (map[string]string, error) {
	switch v := props[key].(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k := range v {
			s, err := stringProp(v, k, "")
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected a mapping, got %T", key, v)
	}
}
