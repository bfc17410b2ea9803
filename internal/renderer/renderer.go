// Package renderer turns a template string and its values into markup.
//
// Literal values are written inline, escaped unless escaping is disabled.
// Renderable values become empty stub elements plus a HostElement describing
// what should later be projected into the stub. On the live path a stub
// carries the owning template's scope ID and a per-pass key; on the static
// path it carries the value name, and RenderStatic swaps it for the rendered
// value in a parsed tree.
package renderer

import (
	"html"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/slotter/internal/namespace"
	"github.com/conneroisu/slotter/internal/pattern"
)

// DefaultTag wraps renderable values without a tag override.
const DefaultTag = "span"

// Mode selects how renderable values are stubbed.
type Mode int

const (
	// ModeLive stubs renderables with scope and key attributes for discovery.
	ModeLive Mode = iota
	// ModeStatic stubs renderables with their value name for RenderStatic.
	ModeStatic
)

// HostElement is a renderable value found during one pass. Key is empty on
// the static path.
type HostElement struct {
	Key   string
	Name  string
	Tag   string
	Value templ.Component
}

// Options configure a Renderer.
type Options struct {
	Mode       Mode
	Escape     bool
	DefaultTag string
	Tags       map[string]string
	// Scope is allocated the first time a live stub is written.
	Scope *namespace.Scope
}

// Renderer renders the values of one pass. It is not reusable across passes.
type Renderer struct {
	opts  Options
	keys  *namespace.Keys
	hosts []HostElement
}

// New returns a Renderer for a fresh pass.
func New(opts Options) *Renderer {
	if opts.DefaultTag == "" {
		opts.DefaultTag = DefaultTag
	}
	if opts.Scope == nil {
		opts.Scope = &namespace.Scope{}
	}
	return &Renderer{opts: opts, keys: namespace.NewKeys()}
}

// TagFor returns the element tag used for the named value.
func (r *Renderer) TagFor(name string) string {
	if tag := r.opts.Tags[name]; tag != "" {
		return tag
	}
	return r.opts.DefaultTag
}

// Render returns the markup for one placeholder.
func (r *Renderer) Render(name string, v Value) string {
	switch v.Kind() {
	case KindAbsent:
		return ""
	case KindRenderable:
		return r.stub(name, v.Content())
	default:
		if r.opts.Escape {
			return Escape(v.Text())
		}
		return v.Text()
	}
}

func (r *Renderer) stub(name string, content templ.Component) string {
	tag := r.TagFor(name)
	host := HostElement{Name: name, Tag: tag, Value: content}

	var b strings.Builder
	b.WriteString("<" + tag)
	if r.opts.Mode == ModeStatic {
		writeAttr(&b, namespace.AttrName, name)
	} else {
		host.Key = r.keys.Next(name)
		r.opts.Scope.ID()
		writeAttr(&b, namespace.AttrScope, r.opts.Scope.Value())
		writeAttr(&b, namespace.AttrKey, host.Key)
	}
	b.WriteString("></" + tag + ">")

	r.hosts = append(r.hosts, host)
	return b.String()
}

func writeAttr(b *strings.Builder, key, val string) {
	b.WriteString(" " + key + `="` + html.EscapeString(val) + `"`)
}

// Hosts returns the host elements collected so far, in placeholder order.
func (r *Renderer) Hosts() []HostElement {
	return r.hosts
}

// Pass is the output of rendering one template string.
type Pass struct {
	Markup string
	Hosts  []HostElement
}

// Execute substitutes every placeholder of markup. Names missing from
// values render as absent. values is never modified.
func Execute(p *pattern.Pattern, markup string, values map[string]any, opts Options) Pass {
	r := New(opts)
	out := p.Replace(markup, func(m pattern.Match) string {
		return r.Render(m.Name, From(values[m.Name]))
	})
	return Pass{Markup: out, Hosts: r.Hosts()}
}
