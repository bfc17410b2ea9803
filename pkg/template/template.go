// Package template renders markup strings whose placeholders may hold rich,
// independently rendered content.
//
// A Template substitutes the placeholders of Props.String with the entries
// of Props.Values. Literal values are written inline. Renderable values,
// templ components or slices, get an empty stub element instead, and their
// content is projected into that stub through a portal once the markup is
// live. Between passes the stubs are matched by key and tag so projected
// content keeps its mount and state even though the markup is replaced
// wholesale.
//
// Updates happen in two phases. Render is pure apart from allocating the
// instance's scope ID and remembers the latest pass. Commit writes that pass
// into the container and recycles mount points. Update runs both and
// projects the portals.
//
// In EnvStatic a Template never holds live state: renderable values are
// rendered in place and the result is handed off whole.
package template

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/logging"
	"github.com/conneroisu/slotter/internal/namespace"
	"github.com/conneroisu/slotter/internal/portal"
	"github.com/conneroisu/slotter/internal/reconciler"
	"github.com/conneroisu/slotter/internal/renderer"
)

// Env selects the rendering path.
type Env int

const (
	// EnvLive keeps a container and mount points across passes.
	EnvLive Env = iota
	// EnvStatic renders once into a tree without mount points.
	EnvStatic
)

func (e Env) String() string {
	if e == EnvStatic {
		return "static"
	}
	return "live"
}

// Option configures a Template.
type Option func(*Template)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(t *Template) {
		t.logger = logger
	}
}

// WithRuntime sets the portal runtime receiving projections. Keys are only
// unique within one template, so a runtime must not be shared.
func WithRuntime(rt *portal.Runtime) Option {
	return func(t *Template) {
		t.runtime = rt
	}
}

// WithParent appends the container to parent on commit.
func WithParent(parent *html.Node) Option {
	return func(t *Template) {
		t.parent = parent
	}
}

// Changes summarizes what the last commit did to the mount points.
type Changes struct {
	Changed bool
	Reused  []string
	Fresh   []string
	Dropped []string
}

// Template is one template instance. It is safe for concurrent use; passes
// are serialized.
type Template struct {
	mu sync.Mutex

	env        Env
	logger     logging.Logger
	runtime    *portal.Runtime
	reconciler *reconciler.Reconciler
	scope      namespace.Scope

	parent    *html.Node
	container *html.Node

	pending   *renderer.Pass
	props     Props
	committed string
	mounted   bool
	closed    bool
	changes   Changes
}

// New returns a template instance for env.
func New(env Env, opts ...Option) *Template {
	t := &Template{env: env}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.NewNopLogger()
	}
	t.logger = t.logger.WithComponent("template")
	if t.runtime == nil {
		t.runtime = portal.NewRuntime(t.logger)
	}
	t.reconciler = reconciler.New(t.logger)
	return t
}

// Env returns the rendering path of t.
func (t *Template) Env() Env {
	return t.env
}

// Render runs the render phase for props and remembers the pass for the
// next Commit. Portals are only produced for keys that already have a mount
// point, so the first pass of a live template has none.
func (t *Template) Render(ctx context.Context, props Props) (*Output, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.render(ctx, props)
}

func (t *Template) render(ctx context.Context, props Props) (*Output, error) {
	if t.closed {
		return nil, errClosed()
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}
	p, err := props.pattern()
	if err != nil {
		return nil, err
	}

	opts := props.rendererOptions()
	if t.env == EnvStatic {
		opts.Mode = renderer.ModeStatic
		pass := renderer.Execute(p, props.String, props.Values, opts)
		res, err := renderer.RenderStatic(ctx, pass, dom.NewContainer(props.as(), nil))
		if err != nil {
			return nil, err
		}
		return &Output{
			Markup: res.Markup,
			Tree:   res.Nodes,
			Static: true,
			as:     props.as(),
			attrs:  props.Attrs,
		}, nil
	}

	opts.Scope = &t.scope
	pass := renderer.Execute(p, props.String, props.Values, opts)
	t.pending = &pass
	t.props = props

	out := &Output{
		Container: t.container,
		Markup:    pass.Markup,
		Hosts:     len(pass.Hosts),
		as:        props.as(),
		attrs:     props.Attrs,
	}
	if len(pass.Hosts) == 0 || !t.mounted {
		return out, nil
	}
	for _, h := range pass.Hosts {
		if node, ok := t.reconciler.Lookup(h.Key); ok {
			out.Portals = append(out.Portals, portal.Portal{Key: h.Key, Node: node, Content: h.Value})
		}
	}
	return out, nil
}

// Commit writes the pending pass into the container and recycles mount
// points. It reports whether the mount point set changed, in which case a
// new Render is needed to project into the new set. Commit does nothing for
// a closed template or when no pass is pending.
func (t *Template) Commit(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commit(ctx)
}

func (t *Template) commit(ctx context.Context) (bool, error) {
	if t.closed || t.pending == nil || t.env == EnvStatic {
		return false, nil
	}
	pass := t.pending

	t.ensureContainer(ctx)
	first := !t.mounted
	dom.SetAttributes(t.container, t.props.Attrs)
	if first || pass.Markup != t.committed {
		if err := dom.SetInnerHTML(t.container, pass.Markup); err != nil {
			return false, errors.NewRenderError(errors.ErrCodeRenderFailed, "writing template markup", err)
		}
		t.committed = pass.Markup
	}
	t.mounted = true

	if len(pass.Hosts) == 0 && t.reconciler.Len() == 0 {
		t.changes = Changes{}
		return false, nil
	}

	res := t.reconciler.Reconcile(ctx, t.container, t.scope.Value())
	t.changes = Changes{
		Changed: res.Changed,
		Reused:  res.Reused,
		Fresh:   res.Fresh,
		Dropped: res.Dropped,
	}
	return res.Changed, nil
}

// ensureContainer creates the container, or replaces it when the wrapper tag
// changed. A new container starts without mount points.
func (t *Template) ensureContainer(ctx context.Context) {
	as := t.props.as()
	if t.container != nil && dom.Tag(t.container) == as {
		if t.parent != nil && t.container.Parent != t.parent {
			t.attach(t.container)
		}
		return
	}

	next := dom.NewContainer(as, nil)
	if old := t.container; old != nil {
		t.logger.Debug(ctx, "Container tag changed, remounting", "from", dom.Tag(old), "to", as)
		t.runtime.Close(ctx)
		t.reconciler.Reset()
		t.mounted = false
		if old.Parent != nil {
			dom.ReplaceChild(old.Parent, old, next)
		}
	}
	t.container = next
	if t.parent != nil && next.Parent != t.parent {
		t.attach(next)
	}
}

func (t *Template) attach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	t.parent.AppendChild(n)
}

// Update runs a full pass: render, commit, render again when the mount
// points changed, then project the portals.
func (t *Template) Update(ctx context.Context, props Props) (*Output, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out, err := t.render(ctx, props)
	if err != nil || out.Static {
		return out, err
	}

	changed, err := t.commit(ctx)
	if err != nil {
		return nil, err
	}
	if changed {
		changes := t.changes
		if out, err = t.render(ctx, props); err != nil {
			return nil, err
		}
		if _, err := t.commit(ctx); err != nil {
			return nil, err
		}
		t.changes = changes
	}

	t.runtime.Project(ctx, out.Portals)
	out.Container = t.container
	t.logger.Debug(ctx, "Template updated",
		"scope", t.scope.Value(),
		"hosts", out.Hosts,
		"portals", len(out.Portals),
		"changed", changed,
	)
	return out, nil
}

// Close tears the instance down. Projected content is unmounted and the
// container is removed from its parent. A template closed before its first
// commit never produces mount points.
func (t *Template) Close(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.pending = nil
	t.runtime.Close(ctx)
	t.reconciler.Reset()
	if t.container != nil && t.container.Parent != nil {
		t.container.Parent.RemoveChild(t.container)
	}
}

// Container returns the live container, or nil before the first commit.
func (t *Template) Container() *html.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.container
}

// ScopeID returns the scope attribute value, or "" while unallocated.
func (t *Template) ScopeID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scope.Value()
}

// MountPoints returns a copy of the current mount points by key.
func (t *Template) MountPoints() map[string]*html.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconciler.Points()
}

// Keys returns the current mount point keys in document order.
func (t *Template) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconciler.Keys()
}

// LastChanges returns what the last commit did to the mount points. After
// Update it describes the commit that applied the new markup.
func (t *Template) LastChanges() Changes {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changes
}

// Mounts returns the projected content mounts ordered by key.
func (t *Template) Mounts() []*portal.Mount {
	return t.runtime.Mounts()
}

// Dispatch delivers event to the content projected under key.
func (t *Template) Dispatch(ctx context.Context, key, event string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errClosed()
	}
	return t.runtime.Dispatch(ctx, key, event)
}

// HTML serializes the live container including projected content.
func (t *Template) HTML() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.container == nil {
		return "", nil
	}
	return dom.OuterHTML(t.container)
}

// Static renders props once on the static path and returns the container
// markup.
func Static(ctx context.Context, props Props, opts ...Option) (string, error) {
	out, err := New(EnvStatic, opts...).Render(ctx, props)
	if err != nil {
		return "", err
	}
	return out.HTML()
}

// Reset restarts scope IDs at 1. It exists for deterministic tests only.
func Reset() {
	namespace.ResetScopeIDs()
}

func errClosed() error {
	return errors.NewValidationError(errors.ErrCodeTemplateClosed, "template is closed")
}
