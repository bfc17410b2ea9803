// Package portal projects renderable content into mount point nodes and
// keeps per-key mount state alive across projections.
package portal

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"golang.org/x/net/html"

	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/logging"
)

// Portal asks for Content to be shown inside Node under Key.
type Portal struct {
	Key     string
	Node    *html.Node
	Content templ.Component
}

// Mount is the durable state of content projected under one key. It lives
// until the key stops being projected or moves to another node.
type Mount struct {
	Key     string
	Node    *html.Node
	Content templ.Component
	// State is owned by the content. It survives re-projection.
	State map[string]any
	// Renders counts projections since the mount was created.
	Renders int
	// Instance holds whatever a Mountable keeps between projections.
	Instance any
}

// Mountable content manages the children of its mount node itself instead
// of being rendered to HTML and parsed into it.
type Mountable interface {
	templ.Component
	Attach(ctx context.Context, m *Mount) error
	Detach(ctx context.Context, m *Mount)
}

// Handler content reacts to events dispatched to its mount.
type Handler interface {
	Handle(ctx context.Context, m *Mount, event string) error
}

type mountKey struct{}

// WithMount returns a context carrying m.
func WithMount(ctx context.Context, m *Mount) context.Context {
	return context.WithValue(ctx, mountKey{}, m)
}

// FromContext returns the mount content is being projected into, if any.
func FromContext(ctx context.Context) (*Mount, bool) {
	m, ok := ctx.Value(mountKey{}).(*Mount)
	return m, ok
}

// Runtime tracks the mounts of one projection target. It is safe for
// concurrent use.
type Runtime struct {
	mu     sync.Mutex
	mounts map[string]*Mount
	logger logging.Logger
}

// NewRuntime returns an empty Runtime.
func NewRuntime(logger logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runtime{
		mounts: make(map[string]*Mount),
		logger: logger.WithComponent("portal"),
	}
}

// ProjectInto shows content inside node under key. A key that was mounted
// in a different node is unmounted first and loses its state.
func (r *Runtime) ProjectInto(ctx context.Context, key string, node *html.Node, content templ.Component) *Mount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projectLocked(ctx, key, node, content)
}

// Project makes portals the complete set of projections. Matching is by key
// only; keys missing from portals are unmounted. Mounts are returned in
// portal order.
func (r *Runtime) Project(ctx context.Context, portals []Portal) []*Mount {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]bool, len(portals))
	for _, p := range portals {
		wanted[p.Key] = true
	}
	for key, m := range r.mounts {
		if !wanted[key] {
			r.unmountLocked(ctx, m)
		}
	}

	out := make([]*Mount, 0, len(portals))
	for _, p := range portals {
		out = append(out, r.projectLocked(ctx, p.Key, p.Node, p.Content))
	}
	return out
}

func (r *Runtime) projectLocked(ctx context.Context, key string, node *html.Node, content templ.Component) *Mount {
	m, ok := r.mounts[key]
	if ok && m.Node != node {
		r.logger.Debug(ctx, "Mount node changed, remounting", "key", key)
		r.unmountLocked(ctx, m)
		ok = false
	}
	if !ok {
		m = &Mount{Key: key, Node: node, State: make(map[string]any)}
		r.mounts[key] = m
	} else if old, wasMountable := m.Content.(Mountable); wasMountable {
		if _, still := content.(Mountable); !still {
			old.Detach(ctx, m)
			m.Instance = nil
		}
	}
	m.Content = content
	r.renderLocked(ctx, m)
	return m
}

func (r *Runtime) renderLocked(ctx context.Context, m *Mount) {
	m.Renders++
	ctx = WithMount(ctx, m)

	if mountable, ok := m.Content.(Mountable); ok {
		if err := mountable.Attach(ctx, m); err != nil {
			r.logger.Warn(ctx, err, "Failed to attach content", "key", m.Key)
		}
		return
	}

	var b strings.Builder
	if m.Content != nil {
		if err := m.Content.Render(ctx, &b); err != nil {
			r.logger.Warn(ctx, errors.ErrRenderFailed(m.Key, err), "Failed to render content", "key", m.Key)
			return
		}
	}
	if err := dom.SetInnerHTML(m.Node, b.String()); err != nil {
		r.logger.Warn(ctx, err, "Failed to project content", "key", m.Key)
	}
}

func (r *Runtime) unmountLocked(ctx context.Context, m *Mount) {
	if mountable, ok := m.Content.(Mountable); ok {
		mountable.Detach(ctx, m)
	}
	dom.RemoveChildren(m.Node)
	delete(r.mounts, m.Key)
	r.logger.Debug(ctx, "Content unmounted", "key", m.Key)
}

// Unmount removes the projection under key.
func (r *Runtime) Unmount(ctx context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.mounts[key]; ok {
		r.unmountLocked(ctx, m)
	}
}

// Dispatch delivers event to the content mounted under key and projects it
// again. Failures inside the content are logged, not returned.
func (r *Runtime) Dispatch(ctx context.Context, key, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mounts[key]
	if !ok {
		return errors.NewValidationError(errors.ErrCodeMountNotFound, "no content mounted under key: "+key)
	}
	h, ok := m.Content.(Handler)
	if !ok {
		return errors.NewValidationError(errors.ErrCodeNotInteractive, "content does not handle events: "+key).
			WithContext("event", event)
	}

	if err := h.Handle(WithMount(ctx, m), m, event); err != nil {
		r.logger.Warn(ctx, err, "Event handler failed", "key", key, "event", event)
	}
	r.renderLocked(ctx, m)
	return nil
}

// Lookup returns the mount under key.
func (r *Runtime) Lookup(key string) (*Mount, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounts[key]
	return m, ok
}

// Mounts returns the current mounts ordered by key.
func (r *Runtime) Mounts() []*Mount {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Mount, 0, len(r.mounts))
	for _, m := range r.mounts {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of mounts.
func (r *Runtime) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounts)
}

// Close unmounts everything.
func (r *Runtime) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mounts {
		r.unmountLocked(ctx, m)
	}
}
