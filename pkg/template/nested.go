package template

import (
	"context"
	"io"

	"github.com/conneroisu/slotter/internal/portal"
)

// Nested is a template used as the value of another template. Rendered
// directly it produces static markup; projected through a portal it keeps
// a live template instance in the mount.
type Nested struct {
	props Props
	opts  []Option
}

var _ portal.Mountable = (*Nested)(nil)

// Component returns props as a value for another template.
func Component(props Props, opts ...Option) *Nested {
	return &Nested{props: props, opts: opts}
}

// Props returns the props the nested template renders.
func (n *Nested) Props() Props {
	return n.props
}

// Render implements templ.Component.
func (n *Nested) Render(ctx context.Context, w io.Writer) error {
	s, err := Static(ctx, n.props, n.opts...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

// Attach implements portal.Mountable. The live instance is created on the
// first attach and updated on every later one.
func (n *Nested) Attach(ctx context.Context, m *portal.Mount) error {
	t, ok := m.Instance.(*Template)
	if !ok {
		opts := append(append([]Option(nil), n.opts...), WithParent(m.Node))
		t = New(EnvLive, opts...)
		m.Instance = t
	}
	_, err := t.Update(ctx, n.props)
	return err
}

// Detach implements portal.Mountable.
func (n *Nested) Detach(ctx context.Context, m *portal.Mount) {
	if t, ok := m.Instance.(*Template); ok {
		t.Close(ctx)
	}
}
