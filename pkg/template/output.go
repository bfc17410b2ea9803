package template

import (
	"io"

	"golang.org/x/net/html"

	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/portal"
)

// Output is the result of one render pass.
type Output struct {
	// Container is the live container. It is nil on the static path and
	// before the first commit.
	Container *html.Node
	// Markup is the container content produced by the pass. On the static
	// path it is the serialized tree, or the substituted string unchanged
	// when there was nothing to resolve.
	Markup string
	// Tree holds the static tree when renderable values were resolved.
	Tree []*html.Node
	// Portals are the projections for keys with a mount point, in
	// placeholder order.
	Portals []portal.Portal
	// Hosts is the number of renderable values in the pass.
	Hosts  int
	Static bool

	as    string
	attrs map[string]string
}

// HTML serializes the container with its content. A live output that has
// been committed reflects the live container, projected content included.
func (o *Output) HTML() (string, error) {
	if o.Container != nil {
		return dom.OuterHTML(o.Container)
	}
	return dom.Wrap(o.as, o.attrs, o.Markup)
}

// WriteTo writes HTML to w.
func (o *Output) WriteTo(w io.Writer) (int64, error) {
	s, err := o.HTML()
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, s)
	return int64(n), err
}
