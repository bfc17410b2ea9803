package renderer

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/namespace"
)

// StaticResult is the output of the static path.
type StaticResult struct {
	// Markup is the pass markup unchanged when Parsed is false, otherwise the
	// serialized tree.
	Markup string
	// Nodes is the parsed tree. It is nil when the pass had no hosts.
	Nodes  []*html.Node
	Parsed bool
}

// RenderStatic resolves the name stubs of a static pass into the rendered
// values wrapped in their tags. A pass without hosts is returned as is,
// without parsing. parent is the element the markup will live in.
func RenderStatic(ctx context.Context, pass Pass, parent *html.Node) (*StaticResult, error) {
	if len(pass.Hosts) == 0 {
		return &StaticResult{Markup: pass.Markup}, nil
	}

	byName := make(map[string]HostElement, len(pass.Hosts))
	for _, h := range pass.Hosts {
		if _, ok := byName[h.Name]; !ok {
			byName[h.Name] = h
		}
	}

	nodes, err := dom.ParseTree(pass.Markup, parent, func(n *html.Node) (*html.Node, error) {
		name, ok := dom.Attr(n, namespace.AttrName)
		if !ok {
			return nil, nil
		}
		host, ok := byName[name]
		if !ok {
			return nil, nil
		}
		return renderHost(ctx, host)
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if err := dom.Render(&b, nodes...); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "serializing static tree", err)
	}
	return &StaticResult{Markup: b.String(), Nodes: nodes, Parsed: true}, nil
}

func renderHost(ctx context.Context, host HostElement) (*html.Node, error) {
	var b strings.Builder
	if err := host.Value.Render(ctx, &b); err != nil {
		return nil, errors.ErrRenderFailed(host.Name, err)
	}

	wrapper := dom.NewContainer(host.Tag, nil)
	if err := dom.SetInnerHTML(wrapper, b.String()); err != nil {
		return nil, errors.ErrRenderFailed(host.Name, err)
	}
	return wrapper, nil
}
