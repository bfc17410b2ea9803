// Package dom is the small DOM layer slotter needs, built on the
// golang.org/x/net/html node tree: containers, raw inner HTML, attribute
// queries and child replacement.
package dom

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NewContainer creates a detached element to hold template markup.
// Attributes are written in key order so output is deterministic.
func NewContainer(tag string, attrs map[string]string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	SetAttributes(n, attrs)
	return n
}

// SetAttributes replaces all attributes of n.
func SetAttributes(n *html.Node, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n.Attr = n.Attr[:0]
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Tag returns the lower-case tag name of an element, or "" for other nodes.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

func contextFor(n *html.Node) *html.Node {
	return &html.Node{
		Type:      html.ElementNode,
		Data:      n.Data,
		DataAtom:  atom.Lookup([]byte(n.Data)),
		Namespace: n.Namespace,
	}
}

// ParseFragment parses markup as the content of an element shaped like
// context. The returned nodes have no parent.
func ParseFragment(markup string, context *html.Node) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), contextFor(context))
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	return nodes, nil
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

// SetInnerHTML replaces the children of n with the parsed markup. Previous
// children are detached, not destroyed, so callers holding them may
// reinsert them later.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := ParseFragment(markup, n)
	if err != nil {
		return err
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// OuterHTML serializes n including its own tag.
func OuterHTML(n *html.Node) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Render writes nodes to w in order.
func Render(w io.Writer, nodes ...*html.Node) error {
	for _, n := range nodes {
		if err := html.Render(w, n); err != nil {
			return err
		}
	}
	return nil
}

// QueryByAttribute returns the descendants of root, in document order, that
// carry the attribute name with the given value. root itself is not matched.
func QueryByAttribute(root *html.Node, name, value string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if v, ok := Attr(c, name); ok && v == value {
					found = append(found, c)
				}
			}
			walk(c)
		}
	}
	walk(root)
	return found
}

// ReplaceChild puts newChild where oldChild is in parent and detaches
// oldChild. newChild is first removed from any parent it still has.
func ReplaceChild(parent, oldChild, newChild *html.Node) {
	if newChild.Parent != nil {
		newChild.Parent.RemoveChild(newChild)
	}
	parent.InsertBefore(newChild, oldChild)
	parent.RemoveChild(oldChild)
}

// ReplaceFunc decides the replacement for an element. Returning nil keeps
// the element and continues into its children.
type ReplaceFunc func(n *html.Node) (*html.Node, error)

// ParseTree parses markup as the content of context and lets replace swap
// elements for other nodes. Replacement nodes are not visited.
func ParseTree(markup string, context *html.Node, replace ReplaceFunc) ([]*html.Node, error) {
	nodes, err := ParseFragment(markup, context)
	if err != nil {
		return nil, err
	}

	var walk func(parent *html.Node) error
	walk = func(parent *html.Node) error {
		for c := parent.FirstChild; c != nil; {
			next := c.NextSibling
			r, err := visit(c, replace)
			if err != nil {
				return err
			}
			if r != nil {
				ReplaceChild(parent, c, r)
			} else if err := walk(c); err != nil {
				return err
			}
			c = next
		}
		return nil
	}

	for i, n := range nodes {
		r, err := visit(n, replace)
		if err != nil {
			return nil, err
		}
		if r != nil {
			if r.Parent != nil {
				r.Parent.RemoveChild(r)
			}
			nodes[i] = r
			continue
		}
		if err := walk(n); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

func visit(n *html.Node, replace ReplaceFunc) (*html.Node, error) {
	if n.Type != html.ElementNode {
		return nil, nil
	}
	return replace(n)
}

// Wrap serializes an element with the given tag and attributes around inner,
// which is written verbatim.
func Wrap(tag string, attrs map[string]string, inner string) (string, error) {
	empty, err := OuterHTML(NewContainer(tag, attrs))
	if err != nil {
		return "", err
	}
	closing := "</" + tag + ">"
	open, ok := strings.CutSuffix(empty, closing)
	if !ok {
		return "", fmt.Errorf("cannot wrap content in <%s>", tag)
	}
	return open + inner + closing, nil
}
