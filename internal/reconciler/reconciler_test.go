package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/slotter/internal/dom"
)

func stub(tag, scope, key string) string {
	return "<" + tag + ` data-template-id="` + scope + `" data-template-key="` + key + `"></` + tag + ">"
}

func mount(t *testing.T, markup string) *html.Node {
	t.Helper()
	c := dom.NewContainer("div", nil)
	require.NoError(t, dom.SetInnerHTML(c, markup))
	return c
}

func TestDiscover_ScopedAndOrdered(t *testing.T) {
	c := mount(t, "<p>"+stub("span", "1", "b:1")+"</p>"+
		stub("span", "2", "a:1")+
		stub("button", "1", "a:1")+
		stub("span", "1", "a:1"))

	points := Discover(c, "1")
	require.Len(t, points, 2)
	assert.Equal(t, "b:1", points[0].Key)
	assert.Equal(t, "a:1", points[1].Key)
	assert.Equal(t, "button", dom.Tag(points[1].Node))

	assert.Len(t, Discover(c, "2"), 1)
	assert.Empty(t, Discover(c, "3"))
}

func TestReconcile_FirstRunAdopts(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	assert.Equal(t, Uninitialized, r.State())

	c := mount(t, stub("span", "1", "a:1")+stub("span", "1", "a:2"))
	res := r.Reconcile(ctx, c, "1")

	assert.True(t, res.Changed)
	assert.Equal(t, []string{"a:1", "a:2"}, res.Fresh)
	assert.Equal(t, Mounted, r.State())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a:1", "a:2"}, r.Keys())
}

func TestReconcile_FirstRunEmpty(t *testing.T) {
	r := New(nil)
	res := r.Reconcile(context.Background(), mount(t, "<p>text</p>"), "1")
	assert.False(t, res.Changed)
	assert.Equal(t, Mounted, r.State())
	assert.Zero(t, r.Len())
}

func TestReconcile_IdenticalNodeIsKept(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	c := mount(t, stub("button", "1", "button:1"))
	r.Reconcile(ctx, c, "1")
	before, _ := r.Lookup("button:1")

	res := r.Reconcile(ctx, c, "1")
	after, _ := r.Lookup("button:1")

	assert.False(t, res.Changed)
	assert.Same(t, before, after)
	assert.Equal(t, []string{"button:1"}, res.Reused)
}

func TestReconcile_RecyclesSameKeyAndTag(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	c := mount(t, "<p>"+stub("button", "1", "button:1")+"</p>")
	r.Reconcile(ctx, c, "1")
	prev, ok := r.Lookup("button:1")
	require.True(t, ok)
	prev.AppendChild(&html.Node{Type: html.TextNode, Data: "projected"})

	// New markup moves the stub to another parent.
	require.NoError(t, dom.SetInnerHTML(c, "<section><b>x</b>"+stub("button", "1", "button:1")+"</section>"))
	fresh := Discover(c, "1")[0].Node
	require.NotSame(t, prev, fresh)

	res := r.Reconcile(ctx, c, "1")
	got, _ := r.Lookup("button:1")

	assert.False(t, res.Changed)
	assert.Same(t, prev, got)
	assert.Nil(t, fresh.Parent)
	assert.Equal(t, "section", dom.Tag(prev.Parent))
	assert.Same(t, prev, Discover(c, "1")[0].Node)

	out, err := dom.InnerHTML(c)
	require.NoError(t, err)
	assert.Contains(t, out, "projected")
}

func TestReconcile_TagMismatchGetsFreshNode(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	c := mount(t, stub("button", "1", "x:1"))
	r.Reconcile(ctx, c, "1")
	prev, _ := r.Lookup("x:1")

	require.NoError(t, dom.SetInnerHTML(c, stub("a", "1", "x:1")))
	res := r.Reconcile(ctx, c, "1")
	got, _ := r.Lookup("x:1")

	assert.True(t, res.Changed)
	assert.NotSame(t, prev, got)
	assert.Equal(t, "a", dom.Tag(got))
	assert.Equal(t, []string{"x:1"}, res.Fresh)
}

func TestReconcile_RemovalMarksChanged(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	c := mount(t, stub("span", "1", "a:1")+stub("span", "1", "b:1"))
	r.Reconcile(ctx, c, "1")
	kept, _ := r.Lookup("b:1")

	require.NoError(t, dom.SetInnerHTML(c, stub("span", "1", "b:1")))
	res := r.Reconcile(ctx, c, "1")

	assert.True(t, res.Changed)
	assert.Equal(t, []string{"a:1"}, res.Dropped)
	assert.Equal(t, []string{"b:1"}, res.Reused)
	got, _ := r.Lookup("b:1")
	assert.Same(t, kept, got)
	assert.Equal(t, 1, r.Len())
}

func TestReconcile_AdditionMarksChanged(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	c := mount(t, "")
	r.Reconcile(ctx, c, "1")

	require.NoError(t, dom.SetInnerHTML(c, stub("span", "1", "a:1")))
	res := r.Reconcile(ctx, c, "1")
	assert.True(t, res.Changed)
	assert.Equal(t, 1, r.Len())
}

func TestPointsReturnsCopy(t *testing.T) {
	r := New(nil)
	r.Reconcile(context.Background(), mount(t, stub("span", "1", "a:1")), "1")

	points := r.Points()
	delete(points, "a:1")
	assert.Equal(t, 1, r.Len())
}

func TestReset(t *testing.T) {
	r := New(nil)
	r.Reconcile(context.Background(), mount(t, stub("span", "1", "a:1")), "1")
	r.Reset()
	assert.Equal(t, Uninitialized, r.State())
	assert.Zero(t, r.Len())
	assert.Equal(t, "uninitialized", r.State().String())
}

func TestReconcile_ReorderKeepsNodesAndUpdatesKeys(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	c := mount(t, "<p>"+stub("span", "1", "a:1")+"</p><p>"+stub("span", "1", "b:1")+"</p>")
	r.Reconcile(ctx, c, "1")
	a, _ := r.Lookup("a:1")
	b, _ := r.Lookup("b:1")

	require.NoError(t, dom.SetInnerHTML(c, "<i>"+stub("span", "1", "b:1")+"</i> x <i>"+stub("span", "1", "a:1")+"</i>"))
	res := r.Reconcile(ctx, c, "1")

	assert.False(t, res.Changed)
	assert.Equal(t, []string{"b:1", "a:1"}, res.Reused)
	assert.Equal(t, []string{"b:1", "a:1"}, r.Keys())
	gotA, _ := r.Lookup("a:1")
	gotB, _ := r.Lookup("b:1")
	assert.Same(t, a, gotA)
	assert.Same(t, b, gotB)
}
