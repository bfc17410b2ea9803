package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/slotter/internal/dom"
	slottererrors "github.com/conneroisu/slotter/internal/errors"
)

type clicker struct{}

func (clicker) Render(ctx context.Context, w io.Writer) error {
	m, _ := FromContext(ctx)
	n, _ := m.State["count"].(int)
	_, err := fmt.Fprintf(w, "<button>%d</button>", n)
	return err
}

func (clicker) Handle(_ context.Context, m *Mount, event string) error {
	if event != "click" {
		return errors.New("unknown event")
	}
	n, _ := m.State["count"].(int)
	m.State["count"] = n + 1
	return nil
}

type nested struct {
	attached, detached *int
}

func (n nested) Render(context.Context, io.Writer) error { return nil }

func (n nested) Attach(_ context.Context, m *Mount) error {
	*n.attached++
	if m.Instance == nil {
		m.Instance = dom.NewContainer("div", nil)
	}
	if m.Node.FirstChild == nil {
		m.Node.AppendChild(m.Instance.(*html.Node))
	}
	return nil
}

func (n nested) Detach(context.Context, *Mount) { *n.detached++ }

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func inner(t *testing.T, n *html.Node) string {
	t.Helper()
	s, err := dom.InnerHTML(n)
	require.NoError(t, err)
	return s
}

func TestProjectInto_RendersIntoNode(t *testing.T) {
	r := NewRuntime(nil)
	node := dom.NewContainer("span", nil)

	m := r.ProjectInto(context.Background(), "a:1", node, text("<b>hi</b>"))
	assert.Equal(t, "<b>hi</b>", inner(t, node))
	assert.Equal(t, 1, m.Renders)
	assert.Same(t, node, m.Node)
}

func TestProject_StateSurvivesReprojection(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(nil)
	node := dom.NewContainer("span", nil)

	r.Project(ctx, []Portal{{Key: "c:1", Node: node, Content: clicker{}}})
	require.NoError(t, r.Dispatch(ctx, "c:1", "click"))
	require.NoError(t, r.Dispatch(ctx, "c:1", "click"))
	assert.Equal(t, "<button>2</button>", inner(t, node))

	mounts := r.Project(ctx, []Portal{{Key: "c:1", Node: node, Content: clicker{}}})
	require.Len(t, mounts, 1)
	assert.Equal(t, 2, mounts[0].State["count"])
	assert.Equal(t, "<button>2</button>", inner(t, node))
	assert.Equal(t, 4, mounts[0].Renders)
}

func TestProject_NodeChangeRemounts(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(nil)
	first := dom.NewContainer("span", nil)
	second := dom.NewContainer("button", nil)

	r.ProjectInto(ctx, "c:1", first, clicker{})
	require.NoError(t, r.Dispatch(ctx, "c:1", "click"))

	m := r.ProjectInto(ctx, "c:1", second, clicker{})
	assert.Nil(t, m.State["count"])
	assert.Empty(t, inner(t, first))
	assert.Equal(t, "<button>0</button>", inner(t, second))
}

func TestProject_UnmountsMissingKeys(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(nil)
	a := dom.NewContainer("span", nil)
	b := dom.NewContainer("span", nil)

	r.Project(ctx, []Portal{
		{Key: "a:1", Node: a, Content: text("a")},
		{Key: "b:1", Node: b, Content: text("b")},
	})
	require.Equal(t, 2, r.Len())

	r.Project(ctx, []Portal{{Key: "b:1", Node: b, Content: text("b2")}})
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, inner(t, a))
	assert.Equal(t, "b2", inner(t, b))

	_, ok := r.Lookup("a:1")
	assert.False(t, ok)
}

func TestProject_OrderIsNotIdentity(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(nil)
	a := dom.NewContainer("span", nil)
	b := dom.NewContainer("span", nil)

	first := r.Project(ctx, []Portal{{Key: "a:1", Node: a, Content: text("a")}, {Key: "b:1", Node: b, Content: text("b")}})
	second := r.Project(ctx, []Portal{{Key: "b:1", Node: b, Content: text("b")}, {Key: "a:1", Node: a, Content: text("a")}})

	assert.Same(t, first[0], second[1])
	assert.Same(t, first[1], second[0])
}

func TestMountable(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(nil)
	node := dom.NewContainer("span", nil)
	var attached, detached int
	content := nested{&attached, &detached}

	m := r.ProjectInto(ctx, "t:1", node, content)
	r.ProjectInto(ctx, "t:1", node, content)
	assert.Equal(t, 2, attached)
	assert.Same(t, m.Instance, node.FirstChild)

	r.ProjectInto(ctx, "t:1", node, text("plain"))
	assert.Equal(t, 1, detached)
	assert.Nil(t, m.Instance)
	assert.Equal(t, "plain", inner(t, node))

	r.ProjectInto(ctx, "t:1", node, content)
	r.Unmount(ctx, "t:1")
	assert.Equal(t, 2, detached)
	assert.Zero(t, r.Len())
}

func TestDispatch_Errors(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(nil)

	err := r.Dispatch(ctx, "missing", "click")
	require.Error(t, err)
	assert.True(t, slottererrors.IsValidationError(err))

	r.ProjectInto(ctx, "a:1", dom.NewContainer("span", nil), text("x"))
	assert.Error(t, r.Dispatch(ctx, "a:1", "click"))

	r.ProjectInto(ctx, "c:1", dom.NewContainer("span", nil), clicker{})
	assert.NoError(t, r.Dispatch(ctx, "c:1", "hover"))
}

func TestRenderErrorsAreNotSurfaced(t *testing.T) {
	r := NewRuntime(nil)
	node := dom.NewContainer("span", nil)
	failing := templ.ComponentFunc(func(context.Context, io.Writer) error { return errors.New("boom") })

	m := r.ProjectInto(context.Background(), "f:1", node, failing)
	assert.NotNil(t, m)
	assert.Empty(t, inner(t, node))
}

func TestMountsSortedAndClose(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(nil)
	r.ProjectInto(ctx, "b:1", dom.NewContainer("span", nil), text("b"))
	r.ProjectInto(ctx, "a:1", dom.NewContainer("span", nil), text("a"))

	mounts := r.Mounts()
	require.Len(t, mounts, 2)
	assert.Equal(t, "a:1", mounts[0].Key)

	r.Close(ctx)
	assert.Zero(t, r.Len())
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	m := &Mount{Key: "k"}
	got, ok := FromContext(WithMount(context.Background(), m))
	require.True(t, ok)
	assert.Same(t, m, got)
}
