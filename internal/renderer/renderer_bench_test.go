package renderer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/conneroisu/slotter/internal/dom"
	"github.com/conneroisu/slotter/internal/pattern"
)

func BenchmarkExecute_Literals(b *testing.B) {
	markup := strings.Repeat("<p>{title} by {author}</p>", 50)
	values := map[string]any{"title": "Dune", "author": "Herbert"}

	b.ResetTimer()
	for range b.N {
		Execute(pattern.Default(), markup, values, Options{Escape: true})
	}
}

func BenchmarkExecute_Renderables(b *testing.B) {
	var sb strings.Builder
	values := make(map[string]any)
	for i := range 100 {
		name := fmt.Sprintf("v%d", i)
		sb.WriteString("<div>{" + name + "}</div>")
		values[name] = raw("<i>x</i>")
	}
	markup := sb.String()

	b.ResetTimer()
	for range b.N {
		Execute(pattern.Default(), markup, values, Options{})
	}
}

func BenchmarkRenderStatic(b *testing.B) {
	markup := strings.Repeat("<section>{a}<p>{t}</p></section>", 20)
	values := map[string]any{"a": raw("<b>x</b>"), "t": "text"}
	parent := dom.NewContainer("div", nil)

	b.ResetTimer()
	for range b.N {
		pass := Execute(pattern.Default(), markup, values, Options{Mode: ModeStatic})
		if _, err := RenderStatic(context.Background(), pass, parent); err != nil {
			b.Fatal(err)
		}
	}
}
