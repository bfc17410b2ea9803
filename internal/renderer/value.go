package renderer

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/a-h/templ"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindAbsent Kind = iota
	KindLiteral
	KindRenderable
	KindOther
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindLiteral:
		return "literal"
	case KindRenderable:
		return "renderable"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Value is a template value resolved once into one of four variants.
type Value struct {
	kind    Kind
	text    string
	content templ.Component
}

// Absent is the value of a missing or nil entry.
func Absent() Value { return Value{kind: KindAbsent} }

// Literal is a primitive rendered as text.
func Literal(s string) Value { return Value{kind: KindLiteral, text: s} }

// Other is an object rendered through its textual form.
func Other(s string) Value { return Value{kind: KindOther, text: s} }

// Renderable is content that must be projected into a placeholder.
func Renderable(c templ.Component) Value {
	if c == nil {
		return Absent()
	}
	return Value{kind: KindRenderable, content: c}
}

// Kind returns the variant.
func (v Value) Kind() Kind { return v.kind }

// Text returns the text of a literal or other value.
func (v Value) Text() string { return v.text }

// Content returns the component of a renderable value.
func (v Value) Content() templ.Component { return v.content }

// From resolves an arbitrary Go value. Strings, booleans and numbers are
// literals; components, slices and arrays are renderable; Stringers and
// everything else use their textual form.
func From(v any) Value {
	switch x := v.(type) {
	case nil:
		return Absent()
	case Value:
		return x
	case string:
		return Literal(x)
	case []byte:
		return Literal(string(x))
	case bool:
		return Literal(strconv.FormatBool(x))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Literal(fmt.Sprint(x))
	case float32:
		return Literal(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case float64:
		return Literal(strconv.FormatFloat(x, 'f', -1, 64))
	case templ.Component:
		return Renderable(x)
	case []templ.Component:
		items := make([]any, len(x))
		for i, c := range x {
			items[i] = c
		}
		return Renderable(Fragment(items...))
	case fmt.Stringer:
		return Other(x.String())
	case error:
		return Other(x.Error())
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return Renderable(Fragment(items...))
	}
	return Other(fmt.Sprint(v))
}

// Fragment renders items one after another. Components render themselves,
// nil and booleans render nothing, anything else renders as escaped text.
func Fragment(items ...any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, item := range items {
			switch x := item.(type) {
			case nil, bool:
				continue
			case templ.Component:
				if err := x.Render(ctx, w); err != nil {
					return err
				}
			default:
				v := From(x)
				if v.Kind() == KindRenderable {
					if err := v.Content().Render(ctx, w); err != nil {
						return err
					}
					continue
				}
				if _, err := io.WriteString(w, templ.EscapeString(v.Text())); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
